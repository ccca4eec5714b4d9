// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package fanout

import (
	"context"
	"errors"
	"fmt"

	"github.com/gammazero/workerpool"
)

// Func is an operation on a single item, passed the item's index in the input
// list as well as the item itself.
type Func[T, R any] func(ctx context.Context, idx int, item T) (R, error)

// Run calls fn for all items with at most limit calls in flight at any time,
// waits for all calls to return, and then returns their results in the order
// of the items, not in completion order. A limit below 1 is treated as 1.
//
// Run does not stop calling fn when the context gets cancelled; instead, the
// context is passed on to fn, which decides for itself whether to skip its
// work.
//
// If some calls fail, their results are still the ones returned by fn and the
// errors are joined into the returned error, each annotated with its item
// index.
func Run[T, R any](ctx context.Context, items []T, limit int, fn Func[T, R]) ([]R, error) {
	if limit < 1 {
		limit = 1
	}
	if limit > len(items) && len(items) > 0 {
		limit = len(items)
	}
	results := make([]R, len(items))
	errs := make([]error, len(items))
	workers := workerpool.New(limit)
	for idx := range items {
		idx := idx
		workers.Submit(func() {
			defer func() {
				if r := recover(); r != nil {
					errs[idx] = fmt.Errorf("item %d: panic: %v", idx, r)
				}
			}()
			res, err := fn(ctx, idx, items[idx])
			results[idx] = res
			if err != nil {
				errs[idx] = fmt.Errorf("item %d: %w", idx, err)
			}
		})
	}
	workers.StopWait()
	return results, errors.Join(errs...)
}
