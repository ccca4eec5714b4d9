// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package store

import "context"

// Store persists scan records.
type Store interface {
	// Put creates or replaces a record.
	Put(ctx context.Context, rec *Record) error
	// Get returns a copy of the record with the specified ID, or ErrNotFound.
	Get(ctx context.Context, id string) (*Record, error)
	// Update atomically modifies the record with the specified ID using fn,
	// returning the updated record. If fn fails the record stays unchanged.
	Update(ctx context.Context, id string, fn func(*Record) error) (*Record, error)
	// List returns up to limit records, newest first.
	List(ctx context.Context, limit int) ([]*Record, error)
}

// victims returns the IDs to evict from order, oldest first, so that at most
// max IDs remain. Finished records go first, from oldest to newest; only then
// unfinished records are evicted, again oldest first.
func victims(order []string, max int, finished func(id string) bool) []string {
	excess := len(order) - max
	if excess <= 0 {
		return nil
	}
	picked := make([]string, 0, excess)
	evicted := map[string]bool{}
	for _, id := range order {
		if len(picked) == excess {
			return picked
		}
		if finished(id) {
			picked = append(picked, id)
			evicted[id] = true
		}
	}
	for _, id := range order {
		if len(picked) == excess {
			break
		}
		if !evicted[id] {
			picked = append(picked, id)
		}
	}
	return picked
}
