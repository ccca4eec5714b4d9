/*
Package fanout runs an operation over a list of items with a limited number of
operations in flight at any time, returning the results in input order.

	results, err := fanout.Run(ctx, hosts, 10,
	    func(ctx context.Context, idx int, host string) (Result, error) {
	        return probe(ctx, host), nil
	    })

A failing operation does not stop the others; all errors are joined into the
returned error after all operations have returned.

# Acknowledgements

Under its hood, fanout leverages [gammazero/workerpool] as the limiting
goroutine pool.

[gammazero/workerpool]: https://github.com/gammazero/workerpool
*/
package fanout
