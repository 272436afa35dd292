// Package compute runs the expensive computation that produces artifacts and
// feeds its results to a store.
//
// Computations run in parallel on a bounded Pool. A Coordinator collects the
// outcomes and performs every save from its own goroutine, so a store file
// only ever sees one writer. Memoization is explicit: callers own a Cache and
// hand it to their computation, either directly or through Memoize.
//
//	sites := &compute.Cache[int, []int]{}
//	solver := compute.Func[[]byte](func(ctx context.Context, run, sys params.Params) ([]byte, error) {
//		idx, err := sites.GetOrCompute(int(run["N"].(params.Int)), buildSites)
//		if err != nil {
//			return nil, err
//		}
//		return solve(ctx, idx, run, sys)
//	})
//	pool := compute.NewPool(compute.Memoize(solver, &compute.Cache[string, []byte]{}), 4, logger)
package compute
