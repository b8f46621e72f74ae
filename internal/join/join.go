// Package join provides the heterogeneous parallel join the launch
// pipeline's cache fan-out needs: four differently-typed tasks, run
// concurrently, with the first error winning (spec.md §4.12, §9 "a small
// helper type that parks N typed results and joins").
package join

import "golang.org/x/sync/errgroup"

// Four runs f1..f4 concurrently and returns all four results once every
// task has completed. If any task returns an error, Four returns the
// first one reported (errgroup.Group semantics); whatever each task
// stored is returned alongside it, and callers must not rely on the
// results' contents in that case.
func Four[T1, T2, T3, T4 any](
	f1 func() (T1, error),
	f2 func() (T2, error),
	f3 func() (T3, error),
	f4 func() (T4, error),
) (T1, T2, T3, T4, error) {
	var r1 T1
	var r2 T2
	var r3 T3
	var r4 T4

	var g errgroup.Group
	g.Go(func() (err error) { r1, err = f1(); return })
	g.Go(func() (err error) { r2, err = f2(); return })
	g.Go(func() (err error) { r3, err = f3(); return })
	g.Go(func() (err error) { r4, err = f4(); return })

	err := g.Wait()
	return r1, r2, r3, r4, err
}
