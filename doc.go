// Package fixturepool provides concurrent fixture pooling for parallel
// end-to-end test workers.
//
// Creating domain fixtures (accounts, courses, articles, events) per
// scenario is the slowest part of a browser-driven test suite. fixturepool
// instead builds a fixed set of fixtures per worker at start-up and hands
// them out to scenarios through a bounded-wait acquire/release protocol,
// sanitizing each fixture between uses. Backing-store rows live in
// PostgreSQL behind a reference-counted shared connection that is opened
// lazily and torn down only after an idle grace period.
//
// # Components
//
//   - Pool: a generic fixed-capacity pool of one fixture kind. Acquire
//     hands out at most one holder per fixture, keyed by a correlation
//     token, and fails with a *PoolExhaustedError after the acquisition
//     timeout. Release runs the kind's cleanup function and returns the
//     fixture to the idle set even when cleanup fails.
//   - Manager: one per worker identity via ManagerFor. Declares the
//     standard kind set (or a custom one), populates every pool in
//     rate-limited batches, and dispatches Acquire/Release by kind.
//   - SharedConn: the process-wide reference-counted connection handle the
//     Postgres store operates through.
//
// # Basic Usage
//
//	func TestMain(m *testing.M) {
//		ctx := context.Background()
//
//		mgr, err := fixturepool.ManagerFor(os.Getenv("TEST_WORKER_ID"), &fixturepool.Config{
//			ConnString: os.Getenv("DATABASE_URL"),
//		})
//		if err != nil {
//			panic(err)
//		}
//		if err := mgr.Initialize(ctx); err != nil {
//			panic(err)
//		}
//
//		code := m.Run()
//		mgr.Cleanup(ctx)
//		os.Exit(code)
//	}
//
//	func TestEnrollment(t *testing.T) {
//		ctx := context.Background()
//		token := fixturepool.NewToken()
//
//		f, err := mgr.Acquire(ctx, fixturepool.KindCourse, token)
//		if err != nil {
//			t.Fatal(err)
//		}
//		course := f.(*fixturepool.Course)
//		defer mgr.Release(ctx, course, token)
//
//		// drive the scenario against course...
//	}
//
// Workers never share pools: every generated fixture identifier embeds the
// worker ID, so parallel workers cannot collide in the backing store even
// though each keeps its own process-local pools.
package fixturepool
