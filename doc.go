// Package redisflight coordinates many callers in front of a shared
// Redis-compatible store.
//
// Components:
//   - pool: a bounded set of store handles, dialed lazily and recycled after
//     an idle window.
//   - Lock/TryLock/Unlock: a cross-process mutex stored as a single record
//     created with SET NX. Records carry their expiry and an owner token, so
//     a crashed holder's record can be reclaimed and only the owner can unlock.
//   - Flight[V].GetOrCompute: cache population that computes each missing
//     key once, even when thousands of callers in many processes miss at the
//     same time.
//
// Keys:
//
//	<prefix><key>             - cache entries and passthrough keys
//	<prefix>lock:<name>       - lock records
//	<prefix>lock:<prefix><key> - compute-lock records of cache keys
//
// Usage:
//
//	c, _ := redisflight.New(cfg, redisflight.Options{})
//	rep, err := redisflight.GetOrCompute(ctx, c, "report:2024",
//	    func(ctx context.Context, setTTL func(time.Duration)) (Report, error) {
//	        return buildReport(ctx, 2024)
//	    }, 10*time.Minute)
package redisflight
