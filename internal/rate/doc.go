// Package rate implements fixed-window attempt counters for login and
// registration throttling.
//
// # Window semantics
//
// Fixed-window counters: increment, and set the expiry on the first hit only.
// Key prefixes:
//   - al:    login per-identifier
//   - ali:   login per-IP
//   - aca:   registration per-identifier
//   - acaip: registration per-IP
//
// Counters live behind [Counter]; [RedisCounter] shares state across
// instances, [MemoryCounter] keeps it in-process.
//
// # What this package must NOT do
//
//   - Decide what happens to a throttled caller. Flow functions do that.
//   - Be imported outside the goToken module.
package rate
