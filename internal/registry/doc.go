// Package registry owns the ordered list of monitored targets.
//
// All mutation (Add, Update, Remove, MarkChecking, ApplyStatus, Replace) is
// serialized by one mutex, and Snapshot returns value copies, so a reader
// never sees a status paired with a timestamp from a different update.
//
// ApplyStatus is where probe results re-enter the list. Results are keyed by
// TargetID; a result for an id that was removed after its round started is
// dropped. IDs come from a monotonic counter and are never handed out twice,
// so a late result can never attach to a newer target.
//
// Structural changes are persisted through a repo.TargetStore after the
// registry lock is released. A failed save is reported as *SaveError next to
// the successful in-memory result.
package registry
