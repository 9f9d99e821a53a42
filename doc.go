// Package journeycas serves journey documents (a journey and its ordered
// flight segments) from a shared cache and updates them under optimistic
// concurrency control.
//
// Components:
//   - store.Store: byte store with TTL plus an atomic dual-key
//     compare-and-swap (Redis WATCH/MULTI, or in-process for dev).
//   - codec.Codec[V]: (de)serializes documents <-> []byte.
//   - Engine[V]: read version, read document, mutate a fresh copy, CAS
//     version -> version+1; on a lost race reload and reapply, bounded.
//   - Service: journey and segment status updates built on the engine.
//
// Keys:
//
//	journey:{<id>}          document
//	journey:{<id>}:version  version counter
//	journey:ids             journey index
//
// Two callers updating different segments of the same journey both land:
// the loser of the CAS rereads the winner's document and reapplies its own
// change on top of it. Nobody blocks; losers redo their read-mutate step.
//
//	svc, _ := journeycas.New(journeycas.Options{Store: st})
//	err := svc.UpdateSegmentStatus(ctx, "JRN-001", "SEG-002", "Boarding")
//	switch {
//	case errors.Is(err, journeycas.ErrNotFound): // do not retry
//	case errors.Is(err, journeycas.ErrConflict): // retry later
//	}
package journeycas
