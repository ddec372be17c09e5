// Package panel owns the single-unit lifecycle state machine.
//
// Ownership boundary:
// - unit aging, failure, and soiling state
// - per-step realized output computation
// - replacement countdown phases
// - the randomness handle contract for deterministic replay
package panel
