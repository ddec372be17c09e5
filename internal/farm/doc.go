// Package farm owns the collection-level orchestration of units.
//
// Ownership boundary:
// - member registry keyed by allocated unit id
// - replacement scheduling and execution sweeps
// - farm-wide soiling event distribution
// - read-only snapshot projection for reporting layers
package farm
