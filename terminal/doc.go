// Package terminal provides direct ANSI terminal control with zero-alloc
// rendering.
//
// Features:
//   - True color (24-bit) and 256-color palette emission with Redmean mapping
//   - State-tracked presenter: cost-modeled cursor moves, coalesced SGR deltas
//   - One-writer serialization of log output and UI frames
//   - Inline rendering that preserves native scrollback (line-scoped clears,
//     DECSTBM scroll regions) and an alternate-screen mode
//   - Input parser state machine: keys, SGR mouse, bracketed paste, focus
//   - RAII session guard: every enabled mode is disabled on every exit path
//   - Pure capability detection from the environment, no terminal I/O
package terminal
