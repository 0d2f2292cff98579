// Package pipeline defines the contract between the harness and a
// pipeline under test (PUT).
//
// A PUT is an opaque, stateful streaming unit. The harness drives it
// through four operations:
//
//   - QuerySize reports how many arena bytes the PUT needs.
//   - Reset initialises PUT state over a caller-owned [Arena].
//   - RunStep consumes one input frame from a [BufferSet] and reports
//     whether an inference boundary was reached.
//   - Release frees anything the PUT holds outside the arena.
//
// # Buffers
//
// Inputs, intermediate state and outputs are exchanged through named,
// sized buffer descriptors instead of positional pointers. The keyword
// spotting pipeline uses four channels:
//
//	aec_output  int16 x 256  staging input, overwritten once per step
//	audio_fifo  int16 x 832  sample history
//	mfcc_fifo   int8  x 490  feature history
//	classes     int8  x 12   classification output
//
// Every accessor checks the element kind and length at the interface, so
// a PUT never indexes past a buffer's declared capacity.
//
// # Ownership
//
// The harness allocates the arena once, before any run, using the size
// returned by QuerySize. The PUT may read and write arena bytes but never
// resizes or retains it past Release.
package pipeline
