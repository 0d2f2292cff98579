// Package harness owns the pipeline under test for the duration of a run.
//
// A [Session] queries the pipeline's memory requirement, allocates the
// arena, binds the keyword-spotting buffer channels and resets the
// pipeline. Every step copies one audio frame into the staging channel and
// invokes RunStep; a failing step is reported as a PIPELINE_RUN_FAILURE and
// ends the enclosing loop. Close releases the pipeline and the arena exactly
// once.
//
// # Error taxonomy
//
// All harness failures are reported as [*Error] values carrying one of the
// ErrCode constants:
//
//   - ALLOCATION_FAILURE: the arena could not be allocated
//   - PIPELINE_RUN_FAILURE: Reset or RunStep returned an error
//   - NO_INFERENCES: a corpus replay produced no inference events
//   - INFERENCE_COUNT_MISMATCH: produced events differ from the expected count
//   - DIVERGENCE_THRESHOLD_EXCEEDED: a max, mean or violation-ratio limit was exceeded
//   - GOLDEN_EXHAUSTED: more events than golden rows
//   - DEGENERATE_DISTRIBUTION: a score vector could not be normalised
//
// Use the IsXxx helpers to classify wrapped errors.
//
// # Usage
//
//	sess, err := harness.Open(kws.New(), harness.Options{Logger: logger})
//	if err != nil {
//	    return err
//	}
//	defer sess.Close()
//
//	replay := harness.NewReplay(sess, c)
//	if err := replay.Run(); err != nil {
//	    return err
//	}
package harness
