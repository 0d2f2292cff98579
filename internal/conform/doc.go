// Package conform validates a keyword-spotting pipeline's streaming output
// against a golden reference.
//
// A [Validator] replays a corpus frame by frame through a harness session.
// Each time the pipeline reports an inference, the produced twelve-class
// score vector is paired with the next golden row. Pairs where both
// vectors have a negative maximum are noise: they are counted but not
// scored. All other pairs are normalized to probability distributions and
// compared with the base-2 Jensen-Shannon divergence.
//
// The verdict fails if any of these hold, each checked independently:
//
//	inference count != expected
//	max divergence        > Thresholds.MaxJSD
//	violations / events   > Thresholds.MaxViolationRatio
//	sum divergence / events > Thresholds.MeanJSD
//
// Both ratios divide by every inference event, noise included. A run
// with no inferences skips the ratio checks rather than dividing by zero.
package conform
