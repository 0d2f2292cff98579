package conform

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/roach88/audiomark/internal/pipeline"
)

// Epsilon replaces zero probabilities before taking logarithms.
const Epsilon = 1e-12

// ErrDegenerateDistribution is returned by Normalize when every score is
// -128, so the shifted scores sum to zero.
var ErrDegenerateDistribution = errors.New("degenerate distribution: shifted scores sum to zero")

// Normalize maps a score vector to a probability distribution by shifting
// each score by +128 and dividing by the vector's own sum.
func Normalize(v pipeline.Classes) ([]float64, error) {
	p := make([]float64, len(v))
	for i, s := range v {
		p[i] = float64(int(s) + 128)
	}
	sum := floats.Sum(p)
	if sum <= 0 {
		return nil, ErrDegenerateDistribution
	}
	floats.Scale(1/sum, p)
	return p, nil
}

// IsNoise reports whether a vector has no active class: its maximum
// score is negative.
func IsNoise(v pipeline.Classes) bool {
	return v.Max() < 0
}

// JensenShannon returns the base-2 Jensen-Shannon divergence of p and q,
// which lies in [0, 1]. Zero entries are floored to Epsilon first.
// It panics if the lengths differ.
func JensenShannon(p, q []float64) float64 {
	if len(p) != len(q) {
		panic("conform: distribution length mismatch")
	}
	fp := floor(p)
	fq := floor(q)
	jsd := stat.JensenShannon(fp, fq) / math.Ln2
	return math.Min(math.Max(jsd, 0), 1)
}

func floor(p []float64) []float64 {
	out := make([]float64, len(p))
	for i, v := range p {
		if v <= 0 {
			v = Epsilon
		}
		out[i] = v
	}
	return out
}
