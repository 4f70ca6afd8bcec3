// Package hint converts what a receiver knows about shared history into a bound for growing
// fragments.
//
// An exact hint minimizes round trips. An under-estimated bound costs one extra round trip to
// deepen the fragment. An over-estimated bound costs nodes sent needlessly. An untrusted hint
// yields no bound at all: the fragment is walked to the roots in one shot.
package hint

import (
	"math"
	"strconv"

	"github.com/oneconcern/dagsync/pkg/model"
)

// DefaultMargin is added to the generation distance between source and receiver
const DefaultMargin = 1

// Bound is the number of generations a fragment grows back from its seeds
type Bound int64

// Unbounded walks back to the roots
const Unbounded Bound = -1

// IsUnbounded tells if the bound walks to the roots
func (b Bound) IsUnbounded() bool {
	return b < 0
}

// Budget yields the growth budget for a seed: a node is fetched as long as its distance in
// generations to the seed is less than the budget.
func (b Bound) Budget() int64 {
	if b.IsUnbounded() {
		return math.MaxInt64
	}
	return int64(b)
}

func (b Bound) String() string {
	if b.IsUnbounded() {
		return "unbounded"
	}
	return strconv.FormatInt(int64(b), 10)
}

// Estimator derives growth bounds from generation hints
type Estimator struct {
	margin int64
}

// Option for the estimator
type Option func(*Estimator)

// Margin sets the safety margin added to generation distances. Negative values are ignored.
func Margin(m int64) Option {
	return func(e *Estimator) {
		if m >= 0 {
			e.margin = m
		}
	}
}

// NewEstimator with default margin
func NewEstimator(opts ...Option) *Estimator {
	e := &Estimator{margin: DefaultMargin}
	for _, apply := range opts {
		apply(e)
	}
	return e
}

// Margin of this estimator
func (e *Estimator) Margin() int64 {
	return e.margin
}

// Estimate a bound from the generation of a source leaf and a hint about the receiver.
//
// An untrusted hint, or a hint ahead of the source, yields Unbounded. Otherwise the bound is at
// least 1 so the seed itself is always fetched.
func (e *Estimator) Estimate(sourceGeneration int64, h model.GenerationHint) Bound {
	known, ok := h.Generation()
	if !ok {
		return Unbounded
	}
	diff := sourceGeneration - known
	if diff < 0 {
		return Unbounded
	}
	if b := diff + e.margin; b > 1 {
		return Bound(b)
	}
	return 1
}

// Widen yields the bound for a deepening attempt over some missing fringe.
//
// The first attempt reuses the previous bound from the missing fringe; later attempts give up on
// estimates and walk to the roots.
func Widen(previous Bound, attempt int) Bound {
	if attempt <= 1 && !previous.IsUnbounded() {
		if previous < 1 {
			return 1
		}
		return previous
	}
	return Unbounded
}
