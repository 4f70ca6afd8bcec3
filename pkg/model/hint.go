package model

import "strconv"

// GenerationHint is what some repository knows about the generation of a node: either a known
// generation, or nothing it can vouch for.
//
// The zero value is an untrusted hint.
type GenerationHint struct {
	generation int64
	known      bool
}

// KnownGeneration builds a trusted hint
func KnownGeneration(generation int64) GenerationHint {
	return GenerationHint{generation: generation, known: true}
}

// UntrustedGeneration builds a hint for a node the responder cannot place
func UntrustedGeneration() GenerationHint {
	return GenerationHint{}
}

// Generation yields the hinted generation, if trusted
func (h GenerationHint) Generation() (int64, bool) {
	return h.generation, h.known
}

// IsUntrusted tells if the hint carries no usable generation
func (h GenerationHint) IsUntrusted() bool {
	return !h.known
}

func (h GenerationHint) String() string {
	if !h.known {
		return "untrusted"
	}
	return strconv.FormatInt(h.generation, 10)
}
