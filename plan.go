package tmr

import "tmreader.dev/tagop"

// ReadPlan is the tagged variant of spec.md §3: a SimplePlan or a
// MultiPlan composing several sub-plans.
type ReadPlan interface {
	isReadPlan()
}

// DedupMode selects how Read deduplicates the tags a plan returns,
// resolving spec.md's ambiguity over the dedup key by keeping both
// keyings available rather than picking one silently (see
// SPEC_FULL.md §5).
type DedupMode uint8

const (
	DedupNone DedupMode = iota
	DedupByEPC
	DedupByEPCAntenna
)

// SimplePlan reads one protocol over a set of antennas (empty means
// auto-detect across whatever the module reports), with an optional
// filter and an optional embedded tag operation.
type SimplePlan struct {
	Antennas []uint8
	Protocol Protocol
	Filter   tagop.Filter
	TagOp    tagop.Op
	Weight   int
	Dedup    DedupMode
}

func (SimplePlan) isReadPlan() {}

// MultiPlan runs each child plan in sequence, splitting the overall
// timeout by weight (spec.md §4.5 "Weighted multi"), unless it matches
// the multi-protocol fast-path shape (all-simple children, total weight
// zero, agreeing antenna lists), in which case a single
// MultipleProtocolSearch frame covers all of them.
type MultiPlan struct {
	Plans       []ReadPlan
	TotalWeight int
	Dedup       DedupMode
}

func (MultiPlan) isReadPlan() {}

// validatePlan checks a plan against spec.md §4.5's rules:
//
//	(a) every simple-plan protocol is supported by the connected firmware
//	(b) every antenna listed is in the current Tx/Rx map
//	(c) the plan contains no List tag operation
//	(d) any multi-plan has positive total weight, UNLESS it is the
//	    multi-protocol-search special case (all-simple children, each
//	    weight zero)
func (r *Reader) validatePlan(plan ReadPlan) error {
	switch p := plan.(type) {
	case SimplePlan:
		if !r.version.Supports(p.Protocol) {
			return ErrUnimplementedFeature
		}
		for _, a := range p.Antennas {
			if _, ok := r.antennaEntry(a); !ok {
				return ErrNoAntenna
			}
		}
		if _, ok := p.TagOp.(tagop.List); ok {
			return ErrInvalid
		}
		return nil
	case MultiPlan:
		sum := 0
		for _, child := range p.Plans {
			if err := r.validatePlan(child); err != nil {
				return err
			}
			sum += childWeight(child)
		}
		if sum != p.TotalWeight {
			return ErrInvalid
		}
		if p.TotalWeight <= 0 && !isMultiProtocolSearchShape(p) {
			return ErrInvalid
		}
		return nil
	default:
		return ErrInvalid
	}
}

func childWeight(plan ReadPlan) int {
	switch p := plan.(type) {
	case SimplePlan:
		return p.Weight
	case MultiPlan:
		return p.TotalWeight
	}
	return 0
}

// isMultiProtocolSearchShape reports whether plan matches spec.md
// §4.5's multi-protocol fast-path shape: every child is a SimplePlan
// with weight zero.
func isMultiProtocolSearchShape(plan MultiPlan) bool {
	if len(plan.Plans) == 0 {
		return false
	}
	for _, child := range plan.Plans {
		sp, ok := child.(SimplePlan)
		if !ok || sp.Weight != 0 {
			return false
		}
	}
	return true
}

// fastPathAntennas returns the first child's antenna list, and reports
// whether every other child agrees with it — spec.md §9's open question
// on what to do when children disagree is resolved conservatively here:
// disagreement disqualifies the fast path (see SPEC_FULL.md §5).
func fastPathAntennas(plan MultiPlan) (antennas []uint8, agree bool) {
	if len(plan.Plans) == 0 {
		return nil, false
	}
	first, ok := plan.Plans[0].(SimplePlan)
	if !ok {
		return nil, false
	}
	for _, child := range plan.Plans[1:] {
		sp, ok := child.(SimplePlan)
		if !ok || !equalUint8(sp.Antennas, first.Antennas) {
			return first.Antennas, false
		}
	}
	return first.Antennas, true
}
