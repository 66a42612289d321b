// Package pattern implements the XSLT pattern-match engine named in spec
// §4.6: a precomputed anchor test per rule (the cheap, node-kind/name-level
// filter) paired with a boolean predicate evaluated only once the anchor
// already agrees, rules grouped by mode and sorted by
// (-priority, -declaration order) so apply-templates dispatch always finds
// the first, most-specific match. internal/xslt is the one caller: it owns
// turning a textual match pattern into the Anchor/AncestorChain/Predicate
// triple this package dispatches over; this package never parses XPath
// itself.
package pattern

import (
	"sort"

	"github.com/oxhq/morfx/internal/xname"
	"github.com/oxhq/morfx/internal/xnode"
)

// ModeId is the dense, statically resolved mode identifier spec §4.6 calls
// for. DefaultMode is the unnamed mode every apply-templates without an
// explicit mode= attribute dispatches through.
type ModeId int32

const DefaultMode ModeId = 0

// AnchorKind classifies the cheap structural test run before a rule's
// predicate, mirroring the handful of step shapes an XSLT match pattern's
// final step can take.
type AnchorKind int

const (
	AnchorElementName AnchorKind = iota
	AnchorElementWildcard
	AnchorAttributeName
	AnchorAttributeWildcard
	AnchorKindTest
	AnchorAny
)

// Anchor is the precomputed node test from spec §4.6(a).
type Anchor struct {
	Kind     AnchorKind
	Name     xname.Name // AnchorElementName / AnchorAttributeName
	NodeKind xnode.Kind // AnchorKindTest
}

// Matches reports whether candidate satisfies the anchor's structural test,
// independent of any predicate.
func (a Anchor) Matches(n xnode.Node) bool {
	switch a.Kind {
	case AnchorElementName:
		return n.Kind() == xnode.KindElement && n.Name().Equal(a.Name)
	case AnchorElementWildcard:
		return n.Kind() == xnode.KindElement
	case AnchorAttributeName:
		return n.Kind() == xnode.KindAttribute && n.Name().Equal(a.Name)
	case AnchorAttributeWildcard:
		return n.Kind() == xnode.KindAttribute
	case AnchorKindTest:
		return n.Kind() == a.NodeKind
	case AnchorAny:
		return true
	}
	return false
}

// AncestorRel distinguishes an immediate-parent step ("a/b") from an
// any-depth ancestor step ("a//b") in a path pattern.
type AncestorRel int

const (
	RelParent AncestorRel = iota
	RelAncestor
)

// AncestorStep is one non-final step of a path pattern, checked by walking
// up from the candidate; path patterns deeper than this chain, and
// predicates on anything but the final step, are outside this engine's
// scope (see DESIGN.md).
type AncestorStep struct {
	Rel    AncestorRel
	Anchor Anchor
}

// PredicateFunc is the boolean IR function from spec §4.6(b): the compiled
// bracketed predicate on a pattern's final step, evaluated with candidate
// bound as the dynamic context item. nil means the pattern carries no
// predicate.
type PredicateFunc func(candidate xnode.Node) (bool, error)

// Rule is one template rule, already reduced to the pieces this package
// dispatches over. Payload carries whatever internal/xslt needs to run the
// rule's body; this package never inspects it.
type Rule struct {
	Mode          ModeId
	AllModes      bool // #all: merged into every mode at BuildModeTable time
	Priority      float64
	DeclOrder     int
	Anchor        Anchor
	AncestorChain []AncestorStep
	Predicate     PredicateFunc
	Payload       any
}

// Matches runs the full anchor + ancestor-chain + predicate test against
// candidate.
func (r *Rule) Matches(candidate xnode.Node) (bool, error) {
	if !r.Anchor.Matches(candidate) {
		return false, nil
	}
	cur := candidate
	for _, step := range r.AncestorChain {
		switch step.Rel {
		case RelParent:
			parents, err := cur.Axis(xnode.AxisParent)
			if err != nil {
				return false, err
			}
			if len(parents) == 0 || !step.Anchor.Matches(parents[0]) {
				return false, nil
			}
			cur = parents[0]
		case RelAncestor:
			ancestors, err := cur.Axis(xnode.AxisAncestor)
			if err != nil {
				return false, err
			}
			found := false
			for _, anc := range ancestors {
				if step.Anchor.Matches(anc) {
					cur = anc
					found = true
					break
				}
			}
			if !found {
				return false, nil
			}
		}
	}
	if r.Predicate != nil {
		return r.Predicate(candidate)
	}
	return true, nil
}

// ModeTable groups rules by mode, each slice pre-sorted by
// (-priority, -declaration order), with #all rules merged into every mode
// per spec §4.6.
type ModeTable struct {
	modes map[ModeId][]*Rule
}

// BuildModeTable groups rules into modes and merges #all rules into every
// mode seen (plus DefaultMode, so a stylesheet consisting only of #all
// rules still has a dispatchable default mode).
func BuildModeTable(rules []*Rule) *ModeTable {
	byMode := map[ModeId][]*Rule{DefaultMode: nil}
	var allModeRules []*Rule
	for _, r := range rules {
		if r.AllModes {
			allModeRules = append(allModeRules, r)
			continue
		}
		byMode[r.Mode] = append(byMode[r.Mode], r)
	}
	for mode, rs := range byMode {
		merged := append(append([]*Rule{}, rs...), allModeRules...)
		sortRules(merged)
		byMode[mode] = merged
	}
	return &ModeTable{modes: byMode}
}

func sortRules(rs []*Rule) {
	sort.SliceStable(rs, func(i, j int) bool {
		if rs[i].Priority != rs[j].Priority {
			return rs[i].Priority > rs[j].Priority
		}
		return rs[i].DeclOrder > rs[j].DeclOrder
	})
}

// Rules returns mode's rule list in dispatch order (already sorted).
func (mt *ModeTable) Rules(mode ModeId) []*Rule { return mt.modes[mode] }

// Dispatch returns the first rule in mode whose anchor, ancestor chain, and
// predicate all match candidate. A predicate error is recorded but treated
// as non-matching for that rule, per spec's "only the XSLT rule matcher may
// recover" clause — the error is returned only if no other rule ultimately
// matches, so the caller can report it when apply-templates falls through
// to the built-in template rule having silently skipped a failing one.
func (mt *ModeTable) Dispatch(mode ModeId, candidate xnode.Node) (*Rule, error) {
	var lastErr error
	for _, r := range mt.modes[mode] {
		ok, err := r.Matches(candidate)
		if err != nil {
			lastErr = err
			continue
		}
		if ok {
			return r, nil
		}
	}
	return nil, lastErr
}
