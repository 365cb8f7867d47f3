// Package diag holds the diagnostic collaborators: the tick invariant
// checker, layout statistics, and debug frame plates. Nothing here runs
// unless attached; the engine stays silent by default.
package diag

import (
	"fmt"

	"github.com/oyin-bo/mavity"
)

// Check verifies the cross-stage invariants between two consecutive
// snapshots. prev may be nil, in which case only the single-snapshot
// invariants of next are checked. The returned errors are findings, not a
// stop signal: a violation means a kernel corrupted state this tick.
func Check(prev, next *mavity.Snapshot, p mavity.SimParams) []error {
	var errs []error
	errs = append(errs, checkCSR(next)...)
	errs = append(errs, checkIdentity(next)...)
	errs = append(errs, checkSpanOrder(next, p)...)
	if prev != nil {
		errs = append(errs, checkPermutation(prev, next)...)
		errs = append(errs, checkEdgeSet(prev, next)...)
	}
	return errs
}

// checkCSR: ptr monotone non-decreasing, ptr[0] = 0, ptr[N] = E.
func checkCSR(s *mavity.Snapshot) []error {
	var errs []error
	n := s.N()
	if s.Ptr[0] != 0 {
		errs = append(errs, fmt.Errorf("csr: ptr[0] = %d, want 0", s.Ptr[0]))
	}
	if s.Ptr[n] != uint32(s.E()) {
		errs = append(errs, fmt.Errorf("csr: ptr[%d] = %d, want edge count %d", n, s.Ptr[n], s.E()))
	}
	for i := 0; i < n; i++ {
		if s.Ptr[i] > s.Ptr[i+1] {
			errs = append(errs, fmt.Errorf("csr: ptr not monotone at %d: %d > %d", i, s.Ptr[i], s.Ptr[i+1]))
			break
		}
	}
	for i, t := range s.Store {
		if t != mavity.EmptySlot && t >= uint32(n) {
			errs = append(errs, fmt.Errorf("csr: edge %d targets invalid slot %d", i, t))
			break
		}
	}
	return errs
}

// checkIdentity: identity[PID(slot i)] == i for every live slot.
func checkIdentity(s *mavity.Snapshot) []error {
	var errs []error
	for i, m := range s.Meta {
		if int(m.PID) >= len(s.Identity) {
			errs = append(errs, fmt.Errorf("identity: slot %d carries pid %d outside map", i, m.PID))
			continue
		}
		if s.Identity[m.PID] != uint32(i) {
			errs = append(errs, fmt.Errorf("identity: identity[%d] = %d, want slot %d", m.PID, s.Identity[m.PID], i))
		}
	}
	return errs
}

// checkPermutation: the PID multiset is preserved across the tick, i.e. the
// reshuffle permuted particles rather than rewriting them.
func checkPermutation(prev, next *mavity.Snapshot) []error {
	if prev.N() != next.N() {
		return []error{fmt.Errorf("permutation: particle count changed %d -> %d", prev.N(), next.N())}
	}
	seen := make(map[uint32]int, prev.N())
	for _, m := range prev.Meta {
		seen[m.PID]++
	}
	for _, m := range next.Meta {
		seen[m.PID]--
	}
	for pid, c := range seen {
		if c != 0 {
			return []error{fmt.Errorf("permutation: pid %d count off by %d", pid, -c)}
		}
	}
	return nil
}

// checkEdgeSet: the multiset of (owner PID, target PID) pairs is preserved
// under relocation. Sentinel entries carry no pair.
func checkEdgeSet(prev, next *mavity.Snapshot) []error {
	before := edgePairs(prev)
	after := edgePairs(next)
	if len(before) != len(after) {
		return []error{fmt.Errorf("edges: live edge count changed %d -> %d", len(before), len(after))}
	}
	counts := make(map[[2]uint32]int, len(before))
	for _, pr := range before {
		counts[pr]++
	}
	for _, pr := range after {
		counts[pr]--
	}
	for pr, c := range counts {
		if c != 0 {
			return []error{fmt.Errorf("edges: pair (%d -> %d) count off by %d", pr[0], pr[1], -c)}
		}
	}
	return nil
}

// edgePairs lists the logical edge set as (owner PID, target PID) pairs.
func edgePairs(s *mavity.Snapshot) [][2]uint32 {
	pairs := make([][2]uint32, 0, s.E())
	for i := 0; i < s.N(); i++ {
		for idx := s.Ptr[i]; idx < s.Ptr[i+1]; idx++ {
			t := s.Store[idx]
			if t == mavity.EmptySlot {
				continue
			}
			pairs = append(pairs, [2]uint32{s.Meta[i].PID, s.Meta[t].PID})
		}
	}
	return pairs
}

// checkSpanOrder: within every fully-sorted span the SFC keys ascend, for at
// least one of the two span phasings (0 or half a span).
func checkSpanOrder(s *mavity.Snapshot, p mavity.SimParams) []error {
	// A snapshot does not carry the tick parity, so accept either offset:
	// the keys must ascend for at least one of the two span phasings.
	if spanOrderHolds(s, 0) || spanOrderHolds(s, mavity.SortSpanSize/2) {
		return nil
	}
	return []error{fmt.Errorf("sort: no span phasing yields ascending SFC keys")}
}

func spanOrderHolds(s *mavity.Snapshot, offset int) bool {
	const c = mavity.SortSpanSize
	n := s.N()
	chunks := 0
	if n > offset {
		chunks = (n - offset) / c
	}
	for k := 0; k < chunks; k++ {
		base := k*c + offset
		for l := 1; l < c; l++ {
			if s.Pos[base+l].W() < s.Pos[base+l-1].W() {
				return false
			}
		}
	}
	return true
}
