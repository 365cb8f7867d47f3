package cpu

import "github.com/oyin-bo/mavity"

// reshuffle gathers the scratch state through the sort atlas into the current
// arrays. All three attributes of a destination slot come from the same
// source slot, so the (pid, mass, position, velocity) tuple stays intact.
func (e *Engine) reshuffle(offset int) {
	for i := 0; i < e.n; i++ {
		src := e.sourceSlot(i, offset)
		e.pos[i] = e.posScratch[src]
		e.vel[i] = e.velScratch[src]
		e.meta[i] = e.metaScratch[src]
	}
}

// identityMirror rebuilds the PID -> physical slot inverse map. Unassigned
// PIDs stay sentinel; with unique PIDs every write target is exclusive.
func (e *Engine) identityMirror() {
	for i := range e.identity {
		e.identity[i] = mavity.EmptySlot
	}
	for i := 0; i < e.n; i++ {
		e.identity[e.meta[i].PID] = uint32(i)
	}
}
