package cpu

import "github.com/oyin-bo/mavity"

// relocateWalkBound caps the forward walk from the coarse owner guess. The
// stride keeps the true distance at or under one coarse cell.
const relocateWalkBound = 256

// csrCounts seeds the scan buffer: for each new slot, the edge count its
// particle had in the old layout. The count is re-derived from the old ptr
// pair rather than carried in a separate array; finalize repeats the same
// derivation.
func (e *Engine) csrCounts(offset int) {
	for i := 0; i < e.n; i++ {
		old := e.sourceSlot(i, offset)
		e.scanA[i] = e.ptr[old+1] - e.ptr[old]
	}
}

// csrScan runs a Hillis-Steele inclusive prefix sum over the counts,
// ping-ponging between the two scan buffers. Returns whichever buffer holds
// the final pass.
func (e *Engine) csrScan() []uint32 {
	src, dst := e.scanA, e.scanB
	for offset := 1; offset < e.n; offset <<= 1 {
		for i := 0; i < e.n; i++ {
			v := src[i]
			if i >= offset {
				v += src[i-offset]
			}
			dst[i] = v
		}
		src, dst = dst, src
	}
	return src
}

// csrFinalize converts the inclusive sums to exclusive start offsets and
// writes the N sentinel. It also refreshes each particle's cached edge
// pointer to its new start.
func (e *Engine) csrFinalize(offset int, inclusive []uint32) {
	for i := 0; i < e.n; i++ {
		old := e.sourceSlot(i, offset)
		count := e.ptr[old+1] - e.ptr[old]
		e.ptrNew[i] = inclusive[i] - count
		e.meta[i].EdgePtr = e.ptrNew[i]
	}
	e.ptrNew[e.n] = inclusive[e.n-1]
}

// buildCoarse samples the new CSR offsets every stride edges: coarse[k] is
// the particle owning edge k*stride, found by binary search for the largest
// p with ptrNew[p] <= k*stride.
func (e *Engine) buildCoarse() {
	stride := uint32(e.params.EdgeCoarseMapStride)
	for k := range e.coarse {
		t := uint32(k) * stride
		lo, hi := 0, e.n-1
		for lo < hi {
			mid := (lo + hi + 1) / 2
			if e.ptrNew[mid] <= t {
				lo = mid
			} else {
				hi = mid - 1
			}
		}
		e.coarse[k] = uint32(lo)
	}
}

// relocate rewrites the edge store into the new layout. Each new edge index
// finds its owner from the coarse guess, recovers the matching old edge, and
// translates the old target slot through PID to its new slot.
func (e *Engine) relocate(offset int) {
	stride := uint32(e.params.EdgeCoarseMapStride)
	for eNew := uint32(0); eNew < uint32(e.e); eNew++ {
		p := e.coarse[eNew/stride]
		for step := 0; step < relocateWalkBound && eNew >= e.ptrNew[p+1]; step++ {
			p++
		}

		local := eNew - e.ptrNew[p]
		old := e.sourceSlot(int(p), offset)
		eOld := e.ptr[old] + local

		tOld := e.store[eOld]
		if tOld == mavity.EmptySlot {
			e.storeNew[eNew] = mavity.EmptySlot
			continue
		}
		pid := e.metaScratch[tOld].PID
		e.storeNew[eNew] = e.identity[pid]
	}
}
