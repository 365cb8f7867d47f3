package cpu

import "github.com/oyin-bo/mavity"

// encodeChunks sorts each full span of 128 slots by the fresh SFC keys in the
// scratch positions and records the permutation in the atlas. Only spans that
// fit entirely inside [offset, n) are encoded; the reshuffle treats the rest
// as identity.
func (e *Engine) encodeChunks(offset int) {
	const c = mavity.SortSpanSize
	chunks := 0
	if e.n > offset {
		chunks = (e.n - offset) / c
	}

	var keys [c]float32
	var idx [c]uint32

	for k := 0; k < chunks; k++ {
		base := k*c + offset
		for l := 0; l < c; l++ {
			keys[l] = e.posScratch[base+l].W()
			idx[l] = uint32(l)
		}
		bitonicSort(&keys, &idx)
		for l := 0; l < c; l++ {
			e.atlas[base+l] = idx[l]
		}
	}
}

// bitonicSort orders 128 (key, index) pairs ascending, ties broken by the
// original index. Mirrors the workgroup-shared-memory network the GPU runs:
// same compare-exchange sequence, same tie rule.
func bitonicSort(keys *[mavity.SortSpanSize]float32, idx *[mavity.SortSpanSize]uint32) {
	const c = mavity.SortSpanSize
	for size := 2; size <= c; size <<= 1 {
		for stride := size >> 1; stride > 0; stride >>= 1 {
			for i := 0; i < c; i++ {
				j := i ^ stride
				if j <= i {
					continue
				}
				ascending := i&size == 0
				if pairLess(keys[j], idx[j], keys[i], idx[i]) == ascending {
					keys[i], keys[j] = keys[j], keys[i]
					idx[i], idx[j] = idx[j], idx[i]
				}
			}
		}
	}
}

func pairLess(ka float32, ia uint32, kb float32, ib uint32) bool {
	if ka != kb {
		return ka < kb
	}
	return ia < ib
}
