package gpu

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/oyin-bo/mavity"
	"github.com/oyin-bo/mavity/sfc"
)

// createStorage allocates a storage buffer of at least 4 bytes; wgpu refuses
// zero-sized buffers, so empty arrays get a dummy word.
func (e *Engine) createStorage(name string, bytes int) (*wgpu.Buffer, error) {
	if bytes < 4 {
		bytes = 4
	}
	buf, err := e.ctx.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: name,
		Size:  uint64(bytes),
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst | wgpu.BufferUsageCopySrc,
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: create %s: %w", name, err)
	}
	return buf, nil
}

func (e *Engine) createUniform(name string, bytes int) (*wgpu.Buffer, error) {
	buf, err := e.ctx.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: name,
		Size:  uint64(bytes),
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: create %s: %w", name, err)
	}
	return buf, nil
}

func putF32(buf []byte, off int, v float32) {
	binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(v))
}

func putU32(buf []byte, off int, v uint32) {
	binary.LittleEndian.PutUint32(buf[off:], v)
}

// writeParams refreshes the per-tick uniform block. Layout mirrors the
// SimParams struct declared by every kernel except the scan step, which
// reads its own per-pass uniform.
func (e *Engine) writeParams(sortOffset, chunkCount int) {
	p := e.params
	buf := make([]byte, 64)
	putF32(buf, 0, p.Dt)
	putF32(buf, 4, p.G)
	putF32(buf, 8, p.SpringK)
	putF32(buf, 12, p.Eps)
	putF32(buf, 16, p.Damping)
	putF32(buf, 20, float32(sfc.GridSide(p.SfcResolution)))
	putF32(buf, 24, p.BoundaryK)
	putF32(buf, 28, p.BoundaryRadius)
	putU32(buf, 32, uint32(p.GravityWindow))
	putU32(buf, 36, uint32(e.n))
	putU32(buf, 40, uint32(e.e))
	putU32(buf, 44, uint32(sortOffset))
	putU32(buf, 48, uint32(p.EdgeCoarseMapStride))
	putU32(buf, 52, mavity.SortSpanSize)
	putU32(buf, 56, uint32(chunkCount))
	putU32(buf, 60, uint32(e.coarseN))
	e.ctx.queue.WriteBuffer(e.paramsBuf, 0, buf)
}

// uploadDataset packs and writes the seed arrays. Initial SFC keys and the
// initial identity map are computed host-side; the first tick recomputes
// both anyway.
func (e *Engine) uploadDataset(ds *mavity.Dataset) {
	n := e.n

	pids := ds.EffectivePID()
	tints := ds.EffectiveTint()

	pos := make([]byte, n*16)
	vel := make([]byte, n*16)
	meta := make([]byte, n*16)
	for i := 0; i < n; i++ {
		p := ds.Pos[i]
		putF32(pos, i*16+0, p.X())
		putF32(pos, i*16+4, p.Y())
		putF32(pos, i*16+8, p.Z())
		putF32(pos, i*16+12, sfc.Key(p, e.params.SfcResolution))

		v := ds.Vel[i]
		putF32(vel, i*16+0, v.X())
		putF32(vel, i*16+4, v.Y())
		putF32(vel, i*16+8, v.Z())

		putU32(meta, i*16+0, pids[i])
		putF32(meta, i*16+4, ds.Mass[i])
		putF32(meta, i*16+8, tints[i])
		putU32(meta, i*16+12, uint32(ds.Ptr[i]))
	}
	e.ctx.queue.WriteBuffer(e.posBuf, 0, pos)
	e.ctx.queue.WriteBuffer(e.velBuf, 0, vel)
	e.ctx.queue.WriteBuffer(e.metaBuf, 0, meta)

	ptr := make([]byte, (n+1)*4)
	for i := 0; i <= n; i++ {
		putU32(ptr, i*4, uint32(ds.Ptr[i]))
	}
	e.ctx.queue.WriteBuffer(e.ptrBuf[0], 0, ptr)

	if e.e > 0 {
		store := make([]byte, e.e*4)
		for i, t := range ds.Store {
			if t < 0 {
				putU32(store, i*4, mavity.EmptySlot)
			} else {
				putU32(store, i*4, uint32(t))
			}
		}
		e.ctx.queue.WriteBuffer(e.storeBuf[0], 0, store)
	}

	identity := make([]byte, n*4)
	for i := range identity {
		identity[i] = 0xFF
	}
	for i := 0; i < n; i++ {
		putU32(identity, int(pids[i])*4, uint32(i))
	}
	e.ctx.queue.WriteBuffer(e.identityBuf, 0, identity)
}
