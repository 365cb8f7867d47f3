package gpu

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/oyin-bo/mavity"
)

// Staging layout: the six readable arrays packed back to back. Offsets are
// word-aligned already since every element is a multiple of 4 bytes.
func (e *Engine) stagingOffsets() (pos, vel, meta, ptr, store, identity, total int) {
	pos = 0
	vel = pos + e.n*16
	meta = vel + e.n*16
	ptr = meta + e.n*16
	store = ptr + (e.n+1)*4
	identity = store + e.e*4
	total = identity + e.n*4
	return
}

func (e *Engine) stagingSize() int {
	_, _, _, _, _, _, total := e.stagingOffsets()
	return total
}

// Snapshot copies the current state into the persistent staging buffer and
// maps it. The map wait is a blocking poll; snapshots are a diagnostic-path
// operation, not part of the tick loop.
func (e *Engine) Snapshot() (*mavity.Snapshot, error) {
	posOff, velOff, metaOff, ptrOff, storeOff, idOff, total := e.stagingOffsets()

	encoder, err := e.ctx.device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, fmt.Errorf("gpu: snapshot: create encoder: %w", err)
	}

	cur := e.flip
	encoder.CopyBufferToBuffer(e.posBuf, 0, e.staging, uint64(posOff), uint64(e.n*16))
	encoder.CopyBufferToBuffer(e.velBuf, 0, e.staging, uint64(velOff), uint64(e.n*16))
	encoder.CopyBufferToBuffer(e.metaBuf, 0, e.staging, uint64(metaOff), uint64(e.n*16))
	encoder.CopyBufferToBuffer(e.ptrBuf[cur], 0, e.staging, uint64(ptrOff), uint64((e.n+1)*4))
	if e.e > 0 {
		encoder.CopyBufferToBuffer(e.storeBuf[cur], 0, e.staging, uint64(storeOff), uint64(e.e*4))
	}
	encoder.CopyBufferToBuffer(e.identityBuf, 0, e.staging, uint64(idOff), uint64(e.n*4))

	cmd, err := encoder.Finish(nil)
	if err != nil {
		return nil, fmt.Errorf("gpu: snapshot: finish encoder: %w", err)
	}
	e.ctx.queue.Submit(cmd)

	var mapStatus wgpu.BufferMapAsyncStatus
	done := false
	err = e.staging.MapAsync(wgpu.MapModeRead, 0, uint64(total), func(status wgpu.BufferMapAsyncStatus) {
		mapStatus = status
		done = true
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: snapshot: map staging: %w", err)
	}
	for !done {
		e.ctx.device.Poll(true, nil)
	}
	if mapStatus != wgpu.BufferMapAsyncStatusSuccess {
		return nil, fmt.Errorf("gpu: snapshot: map staging: status %v", mapStatus)
	}
	defer e.staging.Unmap()

	data := e.staging.GetMappedRange(0, uint(total))

	s := &mavity.Snapshot{
		Pos:      make([]mgl32.Vec4, e.n),
		Vel:      make([]mgl32.Vec4, e.n),
		Meta:     make([]mavity.ParticleMeta, e.n),
		Ptr:      make([]uint32, e.n+1),
		Store:    make([]uint32, e.e),
		Identity: make([]uint32, e.n),
	}
	for i := 0; i < e.n; i++ {
		s.Pos[i] = vec4At(data, posOff+i*16)
		s.Vel[i] = vec4At(data, velOff+i*16)
		s.Meta[i] = mavity.ParticleMeta{
			PID:     u32At(data, metaOff+i*16),
			Mass:    f32At(data, metaOff+i*16+4),
			Tint:    f32At(data, metaOff+i*16+8),
			EdgePtr: u32At(data, metaOff+i*16+12),
		}
		s.Identity[i] = u32At(data, idOff+i*4)
	}
	for i := 0; i <= e.n; i++ {
		s.Ptr[i] = u32At(data, ptrOff+i*4)
	}
	for i := 0; i < e.e; i++ {
		s.Store[i] = u32At(data, storeOff+i*4)
	}
	return s, nil
}

func u32At(data []byte, off int) uint32 {
	return binary.LittleEndian.Uint32(data[off : off+4])
}

func f32At(data []byte, off int) float32 {
	return math.Float32frombits(u32At(data, off))
}

func vec4At(data []byte, off int) mgl32.Vec4 {
	return mgl32.Vec4{
		f32At(data, off),
		f32At(data, off+4),
		f32At(data, off+8),
		f32At(data, off+12),
	}
}
