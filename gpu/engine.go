package gpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/oyin-bo/mavity"
)

// Engine is the wgpu backend. Every buffer is allocated at construction;
// a tick is one command encoder carrying the seven kernel dispatches, and
// the CSR ping-pong swap is a host-side flip of which buffer pair the next
// tick's cached bind groups treat as "old".
type Engine struct {
	params  mavity.SimParams
	n, e    int
	coarseN int

	ctx *gpuContext

	// Particle state. Physics writes scratch, reshuffle gathers it back, so
	// the current arrays never change role.
	posBuf, posScratchBuf   *wgpu.Buffer
	velBuf, velScratchBuf   *wgpu.Buffer
	metaBuf, metaScratchBuf *wgpu.Buffer

	// CSR layout; index flip selects which pair member is "old" this tick.
	ptrBuf   [2]*wgpu.Buffer
	storeBuf [2]*wgpu.Buffer

	atlasBuf    *wgpu.Buffer
	identityBuf *wgpu.Buffer
	coarseBuf   *wgpu.Buffer
	scanBuf     [2]*wgpu.Buffer

	paramsBuf    *wgpu.Buffer
	scanPassBufs []*wgpu.Buffer
	staging      *wgpu.Buffer

	integratePipe      *wgpu.ComputePipeline
	sortPipe           *wgpu.ComputePipeline
	shufflePipe        *wgpu.ComputePipeline
	identityClearPipe  *wgpu.ComputePipeline
	identityMirrorPipe *wgpu.ComputePipeline
	countPipe          *wgpu.ComputePipeline
	scanPipe           *wgpu.ComputePipeline
	finalizePipe       *wgpu.ComputePipeline
	coarsePipe         *wgpu.ComputePipeline
	relocatePipe       *wgpu.ComputePipeline

	integrateBG [2]*wgpu.BindGroup
	sortBG      *wgpu.BindGroup
	shuffleBG   *wgpu.BindGroup
	idClearBG   *wgpu.BindGroup
	idMirrorBG  *wgpu.BindGroup
	countBG     [2]*wgpu.BindGroup
	scanBGs     []*wgpu.BindGroup
	finalizeBG  [2]*wgpu.BindGroup
	coarseBG    [2]*wgpu.BindGroup
	relocateBG  [2]*wgpu.BindGroup

	// scanFinal names the scan buffer holding the last pass's output; fixed
	// at construction because the pass count only depends on N.
	scanFinal int

	flip   int
	passes int
}

var _ mavity.Backend = (*Engine)(nil)

// New acquires a device and builds the full pipeline for the dataset.
// Compile/link or allocation failure here is fatal to construction; nothing
// is retried.
func New(ds *mavity.Dataset, p mavity.SimParams) (*Engine, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := ds.Validate(); err != nil {
		return nil, err
	}

	ctx, err := newGpuContext()
	if err != nil {
		return nil, err
	}

	n := ds.ParticleCount()
	e := ds.EdgeCount()
	eng := &Engine{
		params:  p,
		n:       n,
		e:       e,
		coarseN: coarseLen(e, p.EdgeCoarseMapStride),
		ctx:     ctx,
	}

	if err := eng.createBuffers(); err != nil {
		ctx.release()
		return nil, err
	}
	if err := eng.createPipelines(); err != nil {
		ctx.release()
		return nil, err
	}
	if err := eng.createBindGroups(); err != nil {
		ctx.release()
		return nil, err
	}
	eng.uploadDataset(ds)
	return eng, nil
}

func coarseLen(e, stride int) int {
	if e == 0 {
		return 1
	}
	return (e + stride - 1) / stride
}

// scanPassCount is the number of Hillis-Steele passes for n elements.
func scanPassCount(n int) int {
	k := 0
	for off := 1; off < n; off <<= 1 {
		k++
	}
	return k
}

func (e *Engine) createBuffers() error {
	n, ec := e.n, e.e
	var err error

	type alloc struct {
		buf   **wgpu.Buffer
		name  string
		bytes int
	}
	allocs := []alloc{
		{&e.posBuf, "PosBuf", n * 16},
		{&e.posScratchBuf, "PosScratchBuf", n * 16},
		{&e.velBuf, "VelBuf", n * 16},
		{&e.velScratchBuf, "VelScratchBuf", n * 16},
		{&e.metaBuf, "MetaBuf", n * 16},
		{&e.metaScratchBuf, "MetaScratchBuf", n * 16},
		{&e.ptrBuf[0], "PtrBufA", (n + 1) * 4},
		{&e.ptrBuf[1], "PtrBufB", (n + 1) * 4},
		{&e.storeBuf[0], "StoreBufA", ec * 4},
		{&e.storeBuf[1], "StoreBufB", ec * 4},
		{&e.atlasBuf, "AtlasBuf", n * 4},
		{&e.identityBuf, "IdentityBuf", n * 4},
		{&e.coarseBuf, "CoarseBuf", e.coarseN * 4},
		{&e.scanBuf[0], "ScanBufA", n * 4},
		{&e.scanBuf[1], "ScanBufB", n * 4},
	}
	for _, a := range allocs {
		if *a.buf, err = e.createStorage(a.name, a.bytes); err != nil {
			return err
		}
	}

	if e.paramsBuf, err = e.createUniform("SimParamsUB", 64); err != nil {
		return err
	}

	passes := scanPassCount(n)
	e.scanFinal = passes % 2
	e.scanPassBufs = make([]*wgpu.Buffer, passes)
	for i := range e.scanPassBufs {
		if e.scanPassBufs[i], err = e.createUniform(fmt.Sprintf("ScanPassUB%d", i), 16); err != nil {
			return err
		}
		buf := make([]byte, 16)
		putU32(buf, 0, uint32(1)<<i)
		putU32(buf, 4, uint32(n))
		e.ctx.queue.WriteBuffer(e.scanPassBufs[i], 0, buf)
	}

	e.staging, err = e.ctx.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "SnapshotStaging",
		Size:  uint64(e.stagingSize()),
		Usage: wgpu.BufferUsageCopyDst | wgpu.BufferUsageMapRead,
	})
	if err != nil {
		return fmt.Errorf("gpu: create SnapshotStaging: %w", err)
	}
	return nil
}

func (e *Engine) Name() string             { return "wgpu" }
func (e *Engine) Ticks() int               { return e.passes }
func (e *Engine) Params() mavity.SimParams { return e.params }

// Tick encodes and submits one full pass. Dispatches within the single
// compute pass are ordered, so no explicit fences are needed; each kernel
// samples buffers the previous one finished writing.
func (e *Engine) Tick() error {
	offset := (e.passes % 2) * (mavity.SortSpanSize / 2)
	chunks := 0
	if e.n > offset {
		chunks = (e.n - offset) / mavity.SortSpanSize
	}
	e.writeParams(offset, chunks)

	encoder, err := e.ctx.device.CreateCommandEncoder(nil)
	if err != nil {
		return fmt.Errorf("gpu: tick %d: create encoder: %w", e.passes, err)
	}

	f := e.flip
	groups := func(count int) uint32 { return uint32((count + 63) / 64) }

	pass := encoder.BeginComputePass(nil)

	pass.SetPipeline(e.integratePipe)
	pass.SetBindGroup(0, e.integrateBG[f], nil)
	pass.DispatchWorkgroups(groups(e.n), 1, 1)

	if chunks > 0 {
		pass.SetPipeline(e.sortPipe)
		pass.SetBindGroup(0, e.sortBG, nil)
		pass.DispatchWorkgroups(uint32(chunks), 1, 1)
	}

	pass.SetPipeline(e.shufflePipe)
	pass.SetBindGroup(0, e.shuffleBG, nil)
	pass.DispatchWorkgroups(groups(e.n), 1, 1)

	pass.SetPipeline(e.identityClearPipe)
	pass.SetBindGroup(0, e.idClearBG, nil)
	pass.DispatchWorkgroups(groups(e.n), 1, 1)

	pass.SetPipeline(e.identityMirrorPipe)
	pass.SetBindGroup(0, e.idMirrorBG, nil)
	pass.DispatchWorkgroups(groups(e.n), 1, 1)

	pass.SetPipeline(e.countPipe)
	pass.SetBindGroup(0, e.countBG[f], nil)
	pass.DispatchWorkgroups(groups(e.n), 1, 1)

	pass.SetPipeline(e.scanPipe)
	for _, bg := range e.scanBGs {
		pass.SetBindGroup(0, bg, nil)
		pass.DispatchWorkgroups(groups(e.n), 1, 1)
	}

	pass.SetPipeline(e.finalizePipe)
	pass.SetBindGroup(0, e.finalizeBG[f], nil)
	pass.DispatchWorkgroups(groups(e.n), 1, 1)

	pass.SetPipeline(e.coarsePipe)
	pass.SetBindGroup(0, e.coarseBG[f], nil)
	pass.DispatchWorkgroups(groups(e.coarseN), 1, 1)

	if e.e > 0 {
		pass.SetPipeline(e.relocatePipe)
		pass.SetBindGroup(0, e.relocateBG[f], nil)
		pass.DispatchWorkgroups(groups(e.e), 1, 1)
	}

	pass.End()

	cmd, err := encoder.Finish(nil)
	if err != nil {
		return fmt.Errorf("gpu: tick %d: finish encoder: %w", e.passes, err)
	}
	e.ctx.queue.Submit(cmd)

	e.flip = 1 - e.flip
	e.passes++
	return nil
}

// PositionBuffer exposes the live position buffer (xyz + SFC key per
// particle) so a rendering collaborator can bind it without a readback.
func (e *Engine) PositionBuffer() *wgpu.Buffer { return e.posBuf }

// VelocityBuffer exposes the live velocity buffer.
func (e *Engine) VelocityBuffer() *wgpu.Buffer { return e.velBuf }

// Device exposes the wgpu device for collaborators sharing the context.
func (e *Engine) Device() *wgpu.Device { return e.ctx.device }

// Close releases every GPU object. The engine is unusable afterwards.
func (e *Engine) Close() error {
	bufs := []*wgpu.Buffer{
		e.posBuf, e.posScratchBuf, e.velBuf, e.velScratchBuf,
		e.metaBuf, e.metaScratchBuf,
		e.ptrBuf[0], e.ptrBuf[1], e.storeBuf[0], e.storeBuf[1],
		e.atlasBuf, e.identityBuf, e.coarseBuf,
		e.scanBuf[0], e.scanBuf[1],
		e.paramsBuf, e.staging,
	}
	bufs = append(bufs, e.scanPassBufs...)
	for _, b := range bufs {
		if b != nil {
			b.Release()
		}
	}
	e.ctx.release()
	return nil
}
