package gpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/oyin-bo/mavity/gpu/shaders"
)

// createPipelines compiles every kernel. Layouts are derived from the shader
// bindings; compile or link failure is fatal at construction, and the wgpu
// validation layer includes the full source in its diagnostics.
func (e *Engine) createPipelines() error {
	type kernel struct {
		pipe  **wgpu.ComputePipeline
		label string
		code  string
		entry string
	}
	kernels := []kernel{
		{&e.integratePipe, "Integrate", shaders.IntegrateWGSL, "integrate"},
		{&e.sortPipe, "SortChunks", shaders.SortChunksWGSL, "sort_span"},
		{&e.shufflePipe, "Shuffle", shaders.ShuffleWGSL, "shuffle"},
		{&e.identityClearPipe, "IdentityClear", shaders.IdentityWGSL, "clear_identity"},
		{&e.identityMirrorPipe, "IdentityMirror", shaders.IdentityWGSL, "mirror_identity"},
		{&e.countPipe, "CSRCount", shaders.CSRWGSL, "count_edges"},
		{&e.scanPipe, "CSRScan", shaders.ScanWGSL, "scan_step"},
		{&e.finalizePipe, "CSRFinalize", shaders.CSRWGSL, "finalize"},
		{&e.coarsePipe, "CoarseMap", shaders.CoarseWGSL, "build_coarse"},
		{&e.relocatePipe, "Relocate", shaders.RelocateWGSL, "relocate"},
	}

	modules := map[string]*wgpu.ShaderModule{}
	for _, k := range kernels {
		module, ok := modules[k.code]
		if !ok {
			var err error
			module, err = e.ctx.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
				Label:          k.label + " CS",
				WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: k.code},
			})
			if err != nil {
				return fmt.Errorf("gpu: compile %s: %w", k.label, err)
			}
			modules[k.code] = module
		}

		pipe, err := e.ctx.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
			Label: k.label + " Pipeline",
			Compute: wgpu.ProgrammableStageDescriptor{
				Module:     module,
				EntryPoint: k.entry,
			},
		})
		if err != nil {
			return fmt.Errorf("gpu: pipeline %s: %w", k.label, err)
		}
		*k.pipe = pipe
	}

	for _, module := range modules {
		module.Release()
	}
	return nil
}

func (e *Engine) bindGroup(label string, pipe *wgpu.ComputePipeline, entries []wgpu.BindGroupEntry) (*wgpu.BindGroup, error) {
	bg, err := e.ctx.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   label,
		Layout:  pipe.GetBindGroupLayout(0),
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: bind group %s: %w", label, err)
	}
	return bg, nil
}

// createBindGroups caches every bind group up front. Kernels touching the
// CSR ping-pong pair get one variant per parity; the scan chain gets one
// cached group per pass, alternating the two scan buffers.
func (e *Engine) createBindGroups() error {
	var err error

	// f selects which ptr/store pair member is "old" for that parity.
	for f := 0; f < 2; f++ {
		old, next := f, 1-f

		e.integrateBG[f], err = e.bindGroup(fmt.Sprintf("Integrate%d", f), e.integratePipe, []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: e.paramsBuf, Size: wgpu.WholeSize},
			{Binding: 1, Buffer: e.posBuf, Size: wgpu.WholeSize},
			{Binding: 2, Buffer: e.velBuf, Size: wgpu.WholeSize},
			{Binding: 3, Buffer: e.metaBuf, Size: wgpu.WholeSize},
			{Binding: 4, Buffer: e.ptrBuf[old], Size: wgpu.WholeSize},
			{Binding: 5, Buffer: e.storeBuf[old], Size: wgpu.WholeSize},
			{Binding: 6, Buffer: e.posScratchBuf, Size: wgpu.WholeSize},
			{Binding: 7, Buffer: e.velScratchBuf, Size: wgpu.WholeSize},
			{Binding: 8, Buffer: e.metaScratchBuf, Size: wgpu.WholeSize},
		})
		if err != nil {
			return err
		}

		e.countBG[f], err = e.bindGroup(fmt.Sprintf("CSRCount%d", f), e.countPipe, []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: e.paramsBuf, Size: wgpu.WholeSize},
			{Binding: 1, Buffer: e.ptrBuf[old], Size: wgpu.WholeSize},
			{Binding: 2, Buffer: e.atlasBuf, Size: wgpu.WholeSize},
			{Binding: 3, Buffer: e.scanBuf[0], Size: wgpu.WholeSize},
		})
		if err != nil {
			return err
		}

		e.finalizeBG[f], err = e.bindGroup(fmt.Sprintf("CSRFinalize%d", f), e.finalizePipe, []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: e.paramsBuf, Size: wgpu.WholeSize},
			{Binding: 1, Buffer: e.ptrBuf[old], Size: wgpu.WholeSize},
			{Binding: 2, Buffer: e.atlasBuf, Size: wgpu.WholeSize},
			{Binding: 4, Buffer: e.scanBuf[e.scanFinal], Size: wgpu.WholeSize},
			{Binding: 5, Buffer: e.ptrBuf[next], Size: wgpu.WholeSize},
			{Binding: 6, Buffer: e.metaBuf, Size: wgpu.WholeSize},
		})
		if err != nil {
			return err
		}

		e.coarseBG[f], err = e.bindGroup(fmt.Sprintf("CoarseMap%d", f), e.coarsePipe, []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: e.paramsBuf, Size: wgpu.WholeSize},
			{Binding: 1, Buffer: e.ptrBuf[next], Size: wgpu.WholeSize},
			{Binding: 2, Buffer: e.coarseBuf, Size: wgpu.WholeSize},
		})
		if err != nil {
			return err
		}

		e.relocateBG[f], err = e.bindGroup(fmt.Sprintf("Relocate%d", f), e.relocatePipe, []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: e.paramsBuf, Size: wgpu.WholeSize},
			{Binding: 1, Buffer: e.ptrBuf[old], Size: wgpu.WholeSize},
			{Binding: 2, Buffer: e.ptrBuf[next], Size: wgpu.WholeSize},
			{Binding: 3, Buffer: e.storeBuf[old], Size: wgpu.WholeSize},
			{Binding: 4, Buffer: e.storeBuf[next], Size: wgpu.WholeSize},
			{Binding: 5, Buffer: e.coarseBuf, Size: wgpu.WholeSize},
			{Binding: 6, Buffer: e.atlasBuf, Size: wgpu.WholeSize},
			{Binding: 7, Buffer: e.metaScratchBuf, Size: wgpu.WholeSize},
			{Binding: 8, Buffer: e.identityBuf, Size: wgpu.WholeSize},
		})
		if err != nil {
			return err
		}
	}

	e.sortBG, err = e.bindGroup("SortChunks", e.sortPipe, []wgpu.BindGroupEntry{
		{Binding: 0, Buffer: e.paramsBuf, Size: wgpu.WholeSize},
		{Binding: 1, Buffer: e.posScratchBuf, Size: wgpu.WholeSize},
		{Binding: 2, Buffer: e.atlasBuf, Size: wgpu.WholeSize},
	})
	if err != nil {
		return err
	}

	e.shuffleBG, err = e.bindGroup("Shuffle", e.shufflePipe, []wgpu.BindGroupEntry{
		{Binding: 0, Buffer: e.paramsBuf, Size: wgpu.WholeSize},
		{Binding: 1, Buffer: e.posScratchBuf, Size: wgpu.WholeSize},
		{Binding: 2, Buffer: e.velScratchBuf, Size: wgpu.WholeSize},
		{Binding: 3, Buffer: e.metaScratchBuf, Size: wgpu.WholeSize},
		{Binding: 4, Buffer: e.atlasBuf, Size: wgpu.WholeSize},
		{Binding: 5, Buffer: e.posBuf, Size: wgpu.WholeSize},
		{Binding: 6, Buffer: e.velBuf, Size: wgpu.WholeSize},
		{Binding: 7, Buffer: e.metaBuf, Size: wgpu.WholeSize},
	})
	if err != nil {
		return err
	}

	e.idClearBG, err = e.bindGroup("IdentityClear", e.identityClearPipe, []wgpu.BindGroupEntry{
		{Binding: 0, Buffer: e.paramsBuf, Size: wgpu.WholeSize},
		{Binding: 2, Buffer: e.identityBuf, Size: wgpu.WholeSize},
	})
	if err != nil {
		return err
	}

	e.idMirrorBG, err = e.bindGroup("IdentityMirror", e.identityMirrorPipe, []wgpu.BindGroupEntry{
		{Binding: 0, Buffer: e.paramsBuf, Size: wgpu.WholeSize},
		{Binding: 1, Buffer: e.metaBuf, Size: wgpu.WholeSize},
		{Binding: 2, Buffer: e.identityBuf, Size: wgpu.WholeSize},
	})
	if err != nil {
		return err
	}

	passes := len(e.scanPassBufs)
	e.scanBGs = make([]*wgpu.BindGroup, passes)
	for i := 0; i < passes; i++ {
		e.scanBGs[i], err = e.bindGroup(fmt.Sprintf("ScanPass%d", i), e.scanPipe, []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: e.scanPassBufs[i], Size: wgpu.WholeSize},
			{Binding: 1, Buffer: e.scanBuf[i%2], Size: wgpu.WholeSize},
			{Binding: 2, Buffer: e.scanBuf[1-i%2], Size: wgpu.WholeSize},
		})
		if err != nil {
			return err
		}
	}
	return nil
}
