// Package cpu is the reference backend: the same seven-stage pipeline the
// GPU shaders run, executed sequentially on slices. It exists to pin down
// kernel semantics, to back the property tests, and to run the layout on
// machines without a usable adapter.
package cpu

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/oyin-bo/mavity"
	"github.com/oyin-bo/mavity/sfc"
)

type Engine struct {
	params mavity.SimParams
	n, e   int

	// Current / scratch particle state. Physics writes scratch, reshuffle
	// gathers scratch back into current, so the current arrays never swap
	// roles.
	pos, posScratch   []mgl32.Vec4
	vel, velScratch   []mgl32.Vec4
	meta, metaScratch []mavity.ParticleMeta

	// CSR layout, ping-ponged every tick.
	ptr, ptrNew     []uint32
	store, storeNew []uint32

	atlas    []uint32
	identity []uint32
	scanA    []uint32
	scanB    []uint32
	coarse   []uint32

	// passes gates the rolling sort offset; kept explicit on the engine,
	// never process-global.
	passes int
}

var _ mavity.Backend = (*Engine)(nil)

// New allocates every array up front from the seed dataset. Nothing is
// allocated per tick afterwards.
func New(ds *mavity.Dataset, p mavity.SimParams) (*Engine, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := ds.Validate(); err != nil {
		return nil, err
	}

	n := ds.ParticleCount()
	e := ds.EdgeCount()

	eng := &Engine{
		params:      p,
		n:           n,
		e:           e,
		pos:         make([]mgl32.Vec4, n),
		posScratch:  make([]mgl32.Vec4, n),
		vel:         make([]mgl32.Vec4, n),
		velScratch:  make([]mgl32.Vec4, n),
		meta:        make([]mavity.ParticleMeta, n),
		metaScratch: make([]mavity.ParticleMeta, n),
		ptr:         make([]uint32, n+1),
		ptrNew:      make([]uint32, n+1),
		store:       make([]uint32, e),
		storeNew:    make([]uint32, e),
		atlas:       make([]uint32, n),
		identity:    make([]uint32, n),
		scanA:       make([]uint32, n),
		scanB:       make([]uint32, n),
		coarse:      make([]uint32, coarseLen(e, p.EdgeCoarseMapStride)),
	}

	pids := ds.EffectivePID()
	tints := ds.EffectiveTint()
	for i := 0; i < n; i++ {
		pp := ds.Pos[i]
		eng.pos[i] = mgl32.Vec4{pp.X(), pp.Y(), pp.Z(), sfc.Key(pp, p.SfcResolution)}
		vv := ds.Vel[i]
		eng.vel[i] = mgl32.Vec4{vv.X(), vv.Y(), vv.Z(), 0}
		eng.meta[i] = mavity.ParticleMeta{
			PID:     pids[i],
			Mass:    ds.Mass[i],
			Tint:    tints[i],
			EdgePtr: uint32(ds.Ptr[i]),
		}
	}
	for i := 0; i <= n; i++ {
		eng.ptr[i] = uint32(ds.Ptr[i])
	}
	for i := 0; i < e; i++ {
		if ds.Store[i] < 0 {
			eng.store[i] = mavity.EmptySlot
		} else {
			eng.store[i] = uint32(ds.Store[i])
		}
	}
	for i := range eng.identity {
		eng.identity[i] = mavity.EmptySlot
	}
	for i := 0; i < n; i++ {
		eng.identity[eng.meta[i].PID] = uint32(i)
	}
	return eng, nil
}

func coarseLen(e, stride int) int {
	if e == 0 {
		return 1
	}
	return (e + stride - 1) / stride
}

func (e *Engine) Name() string             { return "cpu" }
func (e *Engine) Ticks() int               { return e.passes }
func (e *Engine) Params() mavity.SimParams { return e.params }
func (e *Engine) Close() error             { return nil }

// Tick runs the seven stages in submission order, then swaps the CSR
// ping-pong pair.
func (e *Engine) Tick() error {
	offset := (e.passes % 2) * (mavity.SortSpanSize / 2)

	e.integrate()
	e.encodeChunks(offset)
	e.reshuffle(offset)
	e.identityMirror()
	e.csrCounts(offset)
	incl := e.csrScan()
	e.csrFinalize(offset, incl)
	e.buildCoarse()
	e.relocate(offset)

	e.ptr, e.ptrNew = e.ptrNew, e.ptr
	e.store, e.storeNew = e.storeNew, e.store
	e.passes++
	return nil
}

// Snapshot copies the current state. Never aliases engine storage.
func (e *Engine) Snapshot() (*mavity.Snapshot, error) {
	s := &mavity.Snapshot{
		Pos:      append([]mgl32.Vec4(nil), e.pos...),
		Vel:      append([]mgl32.Vec4(nil), e.vel...),
		Meta:     append([]mavity.ParticleMeta(nil), e.meta...),
		Ptr:      append([]uint32(nil), e.ptr...),
		Store:    append([]uint32(nil), e.store...),
		Identity: append([]uint32(nil), e.identity...),
	}
	return s, nil
}

// sourceSlot resolves the sort permutation: where new slot i gathered from.
// Slots outside the fully-sorted region (the leading offset gap and the
// trailing partial span) stay in place.
func (e *Engine) sourceSlot(i, offset int) int {
	rel := i - offset
	if rel < 0 {
		return i
	}
	chunk := rel / mavity.SortSpanSize
	if (chunk+1)*mavity.SortSpanSize > e.n-offset {
		return i
	}
	return chunk*mavity.SortSpanSize + offset + int(e.atlas[i])
}

func (e *Engine) String() string {
	return fmt.Sprintf("cpu engine: n=%d e=%d pass=%d", e.n, e.e, e.passes)
}
