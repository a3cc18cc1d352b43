package lif

import (
	"fmt"
	"math"
	"sort"

	"github.com/chewxy/math32"
	"golang.org/x/sync/errgroup"

	"github.com/nvandessel/spikeloop/internal/engine"
	"github.com/nvandessel/spikeloop/internal/models"
)

// minChunk is the smallest neuron range handed to a worker goroutine.
const minChunk = 256

type synapse struct {
	target int32
	weight float32
	delay  int32 // timesteps
}

// Projection implements engine.Projection.
type Projection struct {
	src, dst *Population
	receptor engine.Receptor
	syn      [][]synapse // indexed by source neuron
	n        int
}

func (p *Projection) Source() engine.Population { return p.src }
func (p *Projection) Target() engine.Population { return p.dst }
func (p *Projection) Size() int                 { return p.n }

// Population implements engine.Population.
type Population struct {
	sim    *Simulator
	label  string
	cell   engine.CellType
	params engine.CellParams
	size   int

	// integrate-and-fire state
	v, ge, gi  []float32
	refracEnd  []int64 // last clamped timestep, -1 when free
	decE, decI float32
	refracN    int64

	// pending synaptic input, [slot][neuron]
	inE, inI [][]float32

	// spike source state
	times  [][]float64
	cursor []int

	recordSpikes bool
	recordV      []bool
	spikes       []models.Spike
	samples      []models.Sample

	out []*Projection
}

func newPopulation(s *Simulator, size int, cell engine.CellType, params engine.CellParams, label string) *Population {
	p := &Population{sim: s, label: label, cell: cell, params: params, size: size}
	if cell == engine.SpikeSourceArray {
		p.times = make([][]float64, size)
		p.cursor = make([]int, size)
		return p
	}

	dt := s.cfg.Timestep
	p.v = make([]float32, size)
	p.ge = make([]float32, size)
	p.gi = make([]float32, size)
	p.refracEnd = make([]int64, size)
	for i := range p.v {
		p.v[i] = float32(params.VRest)
		p.refracEnd[i] = -1
	}
	p.decE = decay(dt, params.TauSynE)
	p.decI = decay(dt, params.TauSynI)
	p.refracN = int64(math.Round(params.TauRefrac / dt))
	return p
}

func decay(dt, tau float64) float32 {
	if tau <= 0 {
		return 0
	}
	return math32.Exp(-float32(dt / tau))
}

// Label implements engine.Population.
func (p *Population) Label() string { return p.label }

// Size implements engine.Population.
func (p *Population) Size() int { return p.size }

// Initialize implements engine.Population. Only "v" is supported.
func (p *Population) Initialize(variable string, init engine.Initializer) error {
	if err := p.sim.usable(); err != nil {
		return engine.Fail("initialize", err)
	}
	if variable != "v" {
		return engine.Fail("initialize", fmt.Errorf("population %q: unsupported variable %q", p.label, variable))
	}
	if p.cell == engine.SpikeSourceArray {
		return engine.Fail("initialize", fmt.Errorf("population %q: spike sources have no membrane voltage", p.label))
	}
	vals, err := init.Values(p.size)
	if err != nil {
		return engine.Fail("initialize", fmt.Errorf("population %q: %w", p.label, err))
	}
	for i, v := range vals {
		p.v[i] = float32(v)
	}
	return nil
}

// Record implements engine.Population.
func (p *Population) Record() error {
	if err := p.sim.usable(); err != nil {
		return engine.Fail("record", err)
	}
	p.recordSpikes = true
	return nil
}

// RecordV implements engine.Population.
func (p *Population) RecordV(ids ...int) error {
	if err := p.sim.usable(); err != nil {
		return engine.Fail("record_v", err)
	}
	if p.cell == engine.SpikeSourceArray {
		return engine.Fail("record_v", fmt.Errorf("population %q: spike sources have no membrane voltage", p.label))
	}
	if p.recordV == nil {
		p.recordV = make([]bool, p.size)
	}
	if len(ids) == 0 {
		for i := range p.recordV {
			p.recordV[i] = true
		}
		return nil
	}
	for _, id := range ids {
		if id < 0 || id >= p.size {
			return engine.Fail("record_v", fmt.Errorf("population %q: neuron %d out of range [0, %d)", p.label, id, p.size))
		}
		p.recordV[id] = true
	}
	return nil
}

// SetSpikeTimes implements engine.Population. Times already in the past
// are dropped; the previous contents of every neuron are replaced.
func (p *Population) SetSpikeTimes(times [][]float64) error {
	if err := p.sim.usable(); err != nil {
		return engine.Fail("set_spike_times", err)
	}
	if p.cell != engine.SpikeSourceArray {
		return engine.Fail("set_spike_times", fmt.Errorf("population %q: %w", p.label, engine.ErrNotSpikeSource))
	}
	if len(times) > p.size {
		return engine.Fail("set_spike_times", fmt.Errorf("population %q: %d spike lists for %d neurons", p.label, len(times), p.size))
	}

	now := p.sim.Now()
	for i := 0; i < p.size; i++ {
		var ts []float64
		if i < len(times) {
			ts = append([]float64(nil), times[i]...)
			sort.Float64s(ts)
		}
		p.times[i] = ts
		p.cursor[i] = sort.SearchFloat64s(ts, now)
	}
	return nil
}

// Spikes implements engine.Population.
func (p *Population) Spikes() ([]models.Spike, error) {
	if p.sim.ended {
		return nil, engine.Fail("get_spikes", errEnded)
	}
	if !p.recordSpikes {
		return nil, engine.Fail("get_spikes", fmt.Errorf("population %q is not recording spikes", p.label))
	}
	out := make([]models.Spike, len(p.spikes))
	copy(out, p.spikes)
	return out, nil
}

// Voltages implements engine.Population. The newest sample comes first.
func (p *Population) Voltages() ([]models.Sample, error) {
	if p.sim.ended {
		return nil, engine.Fail("get_v", errEnded)
	}
	if p.recordV == nil {
		return nil, engine.Fail("get_v", fmt.Errorf("population %q is not recording voltage", p.label))
	}
	n := len(p.samples)
	out := make([]models.Sample, n)
	for i, s := range p.samples {
		out[n-1-i] = s
	}
	return out, nil
}

func (p *Population) allocRing(n int) {
	if p.cell == engine.SpikeSourceArray {
		return
	}
	p.inE = make([][]float32, n)
	p.inI = make([][]float32, n)
	for i := 0; i < n; i++ {
		p.inE[i] = make([]float32, p.size)
		p.inI[i] = make([]float32, p.size)
	}
}

func (p *Population) release() {
	p.v, p.ge, p.gi, p.inE, p.inI = nil, nil, nil, nil, nil
	p.times, p.cursor, p.out = nil, nil, nil
}

// chunkResult collects what one worker produced for its neuron range.
type chunkResult struct {
	fired   []int
	spikes  []models.Spike
	samples []models.Sample
}

// update advances the population by one timestep starting at time t and
// returns the indices of neurons that fired, in ascending order.
func (p *Population) update(step int64, t, dt float64, threads int) ([]int, error) {
	if p.cell == engine.SpikeSourceArray {
		res := p.emit(t, dt)
		p.spikes = append(p.spikes, res.spikes...)
		return res.fired, nil
	}

	slot := int(step % int64(len(p.inE)))
	chunks := splitRange(p.size, threads)
	results := make([]chunkResult, len(chunks))

	if len(chunks) == 1 {
		results[0] = p.integrate(step, t, dt, slot, 0, p.size)
	} else {
		var g errgroup.Group
		for c, r := range chunks {
			g.Go(func() error {
				results[c] = p.integrate(step, t, dt, slot, r[0], r[1])
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	var fired []int
	for _, r := range results {
		fired = append(fired, r.fired...)
		p.spikes = append(p.spikes, r.spikes...)
		p.samples = append(p.samples, r.samples...)
	}
	for i := range p.inE[slot] {
		p.inE[slot][i] = 0
		p.inI[slot][i] = 0
	}
	return fired, nil
}

// integrate runs one Euler step for neurons [lo, hi). The voltage sample
// is the state at the start of the step; a spike is stamped at its end.
func (p *Population) integrate(step int64, t, dt float64, slot, lo, hi int) chunkResult {
	var res chunkResult
	prm := &p.params
	fdt := float32(dt)
	vRest, vReset, vThresh := float32(prm.VRest), float32(prm.VReset), float32(prm.VThresh)
	tauM, cm, iOff := float32(prm.TauM), float32(prm.Cm), float32(prm.IOffset)
	eRevE, eRevI := float32(prm.ERevE), float32(prm.ERevI)

	for i := lo; i < hi; i++ {
		p.ge[i] += p.inE[slot][i]
		p.gi[i] += p.inI[slot][i]

		if p.recordV != nil && p.recordV[i] {
			res.samples = append(res.samples, models.Sample{Neuron: i, Time: t, Value: float64(p.v[i])})
		}

		if step <= p.refracEnd[i] {
			p.v[i] = vReset
		} else {
			var isyn float32
			if p.cell == engine.IFCondExp {
				isyn = p.ge[i]*(eRevE-p.v[i]) + p.gi[i]*(eRevI-p.v[i])
			} else {
				isyn = p.ge[i] + p.gi[i]
			}
			p.v[i] += fdt * ((vRest-p.v[i])/tauM + (isyn+iOff)/cm)
			if p.v[i] >= vThresh {
				p.v[i] = vReset
				p.refracEnd[i] = step + p.refracN
				res.fired = append(res.fired, i)
				if p.recordSpikes {
					res.spikes = append(res.spikes, models.Spike{Neuron: i, Time: t + dt})
				}
			}
		}

		p.ge[i] *= p.decE
		p.gi[i] *= p.decI
	}
	return res
}

// emit fires every source neuron with a scheduled time in [t, t+dt).
func (p *Population) emit(t, dt float64) chunkResult {
	var res chunkResult
	end := t + dt
	for i := 0; i < p.size; i++ {
		ts := p.times[i]
		fired := false
		for p.cursor[i] < len(ts) && ts[p.cursor[i]] < end {
			at := ts[p.cursor[i]]
			p.cursor[i]++
			if at < t {
				continue
			}
			if !fired {
				res.fired = append(res.fired, i)
				fired = true
			}
			if p.recordSpikes {
				res.spikes = append(res.spikes, models.Spike{Neuron: i, Time: at})
			}
		}
	}
	return res
}

// deliver schedules the synaptic effect of this step's spikes.
func (p *Population) deliver(step int64, fired []int, ringLen int) {
	for _, proj := range p.out {
		dst := proj.dst
		buf := dst.inE
		if proj.receptor == engine.Inhibitory {
			buf = dst.inI
		}
		for _, i := range fired {
			for _, syn := range proj.syn[i] {
				slot := int((step + int64(syn.delay)) % int64(ringLen))
				buf[slot][syn.target] += syn.weight
			}
		}
	}
}

// splitRange divides [0, n) into at most threads contiguous ranges.
func splitRange(n, threads int) [][2]int {
	if threads < 1 {
		threads = 1
	}
	if limit := (n + minChunk - 1) / minChunk; threads > limit {
		threads = limit
	}
	if threads <= 1 {
		return [][2]int{{0, n}}
	}
	ranges := make([][2]int, 0, threads)
	size := (n + threads - 1) / threads
	for lo := 0; lo < n; lo += size {
		hi := lo + size
		if hi > n {
			hi = n
		}
		ranges = append(ranges, [2]int{lo, hi})
	}
	return ranges
}
