package network

import (
	"math"

	"github.com/nvandessel/spikeloop/internal/engine"
	"github.com/nvandessel/spikeloop/internal/models"
	"github.com/nvandessel/spikeloop/internal/render"
)

// VA preset constants: a current-based balanced network.
const (
	vaCells    = 4000
	vaRatioEI  = 4.0 // excitatory:inhibitory
	vaPConn    = 0.02
	vaTimestep = 1.0 // ms
	vaDelay    = 2.0 // ms
	vaSeed     = 98765
	vaTraced   = 5
	vaMargin   = 2.0 // mV

	vaArea       = 20000e-8 // cm^2
	vaSpecificCm = 1.0      // uF/cm^2
	vaVMean      = -60.0    // mV, used to derive current weights
	vaGExc       = 0.27     // nS
	vaGInh       = 4.5      // nS
	vaERevE      = 0.0      // mV
	vaERevI      = -80.0    // mV
)

// VASizes returns the excitatory and inhibitory population sizes.
func VASizes() (nExc, nInh int) {
	nExc = int(math.Round(vaCells * vaRatioEI / (1 + vaRatioEI)))
	return nExc, vaCells - nExc
}

// VAWeights returns the derived excitatory (positive) and inhibitory
// (negative) synaptic weights in nA.
func VAWeights() (wExc, wInh float64) {
	return 1e-3 * vaGExc * (vaERevE - vaVMean), 1e-3 * vaGInh * (vaERevI - vaVMean)
}

// VACellParams are the neuron constants of the VA network.
func VACellParams() engine.CellParams {
	p := engine.DefaultCellParams()
	p.TauM = 20
	p.TauSynE = 5
	p.TauSynI = 10
	p.VRest = -49
	p.VReset = -60
	p.VThresh = -50
	p.Cm = vaSpecificCm * vaArea * 1000 // nF
	p.TauRefrac = 5
	return p
}

// VA builds a 4000-cell IF_curr_exp network split 4:1 into excitatory and
// inhibitory populations, connected e2e, e2i, i2e and i2i with fixed
// probability. Membrane potentials start uniform in [v_reset, v_thresh).
// One seeded random stream drives initialization and wiring. There are
// no injectors: the resting potential sits above threshold.
func VA(sim engine.Simulator, p Params) (*Network, error) {
	dt := p.Timestep
	if dt == 0 {
		dt = vaTimestep
	}
	if err := sim.Setup(engine.SetupConfig{Timestep: dt, MinDelay: vaDelay, MaxDelay: vaDelay, Threads: p.Threads, Label: "VA"}); err != nil {
		return nil, err
	}

	params := VACellParams()
	nExc, nInh := VASizes()
	wExc, wInh := VAWeights()

	exc, err := sim.Population(nExc, engine.IFCurrExp, params, "Excitatory_Cells")
	if err != nil {
		return nil, err
	}
	inh, err := sim.Population(nInh, engine.IFCurrExp, params, "Inhibitory_Cells")
	if err != nil {
		return nil, err
	}
	net := &Network{Name: "va", Neuron: vaTraced, Populations: []engine.Population{exc, inh}}

	src := engine.NewSource(vaSeed)
	init := engine.Uniform{Min: params.VReset, Max: params.VThresh, Src: src}
	for _, pop := range net.Populations {
		if err := pop.Initialize("v", init); err != nil {
			return nil, err
		}
	}

	excConn := engine.FixedProbability{P: vaPConn, Weight: wExc, Delay: vaDelay, Src: src}
	inhConn := engine.FixedProbability{P: vaPConn, Weight: wInh, Delay: vaDelay, Src: src}
	wiring := []struct {
		src, dst engine.Population
		conn     engine.Connector
		receptor engine.Receptor
	}{
		{exc, exc, excConn, engine.Excitatory},
		{exc, inh, excConn, engine.Excitatory},
		{inh, exc, inhConn, engine.Inhibitory},
		{inh, inh, inhConn, engine.Inhibitory},
	}
	for _, w := range wiring {
		proj, err := sim.Projection(w.src, w.dst, w.conn, w.receptor)
		if err != nil {
			return nil, err
		}
		net.Projections = append(net.Projections, proj)
	}

	if p.Mode == models.ModeVoltage {
		net.Observed = exc
		net.YRange = render.Range{Min: params.VReset - vaMargin, Max: params.VThresh + vaMargin}
	} else {
		net.Observed = inh
		net.YRange = render.Range{Min: -1, Max: float64(nInh + 1)}
	}
	if err := record(net.Observed, p.Mode, net.Neuron, p.RecordAllVoltages); err != nil {
		return nil, err
	}
	return net, nil
}
