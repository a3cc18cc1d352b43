package network

import (
	"fmt"

	"github.com/nvandessel/spikeloop/internal/engine"
	"github.com/nvandessel/spikeloop/internal/injection"
	"github.com/nvandessel/spikeloop/internal/models"
	"github.com/nvandessel/spikeloop/internal/render"
	"github.com/nvandessel/spikeloop/internal/spiketrain"
)

// Chain preset constants.
const (
	chainLayers     = 10
	chainCells      = 10
	chainWeight     = 0.025 // uS
	chainDelay      = 1.0   // ms
	chainTimestep   = 1.0   // ms
	chainTraced     = 1
	chainVoltMargin = 5.0 // mV

	fastOffset   = 18.8 // ms
	fastInterval = 24.0
	slowOffset   = 31.6
	slowInterval = 35.2
)

// ChainCellParams are the conductance-based neuron constants of the chain.
func ChainCellParams() engine.CellParams {
	p := engine.DefaultCellParams()
	p.TauM = 20
	p.Cm = 1
	p.VRest = -60
	p.VReset = -60
	p.VThresh = -50
	p.TauRefrac = 10
	p.TauSynE = 5
	p.TauSynI = 10
	return p
}

// Chain builds ten layers of ten IF_cond_exp cells, each layer connected
// all-to-all to the next, driven by a fast and a slow regular spike train
// into the first layer. Spikes are observed on the last layer and
// voltage on neuron 1 of the first.
func Chain(sim engine.Simulator, p Params) (*Network, error) {
	dt := p.Timestep
	if dt == 0 {
		dt = chainTimestep
	}
	if err := sim.Setup(engine.SetupConfig{Timestep: dt, MinDelay: chainDelay, Threads: p.Threads, Label: "chain"}); err != nil {
		return nil, err
	}

	params := ChainCellParams()
	net := &Network{Name: "chain", Neuron: chainTraced}

	for i := 0; i < chainLayers; i++ {
		pop, err := sim.Population(chainCells, engine.IFCondExp, params, fmt.Sprintf("Population %d", i))
		if err != nil {
			return nil, err
		}
		if err := pop.Initialize("v", engine.Value(params.VReset)); err != nil {
			return nil, err
		}
		net.Populations = append(net.Populations, pop)
	}

	conn := engine.AllToAll{Weight: chainWeight, Delay: chainDelay}
	for i := 0; i < chainLayers-1; i++ {
		proj, err := sim.Projection(net.Populations[i], net.Populations[i+1], conn, engine.Excitatory)
		if err != nil {
			return nil, err
		}
		net.Projections = append(net.Projections, proj)
	}

	inputs := []struct {
		name             string
		offset, interval float64
	}{
		{"fast", fastOffset, fastInterval},
		{"slow", slowOffset, slowInterval},
	}
	for _, in := range inputs {
		inj, err := sim.Population(chainCells, engine.SpikeSourceArray, engine.CellParams{}, in.name+"_injector")
		if err != nil {
			return nil, err
		}
		proj, err := sim.Projection(inj, net.Populations[0], conn, engine.Excitatory)
		if err != nil {
			return nil, err
		}
		train, err := spiketrain.NewGenerator(in.offset, in.interval)
		if err != nil {
			return nil, err
		}
		net.Populations = append(net.Populations, inj)
		net.Projections = append(net.Projections, proj)
		net.Channels = append(net.Channels, injection.NewChannel(in.name, train, inj))
	}

	if p.Mode == models.ModeVoltage {
		net.Observed = net.Populations[0]
		net.YRange = render.Range{Min: params.VReset - chainVoltMargin, Max: params.VThresh + chainVoltMargin}
	} else {
		net.Observed = net.Populations[chainLayers-1]
		net.YRange = render.Range{Min: -1, Max: chainLayers*chainCells + 1}
	}
	if err := record(net.Observed, p.Mode, net.Neuron, p.RecordAllVoltages); err != nil {
		return nil, err
	}
	return net, nil
}
