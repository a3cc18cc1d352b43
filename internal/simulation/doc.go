// Package simulation drives the incremental run/extract/render loop.
//
// Each iteration tops up the input spike trains, advances the engine by
// one step, extracts the observations recorded during that step and
// renders them. The loop runs until the render surface reports that it
// has been closed:
//
//	stepper, _ := simulation.NewStepper(sim, 100)
//	runner, _ := simulation.NewRunner(stepper, simulation.Options{
//	    Scheduler:   sched,
//	    Extractor:   extractor,
//	    History:     observed,
//	    Cycle:       cycle,
//	    WindowSteps: 5,
//	})
//	result, err := runner.Run(ctx)
//
// The loop is single-threaded. Cancellation is cooperative: closing the
// surface from another goroutine (a signal handler, a UI event) stops the
// loop after the iteration in progress.
package simulation
