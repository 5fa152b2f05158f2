/*
 * runner.go, part of gotaf
 *
 * Copyright 2021 The gotaf developers
 *
    This program is free software: you can redistribute it and/or modify
    it under the terms of the GNU Lesser General Public License as published by
    the Free Software Foundation, either version 2.1 of the License, or
    (at your option) any later version.

    This program is distributed in the hope that it will be useful,
    but WITHOUT ANY WARRANTY; without even the implied warranty of
    MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
    GNU General Public License for more details.

    You should have received a copy of the GNU Lesser General Public License
    along with this program.  If not, see <http://www.gnu.org/licenses/>.
 *
 *
*/

package analyze

import (
	"fmt"
	"runtime"

	taf "github.com/kassonlab/gotaf"
)

//State is the lifecycle state of a Runner.
type State int

const (
	Uninitialized State = iota //modules can be added
	Configured                 //options fixed, modules can still be added
	Streaming                  //frames are flowing
	Finished                   //modules finalized, output can be written
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Configured:
		return "configured"
	case Streaming:
		return "streaming"
	case Finished:
		return "finished"
	}
	return "unknown"
}

//Runner drives a set of analysis modules over a trajectory. It owns the
//frame buffer the source fills, rebuilds the periodic boundary handling
//for every frame, and enforces the module lifecycle. The zero Runner is
//not usable; get one from NewRunner.
//
//The states move only forward: Uninitialized, Configured (after
//Configure), Streaming (after Start), Finished (when the stream ends).
//Operations called in the wrong state fail with a *StateError, and a
//failed operation never moves the state, so the runner is always in the
//last state that was reached cleanly.
type Runner struct {
	traj     taf.Traj
	top      taf.Atomer
	mods     []Module
	opts     *Options
	settings *Settings
	frame    *taf.Frame
	pbc      *taf.PBC
	ctxs     []*ParContext
	state    State
	nframes  int
	srcidx   int
	empty    bool
}

//NewRunner returns a Runner that will read traj and hand its frames to the
//registered modules. top describes the atoms of the trajectory and may be
//nil, in which case modules needing a topology will fail at Init. Panics
//if traj is nil.
func NewRunner(traj taf.Traj, top taf.Atomer) *Runner {
	if traj == nil {
		panic("given a nil trajectory")
	}
	R := new(Runner)
	R.traj = traj
	R.top = top
	return R
}

//AddModule registers m to be fed by the runner. Modules get the frames in
//the order they were registered. It fails once the stream has started.
func (R *Runner) AddModule(m Module) error {
	if m == nil {
		panic("given a nil module")
	}
	if R.state != Uninitialized && R.state != Configured {
		return &StateError{Op: "AddModule", State: R.state}
	}
	R.mods = append(R.mods, m)
	return nil
}

//Configure fixes the run options. A nil o means defaults. It also checks
//that the topology, when given, agrees with the trajectory on the number
//of atoms.
func (R *Runner) Configure(o *Options) error {
	if R.state != Uninitialized {
		return &StateError{Op: "Configure", State: R.state}
	}
	if o == nil {
		o = DefaultOptions()
	}
	if o.skip < 1 {
		o.skip = 1
	}
	if o.cpus < 1 {
		o.cpus = runtime.NumCPU()
	}
	if R.top != nil && R.top.Len() != R.traj.Len() {
		return newSetupError(BadTopology, fmt.Sprintf("topology has %d atoms, trajectory %d", R.top.Len(), R.traj.Len()), "Configure")
	}
	R.opts = o
	R.state = Configured
	return nil
}

//Start begins the stream: it aggregates the requirements of the modules,
//initializes them, reads the first frame, validates it against the
//requirements and hands it to every module as frame 0. Configuration and
//data problems surface here, not lazily in the middle of the run.
//
//A readable source with no frames at all is not a failure: Start succeeds,
//and the first Advance finalizes the modules with zero frames.
func (R *Runner) Start() error {
	if R.state != Configured {
		return &StateError{Op: "Start", State: R.state}
	}
	if len(R.mods) == 0 {
		return newSetupError(NoModules, "", "Start")
	}
	if !R.traj.Readable() {
		return newSetupError(SourceNotReadable, "", "Start")
	}
	R.settings = new(Settings)
	for i, m := range R.mods {
		if err := m.Configure(R.settings); err != nil {
			return decorateModErr(err, "Start", i, m)
		}
	}
	if R.settings.fields == 0 {
		R.settings.fields = taf.FieldPos //positions are the default request
	}
	if ct, ok := R.traj.(taf.ConfigurableTraj); ok {
		if err := ct.Configure(R.settings.fields); err != nil {
			return decorateAny(err, "Start: configuring the trajectory source")
		}
	}
	for i, m := range R.mods {
		if err := m.Init(R.top); err != nil {
			return decorateModErr(err, "Start", i, m)
		}
	}
	R.ctxs = make([]*ParContext, len(R.mods))
	for i := range R.ctxs {
		R.ctxs[i] = &ParContext{workers: R.opts.cpus}
	}
	R.frame = taf.NewFrame(R.traj.Len(), R.settings.fields)
	err := R.traj.Next(R.frame)
	if err != nil {
		switch err := err.(type) {
		case taf.LastFrameError:
			//an empty stream is fine, the modules just get no frames
			R.empty = true
			R.state = Streaming
			return nil
		case taf.Error:
			err.Decorate("Start: failed reading the first frame")
			return err
		default:
			return err
		}
	}
	if err := R.checkFrame(); err != nil {
		return errDecorate(err, "Start")
	}
	if err := R.evaluate(); err != nil {
		return decorateAny(err, "Start")
	}
	for i, m := range R.mods {
		if err := m.AnalyzeFrame(0, R.frame, R.pbc, R.ctxs[i]); err != nil {
			return decorateModErr(err, "Start", i, m)
		}
	}
	R.nframes = 1
	R.state = Streaming
	return nil
}

//Advance reads the next frame and hands it to every module, honoring the
//Skip option. When the stream ends it waits out the background work of
//every module, finalizes them, moves to Finished and returns an error
//implementing taf.LastFrameError, which is not a failure.
//
//A module failure aborts the advance with the frame count unchanged. The
//stream itself is not rewound, so continuing the run after such a failure
//delivers the next frame, not the failed one again.
func (R *Runner) Advance() error {
	if R.state != Streaming {
		return &StateError{Op: "Advance", State: R.state}
	}
	if R.empty {
		return R.finish()
	}
	var err error
	for {
		R.srcidx++
		if R.srcidx%R.opts.skip == 0 {
			err = R.traj.Next(R.frame)
			break
		}
		if err = R.traj.Next(nil); err != nil {
			break
		}
	}
	if err != nil {
		switch err := err.(type) {
		case taf.LastFrameError:
			return R.finish()
		case taf.Error:
			err.Decorate(fmt.Sprintf("Advance: failed reading frame %d", R.srcidx))
			return err
		default:
			return err
		}
	}
	if err := R.checkFrame(); err != nil {
		return errDecorate(err, "Advance")
	}
	if err := R.evaluate(); err != nil {
		return decorateAny(err, "Advance")
	}
	for i, m := range R.mods {
		if err := m.AnalyzeFrame(R.nframes, R.frame, R.pbc, R.ctxs[i]); err != nil {
			return decorateModErr(err, "Advance", i, m)
		}
	}
	R.nframes++
	return nil
}

//Run advances until the stream ends, then returns nil. It is only a
//convenience loop over Advance, there is no separate code path.
func (R *Runner) Run() error {
	for {
		err := R.Advance()
		if err == nil {
			continue
		}
		if _, ok := err.(taf.LastFrameError); ok {
			return nil
		}
		return err
	}
}

//WriteOutput asks every module for its final output, in registration
//order. It is only legal once the stream has finished.
func (R *Runner) WriteOutput() error {
	if R.state != Finished {
		return &StateError{Op: "WriteOutput", State: R.state}
	}
	for i, m := range R.mods {
		if err := m.WriteOutput(); err != nil {
			return decorateModErr(err, "WriteOutput", i, m)
		}
	}
	return nil
}

//State returns the current lifecycle state.
func (R *Runner) State() State {
	return R.state
}

//NFrames returns the number of frames delivered to the modules so far.
func (R *Runner) NFrames() int {
	return R.nframes
}

//checkFrame validates the frame just read against the aggregated
//requirements and rebuilds the periodic boundary handling from its box.
//Sources may stop providing a field or a box in the middle of a stream;
//modules were promised them at Start, so that is an error here too.
func (R *Runner) checkFrame() error {
	if err := R.frame.Corrupted(); err != nil {
		return err
	}
	if got := R.frame.Fields(); !got.Has(R.settings.fields) {
		missing := R.settings.fields &^ got
		return newSetupError(MissingFields, fmt.Sprintf("missing %q", missing), "")
	}
	if R.settings.pbc && R.frame.Box == nil {
		return newSetupError(MissingBox, "", "")
	}
	var err error
	R.pbc, err = taf.NewPBC(R.frame.Box)
	if err != nil {
		return err
	}
	return nil
}

//evaluate runs every registered selection on the current frame, before
//the modules see it.
func (R *Runner) evaluate() error {
	for _, sel := range R.settings.sels {
		if err := sel.Evaluate(R.frame, R.pbc); err != nil {
			return err
		}
	}
	return nil
}

//finish waits out the background work and finalizes every module. The
//runner is Finished afterwards even if a module fails to finalize, so the
//output of the modules that did finalize can still be written.
func (R *Runner) finish() error {
	R.state = Finished
	for _, ctx := range R.ctxs {
		ctx.Wait()
	}
	for i, m := range R.mods {
		if err := m.Finish(R.nframes); err != nil {
			return decorateModErr(err, "Finish", i, m)
		}
	}
	return lastFrameError{deco: []string{"Advance"}}
}

//decorateModErr adds the failing module's position and type to the error,
//without changing its type when it follows the Error protocol.
func decorateModErr(err error, op string, i int, m Module) error {
	if err2, ok := err.(taf.Error); ok {
		err2.Decorate(fmt.Sprintf("%s: module %d (%T)", op, i, m))
		return err2
	}
	return err
}

//decorateAny decorates err if it follows the Error protocol and returns it
//unchanged otherwise.
func decorateAny(err error, caller string) error {
	if err2, ok := err.(taf.Error); ok {
		err2.Decorate(caller)
		return err2
	}
	return err
}
