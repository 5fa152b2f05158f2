/*
 * runner_test.go, part of gotaf
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
	"sync/atomic"
	"testing"
	"time"

	taf "github.com/kassonlab/gotaf"
)

//streamFrame builds an in-memory frame with positions, velocities and a
//cubic box, all derived from the frame number so tests can tell frames
//apart.
func streamFrame(natoms, frnr int) *taf.Frame {
	f := taf.NewFrame(natoms, taf.FieldPos|taf.FieldVel)
	for i := 0; i < natoms; i++ {
		for j := 0; j < 3; j++ {
			f.Pos.Set(i, j, float64(frnr*100+i*10+j))
			f.Vel.Set(i, j, float64(frnr))
		}
	}
	f.Box = []float64{5, 0, 0, 0, 5, 0, 0, 0, 5}
	f.Step = frnr * 50
	f.Time = float64(frnr) * 0.002
	return f
}

func testStream(Te *testing.T, natoms, nframes int) *taf.MemTraj {
	frames := make([]*taf.Frame, nframes)
	for i := range frames {
		frames[i] = streamFrame(natoms, i)
	}
	traj, err := taf.NewMemTraj(natoms, frames...)
	if err != nil {
		Te.Fatal(err)
	}
	return traj
}

func testTop(Te *testing.T, n int) *taf.Topology {
	ats := make([]*taf.Atom, n)
	for i := range ats {
		ats[i] = &taf.Atom{Name: "C", ID: i + 1, Symbol: "C", Mass: 12.011}
	}
	top, err := taf.MakeTopology(ats, 0, 0)
	if err != nil {
		Te.Fatal(err)
	}
	return top
}

//recordModule logs every lifecycle call into a slice shared between the
//modules of a test, so the interleaving can be checked, and records the
//Step of every frame it got.
type recordModule struct {
	name    string
	fields  taf.FieldSet
	needPBC bool
	log     *[]string
	steps   []int
	total   int
	failOn  int //AnalyzeFrame fails at this frame number, -1 for never
}

func newRecord(name string, fields taf.FieldSet, log *[]string) *recordModule {
	return &recordModule{name: name, fields: fields, log: log, failOn: -1}
}

func (r *recordModule) Configure(s *Settings) error {
	if r.fields != 0 {
		s.RequireFields(r.fields)
	}
	if r.needPBC {
		s.RequirePBC()
	}
	*r.log = append(*r.log, r.name+":configure")
	return nil
}

func (r *recordModule) Init(top taf.Atomer) error {
	*r.log = append(*r.log, r.name+":init")
	return nil
}

func (r *recordModule) AnalyzeFrame(frnr int, f *taf.Frame, pbc *taf.PBC, pd *ParContext) error {
	if r.failOn >= 0 && frnr == r.failOn {
		return fmt.Errorf("%s: induced failure at frame %d", r.name, frnr)
	}
	if r.fields != 0 && !f.Fields().Has(r.fields) {
		return fmt.Errorf("%s: frame %d misses the fields I asked for", r.name, frnr)
	}
	*r.log = append(*r.log, fmt.Sprintf("%s:frame%d", r.name, frnr))
	r.steps = append(r.steps, f.Step)
	return nil
}

func (r *recordModule) Finish(nframes int) error {
	r.total = nframes
	*r.log = append(*r.log, fmt.Sprintf("%s:finish%d", r.name, nframes))
	return nil
}

func (r *recordModule) WriteOutput() error {
	*r.log = append(*r.log, r.name+":output")
	return nil
}

//logSelection appends a line to the shared log each time it is evaluated.
type logSelection struct {
	log *[]string
	n   int
}

func (s *logSelection) Evaluate(f *taf.Frame, pbc *taf.PBC) error {
	*s.log = append(*s.log, fmt.Sprintf("sel:frame%d", s.n))
	s.n++
	return nil
}

func (s *logSelection) Indexes() []int { return nil }

func TestRunnerOrder(Te *testing.T) {
	traj := testStream(Te, 3, 2)
	log := make([]string, 0, 12)
	A := newRecord("A", taf.FieldPos, &log)
	B := newRecord("B", taf.FieldVel, &log)
	r := NewRunner(traj, testTop(Te, 3))
	if r.State() != Uninitialized {
		Te.Errorf("fresh runner in state %v", r.State())
	}
	if err := r.AddModule(A); err != nil {
		Te.Fatal(err)
	}
	if err := r.AddModule(B); err != nil {
		Te.Fatal(err)
	}
	if err := r.Configure(nil); err != nil {
		Te.Fatal(err)
	}
	if r.State() != Configured {
		Te.Errorf("after Configure, state %v", r.State())
	}
	if err := r.Start(); err != nil {
		Te.Fatal(err)
	}
	if r.State() != Streaming || r.NFrames() != 1 {
		Te.Errorf("after Start, state %v with %d frames", r.State(), r.NFrames())
	}
	if err := r.Run(); err != nil {
		Te.Fatal(err)
	}
	if r.State() != Finished || r.NFrames() != 2 {
		Te.Errorf("after Run, state %v with %d frames", r.State(), r.NFrames())
	}
	if err := r.WriteOutput(); err != nil {
		Te.Fatal(err)
	}
	want := []string{
		"A:configure", "B:configure",
		"A:init", "B:init",
		"A:frame0", "B:frame0",
		"A:frame1", "B:frame1",
		"A:finish2", "B:finish2",
		"A:output", "B:output",
	}
	if len(log) != len(want) {
		Te.Fatalf("lifecycle log has %d entries, want %d: %v", len(log), len(want), log)
	}
	for i, v := range want {
		if log[i] != v {
			Te.Errorf("lifecycle log entry %d is %q, want %q", i, log[i], v)
		}
	}
	//A only asked for positions, but B's velocities flowed to it too, and
	//both saw the frames in stream order.
	if len(A.steps) != 2 || A.steps[0] != 0 || A.steps[1] != 50 {
		Te.Errorf("module A saw steps %v", A.steps)
	}
	fmt.Println("lifecycle order:", log)
}

func TestRunnerStates(Te *testing.T) {
	traj := testStream(Te, 3, 2)
	log := make([]string, 0, 6)
	r := NewRunner(traj, nil)
	asState := func(err error, op string) {
		if err == nil {
			Te.Errorf("%s accepted out of its state", op)
			return
		}
		if _, ok := err.(*StateError); !ok {
			Te.Errorf("%s rejected with a %T, want *StateError: %v", op, err, err)
		}
	}
	asState(r.Start(), "Start before Configure")
	asState(r.Advance(), "Advance before Start")
	asState(r.WriteOutput(), "WriteOutput before the stream ends")
	if err := r.AddModule(newRecord("A", taf.FieldPos, &log)); err != nil {
		Te.Fatal(err)
	}
	if err := r.Configure(nil); err != nil {
		Te.Fatal(err)
	}
	asState(r.Configure(nil), "Configure twice")
	if err := r.Start(); err != nil {
		Te.Fatal(err)
	}
	asState(r.Start(), "Start twice")
	asState(r.AddModule(newRecord("B", 0, &log)), "AddModule while streaming")
	if err := r.Run(); err != nil {
		Te.Fatal(err)
	}
	asState(r.Advance(), "Advance after the stream ended")
	if err := r.WriteOutput(); err != nil {
		Te.Fatal(err)
	}
}

func TestRunnerSetup(Te *testing.T) {
	log := make([]string, 0, 6)
	asSetup := func(err error, reason, op string) {
		serr, ok := err.(*SetupError)
		if !ok {
			Te.Errorf("%s: got error %T (%v), want *SetupError", op, err, err)
			return
		}
		if serr.Reason != reason {
			Te.Errorf("%s: got reason %q, want %q", op, serr.Reason, reason)
		}
	}
	//no modules at all
	r := NewRunner(testStream(Te, 3, 1), nil)
	if err := r.Configure(nil); err != nil {
		Te.Fatal(err)
	}
	asSetup(r.Start(), NoModules, "empty runner")
	if r.State() != Configured {
		Te.Errorf("failed Start moved the state to %v", r.State())
	}
	//a source that is already closed
	closed := testStream(Te, 3, 1)
	closed.Close()
	r2 := NewRunner(closed, nil)
	r2.AddModule(newRecord("A", taf.FieldPos, &log))
	if err := r2.Configure(nil); err != nil {
		Te.Fatal(err)
	}
	asSetup(r2.Start(), SourceNotReadable, "closed source")
	//a topology that does not match the trajectory
	r3 := NewRunner(testStream(Te, 3, 1), testTop(Te, 5))
	asSetup(r3.Configure(nil), BadTopology, "mismatched topology")
	if r3.State() != Uninitialized {
		Te.Errorf("failed Configure moved the state to %v", r3.State())
	}
	//a field the source cannot provide
	r4 := NewRunner(testStream(Te, 3, 1), nil)
	r4.AddModule(newRecord("F", taf.FieldForce, &log))
	if err := r4.Configure(nil); err != nil {
		Te.Fatal(err)
	}
	asSetup(r4.Start(), MissingFields, "forces from a source without forces")
	//periodicity required, but the frames carry no box
	bare := streamFrame(3, 0)
	bare.Box = nil
	traj5, err := taf.NewMemTraj(3, bare)
	if err != nil {
		Te.Fatal(err)
	}
	r5 := NewRunner(traj5, nil)
	mod := newRecord("P", taf.FieldPos, &log)
	mod.needPBC = true
	r5.AddModule(mod)
	if err := r5.Configure(nil); err != nil {
		Te.Fatal(err)
	}
	asSetup(r5.Start(), MissingBox, "periodicity without a box")
}

func TestRunnerEmptyStream(Te *testing.T) {
	traj := testStream(Te, 3, 0)
	log := make([]string, 0, 4)
	A := newRecord("A", taf.FieldPos, &log)
	r := NewRunner(traj, nil)
	r.AddModule(A)
	if err := r.Configure(nil); err != nil {
		Te.Fatal(err)
	}
	if err := r.Start(); err != nil {
		Te.Fatalf("Start on an empty but readable stream failed: %v", err)
	}
	if r.State() != Streaming || r.NFrames() != 0 {
		Te.Errorf("after Start on an empty stream, state %v with %d frames", r.State(), r.NFrames())
	}
	err := r.Advance()
	if err == nil {
		Te.Fatal("Advance on an empty stream returned no end marker")
	}
	if _, ok := err.(taf.LastFrameError); !ok {
		Te.Fatalf("Advance on an empty stream returned %T (%v)", err, err)
	}
	if r.State() != Finished || A.total != 0 {
		Te.Errorf("empty stream left state %v, module finalized with %d frames", r.State(), A.total)
	}
	want := []string{"A:configure", "A:init", "A:finish0"}
	if len(log) != len(want) {
		Te.Fatalf("lifecycle log %v, want %v", log, want)
	}
	for i, v := range want {
		if log[i] != v {
			Te.Errorf("lifecycle log entry %d is %q, want %q", i, log[i], v)
		}
	}
}

func TestRunnerModuleFailure(Te *testing.T) {
	traj := testStream(Te, 3, 3)
	log := make([]string, 0, 10)
	A := newRecord("A", taf.FieldPos, &log)
	B := newRecord("B", taf.FieldPos, &log)
	B.failOn = 1
	r := NewRunner(traj, nil)
	r.AddModule(A)
	r.AddModule(B)
	if err := r.Configure(nil); err != nil {
		Te.Fatal(err)
	}
	if err := r.Start(); err != nil {
		Te.Fatal(err)
	}
	err := r.Advance()
	if err == nil {
		Te.Fatal("the induced module failure did not surface")
	}
	if _, ok := err.(taf.LastFrameError); ok {
		Te.Fatal("the induced module failure came back as a normal termination")
	}
	if r.State() != Streaming || r.NFrames() != 1 {
		Te.Errorf("after a module failure, state %v with %d frames", r.State(), r.NFrames())
	}
	//modules registered before the failing one did see the frame
	if len(A.steps) != 2 || A.steps[1] != 50 {
		Te.Errorf("module A saw steps %v", A.steps)
	}
	fmt.Println("module failure surfaced as:", err)
}

func TestRunnerSkip(Te *testing.T) {
	traj := testStream(Te, 3, 5)
	log := make([]string, 0, 10)
	A := newRecord("A", taf.FieldPos, &log)
	r := NewRunner(traj, nil)
	r.AddModule(A)
	o := DefaultOptions()
	o.Skip(2)
	if err := r.Configure(o); err != nil {
		Te.Fatal(err)
	}
	if err := r.Start(); err != nil {
		Te.Fatal(err)
	}
	if err := r.Run(); err != nil {
		Te.Fatal(err)
	}
	//five source frames at stride two: source frames 0, 2 and 4, renumbered
	//0, 1 and 2 on delivery.
	if A.total != 3 || r.NFrames() != 3 {
		Te.Errorf("stride 2 over 5 frames delivered %d frames", A.total)
	}
	wantsteps := []int{0, 100, 200}
	if len(A.steps) != len(wantsteps) {
		Te.Fatalf("stride 2 delivered steps %v, want %v", A.steps, wantsteps)
	}
	for i, v := range wantsteps {
		if A.steps[i] != v {
			Te.Errorf("delivered frame %d has step %d, want %d", i, A.steps[i], v)
		}
	}
}

//selModule registers a selection and, on every frame, checks that the
//selection was evaluated before the module ran.
type selModule struct {
	recordModule
	sel *logSelection
}

func (m *selModule) Configure(s *Settings) error {
	s.AddSelection(m.sel)
	return m.recordModule.Configure(s)
}

func TestRunnerSelections(Te *testing.T) {
	traj := testStream(Te, 3, 2)
	log := make([]string, 0, 10)
	m := &selModule{recordModule: *newRecord("A", taf.FieldPos, &log), sel: &logSelection{log: &log}}
	r := NewRunner(traj, nil)
	r.AddModule(m)
	if err := r.Configure(nil); err != nil {
		Te.Fatal(err)
	}
	if err := r.Start(); err != nil {
		Te.Fatal(err)
	}
	if err := r.Run(); err != nil {
		Te.Fatal(err)
	}
	want := []string{
		"A:configure", "A:init",
		"sel:frame0", "A:frame0",
		"sel:frame1", "A:frame1",
		"A:finish2",
	}
	if len(log) != len(want) {
		Te.Fatalf("selection log %v, want %v", log, want)
	}
	for i, v := range want {
		if log[i] != v {
			Te.Errorf("selection log entry %d is %q, want %q", i, log[i], v)
		}
	}
}

//slowModule schedules deliberately slow background work on every frame and
//counts completions at Finish, which must see all of them.
type slowModule struct {
	scheduled int32
	done      int32
	atFinish  int32
}

func (m *slowModule) Configure(s *Settings) error { return nil }

func (m *slowModule) Init(top taf.Atomer) error { return nil }

func (m *slowModule) AnalyzeFrame(frnr int, f *taf.Frame, pbc *taf.PBC, pd *ParContext) error {
	atomic.AddInt32(&m.scheduled, 1)
	pd.Go(func() {
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&m.done, 1)
	})
	return nil
}

func (m *slowModule) Finish(nframes int) error {
	m.atFinish = atomic.LoadInt32(&m.done)
	return nil
}

func (m *slowModule) WriteOutput() error { return nil }

func TestRunnerWaitsBackgroundWork(Te *testing.T) {
	traj := testStream(Te, 3, 4)
	m := new(slowModule)
	r := NewRunner(traj, nil)
	r.AddModule(m)
	if err := r.Configure(nil); err != nil {
		Te.Fatal(err)
	}
	if err := r.Start(); err != nil {
		Te.Fatal(err)
	}
	if err := r.Run(); err != nil {
		Te.Fatal(err)
	}
	if m.scheduled != 4 {
		Te.Fatalf("scheduled %d background jobs, want 4", m.scheduled)
	}
	if m.atFinish != m.scheduled {
		Te.Errorf("Finish ran with %d of %d background jobs done", m.atFinish, m.scheduled)
	}
}
