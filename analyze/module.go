/*
 * module.go, part of gotaf
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

//Package analyze feeds trajectory frames to pluggable analysis modules,
//taking care of frame buffers, periodic boundary handling and the module
//lifecycle. Modules only look at one frame at a time, so the same module
//works on a file of any length, or on a stream still being produced.
package analyze

import (
	"fmt"

	taf "github.com/kassonlab/gotaf"
)

//Module is one analysis fed by a Runner. The runner guarantees the call
//order: Configure, Init, zero or more AnalyzeFrame with the frame number
//increasing from 0, Finish exactly once, and WriteOutput after Finish.
type Module interface {

	//Configure declares what the module needs from the stream, through the
	//runner-owned Settings.
	Configure(s *Settings) error

	//Init prepares the module for a run over a trajectory described by
	//top, which may be nil if the caller provided no topology.
	Init(top taf.Atomer) error

	//AnalyzeFrame gets one frame of the stream. The frame and the pbc are
	//only borrowed for the duration of the call: the runner reuses the
	//same storage for the next frame, so anything that outlives the call
	//must be deep-copied. Work launched through pd is guaranteed to have
	//returned before Finish runs.
	AnalyzeFrame(frnr int, f *taf.Frame, pbc *taf.PBC, pd *ParContext) error

	//Finish tells the module no more frames are coming. nframes is the
	//number of frames the module got, which can be zero.
	Finish(nframes int) error

	//WriteOutput produces the final output of the module, whatever that
	//means for it.
	WriteOutput() error
}

//Settings collects the stream requirements of every module when a run
//starts. Modules call its methods from their Configure.
type Settings struct {
	fields taf.FieldSet
	pbc    bool
	sels   []Selection
}

//RequireFields adds the given per-atom fields to the set the trajectory
//must provide.
func (S *Settings) RequireFields(f taf.FieldSet) {
	S.fields |= f
}

//RequirePBC declares that the module needs periodic boundary information,
//so every frame of the run must carry a box.
func (S *Settings) RequirePBC() {
	S.pbc = true
}

//AddSelection registers a selection to be evaluated on every frame, before
//any module sees it.
func (S *Settings) AddSelection(sel Selection) {
	if sel == nil {
		panic("added a nil selection")
	}
	S.sels = append(S.sels, sel)
}

//Fields returns the per-atom fields required so far.
func (S *Settings) Fields() taf.FieldSet {
	return S.fields
}

//PBCRequired returns whether some module requires periodic boundary
//information.
func (S *Settings) PBCRequired() bool {
	return S.pbc
}

//Selection maps to a set of atom indexes that may depend on the current
//frame. The runner evaluates every registered selection once per frame,
//before handing the frame to the modules, so during AnalyzeFrame the
//indexes are already those of the frame being analyzed.
type Selection interface {
	Evaluate(f *taf.Frame, pbc *taf.PBC) error
	Indexes() []int
}

//FixedSelection is the trivial Selection: a fixed set of atom indexes.
//Evaluate only checks that the indexes exist in the frame.
type FixedSelection struct {
	indexes []int
}

//NewFixedSelection returns a FixedSelection for the given indexes.
func NewFixedSelection(indexes ...int) *FixedSelection {
	S := new(FixedSelection)
	S.indexes = make([]int, len(indexes))
	copy(S.indexes, indexes)
	return S
}

//Evaluate checks the indexes against the number of atoms in the frame.
func (S *FixedSelection) Evaluate(f *taf.Frame, pbc *taf.PBC) error {
	for _, v := range S.indexes {
		if v < 0 || v >= f.NAtoms {
			return newSetupError(BadTopology, fmt.Sprintf("selection index %d out of range for %d atoms", v, f.NAtoms), "Evaluate")
		}
	}
	return nil
}

//Indexes returns the selected indexes. The slice is owned by the
//selection, callers should not modify it.
func (S *FixedSelection) Indexes() []int {
	return S.indexes
}
