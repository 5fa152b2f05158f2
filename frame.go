/*
 * frame.go, part of gotaf.
 *
 * Copyright 2021 The gotaf developers
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU Lesser General Public License as
 * published by the Free Software Foundation; either version 2.1 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU Lesser General
 * Public License along with this program.  If not, see
 * <http://www.gnu.org/licenses/>.
 *
 */

package taf

import (
	"fmt"
	"math"

	v3 "github.com/kassonlab/gotaf/v3"
)

//FieldSet is a set of per-atom fields, used to tell a source which of them
//a reader wants, and to report which of them a frame carries.
type FieldSet uint8

const (
	FieldPos FieldSet = 1 << iota
	FieldVel
	FieldForce
)

//Has returns whether every field in f is in the set.
func (S FieldSet) Has(f FieldSet) bool {
	return S&f == f
}

//String returns the set in the compact "xvf" notation: one letter per
//field present, in position, velocity, force order.
func (S FieldSet) String() string {
	s := ""
	if S.Has(FieldPos) {
		s += "x"
	}
	if S.Has(FieldVel) {
		s += "v"
	}
	if S.Has(FieldForce) {
		s += "f"
	}
	return s
}

//ParseFields returns the FieldSet described by a string in the "xvf"
//notation used by FieldSet.String.
func ParseFields(s string) (FieldSet, error) {
	var ret FieldSet
	for _, r := range s {
		switch r {
		case 'x':
			ret |= FieldPos
		case 'v':
			ret |= FieldVel
		case 'f':
			ret |= FieldForce
		default:
			return 0, NewCError(fmt.Sprintf("unknown field %q in %q", r, s), "ParseFields")
		}
	}
	return ret, nil
}

//Frame holds one snapshot of a trajectory. NAtoms, Step and Time are always
//meaningful (Step and Time default to zero when the source doesn't carry
//them). Every other field is optional, and it is present if, and only if,
//it is not nil. Title is the exception for being a value type: an empty
//Title means no title.
//
//Pos, Vel and Force, when present, have NAtoms rows each. Box, when present,
//has the 9 components of the 3 box vectors, row-major, following the usual
//simulation convention of the first vector along x and the second on the
//xy plane (so elements 1, 2 and 5 are zero).
type Frame struct {
	NAtoms int
	Step   int
	Time   float64
	Pos    *v3.Matrix
	Vel    *v3.Matrix
	Force  *v3.Matrix
	Box    []float64
	Title  string
	Atoms  *Topology
	Index  []int
}

//NewFrame returns a Frame for natoms atoms with buffers allocated for the
//per-atom fields in fields. The other optional fields start absent.
func NewFrame(natoms int, fields FieldSet) *Frame {
	F := new(Frame)
	F.NAtoms = natoms
	if fields.Has(FieldPos) {
		F.Pos = v3.Zeros(natoms)
	}
	if fields.Has(FieldVel) {
		F.Vel = v3.Zeros(natoms)
	}
	if fields.Has(FieldForce) {
		F.Force = v3.Zeros(natoms)
	}
	return F
}

//Fields returns the set of per-atom fields present in the frame.
func (F *Frame) Fields() FieldSet {
	var ret FieldSet
	if F.Pos != nil {
		ret |= FieldPos
	}
	if F.Vel != nil {
		ret |= FieldVel
	}
	if F.Force != nil {
		ret |= FieldForce
	}
	return ret
}

//Corrupted checks whether the frame is corrupted, i.e. one of the present
//buffers disagrees with the number of atoms, or the box doesn't have 9
//elements. It returns a *MalformedFrame describing the first problem found,
//or nil.
func (F *Frame) Corrupted() error {
	if F.Pos != nil && F.Pos.NVecs() != F.NAtoms {
		return &MalformedFrame{Field: "x", Want: F.NAtoms, Got: F.Pos.NVecs()}
	}
	if F.Vel != nil && F.Vel.NVecs() != F.NAtoms {
		return &MalformedFrame{Field: "v", Want: F.NAtoms, Got: F.Vel.NVecs()}
	}
	if F.Force != nil && F.Force.NVecs() != F.NAtoms {
		return &MalformedFrame{Field: "f", Want: F.NAtoms, Got: F.Force.NVecs()}
	}
	if F.Box != nil && len(F.Box) != 9 {
		return &MalformedFrame{Field: "box", Want: 9, Got: len(F.Box)}
	}
	if F.Index != nil && F.Atoms != nil {
		for _, v := range F.Index {
			if v < 0 || v >= F.Atoms.Len() {
				return &MalformedFrame{Field: "index", Want: F.Atoms.Len(), Got: v}
			}
		}
	}
	return nil
}

//Copy returns a deep copy of the frame. Every present field is duplicated,
//so the copy shares no memory with the original. If the frame is corrupted,
//nothing is copied and the *MalformedFrame is returned.
func (F *Frame) Copy() (*Frame, error) {
	if err := F.Corrupted(); err != nil {
		err.(*MalformedFrame).Decorate("Copy")
		return nil, err
	}
	N := new(Frame)
	N.NAtoms = F.NAtoms
	N.Step = F.Step
	N.Time = F.Time
	N.Title = F.Title
	if F.Pos != nil {
		N.Pos = v3.Zeros(F.NAtoms)
		N.Pos.Copy(F.Pos)
	}
	if F.Vel != nil {
		N.Vel = v3.Zeros(F.NAtoms)
		N.Vel.Copy(F.Vel)
	}
	if F.Force != nil {
		N.Force = v3.Zeros(F.NAtoms)
		N.Force.Copy(F.Force)
	}
	if F.Box != nil {
		N.Box = make([]float64, 9)
		copy(N.Box, F.Box)
	}
	if F.Atoms != nil {
		N.Atoms = F.Atoms.Copy()
	}
	if F.Index != nil {
		N.Index = make([]int, len(F.Index))
		copy(N.Index, F.Index)
	}
	return N, nil
}

//Release drops every optional field of the frame, so the memory can be
//collected while the Frame itself stays usable as a read buffer. Releasing
//an already released frame does nothing.
func (F *Frame) Release() {
	F.Pos = nil
	F.Vel = nil
	F.Force = nil
	F.Box = nil
	F.Title = ""
	F.Atoms = nil
	F.Index = nil
}

//eqTol returns whether x and y agree within the absolute tolerance atol
//plus the relative tolerance rtol, taken with respect to y.
func eqTol(x, y, rtol, atol float64) bool {
	return math.Abs(x-y) <= atol+rtol*math.Abs(y)
}

//Compare compares two frames field by field and returns a description of
//each difference found, or an empty slice if the frames match. A field
//present in one frame and absent in the other is a difference. Floating
//point data compares equal when it agrees within atol+rtol*|reference|,
//the reference being b. Titles, indexes and atom names compare exactly.
func Compare(a, b *Frame, rtol, atol float64) []string {
	diffs := make([]string, 0)
	if a.NAtoms != b.NAtoms {
		diffs = append(diffs, fmt.Sprintf("natoms: %d != %d", a.NAtoms, b.NAtoms))
	}
	if a.Step != b.Step {
		diffs = append(diffs, fmt.Sprintf("step: %d != %d", a.Step, b.Step))
	}
	if !eqTol(a.Time, b.Time, rtol, atol) {
		diffs = append(diffs, fmt.Sprintf("time: %g != %g", a.Time, b.Time))
	}
	if a.Title != b.Title {
		diffs = append(diffs, fmt.Sprintf("title: %q != %q", a.Title, b.Title))
	}
	diffs = cmpVecs(diffs, "x", a.Pos, b.Pos, rtol, atol)
	diffs = cmpVecs(diffs, "v", a.Vel, b.Vel, rtol, atol)
	diffs = cmpVecs(diffs, "f", a.Force, b.Force, rtol, atol)
	switch {
	case a.Box == nil && b.Box != nil:
		diffs = append(diffs, "box: absent != present")
	case a.Box != nil && b.Box == nil:
		diffs = append(diffs, "box: present != absent")
	case a.Box != nil && b.Box != nil:
		for i := 0; i < 9 && i < len(a.Box) && i < len(b.Box); i++ {
			if !eqTol(a.Box[i], b.Box[i], rtol, atol) {
				diffs = append(diffs, fmt.Sprintf("box[%d]: %g != %g", i, a.Box[i], b.Box[i]))
			}
		}
	}
	switch {
	case a.Index == nil && b.Index != nil:
		diffs = append(diffs, "index: absent != present")
	case a.Index != nil && b.Index == nil:
		diffs = append(diffs, "index: present != absent")
	case a.Index != nil && b.Index != nil:
		if len(a.Index) != len(b.Index) {
			diffs = append(diffs, fmt.Sprintf("index length: %d != %d", len(a.Index), len(b.Index)))
		}
		for i := 0; i < len(a.Index) && i < len(b.Index); i++ {
			if a.Index[i] != b.Index[i] {
				diffs = append(diffs, fmt.Sprintf("index[%d]: %d != %d", i, a.Index[i], b.Index[i]))
			}
		}
	}
	diffs = cmpAtoms(diffs, a.Atoms, b.Atoms, rtol, atol)
	return diffs
}

func cmpVecs(diffs []string, name string, a, b *v3.Matrix, rtol, atol float64) []string {
	switch {
	case a == nil && b == nil:
		return diffs
	case a == nil:
		return append(diffs, fmt.Sprintf("%s: absent != present", name))
	case b == nil:
		return append(diffs, fmt.Sprintf("%s: present != absent", name))
	}
	n := a.NVecs()
	if b.NVecs() < n {
		n = b.NVecs()
	}
	for i := 0; i < n; i++ {
		for j := 0; j < 3; j++ {
			if !eqTol(a.At(i, j), b.At(i, j), rtol, atol) {
				diffs = append(diffs, fmt.Sprintf("%s[%d][%d]: %g != %g", name, i, j, a.At(i, j), b.At(i, j)))
			}
		}
	}
	return diffs
}

func cmpAtoms(diffs []string, a, b *Topology, rtol, atol float64) []string {
	switch {
	case a == nil && b == nil:
		return diffs
	case a == nil:
		return append(diffs, "atoms: absent != present")
	case b == nil:
		return append(diffs, "atoms: present != absent")
	}
	if a.Len() != b.Len() {
		diffs = append(diffs, fmt.Sprintf("atoms length: %d != %d", a.Len(), b.Len()))
	}
	n := a.Len()
	if b.Len() < n {
		n = b.Len()
	}
	for i := 0; i < n; i++ {
		aa, ba := a.Atom(i), b.Atom(i)
		if aa.Name != ba.Name {
			diffs = append(diffs, fmt.Sprintf("atom[%d] name: %q != %q", i, aa.Name, ba.Name))
		}
		if !eqTol(aa.Mass, ba.Mass, rtol, atol) {
			diffs = append(diffs, fmt.Sprintf("atom[%d] mass: %g != %g", i, aa.Mass, ba.Mass))
		}
		if !eqTol(aa.Charge, ba.Charge, rtol, atol) {
			diffs = append(diffs, fmt.Sprintf("atom[%d] charge: %g != %g", i, aa.Charge, ba.Charge))
		}
	}
	return diffs
}
