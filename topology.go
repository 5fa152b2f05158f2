/*
 * topology.go, part of gotaf.
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

import "fmt"

/**Note: Several functions here panic instead of returning errors. This is because they are "fundamental"
 * functions. I considered that if something goes wrong here, the program is way-most likely wrong and should
 * crash. Most panics are related to using the function on a nil object or trying to access out-of bounds
 * fields**/

//Atom contains the static information for one atom. The dynamic data
//(positions, velocities, forces) lives in the frames.
type Atom struct {
	Name    string
	ID      int
	MolName string
	MolID   int
	Chain   string
	Mass    float64
	Charge  float64
	Symbol  string
}

//Copy returns a copy of the Atom object.
func (A *Atom) Copy() *Atom {
	if A == nil {
		panic("Attempted to copy a nil atom")
	}
	Newat := new(Atom)
	*Newat = *A
	return Newat
}

/*****Topology type***/

//Topology contains information about a set of atoms which is not expected to change in time.
type Topology struct {
	Atoms    []*Atom
	charge   int
	unpaired int
}

//MakeTopology builds a Topology with ats atoms, charge charge and unpaired
//unpaired electrons, and returns it. It returns an error if ats is nil. It
//doesn't check for correct charge or unpaired electrons.
func MakeTopology(ats []*Atom, charge, unpaired int) (*Topology, error) {
	if ats == nil {
		return nil, fmt.Errorf("Supplied a nil atom slice")
	}
	top := new(Topology)
	top.Atoms = ats
	top.charge = charge
	top.unpaired = unpaired
	return top, nil
}

//NewTopology returns an empty topology with the given charge and unpaired
//electrons, to be filled with SomeAtoms.
func NewTopology(charge, unpaired int) *Topology {
	top := new(Topology)
	top.Atoms = make([]*Atom, 0)
	top.charge = charge
	top.unpaired = unpaired
	return top
}

/*Topology methods*/

//Charge gets the total charge of the topology
func (T *Topology) Charge() int {
	return T.charge
}

//Unpaired gets the number of unpaired electrons in the topology
func (T *Topology) Unpaired() int {
	return T.unpaired
}

//SetCharge sets the total charge of the topology to i
func (T *Topology) SetCharge(i int) {
	T.charge = i
}

//SetUnpaired sets the number of unpaired electrons in the topology to i
func (T *Topology) SetUnpaired(i int) {
	T.unpaired = i
}

//Atom returns the Atom corresponding to the index i
//of the Atom slice in the Topology. Panics if
//out of range.
func (T *Topology) Atom(i int) *Atom {
	if i >= T.Len() {
		panic("Topology: Requested Atom out of bounds")
	}
	return T.Atoms[i]
}

//Len returns the number of atoms in the topology.
func (T *Topology) Len() int {
	return len(T.Atoms)
}

//Copy returns a deep copy of the topology. The copy shares no atoms with
//the original.
func (T *Topology) Copy() *Topology {
	if T == nil {
		panic("Attempted to copy a nil topology")
	}
	Top := new(Topology)
	Top.Atoms = make([]*Atom, T.Len())
	for key, val := range T.Atoms {
		Top.Atoms[key] = val.Copy()
	}
	Top.charge = T.charge
	Top.unpaired = T.unpaired
	return Top
}

//SomeAtoms fills the receiver with the atoms of A with the indexes in
//atomlist, in that order. The atoms are shared, not copied, so changes to
//them affect the original reference. It returns an error if an index is
//out of range.
func (T *Topology) SomeAtoms(A Atomer, atomlist []int) error {
	lenatoms := A.Len()
	ret := make([]*Atom, 0, len(atomlist))
	for k, j := range atomlist {
		if j > lenatoms-1 || j < 0 {
			return NewCError(fmt.Sprintf("Atom requested (Number: %d, value: %d) out of range", k, j), "SomeAtoms")
		}
		ret = append(ret, A.Atom(j))
	}
	T.Atoms = ret
	return nil
}

//Masses returns a slice with the masses of all atoms, and an error if they
//have not been set.
func (T *Topology) Masses() ([]float64, error) {
	mass := make([]float64, T.Len())
	for i := 0; i < T.Len(); i++ {
		thisatom := T.Atom(i)
		if thisatom.Mass == 0 {
			return nil, fmt.Errorf("Not all the masses have been obtained: %d %v", i, thisatom)
		}
		mass[i] = thisatom.Mass
	}
	return mass, nil
}
