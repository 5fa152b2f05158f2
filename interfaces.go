/*
 * interfaces.go, part of gotaf.
 *
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
 *
 */

package taf

/*The idea is to equate every way of producing frames: format readers, in-memory
 * sequences and whatever a user wants to plug in. A Traj hands out one Frame at a
 * time, filling buffers the caller owns, so the same analysis loop works on any
 * of them without knowing where the frames come from.*/

// Traj is an interface for any frame source, including the in-memory MemTraj.
type Traj interface {

	//Is the trajectory ready to be read?
	Readable() bool

	//Next reads the next frame into f, filling only the per-atom buffers
	//that are not nil in f, and setting to nil those the source cannot
	//provide. A nil f reads and discards a frame. The error is a
	//LastFrameError when the trajectory ended normally.
	Next(f *Frame) error

	//Returns the number of atoms per frame
	Len() int
}

// ConfigurableTraj is a Traj that can be told in advance which per-atom
// fields will be requested, so it can skip decoding the rest.
type ConfigurableTraj interface {
	Traj

	//Configure declares the fields that subsequent calls to Next will ask
	//for. Sources that cannot provide one of them should return an error
	//here rather than fail on every read.
	Configure(fields FieldSet) error
}

// Atomer is the basic interface for a topology.
type Atomer interface {

	//Atom returns the Atom corresponding to the index i
	//of the Atom slice in the Topology. Should panic if
	//out of range.
	Atom(i int) *Atom

	Len() int
}

// Masser can return a slice with the masses of each atom in the reference.
type Masser interface {

	//Returns a slice with the masses of all atoms
	Masses() ([]float64, error)
}

//Errors

//This error predates the "wrapping" error system of Go (i.e. the "%w" directive and the errors package).
//It is kept because it allows adding context without changing the type of the error, which the
//analysis loops rely on for filtering.

// Error is the interface for errors that all packages in this library implement. The Decorate method allows to add and retrieve info from the
// error, without changing it's type or wrapping it around something else.
type Error interface {
	Error() string
	Decorate(string) []string //Decorate adds information when passing the error up. Each call also returns the "decoration" slice of strings resulting from the current call. If passed an empty string, it should just return the current value, not add the empty string to the slice.
	//The decorate slice should contain a list of functions in the calling stack, plus, for each function any relevant information, or nothing. If information is to be added to an element of the slice, it should be in this format: "FunctionName: Extra info"
}

// TrajError is the interface for errors in trajectories
type TrajError interface {
	Error
	Critical() bool
	FileName() string
	Format() string
}

// LastFrameError has a useless function to distinguish the harmless errors (i.e. last frame) so they can be
// filtered in a typeswitch that looks for this interface.
type LastFrameError interface {
	TrajError
	NormalLastFrameTermination() //does nothing, just to separate this interface from other TrajError's

}
