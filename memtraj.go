/*
 * memtraj.go, part of gotaf.
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

	v3 "github.com/kassonlab/gotaf/v3"
)

//MemTraj is an in-memory sequence of frames implementing the Traj
//interface. It is the reference implementation of the frame-filling
//protocol: reads copy values into the caller's buffers, never aliasing the
//stored frames, and per-atom buffers the stored frames lack are set to nil
//in the destination.
type MemTraj struct {
	frames   []*Frame
	natoms   int
	current  int
	readable bool
}

//NewMemTraj returns a MemTraj for natoms atoms holding the given frames,
//which are NOT copied, so the caller should not modify them afterwards. It
//returns an error if a frame is corrupted or has the wrong number of atoms.
//A trajectory with no frames is valid: it is readable, and ends on the
//first read.
func NewMemTraj(natoms int, frames ...*Frame) (*MemTraj, error) {
	M := new(MemTraj)
	M.natoms = natoms
	M.readable = true
	M.frames = make([]*Frame, 0, len(frames))
	for _, f := range frames {
		if err := M.AppendFrame(f); err != nil {
			return nil, err
		}
	}
	return M, nil
}

//AppendFrame adds a frame at the end of the trajectory. The frame is not
//copied.
func (M *MemTraj) AppendFrame(f *Frame) error {
	if f == nil {
		return NewCError(NilFrame, "AppendFrame")
	}
	if err := f.Corrupted(); err != nil {
		err.(*MalformedFrame).Decorate("AppendFrame")
		return err
	}
	if f.NAtoms != M.natoms {
		return NewCError(fmt.Sprintf("%s: frame %d, trajectory %d", WrongAtomNumber, f.NAtoms, M.natoms), "AppendFrame")
	}
	M.frames = append(M.frames, f)
	return nil
}

//Readable returns true if it is possible to call Next on the trajectory.
//Note that a readable trajectory may still have no frames left.
func (M *MemTraj) Readable() bool {
	return M != nil && M.readable
}

//Len returns the number of atoms per frame.
func (M *MemTraj) Len() int {
	return M.natoms
}

//NFrames returns the number of frames stored.
func (M *MemTraj) NFrames() int {
	return len(M.frames)
}

//Current returns the index of the next frame to be read.
func (M *MemTraj) Current() int {
	if M == nil {
		return -1
	}
	return M.current
}

//SetCurrent sets the next frame to be read to i, which allows re-reading
//the trajectory. Panics if i is out of range.
func (M *MemTraj) SetCurrent(i int) {
	if i < 0 || i > len(M.frames) {
		panic("Invalid new value for current")
	}
	M.current = i
}

//Close marks the trajectory as unreadable.
func (M *MemTraj) Close() {
	M.readable = false
}

//Next reads the next frame into f, or discards it if f is nil. The per-atom
//buffers of f that are not nil are filled in place, and must have room for
//Len() atoms. Per-atom fields the stored frame lacks are set to nil in f.
//When the frames run out, the returned error implements LastFrameError.
func (M *MemTraj) Next(f *Frame) error {
	if !M.Readable() {
		return NewCError(TrajUnIniRead, "Next")
	}
	if M.current >= len(M.frames) {
		return newlastFrameError("", "Next")
	}
	src := M.frames[M.current]
	M.current++
	if f == nil {
		return nil
	}
	f.NAtoms = src.NAtoms
	f.Step = src.Step
	f.Time = src.Time
	f.Title = src.Title
	var err error
	if f.Pos, err = fillVecs(f.Pos, src.Pos, M.natoms); err != nil {
		return err
	}
	if f.Vel, err = fillVecs(f.Vel, src.Vel, M.natoms); err != nil {
		return err
	}
	if f.Force, err = fillVecs(f.Force, src.Force, M.natoms); err != nil {
		return err
	}
	if src.Box != nil {
		if len(f.Box) != 9 {
			f.Box = make([]float64, 9)
		}
		copy(f.Box, src.Box)
	} else {
		f.Box = nil
	}
	if src.Atoms != nil {
		f.Atoms = src.Atoms.Copy()
	} else {
		f.Atoms = nil
	}
	if src.Index != nil {
		f.Index = make([]int, len(src.Index))
		copy(f.Index, src.Index)
	} else {
		f.Index = nil
	}
	return nil
}

//fillVecs copies src into the caller-owned dst buffer. A nil dst means the
//field was not requested; a nil src means the source lacks the field, and
//it becomes absent in the destination.
func fillVecs(dst, src *v3.Matrix, natoms int) (*v3.Matrix, error) {
	if dst == nil || src == nil {
		return nil, nil
	}
	if dst.NVecs() != natoms {
		return dst, NewCError(NotEnoughSpace, "Next")
	}
	dst.Copy(src)
	return dst, nil
}
