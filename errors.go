/*
 * errors.go, part of gotaf.
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

//CError (concrete error) fulfills the Error interface. It is the concrete
//error type of the root package.
type CError struct {
	msg  string
	deco []string
}

//NewCError returns a CError with the given message, optionally decorated
//with the name of the caller.
func NewCError(msg string, caller ...string) *CError {
	err := &CError{msg: msg}
	if len(caller) > 0 {
		err.deco = append(err.deco, caller[0])
	}
	return err
}

func (err *CError) Error() string {
	return err.msg
}

//Decorate adds new information to the error
func (err *CError) Decorate(deco string) []string {
	if deco != "" {
		err.deco = append(err.deco, deco)
	}
	return err.deco
}

//MalformedFrame signals disagreement between the declared atom count of a
//Frame and the size of one of its buffers. The frame it refers to should not
//be trusted, copied or written.
type MalformedFrame struct {
	Field string //the offending buffer
	Want  int    //entries expected from NAtoms
	Got   int    //entries found
	deco  []string
}

func (err *MalformedFrame) Error() string {
	return fmt.Sprintf("gotaf: malformed frame: %s has %d entries, want %d", err.Field, err.Got, err.Want)
}

//Decorate adds new information to the error
func (err *MalformedFrame) Decorate(deco string) []string {
	if deco != "" {
		err.deco = append(err.deco, deco)
	}
	return err.deco
}

//Critical returns true. A malformed frame is never recoverable.
func (err *MalformedFrame) Critical() bool { return true }

//Messages for the root package errors.
const (
	TrajUnIniRead   = "Traj object uninitialized to read"
	NilFrame        = "Given a nil frame"
	NotEnoughSpace  = "Not enough space in passed buffers"
	WrongBox        = "Box must have 9 elements, row-major"
	BadBoxVectors   = "Box vectors do not follow the expected convention"
	WrongAtomNumber = "Frame has the wrong number of atoms for this trajectory"
)

//lastFrameError implements LastFrameError. It is returned by the in-memory
//trajectory when the frames run out.
type lastFrameError struct {
	deco     []string
	fileName string
}

//NormalLastFrameTermination does nothing
func (E lastFrameError) NormalLastFrameTermination() {}

func (E lastFrameError) FileName() string { return E.fileName }

func (E lastFrameError) Error() string { return "EOF" }

func (E lastFrameError) Critical() bool { return false }

func (E lastFrameError) Format() string { return "mem" }

func (E lastFrameError) Decorate(deco string) []string {
	if deco != "" {
		E.deco = append(E.deco, deco)
	}
	return E.deco
}

func newlastFrameError(filename string, caller string) *lastFrameError {
	e := new(lastFrameError)
	e.fileName = filename
	e.deco = []string{caller}
	return e
}
