/*
 * errors.go, part of gotaf
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

	taf "github.com/kassonlab/gotaf"
)

//StateError reports an operation attempted on a Runner in a state that
//doesn't allow it. It is a programmer error and it is never swallowed.
type StateError struct {
	Op    string //the rejected operation
	State State  //the state the runner was in
	deco  []string
}

func (err *StateError) Error() string {
	return fmt.Sprintf("analysis runner: cannot %s while %s", err.Op, err.State)
}

//Decorate adds new information to the error
func (err *StateError) Decorate(deco string) []string {
	if deco != "" {
		err.deco = append(err.deco, deco)
	}
	return err.deco
}

//Critical returns true: state violations mean the calling program is wrong.
func (err *StateError) Critical() bool { return true }

//Reasons for a SetupError.
const (
	NoModules         = "no analysis modules registered"
	SourceNotReadable = "trajectory source is not readable"
	MissingFields     = "trajectory does not provide a required field"
	MissingBox        = "periodic boundary information required but the frame has no box"
	BadTopology       = "topology atom count does not match the trajectory"
)

//SetupError reports a configuration or data problem found while preparing
//or validating the stream. The Reason field takes one of the constants
//above, so callers can react without parsing messages. These errors are
//recoverable: the caller may fix the setup and try again.
type SetupError struct {
	Reason string
	detail string
	deco   []string
}

func newSetupError(reason, detail, caller string) *SetupError {
	err := &SetupError{Reason: reason, detail: detail}
	if caller != "" {
		err.deco = append(err.deco, caller)
	}
	return err
}

func (err *SetupError) Error() string {
	if err.detail == "" {
		return "analysis setup: " + err.Reason
	}
	return "analysis setup: " + err.Reason + ": " + err.detail
}

//Decorate adds new information to the error
func (err *SetupError) Decorate(deco string) []string {
	if deco != "" {
		err.deco = append(err.deco, deco)
	}
	return err.deco
}

//Critical returns false, the caller can reconfigure and retry.
func (err *SetupError) Critical() bool { return false }

//lastFrameError implements taf.LastFrameError. Advance returns it when the
//stream ends normally, after the modules have been finalized.
type lastFrameError struct {
	deco []string
}

//NormalLastFrameTermination does nothing
func (E lastFrameError) NormalLastFrameTermination() {}

func (E lastFrameError) FileName() string { return "" }

func (E lastFrameError) Error() string { return "EOF" }

func (E lastFrameError) Critical() bool { return false }

func (E lastFrameError) Format() string { return "" }

func (E lastFrameError) Decorate(deco string) []string {
	if deco != "" {
		E.deco = append(E.deco, deco)
	}
	return E.deco
}

//errDecorate is a helper function that asserts that the error implements
//taf.Error and decorates the error with the caller's name before returning it.
//if used with a non-taf.Error error, it will cause a panic.
func errDecorate(err error, caller string) error {
	err2 := err.(taf.Error)
	err2.Decorate(caller)
	return err2
}
