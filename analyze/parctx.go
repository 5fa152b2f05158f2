/*
 * parctx.go, part of gotaf
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

import "sync"

//ParContext tracks the background work of one module during one run. The
//runner hands each module its own context at the start of the run and
//waits on all of them before any module is finalized, so work launched
//through Go is guaranteed to have returned by the time Finish runs.
//
//The work must not touch the frame the module borrowed: by the time it
//runs, the buffers hold a later frame. Launch it on copies.
type ParContext struct {
	workers int
	wg      sync.WaitGroup
}

//Workers returns how many goroutines the module is expected to keep busy
//at most. It is a sizing hint, Go does not enforce it.
func (P *ParContext) Workers() int {
	return P.workers
}

//Go launches f on its own goroutine, tracked by the context.
func (P *ParContext) Go(f func()) {
	P.wg.Add(1)
	go func() {
		defer P.wg.Done()
		f()
	}()
}

//Wait blocks until every function launched through Go has returned. The
//runner calls it before finalizing; modules may also call it themselves,
//for example to reduce partial results at the end of a frame.
func (P *ParContext) Wait() {
	P.wg.Wait()
}
