/*
 * cache.go, part of gotaf
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
	taf "github.com/kassonlab/gotaf"
)

//CacheModule is an analysis module that retains a deep copy of the most
//recent frame it was given. The runner reuses its frame storage, so a
//borrowed frame is only valid during the AnalyzeFrame call; the cache is
//the way to keep the final state of the system around after the stream
//ends, and a convenient probe in tests.
type CacheModule struct {
	frame   *taf.Frame
	nframes int
}

//NewCacheModule returns a CacheModule with nothing cached yet.
func NewCacheModule() *CacheModule {
	return new(CacheModule)
}

//Configure declares that the module wants positions. The cached copy
//still carries whatever else the frames happen to include.
func (C *CacheModule) Configure(s *Settings) error {
	s.RequireFields(taf.FieldPos)
	return nil
}

//Init does nothing, the module needs no topology.
func (C *CacheModule) Init(top taf.Atomer) error {
	return nil
}

//AnalyzeFrame replaces the cached frame with a deep copy of f.
func (C *CacheModule) AnalyzeFrame(frnr int, f *taf.Frame, pbc *taf.PBC, pd *ParContext) error {
	nf, err := f.Copy()
	if err != nil {
		return errDecorate(err, "CacheModule.AnalyzeFrame")
	}
	if C.frame != nil {
		C.frame.Release()
	}
	C.frame = nf
	return nil
}

//Finish records the total number of frames the stream delivered.
func (C *CacheModule) Finish(nframes int) error {
	C.nframes = nframes
	return nil
}

//WriteOutput does nothing, the cached frame itself is the output.
func (C *CacheModule) WriteOutput() error {
	return nil
}

//Frame returns the cached copy of the last frame seen, or nil if the
//module never saw one. The copy belongs to the module and is replaced,
//not mutated, when the next frame arrives.
func (C *CacheModule) Frame() *taf.Frame {
	return C.frame
}

//NFrames returns the number of frames the stream delivered, as reported
//at finalization. It is only meaningful once the stream has finished.
func (C *CacheModule) NFrames() int {
	return C.nframes
}
