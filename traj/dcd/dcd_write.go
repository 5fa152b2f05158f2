/*
 * dcd_write.go, part of gotaf
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

package dcd

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"

	taf "github.com/kassonlab/gotaf"
)

//DcdW is a handle for writing a DCD trajectory. It only writes plain,
//little-endian files: the frame count lives at the start of the file and
//has to be patched after every frame, which a compressed stream does not
//allow.
type DcdW struct {
	f         *os.File
	filename  string
	natoms    int
	frames    int32
	endian    binary.ByteOrder
	writeable bool
	x, y, z   []float32
}

//NewWriter creates the named file and writes a DCD header for frames of
//natoms atoms. The optional title is cut to 80 bytes. The header declares
//a first step of zero, a save interval of one and a delta of one, so
//readers will number the frames 0, 1, 2...
func NewWriter(name string, natoms int, title ...string) (*DcdW, error) {
	S := new(DcdW)
	S.filename = name
	S.endian = binary.LittleEndian
	if natoms <= 0 {
		return nil, Error{fmt.Sprintf("can't write frames of %d atoms", natoms), S.filename, []string{"NewWriter"}, true}
	}
	S.natoms = natoms
	var err error
	S.f, err = os.Create(name)
	if err != nil {
		return nil, Error{err.Error(), S.filename, []string{"os.Create", "NewWriter"}, true}
	}
	if err := S.writeHeader(title...); err != nil {
		S.f.Close()
		return nil, errDecorate(err, "NewWriter")
	}
	S.x = make([]float32, natoms)
	S.y = make([]float32, natoms)
	S.z = make([]float32, natoms)
	S.writeable = true
	return S, nil
}

//write wraps binary.Write with the handle's endianness and error type.
func (S *DcdW) write(data interface{}, caller string) error {
	if err := binary.Write(S.f, S.endian, data); err != nil {
		return Error{err.Error(), S.filename, []string{"binary.Write", caller}, true}
	}
	return nil
}

func (S *DcdW) writeHeader(title ...string) error {
	if err := S.write(int32(84), "writeHeader"); err != nil {
		return err
	}
	if err := S.write([]byte("CORD"), "writeHeader"); err != nil {
		return err
	}
	//frame count (patched after every frame), first step, save interval,
	//then zeros up to the delta. The zero at offset 32 declares no fixed
	//atoms.
	if err := S.write([]int32{0, 0, 1, 0, 0, 0, 0, 0, 0}, "writeHeader"); err != nil {
		return err
	}
	if err := S.write(float32(1), "writeHeader"); err != nil {
		return err
	}
	//no unit cell record, no 4-D block, then the CHARMM version, which
	//has to be nonzero or readers take the file for an X-plor one.
	if err := S.write(make([]int32, 9), "writeHeader"); err != nil {
		return err
	}
	if err := S.write(int32(24), "writeHeader"); err != nil {
		return err
	}
	if err := S.write(int32(84), "writeHeader"); err != nil {
		return err
	}
	//the title record holds one 80-byte unit.
	if err := S.write(int32(4+mAXTITLE), "writeHeader"); err != nil {
		return err
	}
	if err := S.write(int32(1), "writeHeader"); err != nil {
		return err
	}
	t := "Created with gotaf"
	if len(title) > 0 && title[0] != "" {
		t = title[0]
	}
	tb := make([]byte, mAXTITLE)
	copy(tb, t)
	if err := S.write(tb, "writeHeader"); err != nil {
		return err
	}
	if err := S.write(int32(4+mAXTITLE), "writeHeader"); err != nil {
		return err
	}
	if err := S.write(int32(4), "writeHeader"); err != nil {
		return err
	}
	if err := S.write(int32(S.natoms), "writeHeader"); err != nil {
		return err
	}
	return S.write(int32(4), "writeHeader")
}

//WNext writes the positions of f as the next frame of the trajectory.
//Everything else in the frame is dropped: the format carries no
//velocities, forces, box or per-frame step, and the title was fixed when
//the file was created.
func (S *DcdW) WNext(f *taf.Frame) error {
	if !S.writeable {
		return Error{TrajUnIniWrite, S.filename, []string{"WNext"}, true}
	}
	if f == nil {
		return Error{NilFrame, S.filename, []string{"WNext"}, true}
	}
	if f.Pos == nil {
		return Error{"the frame carries no positions", S.filename, []string{"WNext"}, true}
	}
	if v := f.Pos.NVecs(); v != S.natoms {
		return Error{fmt.Sprintf("%d coordinates given, but %d expected", v, S.natoms), S.filename, []string{"WNext"}, true}
	}
	for i := 0; i < S.natoms; i++ {
		S.x[i] = float32(f.Pos.At(i, 0))
		S.y[i] = float32(f.Pos.At(i, 1))
		S.z[i] = float32(f.Pos.At(i, 2))
	}
	for _, block := range [][]float32{S.x, S.y, S.z} {
		if err := S.writeFloat32Block(block); err != nil {
			return errDecorate(err, "WNext")
		}
	}
	S.frames++
	if err := S.updateFrames(); err != nil {
		return errDecorate(err, "WNext")
	}
	return nil
}

//writeFloat32Block writes one coordinate record, bracketed by its size.
func (S *DcdW) writeFloat32Block(block []float32) error {
	blocksize := int32(len(block)) * 4
	if err := S.write(blocksize, "writeFloat32Block"); err != nil {
		return err
	}
	if err := S.write(block, "writeFloat32Block"); err != nil {
		return err
	}
	return S.write(blocksize, "writeFloat32Block")
}

//updateFrames patches the frame count of the header, which sits right
//after the leading record marker and the magic number.
func (S *DcdW) updateFrames() error {
	buf := new(bytes.Buffer)
	binary.Write(buf, S.endian, S.frames)
	if _, err := S.f.WriteAt(buf.Bytes(), 8); err != nil {
		return Error{err.Error(), S.filename, []string{"os.File.WriteAt", "updateFrames"}, true}
	}
	return nil
}

//Close closes the file. The writer can not be used after this call.
func (S *DcdW) Close() error {
	if S == nil || !S.writeable {
		return nil
	}
	S.writeable = false
	if err := S.f.Close(); err != nil {
		return Error{err.Error(), S.filename, []string{"Close"}, true}
	}
	return nil
}

//Len returns the number of atoms per frame.
func (S *DcdW) Len() int {
	return S.natoms
}

//Fields returns the per-atom fields the writer puts in every frame,
//always just positions.
func (S *DcdW) Fields() taf.FieldSet {
	return taf.FieldPos
}
