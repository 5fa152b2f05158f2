/*
 * dcd.go, part of gotaf
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

//Package dcd reads and writes CHARMM/NAMD DCD binary trajectories. Only
//positions travel in this format; the per-frame step and time are
//synthesized from the header (first step, save interval and delta). The
//reader takes CHARMM and NAMD >= 2.1 files, big or little endian, with no
//fixed atoms; X-plor files are not supported. Files compressed with zstd,
//gzip or lzw are read transparently when named with the matching extra
//extension (the writer only produces plain files, as it needs to seek
//back to keep the header's frame count honest).
package dcd

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"compress/lzw"
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	taf "github.com/kassonlab/gotaf"
	"github.com/klauspost/compress/zstd"
)

const mAXTITLE int32 = 80

const lzwLitwidth int = 8

//DcdR is a handle for reading a DCD trajectory.
type DcdR struct {
	f          *os.File
	dec        io.ReadCloser
	h          *bufio.Reader
	filename   string
	natoms     int
	nframes    int
	istart     int
	nsavc      int
	fixed      int32
	delta      float64
	title      string
	endian     binary.ByteOrder
	charmm     bool
	extrablock bool
	fourdim    bool
	readLast   bool
	readable   bool
	x, y, z    []float32
	nread      int
}

//stdql gives the zstd decoder the Close method it lacks, so all the
//decompressors can hide behind an io.ReadCloser.
type stdql struct {
	closeql func()
	*zstd.Decoder
}

func (s stdql) Close() error {
	s.closeql()
	return nil
}

//New opens a DCD trajectory for reading and parses its header. The last
//component of the file name picks the decompressor: "zst"/"zstd", "gz" or
//"lzw"; "dcd" or anything else is read as a plain file.
func New(name string) (*DcdR, error) {
	S := new(DcdR)
	S.filename = name
	var err error
	S.f, err = os.Open(name)
	if err != nil {
		return nil, err
	}
	parts := strings.Split(strings.ToLower(name), ".")
	ext := parts[len(parts)-1]
	inter := bufio.NewReader(S.f)
	switch ext {
	case "zst", "zstd":
		r, err := zstd.NewReader(inter)
		if err != nil {
			return nil, Error{"Can't read file: " + err.Error(), S.filename, []string{"New"}, true}
		}
		S.dec = &stdql{r.Close, r}
	case "gz":
		S.dec, err = gzip.NewReader(inter)
		if err != nil {
			return nil, Error{"Can't read file: " + err.Error(), S.filename, []string{"New"}, true}
		}
	case "lzw":
		S.dec = lzw.NewReader(inter, lzw.MSB, lzwLitwidth)
	case "dcd":
		S.dec = io.NopCloser(inter)
	default:
		log.Printf("Unknown extension %q for trajectory %s. Will assume a plain DCD", ext, name)
		S.dec = io.NopCloser(inter)
	}
	S.h = bufio.NewReader(S.dec)
	if err := S.readHeader(); err != nil {
		S.dec.Close()
		S.f.Close()
		return nil, err
	}
	return S, nil
}

//read wraps binary.Read with the handle's endianness and error type.
func (S *DcdR) read(data interface{}, caller string) error {
	if err := binary.Read(S.h, S.endian, data); err != nil {
		return Error{err.Error(), S.filename, []string{"binary.Read", caller}, true}
	}
	return nil
}

//check32 reads one int32 and fails unless it has the given value. The
//record markers of the format are fixed numbers, so a mismatch means the
//file is damaged or not a DCD at all.
func (S *DcdR) check32(want int32, caller string) error {
	var got int32
	if err := S.read(&got, caller); err != nil {
		return err
	}
	if got != want {
		return Error{fmt.Sprintf("%s: expected a %d marker, got %d", WrongFormat, want, got), S.filename, []string{caller}, true}
	}
	return nil
}

func (S *DcdR) readHeader() error {
	b4 := make([]byte, 4)
	if _, err := io.ReadFull(S.h, b4); err != nil {
		return Error{"Can't read header: " + err.Error(), S.filename, []string{"readHeader"}, true}
	}
	//The first record is always 84 bytes long, which doubles as the
	//endianness probe.
	switch {
	case binary.LittleEndian.Uint32(b4) == 84:
		S.endian = binary.LittleEndian
	case binary.BigEndian.Uint32(b4) == 84:
		S.endian = binary.BigEndian
	default:
		return Error{WrongFormat + ": the first record is not 84 bytes long", S.filename, []string{"readHeader"}, true}
	}
	magic := make([]byte, 4)
	if err := S.read(magic, "readHeader"); err != nil {
		return err
	}
	if string(magic) != "CORD" {
		return Error{WrongFormat + ": wrong magic number", S.filename, []string{"readHeader"}, true}
	}
	//the rest of the first record, read whole for random access.
	buf := make([]byte, 80)
	if err := S.read(buf, "readHeader"); err != nil {
		return err
	}
	at := func(offset int) int32 {
		var v int32
		binary.Read(bytes.NewBuffer(buf[offset:]), S.endian, &v)
		return v
	}
	//X-plor sets the last int to zero, CHARMM to its version number.
	if at(76) == 0 {
		return Error{"X-plor DCD not supported", S.filename, []string{"readHeader"}, true}
	}
	S.charmm = true
	S.nframes = int(at(0))
	S.istart = int(at(4))
	S.nsavc = int(at(8))
	if S.nsavc < 1 {
		S.nsavc = 1
	}
	S.fixed = at(32)
	var delta float32
	binary.Read(bytes.NewBuffer(buf[36:]), S.endian, &delta)
	S.delta = float64(delta)
	if at(40) != 0 {
		S.extrablock = true
	}
	if at(44) == 1 {
		S.fourdim = true
	}
	if err := S.check32(84, "readHeader"); err != nil {
		return err
	}
	//the title record: its opening marker, how many 80-byte units the
	//title has, the units themselves, and the closing marker.
	var marker, ntitle int32
	if err := S.read(&marker, "readHeader"); err != nil {
		return err
	}
	if err := S.read(&ntitle, "readHeader"); err != nil {
		return err
	}
	if ntitle < 0 || ntitle > 100 {
		return Error{fmt.Sprintf("%s: unreasonable title length %d", WrongFormat, ntitle), S.filename, []string{"readHeader"}, true}
	}
	title := make([]byte, int(mAXTITLE)*int(ntitle))
	if err := S.read(title, "readHeader"); err != nil {
		return err
	}
	s := string(title)
	if i := strings.IndexByte(s, 0); i >= 0 {
		s = s[:i]
	}
	S.title = strings.TrimRight(s, " ")
	if err := S.read(&marker, "readHeader"); err != nil {
		return err
	}
	if err := S.check32(4, "readHeader"); err != nil {
		return err
	}
	var natoms int32
	if err := S.read(&natoms, "readHeader"); err != nil {
		return err
	}
	S.natoms = int(natoms)
	if err := S.check32(4, "readHeader"); err != nil {
		return err
	}
	if S.fixed != 0 {
		return Error{"Fixed atoms not supported", S.filename, []string{"readHeader"}, true}
	}
	S.x = make([]float32, S.natoms)
	S.y = make([]float32, S.natoms)
	S.z = make([]float32, S.natoms)
	S.readable = true
	return nil
}

//Readable returns true if it is possible to call Next on the handle.
func (S *DcdR) Readable() bool {
	return S != nil && S.readable
}

//Configure checks the given fields against what the format carries, which
//is positions only (positions, if zero). There is nothing to restrict:
//the format has no optional per-atom data to skip.
func (S *DcdR) Configure(fields taf.FieldSet) error {
	if fields == 0 {
		fields = taf.FieldPos
	}
	if missing := fields &^ taf.FieldPos; missing != 0 {
		return Error{fmt.Sprintf("the trajectory carries only positions, but %q was requested", missing), S.filename, []string{"Configure"}, true}
	}
	return nil
}

//Fields returns the per-atom fields the format carries, always positions.
func (S *DcdR) Fields() taf.FieldSet {
	return taf.FieldPos
}

//Next puts the next frame of the trajectory in f, whose Pos buffer, if
//not nil, must hold Len() atoms. Velocities, forces and box are set to
//nil: the format does not carry them. Step and Time are synthesized from
//the header. A nil f reads a whole frame and discards it. The returned
//error is a taf.LastFrameError when the trajectory ended normally.
func (S *DcdR) Next(f *taf.Frame) error {
	if !S.readable {
		return Error{TrajUnIniRead, S.filename, []string{"Next"}, true}
	}
	if S.readLast {
		//the 4-D skip of the previous frame already met the end of the
		//file.
		S.Close()
		return newlastFrameError(S.filename, "Next")
	}
	if err := S.nextRaw(); err != nil {
		return errDecorate(err, "Next")
	}
	S.nread++
	if f == nil {
		return nil
	}
	f.NAtoms = S.natoms
	f.Step = S.istart + (S.nread-1)*S.nsavc
	f.Time = S.delta * float64(f.Step)
	f.Title = S.title
	if f.Pos != nil {
		if f.Pos.NVecs() != S.natoms {
			return Error{NotEnoughSpace, S.filename, []string{"Next"}, true}
		}
		for i := 0; i < S.natoms; i++ {
			f.Pos.Set(i, 0, float64(S.x[i]))
			f.Pos.Set(i, 1, float64(S.y[i]))
			f.Pos.Set(i, 2, float64(S.z[i]))
		}
	}
	f.Vel = nil
	f.Force = nil
	f.Box = nil
	f.Atoms = nil
	f.Index = nil
	return nil
}

//nextRaw reads the blocks of one frame into the handle's own buffers.
func (S *DcdR) nextRaw() error {
	var blocksize int32
	//A CHARMM extra block (the unit cell) may precede the coordinates,
	//but not necessarily in every frame, so the size of the first record
	//is the only way to tell whether it is the extra block or already the
	//X coordinates.
	if S.extrablock {
		if err := S.frameStart(&blocksize); err != nil {
			return err
		}
		if blocksize != int32(S.natoms)*4 {
			if err := S.skipBlock(blocksize); err != nil {
				return err
			}
			blocksize = 0
		}
	}
	if blocksize == 0 {
		if err := S.frameStart(&blocksize); err != nil {
			return err
		}
	}
	if err := S.readFloat32Block(blocksize, S.x); err != nil {
		return err
	}
	if err := S.read(&blocksize, "nextRaw"); err != nil {
		return err
	}
	if err := S.readFloat32Block(blocksize, S.y); err != nil {
		return err
	}
	if err := S.read(&blocksize, "nextRaw"); err != nil {
		return err
	}
	if err := S.readFloat32Block(blocksize, S.z); err != nil {
		return err
	}
	//the 4-D block, when the file has them, is missing from the very last
	//snapshot, so the end of the file here only means the next read
	//should end the stream.
	if S.charmm && S.fourdim {
		err := binary.Read(S.h, S.endian, &blocksize)
		if err == io.EOF {
			S.readLast = true
			return nil
		}
		if err != nil {
			return Error{err.Error(), S.filename, []string{"binary.Read", "nextRaw"}, true}
		}
		if err := S.skipBlock(blocksize); err != nil {
			return err
		}
	}
	return nil
}

//frameStart reads the size of the first record of a frame. The end of the
//file can only fall here, on a frame boundary; anywhere else it means the
//file is truncated.
func (S *DcdR) frameStart(blocksize *int32) error {
	err := binary.Read(S.h, S.endian, blocksize)
	if err == nil {
		return nil
	}
	if err == io.EOF {
		S.Close()
		return newlastFrameError(S.filename, "frameStart")
	}
	return Error{err.Error(), S.filename, []string{"binary.Read", "frameStart"}, true}
}

//readFloat32Block reads one coordinate record into block and checks the
//trailing size marker against the leading one.
func (S *DcdR) readFloat32Block(blocksize int32, block []float32) error {
	if blocksize != int32(len(block))*4 {
		return Error{fmt.Sprintf("%s: expected a %d-byte coordinate record, got %d", WrongFormat, len(block)*4, blocksize), S.filename, []string{"readFloat32Block"}, true}
	}
	if err := S.read(block, "readFloat32Block"); err != nil {
		return err
	}
	var check int32
	if err := S.read(&check, "readFloat32Block"); err != nil {
		return err
	}
	if check != blocksize {
		return Error{WrongFormat + ": mismatched record markers", S.filename, []string{"readFloat32Block"}, true}
	}
	return nil
}

//skipBlock discards a record of the given size and checks its trailing
//marker.
func (S *DcdR) skipBlock(blocksize int32) error {
	if blocksize < 0 {
		return Error{WrongFormat + ": negative record size", S.filename, []string{"skipBlock"}, true}
	}
	if _, err := io.CopyN(io.Discard, S.h, int64(blocksize)); err != nil {
		return Error{err.Error(), S.filename, []string{"io.CopyN", "skipBlock"}, true}
	}
	var check int32
	if err := S.read(&check, "skipBlock"); err != nil {
		return err
	}
	if check != blocksize {
		return Error{WrongFormat + ": mismatched record markers", S.filename, []string{"skipBlock"}, true}
	}
	return nil
}

//Close closes the handle and marks it as unreadable.
func (S *DcdR) Close() {
	if !S.readable {
		return
	}
	S.dec.Close()
	S.f.Close()
	S.readable = false
}

//Len returns the number of atoms per frame in the trajectory.
func (S *DcdR) Len() int {
	return S.natoms
}

//NFrames returns the number of frames the header declares. Writers that
//never get to update their header leave it at zero, so zero means
//unknown, not empty.
func (S *DcdR) NFrames() int {
	return S.nframes
}

//Title returns the title of the trajectory, which can be empty.
func (S *DcdR) Title() string {
	return S.title
}

//errDecorate asserts that the error implements taf.Error and decorates it
//with the caller's name before returning it. It panics on any other error.
func errDecorate(err error, caller string) error {
	err2 := err.(taf.Error)
	err2.Decorate(caller)
	return err2
}

//Error is the general dcd trajectory error. It fulfills taf.Error and
//taf.TrajError.
type Error struct {
	message  string
	filename string //the input file with problems, or an empty string
	deco     []string
	critical bool
}

func (err Error) Error() string {
	return fmt.Sprintf("dcd file %s error: %s", err.filename, err.message)
}

//Decorate adds new information to the error
func (E Error) Decorate(deco string) []string {
	if deco != "" {
		E.deco = append(E.deco, deco)
	}
	return E.deco
}

//FileName returns the file to which the failing trajectory was associated
func (err Error) FileName() string { return err.filename }

//Format returns the format of the file associated to the error (always "dcd")
func (err Error) Format() string { return "dcd" }

//Critical returns true if the error is critical, false otherwise
func (err Error) Critical() bool { return err.critical }

const (
	TrajUnIniRead  = "Traj object uninitialized to read"
	TrajUnIniWrite = "Traj object uninitialized to write"
	NilFrame       = "Given a nil frame"
	WrongFormat    = "Wrong format in the DCD file or frame"
	NotEnoughSpace = "Not enough space in passed blocks"
)

//lastFrameError implements taf.LastFrameError
type lastFrameError struct {
	deco     []string
	fileName string
}

//NormalLastFrameTermination does nothing
func (E lastFrameError) NormalLastFrameTermination() {}

func (E lastFrameError) FileName() string { return E.fileName }

func (E lastFrameError) Error() string { return "EOF" }

func (E lastFrameError) Critical() bool { return false }

func (E lastFrameError) Format() string { return "dcd" }

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
