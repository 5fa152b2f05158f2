package xvf

import (
	"bufio"
	"compress/flate"
	"compress/gzip"
	"compress/lzw"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"strconv"
	"strings"

	taf "github.com/kassonlab/gotaf"
	v3 "github.com/kassonlab/gotaf/v3"
	"github.com/klauspost/compress/zstd"
)

const (
	lzwLitwidth int = 8
)

//Write!
type XvfW struct {
	f         *os.File
	h         io.WriteCloser
	natoms    int
	fields    taf.FieldSet
	filename  string
	writeable bool
	prec      int
}

//NewWriter opens name for writing and returns a handle to it. fields
//names the per-atom fields every frame will carry (positions if zero).
//The given header pairs, if any, are written before the frames; the
//"prec" key sets the precision. The compression level follows the zstd
//scale; gzip and DEFLATE clamp it to their own maximum, and LZW ignores
//it.
func NewWriter(name string, natoms int, fields taf.FieldSet, header map[string]string, compressionLevel ...int) (*XvfW, error) {
	var level int = 11 //zstd scale, so the default maxes out every compressor
	if len(compressionLevel) > 0 {
		level = compressionLevel[0]
	}
	if fields == 0 {
		fields = taf.FieldPos
	}
	S := new(XvfW)
	var err error
	S.f, err = os.Create(name)
	if err != nil {
		return nil, err
	}
	format := strings.ToLower(name)[len(name)-1]
	//gzip and flate only take levels up to 9, so the zstd-style levels
	//the default assumes get clamped down for them.
	flevel := level
	if flevel > gzip.BestCompression {
		flevel = gzip.BestCompression
	}
	zwriter := func(a io.Writer) (io.WriteCloser, error) {
		r, err := flate.NewWriter(a, flevel)
		return r, err
	}
	gzipwriter := func(a io.Writer) (io.WriteCloser, error) { return gzip.NewWriterLevel(a, flevel) }
	zstdwriter := func(a io.Writer) (io.WriteCloser, error) {
		return zstd.NewWriter(a, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
	}
	var AnyNewWriter func(io.Writer) (io.WriteCloser, error)
	switch format {
	case 'l':
		AnyNewWriter = func(a io.Writer) (io.WriteCloser, error) { return lzw.NewWriter(a, lzw.MSB, lzwLitwidth), nil }
	case 'f':
		AnyNewWriter = zstdwriter
	case 'z':
		AnyNewWriter = gzipwriter
	case 's':
		AnyNewWriter = zstdwriter
	case 'r':
		AnyNewWriter = zwriter
	default:
		AnyNewWriter = zstdwriter
	}
	S.h, err = AnyNewWriter(S.f)
	if err != nil {
		return nil, Error{"Can't set up the compressor: " + err.Error(), name, []string{"NewWriter"}, true}
	}
	S.natoms = natoms
	S.fields = fields
	S.filename = name
	S.writeable = true
	S.prec = 2 //the default
	if p, ok := header["prec"]; ok {
		prec, err := strconv.Atoi(p)
		if err == nil && prec > 0 {
			S.prec = prec
		} else {
			log.Printf("Invalid precision %q for trajectory %s. Will use the default", p, S.filename)
		}
	}
	headerstr := ""
	if _, ok := header["prec"]; !ok {
		headerstr = fmt.Sprintf("prec=%d\n", S.prec)
	}
	for k, v := range header {
		headerstr += fmt.Sprintf("%s=%v\n", k, v)
	}
	S.h.Write([]byte(headerstr))
	S.h.Write([]byte(fmt.Sprintf("** %d %s\n", S.natoms, S.fields.String())))
	return S, nil
}

//WNext writes f as the next frame of the trajectory. f must carry every
//field the writer was set up with, with Len() atoms in each. The step and
//time always go in the terminator line, the box only when f has one.
func (S *XvfW) WNext(f *taf.Frame) error {
	if S == nil || !S.writeable {
		return Error{TrajUnIniWrite, S.filename, []string{"WNext"}, true}
	}
	if f == nil {
		return Error{NilFrame, S.filename, []string{"WNext"}, true}
	}
	if f.NAtoms != S.natoms {
		return Error{fmt.Sprintf("%d atoms in the frame, but %d expected", f.NAtoms, S.natoms), S.filename, []string{"WNext"}, true}
	}
	for _, field := range []taf.FieldSet{taf.FieldPos, taf.FieldVel, taf.FieldForce} {
		if !S.fields.Has(field) {
			continue
		}
		m := fieldVecs(f, field)
		if m == nil {
			return Error{fmt.Sprintf("the frame carries no %q, which this trajectory requires", field), S.filename, []string{"WNext"}, true}
		}
		if v := m.NVecs(); v != S.natoms {
			return Error{fmt.Sprintf("%d coordinates given, but %d expected", v, S.natoms), S.filename, []string{"WNext"}, true}
		}
		var floats [3]float64
		for i := 0; i < S.natoms; i++ {
			floats[0] = m.At(i, 0)
			floats[1] = m.At(i, 1)
			floats[2] = m.At(i, 2)
			S.h.Write([]byte(coordsEncode(floats, S.prec)))
		}
	}
	if f.Box != nil && len(f.Box) >= 9 {
		b := f.Box
		S.h.Write([]byte(fmt.Sprintf("* %d %v %v %v %v %v %v %v %v %v %v\n", f.Step, f.Time,
			b[0], b[1], b[2], b[3], b[4], b[5], b[6], b[7], b[8])))
	} else {
		S.h.Write([]byte(fmt.Sprintf("* %d %v\n", f.Step, f.Time)))
	}
	return nil
}

//Close flushes the compressor and closes the file. The writer can not be
//used after this call. A trajectory that is not Closed is truncated.
func (S *XvfW) Close() error {
	if S == nil || !S.writeable {
		return nil
	}
	S.writeable = false
	if err := S.h.Close(); err != nil {
		S.f.Close()
		return Error{"Can't flush the compressor: " + err.Error(), S.filename, []string{"Close"}, true}
	}
	if err := S.f.Close(); err != nil {
		return Error{err.Error(), S.filename, []string{"Close"}, true}
	}
	return nil
}

//Len returns the number of atoms per frame.
func (S *XvfW) Len() int {
	return S.natoms
}

//Fields returns the per-atom fields the writer puts in every frame.
func (S *XvfW) Fields() taf.FieldSet {
	return S.fields
}

//Read!
type XvfR struct {
	f            *os.File
	dec          io.ReadCloser
	h            *bufio.Reader
	intermediate *bufio.Reader
	natoms       int
	carried      taf.FieldSet
	wanted       taf.FieldSet
	title        string
	filename     string
	prec         int
	readable     bool
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

//New opens an xvf trajectory for reading. It returns a handle, a map with
//the header metadata (nil if the header has none) and error or nil.
func New(name string) (*XvfR, map[string]string, error) {
	S := new(XvfR)
	S.natoms = -1 //just so we know if things don't work
	var m map[string]string
	var err error
	S.filename = name
	S.f, err = os.Open(S.filename)
	if err != nil {
		return nil, nil, err
	}
	var AnyNewReader func(io.Reader) (io.ReadCloser, error)
	zreader := func(a io.Reader) (io.ReadCloser, error) {
		return flate.NewReader(a), nil
	}
	zstdreader := func(a io.Reader) (io.ReadCloser, error) {
		r, err := zstd.NewReader(a)
		return &stdql{r.Close, r}, err
	}
	gzreader := func(a io.Reader) (io.ReadCloser, error) { return gzip.NewReader(a) }
	switch strings.ToLower(name)[len(name)-1] {
	case 'l':
		AnyNewReader = func(a io.Reader) (io.ReadCloser, error) { return lzw.NewReader(a, lzw.MSB, lzwLitwidth), nil }
	case 'f':
		AnyNewReader = zstdreader
	case 'z':
		AnyNewReader = gzreader
	case 's':
		AnyNewReader = zstdreader
	case 'r':
		AnyNewReader = zreader
	default:
		AnyNewReader = zstdreader
	}
	S.intermediate = bufio.NewReader(S.f)
	S.dec, err = AnyNewReader(S.intermediate)
	if err != nil {
		return nil, nil, Error{"Can't read header: " + err.Error(), S.filename, []string{"New"}, true}
	}
	S.h = bufio.NewReader(S.dec)
	S.prec = 2 //the default
	S.carried = taf.FieldPos
	for {
		str, err := S.h.ReadString('\n')
		if err != nil {
			return nil, nil, Error{"Can't read header: " + err.Error(), S.filename, []string{"New"}, true}
		}
		str = strings.TrimSuffix(str, "\n")
		if strings.HasPrefix(str, "**") {
			fields := strings.Fields(str)
			if len(fields) < 2 {
				return nil, nil, Error{fmt.Sprintf("Can't read the atom number from '%s'", str), S.filename, []string{"New"}, true}
			}
			S.natoms, err = strconv.Atoi(fields[1])
			if err != nil {
				return nil, nil, Error{fmt.Sprintf("Can't read the atom number from '%s': %s", fields[1], err.Error()), S.filename, []string{"New"}, true}
			}
			if len(fields) >= 3 { //stf files carry only positions, and no mask
				S.carried, err = taf.ParseFields(fields[2])
				if err != nil {
					return nil, nil, Error{fmt.Sprintf("Can't read the field mask from '%s': %s", fields[2], err.Error()), S.filename, []string{"New"}, true}
				}
			}
			break
		}
		kv := strings.SplitN(str, "=", 2)
		if len(kv) != 2 {
			return nil, nil, Error{fmt.Sprintf("Malformed header line '%s'", str), S.filename, []string{"New"}, true}
		}
		if m == nil {
			m = make(map[string]string)
		}
		m[kv[0]] = kv[1]
	}
	S.readable = true
	if p, ok := m["prec"]; ok {
		prec, err := strconv.Atoi(p)
		if err == nil && prec > 0 {
			S.prec = prec
		} else {
			log.Printf("Invalid precision %q for trajectory %s. Will assume the default", p, S.filename)
		}
	}
	S.title = m["title"]
	S.wanted = S.carried
	return S, m, nil
}

//Readable returns true if it is possible to call Next on the handle.
func (S *XvfR) Readable() bool {
	return S != nil && S.readable
}

//Configure restricts what Next decodes to the given fields (positions, if
//zero). Fields the file carries but which are not wanted are still
//parsed, and discarded. It fails if the file does not carry every wanted
//field.
func (S *XvfR) Configure(fields taf.FieldSet) error {
	if fields == 0 {
		fields = taf.FieldPos
	}
	if missing := fields &^ S.carried; missing != 0 {
		return Error{fmt.Sprintf("the trajectory carries %q, but %q was requested", S.carried, missing), S.filename, []string{"Configure"}, true}
	}
	S.wanted = fields
	return nil
}

//Fields returns the per-atom fields the file carries in every frame.
func (S *XvfR) Fields() taf.FieldSet {
	return S.carried
}

//Next puts the next frame of the trajectory in f. Only the fields the
//reader is configured for are decoded into f, whose buffers must hold
//Len() atoms each; the buffers of any other field are set to nil, so the
//frame carries exactly what the reader is configured for. A nil f reads a
//whole frame and discards it, still checking it for correctness. The
//returned error is a taf.LastFrameError when the trajectory ended
//normally, on a frame boundary.
func (S *XvfR) Next(f *taf.Frame) error {
	if !S.Readable() {
		return Error{TrajUnIniRead, S.filename, []string{"Next"}, true}
	}
	var temp [3]float64
	lines := 0
	for _, field := range []taf.FieldSet{taf.FieldPos, taf.FieldVel, taf.FieldForce} {
		carried := S.carried.Has(field)
		wanted := S.wanted.Has(field)
		if f != nil && (!carried || !wanted) {
			//so the frame never reports fields with stale data in them
			setFieldVecs(f, field, nil)
		}
		if !carried {
			continue
		}
		var dst *v3.Matrix
		if f != nil && wanted {
			dst = fieldVecs(f, field)
		}
		if dst != nil && dst.NVecs() != S.natoms {
			return Error{NotEnoughSpace, S.filename, []string{"Next"}, true}
		}
		for i := 0; i < S.natoms; i++ {
			b, err := S.h.ReadBytes('\n')
			if err != nil {
				//EOF may only happen at the very first line of a frame,
				//anywhere else the frame is truncated.
				if err == io.EOF && lines == 0 {
					S.Close()
					return newlastFrameError(S.filename, "Next")
				}
				return Error{message: err.Error(), filename: S.filename, critical: true}
			}
			lines++
			err = coordsDecode(string(b[:len(b)-1]), &temp, S.prec)
			if err != nil {
				return Error{message: err.Error(), filename: S.filename, critical: true}
			}
			if dst == nil {
				continue //reading the content without saving it
			}
			for j, v := range temp {
				dst.Set(i, j, v)
			}
		}
	}
	s, err := S.h.ReadString('\n')
	if err != nil {
		if err == io.EOF && lines == 0 {
			S.Close()
			return newlastFrameError(S.filename, "Next")
		}
		return Error{"Can't read the frame termination mark: " + err.Error(), S.filename, []string{"Next"}, true}
	}
	if s[0] != '*' {
		return Error{"Wrong number of atoms in frame", S.filename, []string{"Next"}, true}
	}
	step, time, box, ok := terminatorDecode(s)
	if !ok {
		log.Printf("Malformed frame metadata in trajectory %s, ignoring it", S.filename)
	}
	if f == nil {
		return nil
	}
	f.NAtoms = S.natoms
	f.Step = step
	f.Time = time
	if box == nil {
		f.Box = nil
	} else {
		if f.Box == nil || len(f.Box) != 9 {
			f.Box = make([]float64, 9)
		}
		copy(f.Box, box)
	}
	f.Title = S.title
	f.Atoms = nil
	f.Index = nil
	return nil
}

//NextConc reads as many frames as the given slice has elements, handing
//each to a goroutine that sends it back through the returned channel for
//that frame. A nil element discards the corresponding frame.
func (S *XvfR) NextConc(frames []*taf.Frame) ([]chan *taf.Frame, error) {
	if !S.Readable() {
		return nil, Error{TrajUnIniRead, S.filename, []string{"NextConc"}, true}
	}
	framechans := make([]chan *taf.Frame, len(frames))
	for key, v := range frames {
		if err := S.Next(v); err != nil {
			return nil, errDecorate(err, "NextConc")
		}
		framechans[key] = make(chan *taf.Frame)
		go func(keep *taf.Frame, pipe chan *taf.Frame) {
			pipe <- keep
		}(v, framechans[key])
	}
	return framechans, nil
}

//Close closes the handle and marks it as unreadable.
func (S *XvfR) Close() {
	if !S.readable {
		return
	}
	S.dec.Close()
	S.f.Close()
	S.readable = false
}

//Len returns the number of atoms per frame in the trajectory.
func (S *XvfR) Len() int {
	return S.natoms
}

func coordsEncode(f [3]float64, prec int) string {
	p := 100.0
	if prec > 0 && prec != 2 { //2 is the default, nothing to compute then
		p = math.Pow(10.0, float64(prec))
	}
	var temp [3]int
	for i, v := range f {
		temp[i] = int(math.RoundToEven(v * p))
	}
	return fmt.Sprintf("%d %d %d\n", temp[0], temp[1], temp[2])
}

func coordsDecode(str string, temp *[3]float64, prec int) error {
	p := 100.0
	if prec > 0 && prec != 2 {
		p = math.Pow(10.0, float64(prec))
	}
	s := strings.Fields(str)
	if len(s) < 3 {
		return fmt.Errorf("ill formatted coordinates line: too few fields: %s", str)
	}
	if len(s) > 3 {
		return fmt.Errorf("ill formatted coordinates line: too many fields: %s", str)
	}
	for i, v := range s {
		f, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("can't parse coordinate %d (%s): %s", i, v, err.Error())
		}
		temp[i] = float64(f) / p
	}
	return nil
}

//terminatorDecode parses a frame terminator: a "*", optionally followed
//by the step and the time, optionally followed by the 9 components of the
//box vectors. ok is false when the metadata after the "*" is malformed,
//which only means the frame carries no metadata, not that reading failed.
func terminatorDecode(s string) (step int, time float64, box []float64, ok bool) {
	fields := strings.Fields(strings.TrimSpace(s))
	if len(fields) == 1 {
		return 0, 0, nil, true
	}
	if len(fields) != 3 && len(fields) != 12 {
		return 0, 0, nil, false
	}
	var err error
	step, err = strconv.Atoi(fields[1])
	if err != nil {
		return 0, 0, nil, false
	}
	time, err = strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return 0, 0, nil, false
	}
	if len(fields) == 3 {
		return step, time, nil, true
	}
	box = make([]float64, 9)
	for j, v := range fields[3:] {
		box[j], err = strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, 0, nil, false
		}
	}
	return step, time, box, true
}

func fieldVecs(f *taf.Frame, field taf.FieldSet) *v3.Matrix {
	switch field {
	case taf.FieldPos:
		return f.Pos
	case taf.FieldVel:
		return f.Vel
	case taf.FieldForce:
		return f.Force
	}
	return nil
}

func setFieldVecs(f *taf.Frame, field taf.FieldSet, m *v3.Matrix) {
	switch field {
	case taf.FieldPos:
		f.Pos = m
	case taf.FieldVel:
		f.Vel = m
	case taf.FieldForce:
		f.Force = m
	}
}

//Errors

//errDecorate asserts that the error implements taf.Error and decorates it
//with the caller's name before returning it. It panics on any other error.
func errDecorate(err error, caller string) error {
	err2 := err.(taf.Error)
	err2.Decorate(caller)
	return err2
}

//Error is the general xvf trajectory error. It fulfills taf.Error and
//taf.TrajError.
type Error struct {
	message  string
	filename string //the input file with problems, or an empty string
	deco     []string
	critical bool
}

func (err Error) Error() string {
	return fmt.Sprintf("xvf file %s error: %s", err.filename, err.message)
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

//Format returns the format of the file associated to the error (always "xvf")
func (err Error) Format() string { return "xvf" }

//Critical returns true if the error is critical, false otherwise
func (err Error) Critical() bool { return err.critical }

const (
	TrajUnIniRead  = "Traj object uninitialized to read"
	TrajUnIniWrite = "Traj object uninitialized to write"
	NilFrame       = "Given a nil frame"
	WrongFormat    = "Wrong format in the XVF file or frame"
	NotEnoughSpace = "Not enough space in passed blocks"
	EOF            = "EOF"
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

func (E lastFrameError) Format() string { return "xvf" }

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
