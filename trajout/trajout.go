//Package trajout writes the frames seen by an analysis run to an xvf
//file. Registered as the last module of a pipeline it keeps whatever
//subset of the stream the run analyzed, skipped frames excluded.
package trajout

import (
	"fmt"
	"strconv"

	taf "github.com/kassonlab/gotaf"
	"github.com/kassonlab/gotaf/analyze"
	"github.com/kassonlab/gotaf/traj/xvf"
)

//Module is a sink: it analyzes nothing and writes every frame it gets to
//a trajectory file. The file is created when the first frame arrives,
//with that frame's atom count and title, and closed by Finish.
type Module struct {
	name     string
	fields   taf.FieldSet
	prec     int
	level    int
	w        *xvf.XvfW
	nwritten int
}

//New returns a module that writes the given fields to the named file. The
//compression is chosen from the file name the way xvf.NewWriter does it.
//A zero fields writes positions only.
func New(name string, fields taf.FieldSet) *Module {
	M := new(Module)
	M.name = name
	if fields == 0 {
		fields = taf.FieldPos
	}
	M.fields = fields
	return M
}

//Precision sets and/or returns the number of decimals written. Values
//that are not positive are ignored, and leave the writer's default.
func (M *Module) Precision(prec ...int) int {
	if len(prec) > 0 && prec[0] > 0 {
		M.prec = prec[0]
	}
	return M.prec
}

//Compression sets and/or returns the compression level. Values that are
//not positive are ignored, and leave the writer's default.
func (M *Module) Compression(level ...int) int {
	if len(level) > 0 && level[0] > 0 {
		M.level = level[0]
	}
	return M.level
}

//FileName returns the name of the file written.
func (M *Module) FileName() string {
	return M.name
}

//Configure asks the stream for the fields the file will carry.
func (M *Module) Configure(s *analyze.Settings) error {
	s.RequireFields(M.fields)
	return nil
}

//Init drops any writer left over from an interrupted run.
func (M *Module) Init(top taf.Atomer) error {
	if M.w != nil {
		M.w.Close()
		M.w = nil
	}
	M.nwritten = 0
	return nil
}

//AnalyzeFrame writes one frame, opening the file first if this is the
//first one.
func (M *Module) AnalyzeFrame(frnr int, f *taf.Frame, pbc *taf.PBC, pd *analyze.ParContext) error {
	if M.w == nil {
		header := make(map[string]string)
		if M.prec > 0 {
			header["prec"] = strconv.Itoa(M.prec)
		}
		if f.Title != "" {
			header["title"] = f.Title
		}
		var err error
		if M.level > 0 {
			M.w, err = xvf.NewWriter(M.name, f.NAtoms, M.fields, header, M.level)
		} else {
			M.w, err = xvf.NewWriter(M.name, f.NAtoms, M.fields, header)
		}
		if err != nil {
			return fmt.Errorf("trajout: %v", err)
		}
	}
	if err := M.w.WNext(f); err != nil {
		return fmt.Errorf("trajout: frame %d: %v", frnr, err)
	}
	M.nwritten++
	return nil
}

//Finish closes the file. A run that got no frames leaves no file behind.
func (M *Module) Finish(nframes int) error {
	if M.w == nil {
		return nil
	}
	err := M.w.Close()
	M.w = nil
	if err != nil {
		return fmt.Errorf("trajout: %v", err)
	}
	return nil
}

//WriteOutput does nothing: the output of this module is the trajectory
//itself, written as the stream goes by.
func (M *Module) WriteOutput() error {
	return nil
}

//NWritten returns the number of frames written so far.
func (M *Module) NWritten() int {
	return M.nwritten
}
