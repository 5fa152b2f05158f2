package rmsd

import (
	"fmt"
	"image/color"
	"math"
	"os"

	taf "github.com/kassonlab/gotaf"
	"github.com/kassonlab/gotaf/analyze"
	v3 "github.com/kassonlab/gotaf/v3"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

//Module measures, for every frame, the root mean square deviation of the
//positions from a reference structure. By default each frame is first
//superimposed on the reference (translation and rotation removed, with
//all atoms weighted the same), so the deviation reported is the least
//possible one; Fit(false) compares the raw coordinates instead.
type Module struct {
	ref      *v3.Matrix
	indexes  []int
	fit      bool
	vals     []float64
	times    []float64
	mean     float64
	stdev    float64
	outfile  string
	plotfile string
	maxidx   int
	work     *v3.Matrix //scratch, so no allocation happens per frame
	refsel   *v3.Matrix //the compared subset of ref, centered when fitting
}

//New returns a Module that measures every frame against ref. indexes
//picks the atoms to compare, from both ref and the frames; with no
//indexes, all atoms are compared and ref must have as many atoms as the
//frames.
func New(ref *v3.Matrix, indexes ...int) (*Module, error) {
	if ref == nil {
		return nil, fmt.Errorf("rmsd: given a nil reference")
	}
	M := new(Module)
	M.ref = ref
	M.fit = true
	if len(indexes) > 0 {
		M.indexes = make([]int, len(indexes))
		copy(M.indexes, indexes)
		for _, v := range indexes {
			if v < 0 {
				return nil, fmt.Errorf("rmsd: negative atom index %d", v)
			}
			if v > M.maxidx {
				M.maxidx = v
			}
		}
	}
	return M, nil
}

//Fit returns whether frames are superimposed on the reference before
//measuring, and sets it, if a value is given.
func (M *Module) Fit(fit ...bool) bool {
	ret := M.fit
	if len(fit) > 0 {
		M.fit = fit[0]
	}
	return ret
}

//OutFile returns the name of the file where WriteOutput puts the
//time series as text, and sets it, if a name is given. An empty name,
//the default, writes no text output.
func (M *Module) OutFile(name ...string) string {
	ret := M.outfile
	if len(name) > 0 {
		M.outfile = name[0]
	}
	return ret
}

//PlotFile returns the name of the PNG file where WriteOutput plots the
//time series, and sets it, if a name is given. An empty name, the
//default, plots nothing.
func (M *Module) PlotFile(name ...string) string {
	ret := M.plotfile
	if len(name) > 0 {
		M.plotfile = name[0]
	}
	return ret
}

//Configure declares that the module needs positions.
func (M *Module) Configure(s *analyze.Settings) error {
	s.RequireFields(taf.FieldPos)
	return nil
}

//Init prepares the compared subset of the reference and the scratch
//storage. The topology is not needed.
func (M *Module) Init(top taf.Atomer) error {
	nref := M.ref.NVecs()
	if M.indexes == nil {
		M.refsel = v3.Zeros(nref)
		M.refsel.Copy(M.ref)
	} else {
		if M.maxidx >= nref {
			return fmt.Errorf("rmsd: index %d out of range, the reference has %d atoms", M.maxidx, nref)
		}
		M.refsel = v3.Zeros(len(M.indexes))
		M.refsel.SomeVecs(M.ref, M.indexes)
	}
	if M.fit {
		center(M.refsel)
	}
	M.work = v3.Zeros(M.refsel.NVecs())
	M.vals = nil
	M.times = nil
	return nil
}

//AnalyzeFrame records the deviation of this frame from the reference.
func (M *Module) AnalyzeFrame(frnr int, f *taf.Frame, pbc *taf.PBC, pd *analyze.ParContext) error {
	if M.indexes == nil {
		if f.Pos.NVecs() != M.refsel.NVecs() {
			return fmt.Errorf("rmsd: frame %d has %d atoms, the reference %d", frnr, f.Pos.NVecs(), M.refsel.NVecs())
		}
		M.work.Copy(f.Pos)
	} else {
		if M.maxidx >= f.Pos.NVecs() {
			return fmt.Errorf("rmsd: index %d out of range, frame %d has %d atoms", M.maxidx, frnr, f.Pos.NVecs())
		}
		M.work.SomeVecs(f.Pos, M.indexes)
	}
	v, err := rmsd(M.work, M.refsel, M.fit)
	if err != nil {
		return fmt.Errorf("rmsd: frame %d: %s", frnr, err.Error())
	}
	M.vals = append(M.vals, v)
	M.times = append(M.times, f.Time)
	return nil
}

//Finish computes the summary statistics of the series.
func (M *Module) Finish(nframes int) error {
	if len(M.vals) > 0 {
		M.mean = stat.Mean(M.vals, nil)
	}
	if len(M.vals) > 1 {
		M.stdev = stat.StdDev(M.vals, nil)
	}
	return nil
}

//WriteOutput writes the time series as text and as a PNG plot, to the
//files set with OutFile and PlotFile. With neither set it does nothing,
//the series stays available from the accessors.
func (M *Module) WriteOutput() error {
	if M.outfile != "" {
		if err := M.writeTable(); err != nil {
			return err
		}
	}
	if M.plotfile != "" {
		if err := M.writePlot(); err != nil {
			return err
		}
	}
	return nil
}

func (M *Module) writeTable() error {
	fout, err := os.Create(M.outfile)
	if err != nil {
		return err
	}
	defer fout.Close()
	fmt.Fprintf(fout, "# time(ps)   RMSD(A)\n")
	for i, v := range M.vals {
		fmt.Fprintf(fout, "%10.3f %9.4f\n", M.times[i], v)
	}
	fmt.Fprintf(fout, "# mean %.4f stdev %.4f over %d frames\n", M.mean, M.stdev, len(M.vals))
	return nil
}

func (M *Module) writePlot() error {
	pts := make(plotter.XYs, len(M.vals))
	for i, v := range M.vals {
		pts[i].X = M.times[i]
		pts[i].Y = v
	}
	p := plot.New()
	p.Title.Text = "RMSD vs time"
	p.X.Label.Text = "time (ps)"
	p.Y.Label.Text = "RMSD (A)"
	p.Add(plotter.NewGrid())
	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	line.Color = color.RGBA{B: 255, A: 255}
	p.Add(line)
	return p.Save(5*vg.Inch, 4*vg.Inch, M.plotfile)
}

//RMSDs returns the deviation of every frame seen so far, in the order
//they came. The slice belongs to the module.
func (M *Module) RMSDs() []float64 {
	return M.vals
}

//Times returns the time of every frame seen so far. The slice belongs to
//the module.
func (M *Module) Times() []float64 {
	return M.times
}

//Mean returns the mean deviation. Only meaningful after the stream ends.
func (M *Module) Mean() float64 {
	return M.mean
}

//StdDev returns the standard deviation of the series (zero with fewer
//than two frames). Only meaningful after the stream ends.
func (M *Module) StdDev() float64 {
	return M.stdev
}

//rmsd measures the root mean square deviation between test and ref, which
//must have the same shape. When fit is true, test, which gets overwritten,
//is centered and rotated onto ref first; ref must already be centered.
func rmsd(test, ref *v3.Matrix, fit bool) (float64, error) {
	if fit {
		center(test)
		if err := rotateOnto(test, ref); err != nil {
			return 0, err
		}
	}
	n := test.NVecs()
	var sum float64
	for i := 0; i < n; i++ {
		for j := 0; j < 3; j++ {
			d := test.At(i, j) - ref.At(i, j)
			sum += d * d
		}
	}
	return math.Sqrt(sum / float64(n)), nil
}

//center translates the coordinates so their geometric center is at the
//origin. All atoms weigh the same here, mass does not matter for this.
func center(m *v3.Matrix) {
	n := m.NVecs()
	var cx, cy, cz float64
	for i := 0; i < n; i++ {
		cx += m.At(i, 0)
		cy += m.At(i, 1)
		cz += m.At(i, 2)
	}
	fn := float64(n)
	cx, cy, cz = cx/fn, cy/fn, cz/fn
	for i := 0; i < n; i++ {
		m.Set(i, 0, m.At(i, 0)-cx)
		m.Set(i, 1, m.At(i, 1)-cy)
		m.Set(i, 2, m.At(i, 2)-cz)
	}
}

//rotateOnto rotates test, overwriting it, so it superimposes on ref with
//the least square deviation. Both matrices must be centered already. The
//rotation comes from the SVD of the covariance matrix; if the best
//orthogonal transformation is a reflection, the smallest singular
//direction is mirrored to keep it a proper rotation.
func rotateOnto(test, ref *v3.Matrix) error {
	var h mat.Dense
	h.Mul(test.T(), ref.Dense)
	var svd mat.SVD
	if ok := svd.Factorize(&h, mat.SVDFull); !ok {
		return fmt.Errorf("the SVD of the covariance matrix did not converge")
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	if mat.Det(&u)*mat.Det(&v) < 0 {
		for i := 0; i < 3; i++ {
			u.Set(i, 2, -u.At(i, 2))
		}
	}
	var rot mat.Dense
	rot.Mul(&u, v.T())
	var out mat.Dense
	out.Mul(test.Dense, &rot)
	test.Dense.Copy(&out)
	return nil
}
