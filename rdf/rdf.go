/*
 * rdf.go, part of gotaf
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

//Package rdf computes site-site radial distribution functions over a
//trajectory stream. Distances are minimum-image distances, so the module
//requires a periodic box on every frame.
package rdf

import (
	"fmt"
	"math"
	"os"
	"sync"

	taf "github.com/kassonlab/gotaf"
	"github.com/kassonlab/gotaf/analyze"
	v3 "github.com/kassonlab/gotaf/v3"
)

//Module accumulates a histogram of pair distances between two selections
//and normalizes it into g(r) at the end of the stream. The two selections
//may be the same set of atoms; pairs of an atom with itself are skipped.
type Module struct {
	selA analyze.Selection
	selB analyze.Selection
	step float64
	end  float64

	nbins   int
	hist    []float64
	pairtot float64
	voltot  float64
	frames  int

	r       []float64
	gr      []float64
	outfile string
	mu      sync.Mutex
}

//New returns an RDF module for the distances from the atoms in selA to
//those in selB. The defaults are bins of 0.1 A up to 10 A, change them
//with Step and End before the stream starts.
func New(selA, selB analyze.Selection) (*Module, error) {
	if selA == nil || selB == nil {
		return nil, fmt.Errorf("rdf: nil selection")
	}
	M := new(Module)
	M.selA = selA
	M.selB = selB
	M.step = 0.1
	M.end = 10
	return M, nil
}

//Step sets and/or returns the bin width, in A. Values that are not
//positive are ignored. It has no effect after the stream has started.
func (M *Module) Step(step ...float64) float64 {
	if len(step) > 0 && step[0] > 0 {
		M.step = step[0]
	}
	return M.step
}

//End sets and/or returns the largest distance binned, in A. Values that
//are not positive are ignored. It has no effect after the stream has
//started.
func (M *Module) End(end ...float64) float64 {
	if len(end) > 0 && end[0] > 0 {
		M.end = end[0]
	}
	return M.end
}

//OutFile sets and/or returns the name of the text file WriteOutput
//writes. An empty name (the default) suppresses the file.
func (M *Module) OutFile(name ...string) string {
	if len(name) > 0 {
		M.outfile = name[0]
	}
	return M.outfile
}

//Configure declares what the module needs: positions, a periodic box,
//and both selections evaluated on every frame.
func (M *Module) Configure(s *analyze.Settings) error {
	s.RequireFields(taf.FieldPos)
	s.RequirePBC()
	s.AddSelection(M.selA)
	s.AddSelection(M.selB)
	return nil
}

//Init sizes the histogram from the current Step and End.
func (M *Module) Init(top taf.Atomer) error {
	M.nbins = int(M.end / M.step)
	if M.nbins <= 0 {
		return fmt.Errorf("rdf: no bins between 0 and %4.2f with a step of %4.2f", M.end, M.step)
	}
	M.hist = make([]float64, M.nbins)
	M.pairtot = 0
	M.voltot = 0
	M.frames = 0
	M.r = nil
	M.gr = nil
	return nil
}

//AnalyzeFrame bins the pair distances of one frame. The frame buffers are
//copied before the work is scheduled, so the binning itself runs in the
//background while the runner reads the next frame.
func (M *Module) AnalyzeFrame(frnr int, f *taf.Frame, pbc *taf.PBC, pd *analyze.ParContext) error {
	if pbc.Kind() == taf.BoxNone {
		return fmt.Errorf("rdf: frame %d carries no periodic box", frnr)
	}
	ia := M.selA.Indexes()
	ib := M.selB.Indexes()
	if len(ia) == 0 || len(ib) == 0 {
		return fmt.Errorf("rdf: frame %d: empty selection", frnr)
	}
	//the frame, the pbc and the index slices are only borrowed, so the
	//background work gets its own copies of all of them.
	ia = append([]int{}, ia...)
	ib = append([]int{}, ib...)
	ca := v3.Zeros(len(ia))
	ca.SomeVecs(f.Pos, ia)
	cb := v3.Zeros(len(ib))
	cb.SomeVecs(f.Pos, ib)
	wpbc, err := taf.NewPBC(pbc.Box())
	if err != nil {
		return fmt.Errorf("rdf: frame %d: %v", frnr, err)
	}
	M.frames++
	M.voltot += pbc.Volume()
	work := func() {
		local := make([]float64, M.nbins)
		dx := v3.Zeros(1)
		pairs := 0
		for i := 0; i < len(ia); i++ {
			va := ca.VecView(i)
			for j := 0; j < len(ib); j++ {
				if ia[i] == ib[j] {
					continue
				}
				pairs++
				wpbc.Dx(dx, va, cb.VecView(j))
				bin := int(dx.Norm(2) / M.step)
				if bin < M.nbins {
					local[bin]++
				}
			}
		}
		M.mu.Lock()
		for k, v := range local {
			M.hist[k] += v
		}
		M.pairtot += float64(pairs)
		M.mu.Unlock()
	}
	if pd == nil {
		work()
	} else {
		pd.Go(work)
	}
	return nil
}

//Finish normalizes the accumulated histogram into g(r). Each bin is
//divided by the volume of its spherical shell and by the pair density,
//so an ideal gas gives g(r)=1 at every distance.
func (M *Module) Finish(nframes int) error {
	M.r = make([]float64, M.nbins)
	M.gr = make([]float64, M.nbins)
	if M.frames == 0 || M.pairtot == 0 {
		return nil
	}
	vmean := M.voltot / float64(M.frames)
	vp := (4.0 / 3.0) * math.Pi
	for i := range M.gr {
		r0 := float64(i) * M.step
		r1 := float64(i+1) * M.step
		shell := vp * (r1*r1*r1 - r0*r0*r0)
		M.r[i] = (r0 + r1) / 2
		M.gr[i] = M.hist[i] * vmean / (shell * M.pairtot)
	}
	return nil
}

//WriteOutput writes the g(r) table to the file set with OutFile, if any.
func (M *Module) WriteOutput() error {
	if M.outfile == "" {
		return nil
	}
	fout, err := os.Create(M.outfile)
	if err != nil {
		return fmt.Errorf("rdf: %v", err)
	}
	defer fout.Close()
	fmt.Fprintf(fout, "# r(A)   g(r)\n")
	for i, v := range M.gr {
		fmt.Fprintf(fout, "%7.3f %12.6f\n", M.r[i], v)
	}
	return nil
}

//Gr returns the bin centers and the normalized g(r). Both slices belong
//to the module. They are nil before Finish has run.
func (M *Module) Gr() ([]float64, []float64) {
	return M.r, M.gr
}

//Hist returns the raw, unnormalized pair counts per bin, summed over all
//the frames analyzed. The slice belongs to the module.
func (M *Module) Hist() []float64 {
	return M.hist
}
