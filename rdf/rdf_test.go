/*
 * rdf_test.go, part of gotaf
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

package rdf

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	taf "github.com/kassonlab/gotaf"
	"github.com/kassonlab/gotaf/analyze"
)

//pairFrame returns a two-atom frame in a cubic box of side 10, with the
//second atom at 1.05 A from the first along x. With wrap, the second atom
//sits on the far side of the boundary, so only the minimum-image distance
//is 1.05.
func pairFrame(wrap bool) *taf.Frame {
	f := taf.NewFrame(2, taf.FieldPos)
	for j := 0; j < 3; j++ {
		f.Pos.Set(0, j, 0.5)
		f.Pos.Set(1, j, 0.5)
	}
	if wrap {
		f.Pos.Set(1, 0, 9.45)
	} else {
		f.Pos.Set(1, 0, 1.55)
	}
	f.Box = []float64{10, 0, 0, 0, 10, 0, 0, 0, 10}
	return f
}

func pairTraj(Te *testing.T) *taf.MemTraj {
	traj, err := taf.NewMemTraj(2, pairFrame(false), pairFrame(true))
	if err != nil {
		Te.Fatal(err)
	}
	return traj
}

//expectedGr computes the normalization the same way the module does, for
//a histogram with cnt counts in the given bin, over the given number of
//frames with pairsperframe pairs each, in a constant volume vol.
func expectedGr(bin int, step, cnt, frames, pairsperframe, vol float64) float64 {
	r0 := float64(bin) * step
	r1 := float64(bin+1) * step
	shell := (4.0 / 3.0) * math.Pi * (r1*r1*r1 - r0*r0*r0)
	return cnt * vol / (shell * frames * pairsperframe)
}

func TestRDF(Te *testing.T) {
	m, err := New(analyze.NewFixedSelection(0), analyze.NewFixedSelection(1))
	if err != nil {
		Te.Fatal(err)
	}
	m.Step(0.1)
	m.End(2.0)
	r := analyze.NewRunner(pairTraj(Te), nil)
	r.AddModule(m)
	if err := r.Configure(nil); err != nil {
		Te.Fatal(err)
	}
	if err := r.Start(); err != nil {
		Te.Fatal(err)
	}
	if err := r.Run(); err != nil {
		Te.Fatal(err)
	}
	if r.NFrames() != 2 {
		Te.Fatalf("analyzed %d frames, wanted 2", r.NFrames())
	}
	hist := m.Hist()
	if len(hist) != 20 {
		Te.Fatalf("got %d bins, wanted 20", len(hist))
	}
	//both frames put their single pair at 1.05 A, the second one only
	//after wrapping across the boundary.
	for i, v := range hist {
		want := 0.0
		if i == 10 {
			want = 2.0
		}
		if v != want {
			Te.Errorf("bin %d holds %v counts, wanted %v", i, v, want)
		}
	}
	bins, gr := m.Gr()
	if len(bins) != 20 || len(gr) != 20 {
		Te.Fatalf("got %d bin centers and %d g(r) values, wanted 20 of each", len(bins), len(gr))
	}
	if math.Abs(bins[10]-1.05) > 1e-9 {
		Te.Errorf("bin 10 centered at %v, wanted 1.05", bins[10])
	}
	want := expectedGr(10, 0.1, 2, 2, 1, 1000)
	if math.Abs(gr[10]-want) > 1e-9 {
		Te.Errorf("g(r) at 1.05 is %v, wanted %v", gr[10], want)
	}
	for i, v := range gr {
		if i != 10 && v != 0 {
			Te.Errorf("g(r) bin %d is %v, wanted 0", i, v)
		}
	}
}

//TestRDFSameSelection checks that pairing a selection with itself skips
//the self pairs and counts each remaining pair in both directions.
func TestRDFSameSelection(Te *testing.T) {
	sel := analyze.NewFixedSelection(0, 1)
	m, err := New(sel, sel)
	if err != nil {
		Te.Fatal(err)
	}
	m.Step(0.1)
	m.End(2.0)
	r := analyze.NewRunner(pairTraj(Te), nil)
	r.AddModule(m)
	if err := r.Configure(nil); err != nil {
		Te.Fatal(err)
	}
	if err := r.Start(); err != nil {
		Te.Fatal(err)
	}
	if err := r.Run(); err != nil {
		Te.Fatal(err)
	}
	hist := m.Hist()
	if hist[0] != 0 {
		Te.Errorf("self pairs leaked into bin 0: %v counts", hist[0])
	}
	if hist[10] != 4 {
		Te.Errorf("bin 10 holds %v counts, wanted 4", hist[10])
	}
	//two ordered pairs per frame, so the doubled counts cancel and g(r)
	//matches the two-selection case.
	_, gr := m.Gr()
	want := expectedGr(10, 0.1, 4, 2, 2, 1000)
	if math.Abs(gr[10]-want) > 1e-9 {
		Te.Errorf("g(r) at 1.05 is %v, wanted %v", gr[10], want)
	}
}

func TestRDFOutput(Te *testing.T) {
	m, err := New(analyze.NewFixedSelection(0), analyze.NewFixedSelection(1))
	if err != nil {
		Te.Fatal(err)
	}
	m.Step(0.5)
	m.End(2.0)
	name := filepath.Join(Te.TempDir(), "gr.dat")
	if m.OutFile(name) != name {
		Te.Fatalf("OutFile did not keep the name")
	}
	r := analyze.NewRunner(pairTraj(Te), nil)
	r.AddModule(m)
	if err := r.Configure(nil); err != nil {
		Te.Fatal(err)
	}
	if err := r.Start(); err != nil {
		Te.Fatal(err)
	}
	if err := r.Run(); err != nil {
		Te.Fatal(err)
	}
	if err := r.WriteOutput(); err != nil {
		Te.Fatal(err)
	}
	data, err := os.ReadFile(name)
	if err != nil {
		Te.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 5 {
		Te.Fatalf("output has %d lines, wanted a header plus 4 bins:\n%s", len(lines), data)
	}
	if !strings.HasPrefix(lines[0], "#") {
		Te.Errorf("output does not start with a header: %q", lines[0])
	}
}

func TestRDFValidation(Te *testing.T) {
	sel := analyze.NewFixedSelection(0)
	if _, err := New(nil, sel); err == nil {
		Te.Errorf("New accepted a nil selection")
	}
	m, err := New(sel, sel)
	if err != nil {
		Te.Fatal(err)
	}
	if m.Step(-1) != 0.1 {
		Te.Errorf("Step accepted a negative width")
	}
	if m.End(0) != 10.0 {
		Te.Errorf("End accepted a zero limit")
	}
	m.Step(5)
	m.End(2)
	if err := m.Init(nil); err == nil {
		Te.Errorf("Init accepted a step wider than the whole range")
	}
	m.Step(0.1)
	if err := m.Init(nil); err != nil {
		Te.Fatal(err)
	}
	f := pairFrame(false)
	if err := m.AnalyzeFrame(0, f, nil, nil); err == nil {
		Te.Errorf("AnalyzeFrame accepted a frame without a box")
	}
	empty, err := New(analyze.NewFixedSelection(), sel)
	if err != nil {
		Te.Fatal(err)
	}
	if err := empty.Init(nil); err != nil {
		Te.Fatal(err)
	}
	pbc, err := taf.NewPBC(f.Box)
	if err != nil {
		Te.Fatal(err)
	}
	if err := empty.AnalyzeFrame(0, f, pbc, nil); err == nil {
		Te.Errorf("AnalyzeFrame accepted an empty selection")
	}
}
