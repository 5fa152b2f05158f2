package xvf

import (
	"fmt"
	"math"
	"path/filepath"
	"testing"

	taf "github.com/kassonlab/gotaf"
)

//xvfFrame builds a frame whose values are exact at the default precision,
//so round trips can be compared with a tight tolerance.
func xvfFrame(natoms, frnr int) *taf.Frame {
	f := taf.NewFrame(natoms, taf.FieldPos|taf.FieldVel)
	for i := 0; i < natoms; i++ {
		for j := 0; j < 3; j++ {
			f.Pos.Set(i, j, float64(frnr*100+i*10+j)+0.25)
			f.Vel.Set(i, j, float64(frnr)-0.5)
		}
	}
	f.Box = []float64{7.25, 0, 0, 0, 7.25, 0, 0, 0, 7.25}
	f.Step = frnr * 50
	f.Time = float64(frnr) * 0.002
	return f
}

func TestXVFReadWrite(Te *testing.T) {
	fmt.Println("XVF round trip test!")
	name := filepath.Join(Te.TempDir(), "test.xvf")
	frames := make([]*taf.Frame, 3)
	for i := range frames {
		frames[i] = xvfFrame(4, i)
	}
	w, err := NewWriter(name, 4, taf.FieldPos|taf.FieldVel, map[string]string{"title": "test system"})
	if err != nil {
		Te.Fatal(err)
	}
	for _, f := range frames {
		if err := w.WNext(f); err != nil {
			Te.Error(err)
		}
	}
	if err := w.Close(); err != nil {
		Te.Fatal(err)
	}
	r, meta, err := New(name)
	if err != nil {
		Te.Fatal(err)
	}
	defer r.Close()
	if r.Len() != 4 {
		Te.Errorf("read %d atoms per frame, want 4", r.Len())
	}
	if meta["title"] != "test system" || meta["prec"] != "2" {
		Te.Errorf("header metadata came back as %v", meta)
	}
	if r.Fields() != (taf.FieldPos | taf.FieldVel) {
		Te.Errorf("field mask came back as %q", r.Fields())
	}
	got := taf.NewFrame(4, taf.FieldPos|taf.FieldVel)
	nread := 0
	for ; ; nread++ {
		err := r.Next(got)
		if err != nil {
			if _, ok := err.(taf.LastFrameError); ok {
				break
			}
			Te.Fatal(err)
		}
		if nread >= len(frames) {
			Te.Fatal("more frames came back than were written")
		}
		want := frames[nread]
		want.Title = "test system" //the reader applies the header title to every frame
		if diffs := taf.Compare(got, want, 0, 1e-9); len(diffs) != 0 {
			Te.Errorf("frame %d differs after the round trip: %v", nread, diffs)
		}
	}
	if nread != 3 {
		Te.Errorf("read %d frames, want 3", nread)
	}
	fmt.Println("frames read and written:", nread)
}

func TestXVFFieldsAndSkip(Te *testing.T) {
	name := filepath.Join(Te.TempDir(), "skip.xvf")
	w, err := NewWriter(name, 2, taf.FieldPos|taf.FieldVel, nil)
	if err != nil {
		Te.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if err := w.WNext(xvfFrame(2, i)); err != nil {
			Te.Error(err)
		}
	}
	if err := w.Close(); err != nil {
		Te.Fatal(err)
	}
	r, _, err := New(name)
	if err != nil {
		Te.Fatal(err)
	}
	defer r.Close()
	if err := r.Configure(taf.FieldPos | taf.FieldForce); err == nil {
		Te.Error("a request for forces on a file without forces was accepted")
	}
	if err := r.Configure(taf.FieldPos); err != nil {
		Te.Fatal(err)
	}
	//skip the first frame, reading but not keeping it
	if err := r.Next(nil); err != nil {
		Te.Fatal(err)
	}
	f := taf.NewFrame(2, taf.FieldPos|taf.FieldVel|taf.FieldForce)
	if err := r.Next(f); err != nil {
		Te.Fatal(err)
	}
	if f.Force != nil {
		Te.Error("the force buffer survived a file with no forces")
	}
	if f.Vel != nil {
		Te.Error("velocities were delivered without being asked for")
	}
	if f.Pos == nil || f.Pos.At(0, 0) != 100.25 || f.Step != 50 {
		Te.Errorf("after a skip, got position %v at step %d, want 100.25 at 50", f.Pos.At(0, 0), f.Step)
	}
	if err := r.Next(f); err != nil {
		Te.Fatal(err)
	}
	err = r.Next(f)
	if err == nil {
		Te.Fatal("reading past the end succeeded")
	}
	if _, ok := err.(taf.LastFrameError); !ok {
		Te.Fatalf("reading past the end failed with %T (%v)", err, err)
	}
	if r.Readable() {
		Te.Error("the handle stayed readable past the end of the file")
	}
}

func TestXVFCompressions(Te *testing.T) {
	dir := Te.TempDir()
	orig := xvfFrame(2, 1)
	orig.Vel = nil //only positions in these files
	//the last letter of the name picks the compressor
	for _, base := range []string{"t.xvf", "t.xvl", "t.xvz", "t.xvr", "t.xvs"} {
		name := filepath.Join(dir, base)
		w, err := NewWriter(name, 2, taf.FieldPos, nil)
		if err != nil {
			Te.Fatalf("%s: %v", base, err)
		}
		if err := w.WNext(orig); err != nil {
			Te.Errorf("%s: %v", base, err)
		}
		if err := w.Close(); err != nil {
			Te.Fatalf("%s: %v", base, err)
		}
		r, _, err := New(name)
		if err != nil {
			Te.Fatalf("%s: %v", base, err)
		}
		got := taf.NewFrame(2, taf.FieldPos)
		if err := r.Next(got); err != nil {
			Te.Fatalf("%s: %v", base, err)
		}
		if diffs := taf.Compare(got, orig, 0, 1e-9); len(diffs) != 0 {
			Te.Errorf("%s: frame differs after the round trip: %v", base, diffs)
		}
		r.Close()
	}
}

func TestXVFPrecision(Te *testing.T) {
	name := filepath.Join(Te.TempDir(), "prec.xvf")
	w, err := NewWriter(name, 1, taf.FieldPos, map[string]string{"prec": "3"})
	if err != nil {
		Te.Fatal(err)
	}
	f := taf.NewFrame(1, taf.FieldPos)
	f.Pos.Set(0, 0, 1.234)
	f.Pos.Set(0, 1, -9.876)
	f.Pos.Set(0, 2, 0.001)
	if err := w.WNext(f); err != nil {
		Te.Error(err)
	}
	if err := w.Close(); err != nil {
		Te.Fatal(err)
	}
	r, meta, err := New(name)
	if err != nil {
		Te.Fatal(err)
	}
	defer r.Close()
	if meta["prec"] != "3" {
		Te.Errorf("precision came back as %q, want 3", meta["prec"])
	}
	got := taf.NewFrame(1, taf.FieldPos)
	if err := r.Next(got); err != nil {
		Te.Fatal(err)
	}
	want := []float64{1.234, -9.876, 0.001}
	for j, v := range want {
		if math.Abs(got.Pos.At(0, j)-v) > 1e-12 {
			Te.Errorf("coordinate %d came back as %v, want %v", j, got.Pos.At(0, j), v)
		}
	}
	if got.Box != nil {
		Te.Error("a box appeared in a frame written without one")
	}
}

func TestXVFWriterChecks(Te *testing.T) {
	name := filepath.Join(Te.TempDir(), "checks.xvf")
	w, err := NewWriter(name, 2, taf.FieldPos|taf.FieldVel, nil)
	if err != nil {
		Te.Fatal(err)
	}
	//a frame without the velocities this trajectory requires
	noVel := xvfFrame(2, 0)
	noVel.Vel = nil
	if err := w.WNext(noVel); err == nil {
		Te.Error("a frame missing a required field was accepted")
	}
	if err := w.WNext(xvfFrame(3, 0)); err == nil {
		Te.Error("a frame with the wrong number of atoms was accepted")
	}
	if err := w.WNext(nil); err == nil {
		Te.Error("a nil frame was accepted")
	}
	if err := w.WNext(xvfFrame(2, 0)); err != nil {
		Te.Error(err)
	}
	if err := w.Close(); err != nil {
		Te.Fatal(err)
	}
	if err := w.WNext(xvfFrame(2, 1)); err == nil {
		Te.Error("a write after Close was accepted")
	}
}
