/*
 * pbc_test.go, part of gotaf.
 *
 * Copyright 2021 The gotaf developers
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU Lesser General Public License as
 * published by the Free Software Foundation; either version 2.1 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU Lesser General
 * Public License along with this program.  If not, see
 * <http://www.gnu.org/licenses/>.
 */

package taf

import (
	"fmt"
	"math"
	"testing"

	v3 "github.com/kassonlab/gotaf/v3"
)

func vec(x, y, z float64) *v3.Matrix {
	v, _ := v3.NewMatrix([]float64{x, y, z})
	return v
}

func TestPBCNone(Te *testing.T) {
	P, err := NewPBC(nil)
	if err != nil {
		Te.Fatal(err)
	}
	if P.Kind() != BoxNone {
		Te.Errorf("A nil box should mean no periodicity, got %s", P.Kind())
	}
	d := P.Distance(vec(9, 0, 0), vec(1, 0, 0))
	if math.Abs(d-8) > 1e-12 {
		Te.Errorf("Distance without periodicity should be plain: %f", d)
	}
	//a nil PBC must behave the same
	var nilP *PBC
	if nilP.Kind() != BoxNone {
		Te.Error("A nil PBC should report BoxNone")
	}
	if d := nilP.Distance(vec(9, 0, 0), vec(1, 0, 0)); math.Abs(d-8) > 1e-12 {
		Te.Errorf("A nil PBC should compute plain distances: %f", d)
	}
	zeroP, err := NewPBC([]float64{0, 0, 0, 0, 0, 0, 0, 0, 0})
	if err != nil || zeroP.Kind() != BoxNone {
		Te.Error("An all-zero box should mean no periodicity")
	}
}

func TestPBCRectangular(Te *testing.T) {
	P, err := NewPBC([]float64{10, 0, 0, 0, 10, 0, 0, 0, 10})
	if err != nil {
		Te.Fatal(err)
	}
	if P.Kind() != BoxRectangular {
		Te.Errorf("Wrong box kind: %s", P.Kind())
	}
	if v := P.Volume(); math.Abs(v-1000) > 1e-9 {
		Te.Errorf("Wrong volume: %f", v)
	}
	dx := P.Dx(nil, vec(9.5, 0, 0), vec(0.5, 0, 0))
	if math.Abs(dx.At(0, 0)+1) > 1e-9 {
		Te.Errorf("Wrong minimum image displacement: %v", dx.At(0, 0))
	}
	if d := P.Distance(vec(9.5, 0, 0), vec(0.5, 0, 0)); math.Abs(d-1) > 1e-9 {
		Te.Errorf("Wrong minimum image distance: %f", d)
	}
	fmt.Println("rectangular minimum image passed")
}

func TestPBCTriclinic(Te *testing.T) {
	P, err := NewPBC([]float64{10, 0, 0, 5, 10, 0, 0, 0, 10})
	if err != nil {
		Te.Fatal(err)
	}
	if P.Kind() != BoxTriclinic {
		Te.Errorf("Wrong box kind: %s", P.Kind())
	}
	if v := P.Volume(); math.Abs(v-1000) > 1e-9 {
		Te.Errorf("Wrong volume: %f", v)
	}
	//p2 sits at 0.98 of the second box vector from p1, so the closest image
	//of p1-p2 is one b vector away: (0.1, 0.2, 0).
	dx := P.Dx(nil, vec(0, 0, 0), vec(4.9, 9.8, 0))
	if math.Abs(dx.At(0, 0)-0.1) > 1e-9 || math.Abs(dx.At(0, 1)-0.2) > 1e-9 || math.Abs(dx.At(0, 2)) > 1e-9 {
		Te.Errorf("Wrong triclinic minimum image: %v %v %v", dx.At(0, 0), dx.At(0, 1), dx.At(0, 2))
	}
}

func TestPBCValidation(Te *testing.T) {
	if _, err := NewPBC([]float64{1, 2, 3}); err == nil {
		Te.Error("A box with less than 9 elements should be rejected")
	}
	if _, err := NewPBC([]float64{10, 1, 0, 0, 10, 0, 0, 0, 10}); err == nil {
		Te.Error("A box with the first vector off the x axis should be rejected")
	}
	if _, err := NewPBC([]float64{10, 0, 0, 0, -10, 0, 0, 0, 10}); err == nil {
		Te.Error("A box with a non-positive diagonal should be rejected")
	}
}
