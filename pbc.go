/*
 * pbc.go, part of gotaf.
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
 *
 */

package taf

import (
	"math"

	v3 "github.com/kassonlab/gotaf/v3"
	"gonum.org/v1/gonum/mat"
)

//BoxKind classifies the periodic boundary conditions described by a box.
type BoxKind int

const (
	BoxNone BoxKind = iota
	BoxRectangular
	BoxTriclinic
)

func (k BoxKind) String() string {
	switch k {
	case BoxNone:
		return "none"
	case BoxRectangular:
		return "rectangular"
	case BoxTriclinic:
		return "triclinic"
	}
	return "unknown"
}

//PBC holds the periodic boundary information of one frame, and computes
//minimum-image displacements under it. A nil *PBC behaves as no
//periodicity, so it can be passed around without checks.
type PBC struct {
	kind BoxKind
	box  [9]float64
	inv  *mat.Dense //only for triclinic boxes
}

//NewPBC classifies the given box and returns the corresponding PBC. A nil,
//empty or all-zero box means no periodicity. Otherwise the box must have 9
//elements, row-major, with the first vector along x and the second on the
//xy plane (elements 1, 2 and 5 zero) and positive diagonal. For triclinic
//boxes the inverse of the box matrix is computed here, once.
func NewPBC(box []float64) (*PBC, error) {
	P := new(PBC)
	if len(box) == 0 {
		P.kind = BoxNone
		return P, nil
	}
	if len(box) != 9 {
		return nil, NewCError(WrongBox, "NewPBC")
	}
	zero := true
	for _, v := range box {
		if v != 0 {
			zero = false
			break
		}
	}
	if zero {
		P.kind = BoxNone
		return P, nil
	}
	if box[1] != 0 || box[2] != 0 || box[5] != 0 {
		return nil, NewCError(BadBoxVectors, "NewPBC")
	}
	if box[0] <= 0 || box[4] <= 0 || box[8] <= 0 {
		return nil, NewCError(BadBoxVectors, "NewPBC")
	}
	copy(P.box[:], box)
	if box[3] == 0 && box[6] == 0 && box[7] == 0 {
		P.kind = BoxRectangular
		return P, nil
	}
	P.kind = BoxTriclinic
	H := mat.NewDense(3, 3, box)
	P.inv = mat.NewDense(3, 3, nil)
	if err := P.inv.Inverse(H); err != nil {
		return nil, NewCError("Box matrix is not invertible: "+err.Error(), "NewPBC")
	}
	return P, nil
}

//Kind returns the kind of periodicity. A nil PBC is BoxNone.
func (P *PBC) Kind() BoxKind {
	if P == nil {
		return BoxNone
	}
	return P.kind
}

//Box returns a copy of the 9 box components, or nil if there is no box.
func (P *PBC) Box() []float64 {
	if P.Kind() == BoxNone {
		return nil
	}
	ret := make([]float64, 9)
	copy(ret, P.box[:])
	return ret
}

//Volume returns the volume enclosed by the box, or 0 if there is no box.
//With the first box vector along x and the second on the xy plane, the
//volume is just the product of the diagonal.
func (P *PBC) Volume() float64 {
	if P.Kind() == BoxNone {
		return 0
	}
	return P.box[0] * P.box[4] * P.box[8]
}

//Dx puts in dst the minimum-image displacement a-b and returns dst. If dst
//is nil a new vector is allocated. a, b and dst must be single vectors, or
//the function panics.
func (P *PBC) Dx(dst, a, b *v3.Matrix) *v3.Matrix {
	if a.NVecs() != 1 || b.NVecs() != 1 {
		panic("PBC.Dx: a and b must be single vectors")
	}
	if dst == nil {
		dst = v3.Zeros(1)
	} else if dst.NVecs() != 1 {
		panic("PBC.Dx: dst must be a single vector")
	}
	dst.Sub(a, b)
	switch P.Kind() {
	case BoxNone:
	case BoxRectangular:
		for d := 0; d < 3; d++ {
			L := P.box[d*4]
			x := dst.At(0, d)
			dst.Set(0, d, x-L*math.Round(x/L))
		}
	case BoxTriclinic:
		//to fractional coordinates, wrap, and back
		var s [3]float64
		for j := 0; j < 3; j++ {
			for d := 0; d < 3; d++ {
				s[j] += dst.At(0, d) * P.inv.At(d, j)
			}
			s[j] -= math.Round(s[j])
		}
		for d := 0; d < 3; d++ {
			x := 0.0
			for j := 0; j < 3; j++ {
				x += s[j] * P.box[j*3+d]
			}
			dst.Set(0, d, x)
		}
	}
	return dst
}

//Distance returns the minimum-image distance between the single vectors
//a and b.
func (P *PBC) Distance(a, b *v3.Matrix) float64 {
	return P.Dx(nil, a, b).Norm(2)
}
