/*
 * v3.go, part of gotaf.
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

package v3

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

//Matrix is a set of vectors in 3D space. Within the package it is understood
//that a "vector" is a row of the matrix, i.e. the cartesian coordinates of a
//point in 3D space. The name of some functions in the library reflect this.
type Matrix struct {
	*mat.Dense
}

//Matrix2Dense returns the gonum Dense matrix underlying A.
func Matrix2Dense(A *Matrix) *mat.Dense {
	return A.Dense
}

//Dense2Matrix wraps a 3-column gonum Dense matrix into a Matrix.
//It panics if A doesn't have 3 columns.
func Dense2Matrix(A *mat.Dense) *Matrix {
	_, c := A.Dims()
	if c != 3 {
		panic(ErrNotXx3Matrix)
	}
	return &Matrix{A}
}

//NewMatrix generates and returns a Matrix with 3 columns from data.
func NewMatrix(data []float64) (*Matrix, error) {
	const cols int = 3
	l := len(data)
	rows := l / cols
	if l%cols != 0 {
		return nil, Error{fmt.Sprintf("Input slice length %d not divisible by %d", l, cols), []string{"NewMatrix"}, true}
	}
	r := mat.NewDense(rows, cols, data)
	return &Matrix{r}, nil
}

//Zeros returns a zero-filled Matrix with vecs vectors.
func Zeros(vecs int) *Matrix {
	return &Matrix{mat.NewDense(vecs, 3, nil)}
}

//NVecs returns the number of vectors in the matrix.
func (F *Matrix) NVecs() int {
	r, _ := F.Dims()
	return r
}

//Len returns the number of vectors in the matrix. Equivalent to NVecs,
//it is here so a Matrix can stand in where a length is expected.
func (F *Matrix) Len() int {
	return F.NVecs()
}

//VecView returns a view of the ith vector of the matrix in the receiver.
//Changes in the view are reflected in F and vice-versa.
func (F *Matrix) VecView(i int) *Matrix {
	r := F.Dense.Slice(i, i+1, 0, 3).(*mat.Dense)
	return &Matrix{r}
}

//View returns a view of F starting from i,j and spanning r rows and
//c columns. Changes in the view are reflected in F and vice-versa.
func (F *Matrix) View(i, j, r, c int) *Matrix {
	ret := F.Dense.Slice(i, i+r, j, j+c).(*mat.Dense)
	return &Matrix{ret}
}

//SomeVecs puts in F a matrix consisting of the clist-th vectors of A,
//in the order given by clist. F must have as many vectors as elements
//has clist. It panics otherwise, as well as if an element of clist is
//out of range for A.
func (F *Matrix) SomeVecs(A *Matrix, clist []int) {
	if F.NVecs() != len(clist) {
		panic(ErrShape)
	}
	n := A.NVecs()
	for i, v := range clist {
		if v < 0 || v >= n {
			panic(ErrIndexOutOfRange)
		}
		F.Set(i, 0, A.At(v, 0))
		F.Set(i, 1, A.At(v, 1))
		F.Set(i, 2, A.At(v, 2))
	}
}

//Sub puts in the receiver the element-wise difference a-b.
//The receiver may be one of the arguments.
func (F *Matrix) Sub(a, b *Matrix) {
	F.Dense.Sub(a.Dense, b.Dense)
}

//Add puts in the receiver the element-wise sum a+b.
//The receiver may be one of the arguments.
func (F *Matrix) Add(a, b *Matrix) {
	F.Dense.Add(a.Dense, b.Dense)
}

//Scale puts in the receiver the matrix A scaled by v.
//The receiver may be A itself.
func (F *Matrix) Scale(v float64, A *Matrix) {
	F.Dense.Scale(v, A.Dense)
}

//Norm returns the norm i of the matrix. For a single vector and i=2 this
//is the Euclidean norm.
func (F *Matrix) Norm(i float64) float64 {
	return mat.Norm(F.Dense, i)
}

//Dot returns the dot product between the receiver and B, which must both
//be single vectors. It panics otherwise.
func (F *Matrix) Dot(B *Matrix) float64 {
	if F.NVecs() != 1 || B.NVecs() != 1 {
		panic(ErrNotAVector)
	}
	return F.At(0, 0)*B.At(0, 0) + F.At(0, 1)*B.At(0, 1) + F.At(0, 2)*B.At(0, 2)
}

//Errors

//Error is the concrete error type for the v3 package. The same structure is
//used by the other gotaf packages, so errors can travel up decorated but
//otherwise unchanged.
type Error struct {
	message  string
	deco     []string
	critical bool
}

//Error returns a string with an error message.
func (err Error) Error() string {
	return err.message
}

//Decorate will add the dec string to the decoration slice of strings of the error,
//and return the resulting slice.
func (err Error) Decorate(dec string) []string {
	if dec != "" {
		err.deco = append(err.deco, dec)
	}
	return err.deco
}

//Critical returns whether the error is critical or it can be ignored
func (err Error) Critical() bool { return err.critical }

//PanicMsg is a message used for panics, even though it does satisfy the error interface.
//For errors, use Error.
type PanicMsg string

func (v PanicMsg) Error() string { return string(v) }

const (
	ErrNotXx3Matrix    = PanicMsg("gotaf/v3: A Matrix should have 3 columns")
	ErrNotAVector      = PanicMsg("gotaf/v3: The matrix is not a single vector")
	ErrShape           = PanicMsg("gotaf/v3: Dimension mismatch")
	ErrIndexOutOfRange = PanicMsg("gotaf/v3: Index out of range")
)
