package geometry

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ErrDegenerateQuad is returned by SolveQuadHomography when the source
// quad is degenerate (collinear or repeated corners) and no homography
// reproduces it, and by Project when dividing by a near-zero
// homogeneous component (point at infinity).
var ErrDegenerateQuad = errors.New("geometry: degenerate quad")

// Quad is four corner points, conventionally ordered
// top-left, top-right, bottom-right, bottom-left.
type Quad [4]Point

// Homography is a 3x3 projective transform in row-major order:
// H[0] H[1] H[2]
// H[3] H[4] H[5]
// H[6] H[7] H[8]
type Homography [9]float64

// SolveQuadHomography finds the 3x3 matrix H such that H*[x,y,1]^T =
// w*[u,v,1]^T for each of the four src/dst corner pairs. It fixes the
// scale by normalizing h33 = 1, which is valid for any homography that
// does not map a finite src corner to a point at infinity — the
// standard assumption for ROI-style quad correspondences. The system is
// solved as a dense 8x8 linear solve over gonum/mat rather than a
// hand-rolled elimination.
func SolveQuadHomography(src, dst Quad) (Homography, error) {
	a := mat.NewDense(8, 8, nil)
	b := mat.NewVecDense(8, nil)

	for i := 0; i < 4; i++ {
		x, y := src[i].X, src[i].Y
		u, v := dst[i].X, dst[i].Y

		row0 := 2 * i
		row1 := 2*i + 1

		a.SetRow(row0, []float64{x, y, 1, 0, 0, 0, -u * x, -u * y})
		a.SetRow(row1, []float64{0, 0, 0, x, y, 1, -v * x, -v * y})
		b.SetVec(row0, u)
		b.SetVec(row1, v)
	}

	var h mat.VecDense
	if err := h.SolveVec(a, b); err != nil {
		return Homography{}, ErrDegenerateQuad
	}

	return Homography{
		h.AtVec(0), h.AtVec(1), h.AtVec(2),
		h.AtVec(3), h.AtVec(4), h.AtVec(5),
		h.AtVec(6), h.AtVec(7), 1,
	}, nil
}

// Project applies H to p in homogeneous coordinates and divides through
// by the homogeneous component, returning an error when that component
// is too close to zero (p maps to a point at infinity).
func Project(h Homography, p Point) (Point, error) {
	w := h[6]*p.X + h[7]*p.Y + h[8]
	if math.Abs(w) < 1e-12 {
		return Point{}, ErrDegenerateQuad
	}
	u := (h[0]*p.X + h[1]*p.Y + h[2]) / w
	v := (h[3]*p.X + h[4]*p.Y + h[5]) / w
	return Point{X: u, Y: v}, nil
}

// UnitSquare is the canonical destination quad for ROI projection:
// (0,0), (1,0), (1,1), (0,1).
var UnitSquare = Quad{
	{X: 0, Y: 0},
	{X: 1, Y: 0},
	{X: 1, Y: 1},
	{X: 0, Y: 1},
}
