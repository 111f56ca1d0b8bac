// Package spatial holds the frame transforms used on base orientation.
// Quaternions are stored w, x, y, z.
package spatial

import (
	"math"

	"github.com/san-kum/e3deploy/internal/dynamo"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"
)

var Identity = [4]float64{1, 0, 0, 0}

func ToNumber(q [4]float64) quat.Number {
	return quat.Number{Real: q[0], Imag: q[1], Jmag: q[2], Kmag: q[3]}
}

func FromNumber(n quat.Number) [4]float64 {
	return [4]float64{n.Real, n.Imag, n.Jmag, n.Kmag}
}

// Normalize returns q scaled to unit length. A zero quaternion maps to identity.
func Normalize(q [4]float64) [4]float64 {
	n := ToNumber(q)
	abs := quat.Abs(n)
	if abs == 0 {
		return Identity
	}
	return FromNumber(quat.Scale(1/abs, n))
}

// RotationMatrix returns the body-to-world rotation for q.
func RotationMatrix(q [4]float64) *mat.Dense {
	w, x, y, z := q[0], q[1], q[2], q[3]
	return mat.NewDense(3, 3, []float64{
		1 - 2*(y*y+z*z), 2 * (x*y - w*z), 2 * (x*z + w*y),
		2 * (x*y + w*z), 1 - 2*(x*x+z*z), 2 * (y*z - w*x),
		2 * (x*z - w*y), 2 * (y*z + w*x), 1 - 2*(x*x+y*y),
	})
}

// WorldToBase expresses a world-frame vector in the base frame.
func WorldToBase(q [4]float64, v dynamo.Vec3) dynamo.Vec3 {
	var out mat.VecDense
	out.MulVec(RotationMatrix(q).T(), mat.NewVecDense(3, []float64{v[0], v[1], v[2]}))
	return dynamo.Vec3{out.AtVec(0), out.AtVec(1), out.AtVec(2)}
}

// BaseToWorld expresses a base-frame vector in the world frame.
func BaseToWorld(q [4]float64, v dynamo.Vec3) dynamo.Vec3 {
	var out mat.VecDense
	out.MulVec(RotationMatrix(q), mat.NewVecDense(3, []float64{v[0], v[1], v[2]}))
	return dynamo.Vec3{out.AtVec(0), out.AtVec(1), out.AtVec(2)}
}

// Rotate applies q to v using quaternion products.
func Rotate(q [4]float64, v dynamo.Vec3) dynamo.Vec3 {
	n := ToNumber(q)
	p := quat.Number{Imag: v[0], Jmag: v[1], Kmag: v[2]}
	r := quat.Mul(quat.Mul(n, p), quat.Conj(n))
	return dynamo.Vec3{r.Imag, r.Jmag, r.Kmag}
}

// GravityOrientation is the unit gravity direction seen from the base frame.
func GravityOrientation(q [4]float64) dynamo.Vec3 {
	return WorldToBase(q, dynamo.Vec3{0, 0, -1})
}

// Yaw returns the heading angle of q about world z.
func Yaw(q [4]float64) float64 {
	w, x, y, z := q[0], q[1], q[2], q[3]
	return math.Atan2(2*(w*z+x*y), 1-2*(y*y+z*z))
}

// FromYaw returns the rotation of angle yaw about world z.
func FromYaw(yaw float64) [4]float64 {
	return [4]float64{math.Cos(yaw / 2), 0, 0, math.Sin(yaw / 2)}
}

// Derivative returns dq/dt for a world-frame angular velocity w.
func Derivative(q [4]float64, w dynamo.Vec3) [4]float64 {
	omega := quat.Number{Imag: w[0], Jmag: w[1], Kmag: w[2]}
	return FromNumber(quat.Scale(0.5, quat.Mul(omega, ToNumber(q))))
}

func Cross(a, b dynamo.Vec3) dynamo.Vec3 {
	return dynamo.Vec3{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}
