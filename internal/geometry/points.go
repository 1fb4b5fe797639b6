// Package geometry implements the rigid 2D transforms and quad-to-quad
// homography shared by every stage of the pipeline: polar-to-cartesian
// conversion, device pose application, and ROI projection.
package geometry

import "math"

// Point is a 2D cartesian coordinate.
type Point struct {
	X, Y float64
}

// Pose is a device's rigid placement in world space: a translation
// (X, Y) and a rotation (radians, counter-clockwise) applied about the
// origin before translation.
type Pose struct {
	X, Y     float64
	Rotation float64
}

// PolarToCartesian converts a polar sample (angle measured
// counter-clockwise from +X, in radians; distance in meters) to a
// cartesian point in the sensor's own frame.
func PolarToCartesian(angleRad, distance float64) Point {
	return Point{
		X: distance * math.Cos(angleRad),
		Y: distance * math.Sin(angleRad),
	}
}

// ApplyPose rotates p about the origin by pose.Rotation, then
// translates by (pose.X, pose.Y), mapping a point from a device's local
// frame into world space.
func ApplyPose(p Point, pose Pose) Point {
	sin, cos := math.Sincos(pose.Rotation)
	rx := p.X*cos - p.Y*sin
	ry := p.X*sin + p.Y*cos
	return Point{X: rx + pose.X, Y: ry + pose.Y}
}
