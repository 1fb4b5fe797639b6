package geometry

import (
	"math"
	"testing"
)

func TestPolarToCartesian(t *testing.T) {
	p := PolarToCartesian(0, 1.0)
	if math.Abs(p.X-1.0) > 1e-9 || math.Abs(p.Y) > 1e-9 {
		t.Errorf("expected (1,0), got (%f,%f)", p.X, p.Y)
	}
}

func TestApplyPose(t *testing.T) {
	// S3: pose (1,2,pi/2), point (1,0) -> (1,3)
	p := ApplyPose(Point{X: 1, Y: 0}, Pose{X: 1, Y: 2, Rotation: math.Pi / 2})
	if math.Abs(p.X-1) > 1e-9 || math.Abs(p.Y-3) > 1e-9 {
		t.Errorf("expected (1,3), got (%f,%f)", p.X, p.Y)
	}
}

func TestApplyPoseIdentity(t *testing.T) {
	p := ApplyPose(Point{X: 3.5, Y: -2.1}, Pose{})
	if p.X != 3.5 || p.Y != -2.1 {
		t.Errorf("identity pose should not move point, got (%f,%f)", p.X, p.Y)
	}
}
