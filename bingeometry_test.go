package wxvol

import (
	"math"
	"testing"
)

func geometryVolume() *Volume {
	v := NewVolume(1, 2, 3)
	v.Ingest.TaskConfiguration.TaskRangeInfo = TaskRangeInfo{Range1stBin: 1000, BinStep: 500}
	v.Sweeps[0].Ok = true
	v.Rays[0][0] = RayHeader{Ok: true, Az0: 0, Az1: 0.01, Tilt0: 0.02, Tilt1: 0.02}
	v.Rays[0][1] = RayHeader{Ok: true, Az0: 0.01, Az1: 0.02, Tilt0: 0.02, Tilt1: 0.02}
	return v
}

func TestPPIBinCornersOrderAndProjection(t *testing.T) {
	v := geometryVolume()
	g := NewBinGeometry(v)
	proj, err := SetFromString("equirectangular:0,0")
	if err != nil {
		t.Fatalf("SetFromString: %v", err)
	}
	corners, err := g.PPIBinCorners(0, 0, 0, Fn(proj))
	if err != nil {
		t.Fatalf("PPIBinCorners: %v", err)
	}
	// corner 0 is the near edge at az0, corner 1 the far edge at az0:
	// the far corner must be farther from the origin than the near one.
	d0 := math.Hypot(corners[0].X, corners[0].Y)
	d1 := math.Hypot(corners[1].X, corners[1].Y)
	if d1 <= d0 {
		t.Fatalf("far-range corner (d=%v) not farther than near-range corner (d=%v)", d1, d0)
	}
}

func TestPPIBinCornersRejectsNotOk(t *testing.T) {
	v := geometryVolume()
	v.Rays[0][0].Ok = false
	g := NewBinGeometry(v)
	proj, _ := SetFromString("equirectangular:0,0")
	if _, err := g.PPIBinCorners(0, 0, 0, Fn(proj)); err == nil {
		t.Fatal("PPIBinCorners on a not-ok ray succeeded")
	}
}

func TestPPIBinCornersRejectsOutOfRangeBin(t *testing.T) {
	v := geometryVolume()
	g := NewBinGeometry(v)
	proj, _ := SetFromString("equirectangular:0,0")
	if _, err := g.PPIBinCorners(0, 0, 99, Fn(proj)); err == nil {
		t.Fatal("PPIBinCorners with an out-of-range bin index succeeded")
	} else if KindOf(err) != RngErr {
		t.Fatalf("error kind = %v; want RNG_ERR", KindOf(err))
	}
}

func TestRHIBinCornersHeightIncreasesWithRange(t *testing.T) {
	v := geometryVolume()
	g := NewBinGeometry(v)
	corners, err := g.RHIBinCorners(0, 0, 0)
	if err != nil {
		t.Fatalf("RHIBinCorners: %v", err)
	}
	// corners[0] is (tilt0, r0); corners[1] is (tilt0, r1). With a fixed
	// positive tilt, height must be monotonically increasing with range.
	if corners[1].Y <= corners[0].Y {
		t.Fatalf("height at far range (%v) not greater than near range (%v)", corners[1].Y, corners[0].Y)
	}
}

func TestSweepBoundingBoxPPI(t *testing.T) {
	v := geometryVolume()
	g := NewBinGeometry(v)
	proj, _ := SetFromString("equirectangular:0,0")
	xMin, xMax, yMin, yMax, err := g.SweepBoundingBoxPPI(0, Fn(proj))
	if err != nil {
		t.Fatalf("SweepBoundingBoxPPI: %v", err)
	}
	if xMin > xMax || yMin > yMax {
		t.Fatalf("degenerate bounding box: x[%v,%v] y[%v,%v]", xMin, xMax, yMin, yMax)
	}
}

func TestSweepBoundingBoxRHINoOkRays(t *testing.T) {
	v := geometryVolume()
	v.Rays[0][0].Ok = false
	v.Rays[0][1].Ok = false
	g := NewBinGeometry(v)
	if _, _, _, _, err := g.SweepBoundingBoxRHI(0); err == nil {
		t.Fatal("SweepBoundingBoxRHI with no ok rays succeeded")
	}
}

func TestBeamHeightZeroTiltIsPositive(t *testing.T) {
	h := BeamHeight(50000, 0, EffEarthRHI)
	if h <= 0 {
		t.Fatalf("BeamHeight(50km, tilt=0) = %v; want > 0 (earth curvature drop)", h)
	}
}

func TestStepAndDistanceRoundTrip(t *testing.T) {
	lon0, lat0 := 0.1, 0.2
	bearing := math.Pi / 4
	arc := 0.01
	lon1, lat1 := Step(lon0, lat0, bearing, arc)
	d := Distance(lon0, lat0, lon1, lat1)
	if math.Abs(d-arc) > 1e-9 {
		t.Fatalf("Distance after Step = %v; want %v", d, arc)
	}
}
