package dorade

import (
	"bytes"
	"io"
	"math"
	"testing"
)

// memWriteSeeker is a minimal in-memory io.WriteSeeker: Writer needs to seek
// back to patch the SSWB file-size field after the sweep body is written.
type memWriteSeeker struct {
	buf []byte
	pos int64
}

func (m *memWriteSeeker) Write(p []byte) (int, error) {
	end := m.pos + int64(len(p))
	if end > int64(len(m.buf)) {
		grown := make([]byte, end)
		copy(grown, m.buf)
		m.buf = grown
	}
	n := copy(m.buf[m.pos:end], p)
	m.pos = end
	return n, nil
}

func (m *memWriteSeeker) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
		base = 0
	case io.SeekCurrent:
		base = m.pos
	case io.SeekEnd:
		base = int64(len(m.buf))
	}
	m.pos = base + offset
	return m.pos, nil
}

func buildSweep(t *testing.T) *Sweep {
	t.Helper()
	sw := NewSweep(2, 3)
	sw.Comment = "test sweep"
	sw.SiteName = "KXYZ"
	sw.StartTime = 1700000000
	sw.RadarName = "KXYZ"
	sw.Latitude = 35.5
	sw.Longitude = -97.5
	sw.Altitude = 400
	sw.PeakPower = 500
	sw.NoisePower = -110
	sw.HorizBeamWidth = 0.95
	sw.VertBeamWidth = 0.95
	sw.NyquistVelocity = 25
	sw.UnambiguousRange = 150000
	sw.ScanMode = ScanPPI
	sw.CellDistances = []float64{1000, 2000, 3000}
	sw.NumCells = 3
	sw.FixedAngle = 0.5
	sw.StartAngle = 0
	sw.StopAngle = 359

	refl, err := sw.AddParm("DBZ", "reflectivity", "dBZ", DD16Bits, 100, 0, -32768)
	if err != nil {
		t.Fatalf("AddParm(DBZ): %v", err)
	}
	vel, err := sw.AddParm("VEL", "velocity", "m/s", DD32BitFP, 1, 0, 0)
	if err != nil {
		t.Fatalf("AddParm(VEL): %v", err)
	}

	sw.Rays[0] = RayHeader{Ok: true, Time: 1700000001, Azimuth: 10, Elevation: 0.5, RadarLon: -97.5, RadarLat: 35.5, RadarAlt: 400}
	sw.Rays[1] = RayHeader{Ok: true, Time: 1700000002, Azimuth: 11, Elevation: 0.5, RadarLon: -97.5, RadarLat: 35.5, RadarAlt: 400}

	for ray := 0; ray < 2; ray++ {
		for cell := 0; cell < 3; cell++ {
			sw.SetAt(refl, ray, cell, float64(10*ray+cell))
			sw.SetAt(vel, ray, cell, float64(ray)-float64(cell)*0.5)
		}
	}
	// exercise the bad_data / NaN path for the 16-bit parameter.
	sw.SetAt(refl, 0, 2, math.NaN())

	return sw
}

func TestSweepRoundTripsThroughWriterAndReader(t *testing.T) {
	sw := buildSweep(t)

	mws := &memWriteSeeker{}
	if err := WriteSweep(mws, sw); err != nil {
		t.Fatalf("WriteSweep: %v", err)
	}

	got, err := ReadSweep(bytes.NewReader(mws.buf))
	if err != nil {
		t.Fatalf("ReadSweep: %v", err)
	}

	if got.Comment != sw.Comment {
		t.Fatalf("Comment = %q; want %q", got.Comment, sw.Comment)
	}
	if got.SiteName != sw.SiteName {
		t.Fatalf("SiteName = %q; want %q", got.SiteName, sw.SiteName)
	}
	if got.RadarName != sw.RadarName {
		t.Fatalf("RadarName = %q; want %q", got.RadarName, sw.RadarName)
	}
	if math.Abs(got.Latitude-sw.Latitude) > 1e-3 || math.Abs(got.Longitude-sw.Longitude) > 1e-3 {
		t.Fatalf("lat/lon = (%v,%v); want (%v,%v)", got.Latitude, got.Longitude, sw.Latitude, sw.Longitude)
	}
	if got.ScanMode != sw.ScanMode {
		t.Fatalf("ScanMode = %v; want %v", got.ScanMode, sw.ScanMode)
	}
	if got.NumCells != sw.NumCells {
		t.Fatalf("NumCells = %d; want %d", got.NumCells, sw.NumCells)
	}
	for i, d := range sw.CellDistances {
		if math.Abs(got.CellDistances[i]-d) > 1e-3 {
			t.Fatalf("CellDistances[%d] = %v; want %v", i, got.CellDistances[i], d)
		}
	}
	if got.NumRays != sw.NumRays {
		t.Fatalf("NumRays = %d; want %d", got.NumRays, sw.NumRays)
	}
	if got.FileSize != int32(len(mws.buf)) {
		t.Fatalf("FileSize = %d; want patched size %d", got.FileSize, len(mws.buf))
	}

	for ray := 0; ray < sw.NumRays; ray++ {
		if !got.Rays[ray].Ok {
			t.Fatalf("ray %d not marked Ok after round-trip", ray)
		}
		if math.Abs(got.Rays[ray].Azimuth-sw.Rays[ray].Azimuth) > 1e-3 {
			t.Fatalf("ray %d azimuth = %v; want %v", ray, got.Rays[ray].Azimuth, sw.Rays[ray].Azimuth)
		}
		if math.Abs(got.Rays[ray].RadarLat-sw.Rays[ray].RadarLat) > 1e-9 {
			t.Fatalf("ray %d RadarLat = %v; want %v", ray, got.Rays[ray].RadarLat, sw.Rays[ray].RadarLat)
		}
	}

	gotRefl, ok := got.Parm("DBZ")
	if !ok {
		t.Fatal("DBZ parameter missing after round-trip")
	}
	if gotRefl.Format != DD16Bits {
		t.Fatalf("DBZ Format = %v; want DD16Bits", gotRefl.Format)
	}
	gotVel, ok := got.Parm("VEL")
	if !ok {
		t.Fatal("VEL parameter missing after round-trip")
	}
	if gotVel.Format != DD32BitFP {
		t.Fatalf("VEL Format = %v; want DD32BitFP", gotVel.Format)
	}

	for ray := 0; ray < 2; ray++ {
		for cell := 0; cell < 3; cell++ {
			if ray == 0 && cell == 2 {
				if v := got.At(gotRefl, ray, cell); !math.IsNaN(v) {
					t.Fatalf("DBZ(0,2) = %v; want NaN (bad_data round-trip)", v)
				}
				continue
			}
			want := float64(10*ray + cell)
			if v := got.At(gotRefl, ray, cell); math.Abs(v-want) > 1e-2 {
				t.Fatalf("DBZ(%d,%d) = %v; want %v", ray, cell, v, want)
			}
			wantVel := float64(ray) - float64(cell)*0.5
			if v := got.At(gotVel, ray, cell); math.Abs(v-wantVel) > 1e-6 {
				t.Fatalf("VEL(%d,%d) = %v; want %v", ray, cell, v, wantVel)
			}
		}
	}
}

func TestSweepRayCounts(t *testing.T) {
	sw := buildSweep(t)
	if sw.RayCount() != 2 {
		t.Fatalf("RayCount() = %d; want 2", sw.RayCount())
	}
	if sw.GoodRayCount() != 2 {
		t.Fatalf("GoodRayCount() = %d; want 2 (both rays Ok)", sw.GoodRayCount())
	}
	sw.Rays[1].Ok = false
	if sw.GoodRayCount() != 1 {
		t.Fatalf("GoodRayCount() after marking ray 1 not ok = %d; want 1", sw.GoodRayCount())
	}
	if sw.RayCount() != 2 {
		t.Fatalf("RayCount() = %d; want 2 (declared count unaffected by Ok flags)", sw.RayCount())
	}
}

func TestWriteSweepSkipsNotOkRays(t *testing.T) {
	sw := buildSweep(t)
	sw.Rays[1].Ok = false

	mws := &memWriteSeeker{}
	if err := WriteSweep(mws, sw); err != nil {
		t.Fatalf("WriteSweep: %v", err)
	}
	got, err := ReadSweep(bytes.NewReader(mws.buf))
	if err != nil {
		t.Fatalf("ReadSweep: %v", err)
	}
	if got.Rays[1].Ok {
		t.Fatal("ray 1 is Ok after round-trip; writer should not have emitted its RYIB/ASIB/RDAT blocks")
	}
	if got.Rays[0].Ok != true {
		t.Fatal("ray 0 lost its Ok flag")
	}
}
