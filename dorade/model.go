// Package dorade implements the DORADE sweep file format: block-tagged
// records, a perfect-hash-sized tag dispatch realised as a Go map, and two
// RDAT compression schemes (spec §4.7-§4.9).
package dorade

import (
	wxvol "github.com/wxradar/wxvol"
)

// BinaryFormat is a PARM's sample encoding.
type BinaryFormat int

const (
	DD16Bits  BinaryFormat = iota // two-byte signed integer samples
	DD32BitFP                     // four-byte float samples
)

// ScanMode names a sweep's antenna motion, used in synthesised file names.
type ScanMode string

const (
	ScanPPI ScanMode = "PPI"
	ScanRHI ScanMode = "RHI"
	ScanUnk ScanMode = "UNK"
)

// Parm is one DORADE parameter descriptor plus its [ray][cell] data array,
// flattened ray*NumCells+cell (spec §3 "DORADE Sweep").
type Parm struct {
	Name        string
	Description string
	Unit        string
	Format      BinaryFormat
	Scale       float64
	Bias        float64
	BadData     int32

	Data []float32
}

// RayHeader is one DORADE ray's RYIB+ASIB fields (spec §4.7).
type RayHeader struct {
	Ok        bool
	Time      float64 // unix seconds
	Azimuth   float64 // degrees
	Elevation float64 // degrees
	RadarLon  float64 // degrees
	RadarLat  float64 // degrees
	RadarAlt  float64 // metres
}

// Sweep is the full in-memory DORADE model (spec §3): one COMM, one SSWB,
// one VOLD, one "Sensor" (RADD + ordered PARM list + CELV/CSFD + CFAC),
// one SWIB, num_rays ray-headers, and per-parameter data arrays.
type Sweep struct {
	Comment string // COMM

	SiteName  string  // SSWB
	StartTime float64 // SSWB, unix seconds
	FileSize  int32   // SSWB sizeof_file, patched by Writer after finalisation

	VoldYear, VoldMonth, VoldDay    int // VOLD
	VoldHour, VoldMin, VoldSec      int
	VoldGenYear, VoldGenMonth, VoldGenDay int

	RadarName        string // RADD
	PeakPower        float64
	NoisePower       float64
	HorizBeamWidth   float64 // degrees
	VertBeamWidth    float64
	NyquistVelocity  float64 // m/s
	UnambiguousRange float64 // metres
	Longitude        float64 // degrees
	Latitude         float64 // degrees
	Altitude         float64 // metres
	ScanMode         ScanMode

	Parms     []*Parm
	parmIndex *wxvol.HashTbl[*Parm]

	NumCells      int // CELV/CSFD
	CellDistances []float64

	RotationAngle float64 // CFAC, reserved for future correction factors

	NumRays    int // SWIB
	FixedAngle float64
	StartAngle float64
	StopAngle  float64

	Rays []RayHeader
}

// NewSweep allocates an empty sweep sized for numRays rays of numCells
// cells each, ready to be populated by a reader or by SigmetToDorade.
func NewSweep(numRays, numCells int) *Sweep {
	return &Sweep{
		NumRays:       numRays,
		NumCells:      numCells,
		Rays:          make([]RayHeader, numRays),
		CellDistances: make([]float64, numCells),
		parmIndex:     wxvol.NewHashTbl[*Parm](63),
	}
}

// AddParm appends and installs a new parameter (PARM insertion order
// matters, spec §3), sized to the sweep's current ray/cell shape.
func (s *Sweep) AddParm(name, descr, unit string, format BinaryFormat, scale, bias float64, badData int32) (*Parm, error) {
	if _, exists := s.parmIndex.Get(name); exists {
		return nil, wxvol.NewErr(wxvol.BadArg, "parameter %q already exists", name)
	}
	p := &Parm{
		Name: name, Description: descr, Unit: unit,
		Format: format, Scale: scale, Bias: bias, BadData: badData,
		Data: make([]float32, s.NumRays*s.NumCells),
	}
	s.Parms = append(s.Parms, p)
	s.parmIndex.Set(name, p)
	return p, nil
}

// Parm resolves a parameter by name.
func (s *Sweep) Parm(name string) (*Parm, bool) {
	return s.parmIndex.Get(name)
}

func (p *Parm) idx(ray, cell, numCells int) int { return ray*numCells + cell }

// At reports parameter p's physical value at (ray, cell).
func (s *Sweep) At(p *Parm, ray, cell int) float64 {
	return float64(p.Data[p.idx(ray, cell, s.NumCells)])
}

// SetAt writes a physical value into parameter p at (ray, cell).
func (s *Sweep) SetAt(p *Parm, ray, cell int, v float64) {
	p.Data[p.idx(ray, cell, s.NumCells)] = float32(v)
}

// RayCount reports the sweep's declared ray count, Ok or not.
func (s *Sweep) RayCount() int { return len(s.Rays) }

// GoodRayCount reports how many of the sweep's rays are Ok.
func (s *Sweep) GoodRayCount() int {
	n := 0
	for _, r := range s.Rays {
		if r.Ok {
			n++
		}
	}
	return n
}
