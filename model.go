package wxvol

import "math"

// MultiPRFMode selects the multi-PRF staggering scheme in effect for a
// sweep's pulse repetition frequency, which governs the Nyquist-velocity
// formula used both locally and by SigmetToDorade (spec §4.9).
type MultiPRFMode int

const (
	PRFOneOne MultiPRFMode = iota
	PRFTwoThree
	PRFThreeFour
	PRFFourFive
)

// NyquistVelocity applies the formula the rewrite settled on for the
// ambiguous multi-PRF Nyquist definitions in original_source/src/sigmet_dorade.c
// (see DESIGN.md, Open Questions). prf is the task's nominal PRF in Hz and
// lambda the radar wavelength in metres.
func (m MultiPRFMode) NyquistVelocity(lambda, prf float64) float64 {
	base := lambda * prf / 4
	switch m {
	case PRFTwoThree:
		return 1.5 * base * 2
	case PRFThreeFour:
		return 4.0 / 3.0 * base * 3
	case PRFFourFive:
		return 1.25 * base * 4
	default:
		return base
	}
}

// DataMask is the Sigmet task_dsp_info.curr_data_mask substructure; only
// mask_word_0 is consulted by this reader (spec §4.4 step 2).
type DataMask struct {
	MaskWord0 uint32
}

// TaskRangeInfo carries the beam-range geometry shared by every field's bins.
type TaskRangeInfo struct {
	Range1stBin float64 // metres
	BinStep     float64 // metres
}

// TaskDspInfo carries the signal-processing parameters a conversion formula
// or Sigmet->DORADE translation needs: wavelength, PRF, data mask, PRF mode.
type TaskDspInfo struct {
	CurrDataMask DataMask
	PRF          float64 // Hz
	Wavelength   float64 // metres
	MultiPRFMode MultiPRFMode
}

// TaskCalibInfo carries the transmitter/receiver figures SigmetToDorade
// copies into RADD.
type TaskCalibInfo struct {
	NoisePower float64
	PeakPower  float64
}

// TaskSchedInfo carries the task's scheduling fields.
type TaskSchedInfo struct {
	StartTime float64 // julian day, fractional
}

// TaskConfiguration groups the ingest header's task_configuration
// substructures relevant to this rewrite.
type TaskConfiguration struct {
	TaskSchedInfo TaskSchedInfo
	TaskDspInfo   TaskDspInfo
	TaskCalibInfo TaskCalibInfo
	TaskRangeInfo TaskRangeInfo
}

// IngestHeader is the Sigmet ingest_header record (record 2): site
// identity, antenna location, and the task configuration.
type IngestHeader struct {
	SiteName          string
	Latitude          float64 // radians
	Longitude         float64 // radians
	GroundHeight      float64 // metres
	RadarHeight       float64 // metres
	NumRaysPerSweep   int
	TaskConfiguration TaskConfiguration
}

// ProductConfiguration is the Sigmet product_configuration substructure.
type ProductConfiguration struct {
	ProductName string
	TaskName    string
}

// ProductEnd is the Sigmet product_end substructure: site name and the
// volume generation timestamp; incr_time shifts the generation timestamp.
type ProductEnd struct {
	SiteName       string
	GenerationTime float64 // julian day, fractional
}

// ProductHeader is the Sigmet product_hdr record (record 1).
type ProductHeader struct {
	ProductConfiguration ProductConfiguration
	ProductEnd           ProductEnd
}

// SweepHeader is one entry of a volume's dense sweep vector (spec §3).
type SweepHeader struct {
	Ok    bool
	Time  float64 // julian day, fractional
	Angle float64 // radians
}

// RayHeader is one entry of a volume's [sweep][ray] ray-header matrix
// (spec §3). Angles are canonicalised to az in [-pi, pi], tilt in
// [-pi/2, pi/2].
type RayHeader struct {
	Ok      bool
	Time    float64 // seconds from sweep start
	NumBins int
	Tilt0   float64
	Tilt1   float64
	Az0     float64
	Az1     float64
}

// Field is a volume's per-bin data array plus the descriptor spec §3 calls
// a "field descriptor": name, description, unit, storage format, and the
// conversion the data type (if any) defines. Built-in fields carry DT and
// a U1 or U2 backing slice; user-created fields carry F and no DT.
type Field struct {
	Name  string
	Descr string
	Unit  string
	Stor  StorFmt
	DT    *DataType // nil for a user-created (always float) field

	U1 []byte
	U2 []uint16
	F  []float32
}

// Editable reports whether FieldAlgebra mutation operations may target this
// field: only float fields are editable (spec §4.5).
func (f *Field) Editable() bool { return f.Stor == StorFloat }

// Volume is the in-memory Sigmet model (spec §3): exactly one product and
// ingest header, a dense sweep-header vector, a [sweep][ray] ray-header
// matrix, and up to 512 fields sharing one [sweep][ray][bin] grid.
type Volume struct {
	Product ProductHeader
	Ingest  IngestHeader

	NumSweepsDeclared int
	NumSweepsActual   int
	NumRaysPerSweep   int
	NumOutputBins     int

	Truncated   bool
	Modified    bool
	XHdrPresent bool

	Sweeps []SweepHeader
	Rays   [][]RayHeader // [sweep][ray]

	fields *HashTbl[*Field]
}

// maxFields mirrors the source's 512-slot field table (spec §3 invariant:
// "hash collisions probe linearly modulo 512"); the rewrite's HashTbl
// grows rather than probes, so this is enforced as an explicit cap instead.
const maxFields = 512

// NewVolume allocates an empty volume with the given grid shape, all
// sweeps and rays marked not-ok, ready for field algebra or a reader to
// populate (spec §3 end-to-end scenario B).
func NewVolume(numSweeps, numRays, numBins int) *Volume {
	v := &Volume{
		NumSweepsDeclared: numSweeps,
		NumSweepsActual:   numSweeps,
		NumRaysPerSweep:   numRays,
		NumOutputBins:     numBins,
		Sweeps:            make([]SweepHeader, numSweeps),
		Rays:              make([][]RayHeader, numSweeps),
		fields:            NewHashTbl[*Field](128),
	}
	for s := range v.Rays {
		v.Rays[s] = make([]RayHeader, numRays)
	}
	return v
}

// ConvCtx builds the data-type conversion context from this volume's task
// configuration (spec §4.2: "V_Ny, lambda, prf ... passed as a context
// pointer").
func (v *Volume) ConvCtx() *ConvCtx {
	dsp := v.Ingest.TaskConfiguration.TaskDspInfo
	return &ConvCtx{
		VNyquist: dsp.MultiPRFMode.NyquistVelocity(dsp.Wavelength, dsp.PRF),
		Lambda:   dsp.Wavelength,
		PRF:      dsp.PRF,
	}
}

func (v *Volume) idx(s, r, b int) int {
	return s*v.NumRaysPerSweep*v.NumOutputBins + r*v.NumOutputBins + b
}

func (v *Volume) checkIndex(s, r, b int) error {
	if s < 0 || s >= v.NumSweepsDeclared {
		return newErr(RngErr, "sweep index %d out of range [0,%d)", s, v.NumSweepsDeclared)
	}
	if r < 0 || r >= v.NumRaysPerSweep {
		return newErr(RngErr, "ray index %d out of range [0,%d)", r, v.NumRaysPerSweep)
	}
	if b < 0 || b >= v.NumOutputBins {
		return newErr(RngErr, "bin index %d out of range [0,%d)", b, v.NumOutputBins)
	}
	return nil
}

// Field resolves a field by name.
func (v *Volume) Field(name string) (*Field, bool) {
	return v.fields.Get(name)
}

// FieldNames lists installed field names in insertion order.
func (v *Volume) FieldNames() []string {
	return v.fields.Keys()
}

// installField adds f to the name index, enforcing the uniqueness
// invariant and the 512-field cap (spec §3).
func (v *Volume) installField(f *Field) error {
	if _, exists := v.fields.Get(f.Name); exists {
		return newErr(BadArg, "field %q already exists", f.Name)
	}
	if v.fields.Len() >= maxFields {
		return newErr(AllocFail, "volume already holds the maximum of %d fields", maxFields)
	}
	v.fields.Set(f.Name, f)
	return nil
}

// allocBuiltinField creates, zero-fills and installs a field bound to a
// built-in Sigmet data type, sized to this volume's grid (spec §4.4 step 2).
func (v *Volume) allocBuiltinField(dt *DataType) (*Field, error) {
	n := v.NumSweepsDeclared * v.NumRaysPerSweep * v.NumOutputBins
	f := &Field{Name: dt.Abbrv, Descr: dt.Descr, Unit: dt.Unit, Stor: dt.Stor, DT: dt}
	switch dt.Stor {
	case StorU1:
		f.U1 = make([]byte, n)
	case StorU2:
		f.U2 = make([]uint16, n)
	default:
		return nil, newErr(BadArg, "data type %s has no field storage", dt.Abbrv)
	}
	if err := v.installField(f); err != nil {
		return nil, err
	}
	return f, nil
}

// NewField allocates a float field initialised to NaN and installs it
// (spec §4.5 new_field).
func (v *Volume) NewField(name, descr, unit string) (*Field, error) {
	if len(name) == 0 || len(name) > 31 {
		return nil, newErr(BadArg, "field name %q must be 1-31 characters", name)
	}
	n := v.NumSweepsDeclared * v.NumRaysPerSweep * v.NumOutputBins
	buf := make([]float32, n)
	for i := range buf {
		buf[i] = float32(math.NaN())
	}
	f := &Field{Name: name, Descr: descr, Unit: unit, Stor: StorFloat, F: buf}
	if err := v.installField(f); err != nil {
		return nil, err
	}
	v.Modified = true
	return f, nil
}

// DeleteField removes name from the index and releases its storage
// (spec §4.5 delete_field). HashTbl.Delete already maintains the dense
// insertion-order prefix FieldNames relies on.
func (v *Volume) DeleteField(name string) error {
	if _, ok := v.fields.Get(name); !ok {
		return newErr(BadArg, "no such field %q", name)
	}
	v.fields.Delete(name)
	v.Modified = true
	return nil
}

// ValueAt reports the physical value of field f at (s, r, b), converting
// through the data type's stor_to_comp when f is not already float.
func (v *Volume) ValueAt(f *Field, s, r, b int) (float64, error) {
	if err := v.checkIndex(s, r, b); err != nil {
		return 0, err
	}
	i := v.idx(s, r, b)
	switch f.Stor {
	case StorFloat:
		return float64(f.F[i]), nil
	case StorU1:
		if f.DT == nil || f.DT.ToComp == nil {
			return 0, newErr(BadVol, "field %q has no conversion function", f.Name)
		}
		return f.DT.ToComp(float64(f.U1[i]), v.ConvCtx()), nil
	case StorU2:
		if f.DT == nil || f.DT.ToComp == nil {
			return 0, newErr(BadVol, "field %q has no conversion function", f.Name)
		}
		return f.DT.ToComp(float64(f.U2[i]), v.ConvCtx()), nil
	default:
		return 0, newErr(BadVol, "field %q has unrecognised storage", f.Name)
	}
}

// SetFloat writes v into an editable field at (s, r, b), rejecting
// built-in (non-float) fields with BAD_ARG (spec §4.5).
func (v *Volume) SetFloat(f *Field, s, r, b int, val float64) error {
	if !f.Editable() {
		return newErr(BadArg, "field %q is not editable", f.Name)
	}
	if err := v.checkIndex(s, r, b); err != nil {
		return err
	}
	f.F[v.idx(s, r, b)] = float32(val)
	return nil
}

// Summary is the geometrical and temporal extent of a volume's ok sweeps
// and rays, plus which field names it carries. Dropped from the distilled
// spec but cheap once the model exists; mirrors the role the teacher's
// SwathBathySummary plays for a GSF file's swath extent.
type Summary struct {
	MinSweepAngle float64 // radians
	MaxSweepAngle float64
	MinRayTime    float64 // seconds from sweep start
	MaxRayTime    float64
	FieldNames    []string
}

// Summary walks every ok sweep and ray once and reports their extent
// (spec §3 [EXPANSION]).
func (v *Volume) Summary() Summary {
	sum := Summary{MinSweepAngle: math.Inf(1), MaxSweepAngle: math.Inf(-1),
		MinRayTime: math.Inf(1), MaxRayTime: math.Inf(-1)}
	for s, sw := range v.Sweeps {
		if !sw.Ok {
			continue
		}
		if sw.Angle < sum.MinSweepAngle {
			sum.MinSweepAngle = sw.Angle
		}
		if sw.Angle > sum.MaxSweepAngle {
			sum.MaxSweepAngle = sw.Angle
		}
		for _, ray := range v.Rays[s] {
			if !ray.Ok {
				continue
			}
			if ray.Time < sum.MinRayTime {
				sum.MinRayTime = ray.Time
			}
			if ray.Time > sum.MaxRayTime {
				sum.MaxRayTime = ray.Time
			}
		}
	}
	if math.IsInf(sum.MinSweepAngle, 1) {
		sum.MinSweepAngle, sum.MaxSweepAngle = 0, 0
	}
	if math.IsInf(sum.MinRayTime, 1) {
		sum.MinRayTime, sum.MaxRayTime = 0, 0
	}
	sum.FieldNames = v.FieldNames()
	return sum
}

// RayCount reports sweep s's declared ray count, Ok or not (spec §3
// [EXPANSION]).
func (v *Volume) RayCount(s int) int {
	if s < 0 || s >= len(v.Rays) {
		return 0
	}
	return len(v.Rays[s])
}

// GoodRayCount reports how many of sweep s's rays are Ok.
func (v *Volume) GoodRayCount(s int) int {
	if s < 0 || s >= len(v.Rays) {
		return 0
	}
	n := 0
	for _, r := range v.Rays[s] {
		if r.Ok {
			n++
		}
	}
	return n
}
