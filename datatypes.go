package wxvol

import "math"

// StorFmt is the on-disk storage width of a field's raw samples.
type StorFmt int

const (
	StorNone  StorFmt = iota // DB_XHDR: no data array
	StorU1                   // one byte per bin
	StorU2                   // two bytes per bin
	StorFloat                // four-byte float; always used for user fields
)

func (s StorFmt) BytesPerBin() int {
	switch s {
	case StorU1:
		return 1
	case StorU2:
		return 2
	case StorFloat:
		return 4
	default:
		return 0
	}
}

// ConvCtx carries the per-volume inputs a handful of stor_to_comp functions
// need (spec §4.2: "V_Ny, λ, prf ... are passed to the conversion as a
// context pointer").
type ConvCtx struct {
	VNyquist float64 // m/s
	Lambda   float64 // wavelength, m
	PRF      float64 // Hz
}

// StorToCompFn converts one raw storage sample to a physical value, or NaN
// for missing data.
type StorToCompFn func(raw float64, ctx *ConvCtx) float64

// DataType describes one Sigmet built-in data type: its abbreviation,
// human description, unit, storage width and raw->physical conversion.
type DataType struct {
	Abbrv  string
	Descr  string
	Unit   string
	Stor   StorFmt
	ToComp StorToCompFn
}

// Built-in Sigmet data type abbreviations, in the fixed order the mask-word
// bit tests of spec §4.4 step 2 enumerate them. Index 0 is DB_XHDR.
const (
	DBXHDR = iota
	DBDBT
	DBDBZ
	DBVEL
	DBWIDTH
	DBZDR
	DBDBZC
	DBDBT2
	DBDBZ2
	DBVEL2
	DBWIDTH2
	DBZDR2
	DBRAINRATE2
	DBKDP
	DBKDP2
	DBPHIDP
	DBVELC
	DBSQI
	DBRHOHV
	DBRHOHV2
	DBDBZC2
	DBVELC2
	DBSQI2
	DBPHIDP2
	DBLDRH
	DBLDRH2
	DBLDRV
	DBLDRV2
	numBuiltinTypes
)

// builtinTypes is indexed by the constants above; registryByAbbrv is built
// from it once at package init. Using a plain Go map here is the
// rewrite's stand-in for the 182-bucket perfect hash of spec §4.2 (see
// spec §9, "Perfect hashes ... become static lookup tables").
var builtinTypes [numBuiltinTypes]DataType
var registryByAbbrv map[string]*DataType

func init() {
	builtinTypes = [numBuiltinTypes]DataType{
		DBXHDR:      {"DB_XHDR", "Extended header", "none", StorNone, nil},
		DBDBT:       {"DB_DBT", "Uncorrected reflectivity (1 byte)", "dBZ", StorU1, stdDB},
		DBDBZ:       {"DB_DBZ", "Reflectivity (1 byte)", "dBZ", StorU1, stdDB},
		DBVEL:       {"DB_VEL", "Velocity (1 byte)", "m/s", StorU1, stdVEL},
		DBWIDTH:     {"DB_WIDTH", "Width (1 byte)", "m/s", StorU1, stdWIDTH},
		DBZDR:       {"DB_ZDR", "Differential reflectivity (1 byte)", "dBZ", StorU1, stdZDR},
		DBDBZC:      {"DB_DBZC", "Corrected reflectivity (1 byte)", "dBZ", StorU1, stdDB},
		DBDBT2:      {"DB_DBT2", "Uncorrected reflectivity (2 byte)", "dBZ", StorU2, std2Centered},
		DBDBZ2:      {"DB_DBZ2", "Reflectivity (2 byte)", "dBZ", StorU2, std2Centered},
		DBVEL2:      {"DB_VEL2", "Velocity (2 byte)", "m/s", StorU2, std2Centered},
		DBWIDTH2:    {"DB_WIDTH2", "Width (2 byte)", "m/s", StorU2, stdWIDTH2},
		DBZDR2:      {"DB_ZDR2", "Differential reflectivity (2 byte)", "dBZ", StorU2, std2Centered},
		DBRAINRATE2: {"DB_RAINRATE2", "Rainfall rate (2 byte)", "mm/hr", StorU2, stdRAINRATE2},
		DBKDP:       {"DB_KDP", "Specific differential phase (1 byte)", "deg/km", StorU1, stdKDP},
		DBKDP2:      {"DB_KDP2", "Specific differential phase (2 byte)", "deg/km", StorU2, std2Centered},
		DBPHIDP:     {"DB_PHIDP", "Differential phase (1 byte)", "degrees", StorU1, stdPHIDP},
		DBVELC:      {"DB_VELC", "Unfolded velocity (1 byte)", "m/s", StorU1, stdVELC},
		DBSQI:       {"DB_SQI", "Signal quality index (1 byte)", "none", StorU1, stdSQI},
		DBRHOHV:     {"DB_RHOHV", "RhoHV (1 byte)", "none", StorU1, stdSQI},
		DBRHOHV2:    {"DB_RHOHV2", "RhoHV (2 byte)", "none", StorU2, stdRHOHV2},
		DBDBZC2:     {"DB_DBZC2", "Corrected reflectivity (2 byte)", "dBZ", StorU2, std2Centered},
		DBVELC2:     {"DB_VELC2", "Unfolded velocity (2 byte)", "m/s", StorU2, std2Centered},
		DBSQI2:      {"DB_SQI2", "Signal quality index (2 byte)", "none", StorU2, stdRHOHV2},
		DBPHIDP2:    {"DB_PHIDP2", "Differential phase (2 byte)", "degrees", StorU2, stdPHIDP2},
		DBLDRH:      {"DB_LDRH", "Horizontal linear depolarization ratio (1 byte)", "none", StorU1, stdLDR},
		DBLDRH2:     {"DB_LDRH2", "Horizontal linear depolarization ratio (2 byte)", "none", StorU2, std2Centered},
		DBLDRV:      {"DB_LDRV", "Vertical linear depolarization ratio (1 byte)", "none", StorU1, stdLDR},
		DBLDRV2:     {"DB_LDRV2", "Vertical linear depolarization ratio (2 byte)", "none", StorU2, std2Centered},
	}

	registryByAbbrv = make(map[string]*DataType, numBuiltinTypes)
	for i := range builtinTypes {
		registryByAbbrv[builtinTypes[i].Abbrv] = &builtinTypes[i]
	}
}

// LookupDataType resolves a built-in abbreviation, e.g. "DB_DBZ".
func LookupDataType(abbrv string) (*DataType, bool) {
	dt, ok := registryByAbbrv[abbrv]
	return dt, ok
}

// DataTypeByIndex resolves a built-in type by its registry index, 0-based,
// 0 == DB_XHDR. Indices follow mask-bit order with the unused bit 6
// skipped, so bits 0-5 map to indices 0-5 and bits 7 and up to bit-1.
func DataTypeByIndex(i int) (*DataType, bool) {
	if i < 0 || i >= numBuiltinTypes {
		return nil, false
	}
	return &builtinTypes[i], true
}

// RegisteredAbbrvs lists every built-in abbreviation, used by the fuzzy
// "did you mean" suggestion in FieldAlgebra error messages.
func RegisteredAbbrvs() []string {
	out := make([]string, 0, len(registryByAbbrv))
	for k := range registryByAbbrv {
		out = append(out, k)
	}
	return out
}

func stdDB(v float64, _ *ConvCtx) float64 {
	if v == 0 {
		return math.NaN()
	}
	c := 0.5 * (v - 64)
	if c > 95.5 {
		c = 95.5
	}
	return c
}

func stdVEL(v float64, ctx *ConvCtx) float64 {
	if v == 0 || v > 255 {
		return math.NaN()
	}
	return ctx.VNyquist * (v - 128) / 127
}

func stdWIDTH(v float64, ctx *ConvCtx) float64 {
	if v == 0 {
		return math.NaN()
	}
	return 0.25 * ctx.Lambda * ctx.PRF * v / 256
}

func stdWIDTH2(v float64, _ *ConvCtx) float64 {
	return 0.01 * v
}

func stdZDR(v float64, _ *ConvCtx) float64 {
	if v == 0 {
		return math.NaN()
	}
	return (v - 128) / 16
}

func stdKDP(v float64, ctx *ConvCtx) float64 {
	switch {
	case v == 128:
		return 0
	case v > 128:
		return 0.25 * math.Pow(600, (v-129)/126) / ctx.Lambda
	default:
		return -0.25 * math.Pow(600, (127-v)/126) / ctx.Lambda
	}
}

func stdPHIDP(v float64, _ *ConvCtx) float64 {
	return 180 * (v - 1) / 254
}

func stdPHIDP2(v float64, _ *ConvCtx) float64 {
	return 360 * (v - 1) / 65534
}

func stdVELC(v float64, _ *ConvCtx) float64 {
	return 75 * (v - 128) / 127
}

func stdSQI(v float64, _ *ConvCtx) float64 {
	return math.Sqrt((v - 1) / 253)
}

func stdRHOHV2(v float64, _ *ConvCtx) float64 {
	return (v - 1) / 65535
}

func stdLDR(v float64, _ *ConvCtx) float64 {
	return 0.2*(v-1) - 45
}

func std2Centered(v float64, _ *ConvCtx) float64 {
	return 0.01 * (v - 32768)
}

func stdRAINRATE2(v float64, _ *ConvCtx) float64 {
	raw := uint32(v)
	e := raw >> 12
	m := raw & 0xFFF
	if e == 0 {
		return 0.0001 * float64(int32(m)-1)
	}
	return 0.0001 * float64((int64(0x1000|m)<<(e-1))-1)
}
