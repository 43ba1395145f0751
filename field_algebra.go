package wxvol

import (
	"math"

	"github.com/samber/lo"
	"github.com/xrash/smetrics"
)

// FieldAlgebra mutates and combines fields of one volume (spec §4.5). It
// is a thin wrapper around *Volume rather than an independent value,
// mirroring the teacher's habit of grouping a family of operations behind
// one receiver type.
type FieldAlgebra struct {
	Vol *Volume
}

// NewFieldAlgebra binds a FieldAlgebra to vol.
func NewFieldAlgebra(vol *Volume) *FieldAlgebra { return &FieldAlgebra{Vol: vol} }

// suggestField builds a BAD_ARG error for an unknown field name, appending
// a "did you mean" suggestion picked by Jaro-Winkler similarity against
// every installed field name plus every registered data-type abbreviation.
func (fa *FieldAlgebra) suggestField(name string) error {
	candidates := append(fa.Vol.FieldNames(), RegisteredAbbrvs()...)
	if len(candidates) == 0 {
		return newErr(BadArg, "no such field %q", name)
	}
	best := lo.MaxBy(candidates, func(a, b string) bool {
		return smetrics.JaroWinkler(name, a, 0.7, 4) > smetrics.JaroWinkler(name, b, 0.7, 4)
	})
	if smetrics.JaroWinkler(name, best, 0.7, 4) < 0.6 {
		return newErr(BadArg, "no such field %q", name)
	}
	return newErr(BadArg, "no such field %q; did you mean %q?", name, best)
}

func (fa *FieldAlgebra) editableField(name string) (*Field, error) {
	f, ok := fa.Vol.Field(name)
	if !ok {
		return nil, fa.suggestField(name)
	}
	if !f.Editable() {
		return nil, newErr(BadArg, "field %q is not editable", name)
	}
	return f, nil
}

// forEachOk visits every (s, r, b) whose sweep and ray are both ok.
func (fa *FieldAlgebra) forEachOk(fn func(s, r, b int)) {
	v := fa.Vol
	for s := 0; s < v.NumSweepsDeclared; s++ {
		if s >= len(v.Sweeps) || !v.Sweeps[s].Ok {
			continue
		}
		for r := 0; r < v.NumRaysPerSweep; r++ {
			if !v.Rays[s][r].Ok {
				continue
			}
			for b := 0; b < v.NumOutputBins; b++ {
				fn(s, r, b)
			}
		}
	}
}

// SetConstant assigns v to every ok (sweep, ray, bin) of an editable field
// (spec §4.5 set_constant).
func (fa *FieldAlgebra) SetConstant(name string, val float64) error {
	f, err := fa.editableField(name)
	if err != nil {
		return err
	}
	fa.forEachOk(func(s, r, b int) {
		_ = fa.Vol.SetFloat(f, s, r, b, val)
	})
	fa.Vol.Modified = true
	return nil
}

// SetRangeAlongBeam sets every bin to its beam range in metres
// (spec §4.5 set_range_along_beam).
func (fa *FieldAlgebra) SetRangeAlongBeam(name string) error {
	f, err := fa.editableField(name)
	if err != nil {
		return err
	}
	ri := fa.Vol.Ingest.TaskConfiguration.TaskRangeInfo
	fa.forEachOk(func(s, r, b int) {
		v := ri.Range1stBin + float64(b)*ri.BinStep + ri.BinStep/2
		_ = fa.Vol.SetFloat(f, s, r, b, v)
	})
	fa.Vol.Modified = true
	return nil
}

// CopyFrom fills dst with src's physical values, converting through src's
// stor_to_comp where src is not already float (spec §4.5 copy_from).
func (fa *FieldAlgebra) CopyFrom(dst, src string) error {
	df, err := fa.editableField(dst)
	if err != nil {
		return err
	}
	sf, ok := fa.Vol.Field(src)
	if !ok {
		return fa.suggestField(src)
	}
	fa.forEachOk(func(s, r, b int) {
		val, verr := fa.Vol.ValueAt(sf, s, r, b)
		if verr != nil {
			val = math.NaN()
		}
		_ = fa.Vol.SetFloat(df, s, r, b, val)
	})
	fa.Vol.Modified = true
	return nil
}

type scalarOp func(x, c float64) float64

func addOp(x, c float64) float64 { return x + c }
func subOp(x, c float64) float64 { return x - c }
func mulOp(x, c float64) float64 { return x * c }
func divOp(x, c float64) float64 { return x / c }

func (fa *FieldAlgebra) scalarCombine(name string, c float64, op scalarOp) error {
	f, err := fa.editableField(name)
	if err != nil {
		return err
	}
	fa.forEachOk(func(s, r, b int) {
		cur, _ := fa.Vol.ValueAt(f, s, r, b)
		if math.IsNaN(cur) {
			return
		}
		_ = fa.Vol.SetFloat(f, s, r, b, op(cur, c))
	})
	fa.Vol.Modified = true
	return nil
}

// AddVal, SubVal, MulVal and DivVal combine an editable field in place
// with a scalar (spec §4.5).
func (fa *FieldAlgebra) AddVal(name string, c float64) error { return fa.scalarCombine(name, c, addOp) }
func (fa *FieldAlgebra) SubVal(name string, c float64) error { return fa.scalarCombine(name, c, subOp) }
func (fa *FieldAlgebra) MulVal(name string, c float64) error { return fa.scalarCombine(name, c, mulOp) }

func (fa *FieldAlgebra) DivVal(name string, c float64) error {
	if c == 0 {
		return newErr(BadArg, "division by zero")
	}
	return fa.scalarCombine(name, c, divOp)
}

// fieldCombine implements add_field/sub_field/mul_field/div_field: an
// optional leading "-" on src negates the operand before combining
// (spec §4.5).
func (fa *FieldAlgebra) fieldCombine(dst, src string, op scalarOp) error {
	df, err := fa.editableField(dst)
	if err != nil {
		return err
	}
	negate := false
	if len(src) > 0 && src[0] == '-' {
		negate = true
		src = src[1:]
	}
	sf, ok := fa.Vol.Field(src)
	if !ok {
		return fa.suggestField(src)
	}
	fa.forEachOk(func(s, r, b int) {
		cur, cerr := fa.Vol.ValueAt(df, s, r, b)
		if cerr != nil {
			return
		}
		sv, serr := fa.Vol.ValueAt(sf, s, r, b)
		if serr != nil {
			sv = math.NaN()
		}
		if negate {
			sv = -sv
		}
		_ = fa.Vol.SetFloat(df, s, r, b, op(cur, sv))
	})
	fa.Vol.Modified = true
	return nil
}

func (fa *FieldAlgebra) AddField(dst, src string) error { return fa.fieldCombine(dst, src, addOp) }
func (fa *FieldAlgebra) SubField(dst, src string) error { return fa.fieldCombine(dst, src, subOp) }
func (fa *FieldAlgebra) MulField(dst, src string) error { return fa.fieldCombine(dst, src, mulOp) }
func (fa *FieldAlgebra) DivField(dst, src string) error { return fa.fieldCombine(dst, src, divOp) }

// Log10 replaces every bin of name with its base-10 logarithm, mapping
// non-positive values to NaN (spec §4.5).
func (fa *FieldAlgebra) Log10(name string) error {
	f, err := fa.editableField(name)
	if err != nil {
		return err
	}
	fa.forEachOk(func(s, r, b int) {
		cur, _ := fa.Vol.ValueAt(f, s, r, b)
		if cur <= 0 {
			_ = fa.Vol.SetFloat(f, s, r, b, math.NaN())
			return
		}
		_ = fa.Vol.SetFloat(f, s, r, b, math.Log10(cur))
	})
	fa.Vol.Modified = true
	return nil
}

// IncrTime shifts every embedded timestamp by deltaSeconds via a julian-day
// round trip, preserving calendar validity (spec §4.5 incr_time).
func (fa *FieldAlgebra) IncrTime(deltaSeconds float64) error {
	v := fa.Vol
	deltaDays := deltaSeconds / 86400
	v.Product.ProductEnd.GenerationTime += deltaDays
	v.Ingest.TaskConfiguration.TaskSchedInfo.StartTime += deltaDays
	for i := range v.Sweeps {
		if v.Sweeps[i].Ok {
			v.Sweeps[i].Time += deltaDays
		}
	}
	for s := range v.Rays {
		for r := range v.Rays[s] {
			if v.Rays[s][r].Ok {
				v.Rays[s][r].Time += deltaSeconds
			}
		}
	}
	v.Modified = true
	return nil
}

// ShiftAz rotates every sweep angle and ray azimuth by deltaRadians,
// canonicalising into [-pi, pi] (spec §4.5 shift_az).
func (fa *FieldAlgebra) ShiftAz(deltaRadians float64) error {
	v := fa.Vol
	for i := range v.Sweeps {
		if v.Sweeps[i].Ok {
			v.Sweeps[i].Angle = canonicalAz(v.Sweeps[i].Angle + deltaRadians)
		}
	}
	for s := range v.Rays {
		for r := range v.Rays[s] {
			if !v.Rays[s][r].Ok {
				continue
			}
			v.Rays[s][r].Az0 = canonicalAz(v.Rays[s][r].Az0 + deltaRadians)
			v.Rays[s][r].Az1 = canonicalAz(v.Rays[s][r].Az1 + deltaRadians)
		}
	}
	v.Modified = true
	return nil
}

func canonicalAz(az float64) float64 {
	for az > math.Pi {
		az -= 2 * math.Pi
	}
	for az < -math.Pi {
		az += 2 * math.Pi
	}
	return az
}
