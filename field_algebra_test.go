package wxvol

import (
	"math"
	"testing"
)

func okVolume(numSweeps, numRays, numBins int) *Volume {
	v := NewVolume(numSweeps, numRays, numBins)
	for s := 0; s < numSweeps; s++ {
		v.Sweeps[s].Ok = true
		for r := 0; r < numRays; r++ {
			v.Rays[s][r].Ok = true
		}
	}
	return v
}

func TestFieldAlgebraSetConstant(t *testing.T) {
	v := okVolume(1, 2, 3)
	fa := NewFieldAlgebra(v)
	f, err := v.NewField("TEST", "test field", "none")
	if err != nil {
		t.Fatalf("NewField: %v", err)
	}
	if err := fa.SetConstant("TEST", 5); err != nil {
		t.Fatalf("SetConstant: %v", err)
	}
	for b := 0; b < 3; b++ {
		val, err := v.ValueAt(f, 0, 0, b)
		if err != nil || val != 5 {
			t.Fatalf("ValueAt(0,0,%d) = %v, %v; want 5, nil", b, val, err)
		}
	}
	if !v.Modified {
		t.Fatal("Modified not set after SetConstant")
	}
}

func TestFieldAlgebraNotEditableBuiltin(t *testing.T) {
	v := okVolume(1, 1, 1)
	dt, _ := LookupDataType("DB_DBZ")
	f, err := v.allocBuiltinField(dt)
	if err != nil {
		t.Fatalf("allocBuiltinField: %v", err)
	}
	if f.Editable() {
		t.Fatal("built-in U1 field reports Editable() = true")
	}
	fa := NewFieldAlgebra(v)
	if err := fa.SetConstant("DB_DBZ", 1); err == nil {
		t.Fatal("SetConstant on a built-in field succeeded; want BAD_ARG")
	} else if KindOf(err) != BadArg {
		t.Fatalf("SetConstant error kind = %v; want BAD_ARG", KindOf(err))
	}
}

func TestFieldAlgebraScalarOps(t *testing.T) {
	v := okVolume(1, 1, 1)
	fa := NewFieldAlgebra(v)
	f, _ := v.NewField("A", "", "")
	_ = fa.SetConstant("A", 10)
	if err := fa.AddVal("A", 5); err != nil {
		t.Fatalf("AddVal: %v", err)
	}
	val, _ := v.ValueAt(f, 0, 0, 0)
	if val != 15 {
		t.Fatalf("after AddVal(5), value = %v; want 15", val)
	}
	if err := fa.MulVal("A", 2); err != nil {
		t.Fatalf("MulVal: %v", err)
	}
	val, _ = v.ValueAt(f, 0, 0, 0)
	if val != 30 {
		t.Fatalf("after MulVal(2), value = %v; want 30", val)
	}
	if err := fa.DivVal("A", 0); err == nil {
		t.Fatal("DivVal(0) succeeded; want BAD_ARG division-by-zero error")
	}
}

func TestFieldAlgebraFieldCombineNegation(t *testing.T) {
	v := okVolume(1, 1, 1)
	fa := NewFieldAlgebra(v)
	a, _ := v.NewField("A", "", "")
	_, _ = v.NewField("B", "", "")
	_ = fa.SetConstant("A", 10)
	_ = fa.SetConstant("B", 3)
	if err := fa.AddField("A", "-B"); err != nil {
		t.Fatalf("AddField with negated operand: %v", err)
	}
	val, _ := v.ValueAt(a, 0, 0, 0)
	if val != 7 {
		t.Fatalf("A after AddField(A, -B) = %v; want 7 (10 - 3)", val)
	}
}

func TestFieldAlgebraLog10NonPositiveIsNaN(t *testing.T) {
	v := okVolume(1, 1, 1)
	fa := NewFieldAlgebra(v)
	f, _ := v.NewField("A", "", "")
	_ = fa.SetConstant("A", -1)
	if err := fa.Log10("A"); err != nil {
		t.Fatalf("Log10: %v", err)
	}
	val, _ := v.ValueAt(f, 0, 0, 0)
	if !math.IsNaN(val) {
		t.Fatalf("Log10(-1) = %v; want NaN", val)
	}
}

func TestFieldAlgebraShiftAzCanonicalizes(t *testing.T) {
	v := okVolume(1, 1, 1)
	v.Rays[0][0].Az0 = math.Pi - 0.1
	fa := NewFieldAlgebra(v)
	if err := fa.ShiftAz(0.5); err != nil {
		t.Fatalf("ShiftAz: %v", err)
	}
	got := v.Rays[0][0].Az0
	if got < -math.Pi || got > math.Pi {
		t.Fatalf("Az0 after ShiftAz = %v; out of [-pi, pi]", got)
	}
}

// TestFieldAlgebraSuggestion exercises the fuzzy "did you mean" path: a
// near-miss name on an installed field should surface that field's exact
// name in the error.
func TestFieldAlgebraSuggestion(t *testing.T) {
	v := okVolume(1, 1, 1)
	fa := NewFieldAlgebra(v)
	if _, err := v.NewField("REFLECTIVITY", "", ""); err != nil {
		t.Fatalf("NewField: %v", err)
	}
	err := fa.SetConstant("REFLECTIVTY", 1) // one dropped letter
	if err == nil {
		t.Fatal("SetConstant on an unknown field name succeeded")
	}
	if KindOf(err) != BadArg {
		t.Fatalf("error kind = %v; want BAD_ARG", KindOf(err))
	}
	ve, ok := err.(*VolError)
	if !ok {
		t.Fatalf("error is %T; want *VolError", err)
	}
	if !containsSubstring(ve.Msg, "REFLECTIVITY") {
		t.Fatalf("suggestion message %q does not name the close field REFLECTIVITY", ve.Msg)
	}
}

func TestFieldAlgebraSuggestionEmptyVolume(t *testing.T) {
	v := NewVolume(1, 1, 1)
	fa := NewFieldAlgebra(v)
	err := fa.SetConstant("ANYTHING", 1)
	if err == nil {
		t.Fatal("SetConstant on a field-less volume succeeded")
	}
}

func containsSubstring(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
