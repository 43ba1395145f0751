package wxvol

import (
	"math"
	"testing"
)

// TestDataTypeRegistryTotality checks every built-in index resolves to a
// distinct, lookup-consistent DataType (spec §4.2 data type registry).
func TestDataTypeRegistryTotality(t *testing.T) {
	abbrvs := RegisteredAbbrvs()
	if len(abbrvs) != numBuiltinTypes {
		t.Fatalf("RegisteredAbbrvs() returned %d entries; want %d", len(abbrvs), numBuiltinTypes)
	}
	seen := make(map[string]bool, numBuiltinTypes)
	for i := 0; i < numBuiltinTypes; i++ {
		dt, ok := DataTypeByIndex(i)
		if !ok {
			t.Fatalf("DataTypeByIndex(%d) = false; every index in range must resolve", i)
		}
		if dt.Abbrv == "" {
			t.Fatalf("DataTypeByIndex(%d) has an empty abbreviation", i)
		}
		if seen[dt.Abbrv] {
			t.Fatalf("abbreviation %q appears at more than one index", dt.Abbrv)
		}
		seen[dt.Abbrv] = true

		byName, ok := LookupDataType(dt.Abbrv)
		if !ok || byName != dt {
			t.Fatalf("LookupDataType(%q) did not resolve back to the same *DataType", dt.Abbrv)
		}
	}
	if _, ok := DataTypeByIndex(-1); ok {
		t.Fatal("DataTypeByIndex(-1) = true; want false")
	}
	if _, ok := DataTypeByIndex(numBuiltinTypes); ok {
		t.Fatal("DataTypeByIndex(numBuiltinTypes) = true; want false")
	}
	if _, ok := LookupDataType("DB_NOT_A_TYPE"); ok {
		t.Fatal("LookupDataType of an unknown abbreviation = true; want false")
	}
}

func TestStdDBClampsAndFlagsZeroAsMissing(t *testing.T) {
	if v := stdDB(0, nil); !math.IsNaN(v) {
		t.Fatalf("stdDB(0) = %v; want NaN (0 is the missing-data sentinel)", v)
	}
	if v := stdDB(64, nil); v != 0 {
		t.Fatalf("stdDB(64) = %v; want 0", v)
	}
	if v := stdDB(255, nil); v != 95.5 {
		t.Fatalf("stdDB(255) = %v; want 95.5 (clamped)", v)
	}
}

func TestStdKDPThreeBranches(t *testing.T) {
	ctx := &ConvCtx{Lambda: 0.1}
	if v := stdKDP(128, ctx); v != 0 {
		t.Fatalf("stdKDP(128) = %v; want 0", v)
	}
	got := stdKDP(129, ctx)
	want := 0.25 * math.Pow(600, (129-129)/126.0) / ctx.Lambda
	if got != want {
		t.Fatalf("stdKDP(129) = %v; want %v", got, want)
	}
	got = stdKDP(127, ctx)
	want = -0.25 * math.Pow(600, (127-127)/126.0) / ctx.Lambda
	if got != want {
		t.Fatalf("stdKDP(127) = %v; want %v", got, want)
	}
	// the two branches around the center must be antisymmetric in sign.
	if stdKDP(200, ctx) <= 0 {
		t.Fatalf("stdKDP(200) = %v; want > 0 (v > 128 branch)", stdKDP(200, ctx))
	}
	if stdKDP(50, ctx) >= 0 {
		t.Fatalf("stdKDP(50) = %v; want < 0 (v < 128 branch)", stdKDP(50, ctx))
	}
}

func TestStdRainRate2ExponentMantissa(t *testing.T) {
	if v := stdRainRate2Helper(0); v != -0.0001 {
		t.Fatalf("stdRAINRATE2(0) = %v; want -0.0001 (e=0, m=0)", v)
	}
	// e=1, m=0 -> 0x1000<<0 - 1 = 0x1000-1 = 4095, *0.0001
	raw := uint32(1<<12 | 0)
	got := stdRAINRATE2(float64(raw), nil)
	want := 0.0001 * float64((int64(0x1000)<<0)-1)
	if got != want {
		t.Fatalf("stdRAINRATE2(e=1,m=0) = %v; want %v", got, want)
	}
}

func stdRainRate2Helper(raw uint32) float64 { return stdRAINRATE2(float64(raw), nil) }

func TestStdVelNyquistScaling(t *testing.T) {
	ctx := &ConvCtx{VNyquist: 10}
	if v := stdVEL(128, ctx); v != 0 {
		t.Fatalf("stdVEL(128) = %v; want 0 (center bin)", v)
	}
	if v := stdVEL(0, ctx); !math.IsNaN(v) {
		t.Fatalf("stdVEL(0) = %v; want NaN (missing)", v)
	}
	if v := stdVEL(255, ctx); math.Abs(v-ctx.VNyquist*127/127) > 1e-9 {
		t.Fatalf("stdVEL(255) = %v; want ~VNyquist", v)
	}
}
