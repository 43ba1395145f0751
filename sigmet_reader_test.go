package wxvol

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"
)

// sigmetFixture builds a minimal, byte-exact Sigmet volume stream: a
// product header record, an ingest header record (one present type,
// DB_DBT, 1 sweep of 2 rays x 2 bins), and a single data record carrying
// one complete ray followed by nothing - exercising both run-length
// decompression and truncation tolerance (spec §4.4, §8 properties 2/5).
func sigmetFixture() []byte {
	rec1 := make([]byte, sigmetRecordSize)
	rec1[0], rec1[1] = 27, 0 // magic word, native (little-endian) order

	rec2 := make([]byte, sigmetRecordSize)
	putU16 := func(b []byte, off int, v uint16) { binary.LittleEndian.PutUint16(b[off:], v) }
	putU32 := func(b []byte, off int, v uint32) { binary.LittleEndian.PutUint32(b[off:], v) }
	putF32 := func(b []byte, off int, v float32) {
		binary.LittleEndian.PutUint32(b[off:], math.Float32bits(v))
	}
	putU16(rec2, 40, 1) // num_sweeps
	putU16(rec2, 42, 2) // num_rays_per_sweep
	putU16(rec2, 44, 2) // num_output_bins
	putF32(rec2, 58, 1000)   // prf (unused by DB_DBT's conversion)
	putF32(rec2, 62, 0.1)    // wavelength
	putF32(rec2, 80, 1000)   // bin_step
	putU32(rec2, 84, 1<<1)   // mask_word_0: bit 1 = DB_DBT

	rec3 := make([]byte, sigmetRecordSize)
	putI32 := func(b []byte, off int, v int32) { binary.LittleEndian.PutUint32(b[off:], uint32(v)) }
	putI32(rec3, 0, 1) // rec_idx
	putI32(rec3, 4, 1) // sweep_num (first sweep)
	// ingest_data_header for the sole present type (DB_DBT), at [12:88);
	// only the first 26 bytes (through angle) are read.
	// time/angle fields default to zero, which is fine.

	// ray 0's DB_DBT payload stream starts at offset 88: a "good run" flag
	// word for 7 literal words (14 bytes: 12-byte ray header + 2 samples),
	// then the 7 literal words, then the terminator word (1).
	putU16(rec3, 88, 0x8000|7)
	// ray header: az0, tilt0, az1, tilt1, num_bins, time (all u16)
	putU16(rec3, 90, 0) // az0
	putU16(rec3, 92, 0) // tilt0
	putU16(rec3, 94, 0) // az1
	putU16(rec3, 96, 0) // tilt1
	putU16(rec3, 98, 2) // num_bins
	putU16(rec3, 100, 0) // time
	rec3[102] = 10       // bin 0 raw sample
	rec3[103] = 20       // bin 1 raw sample
	putU16(rec3, 104, 1) // terminator word ends ray 0's DB_DBT stream

	// everything from offset 106 onward stays zero; decodeRayPayload reads
	// these as harmless zero-length "bad runs" until it exhausts the
	// record, then hits a clean end of stream attempting ray 1 - this is
	// the truncation this test verifies tolerance for.

	var buf bytes.Buffer
	buf.Write(rec1)
	buf.Write(rec2)
	buf.Write(rec3)
	return buf.Bytes()
}

func TestReadSigmetVolumeRayDataSurvivesTruncation(t *testing.T) {
	vol, err := ReadSigmetVolume(bytes.NewReader(sigmetFixture()))
	if err != nil {
		t.Fatalf("ReadSigmetVolume: %v", err)
	}
	if !vol.Truncated {
		t.Fatal("Truncated = false; want true (stream ends mid-sweep)")
	}
	if vol.NumSweepsActual != 0 {
		t.Fatalf("NumSweepsActual = %d; want 0 (sweep 0 never completed all its rays)", vol.NumSweepsActual)
	}
	if vol.Sweeps[0].Ok {
		t.Fatal("Sweeps[0].Ok = true; sweep never finished its declared ray count")
	}
	ray := vol.Rays[0][0]
	if !ray.Ok {
		t.Fatal("Rays[0][0].Ok = false; the one fully-decoded ray should survive truncation")
	}
	if ray.NumBins != 2 {
		t.Fatalf("Rays[0][0].NumBins = %d; want 2", ray.NumBins)
	}

	f, ok := vol.Field("DB_DBT")
	if !ok {
		t.Fatal("DB_DBT field not installed")
	}
	v0, err := vol.ValueAt(f, 0, 0, 0)
	if err != nil || v0 != -27 {
		t.Fatalf("ValueAt(DB_DBT, 0,0,0) = %v, %v; want -27, nil", v0, err)
	}
	v1, err := vol.ValueAt(f, 0, 0, 1)
	if err != nil || v1 != -22 {
		t.Fatalf("ValueAt(DB_DBT, 0,0,1) = %v, %v; want -22, nil", v1, err)
	}
}

func TestReadSigmetVolumeBadMagicWord(t *testing.T) {
	buf := make([]byte, sigmetRecordSize)
	buf[0], buf[1] = 0xFF, 0xFF
	if _, err := ReadSigmetVolume(bytes.NewReader(buf)); err == nil {
		t.Fatal("ReadSigmetVolume with a bad magic word succeeded")
	} else if KindOf(err) != BadFile {
		t.Fatalf("error kind = %v; want BAD_FILE", KindOf(err))
	}
}
