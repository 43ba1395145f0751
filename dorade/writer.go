package dorade

import (
	"encoding/binary"
	"io"
	"math"

	wxvol "github.com/wxradar/wxvol"
)

const (
	lenCOMM = 508
	lenSSWB = 196
	lenVOLD = 72
	lenRADD = 300
	lenPARM = 216
	lenCSFD = 64
	lenCFAC = 32 // not size-tabulated by the format; the rewrite fixes it here
	lenSWIB = 40
	lenASIB = 80
	lenRYIB = 44
	lenNULL = 8

	sswbFileSizeOffset = lenCOMM + 20 // spec §4.8: "SSWB + 20 bytes"
)

// Writer emits a DORADE sweep, always uncompressed (spec §4.8).
type Writer struct {
	w   io.WriteSeeker
	pos int64
}

// WriteSweep serialises sw to w in the fixed block order of spec §4.8,
// then patches the SSWB file-size field.
func WriteSweep(w io.WriteSeeker, sw *Sweep) error {
	wr := &Writer{w: w}
	if err := wr.write(sw); err != nil {
		return err
	}
	return wr.patchFileSize()
}

func (wr *Writer) write(sw *Sweep) error {
	if err := wr.writeCOMM(sw); err != nil {
		return err
	}
	if err := wr.writeSSWB(sw); err != nil {
		return err
	}
	if err := wr.writeVOLD(sw); err != nil {
		return err
	}
	if err := wr.writeRADD(sw); err != nil {
		return err
	}
	for _, p := range sw.Parms {
		if err := wr.writePARM(p); err != nil {
			return err
		}
	}
	if err := wr.writeCELV(sw); err != nil {
		return err
	}
	if err := wr.writeCFAC(sw); err != nil {
		return err
	}
	if err := wr.writeSWIB(sw); err != nil {
		return err
	}
	for ray := 0; ray < sw.NumRays; ray++ {
		if !sw.Rays[ray].Ok {
			continue
		}
		if err := wr.writeRYIB(sw, ray); err != nil {
			return err
		}
		if err := wr.writeASIB(sw, ray); err != nil {
			return err
		}
		for _, p := range sw.Parms {
			if err := wr.writeRDAT(sw, p, ray); err != nil {
				return err
			}
		}
	}
	return wr.writeNULL()
}

func (wr *Writer) block(tag string, length int32, payload []byte) error {
	buf := make([]byte, 8+len(payload))
	copy(buf[0:4], tag)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(length))
	copy(buf[8:], payload)
	n, err := wr.w.Write(buf)
	if err != nil {
		return wxvol.WrapErr(wxvol.IOFail, err, "writing %s block", tag)
	}
	wr.pos += int64(n)
	return nil
}

func padded(body []byte, total int) []byte {
	out := make([]byte, total)
	copy(out, body)
	return out
}

func putStr(buf []byte, off int, s string) {
	copy(buf[off:], s)
}

func (wr *Writer) writeCOMM(sw *Sweep) error {
	body := []byte(sw.Comment)
	return wr.block(tagCOMM, lenCOMM, padded(body, lenCOMM-8))
}

func (wr *Writer) writeSSWB(sw *Sweep) error {
	p := make([]byte, lenSSWB-8)
	binary.LittleEndian.PutUint32(p[4:8], uint32(int32(sw.StartTime)))
	binary.LittleEndian.PutUint32(p[8:12], uint32(int32(sw.StartTime)))
	// bytes [12:16] are sizeof_file, patched after the full file is written.
	// bytes [16:20] are compression_flag; 0, since output is always uncompressed.
	putStr(p, 20, sw.SiteName)
	return wr.block(tagSSWB, lenSSWB, p)
}

func (wr *Writer) writeVOLD(sw *Sweep) error {
	p := make([]byte, lenVOLD-8)
	putI16 := func(off int, v int) { binary.LittleEndian.PutUint16(p[off:], uint16(int16(v))) }
	putI16(20, sw.VoldYear)
	putI16(22, sw.VoldMonth)
	putI16(24, sw.VoldDay)
	putI16(26, sw.VoldHour)
	putI16(28, sw.VoldMin)
	putI16(30, sw.VoldSec)
	putI16(32, sw.VoldGenYear)
	putI16(34, sw.VoldGenMonth)
	putI16(36, sw.VoldGenDay)
	return wr.block(tagVOLD, lenVOLD, p)
}

func putF32(buf []byte, off int, v float64) {
	binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(float32(v)))
}

func (wr *Writer) writeRADD(sw *Sweep) error {
	p := make([]byte, lenRADD-8)
	putStr(p, 0, sw.RadarName)
	putF32(p, 8, sw.Latitude)
	putF32(p, 12, sw.Longitude)
	putF32(p, 16, sw.Altitude)
	putF32(p, 20, sw.PeakPower)
	putF32(p, 24, sw.NoisePower)
	putF32(p, 28, sw.HorizBeamWidth)
	putF32(p, 32, sw.VertBeamWidth)
	putF32(p, 36, sw.NyquistVelocity)
	putF32(p, 40, sw.UnambiguousRange)
	mode := string(sw.ScanMode)
	if mode == "" {
		mode = string(ScanUnk)
	}
	putStr(p, 44, mode)
	return wr.block(tagRADD, lenRADD, p)
}

func (wr *Writer) writePARM(parm *Parm) error {
	p := make([]byte, lenPARM-8)
	putStr(p, 0, parm.Name)
	putStr(p, 8, parm.Description)
	putStr(p, 48, parm.Unit)
	binary.LittleEndian.PutUint16(p[56:], uint16(int16(parm.Format)))
	putF32(p, 58, parm.Scale)
	putF32(p, 62, parm.Bias)
	binary.LittleEndian.PutUint32(p[66:], uint32(parm.BadData))
	return wr.block(tagPARM, lenPARM, p)
}

func (wr *Writer) writeCELV(sw *Sweep) error {
	total := 12 + 4*sw.NumCells
	p := make([]byte, total-8)
	binary.LittleEndian.PutUint32(p[0:4], uint32(sw.NumCells))
	for i, d := range sw.CellDistances {
		putF32(p, 4+4*i, d)
	}
	return wr.block(tagCELV, int32(total), p)
}

func (wr *Writer) writeCFAC(sw *Sweep) error {
	p := make([]byte, lenCFAC-8)
	putF32(p, 0, sw.RotationAngle)
	return wr.block(tagCFAC, lenCFAC, p)
}

func (wr *Writer) writeSWIB(sw *Sweep) error {
	p := make([]byte, lenSWIB-8)
	binary.LittleEndian.PutUint32(p[8:12], uint32(sw.NumRays))
	putF32(p, 12, sw.StartAngle)
	putF32(p, 16, sw.StopAngle)
	putF32(p, 20, sw.FixedAngle)
	return wr.block(tagSWIB, lenSWIB, p)
}

func (wr *Writer) writeRYIB(sw *Sweep, ray int) error {
	r := sw.Rays[ray]
	p := make([]byte, lenRYIB-8)
	binary.LittleEndian.PutUint64(p[0:8], math.Float64bits(r.Time))
	putF32(p, 8, r.Azimuth)
	putF32(p, 12, r.Elevation)
	return wr.block(tagRYIB, lenRYIB, p)
}

func (wr *Writer) writeASIB(sw *Sweep, ray int) error {
	r := sw.Rays[ray]
	p := make([]byte, lenASIB-8)
	binary.LittleEndian.PutUint64(p[0:8], math.Float64bits(r.RadarLon))
	binary.LittleEndian.PutUint64(p[8:16], math.Float64bits(r.RadarLat))
	binary.LittleEndian.PutUint64(p[16:24], math.Float64bits(r.RadarAlt))
	return wr.block(tagASIB, lenASIB, p)
}

func roundUpEven(n int) int {
	if n%2 != 0 {
		return n + 1
	}
	return n
}

// writeRDAT emits one parameter's samples for one ray, uncompressed
// (spec §4.8). DD_16_BITS packs int16(round(scale*(value+bias))), NaN ->
// bad_data; DD_32BIT_FP packs the raw float32 bits the decoder's
// uncompressed path reads back with Float32frombits, no scale/bias.
func (wr *Writer) writeRDAT(sw *Sweep, p *Parm, ray int) error {
	if p.Format == DD32BitFP {
		return wr.writeRDAT32(sw, p, ray)
	}
	nc := roundUpEven(sw.NumCells)
	total := 16 + 2*nc
	body := make([]byte, total-8)
	putStr(body, 0, p.Name)
	for i := 0; i < sw.NumCells; i++ {
		v := sw.At(p, ray, i)
		var sample int16
		if math.IsNaN(v) {
			sample = int16(p.BadData)
		} else {
			sample = int16(math.Round(p.Scale * (v + p.Bias)))
		}
		binary.LittleEndian.PutUint16(body[8+2*i:], uint16(sample))
	}
	return wr.block(tagRDAT, int32(total), body)
}

func (wr *Writer) writeRDAT32(sw *Sweep, p *Parm, ray int) error {
	total := 16 + 4*sw.NumCells
	body := make([]byte, total-8)
	putStr(body, 0, p.Name)
	for i := 0; i < sw.NumCells; i++ {
		v := sw.At(p, ray, i)
		binary.LittleEndian.PutUint32(body[8+4*i:], math.Float32bits(float32(v)))
	}
	return wr.block(tagRDAT, int32(total), body)
}

func (wr *Writer) writeNULL() error {
	return wr.block(tagNULL, lenNULL, nil)
}

// patchFileSize seeks to offset 528 (SSWB + 20 bytes) and writes the
// final file size (spec §4.8).
func (wr *Writer) patchFileSize() error {
	size := wr.pos
	if _, err := wr.w.Seek(sswbFileSizeOffset, io.SeekStart); err != nil {
		return wxvol.WrapErr(wxvol.IOFail, err, "seeking to patch SSWB file size")
	}
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, uint32(size))
	if _, err := wr.w.Write(buf); err != nil {
		return wxvol.WrapErr(wxvol.IOFail, err, "patching SSWB file size")
	}
	_, err := wr.w.Seek(0, io.SeekEnd)
	return err
}
