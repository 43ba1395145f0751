package dorade

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"

	wxvol "github.com/wxradar/wxvol"
)

const (
	tagCOMM = "COMM"
	tagSSWB = "SSWB"
	tagVOLD = "VOLD"
	tagRADD = "RADD"
	tagPARM = "PARM"
	tagCELV = "CELV"
	tagCSFD = "CSFD"
	tagCFAC = "CFAC"
	tagSWIB = "SWIB"
	tagASIB = "ASIB"
	tagRYIB = "RYIB"
	tagRDAT = "RDAT"
	tagSEDS = "SEDS"
	tagRKTB = "RKTB"
	tagNULL = "NULL"
)

// knownTags realises the 63-bucket perfect hash of spec §4.7 as a plain Go
// map, per the rewrite's design notes: "these become static lookup tables
// ... the size tuning ceases to matter."
var knownTags = map[string]bool{
	tagCOMM: true, tagSSWB: true, tagVOLD: true, tagRADD: true, tagPARM: true,
	tagCELV: true, tagCSFD: true, tagCFAC: true, tagSWIB: true, tagASIB: true,
	tagRYIB: true, tagRDAT: true, tagSEDS: true, tagRKTB: true, tagNULL: true,
}

type readState int

const (
	stateInit readState = iota
	stateAwaitingSensor
	stateInSweep
	stateDone
)

// Reader parses one DORADE sweep file (spec §4.7).
type Reader struct {
	s    wxvol.Stream
	swap bool

	sw    *Sweep
	state readState

	firstBlockSeen  bool
	curRay          int
	curParmIdx      int
	sswbCompression int32
}

// ReadSweep reads a complete DORADE sweep from s.
func ReadSweep(s wxvol.Stream) (*Sweep, error) {
	r := &Reader{s: s}
	return r.read()
}

func (r *Reader) read() (*Sweep, error) {
	r.sw = &Sweep{parmIndex: wxvol.NewHashTbl[*Parm](63)}
	for r.state != stateDone {
		tag, payload, err := r.readBlock()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if err := r.dispatch(tag, payload); err != nil {
			return nil, err
		}
	}
	return r.sw, nil
}

// readBlock reads one tag+length+payload triple, applying the swap
// auto-detect on the very first block (spec §4.7 "Byte order").
func (r *Reader) readBlock() (string, []byte, error) {
	hdr := make([]byte, 8)
	if _, err := io.ReadFull(r.s, hdr); err != nil {
		return "", nil, err
	}
	tag := string(hdr[0:4])

	length := decodeI32(hdr[4:8], r.swap)
	if !r.firstBlockSeen {
		r.firstBlockSeen = true
		if length < 0 {
			r.swap = !r.swap
			length = decodeI32(hdr[4:8], r.swap)
			if length < 0 {
				return "", nil, wxvol.NewErr(wxvol.BadFile, "negative DORADE block length after swap retry")
			}
		}
	}
	if length < 8 {
		return "", nil, wxvol.NewErr(wxvol.BadFile, "implausible DORADE block length %d", length)
	}
	payload := make([]byte, length-8)
	if _, err := io.ReadFull(r.s, payload); err != nil {
		return "", nil, wxvol.WrapErr(wxvol.IOFail, err, "reading %s payload", tag)
	}
	return tag, payload, nil
}

func decodeI32(b []byte, swap bool) int32 {
	if swap {
		return int32(binary.BigEndian.Uint32(b))
	}
	return int32(binary.LittleEndian.Uint32(b))
}

func (r *Reader) bsOver(payload []byte) *wxvol.ByteStream {
	bs := wxvol.NewByteStream(bytes.NewReader(payload))
	bs.SetSwap(r.swap)
	return bs
}

func (r *Reader) dispatch(tag string, payload []byte) error {
	if !knownTags[tag] {
		return nil // unknown tags are skipped by length
	}
	switch tag {
	case tagCOMM:
		r.sw.Comment = trimNulls(payload)
	case tagSSWB:
		return r.readSSWB(payload)
	case tagVOLD:
		return r.readVOLD(payload)
	case tagRADD:
		r.state = stateAwaitingSensor
		return r.readRADD(payload)
	case tagPARM:
		return r.readPARM(payload)
	case tagCELV:
		return r.readCELV(payload)
	case tagCSFD:
		return r.readCSFD(payload)
	case tagCFAC:
		return r.readCFAC(payload)
	case tagSWIB:
		r.state = stateInSweep
		return r.readSWIB(payload)
	case tagRYIB:
		return r.readRYIB(payload)
	case tagASIB:
		return r.readASIB(payload)
	case tagRDAT:
		return r.readRDAT(payload)
	case tagSEDS, tagRKTB:
		return nil // carried but not modelled by this rewrite
	case tagNULL:
		r.state = stateDone
	}
	return nil
}

func trimNulls(b []byte) string {
	i := bytes.IndexByte(b, 0)
	if i >= 0 {
		b = b[:i]
	}
	return string(bytes.TrimRight(b, " "))
}

func (r *Reader) readSSWB(payload []byte) error {
	bs := r.bsOver(payload)
	if _, err := bs.ReadBytes(4); err != nil {
		return err
	}
	startTime, _ := bs.ReadI32()
	if _, err := bs.ReadI32(); err != nil { // stop_time, unused
		return err
	}
	sizeofFile, _ := bs.ReadI32()
	compressionFlag, err := bs.ReadI32()
	if err != nil {
		return err
	}
	radarName, err := bs.ReadBytes(8)
	if err != nil {
		return err
	}
	r.sw.StartTime = float64(startTime)
	r.sw.FileSize = sizeofFile
	r.sswbCompression = compressionFlag
	if r.sw.SiteName == "" {
		r.sw.SiteName = trimNulls(radarName)
	}
	return nil
}

func (r *Reader) readVOLD(payload []byte) error {
	bs := r.bsOver(payload)
	if _, err := bs.ReadBytes(20); err != nil {
		return err
	}
	year, _ := bs.ReadI16()
	month, _ := bs.ReadI16()
	day, _ := bs.ReadI16()
	hour, _ := bs.ReadI16()
	min, _ := bs.ReadI16()
	sec, _ := bs.ReadI16()
	genYear, _ := bs.ReadI16()
	genMonth, _ := bs.ReadI16()
	genDay, err := bs.ReadI16()
	if err != nil {
		return err
	}
	r.sw.VoldYear, r.sw.VoldMonth, r.sw.VoldDay = int(year), int(month), int(day)
	r.sw.VoldHour, r.sw.VoldMin, r.sw.VoldSec = int(hour), int(min), int(sec)
	r.sw.VoldGenYear, r.sw.VoldGenMonth, r.sw.VoldGenDay = int(genYear), int(genMonth), int(genDay)
	return nil
}

func (r *Reader) readRADD(payload []byte) error {
	bs := r.bsOver(payload)
	name, err := bs.ReadBytes(8)
	if err != nil {
		return err
	}
	lat, _ := bs.ReadF32()
	lon, _ := bs.ReadF32()
	alt, _ := bs.ReadF32()
	peak, _ := bs.ReadF32()
	noise, _ := bs.ReadF32()
	hbw, _ := bs.ReadF32()
	vbw, _ := bs.ReadF32()
	nyq, _ := bs.ReadF32()
	unambig, _ := bs.ReadF32()
	scanMode, err := bs.ReadBytes(4)
	if err != nil {
		return err
	}
	r.sw.RadarName = trimNulls(name)
	r.sw.Latitude = float64(lat)
	r.sw.Longitude = float64(lon)
	r.sw.Altitude = float64(alt)
	r.sw.PeakPower = float64(peak)
	r.sw.NoisePower = float64(noise)
	r.sw.HorizBeamWidth = float64(hbw)
	r.sw.VertBeamWidth = float64(vbw)
	r.sw.NyquistVelocity = float64(nyq)
	r.sw.UnambiguousRange = float64(unambig)
	switch trimNulls(scanMode) {
	case string(ScanPPI):
		r.sw.ScanMode = ScanPPI
	case string(ScanRHI):
		r.sw.ScanMode = ScanRHI
	default:
		r.sw.ScanMode = ScanUnk
	}
	return nil
}

func (r *Reader) readPARM(payload []byte) error {
	if len(r.sw.Parms) >= 512 {
		return wxvol.NewErr(wxvol.BadFile, "DORADE sweep exceeds the maximum of 512 parameters")
	}
	bs := r.bsOver(payload)
	name, err := bs.ReadBytes(8)
	if err != nil {
		return err
	}
	descr, err := bs.ReadBytes(40)
	if err != nil {
		return err
	}
	unit, err := bs.ReadBytes(8)
	if err != nil {
		return err
	}
	formatRaw, _ := bs.ReadI16()
	scale, _ := bs.ReadF32()
	bias, _ := bs.ReadF32()
	badData, err := bs.ReadI32()
	if err != nil {
		return err
	}
	var format BinaryFormat
	switch formatRaw {
	case int16(DD16Bits):
		format = DD16Bits
	case int16(DD32BitFP):
		format = DD32BitFP
	default:
		return wxvol.NewErr(wxvol.BadFile, "unknown PARM binary_format %d", formatRaw)
	}
	p, err := r.sw.AddParm(trimNulls(name), trimNulls(descr), trimNulls(unit), format, float64(scale), float64(bias), badData)
	if err != nil {
		return err
	}
	_ = p
	return nil
}

func (r *Reader) readCELV(payload []byte) error {
	bs := r.bsOver(payload)
	numCells, err := bs.ReadI32()
	if err != nil {
		return err
	}
	r.sw.NumCells = int(numCells)
	r.sw.CellDistances = make([]float64, numCells)
	for i := range r.sw.CellDistances {
		d, err := bs.ReadF32()
		if err != nil {
			return err
		}
		r.sw.CellDistances[i] = float64(d)
	}
	r.resizeParms()
	return nil
}

func (r *Reader) readCSFD(payload []byte) error {
	bs := r.bsOver(payload)
	first, _ := bs.ReadF32()
	spacing, _ := bs.ReadF32()
	numCells, err := bs.ReadI32()
	if err != nil {
		return err
	}
	r.sw.NumCells = int(numCells)
	r.sw.CellDistances = make([]float64, numCells)
	for i := range r.sw.CellDistances {
		r.sw.CellDistances[i] = float64(first) + float64(i)*float64(spacing)
	}
	r.resizeParms()
	return nil
}

// resizeParms grows every already-installed parameter's data array to the
// sweep's current cell count, since CELV/CSFD may arrive after PARM.
func (r *Reader) resizeParms() {
	for _, p := range r.sw.Parms {
		if len(p.Data) < r.sw.NumRays*r.sw.NumCells {
			p.Data = make([]float32, r.sw.NumRays*r.sw.NumCells)
		}
	}
}

func (r *Reader) readCFAC(payload []byte) error {
	bs := r.bsOver(payload)
	v, err := bs.ReadF32()
	if err != nil {
		return err
	}
	r.sw.RotationAngle = float64(v)
	return nil
}

func (r *Reader) readSWIB(payload []byte) error {
	bs := r.bsOver(payload)
	if _, err := bs.ReadBytes(8); err != nil {
		return err
	}
	numRays, _ := bs.ReadI32()
	startAngle, _ := bs.ReadF32()
	stopAngle, _ := bs.ReadF32()
	fixedAngle, err := bs.ReadF32()
	if err != nil {
		return err
	}
	r.sw.NumRays = int(numRays)
	r.sw.StartAngle = float64(startAngle)
	r.sw.StopAngle = float64(stopAngle)
	r.sw.FixedAngle = float64(fixedAngle)
	r.sw.Rays = make([]RayHeader, numRays)
	r.resizeParms()
	r.curRay = -1
	return nil
}

func (r *Reader) readRYIB(payload []byte) error {
	bs := r.bsOver(payload)
	t, _ := bs.ReadF64()
	az, _ := bs.ReadF32()
	el, err := bs.ReadF32()
	if err != nil {
		return err
	}
	r.curRay++
	r.curParmIdx = 0
	if r.curRay < 0 || r.curRay >= len(r.sw.Rays) {
		return wxvol.NewErr(wxvol.BadFile, "RYIB ray index %d out of range", r.curRay)
	}
	r.sw.Rays[r.curRay].Ok = true
	r.sw.Rays[r.curRay].Time = t
	r.sw.Rays[r.curRay].Azimuth = float64(az)
	r.sw.Rays[r.curRay].Elevation = float64(el)
	return nil
}

func (r *Reader) readASIB(payload []byte) error {
	bs := r.bsOver(payload)
	lon, _ := bs.ReadF64()
	lat, _ := bs.ReadF64()
	alt, err := bs.ReadF64()
	if err != nil {
		return err
	}
	if r.curRay < 0 || r.curRay >= len(r.sw.Rays) {
		return wxvol.NewErr(wxvol.BadFile, "ASIB with no current ray")
	}
	r.sw.Rays[r.curRay].RadarLon = float64(lon)
	r.sw.Rays[r.curRay].RadarLat = float64(lat)
	r.sw.Rays[r.curRay].RadarAlt = float64(alt)
	return nil
}

func (r *Reader) readRDAT(payload []byte) error {
	if len(payload) < 8 {
		return wxvol.NewErr(wxvol.BadFile, "RDAT payload too short")
	}
	name := trimNulls(payload[:8])
	p, ok := r.sw.Parm(name)
	if !ok {
		return wxvol.NewErr(wxvol.BadFile, "RDAT names unknown parameter %q", name)
	}
	if r.curRay < 0 || r.curRay >= r.sw.NumRays {
		return wxvol.NewErr(wxvol.BadFile, "RDAT with no current ray")
	}
	samples := payload[8:]
	switch p.Format {
	case DD16Bits:
		if err := r.decode16(p, samples); err != nil {
			return err
		}
	case DD32BitFP:
		if err := r.decode32(p, samples); err != nil {
			return err
		}
	}
	r.curParmIdx++
	if r.curParmIdx >= len(r.sw.Parms) {
		r.curParmIdx = 0
	}
	return nil
}

// decode16 implements the DD_16_BITS RDAT path (spec §4.7): uncompressed
// when sswb's compression flag is 0, otherwise run-length coded.
func (r *Reader) decode16(p *Parm, samples []byte) error {
	base := r.curRay * r.sw.NumCells
	if r.sswbCompression == 0 {
		n := len(samples) / 2
		if n > r.sw.NumCells {
			n = r.sw.NumCells
		}
		for i := 0; i < n; i++ {
			v := decodeI16(samples[2*i:2*i+2], r.swap)
			r.sw.SetAt(p, r.curRay, i, decode16Sample(p, v))
		}
		return nil
	}
	cell := 0
	for off := 0; off+2 <= len(samples) && cell < r.sw.NumCells; {
		code := decodeU16(samples[off:off+2], r.swap)
		off += 2
		if code == 1 {
			break
		}
		if code&0x8000 != 0 {
			n := int(code & 0x7FFF)
			for i := 0; i < n && cell < r.sw.NumCells && off+2 <= len(samples); i++ {
				v := decodeI16(samples[off:off+2], r.swap)
				off += 2
				r.sw.SetAt(p, r.curRay, cell, decode16Sample(p, v))
				cell++
			}
		} else {
			n := int(code & 0x7FFF)
			for i := 0; i < n && cell < r.sw.NumCells; i++ {
				p.Data[base+cell] = float32(math.NaN())
				cell++
			}
		}
	}
	return nil
}

func decode16Sample(p *Parm, v int16) float64 {
	if int32(v) == p.BadData {
		return math.NaN()
	}
	return float64(v)/p.Scale - p.Bias
}

func (r *Reader) decode32(p *Parm, samples []byte) error {
	base := r.curRay * r.sw.NumCells
	if r.sswbCompression == 0 {
		n := len(samples) / 4
		if n > r.sw.NumCells {
			n = r.sw.NumCells
		}
		for i := 0; i < n; i++ {
			bits := decodeU32(samples[4*i:4*i+4], r.swap)
			p.Data[base+i] = math.Float32frombits(bits)
		}
		return nil
	}
	cell := 0
	for off := 0; off+4 <= len(samples) && cell < r.sw.NumCells; {
		code := decodeU32(samples[off:off+4], r.swap)
		off += 4
		if code == 1 {
			break
		}
		if code&0x80000000 != 0 {
			n := int(code &^ 0x80000000)
			for i := 0; i < n && cell < r.sw.NumCells && off+4 <= len(samples); i++ {
				bits := decodeU32(samples[off:off+4], r.swap)
				off += 4
				p.Data[base+cell] = math.Float32frombits(bits)
				cell++
			}
		} else {
			n := int(code)
			for i := 0; i < n && cell < r.sw.NumCells; i++ {
				p.Data[base+cell] = float32(math.NaN())
				cell++
			}
		}
	}
	return nil
}

func decodeI16(b []byte, swap bool) int16 {
	return int16(decodeU16(b, swap))
}

func decodeU16(b []byte, swap bool) uint16 {
	if swap {
		return binary.BigEndian.Uint16(b)
	}
	return binary.LittleEndian.Uint16(b)
}

func decodeU32(b []byte, swap bool) uint32 {
	if swap {
		return binary.BigEndian.Uint32(b)
	}
	return binary.LittleEndian.Uint32(b)
}
