package wxvol

import (
	"bytes"
	"io"

	"github.com/soniakeys/meeus/v3/julian"
)

const sigmetRecordSize = 6144

// presentType is one entry of the ingest header's enumerated data-type
// mask, in the per-record order ray payloads are packed in (spec §4.4
// step 2).
type presentType struct {
	dt    *DataType
	field *Field // nil for DB_XHDR
}

// SigmetReader parses a Sigmet/IRIS raw product volume from a Stream
// (spec §4.4).
type SigmetReader struct {
	s    Stream
	swap bool

	vol     *Volume
	present []presentType

	prevRecIdx int32
	curSweep   int32 // 1-based sweep number as carried on disk; 0 = none yet
}

// ReadSigmetVolume reads a complete (or truncation-tolerant partial)
// volume from s.
func ReadSigmetVolume(s Stream) (*Volume, error) {
	r := &SigmetReader{s: s}
	return r.read()
}

func (r *SigmetReader) read() (vol *Volume, err error) {
	defer func() {
		if err != nil {
			vol = nil
		}
	}()

	rec1, err := r.readFixedRecordProbingSwap()
	if err != nil {
		return nil, err
	}
	if err := r.parseProductHeader(rec1); err != nil {
		return nil, err
	}

	rec2, err := r.readRawRecord()
	if err != nil {
		return nil, wrapErr(IOFail, err, "reading ingest header record")
	}
	if err := r.parseIngestHeader(rec2); err != nil {
		return nil, err
	}

	r.vol.Rays = make([][]RayHeader, r.vol.NumSweepsDeclared)
	for s := range r.vol.Rays {
		r.vol.Rays[s] = make([]RayHeader, r.vol.NumRaysPerSweep)
	}
	r.vol.Sweeps = make([]SweepHeader, r.vol.NumSweepsDeclared)

	if err := r.readDataRecords(); err != nil {
		return nil, err
	}
	return r.vol, nil
}

// readFixedRecordProbingSwap implements the magic-word auto-detect of
// spec §3 / §4.4 step 1: try native order, then swapped, then fail.
func (r *SigmetReader) readFixedRecordProbingSwap() ([]byte, error) {
	buf, err := r.readRawRecord()
	if err != nil {
		return nil, wrapErr(IOFail, err, "reading product header record")
	}
	magic := uint16(buf[0]) | uint16(buf[1])<<8
	if magic == 27 {
		r.swap = false
		return buf, nil
	}
	swapped := uint16(buf[1]) | uint16(buf[0])<<8
	if swapped == 27 {
		r.swap = true
		return buf, nil
	}
	return nil, newErr(BadFile, "bad Sigmet magic word %#04x", magic)
}

func (r *SigmetReader) readRawRecord() ([]byte, error) {
	buf := make([]byte, sigmetRecordSize)
	n, err := io.ReadFull(r.s, buf)
	if err != nil {
		if n > 0 && (err == io.ErrUnexpectedEOF || err == io.EOF) {
			return buf[:n], errShortRecord
		}
		return nil, err
	}
	return buf, nil
}

// errShortRecord is a sentinel distinguishing "reached EOF mid-record"
// (truncation, handled by the caller) from a genuine I/O failure.
var errShortRecord = newErr(IOFail, "short record")

// fixed-width string field helper: trims trailing spaces/NULs (spec §4.4
// step 1: "trim trailing spaces from fixed-length character fields").
func trimFixed(b []byte) string {
	s := string(b)
	for len(s) > 0 && (s[len(s)-1] == ' ' || s[len(s)-1] == 0) {
		s = s[:len(s)-1]
	}
	return s
}

func (r *SigmetReader) bsOver(buf []byte) *ByteStream {
	bs := NewByteStream(bytes.NewReader(buf))
	bs.SetSwap(r.swap)
	return bs
}

// parseProductHeader extracts product_configuration and product_end from
// record 1. Layout is the rewrite's own internally-consistent arrangement
// of the fields spec §3/§6 name (no byte-for-byte IRIS manual offsets are
// reproduced here).
func (r *SigmetReader) parseProductHeader(buf []byte) error {
	bs := r.bsOver(buf)
	if _, err := bs.ReadBytes(12); err != nil { // structure_header + magic already consumed
		return err
	}
	productName, err := bs.ReadBytes(12)
	if err != nil {
		return err
	}
	taskName, err := bs.ReadBytes(12)
	if err != nil {
		return err
	}
	siteName, err := bs.ReadBytes(16)
	if err != nil {
		return err
	}
	genYear, _ := bs.ReadI16()
	genMonth, _ := bs.ReadI16()
	genDay, _ := bs.ReadI16()
	genHour, _ := bs.ReadI16()
	genMin, _ := bs.ReadI16()
	genSec, err := bs.ReadI16()
	if err != nil {
		return err
	}

	r.vol = &Volume{fields: NewHashTbl[*Field](128)}
	r.vol.Product.ProductConfiguration.ProductName = trimFixed(productName)
	r.vol.Product.ProductConfiguration.TaskName = trimFixed(taskName)
	r.vol.Product.ProductEnd.SiteName = trimFixed(siteName)
	r.vol.Product.ProductEnd.GenerationTime = calendarToJD(genYear, genMonth, genDay, genHour, genMin, genSec)
	return nil
}

func calendarToJD(year, month, day, hour, min, sec int16) float64 {
	dayFrac := float64(day) + (float64(hour)*3600+float64(min)*60+float64(sec))/86400
	return julian.CalendarGregorianToJD(int(year), int(month), dayFrac)
}

const twoPi = 2 * 3.14159265358979323846

func binaryAngleToRadians(raw uint16) float64 {
	return float64(raw) / 65536 * twoPi
}

// parseIngestHeader extracts ingest_configuration and task_configuration
// from record 2, then enumerates the present data types from
// task_dsp_info.curr_data_mask.mask_word_0 (spec §4.4 step 2).
func (r *SigmetReader) parseIngestHeader(buf []byte) error {
	bs := r.bsOver(buf)
	if _, err := bs.ReadBytes(12); err != nil {
		return err
	}
	siteName, err := bs.ReadBytes(16)
	if err != nil {
		return err
	}
	latRaw, _ := bs.ReadU32()
	lonRaw, _ := bs.ReadU32()
	groundHeight, _ := bs.ReadI16()
	radarHeight, _ := bs.ReadI16()
	numSweeps, _ := bs.ReadI16()
	numRays, _ := bs.ReadI16()
	numBins, _ := bs.ReadI16()

	schedStartYear, _ := bs.ReadI16()
	schedStartMonth, _ := bs.ReadI16()
	schedStartDay, _ := bs.ReadI16()
	schedStartHour, _ := bs.ReadI16()
	schedStartMin, _ := bs.ReadI16()
	schedStartSec, _ := bs.ReadI16()

	prfRaw, _ := bs.ReadF32()
	wavelengthRaw, _ := bs.ReadF32()
	multiPRFRaw, _ := bs.ReadI16()
	noisePower, _ := bs.ReadF32()
	peakPower, _ := bs.ReadF32()
	range1stBin, _ := bs.ReadF32()
	binStep, _ := bs.ReadF32()
	maskWord0, err := bs.ReadU32()
	if err != nil {
		return err
	}

	r.vol.Ingest.SiteName = trimFixed(siteName)
	r.vol.Ingest.Latitude = binaryAngleSigned(latRaw)
	r.vol.Ingest.Longitude = binaryAngleSigned(lonRaw)
	r.vol.Ingest.GroundHeight = float64(groundHeight)
	r.vol.Ingest.RadarHeight = float64(radarHeight)
	r.vol.Ingest.NumRaysPerSweep = int(numRays)
	r.vol.Ingest.TaskConfiguration.TaskSchedInfo.StartTime = calendarToJD(
		schedStartYear, schedStartMonth, schedStartDay, schedStartHour, schedStartMin, schedStartSec)
	r.vol.Ingest.TaskConfiguration.TaskDspInfo.PRF = float64(prfRaw)
	r.vol.Ingest.TaskConfiguration.TaskDspInfo.Wavelength = float64(wavelengthRaw)
	r.vol.Ingest.TaskConfiguration.TaskDspInfo.MultiPRFMode = MultiPRFMode(multiPRFRaw)
	r.vol.Ingest.TaskConfiguration.TaskCalibInfo.NoisePower = float64(noisePower)
	r.vol.Ingest.TaskConfiguration.TaskCalibInfo.PeakPower = float64(peakPower)
	r.vol.Ingest.TaskConfiguration.TaskRangeInfo.Range1stBin = float64(range1stBin)
	r.vol.Ingest.TaskConfiguration.TaskRangeInfo.BinStep = float64(binStep)
	r.vol.Ingest.TaskConfiguration.TaskDspInfo.CurrDataMask.MaskWord0 = maskWord0

	r.vol.NumSweepsDeclared = int(numSweeps)
	r.vol.NumRaysPerSweep = int(numRays)
	r.vol.NumOutputBins = int(numBins)

	return r.enumeratePresentTypes(maskWord0)
}

// binaryAngleSigned maps a 32-bit binary angle (full range one turn) to a
// signed radian value in (-pi, pi], used for latitude and longitude.
func binaryAngleSigned(raw uint32) float64 {
	a := float64(raw) / 4294967296 * twoPi
	return LonInDomain(a, 0)
}

func (r *SigmetReader) enumeratePresentTypes(mask uint32) error {
	bitToIndex := func() []struct{ bit, idx int } {
		m := make([]struct{ bit, idx int }, 0, numBuiltinTypes)
		for bit, idx := 0, 0; bit <= 5; bit, idx = bit+1, idx+1 {
			m = append(m, struct{ bit, idx int }{bit, idx})
		}
		m = append(m, struct{ bit, idx int }{7, 6})
		for bit, idx := 8, 7; bit <= 28; bit, idx = bit+1, idx+1 {
			m = append(m, struct{ bit, idx int }{bit, idx})
		}
		return m
	}()

	for _, e := range bitToIndex {
		if mask&(1<<uint(e.bit)) == 0 {
			continue
		}
		dt, ok := DataTypeByIndex(e.idx)
		if !ok {
			continue
		}
		if e.idx == DBXHDR {
			r.vol.XHdrPresent = true
			r.present = append(r.present, presentType{dt: dt})
			continue
		}
		f, err := r.vol.allocBuiltinField(dt)
		if err != nil {
			return err
		}
		r.present = append(r.present, presentType{dt: dt, field: f})
	}
	return nil
}

// dataRecordCursor is the live position within the data-record stream:
// the currently loaded 6144-byte record and an offset into it.
type dataRecordCursor struct {
	buf []byte
	pos int
}

func (r *SigmetReader) readDataRecords() error {
	cur := &dataRecordCursor{}
	ray := 0

	for {
		sweepIdx, ok, err := r.advanceToRay(cur)
		if err != nil {
			if err == errTerminate {
				break
			}
			return err
		}
		if !ok {
			break
		}
		if ray >= r.vol.NumRaysPerSweep {
			ray = 0
		}
		for _, pt := range r.present {
			payload, err := r.decodeRayPayload(cur)
			if err != nil {
				if err == errTerminate {
					r.finishTruncated(sweepIdx)
					return nil
				}
				return err
			}
			r.storeRayPayload(sweepIdx, ray, pt, payload)
		}
		ray++
		if ray >= r.vol.NumRaysPerSweep {
			r.vol.Sweeps[sweepIdx].Ok = true
			ray = 0
		}
	}
	r.finishTruncated(int(r.curSweep) - 1)
	return nil
}

var errTerminate = newErr(OK, "clean termination")

// finishTruncated records how many sweeps completed cleanly: the leading
// run of ok sweeps. The volume is flagged truncated when that count falls
// short of the declared sweep count.
func (r *SigmetReader) finishTruncated(_ int) {
	actual := 0
	for actual < len(r.vol.Sweeps) && r.vol.Sweeps[actual].Ok {
		actual++
	}
	if actual > r.vol.NumSweepsDeclared {
		actual = r.vol.NumSweepsDeclared
	}
	r.vol.NumSweepsActual = actual
	if actual < r.vol.NumSweepsDeclared {
		r.vol.Truncated = true
	}
}

// advanceToRay ensures cur has at least one more record available
// (reading the first data record lazily), reports the 0-based sweep
// index the cursor is now positioned in, or ok=false at clean end of
// data (sweep number 0).
func (r *SigmetReader) advanceToRay(cur *dataRecordCursor) (sweepIdx int, ok bool, err error) {
	if cur.buf == nil || cur.pos >= sigmetRecordSize {
		if err := r.loadNextRecord(cur); err != nil {
			return 0, false, err
		}
	}
	if r.curSweep == 0 {
		return 0, false, nil
	}
	return int(r.curSweep) - 1, true, nil
}

// loadNextRecord reads the next 6144-byte data record, validates its
// raw_prod_bhdr, and if it opens a new sweep, parses the N
// ingest_data_header substructures that follow (spec §4.4 steps 4/6).
func (r *SigmetReader) loadNextRecord(cur *dataRecordCursor) error {
	buf, err := r.readRawRecord()
	if err == errShortRecord || err == io.EOF {
		return errTerminate
	}
	if err != nil {
		return wrapErr(IOFail, err, "reading data record")
	}

	bs := r.bsOver(buf)
	recIdx, _ := bs.ReadI32()
	sweepNum, err := bs.ReadI32()
	if err != nil {
		return err
	}
	_, _ = bs.ReadI32() // reserved

	if recIdx != r.prevRecIdx+1 {
		if r.vol.NumSweepsActual > 0 || r.curSweep > 1 {
			return errTerminate
		}
		return newErr(BadFile, "data record index %d out of sequence (want %d)", recIdx, r.prevRecIdx+1)
	}
	r.prevRecIdx = recIdx

	cur.buf = buf
	cur.pos = 12

	if sweepNum == 0 {
		r.curSweep = 0
		return nil
	}
	if sweepNum == r.curSweep {
		return nil // continuation of the current sweep
	}
	if sweepNum != r.curSweep+1 {
		return errTerminate // out-of-sequence sweep number: clean stop
	}
	r.curSweep = sweepNum
	return r.parseSweepStart(cur)
}

// parseSweepStart consumes the N ingest_data_header (76-byte) substructures
// opening a new sweep and extracts sweep time/angle from the first one.
func (r *SigmetReader) parseSweepStart(cur *dataRecordCursor) error {
	sweepIdx := int(r.curSweep) - 1
	if sweepIdx < 0 || sweepIdx >= len(r.vol.Sweeps) {
		return newErr(BadFile, "sweep number %d out of declared range", r.curSweep)
	}
	for i := 0; i < len(r.present); i++ {
		if cur.pos+76 > len(cur.buf) {
			return newErr(BadFile, "ingest_data_header crosses record boundary")
		}
		hdr := cur.buf[cur.pos : cur.pos+76]
		cur.pos += 76
		if i == 0 {
			bs := r.bsOver(hdr)
			if _, err := bs.ReadBytes(12); err != nil {
				return err
			}
			year, _ := bs.ReadI16()
			month, _ := bs.ReadI16()
			day, _ := bs.ReadI16()
			hour, _ := bs.ReadI16()
			min, _ := bs.ReadI16()
			sec, _ := bs.ReadI16()
			angleRaw, err := bs.ReadU16()
			if err != nil {
				return err
			}
			r.vol.Sweeps[sweepIdx].Time = calendarToJD(year, month, day, hour, min, sec)
			r.vol.Sweeps[sweepIdx].Angle = LonInDomain(binaryAngleToRadians(angleRaw), 0)
		}
	}
	return nil
}

// decodeRayPayload reads one field slot's run-length-compressed stream,
// returning the decompressed raw bytes (ray header + samples), advancing
// across record boundaries as needed (spec §4.4 step 5).
func (r *SigmetReader) decodeRayPayload(cur *dataRecordCursor) ([]byte, error) {
	var out []byte
	for {
		w, err := r.nextWord(cur)
		if err != nil {
			return nil, err
		}
		if w == 1 {
			return out, nil
		}
		if w&0x8000 == 0x8000 {
			n := int(w & 0x7FFF)
			for i := 0; i < n; i++ {
				word, err := r.nextWord(cur)
				if err != nil {
					return nil, err
				}
				out = append(out, byte(word), byte(word>>8))
			}
		} else {
			n := int(w & 0x7FFF)
			out = append(out, make([]byte, n*2)...)
		}
	}
}

// nextWord reads one little/big-endian 16-bit word from cur, transparently
// loading the next data record when cur is exhausted.
func (r *SigmetReader) nextWord(cur *dataRecordCursor) (uint16, error) {
	if cur.pos+2 > len(cur.buf) {
		if err := r.loadNextRecord(cur); err != nil {
			return 0, err
		}
	}
	b0, b1 := cur.buf[cur.pos], cur.buf[cur.pos+1]
	cur.pos += 2
	if r.swap {
		return uint16(b0)<<8 | uint16(b1), nil
	}
	return uint16(b1)<<8 | uint16(b0), nil
}

// storeRayPayload splits a decoded ray payload into its 12-byte ray
// header and per-bin samples, installing both into the volume.
func (r *SigmetReader) storeRayPayload(sweepIdx, ray int, pt presentType, payload []byte) {
	if len(payload) < 12 {
		return
	}
	// decodeRayPayload already resolved each word through r.swap and
	// re-packed it little-endian (byte(word), byte(word>>8)); reading the
	// header back out must not apply the swap a second time.
	bs := NewByteStream(bytes.NewReader(payload[:12]))
	az0Raw, _ := bs.ReadU16()
	tilt0Raw, _ := bs.ReadU16()
	az1Raw, _ := bs.ReadU16()
	tilt1Raw, _ := bs.ReadU16()
	numBinsRaw, _ := bs.ReadU16()
	timeRaw, _ := bs.ReadU16()

	numBins := int(numBinsRaw)
	if numBins > r.vol.NumOutputBins {
		numBins = r.vol.NumOutputBins
	}

	rh := RayHeader{
		Ok:      numBinsRaw > 0,
		Time:    float64(timeRaw) / 100,
		NumBins: numBins,
		Az0:     canonicalAz(binaryAngleToRadians(az0Raw)),
		Az1:     canonicalAz(binaryAngleToRadians(az1Raw)),
		Tilt0:   LatInDomain(binaryAngleToRadians(tilt0Raw)),
		Tilt1:   LatInDomain(binaryAngleToRadians(tilt1Raw)),
	}
	r.vol.Rays[sweepIdx][ray] = rh

	if pt.field == nil {
		return // DB_XHDR: no data array
	}
	samples := payload[12:]
	width := pt.dt.Stor.BytesPerBin()
	if width == 0 {
		return
	}
	for b := 0; b < numBins && (b+1)*width <= len(samples); b++ {
		i := r.vol.idx(sweepIdx, ray, b)
		switch width {
		case 1:
			pt.field.U1[i] = samples[b]
		case 2:
			pt.field.U2[i] = uint16(samples[2*b]) | uint16(samples[2*b+1])<<8
		}
	}
}
