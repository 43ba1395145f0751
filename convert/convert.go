// Package convert implements the Sigmet-to-DORADE sweep translation
// (spec §4.9), the only cross-format path in the system.
package convert

import (
	"fmt"
	"math"

	"github.com/soniakeys/meeus/v3/julian"

	wxvol "github.com/wxradar/wxvol"
	"github.com/wxradar/wxvol/dorade"
)

// speedOfLight is c in m/s, used for the unambiguous-range formula.
const speedOfLight = 299792458.0

// julianUnixEpoch is the Julian day number of 1970-01-01T00:00:00Z.
const julianUnixEpoch = 2440587.5

func julianToUnix(jd float64) float64 {
	return (jd - julianUnixEpoch) * 86400
}

func jdToCalendar(jd float64) (year, month, day, hour, min, sec int) {
	y, m, dFrac := julian.JDToCalendar(jd)
	d := int(dFrac)
	frac := dFrac - float64(d)
	totalSec := int(math.Round(frac * 86400))
	return y, m, d, totalSec / 3600, (totalSec % 3600) / 60, totalSec % 60
}

// doradeUnit maps a Sigmet data type to its DORADE PARM unit string
// (spec §4.9): "dB", "m/s", "degrees", "mm/hr" or "No unit".
func doradeUnit(abbrv string) string {
	switch abbrv {
	case "DB_DBT", "DB_DBT2", "DB_DBZ", "DB_DBZ2", "DB_DBZC", "DB_DBZC2", "DB_ZDR", "DB_ZDR2":
		return "dB"
	case "DB_VEL", "DB_VEL2", "DB_VELC", "DB_VELC2", "DB_WIDTH", "DB_WIDTH2":
		return "m/s"
	case "DB_PHIDP", "DB_PHIDP2", "DB_KDP", "DB_KDP2":
		return "degrees"
	case "DB_RAINRATE2":
		return "mm/hr"
	default:
		return "No unit"
	}
}

const badData16 = -32768 // SHRT_MIN

// SigmetToDorade translates sweep sweepIdx of vol into a freshly allocated
// DORADE sweep (spec §4.9).
func SigmetToDorade(vol *wxvol.Volume, sweepIdx int) (*dorade.Sweep, error) {
	if sweepIdx < 0 || sweepIdx >= len(vol.Sweeps) {
		return nil, wxvol.NewErr(wxvol.RngErr, "sweep index %d out of range", sweepIdx)
	}
	if !vol.Sweeps[sweepIdx].Ok {
		return nil, wxvol.NewErr(wxvol.BadVol, "sweep %d is not ok", sweepIdx)
	}

	numRays := vol.NumRaysPerSweep
	numCells := vol.NumOutputBins
	sw := dorade.NewSweep(numRays, numCells)

	sw.Comment = fmt.Sprintf("derived from Sigmet volume %s, sweep %d",
		vol.Product.ProductConfiguration.TaskName, sweepIdx)

	sweepTime := vol.Sweeps[sweepIdx].Time
	sw.SiteName = vol.Ingest.SiteName
	sw.StartTime = julianToUnix(sweepTime)

	y, m, d, hh, mm, ss := jdToCalendar(sweepTime)
	sw.VoldYear, sw.VoldMonth, sw.VoldDay = y, m, d
	sw.VoldHour, sw.VoldMin, sw.VoldSec = hh, mm, ss
	gy, gm, gd, _, _, _ := jdToCalendar(vol.Product.ProductEnd.GenerationTime)
	sw.VoldGenYear, sw.VoldGenMonth, sw.VoldGenDay = gy, gm, gd

	dsp := vol.Ingest.TaskConfiguration.TaskDspInfo
	calib := vol.Ingest.TaskConfiguration.TaskCalibInfo
	sw.RadarName = vol.Ingest.SiteName
	sw.PeakPower = calib.PeakPower
	sw.NoisePower = calib.NoisePower
	sw.NyquistVelocity = dsp.MultiPRFMode.NyquistVelocity(dsp.Wavelength, dsp.PRF)
	if dsp.PRF != 0 {
		sw.UnambiguousRange = 0.5 * speedOfLight / dsp.PRF
	}
	sw.Longitude = vol.Ingest.Longitude * 180 / math.Pi
	sw.Latitude = vol.Ingest.Latitude * 180 / math.Pi
	sw.Altitude = vol.Ingest.GroundHeight + vol.Ingest.RadarHeight
	sw.ScanMode = detectScanMode(vol, sweepIdx)

	ri := vol.Ingest.TaskConfiguration.TaskRangeInfo
	for b := 0; b < numCells; b++ {
		sw.CellDistances[b] = ri.Range1stBin + float64(b)*ri.BinStep
	}

	builtinParms := map[string]*dorade.Parm{}
	var haveDBZ bool
	for _, name := range vol.FieldNames() {
		f, _ := vol.Field(name)
		if f.DT == nil {
			continue // user-created float field: not a Sigmet built-in type
		}
		if f.DT.Abbrv == "DB_DBZ" || f.DT.Abbrv == "DB_DBZ2" {
			haveDBZ = true
		}
		parm, err := sw.AddParm(f.DT.Abbrv, f.DT.Descr, doradeUnit(f.DT.Abbrv),
			dorade.DD16Bits, 1.0, 0.0, badData16)
		if err != nil {
			return nil, err
		}
		builtinParms[f.DT.Abbrv] = parm
		if err := copyFieldData(vol, sweepIdx, f, sw, parm); err != nil {
			return nil, err
		}
	}

	if haveDBZ {
		if err := addDerivedDM(vol, sweepIdx, sw, builtinParms, ri); err != nil {
			return nil, err
		}
	}

	firstGood, lastGood := -1, -1
	for r := 0; r < numRays; r++ {
		if vol.Rays[sweepIdx][r].Ok {
			if firstGood < 0 {
				firstGood = r
			}
			lastGood = r
		}
	}
	if firstGood >= 0 {
		sw.StartAngle = rayAngleDeg(vol.Rays[sweepIdx][firstGood], sw.ScanMode)
		sw.StopAngle = rayAngleDeg(vol.Rays[sweepIdx][lastGood], sw.ScanMode)
	}
	sw.FixedAngle = vol.Sweeps[sweepIdx].Angle * 180 / math.Pi

	for r := 0; r < numRays; r++ {
		ray := vol.Rays[sweepIdx][r]
		if !ray.Ok {
			continue
		}
		sw.Rays[r] = dorade.RayHeader{
			Ok:        true,
			Time:      sw.StartTime + ray.Time,
			Azimuth:   wrap360((ray.Az0+wxvol.LonInDomain(ray.Az1, ray.Az0))/2 * 180 / math.Pi),
			Elevation: (ray.Tilt0 + ray.Tilt1) / 2 * 180 / math.Pi,
			RadarLon:  sw.Longitude,
			RadarLat:  sw.Latitude,
			RadarAlt:  sw.Altitude,
		}
	}

	return sw, nil
}

func detectScanMode(vol *wxvol.Volume, sweepIdx int) dorade.ScanMode {
	rays := vol.Rays[sweepIdx]
	var firstTilt float64
	haveFirst := false
	for _, ray := range rays {
		if !ray.Ok {
			continue
		}
		if !haveFirst {
			firstTilt = ray.Tilt0
			haveFirst = true
			continue
		}
		if math.Abs(ray.Tilt0-firstTilt) > 1e-6 {
			return dorade.ScanRHI
		}
	}
	if haveFirst {
		return dorade.ScanPPI
	}
	return dorade.ScanUnk
}

func rayAngleDeg(ray wxvol.RayHeader, mode dorade.ScanMode) float64 {
	if mode == dorade.ScanRHI {
		return (ray.Tilt0 + ray.Tilt1) / 2 * 180 / math.Pi
	}
	return wrap360((ray.Az0 + wxvol.LonInDomain(ray.Az1, ray.Az0)) / 2 * 180 / math.Pi)
}

func wrap360(deg float64) float64 {
	for deg < 0 {
		deg += 360
	}
	for deg >= 360 {
		deg -= 360
	}
	return deg
}

func copyFieldData(vol *wxvol.Volume, sweepIdx int, f *wxvol.Field, sw *dorade.Sweep, parm *dorade.Parm) error {
	for r := 0; r < vol.NumRaysPerSweep; r++ {
		if !vol.Rays[sweepIdx][r].Ok {
			continue
		}
		for b := 0; b < vol.NumOutputBins; b++ {
			v, err := vol.ValueAt(f, sweepIdx, r, b)
			if err != nil {
				v = math.NaN()
			}
			sw.SetAt(parm, r, b, v)
		}
	}
	return nil
}

// addDerivedDM synthesises DM = reflectivity - 20*log10(range_metres)
// (spec §4.9, "Derived dM field").
func addDerivedDM(vol *wxvol.Volume, sweepIdx int, sw *dorade.Sweep, builtin map[string]*dorade.Parm, ri wxvol.TaskRangeInfo) error {
	src := builtin["DB_DBZ"]
	if src == nil {
		src = builtin["DB_DBZ2"]
	}
	dm, err := sw.AddParm("DM", "Derived returned power", "dB", dorade.DD16Bits, 1.0, 0.0, badData16)
	if err != nil {
		return err
	}
	for r := 0; r < vol.NumRaysPerSweep; r++ {
		if !vol.Rays[sweepIdx][r].Ok {
			continue
		}
		for b := 0; b < vol.NumOutputBins; b++ {
			rangeM := ri.Range1stBin + float64(b)*ri.BinStep
			dbz := sw.At(src, r, b)
			if math.IsNaN(dbz) || rangeM <= 0 {
				sw.SetAt(dm, r, b, math.NaN())
				continue
			}
			sw.SetAt(dm, r, b, dbz-20*math.Log10(rangeM))
		}
	}
	return nil
}
