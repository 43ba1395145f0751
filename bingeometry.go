package wxvol

import "math"

// Point2 is a planar (x, y) coordinate, or (ground, height) in the RHI case.
type Point2 struct{ X, Y float64 }

// BinGeometry computes PPI/RHI bin outlines and sweep bounding boxes under
// the 4/3-Earth refraction model (spec §4.6). It is a pure function of the
// volume's headers, so it is kept separate from FieldAlgebra's mutation
// surface.
type BinGeometry struct {
	Vol *Volume
}

// NewBinGeometry binds a BinGeometry to vol.
func NewBinGeometry(vol *Volume) *BinGeometry { return &BinGeometry{Vol: vol} }

func (g *BinGeometry) ri() TaskRangeInfo {
	return g.Vol.Ingest.TaskConfiguration.TaskRangeInfo
}

func (g *BinGeometry) radarLonLat() (lon, lat float64) {
	return g.Vol.Ingest.Longitude, g.Vol.Ingest.Latitude
}

func (g *BinGeometry) checkOk(s, r int) error {
	if s < 0 || s >= len(g.Vol.Sweeps) || !g.Vol.Sweeps[s].Ok {
		return newErr(BadVol, "sweep %d is not ok", s)
	}
	if r < 0 || r >= len(g.Vol.Rays[s]) || !g.Vol.Rays[s][r].Ok {
		return newErr(BadVol, "ray %d of sweep %d is not ok", r, s)
	}
	return nil
}

// ppiGroundArc projects a beam range at tilt to great-circle arc (spec
// §4.6 PPI formula).
func ppiGroundArc(rBeam, tilt, rEarth float64) float64 {
	denom := math.Sqrt(rEarth*rEarth + rBeam*rBeam + 2*rEarth*rBeam*math.Sin(tilt))
	return math.Asin(clamp(rBeam*math.Cos(tilt)/denom, -1, 1))
}

// PPIBinCorners computes the four (x, y) corners of bin b on ray r of
// sweep s, ordered (az0,r0), (az0,r1), (az1,r1), (az1,r0), projected
// through proj (spec §4.6).
func (g *BinGeometry) PPIBinCorners(s, r, b int, proj ProjFn) ([4]Point2, error) {
	var corners [4]Point2
	if err := g.checkIndexed(s, r, b); err != nil {
		return corners, err
	}
	if err := g.checkOk(s, r); err != nil {
		return corners, err
	}
	ray := g.Vol.Rays[s][r]
	ri := g.ri()
	r0 := ri.Range1stBin + float64(b)*ri.BinStep
	r1 := r0 + ri.BinStep
	tilt := (ray.Tilt0 + ray.Tilt1) / 2
	lon0, lat0 := g.radarLonLat()

	azRange := [2]float64{ray.Az0, ray.Az1}
	rRange := [2]float64{r0, r1}
	order := [4][2]int{{0, 0}, {0, 1}, {1, 1}, {1, 0}}
	for i, o := range order {
		arc := ppiGroundArc(rRange[o[1]], tilt, REarth)
		lon, lat := Step(lon0, lat0, azRange[o[0]], arc)
		x, y, ok := proj(lon, lat)
		if !ok {
			return corners, newErr(HelperFail, "projection miss at corner %d", i)
		}
		corners[i] = Point2{x, y}
	}
	return corners, nil
}

// RHIBinCorners computes the four (ground, height) corners of bin b on
// ray r of sweep s under the 4/3-Earth model (spec §4.6).
func (g *BinGeometry) RHIBinCorners(s, r, b int) ([4]Point2, error) {
	var corners [4]Point2
	if err := g.checkIndexed(s, r, b); err != nil {
		return corners, err
	}
	if err := g.checkOk(s, r); err != nil {
		return corners, err
	}
	ray := g.Vol.Rays[s][r]
	ri := g.ri()
	r0 := ri.Range1stBin + float64(b)*ri.BinStep
	r1 := r0 + ri.BinStep
	tilts := [2]float64{ray.Tilt0, ray.Tilt1}
	ranges := [2]float64{r0, r1}
	order := [4][2]int{{0, 0}, {0, 1}, {1, 1}, {1, 0}}
	for i, o := range order {
		tilt := tilts[o[0]]
		rBeam := ranges[o[1]]
		h := BeamHeight(rBeam, tilt, EffEarthRHI)
		ground := EffEarthRHI * math.Asin(clamp(rBeam*math.Cos(tilt)/(EffEarthRHI+h), -1, 1))
		corners[i] = Point2{ground, h}
	}
	return corners, nil
}

func (g *BinGeometry) checkIndexed(s, r, b int) error {
	return g.Vol.checkIndex(s, r, b)
}

// SweepBoundingBoxPPI walks every ok ray of sweep s, emitting its far-end
// corner (bin numOutputBins-1's outer edge), and returns the accumulated
// (xMin, xMax, yMin, yMax) under proj (spec §4.6).
func (g *BinGeometry) SweepBoundingBoxPPI(s int, proj ProjFn) (xMin, xMax, yMin, yMax float64, err error) {
	xMin, yMin = math.Inf(1), math.Inf(1)
	xMax, yMax = math.Inf(-1), math.Inf(-1)
	found := false
	lastBin := g.Vol.NumOutputBins - 1
	for r := 0; r < g.Vol.NumRaysPerSweep; r++ {
		if err := g.checkOk(s, r); err != nil {
			continue
		}
		corners, cerr := g.PPIBinCorners(s, r, lastBin, proj)
		if cerr != nil {
			continue
		}
		for _, c := range [2]Point2{corners[1], corners[2]} {
			found = true
			xMin, xMax = math.Min(xMin, c.X), math.Max(xMax, c.X)
			yMin, yMax = math.Min(yMin, c.Y), math.Max(yMax, c.Y)
		}
	}
	if !found {
		return 0, 0, 0, 0, newErr(BadVol, "sweep %d has no ok rays", s)
	}
	return xMin, xMax, yMin, yMax, nil
}

// SweepBoundingBoxRHI is the RHI analogue of SweepBoundingBoxPPI, walking
// (ground, height) corners instead of projected (x, y).
func (g *BinGeometry) SweepBoundingBoxRHI(s int) (gMin, gMax, hMin, hMax float64, err error) {
	gMin, hMin = math.Inf(1), math.Inf(1)
	gMax, hMax = math.Inf(-1), math.Inf(-1)
	found := false
	lastBin := g.Vol.NumOutputBins - 1
	for r := 0; r < g.Vol.NumRaysPerSweep; r++ {
		if err := g.checkOk(s, r); err != nil {
			continue
		}
		corners, cerr := g.RHIBinCorners(s, r, lastBin)
		if cerr != nil {
			continue
		}
		for _, c := range [2]Point2{corners[1], corners[2]} {
			found = true
			gMin, gMax = math.Min(gMin, c.X), math.Max(gMax, c.X)
			hMin, hMax = math.Min(hMin, c.Y), math.Max(hMax, c.Y)
		}
	}
	if !found {
		return 0, 0, 0, 0, newErr(BadVol, "sweep %d has no ok rays", s)
	}
	return gMin, gMax, hMin, hMax, nil
}
