// Package catalog indexes Sigmet volumes into a TileDB array, one row per
// sweep, so a fleet of volumes can be queried (site, time, angle, field
// list) without re-parsing every file.
package catalog

import (
	"reflect"
	"strconv"
	"strings"

	tiledb "github.com/TileDB-Inc/TileDB-Go"
	stgpsr "github.com/yuin/stagparser"

	wxvol "github.com/wxradar/wxvol"
)

// SweepRecords holds one catalogue array's worth of rows, column-major, the
// shape a TileDB write query buffer expects. Tags drive schema
// construction: tiledb carries dtype/ftype/var, filters lists the
// compression pipeline to attach, in application order.
type SweepRecords struct {
	RowID     []uint64  `tiledb:"dtype=uint64,ftype=dim"`
	Time      []float64 `tiledb:"dtype=float64,ftype=attr" filters:"zstd(level=16)"`
	Angle     []float64 `tiledb:"dtype=float64,ftype=attr" filters:"zstd(level=16)"`
	SweepIdx  []uint32  `tiledb:"dtype=uint32,ftype=attr" filters:"bitw(window=-1)"`
	Truncated []uint8   `tiledb:"dtype=uint8,ftype=attr" filters:"rle(level=-1)"`
	SiteName  [][]uint8 `tiledb:"dtype=uint8,ftype=attr,var" filters:"bysh,zstd(level=16)"`
	TaskName  [][]uint8 `tiledb:"dtype=uint8,ftype=attr,var" filters:"bysh,zstd(level=16)"`
	SrcPath   [][]uint8 `tiledb:"dtype=uint8,ftype=attr,var" filters:"bysh,zstd(level=16)"`
	FieldList [][]uint8 `tiledb:"dtype=uint8,ftype=attr,var" filters:"bysh,zstd(level=16)"`
}

// NewSweepRecords preallocates the column slices to capacity n.
func NewSweepRecords(n int) *SweepRecords {
	return &SweepRecords{
		RowID:     make([]uint64, 0, n),
		Time:      make([]float64, 0, n),
		Angle:     make([]float64, 0, n),
		SweepIdx:  make([]uint32, 0, n),
		Truncated: make([]uint8, 0, n),
		SiteName:  make([][]uint8, 0, n),
		TaskName:  make([][]uint8, 0, n),
		SrcPath:   make([][]uint8, 0, n),
		FieldList: make([][]uint8, 0, n),
	}
}

// Append adds one sweep row built from a parsed Sigmet volume.
func (sr *SweepRecords) Append(rowID uint64, srcPath string, vol *wxvol.Volume, sweepIdx int) {
	sw := vol.Sweeps[sweepIdx]
	truncated := uint8(0)
	if vol.Truncated {
		truncated = 1
	}
	sr.RowID = append(sr.RowID, rowID)
	sr.Time = append(sr.Time, sw.Time)
	sr.Angle = append(sr.Angle, sw.Angle)
	sr.SweepIdx = append(sr.SweepIdx, uint32(sweepIdx))
	sr.Truncated = append(sr.Truncated, truncated)
	sr.SiteName = append(sr.SiteName, []byte(vol.Ingest.SiteName))
	sr.TaskName = append(sr.TaskName, []byte(vol.Product.ProductConfiguration.TaskName))
	sr.SrcPath = append(sr.SrcPath, []byte(srcPath))
	sr.FieldList = append(sr.FieldList, []byte(strings.Join(vol.FieldNames(), ",")))
}

// Len reports the number of rows accumulated so far.
func (sr *SweepRecords) Len() int { return len(sr.RowID) }

// ArrayOpen opens a TileDB array in the given mode.
func ArrayOpen(ctx *tiledb.Context, uri string, mode tiledb.QueryType) (*tiledb.Array, error) {
	array, err := tiledb.NewArray(ctx, uri)
	if err != nil {
		return nil, err
	}
	if err := array.Open(mode); err != nil {
		array.Free()
		return nil, err
	}
	return array, nil
}

// AddFilters sequentially appends compression filters to a filter pipeline.
func AddFilters(list *tiledb.FilterList, filters ...*tiledb.Filter) error {
	for _, f := range filters {
		if err := list.AddFilter(f); err != nil {
			return err
		}
	}
	return nil
}

// AttachFilters sets the same filter list on every given attribute.
func AttachFilters(list *tiledb.FilterList, attrs ...*tiledb.Attribute) error {
	for _, a := range attrs {
		if err := a.SetFilterList(list); err != nil {
			return err
		}
	}
	return nil
}

func levelFilter(ctx *tiledb.Context, kind tiledb.FilterType, level int32) (*tiledb.Filter, error) {
	filt, err := tiledb.NewFilter(ctx, kind)
	if err != nil {
		return nil, err
	}
	if err := filt.SetOption(tiledb.TILEDB_COMPRESSION_LEVEL, level); err != nil {
		filt.Free()
		return nil, err
	}
	return filt, nil
}

func ZstdFilter(ctx *tiledb.Context, level int32) (*tiledb.Filter, error) {
	return levelFilter(ctx, tiledb.TILEDB_FILTER_ZSTD, level)
}

func GzipFilter(ctx *tiledb.Context, level int32) (*tiledb.Filter, error) {
	return levelFilter(ctx, tiledb.TILEDB_FILTER_GZIP, level)
}

func Lz4Filter(ctx *tiledb.Context, level int32) (*tiledb.Filter, error) {
	return levelFilter(ctx, tiledb.TILEDB_FILTER_LZ4, level)
}

func Bzip2Filter(ctx *tiledb.Context, level int32) (*tiledb.Filter, error) {
	return levelFilter(ctx, tiledb.TILEDB_FILTER_BZIP2, level)
}

// RleFilter's level is meaningless for run-length encoding; TileDB ignores
// it, but SetOption still requires one be supplied.
func RleFilter(ctx *tiledb.Context, level int32) (*tiledb.Filter, error) {
	return levelFilter(ctx, tiledb.TILEDB_FILTER_RLE, level)
}

func BitWidthReductionFilter(ctx *tiledb.Context, window int32) (*tiledb.Filter, error) {
	filt, err := tiledb.NewFilter(ctx, tiledb.TILEDB_FILTER_BIT_WIDTH_REDUCTION)
	if err != nil {
		return nil, err
	}
	if err := filt.SetOption(tiledb.TILEDB_BIT_WIDTH_MAX_WINDOW, window); err != nil {
		filt.Free()
		return nil, err
	}
	return filt, nil
}

// createAttr builds one TileDB attribute from a struct field's tiledb/filters
// tags and attaches it (and its compression pipeline) to schema. Ported from
// the sweep-record shape of the sonar catalogue's attribute builder: a tag
// vocabulary of dtype/var/ftype driving datatype and variable-length
// handling, and a filter tag vocabulary of zstd/gzip/lz4/rle/bzip2/bitw/
// bish/bysh driving the compression pipeline, applied in tag order.
func createAttr(fieldName string, filterDefs []stgpsr.Definition, tiledbDefs map[string]stgpsr.Definition,
	schema *tiledb.ArraySchema, ctx *tiledb.Context) error {

	def, ok := tiledbDefs["dtype"]
	if !ok {
		return wxvol.NewErr(wxvol.BadArg, "catalog: field %s missing dtype tag", fieldName)
	}
	dtypeName, _ := def.Attribute("dtype")

	var dtype tiledb.Datatype
	switch dtypeName {
	case "int8":
		dtype = tiledb.TILEDB_INT8
	case "uint8":
		dtype = tiledb.TILEDB_UINT8
	case "int16":
		dtype = tiledb.TILEDB_INT16
	case "uint16":
		dtype = tiledb.TILEDB_UINT16
	case "int32":
		dtype = tiledb.TILEDB_INT32
	case "uint32":
		dtype = tiledb.TILEDB_UINT32
	case "int64":
		dtype = tiledb.TILEDB_INT64
	case "uint64":
		dtype = tiledb.TILEDB_UINT64
	case "float32":
		dtype = tiledb.TILEDB_FLOAT32
	case "float64":
		dtype = tiledb.TILEDB_FLOAT64
	default:
		return wxvol.NewErr(wxvol.BadArg, "catalog: field %s has unsupported dtype %v", fieldName, dtypeName)
	}

	filterList, err := tiledb.NewFilterList(ctx)
	if err != nil {
		return err
	}
	defer filterList.Free()

	for _, filt := range filterDefs {
		var f *tiledb.Filter
		switch filt.Name() {
		case "zstd":
			level, _ := filt.Attribute("level")
			f, err = ZstdFilter(ctx, int32(level.(int64)))
		case "gzip":
			level, _ := filt.Attribute("level")
			f, err = GzipFilter(ctx, int32(level.(int64)))
		case "lz4":
			level, _ := filt.Attribute("level")
			f, err = Lz4Filter(ctx, int32(level.(int64)))
		case "rle":
			level, _ := filt.Attribute("level")
			f, err = RleFilter(ctx, int32(level.(int64)))
		case "bzip2":
			level, _ := filt.Attribute("level")
			f, err = Bzip2Filter(ctx, int32(level.(int64)))
		case "bitw":
			win, _ := filt.Attribute("window")
			f, err = BitWidthReductionFilter(ctx, int32(win.(int64)))
		case "bish":
			f, err = tiledb.NewFilter(ctx, tiledb.TILEDB_FILTER_BITSHUFFLE)
		case "bysh":
			f, err = tiledb.NewFilter(ctx, tiledb.TILEDB_FILTER_BYTESHUFFLE)
		default:
			continue
		}
		if err != nil {
			return wxvol.WrapErr(wxvol.IOFail, err, "catalog: building filter %q for %s", filt.Name(), fieldName)
		}
		if err := filterList.AddFilter(f); err != nil {
			f.Free()
			return err
		}
		f.Free()
	}

	attr, err := tiledb.NewAttribute(ctx, fieldName, dtype)
	if err != nil {
		return err
	}
	defer attr.Free()

	_, isVar := tiledbDefs["var"]
	if isVar {
		if err := attr.SetCellValNum(tiledb.TILEDB_VAR_NUM); err != nil {
			return err
		}
	}

	if err := attr.SetFilterList(filterList); err != nil {
		return err
	}
	if err := schema.AddAttributes(attr); err != nil {
		return err
	}

	if isVar {
		offFilters, err := tiledb.NewFilterList(ctx)
		if err != nil {
			return err
		}
		ddFilt, err := tiledb.NewFilter(ctx, tiledb.TILEDB_FILTER_POSITIVE_DELTA)
		if err != nil {
			return err
		}
		byshFilt, err := tiledb.NewFilter(ctx, tiledb.TILEDB_FILTER_BYTESHUFFLE)
		if err != nil {
			return err
		}
		zstdFilt, err := ZstdFilter(ctx, 16)
		if err != nil {
			return err
		}
		if err := AddFilters(offFilters, ddFilt, byshFilt, zstdFilt); err != nil {
			return err
		}
		if err := schema.SetOffsetsFilterList(offFilters); err != nil {
			return err
		}
	}

	return nil
}

// schemaAttrs walks a tagged struct's exported fields and attaches one
// TileDB attribute per field whose ftype tag is "attr" (ftype "dim" fields
// are skipped; they belong to the array's domain, set up separately).
func schemaAttrs(t any, schema *tiledb.ArraySchema, ctx *tiledb.Context) error {
	values := reflect.ValueOf(t).Elem()
	types := values.Type()

	filterDefs, _ := stgpsr.ParseStruct(t, "filters")
	tiledbDefs, _ := stgpsr.ParseStruct(t, "tiledb")

	for i := 0; i < values.NumField(); i++ {
		name := types.Field(i).Name

		fieldTiledbDefs := make(map[string]stgpsr.Definition)
		for _, d := range tiledbDefs[name] {
			fieldTiledbDefs[d.Name()] = d
		}

		def, ok := fieldTiledbDefs["ftype"]
		if !ok {
			return wxvol.NewErr(wxvol.BadArg, "catalog: field %s missing ftype tag", name)
		}
		ftype, _ := def.Attribute("ftype")
		if ftype == "dim" {
			continue
		}

		if err := createAttr(name, filterDefs[name], fieldTiledbDefs, schema, ctx); err != nil {
			return err
		}
	}
	return nil
}

// BuildSchema constructs the dense catalogue schema: one row dimension
// "ROW_ID" over [0, maxRows-1], plus an attribute per SweepRecords field.
func BuildSchema(ctx *tiledb.Context, maxRows uint64) (*tiledb.ArraySchema, error) {
	domain, err := tiledb.NewDomain(ctx)
	if err != nil {
		return nil, err
	}
	defer domain.Free()

	tileExtent := maxRows
	if tileExtent > 10000 {
		tileExtent = 10000
	}
	dim, err := tiledb.NewDimension(ctx, "ROW_ID", tiledb.TILEDB_UINT64, []uint64{0, maxRows - 1}, tileExtent)
	if err != nil {
		return nil, err
	}
	defer dim.Free()

	if err := domain.AddDimensions(dim); err != nil {
		return nil, err
	}

	schema, err := tiledb.NewArraySchema(ctx, tiledb.TILEDB_DENSE)
	if err != nil {
		return nil, err
	}
	if err := schema.SetDomain(domain); err != nil {
		return nil, err
	}
	if err := schema.SetCellOrder(tiledb.TILEDB_ROW_MAJOR); err != nil {
		return nil, err
	}
	if err := schema.SetTileOrder(tiledb.TILEDB_ROW_MAJOR); err != nil {
		return nil, err
	}

	if err := schemaAttrs(&SweepRecords{}, schema, ctx); err != nil {
		return nil, err
	}

	if err := schema.Check(); err != nil {
		return nil, err
	}
	return schema, nil
}

// CreateArray creates an empty catalogue array on disk (or any TileDB VFS
// backend reachable from uri) sized for maxRows rows.
func CreateArray(ctx *tiledb.Context, uri string, maxRows uint64) error {
	schema, err := BuildSchema(ctx, maxRows)
	if err != nil {
		return err
	}
	defer schema.Free()

	array, err := tiledb.NewArray(ctx, uri)
	if err != nil {
		return err
	}
	defer array.Free()

	return array.Create(schema)
}

// sliceOffsets computes TileDB's var-length offset buffer for a slice of
// byte slices, each entry counted in elements of byte_size (here always 1,
// since every var-length column in SweepRecords is raw bytes).
func sliceOffsets(rows [][]uint8) []uint64 {
	offsets := make([]uint64, len(rows))
	var offset uint64
	for i, row := range rows {
		offsets[i] = offset
		offset += uint64(len(row))
	}
	return offsets
}

// setQueryBuffers reflects over a *SweepRecords and attaches each exported
// field as a query data (and, for [][]uint8 fields, offsets) buffer. Mirrors
// the sonar catalogue's reflect-driven buffer binding so that adding a
// column to SweepRecords never requires touching the query-construction
// code by hand.
func setQueryBuffers(query *tiledb.Query, sr *SweepRecords) error {
	values := reflect.ValueOf(sr).Elem()
	types := values.Type()

	for i := 0; i < values.NumField(); i++ {
		name := types.Field(i).Name
		field := values.Field(i)

		switch v := field.Interface().(type) {
		case []uint64:
			if _, err := query.SetDataBuffer(name, v); err != nil {
				return wxvol.WrapErr(wxvol.IOFail, err, "catalog: setting buffer for %s", name)
			}
		case []uint32:
			if _, err := query.SetDataBuffer(name, v); err != nil {
				return wxvol.WrapErr(wxvol.IOFail, err, "catalog: setting buffer for %s", name)
			}
		case []uint8:
			if _, err := query.SetDataBuffer(name, v); err != nil {
				return wxvol.WrapErr(wxvol.IOFail, err, "catalog: setting buffer for %s", name)
			}
		case []float64:
			if _, err := query.SetDataBuffer(name, v); err != nil {
				return wxvol.WrapErr(wxvol.IOFail, err, "catalog: setting buffer for %s", name)
			}
		case [][]uint8:
			offsets := sliceOffsets(v)
			flat := make([]uint8, 0, len(offsets))
			for _, row := range v {
				flat = append(flat, row...)
			}
			if _, err := query.SetOffsetsBuffer(name, offsets); err != nil {
				return wxvol.WrapErr(wxvol.IOFail, err, "catalog: setting offsets for %s", name)
			}
			if _, err := query.SetDataBuffer(name, flat); err != nil {
				return wxvol.WrapErr(wxvol.IOFail, err, "catalog: setting buffer for %s", name)
			}
		default:
			return wxvol.NewErr(wxvol.BadArg, "catalog: field %s has unhandled buffer type %s", name, strconv.Quote(types.Field(i).Type.String()))
		}
	}
	return nil
}

// AppendRecords writes sr as a contiguous row range [0, sr.Len()) into the
// catalogue array at uri.
func AppendRecords(ctx *tiledb.Context, uri string, sr *SweepRecords) error {
	if sr.Len() == 0 {
		return nil
	}

	array, err := ArrayOpen(ctx, uri, tiledb.TILEDB_WRITE)
	if err != nil {
		return err
	}
	defer array.Free()
	defer array.Close()

	query, err := tiledb.NewQuery(ctx, array)
	if err != nil {
		return err
	}
	defer query.Free()

	if err := query.SetLayout(tiledb.TILEDB_ROW_MAJOR); err != nil {
		return err
	}

	subarray, err := array.NewSubarray()
	if err != nil {
		return err
	}
	defer subarray.Free()
	lastID := sr.RowID[len(sr.RowID)-1]
	if err := subarray.AddRangeByName("ROW_ID", sr.RowID[0], lastID, nil); err != nil {
		return err
	}
	if err := query.SetSubarray(subarray); err != nil {
		return err
	}

	if err := setQueryBuffers(query, sr); err != nil {
		return err
	}

	if err := query.Submit(); err != nil {
		return err
	}
	return query.Finalize()
}
