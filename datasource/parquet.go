package datasource

import (
	"context"
	"math"
	"os"

	"github.com/apache/arrow/go/v10/arrow"
	"github.com/apache/arrow/go/v10/arrow/array"
	"github.com/apache/arrow/go/v10/arrow/memory"
	"github.com/apache/arrow/go/v10/parquet/file"
	"github.com/apache/arrow/go/v10/parquet/pqarrow"

	"github.com/c360/plotstream/errors"
)

// OpenParquet loads a Parquet file into a MemorySource. Only columns with
// numeric types are decoded; floats become float64 columns with nulls as
// NaN, integers become int64 columns with nulls as zero. Non-numeric
// columns are skipped.
func OpenParquet(ctx context.Context, path string) (*MemorySource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WrapFatal(errors.ErrDatasetUnreadable, "datasource", "OpenParquet", "open "+path+": "+err.Error())
	}
	defer f.Close()

	pf, err := file.NewParquetReader(f)
	if err != nil {
		return nil, errors.WrapFatal(errors.ErrDatasetUnreadable, "datasource", "OpenParquet", "parse "+path+": "+err.Error())
	}
	defer pf.Close()

	mem := memory.NewGoAllocator()
	rdr, err := pqarrow.NewFileReader(pf, pqarrow.ArrowReadProperties{}, mem)
	if err != nil {
		return nil, errors.WrapFatal(err, "datasource", "OpenParquet", "arrow reader failed")
	}
	tbl, err := rdr.ReadTable(ctx)
	if err != nil {
		return nil, errors.WrapFatal(err, "datasource", "OpenParquet", "table read failed")
	}
	defer tbl.Release()

	floats := make(map[string][]float64)
	ints := make(map[string][]int64)
	for i := 0; i < int(tbl.NumCols()); i++ {
		col := tbl.Column(i)
		name := tbl.Schema().Field(i).Name
		switch col.DataType().ID() {
		case arrow.FLOAT64, arrow.FLOAT32:
			floats[name] = decodeFloats(col.Data().Chunks())
		case arrow.INT64, arrow.INT32, arrow.INT16, arrow.INT8,
			arrow.UINT32, arrow.UINT16, arrow.UINT8:
			ints[name] = decodeInts(col.Data().Chunks())
		}
	}

	frame, err := NewFrame(floats, ints)
	if err != nil {
		return nil, err
	}
	return NewMemorySource(frame), nil
}

func decodeFloats(chunks []arrow.Array) []float64 {
	var out []float64
	for _, chunk := range chunks {
		switch arr := chunk.(type) {
		case *array.Float64:
			for i := 0; i < arr.Len(); i++ {
				if arr.IsNull(i) {
					out = append(out, math.NaN())
					continue
				}
				out = append(out, arr.Value(i))
			}
		case *array.Float32:
			for i := 0; i < arr.Len(); i++ {
				if arr.IsNull(i) {
					out = append(out, math.NaN())
					continue
				}
				out = append(out, float64(arr.Value(i)))
			}
		}
	}
	return out
}

func decodeInts(chunks []arrow.Array) []int64 {
	var out []int64
	for _, chunk := range chunks {
		switch arr := chunk.(type) {
		case *array.Int64:
			for i := 0; i < arr.Len(); i++ {
				out = append(out, arr.Value(i))
			}
		case *array.Int32:
			for i := 0; i < arr.Len(); i++ {
				out = append(out, int64(arr.Value(i)))
			}
		case *array.Int16:
			for i := 0; i < arr.Len(); i++ {
				out = append(out, int64(arr.Value(i)))
			}
		case *array.Int8:
			for i := 0; i < arr.Len(); i++ {
				out = append(out, int64(arr.Value(i)))
			}
		case *array.Uint32:
			for i := 0; i < arr.Len(); i++ {
				out = append(out, int64(arr.Value(i)))
			}
		case *array.Uint16:
			for i := 0; i < arr.Len(); i++ {
				out = append(out, int64(arr.Value(i)))
			}
		case *array.Uint8:
			for i := 0; i < arr.Len(); i++ {
				out = append(out, int64(arr.Value(i)))
			}
		}
	}
	return out
}
