package tsindex

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"

	"solar_forecast/internal/model"
)

type timestampRecord struct {
	Plant               int32  `parquet:"name=plant, type=INT32"`
	InverterID          int32  `parquet:"name=inverter_id, type=INT32"`
	PredictionTimestamp int64  `parquet:"name=prediction_timestamp, type=INT64, convertedtype=TIMESTAMP_MILLIS"`
	GeneratedAt         string `parquet:"name=generated_at, type=BYTE_ARRAY, convertedtype=UTF8"`
}

type memFile struct {
	buffer *bytes.Buffer
}

func newMemFile() *memFile {
	return &memFile{buffer: &bytes.Buffer{}}
}

func (m *memFile) Create(string) (source.ParquetFile, error) { return m, nil }
func (m *memFile) Open(string) (source.ParquetFile, error)   { return m, nil }
func (m *memFile) Seek(int64, int) (int64, error)            { return int64(m.buffer.Len()), nil }
func (m *memFile) Read([]byte) (int, error)                  { return 0, fmt.Errorf("read not supported") }
func (m *memFile) Write(b []byte) (int, error)               { return m.buffer.Write(b) }
func (m *memFile) Close() error                              { return nil }
func (m *memFile) Bytes() []byte                             { return m.buffer.Bytes() }

// ParquetPath returns the parquet export location next to the JSON index.
func (fs FileStore) ParquetPath(plant model.Plant) string {
	return strings.TrimSuffix(fs.Path(plant), ".json") + ".parquet"
}

// EncodeParquet flattens idx into one row per prediction timestamp, ordered
// by inverter then time, and returns the snappy-compressed file with the
// row count.
func EncodeParquet(idx *Index) ([]byte, int, error) {
	mem := newMemFile()
	pw, err := writer.NewParquetWriter(mem, new(timestampRecord), 1)
	if err != nil {
		return nil, 0, fmt.Errorf("new parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	rows := 0
	for _, id := range idx.InverterIDs() {
		entry, _ := idx.Entry(id)
		for _, ts := range entry.Timestamps {
			t, err := model.ParseTimestamp(ts)
			if err != nil {
				pw.WriteStop()
				return nil, 0, fmt.Errorf("inverter %d: %w", id, err)
			}
			rec := timestampRecord{
				Plant:               int32(idx.Plant),
				InverterID:          int32(id),
				PredictionTimestamp: t.UnixMilli(),
				GeneratedAt:         idx.GeneratedAt,
			}
			if err := pw.Write(rec); err != nil {
				pw.WriteStop()
				return nil, 0, fmt.Errorf("write timestamp record: %w", err)
			}
			rows++
		}
	}

	if err := pw.WriteStop(); err != nil {
		return nil, 0, fmt.Errorf("finalize timestamp parquet: %w", err)
	}
	return mem.Bytes(), rows, nil
}

// WriteParquet exports idx to ParquetPath and returns the row count.
func (fs FileStore) WriteParquet(idx *Index) (int, error) {
	plant, err := model.ParsePlant(idx.Plant)
	if err != nil {
		return 0, err
	}
	data, rows, err := EncodeParquet(idx)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(fs.ParquetPath(plant)), 0o755); err != nil {
		return 0, fmt.Errorf("creating index dir: %w", err)
	}
	if err := os.WriteFile(fs.ParquetPath(plant), data, 0o644); err != nil {
		return 0, fmt.Errorf("writing parquet export: %w", err)
	}
	return rows, nil
}
