package arrow

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/ipc"
	"github.com/apache/arrow/go/v17/arrow/memory"
	"go.uber.org/zap"
)

const manifestName = "manifest.jsonl"

// Row is one exported catalog line as the user saw it.
type Row struct {
	ID           string
	Name         string
	Level        string
	AddedDate    time.Time
	Price        string
	DisplayPrice string
	InCart       bool
}

// ManifestEntry is a single line in the export manifest.
type ManifestEntry struct {
	Timestamp time.Time `json:"ts"`
	FilePath  string    `json:"file"`
	Query     string    `json:"query,omitempty"`
	SortKey   string    `json:"sort,omitempty"`
	Currency  string    `json:"currency,omitempty"`
	Count     int       `json:"count"`
	SizeBytes int64     `json:"size_bytes"`
	Format    string    `json:"format"`
}

// SnapshotInfo describes the view a snapshot was taken from.
type SnapshotInfo struct {
	Query    string
	SortKey  string
	Currency string
}

var snapshotSchema = arrow.NewSchema(
	[]arrow.Field{
		{Name: "id", Type: arrow.BinaryTypes.String},
		{Name: "name", Type: arrow.BinaryTypes.String},
		{Name: "level", Type: arrow.BinaryTypes.String},
		{Name: "added_date", Type: arrow.FixedWidthTypes.Timestamp_us, Nullable: true},
		{Name: "price", Type: arrow.BinaryTypes.String},
		{Name: "display_price", Type: arrow.BinaryTypes.String},
		{Name: "in_cart", Type: arrow.FixedWidthTypes.Boolean},
	},
	nil,
)

// SnapshotWriter exports the current view as Arrow IPC files.
type SnapshotWriter struct {
	logger *zap.Logger
	mem    memory.Allocator
	now    func() time.Time
}

func NewSnapshotWriter(logger *zap.Logger) *SnapshotWriter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SnapshotWriter{
		logger: logger,
		mem:    memory.NewGoAllocator(),
		now:    time.Now,
	}
}

// Write stores rows under dir/date=YYYY-MM-DD and appends a manifest entry.
// It returns the path of the new file.
func (w *SnapshotWriter) Write(dir string, info SnapshotInfo, rows []Row) (string, error) {
	ts := w.now().UTC()
	fullDir := filepath.Join(dir, "date="+ts.Format("2006-01-02"))
	if err := os.MkdirAll(fullDir, 0o755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}

	filePath := filepath.Join(fullDir, fmt.Sprintf("catalog-%s.arrow", ts.Format("20060102T150405.000000000Z")))

	record := w.buildRecord(rows)
	defer record.Release()

	if err := writeArrowFile(filePath, record); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}

	stat, err := os.Stat(filePath)
	if err != nil {
		return "", fmt.Errorf("stat snapshot: %w", err)
	}

	entry := ManifestEntry{
		Timestamp: ts,
		FilePath:  filePath,
		Query:     info.Query,
		SortKey:   info.SortKey,
		Currency:  info.Currency,
		Count:     len(rows),
		SizeBytes: stat.Size(),
		Format:    "arrow_ipc",
	}
	if err := appendManifest(dir, entry); err != nil {
		w.logger.Warn("Failed to update manifest", zap.Error(err))
	}

	w.logger.Info("Exported catalog snapshot",
		zap.String("file", filePath),
		zap.Int("rows", len(rows)),
		zap.Int64("size_bytes", stat.Size()))

	return filePath, nil
}

func (w *SnapshotWriter) buildRecord(rows []Row) arrow.Record {
	builder := array.NewRecordBuilder(w.mem, snapshotSchema)
	defer builder.Release()

	ids := builder.Field(0).(*array.StringBuilder)
	names := builder.Field(1).(*array.StringBuilder)
	levels := builder.Field(2).(*array.StringBuilder)
	dates := builder.Field(3).(*array.TimestampBuilder)
	prices := builder.Field(4).(*array.StringBuilder)
	display := builder.Field(5).(*array.StringBuilder)
	inCart := builder.Field(6).(*array.BooleanBuilder)

	for _, r := range rows {
		ids.Append(r.ID)
		names.Append(r.Name)
		levels.Append(r.Level)
		if r.AddedDate.IsZero() {
			dates.AppendNull()
		} else {
			dates.Append(arrow.Timestamp(r.AddedDate.UnixMicro()))
		}
		prices.Append(r.Price)
		display.Append(r.DisplayPrice)
		inCart.Append(r.InCart)
	}

	return builder.NewRecord()
}

func writeArrowFile(filePath string, record arrow.Record) error {
	tempPath := filePath + ".tmp"

	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	writer := ipc.NewWriter(file, ipc.WithSchema(record.Schema()))
	if err := writer.Write(record); err != nil {
		writer.Close()
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("write record: %w", err)
	}
	if err := writer.Close(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("close ipc writer: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("close temp file: %w", err)
	}

	return os.Rename(tempPath, filePath)
}

func appendManifest(dir string, entry ManifestEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal manifest entry: %w", err)
	}

	file, err := os.OpenFile(filepath.Join(dir, manifestName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open manifest file: %w", err)
	}
	defer file.Close()

	if _, err := file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}
