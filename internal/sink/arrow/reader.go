package arrow

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/ipc"
)

// ReadSnapshot loads every row of an exported snapshot file.
func ReadSnapshot(filePath string) ([]Row, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer file.Close()

	reader, err := ipc.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("create arrow reader: %w", err)
	}
	defer reader.Release()

	var rows []Row
	for reader.Next() {
		rows = append(rows, rowsFromRecord(reader.Record())...)
	}
	if err := reader.Err(); err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return rows, nil
}

func rowsFromRecord(record arrow.Record) []Row {
	ids := record.Column(0).(*array.String)
	names := record.Column(1).(*array.String)
	levels := record.Column(2).(*array.String)
	dates := record.Column(3).(*array.Timestamp)
	prices := record.Column(4).(*array.String)
	display := record.Column(5).(*array.String)
	inCart := record.Column(6).(*array.Boolean)

	rows := make([]Row, 0, record.NumRows())
	for i := 0; i < int(record.NumRows()); i++ {
		r := Row{
			ID:           ids.Value(i),
			Name:         names.Value(i),
			Level:        levels.Value(i),
			Price:        prices.Value(i),
			DisplayPrice: display.Value(i),
			InCart:       inCart.Value(i),
		}
		if !dates.IsNull(i) {
			r.AddedDate = time.UnixMicro(int64(dates.Value(i))).UTC()
		}
		rows = append(rows, r)
	}
	return rows
}

// ReadManifest returns the manifest entries under dir in write order.
func ReadManifest(dir string) ([]ManifestEntry, error) {
	file, err := os.Open(filepath.Join(dir, manifestName))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer file.Close()

	var entries []ManifestEntry
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var e ManifestEntry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			return nil, fmt.Errorf("parse manifest line: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, scanner.Err()
}
