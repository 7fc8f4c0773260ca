// Package dataset reads raw customer records from CSV files and JSON
// payloads and splits encoded frames into model inputs.
package dataset

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/rcliao/churn-features/internal/model"
)

// LoadCSV reads a CSV file with a header row. A missing file is reported
// with its path.
func LoadCSV(path string) (model.Frame, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return model.Frame{}, fmt.Errorf("dataset not found: %s", path)
	}
	if err != nil {
		return model.Frame{}, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	frame, err := ReadCSV(f)
	if err != nil {
		return model.Frame{}, fmt.Errorf("read %s: %w", path, err)
	}
	return frame, nil
}

// ReadCSV parses CSV with a header row. Empty cells are missing; cells
// that parse as integers or floats are typed, everything else is text.
func ReadCSV(r io.Reader) (model.Frame, error) {
	cr := csv.NewReader(bufio.NewReader(r))
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return model.Frame{}, nil
	}
	if err != nil {
		return model.Frame{}, fmt.Errorf("read header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	frame := model.Frame{Columns: append([]string(nil), header...)}

	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return model.Frame{}, fmt.Errorf("line %d: %w", line, err)
		}
		if len(rec) != len(header) {
			return model.Frame{}, fmt.Errorf("line %d: %d fields, header has %d", line, len(rec), len(header))
		}
		row := make(model.Record, len(header))
		for i, cell := range rec {
			row[header[i]] = parseCell(cell)
		}
		frame.Rows = append(frame.Rows, row)
	}
	return frame, nil
}

func parseCell(s string) any {
	if s == "" {
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

// Payload is the serving request body.
type Payload struct {
	Instances []map[string]any `json:"instances"`
}

// DecodeRecords reads either {"instances": [...]} or a bare JSON array of
// records. Numbers are typed as int64 when integral, float64 otherwise.
func DecodeRecords(r io.Reader) ([]model.Record, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimSpace(data)

	var raw []map[string]any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if len(data) > 0 && data[0] == '[' {
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("decode records: %w", err)
		}
	} else {
		var p Payload
		if err := dec.Decode(&p); err != nil {
			return nil, fmt.Errorf("decode payload: %w", err)
		}
		raw = p.Instances
	}

	out := make([]model.Record, len(raw))
	for i, m := range raw {
		rec := make(model.Record, len(m))
		for k, v := range m {
			rec[k] = typedJSON(v)
		}
		out[i] = rec
	}
	return out, nil
}

func typedJSON(v any) any {
	n, ok := v.(json.Number)
	if !ok {
		return v
	}
	if i, err := n.Int64(); err == nil {
		return i
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return n.String()
}
