package ingestion

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rpattn/retailanalytics/internal/domain"
	"github.com/rpattn/retailanalytics/internal/identity"

	"github.com/xuri/excelize/v2"
)

var (
	// ErrUnsupportedFormat is returned when an uploaded file is not supported.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	byteOrderMark = []byte{0xEF, 0xBB, 0xBF}

	dateLayouts = []string{
		time.DateOnly,
		time.RFC3339,
		time.RFC3339Nano,
		"2006-01-02 15:04:05",
		"2006/01/02",
		"02/01/2006",
		// excelize renders the built-in short date format as mm-dd-yy.
		"01-02-06",
	}
)

// FileRequest describes an uploaded file.
type FileRequest struct {
	FileName string
	Data     io.Reader
}

// IngestFile parses a .csv, .xlsx or .json upload and ingests its rows.
func (s *Service) IngestFile(ctx context.Context, req FileRequest) (domain.IngestResult, error) {
	if req.Data == nil {
		return domain.IngestResult{}, fmt.Errorf("%w: data reader is required", ErrMalformedInput)
	}

	payload, err := io.ReadAll(req.Data)
	if err != nil {
		return domain.IngestResult{}, fmt.Errorf("failed to read upload: %w", err)
	}
	if len(payload) == 0 {
		s.metrics.RecordIngestFailure("parse")
		return domain.IngestResult{}, fmt.Errorf("%w: file is empty", ErrMalformedInput)
	}

	rows, err := parseRows(req.FileName, payload)
	if err != nil {
		s.metrics.RecordIngestFailure("parse")
		return domain.IngestResult{}, err
	}

	return s.Ingest(ctx, rows)
}

func parseRows(fileName string, payload []byte) ([]map[string]any, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	switch ext {
	case ".csv":
		return parseCSV(payload)
	case ".xlsx":
		return parseExcel(payload)
	case ".json":
		return parseJSON(payload)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

func parseCSV(payload []byte) ([]map[string]any, error) {
	reader := bufio.NewReader(bytes.NewReader(payload))
	if prefix, err := reader.Peek(len(byteOrderMark)); err == nil && bytes.Equal(prefix, byteOrderMark) {
		_, _ = reader.Discard(len(byteOrderMark))
	}

	csvReader := csv.NewReader(reader)
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1

	records, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read csv: %v", ErrMalformedInput, err)
	}
	return tableRows(records)
}

func parseExcel(payload []byte) ([]map[string]any, error) {
	f, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open xlsx: %v", ErrMalformedInput, err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: excel file has no sheets", ErrMalformedInput)
	}

	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read rows from xlsx: %v", ErrMalformedInput, err)
	}
	return tableRows(records)
}

func parseJSON(payload []byte) ([]map[string]any, error) {
	decoder := json.NewDecoder(bytes.NewReader(payload))
	decoder.UseNumber()

	var rows []map[string]any
	if err := decoder.Decode(&rows); err != nil {
		return nil, fmt.Errorf("%w: expected a JSON array of objects: %v", ErrMalformedInput, err)
	}
	return rows, nil
}

// tableRows turns the first non-empty record into the header and the
// remaining non-empty records into rows keyed by normalized column name.
func tableRows(records [][]string) ([]map[string]any, error) {
	var header []string
	rows := []map[string]any{}

	for _, record := range records {
		if isEmptyRecord(record) {
			continue
		}
		if header == nil {
			header = normalizeHeaders(record)
			continue
		}

		row := make(map[string]any, len(header))
		for i, column := range header {
			if i < len(record) {
				row[column] = record[i]
			} else {
				row[column] = ""
			}
		}
		rows = append(rows, row)
	}

	if header == nil {
		return nil, fmt.Errorf("%w: header row could not be detected", ErrMalformedInput)
	}
	return rows, nil
}

func isEmptyRecord(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func normalizeHeaders(raw []string) []string {
	headers := make([]string, len(raw))
	seen := make(map[string]int)

	for idx, value := range raw {
		name := normalizeColumn(value)
		if name == "" {
			name = fmt.Sprintf("column_%d", idx+1)
		}

		base := name
		count := seen[base]
		if count > 0 {
			name = fmt.Sprintf("%s_%d", base, count+1)
		}
		seen[base] = count + 1

		headers[idx] = name
	}

	return headers
}

// normalizeColumn maps "Sub-Department " and "Date Of Sale" style headers to
// snake case column names.
func normalizeColumn(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.ReplaceAll(name, " ", "_")
	name = strings.ReplaceAll(name, "-", "_")
	return name
}

func normalizeKeys(row map[string]any) map[string]any {
	out := make(map[string]any, len(row))
	for key, value := range row {
		out[normalizeColumn(key)] = value
	}
	return out
}

func coerceText(value any) string {
	text, ok := identity.RawText(value)
	if !ok {
		return ""
	}
	return strings.TrimSpace(text)
}

func blank(value any) (string, bool) {
	if value == nil {
		return "", true
	}
	text, ok := identity.RawText(value)
	if !ok {
		return "", true
	}
	text = strings.TrimSpace(text)
	return text, text == ""
}

func coerceInteger(value any) (*int64, error) {
	switch v := value.(type) {
	case int:
		out := int64(v)
		return &out, nil
	case int64:
		return &v, nil
	case int32:
		out := int64(v)
		return &out, nil
	case float64:
		return integral(v, value)
	}

	raw, empty := blank(value)
	if empty {
		return nil, nil
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return &i, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("unable to coerce %q to integer", raw)
	}
	return integral(f, raw)
}

func integral(f float64, original any) (*int64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || math.Mod(f, 1) != 0 {
		return nil, fmt.Errorf("unable to coerce %v to integer", original)
	}
	if f >= 1<<63 || f < -(1<<63) {
		return nil, fmt.Errorf("value %v is out of the integer range", original)
	}
	out := int64(f)
	return &out, nil
}

func coerceNumber(value any) (*float64, error) {
	switch v := value.(type) {
	case float64:
		return &v, nil
	case float32:
		out := float64(v)
		return &out, nil
	case int:
		out := float64(v)
		return &out, nil
	case int64:
		out := float64(v)
		return &out, nil
	}

	raw, empty := blank(value)
	if empty {
		return nil, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("unable to coerce %q to number", raw)
	}
	return &f, nil
}

func coerceDate(value any) (*time.Time, error) {
	if t, ok := value.(time.Time); ok {
		day := truncateDate(t)
		return &day, nil
	}

	raw, empty := blank(value)
	if empty {
		return nil, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			day := truncateDate(t)
			return &day, nil
		}
	}
	return nil, fmt.Errorf("unable to coerce %q to date", raw)
}

func truncateDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
