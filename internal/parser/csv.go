package parser

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ThiagoRGoveia/epi-cleaning/internal/models"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ErrInputTooLarge is returned when a resource exceeds the configured size.
var ErrInputTooLarge = errors.New("input exceeds maximum size")

// ParseResult holds the decoded rows and how many lines could not be decoded.
type ParseResult struct {
	Records      []models.RawRecord
	SkippedLines int
}

// ReadRecords decodes a comma separated resource whose first row is the header.
// Rows shorter than the header leave the trailing fields absent, extra cells
// are ignored, and lines the csv reader cannot decode are skipped.
func ReadRecords(r io.Reader) (*ParseResult, error) {
	br := bufio.NewReader(r)
	if prefix, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(prefix, utf8BOM) {
		if _, err := br.Discard(len(utf8BOM)); err != nil {
			return nil, fmt.Errorf("failed to skip byte order mark: %w", err)
		}
	}

	reader := csv.NewReader(br)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return &ParseResult{}, nil
		}
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	result := &ParseResult{}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				// Skip corrupted lines
				result.SkippedLines++
				continue
			}
			return nil, fmt.Errorf("failed to read record: %w", err)
		}

		result.Records = append(result.Records, toRawRecord(header, record))
	}

	return result, nil
}

// ReadAllLimited reads r to the end, failing with ErrInputTooLarge once more
// than maxBytes were seen. A maxBytes of zero or less disables the limit.
func ReadAllLimited(r io.Reader, maxBytes int64) ([]byte, error) {
	if maxBytes <= 0 {
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("failed to read input: %w", err)
		}
		return data, nil
	}

	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w: limit is %d bytes", ErrInputTooLarge, maxBytes)
	}

	return data, nil
}

func toRawRecord(header, record []string) models.RawRecord {
	row := make(models.RawRecord, len(header))
	for i, name := range header {
		if i >= len(record) {
			break
		}
		row[name] = record[i]
	}
	return row
}
