// Package sink renders accepted records into the exchange format.
package sink

import (
	"bufio"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/ThiagoRGoveia/epi-cleaning/internal/models"
)

const (
	ContentType   = "application/json"
	DefaultPrefix = "processed/"
)

// WriteJSON writes records as a single JSON array. An empty batch is "[]".
func WriteJSON(w io.Writer, records []models.CleanRecord) error {
	bw := bufio.NewWriter(w)

	if _, err := bw.WriteString("["); err != nil {
		return err
	}
	for i, rec := range records {
		if i > 0 {
			if _, err := bw.WriteString(","); err != nil {
				return err
			}
		}
		data, err := rec.MarshalJSON()
		if err != nil {
			return fmt.Errorf("failed to encode record %d: %w", rec.ID, err)
		}
		if _, err := bw.Write(data); err != nil {
			return err
		}
	}
	if _, err := bw.WriteString("]"); err != nil {
		return err
	}

	return bw.Flush()
}

// OutputKey places the base name of inputKey under prefix with a .json
// extension: "uploads/casos.csv" becomes "processed/casos.json".
func OutputKey(inputKey, prefix string) string {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	name := path.Base(inputKey)
	name = strings.TrimSuffix(name, ".csv") + ".json"
	return prefix + name
}
