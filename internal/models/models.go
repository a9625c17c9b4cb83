package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"
)

// RawRecord is one row of the surveillance extract keyed by header name.
// A field that is not in the map is absent, which is not the same as empty.
type RawRecord map[string]string

// Lookup returns the value of field and whether it was present.
func (r RawRecord) Lookup(field string) (string, bool) {
	v, ok := r[field]
	return v, ok
}

// CleanRecord is a notified case after every rule accepted it.
type CleanRecord struct {
	ID              int
	FechaNot        string
	Clasificacion   string
	Ano             int
	Semana          int
	AnioSemana      string
	Diresa          string
	Red             string
	Microred        string
	Establecimiento string
	Institucion     string
	Asintomatico    string
	// Extra holds every input column the rules do not own, untouched.
	Extra map[string]string
}

// Known field names of the surveillance extract.
const (
	FieldID              = "id"
	FieldFechaNot        = "fecha_not"
	FieldClasificacion   = "clasificacion"
	FieldDiresa          = "diresa"
	FieldRed             = "red"
	FieldMicrored        = "microred"
	FieldEstablecimiento = "establecimiento"
	FieldInstitucion     = "institucion"
	FieldAsintomatico    = "asintomatico"
	FieldAno             = "ano"
	FieldSemana          = "semana"
	FieldAnioSemana      = "anio_semana"
)

var ownedFields = map[string]bool{
	FieldID: true, FieldFechaNot: true, FieldClasificacion: true, FieldDiresa: true,
	FieldRed: true, FieldMicrored: true, FieldEstablecimiento: true, FieldInstitucion: true,
	FieldAsintomatico: true, FieldAno: true, FieldSemana: true, FieldAnioSemana: true,
}

// IsOwnedField reports whether the rules produce the field themselves.
func IsOwnedField(name string) bool {
	return ownedFields[name]
}

// MarshalJSON renders the record as a flat object: the rule-owned fields
// first, then pass-through columns sorted by name. id, ano and semana are numbers.
func (c CleanRecord) MarshalJSON() ([]byte, error) {
	out := make([]byte, 0, 256)
	out = append(out, '{')

	write := func(key string, value any) error {
		if len(out) > 1 {
			out = append(out, ',')
		}
		k, err := marshalNoEscape(key)
		if err != nil {
			return err
		}
		v, err := marshalNoEscape(value)
		if err != nil {
			return err
		}
		out = append(out, k...)
		out = append(out, ':')
		out = append(out, v...)
		return nil
	}

	fields := []struct {
		key   string
		value any
	}{
		{FieldID, c.ID},
		{FieldFechaNot, c.FechaNot},
		{FieldClasificacion, c.Clasificacion},
		{FieldDiresa, c.Diresa},
		{FieldRed, c.Red},
		{FieldMicrored, c.Microred},
		{FieldEstablecimiento, c.Establecimiento},
		{FieldInstitucion, c.Institucion},
		{FieldAsintomatico, c.Asintomatico},
		{FieldAno, c.Ano},
		{FieldSemana, c.Semana},
		{FieldAnioSemana, c.AnioSemana},
	}
	for _, f := range fields {
		if err := write(f.key, f.value); err != nil {
			return nil, err
		}
	}

	extraKeys := make([]string, 0, len(c.Extra))
	for k := range c.Extra {
		extraKeys = append(extraKeys, k)
	}
	sort.Strings(extraKeys)
	for _, k := range extraKeys {
		if err := write(k, c.Extra[k]); err != nil {
			return nil, err
		}
	}

	out = append(out, '}')
	return out, nil
}

// marshalNoEscape encodes v without HTML escaping so accented names stay readable.
func marshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	// Encoder always terminates with a newline
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// BatchReport summarises one Processor run.
type BatchReport struct {
	RowsRead     int         `json:"rows_read"`
	Accepted     int         `json:"accepted"`
	Duplicates   int         `json:"duplicates"`
	Rejected     int         `json:"rejected"`
	RejectByRule map[int]int `json:"reject_by_rule"`
}

type AppError struct {
	FileKey string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("File %s: %s - %v", e.FileKey, e.Message, e.Err)
	}
	return fmt.Sprintf("File %s: %s", e.FileKey, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

type FileProcessingJob struct {
	Key string
}

// FileInfo describes an input object found by a scan.
type FileInfo struct {
	Key  string
	Size int64
}

// FileResult is what the driver reports for one input object.
type FileResult struct {
	Key          string      `json:"key"`
	OutputKey    string      `json:"output_key,omitempty"`
	Checksum     string      `json:"checksum,omitempty"`
	Skipped      bool        `json:"skipped"`
	Reason       string      `json:"reason,omitempty"`
	SkippedLines int         `json:"skipped_lines"`
	Report       BatchReport `json:"report"`
}

// FileRecord is a row of the processing ledger.
type FileRecord struct {
	ID          int         `json:"id"`
	FileName    string      `json:"file_name"`
	ProcessedAt time.Time   `json:"processed_at"`
	Status      string      `json:"status"`
	Checksum    string      `json:"checksum"`
	OutputKey   string      `json:"output_key,omitempty"`
	Report      BatchReport `json:"report"`
}

type FileErrorMap struct {
	Errors map[string][]AppError
	Mu     sync.Mutex
}

type ExtractionChannels struct {
	Results chan FileResult
	Errors  chan AppError
	Jobs    chan FileProcessingJob
}

type ExtractionWaitGroups struct {
	FileWg *sync.WaitGroup
	MainWg *sync.WaitGroup
}

type SetupReturn struct {
	Channels      *ExtractionChannels
	WaitGroups    *ExtractionWaitGroups
	FileErrorsMap *FileErrorMap
	Results       *[]FileResult
}

func (s *SetupReturn) GetValues() (*ExtractionChannels, *ExtractionWaitGroups, *FileErrorMap, *[]FileResult) {
	return s.Channels, s.WaitGroups, s.FileErrorsMap, s.Results
}
