// Package rules validates and normalizes one surveillance record at a time.
//
// The rules run as an ordered list of steps. A guard rejects the record when
// its condition fails, a transform rewrites fields in place. Evaluation stops
// at the first failing guard and nothing of the partial record is returned.
package rules

import (
	"time"

	"github.com/ThiagoRGoveia/epi-cleaning/internal/models"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

type Kind int

const (
	Guard Kind = iota
	Transform
)

func (k Kind) String() string {
	if k == Guard {
		return "guard"
	}
	return "transform"
}

// Step is one numbered rule of the pipeline.
type Step struct {
	Rule  int
	Name  string
	Kind  Kind
	apply func(*state) error
}

// Result is an accepted record plus the identity key used for deduplication.
// The key is not part of the record.
type Result struct {
	Record models.CleanRecord
	Key    string
}

type Pipeline struct {
	steps []Step
	now   func() time.Time
}

type Option func(*Pipeline)

// WithClock replaces time.Now for the "not in the future" check.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		p.now = now
	}
}

func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps: defaultSteps(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Steps returns the rules in evaluation order.
func (p *Pipeline) Steps() []Step {
	out := make([]Step, len(p.steps))
	copy(out, p.steps)
	return out
}

// Evaluate runs every rule against raw. The input map is never modified.
// The returned error is always a *RejectedError.
func (p *Pipeline) Evaluate(raw models.RawRecord) (Result, error) {
	s := newState(raw, p.now())

	for _, step := range p.steps {
		if err := step.apply(s); err != nil {
			return Result{}, &RejectedError{Rule: step.Rule, Name: step.Name, Reason: err.Error()}
		}
	}

	return Result{Record: s.record(), Key: s.key}, nil
}

// state is the working copy of one record while the rules run over it.
type state struct {
	fields     models.RawRecord
	now        time.Time
	title      cases.Caser
	id         int
	fecha      time.Time
	ano        int
	semana     int
	anioSemana string
	key        string
}

func newState(raw models.RawRecord, now time.Time) *state {
	fields := make(models.RawRecord, len(raw)+1)
	for k, v := range raw {
		fields[k] = v
	}
	return &state{
		fields: fields,
		now:    now,
		// Casers are stateful, one per record keeps Evaluate safe for concurrent use
		title: cases.Title(language.Und),
	}
}

// get treats an absent field as empty.
func (s *state) get(field string) string {
	return s.fields[field]
}

func (s *state) record() models.CleanRecord {
	rec := models.CleanRecord{
		ID:              s.id,
		FechaNot:        s.get(models.FieldFechaNot),
		Clasificacion:   s.get(models.FieldClasificacion),
		Ano:             s.ano,
		Semana:          s.semana,
		AnioSemana:      s.anioSemana,
		Diresa:          s.get(models.FieldDiresa),
		Red:             s.get(models.FieldRed),
		Microred:        s.get(models.FieldMicrored),
		Establecimiento: s.get(models.FieldEstablecimiento),
		Institucion:     s.get(models.FieldInstitucion),
		Asintomatico:    s.get(models.FieldAsintomatico),
	}

	for k, v := range s.fields {
		if models.IsOwnedField(k) {
			continue
		}
		if rec.Extra == nil {
			rec.Extra = make(map[string]string)
		}
		rec.Extra[k] = v
	}
	return rec
}
