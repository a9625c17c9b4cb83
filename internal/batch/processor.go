// Package batch runs the rule pipeline over one input batch and drops
// duplicate cases.
package batch

import (
	"github.com/ThiagoRGoveia/epi-cleaning/internal/models"
	"github.com/ThiagoRGoveia/epi-cleaning/internal/rules"
)

// Evaluator is the per-record contract the processor depends on.
type Evaluator interface {
	Evaluate(raw models.RawRecord) (rules.Result, error)
}

type Processor struct {
	evaluator Evaluator
}

func NewProcessor(evaluator Evaluator) *Processor {
	return &Processor{evaluator: evaluator}
}

// Process returns the accepted records in arrival order, keeping only the
// first record of each identity key.
func (p *Processor) Process(rows []models.RawRecord) []models.CleanRecord {
	cleaned, _ := p.ProcessWithReport(rows)
	return cleaned
}

// ProcessWithReport is Process plus counters of what happened to every row.
// The seen-key set lives only for the duration of this call.
func (p *Processor) ProcessWithReport(rows []models.RawRecord) ([]models.CleanRecord, models.BatchReport) {
	report := models.BatchReport{RejectByRule: make(map[int]int)}
	seen := make(map[string]struct{}, len(rows))
	cleaned := make([]models.CleanRecord, 0, len(rows))

	for _, row := range rows {
		report.RowsRead++

		result, err := p.evaluator.Evaluate(row)
		if err != nil {
			report.Rejected++
			if rejected, ok := rules.IsRejected(err); ok {
				report.RejectByRule[rejected.Rule]++
			}
			continue
		}

		if _, dup := seen[result.Key]; dup {
			report.Duplicates++
			continue
		}
		seen[result.Key] = struct{}{}
		cleaned = append(cleaned, result.Record)
		report.Accepted++
	}

	return cleaned, report
}
