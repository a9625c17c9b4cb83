package batch

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ThiagoRGoveia/epi-cleaning/internal/models"
	"github.com/ThiagoRGoveia/epi-cleaning/internal/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockEvaluator struct {
	mock.Mock
}

func (m *MockEvaluator) Evaluate(raw models.RawRecord) (rules.Result, error) {
	args := m.Called(raw)
	return args.Get(0).(rules.Result), args.Error(1)
}

func newTestProcessor() *Processor {
	now := time.Date(2025, 6, 30, 12, 0, 0, 0, time.UTC)
	return NewProcessor(rules.New(rules.WithClock(func() time.Time { return now })))
}

func newRow(id, fecha string) models.RawRecord {
	return models.RawRecord{
		"id":              id,
		"fecha_not":       fecha,
		"clasificacion":   "confirmado",
		"ano":             "2023",
		"semana":          "3",
		"institucion":     "minsa",
		"establecimiento": "posta x",
		"diresa":          "lima",
	}
}

func ids(records []models.CleanRecord) []int {
	out := make([]int, 0, len(records))
	for _, r := range records {
		out = append(out, r.ID)
	}
	return out
}

func TestProcessor_Process(t *testing.T) {
	t.Run("Scenario D: first of two rows with the same identity wins", func(t *testing.T) {
		first := newRow("10", "01/15/2023")
		first["establecimiento"] = "posta a"
		second := newRow("10", "1/15/2023")
		second["establecimiento"] = "posta b"
		second["clasificacion"] = "descartado"

		out := newTestProcessor().Process([]models.RawRecord{first, second})

		require.Len(t, out, 1)
		assert.Equal(t, "POSTA A", out[0].Establecimiento)
		assert.Equal(t, "CONFIRMADO", out[0].Clasificacion)
	})

	t.Run("same id on different dates is not a duplicate", func(t *testing.T) {
		out := newTestProcessor().Process([]models.RawRecord{
			newRow("10", "01/15/2023"),
			newRow("10", "01/16/2023"),
		})

		assert.Len(t, out, 2)
	})

	t.Run("order of first occurrence is preserved and rejects are skipped", func(t *testing.T) {
		rows := []models.RawRecord{
			newRow("3", "01/15/2023"),
			newRow("-1", "01/15/2023"),
			newRow("1", "01/15/2023"),
			newRow("3", "01/15/2023"),
			newRow("2", "01/15/2023"),
			newRow("1", "01/15/2023"),
		}

		out := newTestProcessor().Process(rows)

		assert.Equal(t, []int{3, 1, 2}, ids(out))
	})

	t.Run("a rejected row does not reserve its identity key", func(t *testing.T) {
		bad := newRow("5", "01/15/2023")
		bad["semana"] = "54"
		good := newRow("5", "01/15/2023")

		out := newTestProcessor().Process([]models.RawRecord{bad, good})

		assert.Equal(t, []int{5}, ids(out))
	})

	t.Run("running twice on the same input yields the same output", func(t *testing.T) {
		rows := []models.RawRecord{
			newRow("1", "01/15/2023"),
			newRow("2", "02/15/2023"),
			newRow("1", "01/15/2023"),
		}
		processor := newTestProcessor()

		first := processor.Process(rows)
		second := processor.Process(rows)

		assert.Equal(t, first, second)
		assert.Len(t, second, 2)
	})

	t.Run("empty and nil input produce an empty output", func(t *testing.T) {
		assert.Empty(t, newTestProcessor().Process(nil))
		assert.Empty(t, newTestProcessor().Process([]models.RawRecord{}))
	})
}

func TestProcessor_AcceptedRecordsHoldInvariants(t *testing.T) {
	rows := make([]models.RawRecord, 0, 60)
	clasificaciones := []string{"confirmado", "descartado", "sospechoso", "probable"}
	instituciones := []string{"minsa", "essalud", "ffaa", "pnp", "privado", "otro"}
	for i := 0; i < 60; i++ {
		row := newRow(fmt.Sprint(i-5), fmt.Sprintf("%d/%d/%d", i%12+1, i%28+1, 2013+i%14))
		row["clasificacion"] = clasificaciones[i%len(clasificaciones)]
		row["institucion"] = instituciones[i%len(instituciones)]
		row["ano"] = fmt.Sprint(2018 + i%9)
		row["semana"] = fmt.Sprint(i % 56)
		rows = append(rows, row)
	}

	out, report := newTestProcessor().ProcessWithReport(rows)

	assert.Equal(t, len(rows), report.RowsRead)
	assert.Equal(t, report.RowsRead, report.Accepted+report.Rejected+report.Duplicates)
	for _, rec := range out {
		assert.Contains(t, rules.Clasificaciones, rec.Clasificacion)
		assert.Contains(t, rules.Instituciones, rec.Institucion)
		assert.GreaterOrEqual(t, rec.Ano, rules.MinAno)
		assert.LessOrEqual(t, rec.Ano, rules.MaxAno)
		assert.GreaterOrEqual(t, rec.Semana, rules.MinSemana)
		assert.LessOrEqual(t, rec.Semana, rules.MaxSemana)
		assert.Equal(t, fmt.Sprintf("%d-S%02d", rec.Ano, rec.Semana), rec.AnioSemana)

		fecha, err := time.Parse("2006-01-02", rec.FechaNot)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, fecha.Year(), rules.MinFechaAno)
		assert.Positive(t, rec.ID)
	}
}

func TestProcessor_ProcessWithReport(t *testing.T) {
	t.Run("counts accepted duplicate and rejected rows per rule", func(t *testing.T) {
		noID := newRow("", "01/15/2023")
		badWeek := newRow("4", "01/15/2023")
		badWeek["semana"] = "60"
		sinDato := newRow("5", "01/15/2023")
		sinDato["establecimiento"] = "sin dato"

		rows := []models.RawRecord{
			newRow("1", "01/15/2023"),
			newRow("1", "01/15/2023"),
			noID,
			badWeek,
			sinDato,
			newRow("2", "01/15/2023"),
		}

		out, report := newTestProcessor().ProcessWithReport(rows)

		assert.Len(t, out, 2)
		assert.Equal(t, models.BatchReport{
			RowsRead:     6,
			Accepted:     2,
			Duplicates:   1,
			Rejected:     3,
			RejectByRule: map[int]int{1: 1, 7: 1, 10: 1},
		}, report)
	})

	t.Run("uses the injected evaluator", func(t *testing.T) {
		evaluator := new(MockEvaluator)
		a := models.RawRecord{"id": "a"}
		b := models.RawRecord{"id": "b"}
		c := models.RawRecord{"id": "c"}
		evaluator.On("Evaluate", a).Return(rules.Result{Record: models.CleanRecord{ID: 1}, Key: "k1"}, nil).Once()
		evaluator.On("Evaluate", b).Return(rules.Result{}, &rules.RejectedError{Rule: 8, Name: "clasificacion_set"}).Once()
		evaluator.On("Evaluate", c).Return(rules.Result{}, errors.New("unexpected")).Once()

		out, report := NewProcessor(evaluator).ProcessWithReport([]models.RawRecord{a, b, c})

		assert.Equal(t, []int{1}, ids(out))
		assert.Equal(t, 2, report.Rejected)
		assert.Equal(t, map[int]int{8: 1}, report.RejectByRule)
		evaluator.AssertExpectations(t)
	})
}
