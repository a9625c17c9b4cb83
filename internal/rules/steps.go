package rules

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/ThiagoRGoveia/epi-cleaning/internal/models"
)

const (
	notificationDateLayout = "1/2/2006"
	isoDateLayout          = "2006-01-02"

	defaultAsintomatico  = "NO ESPECIFICADO"
	emptyAsintomatico    = "NO"
	missingEstablishment = "SIN DATO"

	MinSemana   = 1
	MaxSemana   = 53
	MinAno      = 2020
	MaxAno      = 2025
	MinFechaAno = 2015
)

var (
	Clasificaciones = []string{"CONFIRMADO", "DESCARTADO", "SOSPECHOSO"}
	Instituciones   = []string{"MINSA", "ESSALUD", "FFAA", "PNP", "PRIVADO"}

	upperCasedFields = []string{
		models.FieldDiresa,
		models.FieldRed,
		models.FieldMicrored,
		models.FieldEstablecimiento,
		models.FieldInstitucion,
		models.FieldClasificacion,
	}
	unquotedFields   = []string{models.FieldMicrored, models.FieldEstablecimiento}
	sanitizedFields  = []string{models.FieldDiresa, models.FieldRed, models.FieldMicrored, models.FieldEstablecimiento}
	titleCasedFields = []string{models.FieldDiresa, models.FieldRed, models.FieldMicrored}

	quoteStripper = strings.NewReplacer(`"`, "", "'", "")
)

func defaultSteps() []Step {
	return []Step{
		{Rule: 1, Name: "positive_id", Kind: Guard, apply: parseID},
		{Rule: 2, Name: "required_fields", Kind: Guard, apply: requireCriticalFields},
		{Rule: 3, Name: "uppercase_fields", Kind: Transform, apply: upperCaseFields},
		{Rule: 4, Name: "asintomatico_default", Kind: Transform, apply: defaultAsintomaticoValue},
		{Rule: 5, Name: "notification_date", Kind: Guard, apply: parseNotificationDate},
		{Rule: 6, Name: "year_and_week", Kind: Guard, apply: parseYearAndWeek},
		{Rule: 7, Name: "week_range", Kind: Guard, apply: checkWeekRange},
		{Rule: 8, Name: "clasificacion_set", Kind: Guard, apply: checkClasificacion},
		{Rule: 9, Name: "institucion_spaces", Kind: Transform, apply: collapseInstitucionSpaces},
		{Rule: 10, Name: "establecimiento_sin_dato", Kind: Guard, apply: rejectMissingEstablishment},
		{Rule: 11, Name: "anio_semana", Kind: Transform, apply: deriveAnioSemana},
		{Rule: 12, Name: "strip_quotes", Kind: Transform, apply: stripQuotes},
		{Rule: 13, Name: "strip_special_chars", Kind: Transform, apply: stripSpecialChars},
		{Rule: 14, Name: "institucion_set", Kind: Guard, apply: checkInstitucion},
		{Rule: 15, Name: "asintomatico_empty", Kind: Transform, apply: fillEmptyAsintomatico},
		{Rule: 16, Name: "title_case_fields", Kind: Transform, apply: titleCaseFields},
		{Rule: 17, Name: "year_range", Kind: Guard, apply: checkYearRange},
		{Rule: 18, Name: "numeric_id_text", Kind: Guard, apply: checkIDDigits},
		{Rule: 19, Name: "date_not_before_2015", Kind: Guard, apply: checkDateFloor},
		{Rule: 20, Name: "identity_key", Kind: Transform, apply: deriveIdentityKey},
	}
}

func parseID(s *state) error {
	raw, ok := s.fields.Lookup(models.FieldID)
	if !ok {
		return reject("id is missing")
	}
	id, err := parseInteger(raw)
	if err != nil {
		return rejectf("id %q is not an integer", raw)
	}
	if id <= 0 {
		return rejectf("id %d is not positive", id)
	}
	s.id = id
	return nil
}

func requireCriticalFields(s *state) error {
	for _, field := range []string{models.FieldFechaNot, models.FieldClasificacion} {
		if s.get(field) == "" {
			return rejectf("%s is missing or empty", field)
		}
	}
	return nil
}

func upperCaseFields(s *state) error {
	for _, field := range upperCasedFields {
		if v := s.get(field); v != "" {
			s.fields[field] = strings.ToUpper(strings.TrimSpace(v))
		}
	}
	return nil
}

func defaultAsintomaticoValue(s *state) error {
	v, ok := s.fields.Lookup(models.FieldAsintomatico)
	if !ok {
		v = defaultAsintomatico
	}
	s.fields[models.FieldAsintomatico] = strings.ToUpper(strings.TrimSpace(v))
	return nil
}

func parseNotificationDate(s *state) error {
	raw := s.get(models.FieldFechaNot)
	fecha, err := time.ParseInLocation(notificationDateLayout, raw, s.now.Location())
	if err != nil {
		return rejectf("fecha_not %q is not a month/day/year date", raw)
	}
	if fecha.After(s.now) {
		return rejectf("fecha_not %s is in the future", fecha.Format(isoDateLayout))
	}
	s.fecha = fecha
	s.fields[models.FieldFechaNot] = fecha.Format(isoDateLayout)
	return nil
}

func parseYearAndWeek(s *state) error {
	ano, err := parseIntField(s, models.FieldAno)
	if err != nil {
		return err
	}
	semana, err := parseIntField(s, models.FieldSemana)
	if err != nil {
		return err
	}
	s.ano, s.semana = ano, semana
	return nil
}

func parseIntField(s *state, field string) (int, error) {
	raw, ok := s.fields.Lookup(field)
	if !ok {
		return 0, rejectf("%s is missing", field)
	}
	n, err := parseInteger(raw)
	if err != nil {
		return 0, rejectf("%s %q is not an integer", field, raw)
	}
	return n, nil
}

// parseInteger reads a decimal integer allowing surrounding whitespace, one
// leading sign and single underscores between digits ("1_000").
func parseInteger(raw string) (int, error) {
	text := strings.TrimSpace(raw)
	sign := ""
	if strings.HasPrefix(text, "+") || strings.HasPrefix(text, "-") {
		sign, text = text[:1], text[1:]
	}
	if text == "" || text[0] == '_' || text[len(text)-1] == '_' || strings.Contains(text, "__") {
		return 0, fmt.Errorf("invalid integer %q", raw)
	}
	for _, r := range text {
		if r != '_' && (r < '0' || r > '9') {
			return 0, fmt.Errorf("invalid integer %q", raw)
		}
	}
	return strconv.Atoi(sign + strings.ReplaceAll(text, "_", ""))
}

func checkWeekRange(s *state) error {
	if s.semana < MinSemana || s.semana > MaxSemana {
		return rejectf("semana %d outside [%d, %d]", s.semana, MinSemana, MaxSemana)
	}
	return nil
}

func checkClasificacion(s *state) error {
	v := s.get(models.FieldClasificacion)
	if !slices.Contains(Clasificaciones, v) {
		return rejectf("clasificacion %q is not allowed", v)
	}
	return nil
}

func collapseInstitucionSpaces(s *state) error {
	s.fields[models.FieldInstitucion] = strings.TrimSpace(strings.ReplaceAll(s.get(models.FieldInstitucion), "  ", " "))
	return nil
}

func rejectMissingEstablishment(s *state) error {
	if strings.Contains(s.get(models.FieldEstablecimiento), missingEstablishment) {
		return rejectf("establecimiento is %q", s.get(models.FieldEstablecimiento))
	}
	return nil
}

func deriveAnioSemana(s *state) error {
	s.anioSemana = fmt.Sprintf("%d-S%02d", s.ano, s.semana)
	return nil
}

func stripQuotes(s *state) error {
	for _, field := range unquotedFields {
		s.fields[field] = strings.TrimSpace(quoteStripper.Replace(s.get(field)))
	}
	return nil
}

func stripSpecialChars(s *state) error {
	for _, field := range sanitizedFields {
		s.fields[field] = strings.TrimSpace(keepAlnumAndSpace(s.get(field)))
	}
	return nil
}

func keepAlnumAndSpace(v string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.IsSpace(r) {
			return r
		}
		return -1
	}, v)
}

func checkInstitucion(s *state) error {
	v := s.get(models.FieldInstitucion)
	if !slices.Contains(Instituciones, v) {
		return rejectf("institucion %q is not allowed", v)
	}
	return nil
}

func fillEmptyAsintomatico(s *state) error {
	if strings.TrimSpace(s.get(models.FieldAsintomatico)) == "" {
		s.fields[models.FieldAsintomatico] = emptyAsintomatico
	}
	return nil
}

func titleCaseFields(s *state) error {
	for _, field := range titleCasedFields {
		s.fields[field] = s.title.String(s.get(field))
	}
	return nil
}

func checkYearRange(s *state) error {
	if s.ano < MinAno || s.ano > MaxAno {
		return rejectf("ano %d outside [%d, %d]", s.ano, MinAno, MaxAno)
	}
	return nil
}

// checkIDDigits re-checks the parsed id in its textual form.
func checkIDDigits(s *state) error {
	text := strconv.Itoa(s.id)
	for _, r := range text {
		if r < '0' || r > '9' {
			return rejectf("id %q has non-digit characters", text)
		}
	}
	return nil
}

func checkDateFloor(s *state) error {
	if s.fecha.Year() < MinFechaAno {
		return rejectf("fecha_not year %d is before %d", s.fecha.Year(), MinFechaAno)
	}
	return nil
}

func deriveIdentityKey(s *state) error {
	s.key = fmt.Sprintf("%d_%s", s.id, s.get(models.FieldFechaNot))
	return nil
}
