package mag

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// ExprLimits begrenzt die Größe eines einzelnen Ausdrucks. Null bedeutet "unbegrenzt".
type ExprLimits struct {
	MaxLength int
	MaxTerms  int
}

// ErrInvalidValue wird zurückgegeben, wenn ein String-Wert ein einfaches Anführungszeichen enthält.
// Die Ausdruckssprache kennt kein Escaping innerhalb von '...'.
var ErrInvalidValue = errors.New("value contains a single quote")

// ErrTermTooLong wird zurückgegeben, wenn schon ein einzelner Term das Längenlimit überschreitet.
var ErrTermTooLong = errors.New("term exceeds expression length limit")

// DateWindow ist ein geschlossenes Datumsintervall für den "D"-Filter.
type DateWindow struct {
	Start time.Time
	End   time.Time
}

func (w DateWindow) String() string {
	return fmt.Sprintf("['%s', '%s']", w.Start.Format(dateLayout), w.End.Format(dateLayout))
}

func formatValue[T int64 | string](v T) (string, error) {
	switch x := any(v).(type) {
	case int64:
		return strconv.FormatInt(x, 10), nil
	case string:
		if strings.Contains(x, "'") {
			return "", fmt.Errorf("%w: %q", ErrInvalidValue, x)
		}
		return "'" + x + "'", nil
	}
	return "", nil
}

// BuildExpr verteilt die Werte auf einen oder mehrere "expr=OR(...)"-Ausdrücke.
// Die Reihenfolge bleibt erhalten und kein Term wird auf zwei Ausdrücke aufgeteilt.
func BuildExpr[T int64 | string](values []T, field string, limits ExprLimits) ([]string, error) {
	const prefix, suffix = "expr=OR(", ")"

	var (
		exprs []string
		terms []string
		size  int
	)
	flush := func() {
		if len(terms) == 0 {
			return
		}
		exprs = append(exprs, prefix+strings.Join(terms, ",")+suffix)
		terms = terms[:0]
		size = 0
	}

	for _, v := range values {
		value, err := formatValue(v)
		if err != nil {
			return nil, err
		}
		term := field + "=" + value
		if limits.MaxLength > 0 && len(prefix)+len(term)+len(suffix) > limits.MaxLength {
			return nil, fmt.Errorf("%w: %q", ErrTermTooLong, term)
		}

		next := size + len(term)
		if len(terms) > 0 {
			next++ // Komma
		}
		tooLong := limits.MaxLength > 0 && len(prefix)+next+len(suffix) > limits.MaxLength
		tooMany := limits.MaxTerms > 0 && len(terms) >= limits.MaxTerms
		if len(terms) > 0 && (tooLong || tooMany) {
			flush()
			next = len(term)
		}
		terms = append(terms, term)
		size = next
	}
	flush()
	return exprs, nil
}

// BuildCompositeExpr verknüpft die Werte per OR und schränkt jeden Term optional auf ein Zeitfenster ein.
// Verschachtelte Attribute wie "F.FN" werden in Composite(...) eingeschlossen.
func BuildCompositeExpr(values []string, field string, window *DateWindow) (string, error) {
	terms := make([]string, 0, len(values))
	for _, v := range values {
		value, err := formatValue(v)
		if err != nil {
			return "", err
		}
		term := field + "=" + value
		if strings.Contains(field, ".") {
			term = "Composite(" + term + ")"
		}
		if window != nil {
			term = fmt.Sprintf("And(%s, D=%s)", term, window)
		}
		terms = append(terms, term)
	}
	return "expr=OR(" + strings.Join(terms, ", ") + ")", nil
}

// DateWindows teilt [start, end] in periods gleich lange, aufeinanderfolgende Fenster.
func DateWindows(start, end time.Time, periods int) []DateWindow {
	if periods <= 0 || end.Before(start) {
		return nil
	}
	step := end.Sub(start) / time.Duration(periods)
	points := make([]time.Time, 0, periods+1)
	for i := 0; i < periods; i++ {
		points = append(points, start.Add(step*time.Duration(i)))
	}
	points = append(points, end)

	windows := make([]DateWindow, 0, periods)
	for i := 0; i+1 < len(points); i++ {
		windows = append(windows, DateWindow{Start: points[i], End: points[i+1]})
	}
	return windows
}

// TotalIntervals gibt die Anzahl der Fenster für den Zeitraum zurück (angefangene Jahre zählen voll).
func TotalIntervals(start, end time.Time, perYear int) int {
	years := end.Year() - start.Year()
	if years < 0 {
		years = -years
	}
	return (years + 1) * perYear
}

// ParseDate liest ein Datum im Format YYYY-MM-DD.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(dateLayout, s)
}
