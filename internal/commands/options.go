package commands

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// Limits on user input
const (
	MaxTimeout      = 28 * 24 * time.Hour
	MaxDeleteDays   = 7
	MaxMassBan      = 200
	MaxReasonLength = 512
	MaxNoteLength   = 1024
	MaxNickLength   = 32
	MaxPage         = 1000
	DefaultModLog   = 10
	MaxModLog       = 25
)

// ValidationError is user input the command cannot accept
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

func invalidf(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Options are the arguments of an invocation. User and channel options
// hold IDs; integers are int64.
type Options map[string]any

// String returns a string option, or "" when absent
func (o Options) String(name string) string {
	s, _ := o[name].(string)
	return strings.TrimSpace(s)
}

// Int returns an integer option and whether it was supplied
func (o Options) Int(name string) (int64, bool) {
	switch v := o[name].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		return int64(v), true
	default:
		return 0, false
	}
}

// Bool returns a boolean option, false when absent
func (o Options) Bool(name string) bool {
	b, _ := o[name].(bool)
	return b
}

// RequireString returns a non-empty string option of at most max runes
func (o Options) RequireString(name string, max int) (string, error) {
	s := o.String(name)
	if s == "" {
		return "", invalidf(name, "%s is required.", name)
	}
	if max > 0 && len([]rune(s)) > max {
		return "", invalidf(name, "%s must be at most %d characters.", name, max)
	}
	return s, nil
}

// OptionalString returns a string option of at most max runes
func (o Options) OptionalString(name string, max int) (string, error) {
	s := o.String(name)
	if max > 0 && len([]rune(s)) > max {
		return "", invalidf(name, "%s must be at most %d characters.", name, max)
	}
	return s, nil
}

// IntInRange returns an integer option within [lo, hi], or def when absent
func (o Options) IntInRange(name string, lo, hi, def int64) (int64, error) {
	v, ok := o.Int(name)
	if !ok {
		return def, nil
	}
	if v < lo || v > hi {
		return 0, invalidf(name, "%s must be between %d and %d.", name, lo, hi)
	}
	return v, nil
}

// ID returns a numeric identifier option such as a warning ID
func (o Options) ID(name string) (int64, error) {
	if v, ok := o.Int(name); ok {
		if v <= 0 {
			return 0, invalidf(name, "%s must be a positive number.", name)
		}
		return v, nil
	}
	s := strings.TrimPrefix(o.String(name), "#")
	if s == "" {
		return 0, invalidf(name, "%s is required.", name)
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v <= 0 {
		return 0, invalidf(name, "%q is not a valid ID.", s)
	}
	return v, nil
}

var durationUnits = map[string]time.Duration{
	"s": time.Second,
	"m": time.Minute,
	"h": time.Hour,
	"d": 24 * time.Hour,
	"w": 7 * 24 * time.Hour,
}

// ParseDuration parses durations such as "30m", "2h" or "1d12h". Day and
// week units are accepted alongside the time.ParseDuration ones.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), " ", ""))
	if s == "" {
		return 0, invalidf("duration", "duration is required.")
	}

	var total time.Duration
	for s != "" {
		i := 0
		for i < len(s) && unicode.IsDigit(rune(s[i])) {
			i++
		}
		if i == 0 {
			return 0, invalidf("duration", "%q is not a valid duration. Use forms like 10m, 2h or 1d.", s)
		}
		n, err := strconv.Atoi(s[:i])
		if err != nil {
			return 0, invalidf("duration", "%q is out of range.", s[:i])
		}

		j := i
		for j < len(s) && unicode.IsLetter(rune(s[j])) {
			j++
		}
		unit, ok := durationUnits[s[i:j]]
		if !ok {
			return 0, invalidf("duration", "unknown unit %q. Use s, m, h, d or w.", s[i:j])
		}
		if time.Duration(n) > MaxTimeout/unit {
			return 0, invalidf("duration", "maximum timeout is 28 days.")
		}
		total += time.Duration(n) * unit
		if total > MaxTimeout {
			return 0, invalidf("duration", "maximum timeout is 28 days.")
		}
		s = s[j:]
	}

	if total <= 0 {
		return 0, invalidf("duration", "duration must be positive.")
	}
	return total, nil
}

// FormatDuration renders a duration in days, hours and minutes
func FormatDuration(d time.Duration) string {
	days := d / (24 * time.Hour)
	d -= days * 24 * time.Hour
	hours := d / time.Hour
	d -= hours * time.Hour
	minutes := d / time.Minute
	seconds := (d - minutes*time.Minute) / time.Second

	var parts []string
	if days > 0 {
		parts = append(parts, plural(int(days), "day"))
	}
	if hours > 0 {
		parts = append(parts, plural(int(hours), "hour"))
	}
	if minutes > 0 {
		parts = append(parts, plural(int(minutes), "minute"))
	}
	if seconds > 0 || len(parts) == 0 {
		parts = append(parts, plural(int(seconds), "second"))
	}
	return strings.Join(parts, " ")
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

var snowflake = regexp.MustCompile(`\d{17,20}`)

// ParseUserIDs extracts unique user IDs from free text, in order
func ParseUserIDs(s string) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, id := range snowflake.FindAllString(s, -1) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids
}
