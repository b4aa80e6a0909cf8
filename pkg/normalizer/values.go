package normalizer

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var digitRun = regexp.MustCompile(`\d+`)

// isMissing reports whether a cell holds no value.
func isMissing(v interface{}) bool {
	if v == nil {
		return true
	}
	if f, ok := v.(float64); ok && math.IsNaN(f) {
		return true
	}
	return false
}

// stringify renders a cell the way it would be printed in a table export.
// Whole floats print without a fractional part.
func stringify(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case json.Number:
		return val.String()
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

// ToNumber coerces a cell to a finite float. Strings are trimmed and parsed;
// anything that does not parse, and NaN, reports false.
func ToNumber(v interface{}) (float64, bool) {
	var f float64
	switch val := v.(type) {
	case nil:
		return 0, false
	case float64:
		f = val
	case float32:
		f = float64(val)
	case int:
		f = float64(val)
	case int64:
		f = float64(val)
	case int32:
		f = float64(val)
	case json.Number:
		parsed, err := val.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// ExtractCount returns the first run of decimal digits in the cell's text as
// an integer, or 0 when there is none ("3rd" -> 3, "25 week" -> 25).
func ExtractCount(v interface{}) int {
	if isMissing(v) {
		return 0
	}
	match := digitRun.FindString(stringify(v))
	if match == "" {
		return 0
	}
	n, err := strconv.Atoi(match)
	if err != nil {
		return 0
	}
	return n
}

// FeetInchesToCentimeters converts a "feet.inches" token such as "5.6" or
// `5'.6"`. Quote characters are ignored. ok is false when the text is not
// exactly two numeric parts around a single dot.
func FeetInchesToCentimeters(token string) (float64, bool) {
	cleaned := strings.NewReplacer(`"`, "", "'", "").Replace(token)
	parts := strings.Split(cleaned, ".")
	if len(parts) != 2 {
		return 0, false
	}
	feet, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, false
	}
	inches, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, false
	}
	cm := feet*30.48 + inches*2.54
	if math.IsNaN(cm) || math.IsInf(cm, 0) {
		return 0, false
	}
	return math.Round(cm*100) / 100, true
}
