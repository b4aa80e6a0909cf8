package normalizer

import (
	"strings"

	"github.com/maternal-risk/platform/pkg/common/models"
)

// BloodPressure holds a possibly incomplete reading. A nil side is missing.
type BloodPressure struct {
	Systolic  *float64
	Diastolic *float64
}

// NewBloodPressure coerces two raw cells into a reading.
func NewBloodPressure(systolic, diastolic interface{}) BloodPressure {
	return BloodPressure{Systolic: numberPtr(systolic), Diastolic: numberPtr(diastolic)}
}

// ParseBloodPressure reads the combined "systolic/diastolic" form. Only the
// first two slash-separated parts are used; a missing half stays nil.
func ParseBloodPressure(raw interface{}) BloodPressure {
	if isMissing(raw) {
		return BloodPressure{}
	}
	parts := strings.Split(stringify(raw), "/")
	bp := BloodPressure{Systolic: numberPtr(parts[0])}
	if len(parts) > 1 {
		bp.Diastolic = numberPtr(parts[1])
	}
	return bp
}

// Category maps the reading to its clinical band. Rules are evaluated in
// order and the first match wins; missing values always yield
// "Tidak diketahui".
func (bp BloodPressure) Category() string {
	if bp.Systolic == nil || bp.Diastolic == nil {
		return models.BPTidakDiketahui
	}
	s, d := *bp.Systolic, *bp.Diastolic
	switch {
	case s < 90 || d < 60:
		return models.BPHipotensi
	case 90 <= s && s < 120 && 60 <= d && d < 80:
		return models.BPNormal
	case (120 <= s && s < 140) || (80 <= d && d < 90):
		return models.BPPrehipertensi
	case (140 <= s && s < 160) || (90 <= d && d < 100):
		return models.BPHipertensi1
	case s >= 160 || d >= 100:
		return models.BPHipertensi2
	default:
		return models.BPTidakDiketahui
	}
}

// ClassifyBloodPressure is NewBloodPressure(systolic, diastolic).Category().
func ClassifyBloodPressure(systolic, diastolic interface{}) string {
	return NewBloodPressure(systolic, diastolic).Category()
}

func numberPtr(v interface{}) *float64 {
	f, ok := ToNumber(v)
	if !ok {
		return nil
	}
	return &f
}
