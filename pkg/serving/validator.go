package serving

import (
	"errors"
	"fmt"
	"strings"

	"github.com/maternal-risk/platform/pkg/common/models"
)

var (
	errMissingName  = errors.New("nama_pasien is required")
	errEmptyUpload  = errors.New("file contains no patient rows")
	errNoPrediction = errors.New("record has no hasil_prediksi")
	errUnknownLabel = errors.New("hasil_prediksi is not a known risk label")
)

type ValidationError struct {
	reason error
}

func (e ValidationError) Error() string {
	return e.reason.Error()
}

func (e ValidationError) Unwrap() error {
	return e.reason
}

func IsValidationError(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}

type numericRange struct {
	field    string
	min, max float64
	open     bool
}

// Entry form bounds. open means no upper bound.
var formRanges = []numericRange{
	{field: models.ColUmurIbu, min: 15, max: 60},
	{field: models.ColGravida, min: 1, open: true},
	{field: models.ColUmurKehamilan, min: 4, max: 45},
	{field: models.ColTinggiBadan, min: 130, max: 200},
	{field: models.ColTekananSistolik, min: 70, max: 250},
	{field: models.ColTekananDiastolik, min: 40, max: 150},
}

var formChoices = []struct {
	field   string
	allowed []string
}{
	{models.ColPenyakitAnemia, []string{models.Negatif, models.Positif}},
	{models.ColPosisiJanin, []string{models.Normal, models.Abnormal}},
	{models.ColHasilTesVDRL, []string{models.Negatif, models.Positif}},
	{models.ColHasilTesHbsAg, []string{models.Negatif, models.Positif}},
}

// ValidateIndividual checks the entry form. For a pregnant account holder the
// patient is the account holder, so the name is taken from the profile.
func ValidateIndividual(in models.IndividualInput, owner Owner) (models.IndividualInput, error) {
	if owner.Profesi == models.ProfesiIbuHamil {
		in.NamaPasien = owner.NamaLengkap
	}
	in.NamaPasien = strings.TrimSpace(in.NamaPasien)
	if in.NamaPasien == "" {
		return in, ValidationError{reason: errMissingName}
	}

	rec := in.Record()
	for _, r := range formRanges {
		v, _ := rec[r.field].(float64)
		if iv, ok := rec[r.field].(int); ok {
			v = float64(iv)
		}
		if v < r.min || (!r.open && v > r.max) {
			if r.open {
				return in, ValidationError{reason: fmt.Errorf("%s must be at least %g", r.field, r.min)}
			}
			return in, ValidationError{reason: fmt.Errorf("%s must be between %g and %g", r.field, r.min, r.max)}
		}
	}
	for _, c := range formChoices {
		value, _ := rec[c.field].(string)
		if !contains(c.allowed, value) {
			return in, ValidationError{reason: fmt.Errorf("%s must be one of %s", c.field, strings.Join(c.allowed, ", "))}
		}
	}
	return in, nil
}

func contains(values []string, v string) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}
