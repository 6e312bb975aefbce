package helpers

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/farellandr/ridehail/internal/apperrors"
)

const minorUnitsPerUnit = 100

// Amount is a whole currency amount sent either as a JSON string ("25") or a
// JSON number (25). The raw text is kept so it can be validated after binding.
type Amount string

func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*a = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = Amount(strings.TrimSpace(s))
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return apperrors.FieldError("amount", "amount must be a number")
		}
		*a = Amount(n.String())
	}
	return nil
}

func (a Amount) IsZero() bool {
	return a == ""
}

// Units parses the amount as a positive whole number of currency units.
func (a Amount) Units() (int64, error) {
	units, err := strconv.ParseInt(string(a), 10, 64)
	if err != nil {
		return 0, apperrors.FieldError("amount", "amount must be a whole number")
	}
	if units <= 0 {
		return 0, apperrors.FieldError("amount", "amount must be greater than zero")
	}
	return units, nil
}

// MinorUnits returns the amount in cents.
func (a Amount) MinorUnits() (int64, error) {
	units, err := a.Units()
	if err != nil {
		return 0, err
	}
	if units > math.MaxInt64/minorUnitsPerUnit {
		return 0, apperrors.FieldError("amount", "amount is too large")
	}
	return units * minorUnitsPerUnit, nil
}
