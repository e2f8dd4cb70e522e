package service

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sakif/history-api/internal/apperror"
	"github.com/sakif/history-api/internal/serializer"
)

const (
	fieldDatetime = "datetime"
	fieldValue    = "value"
)

const (
	msgRequired        = "datetime and value are required"
	msgInvalidValue    = "value must be a positive number"
	msgValueTooLarge   = "value must be less than 10000000000"
	msgInvalidDatetime = "datetime must be a valid date string"
	msgNoFields        = "no fields to update"
)

// maxValue is the first value that no longer fits NUMERIC(12,2).
var maxValue = decimal.New(1, 10)

// Fields is a decoded JSON object body. Keeping raw values lets validation
// tell an absent key from an explicit null or a value of the wrong type.
type Fields map[string]json.RawMessage

// missing reports whether key is absent or null.
func (f Fields) missing(key string) bool {
	raw, ok := f[key]
	return !ok || isNull(raw)
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// parseValue accepts a JSON number greater than zero. The result is rounded
// to cents and must still be positive after rounding.
func parseValue(raw json.RawMessage) (decimal.Decimal, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || !(raw[0] == '-' || (raw[0] >= '0' && raw[0] <= '9')) || !json.Valid(raw) {
		return decimal.Decimal{}, apperror.ValidationFailed(fieldValue, msgInvalidValue)
	}

	v, err := decimal.NewFromString(string(raw))
	if err != nil {
		return decimal.Decimal{}, apperror.ValidationFailed(fieldValue, msgInvalidValue)
	}
	v = v.Round(2)
	if !v.IsPositive() {
		return decimal.Decimal{}, apperror.ValidationFailed(fieldValue, msgInvalidValue)
	}
	if v.GreaterThanOrEqual(maxValue) {
		return decimal.Decimal{}, apperror.ValidationFailed(fieldValue, msgValueTooLarge)
	}
	return v, nil
}

// parseDatetime accepts a JSON string the datetime validator understands.
func parseDatetime(raw json.RawMessage) (time.Time, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return time.Time{}, apperror.ValidationFailed(fieldDatetime, msgInvalidDatetime)
	}
	t, err := serializer.ParseDatetime(s)
	if err != nil {
		return time.Time{}, apperror.ValidationFailed(fieldDatetime, msgInvalidDatetime)
	}
	return t, nil
}

// isEmptyString reports whether raw is the JSON string "".
func isEmptyString(raw json.RawMessage) bool {
	var s string
	return json.Unmarshal(raw, &s) == nil && s == ""
}
