package spectral

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
)

// Validate checks a decoded request body and extracts its reading. The
// checks run in a fixed order and the first failure is returned:
// presence, shape, cardinality, element type, finiteness. Values outside
// [0,1] are reported as anomalies and do not fail validation.
func Validate(raw any) (Validation, error) {
	body, ok := raw.(map[string]any)
	if !ok {
		return Validation{}, &ValidationError{Kind: MissingField, Index: -1}
	}
	values, ok := body[FieldName]
	if !ok {
		return Validation{}, &ValidationError{Kind: MissingField, Index: -1}
	}
	return ValidateValues(values)
}

// ValidateValues runs every check except presence on a bare sequence.
func ValidateValues(values any) (Validation, error) {
	elems, err := sequence(values)
	if err != nil {
		return Validation{}, err
	}
	if len(elems) != ChannelCount {
		return Validation{}, &ValidationError{Kind: InvalidSize, Index: -1, Expected: ChannelCount, Actual: len(elems)}
	}

	floats := make([]float64, len(elems))
	for i, elem := range elems {
		f, ok := toFloat(elem)
		if !ok {
			return Validation{}, &ValidationError{Kind: InvalidType, Index: i, ActualType: typeName(elem)}
		}
		floats[i] = f
	}
	return FromFloats(floats)
}

// FromFloats validates an already numeric sequence.
func FromFloats(values []float64) (Validation, error) {
	if len(values) != ChannelCount {
		return Validation{}, &ValidationError{Kind: InvalidSize, Index: -1, Expected: ChannelCount, Actual: len(values)}
	}

	var v Validation
	for i, f := range values {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return Validation{}, &ValidationError{Kind: InvalidValue, Index: i}
		}
		v.Reading[i] = f
	}
	for i, f := range v.Reading {
		if f < 0 || f > 1 {
			v.Anomalies = append(v.Anomalies, Anomaly{Index: i, Value: f})
		}
	}
	return v, nil
}

func sequence(values any) ([]any, error) {
	if elems, ok := values.([]any); ok {
		return elems, nil
	}
	if values == nil {
		return nil, &ValidationError{Kind: InvalidType, Index: -1, ActualType: typeName(values)}
	}

	rv := reflect.ValueOf(values)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		elems := make([]any, rv.Len())
		for i := range elems {
			elems[i] = rv.Index(i).Interface()
		}
		return elems, nil
	default:
		return nil, &ValidationError{Kind: InvalidType, Index: -1, ActualType: typeName(values)}
	}
}

// toFloat accepts Go numeric types and json.Number. Overflowing
// json.Numbers become ±Inf so the finiteness check reports them.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := strconv.ParseFloat(string(n), 64)
		if err != nil {
			var numErr *strconv.NumError
			if errors.As(err, &numErr) && numErr.Err == strconv.ErrRange {
				return f, true
			}
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// typeName reports v using JSON vocabulary where possible.
func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case string:
		return "string"
	case json.Number:
		return "number"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Map, reflect.Struct:
		return "object"
	case reflect.Slice, reflect.Array:
		return "array"
	}
	return fmt.Sprintf("%T", v)
}
