package types

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// DecodeParams parses a parameter payload: a JSON array whose elements are
// tagged values or bare scalars. Anything else is a decode error.
func DecodeParams(payload string) ([]ColumnValue, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal([]byte(payload), &elems); err != nil {
		return nil, fmt.Errorf("parameters must be a JSON array: %w", err)
	}
	params := make([]ColumnValue, 0, len(elems))
	for i, raw := range elems {
		v, err := decodeParam(raw)
		if err != nil {
			return nil, fmt.Errorf("parameter %d: %w", i, err)
		}
		params = append(params, v)
	}
	return params, nil
}

func decodeParam(raw json.RawMessage) (ColumnValue, error) {
	if len(raw) == 0 {
		return ColumnValue{}, fmt.Errorf("empty parameter")
	}
	switch raw[0] {
	case '{':
		var v ColumnValue
		if err := json.Unmarshal(raw, &v); err != nil {
			return ColumnValue{}, err
		}
		return v, nil
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ColumnValue{}, err
		}
		return Text(s), nil
	case 'n':
		if string(raw) != "null" {
			return ColumnValue{}, fmt.Errorf("unrecognized literal %q", raw)
		}
		return Null(), nil
	case '[', 't', 'f':
		return ColumnValue{}, fmt.Errorf("unsupported parameter shape %q", raw)
	default:
		// Bare numeric literal. Integral literals decode as integer,
		// everything else ("4.0", "1e3") as real.
		lit := string(raw)
		if i, err := strconv.ParseInt(lit, 10, 64); err == nil {
			return Integer(i), nil
		}
		f, err := strconv.ParseFloat(lit, 64)
		if err != nil {
			return ColumnValue{}, fmt.Errorf("invalid numeric literal %q", lit)
		}
		return Real(f), nil
	}
}

// DecodeBatch parses a batch payload: a JSON array of SQL statement strings.
func DecodeBatch(payload string) ([]string, error) {
	var stmts []string
	if err := json.Unmarshal([]byte(payload), &stmts); err != nil {
		return nil, fmt.Errorf("batch must be a JSON array of SQL strings: %w", err)
	}
	return stmts, nil
}

// EncodeResult serializes a query result to its wire form.
func EncodeResult(result *QueryResult) (string, error) {
	b, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("failed to encode result: %w", err)
	}
	return string(b), nil
}

// EncodeRows serializes a batch of rows, the payload of one cursor fetch.
// A nil or empty batch encodes as the empty array.
func EncodeRows(rows []Row) (string, error) {
	if rows == nil {
		rows = []Row{}
	}
	b, err := json.Marshal(rows)
	if err != nil {
		return "", fmt.Errorf("failed to encode rows: %w", err)
	}
	return string(b), nil
}

// DecodeResult parses a wire-form result back into typed form. The session
// layer does not need this; it exists so tests and Go-side callers of the
// bridge can round-trip payloads.
func DecodeResult(payload string) (*QueryResult, error) {
	var result QueryResult
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return nil, fmt.Errorf("failed to decode result: %w", err)
	}
	return &result, nil
}

// DecodeRows parses a wire-form row batch.
func DecodeRows(payload string) ([]Row, error) {
	var rows []Row
	if err := json.Unmarshal([]byte(payload), &rows); err != nil {
		return nil, fmt.Errorf("failed to decode rows: %w", err)
	}
	return rows, nil
}
