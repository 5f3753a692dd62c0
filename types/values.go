package types

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"
)

// ValueKind tags a ColumnValue with its SQL storage class.
type ValueKind string

const (
	KindNull    ValueKind = "null"
	KindInteger ValueKind = "integer"
	KindReal    ValueKind = "real"
	KindText    ValueKind = "text"
	KindBlob    ValueKind = "blob"
)

// ColumnValue is the tagged variant carried across the boundary for both
// parameters and result cells. Exactly one of the value fields is
// meaningful, selected by Kind.
type ColumnValue struct {
	Kind ValueKind
	Int  int64
	Real float64
	Text string
	Blob []byte
}

// Null returns the SQL NULL value.
func Null() ColumnValue { return ColumnValue{Kind: KindNull} }

// Integer wraps a 64-bit signed integer.
func Integer(v int64) ColumnValue { return ColumnValue{Kind: KindInteger, Int: v} }

// Real wraps a 64-bit float.
func Real(v float64) ColumnValue { return ColumnValue{Kind: KindReal, Real: v} }

// Text wraps a UTF-8 string.
func Text(v string) ColumnValue { return ColumnValue{Kind: KindText, Text: v} }

// Blob wraps binary data.
func Blob(v []byte) ColumnValue { return ColumnValue{Kind: KindBlob, Blob: v} }

// Arg converts the value into a database/sql argument.
func (v ColumnValue) Arg() interface{} {
	switch v.Kind {
	case KindInteger:
		return v.Int
	case KindReal:
		return v.Real
	case KindText:
		return v.Text
	case KindBlob:
		return v.Blob
	default:
		return nil
	}
}

// Equal reports whether two values have the same kind and payload.
func (v ColumnValue) Equal(o ColumnValue) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindInteger:
		return v.Int == o.Int
	case KindReal:
		return v.Real == o.Real
	case KindText:
		return v.Text == o.Text
	case KindBlob:
		return string(v.Blob) == string(o.Blob)
	default:
		return true
	}
}

// taggedValue is the JSON wire form of a ColumnValue.
type taggedValue struct {
	Type  ValueKind       `json:"type"`
	Value json.RawMessage `json:"value,omitempty"`
}

// MarshalJSON writes the tagged wire form.
func (v ColumnValue) MarshalJSON() ([]byte, error) {
	out := taggedValue{Type: v.Kind}
	var err error
	switch v.Kind {
	case KindNull:
		// no value field
	case KindInteger:
		out.Value, err = json.Marshal(v.Int)
	case KindReal:
		out.Value, err = json.Marshal(v.Real)
	case KindText:
		out.Value, err = json.Marshal(v.Text)
	case KindBlob:
		out.Value, err = json.Marshal(base64.StdEncoding.EncodeToString(v.Blob))
	default:
		return nil, fmt.Errorf("unknown value kind %q", v.Kind)
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts the tagged wire form only. Bare scalars are handled
// one level up in DecodeParams, where the surrounding array is visible.
func (v *ColumnValue) UnmarshalJSON(data []byte) error {
	var tag taggedValue
	if err := json.Unmarshal(data, &tag); err != nil {
		return err
	}
	return v.fromTagged(tag)
}

func (v *ColumnValue) fromTagged(tag taggedValue) error {
	switch tag.Type {
	case KindNull:
		*v = Null()
		return nil
	case KindInteger:
		var i int64
		if err := json.Unmarshal(tag.Value, &i); err != nil {
			return fmt.Errorf("integer value: %w", err)
		}
		*v = Integer(i)
		return nil
	case KindReal:
		var f float64
		if err := json.Unmarshal(tag.Value, &f); err != nil {
			return fmt.Errorf("real value: %w", err)
		}
		*v = Real(f)
		return nil
	case KindText:
		var s string
		if err := json.Unmarshal(tag.Value, &s); err != nil {
			return fmt.Errorf("text value: %w", err)
		}
		*v = Text(s)
		return nil
	case KindBlob:
		var s string
		if err := json.Unmarshal(tag.Value, &s); err != nil {
			return fmt.Errorf("blob value: %w", err)
		}
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return fmt.Errorf("blob value is not valid base64: %w", err)
		}
		*v = Blob(b)
		return nil
	default:
		return fmt.Errorf("unsupported value type %q", tag.Type)
	}
}

// FromScan converts a value produced by database/sql row scanning into the
// interchange form. Timestamps become RFC3339 text since the wire format has
// no native time kind.
func FromScan(raw interface{}) (ColumnValue, error) {
	switch val := raw.(type) {
	case nil:
		return Null(), nil
	case int64:
		return Integer(val), nil
	case int:
		return Integer(int64(val)), nil
	case bool:
		if val {
			return Integer(1), nil
		}
		return Integer(0), nil
	case float64:
		return Real(val), nil
	case string:
		return Text(val), nil
	case []byte:
		return Blob(append([]byte(nil), val...)), nil
	case time.Time:
		return Text(val.Format(time.RFC3339Nano)), nil
	default:
		return ColumnValue{}, fmt.Errorf("unsupported scan type %T", raw)
	}
}

// Row is one result row, values ordered as QueryResult.Columns.
type Row struct {
	Values []ColumnValue `json:"values"`
}

// QueryResult is the materialized outcome of one statement execution.
type QueryResult struct {
	Columns      []string `json:"columns"`
	Rows         []Row    `json:"rows"`
	RowsAffected int64    `json:"rows_affected"`
	LastInsertID int64    `json:"last_insert_id"`
}
