package types

import (
	"strings"
	"testing"
)

func TestDecodeParamsTaggedForms(t *testing.T) {
	payload := `[
		{"type": "null"},
		{"type": "integer", "value": 42},
		{"type": "real", "value": 4.5},
		{"type": "text", "value": "hello"},
		{"type": "blob", "value": "aGVsbG8="}
	]`

	params, err := DecodeParams(payload)
	if err != nil {
		t.Fatalf("DecodeParams returned error: %v", err)
	}

	want := []ColumnValue{
		Null(),
		Integer(42),
		Real(4.5),
		Text("hello"),
		Blob([]byte("hello")),
	}
	if len(params) != len(want) {
		t.Fatalf("got %d params, want %d", len(params), len(want))
	}
	for i := range want {
		if !params[i].Equal(want[i]) {
			t.Errorf("param %d = %+v, want %+v", i, params[i], want[i])
		}
	}
}

func TestDecodeParamsBareScalars(t *testing.T) {
	params, err := DecodeParams(`[null, 1, "two", 3.5]`)
	if err != nil {
		t.Fatalf("DecodeParams returned error: %v", err)
	}

	want := []ColumnValue{Null(), Integer(1), Text("two"), Real(3.5)}
	for i := range want {
		if !params[i].Equal(want[i]) {
			t.Errorf("param %d = %+v, want %+v", i, params[i], want[i])
		}
	}
}

func TestDecodeParamsNumericWidening(t *testing.T) {
	// Bare integral literals decode as integer; anything with a decimal
	// point or exponent decodes as real, even when the value is integral.
	params, err := DecodeParams(`[7, 7.0, 1e3]`)
	if err != nil {
		t.Fatalf("DecodeParams returned error: %v", err)
	}

	if params[0].Kind != KindInteger || params[0].Int != 7 {
		t.Errorf("bare 7 = %+v, want integer 7", params[0])
	}
	if params[1].Kind != KindReal || params[1].Real != 7.0 {
		t.Errorf("bare 7.0 = %+v, want real 7", params[1])
	}
	if params[2].Kind != KindReal || params[2].Real != 1000 {
		t.Errorf("bare 1e3 = %+v, want real 1000", params[2])
	}
}

func TestDecodeParamsRejectsMalformed(t *testing.T) {
	cases := []struct {
		name    string
		payload string
	}{
		{"not json", "nonsense"},
		{"not an array", `{"type": "integer", "value": 1}`},
		{"nested array", `[[1, 2]]`},
		{"boolean", `[true]`},
		{"unknown tag", `[{"type": "datetime", "value": 0}]`},
		{"bad base64", `[{"type": "blob", "value": "!!!"}]`},
		{"wrong value type", `[{"type": "integer", "value": "nope"}]`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := DecodeParams(tc.payload); err == nil {
				t.Fatalf("DecodeParams(%q) succeeded, want error", tc.payload)
			}
		})
	}
}

func TestResultRoundTrip(t *testing.T) {
	original := &QueryResult{
		Columns: []string{"id", "score", "name", "data", "missing"},
		Rows: []Row{
			{Values: []ColumnValue{Integer(1), Real(0.5), Text("a"), Blob([]byte{0x00, 0xff}), Null()}},
			{Values: []ColumnValue{Integer(2), Real(-1), Text(""), Blob(nil), Null()}},
		},
		RowsAffected: 2,
		LastInsertID: 7,
	}

	encoded, err := EncodeResult(original)
	if err != nil {
		t.Fatalf("EncodeResult returned error: %v", err)
	}
	decoded, err := DecodeResult(encoded)
	if err != nil {
		t.Fatalf("DecodeResult returned error: %v", err)
	}

	if decoded.RowsAffected != original.RowsAffected || decoded.LastInsertID != original.LastInsertID {
		t.Fatalf("counters did not round-trip: %+v", decoded)
	}
	if len(decoded.Rows) != len(original.Rows) {
		t.Fatalf("got %d rows, want %d", len(decoded.Rows), len(original.Rows))
	}
	for i, row := range original.Rows {
		for j, v := range row.Values {
			if !decoded.Rows[i].Values[j].Equal(v) {
				t.Errorf("cell (%d,%d) = %+v, want %+v", i, j, decoded.Rows[i].Values[j], v)
			}
		}
	}
}

func TestValueRoundTripThroughParams(t *testing.T) {
	// Every supported kind survives encode-as-row / decode-as-params.
	values := []ColumnValue{Null(), Integer(-9), Real(2.25), Text("x"), Blob([]byte("bin"))}

	encoded, err := EncodeRows([]Row{{Values: values}})
	if err != nil {
		t.Fatalf("EncodeRows returned error: %v", err)
	}
	rows, err := DecodeRows(encoded)
	if err != nil {
		t.Fatalf("DecodeRows returned error: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	for i, v := range values {
		if !rows[0].Values[i].Equal(v) {
			t.Errorf("value %d = %+v, want %+v", i, rows[0].Values[i], v)
		}
	}
}

func TestEncodeRowsEmpty(t *testing.T) {
	for _, rows := range [][]Row{nil, {}} {
		encoded, err := EncodeRows(rows)
		if err != nil {
			t.Fatalf("EncodeRows returned error: %v", err)
		}
		if encoded != "[]" {
			t.Fatalf("EncodeRows = %q, want %q", encoded, "[]")
		}
	}
}

func TestDecodeBatch(t *testing.T) {
	stmts, err := DecodeBatch(`["CREATE TABLE t(id INT)", "INSERT INTO t VALUES (1)"]`)
	if err != nil {
		t.Fatalf("DecodeBatch returned error: %v", err)
	}
	if len(stmts) != 2 || !strings.HasPrefix(stmts[0], "CREATE") {
		t.Fatalf("unexpected batch: %v", stmts)
	}

	if _, err := DecodeBatch(`[1, 2]`); err == nil {
		t.Fatal("DecodeBatch accepted non-string elements")
	}
}

func TestFromScan(t *testing.T) {
	v, err := FromScan(int64(5))
	if err != nil || !v.Equal(Integer(5)) {
		t.Fatalf("FromScan(int64) = %+v, %v", v, err)
	}
	v, err = FromScan(nil)
	if err != nil || v.Kind != KindNull {
		t.Fatalf("FromScan(nil) = %+v, %v", v, err)
	}
	v, err = FromScan(true)
	if err != nil || !v.Equal(Integer(1)) {
		t.Fatalf("FromScan(true) = %+v, %v", v, err)
	}
	if _, err := FromScan(struct{}{}); err == nil {
		t.Fatal("FromScan accepted an unsupported type")
	}
}
