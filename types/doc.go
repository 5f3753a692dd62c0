package types

// Package types defines the interchange representation that crosses the
// bridge boundary: typed column values, rows, and query results, together
// with the JSON codec used to encode them. Foreign callers only ever see
// the JSON wire form; the session layer works with the typed form.
//
// Wire format:
//
// Parameters are a JSON array. Each element is either a tagged object
//
//	{"type": "integer", "value": 42}
//	{"type": "text", "value": "hello"}
//	{"type": "blob", "value": "aGVsbG8="}   // base64
//	{"type": "null"}
//
// or a bare JSON scalar (null, number, string), which is convenient for
// hand-written callers. Bare numbers decode as integer when the literal is
// integral ("42") and as real otherwise ("4.2", "4.0"); callers that need
// an exact kind must use the tagged form.
//
// Results serialize as
//
//	{"columns": [...], "rows": [{"values": [...]}], "rows_affected": N,
//	 "last_insert_id": N}
//
// with each value in the tagged form above.
