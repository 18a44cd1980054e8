/*
 * MIT License
 *
 * Copyright (c) 2022 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package db

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ValueKind tags the dynamic type carried by a Value, replacing the
// original QueryResult column's implicit C++ variant-by-convention.
type ValueKind uint8

const (
	KindNull ValueKind = iota
	KindText
	KindInt64
	KindFloat64
	KindBytes
	KindTimestamp
)

// timestampLayout is the wire/storage format spec §9 fixes for
// timestamp columns: "YYYY-MM-DD HH:MM:SS" local time.
const timestampLayout = "2006-01-02 15:04:05"

// Value is one column value out of a Row. A zero Value (Kind ==
// KindNull) stands for SQL NULL; callers reach it through Row.Get and
// the typed accessors below rather than touching the fields directly.
type Value struct {
	Kind ValueKind
	Text string
	I64  int64
	F64  float64
	Raw  []byte
	Time time.Time
}

// IsNull reports whether the column held SQL NULL.
func (v Value) IsNull() bool {
	return v.Kind == KindNull
}

// text renders the value's textual form for conversion, mirroring the
// original's string-first scan/convert path for every widened type.
func (v Value) text() string {
	switch v.Kind {
	case KindText:
		return v.Text
	case KindInt64:
		return strconv.FormatInt(v.I64, 10)
	case KindFloat64:
		return strconv.FormatFloat(v.F64, 'g', -1, 64)
	case KindBytes:
		return string(v.Raw)
	case KindTimestamp:
		return v.Time.Format(timestampLayout)
	default:
		return ""
	}
}

// String returns the value's textual form. Spec §4.8: calling a
// non-optional accessor on a NULL field raises QueryError.
func (v Value) String() (string, error) {
	if v.IsNull() {
		return "", ErrorNullField.Error(nil)
	}
	return v.text(), nil
}

// Int64 converts the value to a 64-bit integer.
func (v Value) Int64() (int64, error) {
	if v.IsNull() {
		return 0, ErrorNullField.Error(nil)
	}
	if v.Kind == KindInt64 {
		return v.I64, nil
	}
	n, err := strconv.ParseInt(strings.TrimSpace(v.text()), 10, 64)
	if err != nil {
		return 0, ErrorQueryFailed.ErrorParent(fmt.Errorf("value %q not convertible to int64: %w", v.text(), err))
	}
	return n, nil
}

// Int32 converts the value to a 32-bit integer, the narrower of the two
// integer widths spec §4.8 names.
func (v Value) Int32() (int32, error) {
	n, err := v.Int64()
	if err != nil {
		return 0, err
	}
	return int32(n), nil
}

// Float64 converts the value to a double.
func (v Value) Float64() (float64, error) {
	if v.IsNull() {
		return 0, ErrorNullField.Error(nil)
	}
	if v.Kind == KindFloat64 {
		return v.F64, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v.text()), 64)
	if err != nil {
		return 0, ErrorQueryFailed.ErrorParent(fmt.Errorf("value %q not convertible to float64: %w", v.text(), err))
	}
	return f, nil
}

// Bool converts the value to a bool, accepting "1"/"true"/"TRUE" as
// true and anything else as false, the Go port of the original's
// bool-from-text convention.
func (v Value) Bool() (bool, error) {
	if v.IsNull() {
		return false, ErrorNullField.Error(nil)
	}
	switch v.text() {
	case "1", "true", "TRUE":
		return true, nil
	default:
		return false, nil
	}
}

// Timestamp converts the value to a time.Time, parsing the "YYYY-MM-DD
// HH:MM:SS" layout spec §9 fixes when the column was not already typed
// as a timestamp.
func (v Value) Timestamp() (time.Time, error) {
	if v.IsNull() {
		return time.Time{}, ErrorNullField.Error(nil)
	}
	if v.Kind == KindTimestamp {
		return v.Time, nil
	}
	t, err := time.ParseInLocation(timestampLayout, strings.TrimSpace(v.text()), time.Local)
	if err != nil {
		return time.Time{}, ErrorQueryFailed.ErrorParent(fmt.Errorf("value %q not convertible to timestamp: %w", v.text(), err))
	}
	return t, nil
}

// Row is one result row, columns addressable by name or ordinal in
// declaration order.
type Row struct {
	Columns []string
	Values  []Value
}

// Get returns the value for the named column. Field lookup by an
// unknown name raises QueryError (spec §4.8).
func (r Row) Get(column string) (Value, error) {
	for i, c := range r.Columns {
		if c == column {
			return r.Values[i], nil
		}
	}
	return Value{}, ErrorUnknownColumn.Error(nil)
}

// At returns the value at the given ordinal, the index-based twin of
// Get. Out-of-range access raises QueryError.
func (r Row) At(ordinal int) (Value, error) {
	if ordinal < 0 || ordinal >= len(r.Values) {
		return Value{}, ErrorUnknownColumn.Error(nil)
	}
	return r.Values[ordinal], nil
}

// QueryResult is the full result of execute_query, the Go port of the
// original DB::QueryResult. Rows is exposed directly for range-based
// fetch_all; First is the fetch_one equivalent.
type QueryResult struct {
	Rows []Row
}

// First returns the first row, or ok=false if the result set is empty.
func (q QueryResult) First() (Row, bool) {
	if len(q.Rows) == 0 {
		return Row{}, false
	}
	return q.Rows[0], true
}
