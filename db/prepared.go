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
	"context"
	"database/sql"
	"strings"
	"sync"
)

// PreparedStatement wraps a *sql.Stmt with the fixed-size, ordinal-indexed
// binding slots spec §4.8 requires: the slot count is fixed at prepare
// time from the query's own placeholder count, every slot starts (and
// can be reset to) null, and binding to an out-of-range ordinal raises
// QueryError instead of panicking the way a raw *sql.Stmt call with the
// wrong argument count would.
type PreparedStatement struct {
	stmt *sql.Stmt

	mu       sync.Mutex
	bindings []Value
}

// newPreparedStatement wraps stmt, sizing the binding vector to query's
// '?' placeholder count so out-of-range binds can be detected up front.
func newPreparedStatement(stmt *sql.Stmt, query string) *PreparedStatement {
	n := strings.Count(query, "?")
	bindings := make([]Value, n)
	for i := range bindings {
		bindings[i] = Value{Kind: KindNull}
	}
	return &PreparedStatement{stmt: stmt, bindings: bindings}
}

// Bind sets the value at ordinal (0-based). Binding to a negative index
// or one at/beyond the statement's declared parameter count raises
// QueryError (spec §4.8).
func (p *PreparedStatement) Bind(ordinal int, v Value) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if ordinal < 0 || ordinal >= len(p.bindings) {
		return ErrorBindOutOfRange.Error(nil)
	}
	p.bindings[ordinal] = v
	return nil
}

// BindAt is an alias of Bind for call sites that read more naturally
// with an "at" verb; both set the same ordinal slot.
func (p *PreparedStatement) BindAt(ordinal int, v Value) error {
	return p.Bind(ordinal, v)
}

// ClearBindings resets every bound slot to null, the Go port of
// PreparedStatement::clear_bindings.
func (p *PreparedStatement) ClearBindings() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := range p.bindings {
		p.bindings[i] = Value{Kind: KindNull}
	}
}

// args converts the currently bound slots into database/sql driver
// arguments, the Go analogue of marshaling the ordinal binding vector
// into the native prepared-statement call.
func (p *PreparedStatement) args() []interface{} {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]interface{}, len(p.bindings))
	for i, v := range p.bindings {
		out[i] = sqlArg(v)
	}
	return out
}

func sqlArg(v Value) interface{} {
	switch v.Kind {
	case KindNull:
		return nil
	case KindText:
		return v.Text
	case KindInt64:
		return v.I64
	case KindFloat64:
		return v.F64
	case KindBytes:
		return v.Raw
	case KindTimestamp:
		return v.Time.Format(timestampLayout)
	default:
		return nil
	}
}

// ExecuteQuery runs the statement with its currently bound arguments and
// materializes the result set, the prepared-statement twin of
// Conn.ExecuteQuery.
func (p *PreparedStatement) ExecuteQuery(ctx context.Context) (QueryResult, error) {
	rows, err := p.stmt.QueryContext(ctx, p.args()...)
	if err != nil {
		return QueryResult{}, ErrorQueryFailed.ErrorParent(err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return QueryResult{}, ErrorQueryFailed.ErrorParent(err)
	}

	var out QueryResult
	for rows.Next() {
		raw := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err = rows.Scan(ptrs...); err != nil {
			return QueryResult{}, ErrorQueryFailed.ErrorParent(err)
		}
		out.Rows = append(out.Rows, rowFrom(cols, raw))
	}
	return out, rows.Err()
}

// ExecuteUpdate runs the statement with its currently bound arguments
// and returns the affected row count.
func (p *PreparedStatement) ExecuteUpdate(ctx context.Context) (int64, error) {
	res, err := p.stmt.ExecContext(ctx, p.args()...)
	if err != nil {
		return 0, ErrorQueryFailed.ErrorParent(err)
	}
	return res.RowsAffected()
}

// ExecuteInsert runs the statement with its currently bound arguments
// and returns the generated id.
func (p *PreparedStatement) ExecuteInsert(ctx context.Context) (uint64, error) {
	res, err := p.stmt.ExecContext(ctx, p.args()...)
	if err != nil {
		return 0, ErrorQueryFailed.ErrorParent(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, ErrorQueryFailed.ErrorParent(err)
	}
	return uint64(id), nil
}

// Close releases the underlying *sql.Stmt.
func (p *PreparedStatement) Close() error {
	return p.stmt.Close()
}
