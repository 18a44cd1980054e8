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

// Package db implements the database access layer of spec §4.8-§4.10,
// ported from DataBaseLibrary/{DBConnection,DBConnectionPool,AsyncDBContext}.
// gorm.io/gorm with the mysql driver replaces the original's hand-rolled
// MySQL client, and Go generics replace the C++ template-based async
// context.
package db

import (
	"context"
	"strings"
	"time"

	"github.com/ridgeway-labs/sessioncore/internal/apperror"
	"gorm.io/gorm"
)

const (
	ErrorQueryFailed apperror.CodeError = iota + apperror.MinPkgDB
	ErrorNoRows
	ErrorTxFailed
	ErrorNotValid
	ErrorUnknownColumn
	ErrorNullField
	ErrorBindOutOfRange
)

func init() {
	if apperror.ExistInMapMessage(apperror.MinPkgDB) {
		panic("error code collision in package db")
	}
	apperror.RegisterIdFctMessage(apperror.MinPkgDB, func(c apperror.CodeError) string {
		switch c {
		case ErrorQueryFailed:
			return "db: query failed"
		case ErrorNoRows:
			return "db: no rows"
		case ErrorTxFailed:
			return "db: transaction failed"
		case ErrorNotValid:
			return "db: connection failed validation"
		case ErrorUnknownColumn:
			return "db: unknown column"
		case ErrorNullField:
			return "db: field is null"
		case ErrorBindOutOfRange:
			return "db: bind ordinal out of range"
		}
		return "db: error"
	})
}

// Conn wraps one gorm.DB handle with the synchronous operations spec
// §4.8 names: execute_query, execute_update, execute_insert, prepared
// execution, transactions, and string escaping.
type Conn struct {
	gdb *gorm.DB
}

// NewConn wraps an already-opened *gorm.DB.
func NewConn(gdb *gorm.DB) *Conn {
	return &Conn{gdb: gdb}
}

// Raw exposes the underlying *gorm.DB for callers that need gorm's full
// query builder; the Conn methods below cover the original's fixed verb
// set.
func (c *Conn) Raw() *gorm.DB { return c.gdb }

// Ping validates the connection is reachable, the Go analogue of
// DBConnection::is_valid().
func (c *Conn) Ping(ctx context.Context) error {
	sqlDB, err := c.gdb.DB()
	if err != nil {
		return ErrorNotValid.ErrorParent(err)
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the underlying *sql.DB resources.
func (c *Conn) Close() error {
	sqlDB, err := c.gdb.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ExecuteQuery runs a SELECT and materializes every row into a
// QueryResult, the Go port of DBConnection::execute_query.
func (c *Conn) ExecuteQuery(ctx context.Context, query string, args ...interface{}) (QueryResult, error) {
	rows, err := c.gdb.WithContext(ctx).Raw(query, args...).Rows()
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

func rowFrom(cols []string, raw []interface{}) Row {
	r := Row{Columns: cols, Values: make([]Value, len(cols))}
	for i, v := range raw {
		r.Values[i] = valueOf(v)
	}
	return r
}

func valueOf(v interface{}) Value {
	switch t := v.(type) {
	case nil:
		return Value{Kind: KindNull}
	case int64:
		return Value{Kind: KindInt64, I64: t}
	case float64:
		return Value{Kind: KindFloat64, F64: t}
	case []byte:
		return Value{Kind: KindBytes, Raw: t}
	case string:
		return Value{Kind: KindText, Text: t}
	case time.Time:
		return Value{Kind: KindTimestamp, Time: t}
	default:
		return Value{Kind: KindText, Text: ""}
	}
}

// ExecuteUpdate runs an UPDATE/DELETE and returns the affected row count,
// the Go port of DBConnection::execute_update.
func (c *Conn) ExecuteUpdate(ctx context.Context, query string, args ...interface{}) (int64, error) {
	res := c.gdb.WithContext(ctx).Exec(query, args...)
	if res.Error != nil {
		return 0, ErrorQueryFailed.ErrorParent(res.Error)
	}
	return res.RowsAffected, nil
}

// ExecuteInsert runs an INSERT and returns the generated id, the Go port
// of DBConnection::execute_insert.
func (c *Conn) ExecuteInsert(ctx context.Context, query string, args ...interface{}) (uint64, error) {
	sqlDB, err := c.gdb.DB()
	if err != nil {
		return 0, ErrorQueryFailed.ErrorParent(err)
	}

	result, err := sqlDB.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, ErrorQueryFailed.ErrorParent(err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, ErrorQueryFailed.ErrorParent(err)
	}
	return uint64(id), nil
}

// Prepare returns a PreparedStatement bound to this connection for
// repeated execution with ordinal-indexed bindings, the Go port of
// DBConnection::prepare_statement.
func (c *Conn) Prepare(ctx context.Context, query string) (*PreparedStatement, error) {
	sqlDB, err := c.gdb.DB()
	if err != nil {
		return nil, ErrorQueryFailed.ErrorParent(err)
	}
	stmt, err := sqlDB.PrepareContext(ctx, query)
	if err != nil {
		return nil, ErrorQueryFailed.ErrorParent(err)
	}
	return newPreparedStatement(stmt, query), nil
}

// Transaction runs fn inside a transaction, committing on nil return and
// rolling back otherwise, the Go port of DBConnection's begin/commit/rollback
// trio collapsed into gorm's managed transaction helper.
func (c *Conn) Transaction(ctx context.Context, fn func(tx *Conn) error) error {
	err := c.gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Conn{gdb: tx})
	})
	if err != nil {
		return ErrorTxFailed.ErrorParent(err)
	}
	return nil
}

// EscapeString mirrors DBConnection::escape_string for call sites that
// build fragments outside of gorm's parameterized query path. Prefer
// parameterized queries; this exists only for parity with the original
// surface.
func EscapeString(s string) string {
	r := strings.NewReplacer(
		"\\", "\\\\",
		"'", "\\'",
		"\"", "\\\"",
		"\x00", "\\0",
		"\n", "\\n",
		"\r", "\\r",
		"\x1a", "\\Z",
	)
	return r.Replace(s)
}
