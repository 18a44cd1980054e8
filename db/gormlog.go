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
	"errors"
	"fmt"
	"time"

	"github.com/ridgeway-labs/sessioncore/internal/logging"
	gormlog "gorm.io/gorm/logger"
)

// gormLogger adapts internal/logging.Logger into gorm's logger.Interface,
// the same seam nabbar-golib/logger.NewGormLogger fills for its own Logger
// type.
type gormLogger struct {
	log            logging.Logger
	ignoreNotFound bool
	slowThreshold  time.Duration
}

// NewGormLogger builds a gorm logger.Interface backed by log.
func NewGormLogger(log logging.Logger, ignoreRecordNotFound bool, slowThreshold time.Duration) gormlog.Interface {
	return &gormLogger{log: log, ignoreNotFound: ignoreRecordNotFound, slowThreshold: slowThreshold}
}

func (l *gormLogger) LogMode(level gormlog.LogLevel) gormlog.Interface {
	switch level {
	case gormlog.Silent:
		l.log.SetLevel(logging.PanicLevel)
	case gormlog.Error:
		l.log.SetLevel(logging.ErrorLevel)
	case gormlog.Warn:
		l.log.SetLevel(logging.WarnLevel)
	case gormlog.Info:
		l.log.SetLevel(logging.InfoLevel)
	}
	return l
}

func (l *gormLogger) Info(_ context.Context, msg string, args ...interface{}) {
	l.log.Info(fmt.Sprintf(msg, args...))
}

func (l *gormLogger) Warn(_ context.Context, msg string, args ...interface{}) {
	l.log.Warn(fmt.Sprintf(msg, args...))
}

func (l *gormLogger) Error(_ context.Context, msg string, args ...interface{}) {
	l.log.Error(fmt.Sprintf(msg, args...))
}

func (l *gormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)
	sql, rows := fc()
	fields := logging.Fields{"elapsed_ms": float64(elapsed.Nanoseconds()) / 1e6, "query": sql}
	if rows >= 0 {
		fields["rows"] = rows
	}

	switch {
	case err != nil && (!errors.Is(err, gormlog.ErrRecordNotFound) || !l.ignoreNotFound):
		l.log.WithFields(fields).Error("db: query failed: " + err.Error())
	case l.slowThreshold != 0 && elapsed > l.slowThreshold:
		l.log.WithFields(fields).Warn(fmt.Sprintf("db: slow query >= %v", l.slowThreshold))
	default:
		l.log.WithFields(fields).Debug("db: query trace")
	}
}
