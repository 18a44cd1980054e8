/*
 * MIT License
 *
 * Copyright (c) 2021 Nicolas JUHEL
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

// Package logging wraps logrus with the level and field conventions used
// across the network and database cores. Components take a Logger at
// construction instead of reaching for a package-level global, so tests can
// build a fresh instance per case.
package logging

import (
	"io"
	"sync"

	"github.com/sirupsen/logrus"
)

// Level mirrors logrus.Level under our own name so callers never import
// logrus directly outside this package.
type Level uint32

const (
	PanicLevel Level = iota
	FatalLevel
	ErrorLevel
	WarnLevel
	InfoLevel
	DebugLevel
	TraceLevel
)

func (l Level) logrus() logrus.Level {
	return logrus.Level(l)
}

// Fields is a set of structured key/value pairs attached to a log entry.
type Fields map[string]interface{}

// Logger is the logging surface every long-lived worker in this module
// depends on: reactor workers, section threads, hard-task workers and the
// pool validator all log through one of these rather than panicking or
// silently swallowing errors.
type Logger interface {
	io.Writer

	SetLevel(lvl Level)
	GetLevel() Level

	WithFields(f Fields) Logger

	Debug(args ...interface{})
	Info(args ...interface{})
	Warn(args ...interface{})
	Error(args ...interface{})

	// CheckError logs msg with err at Error level, recording errLvl in a
	// level_on_error field, if err is non-nil; otherwise it logs msg at
	// Debug level unless okLvl is PanicLevel. It is the one-liner
	// section/reactor workers use for their "log and continue" policy
	// (spec §7).
	CheckError(errLvl, okLvl Level, msg string, err error)
}

type logger struct {
	mu  sync.RWMutex
	log *logrus.Logger
	ent *logrus.Entry
}

// New builds a Logger writing to w (os.Stdout/os.Stderr/a file hook) at the
// given minimal level.
func New(w io.Writer, lvl Level) Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(lvl.logrus())
	l.SetFormatter(&logrus.JSONFormatter{})

	return &logger{
		log: l,
		ent: logrus.NewEntry(l),
	}
}

func (l *logger) Write(p []byte) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	l.ent.Debug(string(p))
	return len(p), nil
}

func (l *logger) SetLevel(lvl Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.log.SetLevel(lvl.logrus())
}

func (l *logger) GetLevel() Level {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return Level(l.log.GetLevel())
}

func (l *logger) WithFields(f Fields) Logger {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return &logger{
		log: l.log,
		ent: l.ent.WithFields(logrus.Fields(f)),
	}
}

func (l *logger) Debug(args ...interface{}) { l.ent.Debug(args...) }
func (l *logger) Info(args ...interface{})  { l.ent.Info(args...) }
func (l *logger) Warn(args ...interface{})  { l.ent.Warn(args...) }
func (l *logger) Error(args ...interface{}) { l.ent.Error(args...) }

func (l *logger) CheckError(errLvl, okLvl Level, msg string, err error) {
	if err != nil {
		l.ent.WithField("level_on_error", errLvl).WithError(err).Error(msg)
		return
	}
	if okLvl != PanicLevel {
		l.ent.Debug(msg)
	}
}
