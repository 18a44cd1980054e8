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

// Package apperror implements the error taxonomy shared by the network and
// database cores: a numeric CodeError (similar in spirit to an HTTP status
// code) plus a chainable Error that keeps its parent causes. An Error does
// not record the call site that raised it.
package apperror

import (
	"fmt"
	"runtime"
)

// CodeError is a numeric error code. Each package that registers a message
// function owns a contiguous range so codes never collide across packages.
type CodeError uint32

// UnknownError is the zero value: no specific code could be determined.
const UnknownError CodeError = 0

// Per-package code ranges, mirroring the partitioning the logging and
// database layers use to keep codes from colliding as the module grows.
const (
	MinPkgNetwork CodeError = 1000 + iota*100
	MinPkgSession
	MinPkgSender
	MinPkgPacket
	MinPkgSection
	MinPkgServer
	MinPkgClient
	MinPkgDB
	MinPkgPool
	MinPkgConfig
)

var idMsgFct = make(map[CodeError]Message)

// Message generates the human-readable text for a CodeError.
type Message func(code CodeError) string

// RegisterIdFctMessage registers the message function for the contiguous
// block of codes owned by the caller's package, starting at base.
func RegisterIdFctMessage(base CodeError, fct Message) {
	idMsgFct[base] = fct
}

// ExistInMapMessage reports whether a message function is already
// registered for the given base code, used to guard against accidental
// range collisions at package init time.
func ExistInMapMessage(base CodeError) bool {
	_, ok := idMsgFct[base]
	return ok
}

func messageFor(code CodeError) string {
	// idMsgFct is keyed by the range's base code; walk down from code to
	// the nearest registered base below it.
	var best CodeError
	var found bool

	for base := range idMsgFct {
		if base <= code && (!found || base > best) {
			best, found = base, true
		}
	}

	if !found {
		return "unknown error"
	}

	return idMsgFct[best](code)
}

// frame returns the stack frame skip levels above its own caller (skip 0
// is the caller itself), for diagnostics. Error values do not call it.
func frame(skip int) runtime.Frame {
	pc := make([]uintptr, 1)
	n := runtime.Callers(skip+2, pc)
	if n == 0 {
		return runtime.Frame{}
	}
	f, _ := runtime.CallersFrames(pc[:n]).Next()
	return f
}

func (c CodeError) String() string {
	return fmt.Sprintf("[%d] %s", uint32(c), messageFor(c))
}
