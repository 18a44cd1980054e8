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

package apperror

import (
	"errors"
	"strings"
)

// Error is the interface satisfied by every error this module raises.
// It composes the standard error interface with a code and a chain of
// parent causes, so a handler can both pattern-match on Code() and walk
// the original driver/transport error with errors.Unwrap.
type Error interface {
	error
	Code() CodeError
	Is(err error) bool
	Unwrap() error
	Add(parent ...error)
}

type ers struct {
	c CodeError
	p []error
}

// Error implements the Error interface, the concrete chained-error value
// returned by CodeError.Error and CodeError.ErrorParent.
func (c CodeError) Error(parent error) Error {
	e := &ers{c: c}
	if parent != nil {
		e.p = append(e.p, parent)
	}
	return e
}

// ErrorParent is an alias of Error kept for readability at call sites that
// always wrap a non-nil driver/transport cause.
func (c CodeError) ErrorParent(parent error) Error {
	return c.Error(parent)
}

// IfError returns a combined Error over the non-nil members of errs, or
// nil if every member is nil.
func (c CodeError) IfError(errs ...error) Error {
	var e *ers
	for _, err := range errs {
		if err == nil {
			continue
		}
		if e == nil {
			e = &ers{c: c}
		}
		e.p = append(e.p, err)
	}
	if e == nil {
		return nil
	}
	return e
}

func (e *ers) Code() CodeError {
	return e.c
}

func (e *ers) Error() string {
	var sb strings.Builder
	sb.WriteString(e.c.String())
	for _, p := range e.p {
		sb.WriteString(": ")
		sb.WriteString(p.Error())
	}
	return sb.String()
}

func (e *ers) Unwrap() error {
	if len(e.p) == 0 {
		return nil
	}
	return e.p[0]
}

func (e *ers) Add(parent ...error) {
	for _, p := range parent {
		if p != nil {
			e.p = append(e.p, p)
		}
	}
}

func (e *ers) Is(err error) bool {
	if err == nil {
		return false
	}
	if oe, ok := err.(*ers); ok {
		return oe.c == e.c
	}
	return errors.Is(e.Unwrap(), err)
}
