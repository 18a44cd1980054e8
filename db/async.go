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

import "context"

// AsyncContext is the generic port of the original's
// AsyncDBContext<SuccessCallbackType>/void* user_data pair: Go generics
// give every call site its own concrete success-callback type without a
// template instantiation or an unsafe.Pointer cast for user data (spec
// §4.10, §C.5).
type AsyncContext[S any] struct {
	onSuccess func(S)
	onError   func(error)
	userData  any
}

// NewAsyncContext builds a context that calls onSuccess or onError from
// whichever worker goroutine runs the deliver call. Each DeliverSuccess or
// DeliverError call invokes its callback; repeated deliveries are not
// suppressed.
func NewAsyncContext[S any](onSuccess func(S), onError func(error)) *AsyncContext[S] {
	return &AsyncContext[S]{onSuccess: onSuccess, onError: onError}
}

// WithUserData attaches caller-defined state retrievable via UserData,
// the Go analogue of set_user_data<T>/get_user_data<T>.
func (c *AsyncContext[S]) WithUserData(v any) *AsyncContext[S] {
	c.userData = v
	return c
}

// UserData returns whatever was attached via WithUserData, or nil.
func (c *AsyncContext[S]) UserData() any { return c.userData }

// DeliverSuccess invokes the success callback, if set, with result.
func (c *AsyncContext[S]) DeliverSuccess(result S) {
	if c.onSuccess != nil {
		c.onSuccess(result)
	}
}

// DeliverError invokes the error callback, if set, with err.
func (c *AsyncContext[S]) DeliverError(err error) {
	if c.onError != nil {
		c.onError(err)
	}
}

// VoidAsyncContext is the Go analogue of VoidAsyncDBContext: a success
// callback with no result payload.
type VoidAsyncContext = AsyncContext[struct{}]

// NewVoidAsyncContext builds a VoidAsyncContext; onSuccess, if non-nil,
// is invoked with no arguments.
func NewVoidAsyncContext(onSuccess func(), onError func(error)) *VoidAsyncContext {
	var wrapped func(struct{})
	if onSuccess != nil {
		wrapped = func(struct{}) { onSuccess() }
	}
	return NewAsyncContext[struct{}](wrapped, onError)
}

// Done delivers success for a VoidAsyncContext, since struct{}{} is an
// ugly call site for callers.
func (c *VoidAsyncContext) Done() { c.DeliverSuccess(struct{}{}) }

// RunAsync executes work on the calling goroutine (in practice a hard-task
// worker started by server.Server.PushHardTask) and routes its result
// through ac. owner, if non-nil, is checked immediately before delivery
// so a session that disconnected while the query was in flight never has
// its callback invoked against a dead owner (spec §4.10).
func RunAsync[S any](ctx context.Context, owner interface{ Connected() bool }, work func(context.Context) (S, error), ac *AsyncContext[S]) {
	result, err := work(ctx)

	if owner != nil && !owner.Connected() {
		return
	}

	if err != nil {
		ac.DeliverError(err)
		return
	}
	ac.DeliverSuccess(result)
}
