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

// Package section implements the sharded per-section scheduler of spec
// §4.6, ported from NetworkCore/NetworkSection.{h,cpp}. container/heap
// backs the delayed-task priority queue: the original's task_cmp
// comparator over a concurrent_priority_queue of raw iTask* has no
// reference-counted or channel-based equivalent in the example pack, and
// container/heap is the idiomatic stdlib min-heap Go code reaches for in
// this situation (see DESIGN.md).
package section

import (
	"container/heap"
	"time"
)

// Task is a scheduled unit of work: spec §3's iTask. Repeat tasks
// reinsert themselves with a new ExecuteAt instead of being copied.
type Task struct {
	Repeat    bool
	ExecuteAt time.Time
	Delay     time.Duration
	Work      func()
	// After runs once Work returns, still on the section thread. Optional.
	After func()

	index int // heap bookkeeping
}

// NewTask schedules Work to run once, after delay.
func NewTask(delay time.Duration, work func()) *Task {
	return &Task{ExecuteAt: time.Now().Add(delay), Delay: delay, Work: work}
}

// NewRepeatingTask schedules Work to run every delay, starting after the
// first delay elapses.
func NewRepeatingTask(delay time.Duration, work func()) *Task {
	return &Task{Repeat: true, ExecuteAt: time.Now().Add(delay), Delay: delay, Work: work}
}

// taskHeap is a min-heap of *Task ordered by ExecuteAt ascending, the Go
// port of the original's task_cmp (which inverted execute_time for a
// max-heap-flavored std::priority_queue; container/heap is a min-heap by
// Less, so we compare ExecuteAt directly and get the same "earliest first"
// pop order).
type taskHeap []*Task

func (h taskHeap) Len() int            { return len(h) }
func (h taskHeap) Less(i, j int) bool  { return h[i].ExecuteAt.Before(h[j].ExecuteAt) }
func (h taskHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index, h[j].index = i, j }
func (h *taskHeap) Push(x interface{}) {
	t := x.(*Task)
	t.index = len(*h)
	*h = append(*h, t)
}
func (h *taskHeap) Pop() interface{} {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return t
}

var _ = heap.Interface(&taskHeap{})
