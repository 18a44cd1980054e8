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

package section

import "sync/atomic"

// Stats tracks the per-section FPS/TPS counters the original source
// exposes via update_fps_info/update_recv_tps_info/update_send_tps_info.
// Go's atomics replace the C++ side's separate accumulate+snapshot fields
// guarded by its own section mutex.
type Stats struct {
	recvAccum atomic.Uint64
	sendAccum atomic.Uint64
	tickAccum atomic.Uint64

	recvTPS atomic.Uint64
	sendTPS atomic.Uint64
	fps     atomic.Uint64
}

func (st *Stats) incRecv() { st.recvAccum.Add(1) }
func (st *Stats) incSend() { st.sendAccum.Add(1) }
func (st *Stats) incFrame() { st.tickAccum.Add(1) }

// tick is called once a second from the section worker loop: it rotates
// the accumulators into the published counters (spec §C.3).
func (st *Stats) tick() {
	st.recvTPS.Store(st.recvAccum.Swap(0))
	st.sendTPS.Store(st.sendAccum.Swap(0))
	st.fps.Store(st.tickAccum.Swap(0))
}

// StatsSnapshot is a point-in-time read of a section's FPS/TPS counters.
type StatsSnapshot struct {
	RecvTPS uint64
	SendTPS uint64
	FPS     uint64
}

// snapshot returns the published counters as of the last tick.
func (st *Stats) snapshot() StatsSnapshot {
	return StatsSnapshot{
		RecvTPS: st.recvTPS.Load(),
		SendTPS: st.sendTPS.Load(),
		FPS:     st.fps.Load(),
	}
}
