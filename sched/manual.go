// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package sched

import (
	"sort"
	"sync"
	"time"
)

// Manual is a deterministic Scheduler driven by Advance.
//
// Callbacks run synchronously on the goroutine calling Advance, in due-time
// order, ties broken by arming order. It is intended for tests.
type Manual struct {
	mu     sync.Mutex
	now    time.Duration
	next   Handle
	timers map[Handle]*manualTimer
}

type manualTimer struct {
	due    time.Duration
	period time.Duration // zero for one-shot
	fn     func()
}

// NewManual creates a Manual scheduler at virtual time zero.
func NewManual() *Manual {
	return &Manual{timers: make(map[Handle]*manualTimer)}
}

// SetInterval arms a repeating callback.
func (m *Manual) SetInterval(period time.Duration, fn func()) Handle {
	if period <= 0 {
		period = time.Millisecond
	}
	return m.arm(period, period, fn)
}

// SetTimeout arms a one-shot callback.
func (m *Manual) SetTimeout(delay time.Duration, fn func()) Handle {
	return m.arm(delay, 0, fn)
}

func (m *Manual) arm(delay, period time.Duration, fn func()) Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	m.timers[m.next] = &manualTimer{due: m.now + delay, period: period, fn: fn}
	return m.next
}

// Clear cancels h.
func (m *Manual) Clear(h Handle) {
	m.mu.Lock()
	delete(m.timers, h)
	m.mu.Unlock()
}

// Now returns the virtual time.
func (m *Manual) Now() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Active returns the number of armed timers.
func (m *Manual) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timers)
}

// Period returns the period of the interval h, or zero if h is not an
// armed interval.
func (m *Manual) Period(h Handle) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.timers[h]; ok {
		return t.period
	}
	return 0
}

// Advance moves virtual time forward by d, firing every callback that
// becomes due. Callbacks may arm or clear timers.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	end := m.now + d
	m.mu.Unlock()

	for {
		m.mu.Lock()
		h, t := m.earliest(end)
		if t == nil {
			m.now = end
			m.mu.Unlock()
			return
		}
		m.now = t.due
		if t.period > 0 {
			t.due += t.period
		} else {
			delete(m.timers, h)
		}
		fn := t.fn
		m.mu.Unlock()
		fn()
	}
}

// Flush fires every callback due at the current time, such as zero-delay
// timeouts.
func (m *Manual) Flush() { m.Advance(0) }

func (m *Manual) earliest(end time.Duration) (Handle, *manualTimer) {
	handles := make([]Handle, 0, len(m.timers))
	for h, t := range m.timers {
		if t.due <= end {
			handles = append(handles, h)
		}
	}
	if len(handles) == 0 {
		return 0, nil
	}
	sort.Slice(handles, func(i, j int) bool {
		a, b := m.timers[handles[i]], m.timers[handles[j]]
		if a.due != b.due {
			return a.due < b.due
		}
		return handles[i] < handles[j]
	})
	return handles[0], m.timers[handles[0]]
}
