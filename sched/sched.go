// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package sched provides the timer primitive that drives the frame clock.
//
// [Ticker] runs callbacks on background goroutines using the time package.
// [Manual] runs them only when the test advances its virtual clock.
package sched

import (
	"sync"
	"time"
)

// Handle identifies an armed timer. The zero Handle is never issued.
type Handle uint64

// Scheduler arms repeating and one-shot callbacks.
//
// Clear on an unknown or already cleared Handle is a no-op.
type Scheduler interface {
	SetInterval(period time.Duration, fn func()) Handle
	SetTimeout(delay time.Duration, fn func()) Handle
	Clear(h Handle)
}

// Ticker is a Scheduler backed by time.Ticker and time.AfterFunc.
type Ticker struct {
	mu     sync.Mutex
	next   Handle
	timers map[Handle]func()
}

// NewTicker creates a wall-clock scheduler.
func NewTicker() *Ticker {
	return &Ticker{timers: make(map[Handle]func())}
}

// SetInterval calls fn every period until cleared.
func (t *Ticker) SetInterval(period time.Duration, fn func()) Handle {
	if period <= 0 {
		period = time.Millisecond
	}
	tk := time.NewTicker(period)
	done := make(chan struct{})
	var once sync.Once
	h := t.add(func() {
		once.Do(func() {
			tk.Stop()
			close(done)
		})
	})
	go func() {
		for {
			select {
			case <-done:
				return
			case <-tk.C:
				if !t.active(h) {
					return
				}
				fn()
			}
		}
	}()
	return h
}

// SetTimeout calls fn once after delay unless cleared first.
func (t *Ticker) SetTimeout(delay time.Duration, fn func()) Handle {
	var h Handle
	var timer *time.Timer
	t.mu.Lock()
	t.next++
	h = t.next
	timer = time.AfterFunc(delay, func() {
		if t.take(h) {
			fn()
		}
	})
	t.timers[h] = func() { timer.Stop() }
	t.mu.Unlock()
	return h
}

// Clear cancels h.
func (t *Ticker) Clear(h Handle) {
	t.mu.Lock()
	stop, ok := t.timers[h]
	delete(t.timers, h)
	t.mu.Unlock()
	if ok {
		stop()
	}
}

// Active returns the number of armed timers.
func (t *Ticker) Active() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.timers)
}

func (t *Ticker) add(stop func()) Handle {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.next++
	t.timers[t.next] = stop
	return t.next
}

func (t *Ticker) active(h Handle) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.timers[h]
	return ok
}

// take removes a one-shot timer, reporting whether it was still armed.
func (t *Ticker) take(h Handle) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.timers[h]
	delete(t.timers, h)
	return ok
}
