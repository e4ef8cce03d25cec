// Copyright OverSkill, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package progress provides data and functionality to display deployment updates to the terminal.
package progress

import (
	"sync"
)

// Status is the condition of a tracked CI run as reported by the source host.
type Status string

// Life-cycle of a workflow run.
const (
	StatusPending    Status = "pending"
	StatusQueued     Status = "queued"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// Update is a single notification emitted while a deployment's CI run is tracked.
type Update struct {
	RunID           int64
	Status          Status
	ElapsedS        float64
	EstimatedTotalS float64

	// Message carries additional human-readable detail, such as the failure
	// summary on a terminal update. Usually empty.
	Message string
}

// Sink is a mailbox for Updates with room for exactly one unconsumed update.
//
// Push never blocks the producer: while a prior update has not been consumed,
// newer ones are dropped. A slow reader therefore observes a subset of the
// updates, always in emission order.
type Sink struct {
	ch        chan Update
	closeOnce sync.Once
}

// NewSink returns an empty Sink ready for use.
func NewSink() *Sink {
	return &Sink{
		ch: make(chan Update, 1),
	}
}

// Push offers an update to the reader and drops it if the prior one is still in flight.
// Push must not be called after Close.
func (s *Sink) Push(u Update) {
	select {
	case s.ch <- u:
	default:
	}
}

// Updates returns the channel to consume updates from. The channel is closed
// once the producer calls Close.
func (s *Sink) Updates() <-chan Update {
	return s.ch
}

// Close marks the end of the update stream. Safe to call multiple times.
func (s *Sink) Close() {
	s.closeOnce.Do(func() {
		close(s.ch)
	})
}
