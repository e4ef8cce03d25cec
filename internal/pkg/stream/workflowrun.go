// Copyright OverSkill, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/overskill/launchpad/internal/pkg/github"
)

// Workflow run discovery tuning. A push does not surface a run immediately;
// discovery polls with growing delays until the deadline.
const (
	discoveryBaseDelay = 10 * time.Second
	discoveryMaxDelay  = 30 * time.Second
	checkInterval      = 30 * time.Second
)

// Discovery deadlines. A repository mutated moments ago gets extra slack
// because workflow scheduling lags behind the push.
const (
	DiscoveryDeadline       = 180 * time.Second
	DiscoveryDeadlineRecent = 300 * time.Second
	recentMutationWindow    = 10 * time.Minute
)

// RunStatusGetter is the source-host interface needed to find and poll
// workflow runs.
type RunStatusGetter interface {
	ListRuns(ctx context.Context, repo string, filter github.RunFilter) ([]*github.Run, error)
	GetRun(ctx context.Context, repo string, runID int64) (*github.Run, error)
}

// RunEvent is a snapshot of a workflow run's progress.
type RunEvent struct {
	RunID      int64
	Status     string
	Conclusion string
	HTMLURL    string
	// ElapsedS is seconds since the run was created, never decreasing
	// across events of one streamer.
	ElapsedS int
}

type clock interface {
	now() time.Time
}

type realClock struct{}

func (c realClock) now() time.Time {
	return time.Now()
}

type fakeClock struct{ fakeNow time.Time }

func (c fakeClock) now() time.Time {
	return c.fakeNow
}

// ErrRunNotFound means no workflow run surfaced before the discovery
// deadline.
type ErrRunNotFound struct {
	Repo     string
	Deadline time.Duration
}

func (e *ErrRunNotFound) Error() string {
	return fmt.Sprintf("no workflow run found in %s within %v", e.Repo, e.Deadline)
}

// WorkflowRunStreamer is a Streamer for RunEvent events of the workflow run
// triggered by a push.
type WorkflowRunStreamer struct {
	client       RunStatusGetter
	ctx          context.Context
	clock        clock
	rand         func(int) int
	repo         string
	headSHA      string
	marker       string
	startedAfter time.Time
	deadline     time.Duration

	runID         int64
	lastElapsedS  int
	subscribers   []chan RunEvent
	eventsToFlush []RunEvent
	isDone        bool
	mu            sync.Mutex

	discoveryStart    time.Time
	discoveryAttempts int
}

// NewWorkflowRunStreamer creates a WorkflowRunStreamer for the run that the
// commit headSHA triggered in repo. marker, when non-empty, is a line of the
// deploy commit's message; a run whose head commit carries it wins over a
// bare SHA match during discovery. lastMutation is when the repository was
// last written; very recent mutations extend the discovery deadline.
func NewWorkflowRunStreamer(ctx context.Context, client RunStatusGetter, repo, headSHA, marker string, lastMutation time.Time) *WorkflowRunStreamer {
	c := realClock{}
	deadline := DiscoveryDeadline
	if c.now().Sub(lastMutation) < recentMutationWindow {
		deadline = DiscoveryDeadlineRecent
	}
	return &WorkflowRunStreamer{
		client:       client,
		ctx:          ctx,
		clock:        c,
		rand:         rand.Intn,
		repo:         repo,
		headSHA:      headSHA,
		marker:       marker,
		startedAfter: lastMutation.Add(-time.Minute),
		deadline:     deadline,
	}
}

// Subscribe returns a read-only channel that will receive run events from the streamer.
func (s *WorkflowRunStreamer) Subscribe() <-chan RunEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := make(chan RunEvent)
	s.subscribers = append(s.subscribers, c)
	if s.isDone {
		close(c)
	}
	return c
}

// Fetch retrieves the current state of the tracked workflow run and stores a
// progress event for it. Until a run is discovered, Fetch polls the run list
// with growing delays; past the discovery deadline it returns ErrRunNotFound.
// Otherwise it returns the time the next Fetch should be attempted.
func (s *WorkflowRunStreamer) Fetch() (next time.Time, err error) {
	now := s.clock.now()
	if s.runID == 0 {
		return s.discover(now)
	}

	run, err := s.client.GetRun(s.ctx, s.repo, s.runID)
	if err != nil {
		return next, fmt.Errorf("fetch workflow run %d in %s: %w", s.runID, s.repo, err)
	}
	s.recordEvent(run, now)
	if run.Completed() {
		s.mu.Lock()
		s.isDone = true
		s.mu.Unlock()
		return now, nil
	}
	return now.Add(checkInterval), nil
}

// discover looks for the run triggered by the tracked commit, preferring a
// head-SHA match and falling back to the most recent run.
func (s *WorkflowRunStreamer) discover(now time.Time) (time.Time, error) {
	if s.discoveryStart.IsZero() {
		s.discoveryStart = now
	}
	runs, err := s.client.ListRuns(s.ctx, s.repo, github.RunFilter{CreatedAfter: s.startedAfter})
	if err != nil {
		return time.Time{}, fmt.Errorf("discover workflow run in %s: %w", s.repo, err)
	}

	run := s.pickRun(runs)
	if run == nil {
		if now.Sub(s.discoveryStart) >= s.deadline {
			return time.Time{}, &ErrRunNotFound{Repo: s.repo, Deadline: s.deadline}
		}
		s.discoveryAttempts++
		return now.Add(s.discoveryDelay()), nil
	}

	s.runID = run.ID
	s.recordEvent(run, now)
	if run.Completed() {
		s.mu.Lock()
		s.isDone = true
		s.mu.Unlock()
		return now, nil
	}
	return now.Add(checkInterval), nil
}

// pickRun matches the tracked commit to a run: the deployment marker in the
// run's head commit message wins, then the head SHA, then the newest run.
func (s *WorkflowRunStreamer) pickRun(runs []*github.Run) *github.Run {
	var shaMatch, newest *github.Run
	for _, run := range runs {
		if s.marker != "" && strings.Contains(run.CommitMessage, s.marker) {
			return run
		}
		if shaMatch == nil && s.headSHA != "" && run.HeadSHA == s.headSHA {
			shaMatch = run
		}
		if newest == nil || run.CreatedAt.After(newest.CreatedAt) {
			newest = run
		}
	}
	if shaMatch != nil {
		return shaMatch
	}
	return newest
}

// discoveryDelay grows the polling delay by half each attempt, capped, with
// ±20% jitter so concurrent tenants do not poll in lockstep.
func (s *WorkflowRunStreamer) discoveryDelay() time.Duration {
	delay := discoveryBaseDelay
	for i := 1; i < s.discoveryAttempts; i++ {
		delay = delay * 3 / 2
		if delay >= discoveryMaxDelay {
			delay = discoveryMaxDelay
			break
		}
	}
	jitter := int64(delay) / 5
	return time.Duration(int64(delay) - jitter/2 + int64(s.rand(int(jitter)+1)))
}

// recordEvent appends a progress event, keeping ElapsedS monotonic even if
// host clocks disagree across polls.
func (s *WorkflowRunStreamer) recordEvent(run *github.Run, now time.Time) {
	elapsed := int(now.Sub(run.CreatedAt).Seconds())
	if elapsed < s.lastElapsedS {
		elapsed = s.lastElapsedS
	}
	s.lastElapsedS = elapsed

	s.mu.Lock()
	defer s.mu.Unlock()
	s.eventsToFlush = append(s.eventsToFlush, RunEvent{
		RunID:      run.ID,
		Status:     run.Status,
		Conclusion: run.Conclusion,
		HTMLURL:    run.HTMLURL,
		ElapsedS:   elapsed,
	})
}

// Notify flushes all new events to the streamer's subscribers.
func (s *WorkflowRunStreamer) Notify() {
	// Copy the subscribers so that the mutex is not held while notifying.
	s.mu.Lock()
	subs := make([]chan RunEvent, len(s.subscribers))
	copy(subs, s.subscribers)
	events := s.eventsToFlush
	s.eventsToFlush = nil
	s.mu.Unlock()

	for _, event := range events {
		for _, sub := range subs {
			sub <- event
		}
	}
}

// Close closes all subscribed channels; no events are notified afterwards.
func (s *WorkflowRunStreamer) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.subscribers {
		close(sub)
	}
	s.isDone = true
}

// Done reports whether the tracked run reached a terminal status.
func (s *WorkflowRunStreamer) Done() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isDone
}
