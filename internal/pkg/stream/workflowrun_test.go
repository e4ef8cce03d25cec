// Copyright OverSkill, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/overskill/launchpad/internal/pkg/github"
)

type runsDouble struct {
	listRunsFn func(ctx context.Context, repo string, filter github.RunFilter) ([]*github.Run, error)
	getRunFn   func(ctx context.Context, repo string, runID int64) (*github.Run, error)
}

func (d *runsDouble) ListRuns(ctx context.Context, repo string, filter github.RunFilter) ([]*github.Run, error) {
	return d.listRunsFn(ctx, repo, filter)
}

func (d *runsDouble) GetRun(ctx context.Context, repo string, runID int64) (*github.Run, error) {
	return d.getRunFn(ctx, repo, runID)
}

func testStreamer(client RunStatusGetter, headSHA string) *WorkflowRunStreamer {
	return &WorkflowRunStreamer{
		client:   client,
		ctx:      context.Background(),
		clock:    fakeClock{fakeNow: time.Date(2024, 5, 14, 9, 30, 0, 0, time.UTC)},
		rand:     func(n int) int { return n / 2 },
		repo:     "app-ab12cd",
		headSHA:  headSHA,
		deadline: DiscoveryDeadline,
	}
}

func TestWorkflowRunStreamer_Fetch_Discovery(t *testing.T) {
	t.Run("prefers the run matching the pushed commit", func(t *testing.T) {
		created := time.Date(2024, 5, 14, 9, 29, 0, 0, time.UTC)
		client := &runsDouble{
			listRunsFn: func(_ context.Context, _ string, _ github.RunFilter) ([]*github.Run, error) {
				return []*github.Run{
					{ID: 9, HeadSHA: "other", Status: "in_progress", CreatedAt: created.Add(time.Minute)},
					{ID: 7, HeadSHA: "abc123", Status: "queued", CreatedAt: created},
				}, nil
			},
		}
		s := testStreamer(client, "abc123")

		next, err := s.Fetch()
		require.NoError(t, err)
		require.EqualValues(t, 7, s.runID)
		require.Equal(t, s.clock.now().Add(checkInterval), next)

		require.Len(t, s.eventsToFlush, 1)
		require.Equal(t, RunEvent{RunID: 7, Status: "queued", ElapsedS: 60}, s.eventsToFlush[0])
	})

	t.Run("the deployment marker beats commit-SHA and recency", func(t *testing.T) {
		// A force-push rewrites the head SHA before the run is discovered;
		// only the marker line in the commit message still identifies it.
		created := time.Date(2024, 5, 14, 9, 29, 0, 0, time.UTC)
		client := &runsDouble{
			listRunsFn: func(_ context.Context, _ string, _ github.RunFilter) ([]*github.Run, error) {
				return []*github.Run{
					{ID: 9, HeadSHA: "abc123", Status: "queued", CreatedAt: created.Add(2 * time.Minute), CommitMessage: "Deploy 1 files: index.html\n\nDeploy-Id: dep-999"},
					{ID: 8, HeadSHA: "rewritten", Status: "queued", CreatedAt: created, CommitMessage: "Deploy 1 files: index.html\n\nDeploy-Id: dep-123\nDeploy-Env: staging"},
				}, nil
			},
		}
		s := testStreamer(client, "abc123")
		s.marker = "Deploy-Id: dep-123"

		_, err := s.Fetch()
		require.NoError(t, err)
		require.EqualValues(t, 8, s.runID)
	})

	t.Run("falls back to the most recent run", func(t *testing.T) {
		client := &runsDouble{
			listRunsFn: func(_ context.Context, _ string, _ github.RunFilter) ([]*github.Run, error) {
				return []*github.Run{
					{ID: 1, Status: "queued", CreatedAt: time.Date(2024, 5, 14, 9, 20, 0, 0, time.UTC)},
					{ID: 2, Status: "queued", CreatedAt: time.Date(2024, 5, 14, 9, 28, 0, 0, time.UTC)},
				}, nil
			},
		}
		s := testStreamer(client, "abc123")
		_, err := s.Fetch()
		require.NoError(t, err)
		require.EqualValues(t, 2, s.runID)
	})

	t.Run("retries with growing capped delays while no run exists", func(t *testing.T) {
		client := &runsDouble{
			listRunsFn: func(_ context.Context, _ string, _ github.RunFilter) ([]*github.Run, error) {
				return nil, nil
			},
		}
		s := testStreamer(client, "abc123")

		var delays []time.Duration
		for i := 0; i < 6; i++ {
			next, err := s.Fetch()
			require.NoError(t, err)
			delays = append(delays, next.Sub(s.clock.now()))
		}
		for i := 1; i < len(delays); i++ {
			require.GreaterOrEqual(t, delays[i], delays[i-1], "delays must not shrink")
		}
		// ±20% jitter around the 30s cap.
		require.LessOrEqual(t, delays[len(delays)-1], 36*time.Second)
		require.GreaterOrEqual(t, delays[len(delays)-1], 24*time.Second)
	})

	t.Run("gives up at the discovery deadline", func(t *testing.T) {
		client := &runsDouble{
			listRunsFn: func(_ context.Context, _ string, _ github.RunFilter) ([]*github.Run, error) {
				return nil, nil
			},
		}
		s := testStreamer(client, "abc123")
		_, err := s.Fetch() // Start the discovery window.
		require.NoError(t, err)

		s.clock = fakeClock{fakeNow: s.discoveryStart.Add(DiscoveryDeadline)}
		_, err = s.Fetch()
		var notFound *ErrRunNotFound
		require.ErrorAs(t, err, &notFound)
		require.Equal(t, "app-ab12cd", notFound.Repo)
	})

	t.Run("surfaces list errors", func(t *testing.T) {
		client := &runsDouble{
			listRunsFn: func(_ context.Context, _ string, _ github.RunFilter) ([]*github.Run, error) {
				return nil, errors.New("boom")
			},
		}
		s := testStreamer(client, "abc123")
		_, err := s.Fetch()
		require.ErrorContains(t, err, "discover workflow run")
	})
}

func TestWorkflowRunStreamer_Fetch_Polling(t *testing.T) {
	t.Run("polls until the run completes", func(t *testing.T) {
		statuses := []string{"in_progress", "completed"}
		var polls int
		client := &runsDouble{
			getRunFn: func(_ context.Context, _ string, runID int64) (*github.Run, error) {
				require.EqualValues(t, 7, runID)
				run := &github.Run{
					ID:        7,
					Status:    statuses[polls],
					CreatedAt: time.Date(2024, 5, 14, 9, 29, 0, 0, time.UTC),
				}
				if run.Status == "completed" {
					run.Conclusion = "success"
				}
				polls++
				return run, nil
			},
		}
		s := testStreamer(client, "abc123")
		s.runID = 7

		next, err := s.Fetch()
		require.NoError(t, err)
		require.False(t, s.Done())
		require.Equal(t, s.clock.now().Add(checkInterval), next)

		_, err = s.Fetch()
		require.NoError(t, err)
		require.True(t, s.Done())
		require.Equal(t, "success", s.eventsToFlush[1].Conclusion)
	})

	t.Run("elapsed seconds never decrease", func(t *testing.T) {
		client := &runsDouble{
			getRunFn: func(_ context.Context, _ string, _ int64) (*github.Run, error) {
				return &github.Run{ID: 7, Status: "in_progress", CreatedAt: time.Date(2024, 5, 14, 9, 29, 0, 0, time.UTC)}, nil
			},
		}
		s := testStreamer(client, "abc123")
		s.runID = 7
		s.lastElapsedS = 90 // A prior poll observed a later clock.

		_, err := s.Fetch()
		require.NoError(t, err)
		require.Equal(t, 90, s.eventsToFlush[0].ElapsedS)
	})
}

func TestWorkflowRunStreamer_SubscribeNotifyClose(t *testing.T) {
	s := testStreamer(&runsDouble{}, "abc123")
	sub := s.Subscribe()

	s.eventsToFlush = []RunEvent{
		{RunID: 7, Status: "queued", ElapsedS: 10},
		{RunID: 7, Status: "in_progress", ElapsedS: 40},
	}
	done := make(chan struct{})
	var got []RunEvent
	go func() {
		for ev := range sub {
			got = append(got, ev)
		}
		close(done)
	}()

	s.Notify()
	s.Close()
	<-done

	require.Equal(t, []RunEvent{
		{RunID: 7, Status: "queued", ElapsedS: 10},
		{RunID: 7, Status: "in_progress", ElapsedS: 40},
	}, got)

	// Late subscriptions to a finished streamer receive a closed channel.
	_, ok := <-s.Subscribe()
	require.False(t, ok)
}
