// Copyright OverSkill, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package deploy

import (
	"context"
	"fmt"

	"github.com/overskill/launchpad/internal/pkg/repo"
	"github.com/overskill/launchpad/internal/pkg/stream"
	"github.com/overskill/launchpad/internal/pkg/term/progress"
)

// watchRun streams the CI run triggered by headSHA until it completes or the
// wall deadline elapses, forwarding progress to the sink. The deployment id
// pins run discovery to the commit carrying its marker line. It returns the
// run's terminal event.
func (c *Coordinator) watchRun(ctx context.Context, repoName, headSHA, deploymentID string, sink *progress.Sink) (*stream.RunEvent, error) {
	watchCtx, cancel := context.WithTimeout(ctx, c.wallDeadline)
	defer cancel()

	streamer := stream.NewWorkflowRunStreamer(watchCtx, c.host, repoName, headSHA, repo.DeployMarker(deploymentID), c.now())
	sub := streamer.Subscribe()
	streamErr := make(chan error, 1)
	go func() {
		streamErr <- stream.Stream(watchCtx, streamer)
		streamer.Close()
	}()

	var last *stream.RunEvent
	for event := range sub {
		event := event
		last = &event
		c.push(sink, progress.Update{
			RunID:           event.RunID,
			Status:          progress.Status(event.Status),
			ElapsedS:        float64(event.ElapsedS),
			EstimatedTotalS: estimatedBuildSeconds,
		})
		if event.Status == "completed" {
			// Stop polling; the streamer flushes any in-flight event before
			// the subscription closes.
			cancel()
		}
	}

	if err := <-streamErr; err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if last == nil || last.Status != "completed" {
		return nil, fmt.Errorf("build run did not complete within %v", c.wallDeadline)
	}
	return last, nil
}
