// Copyright OverSkill, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package progress

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/overskill/launchpad/internal/pkg/term/color"
	"github.com/overskill/launchpad/internal/pkg/term/progress/summarybar"
)

const (
	runBarWidth = 10
	doneRep     = "█"
	leftRep     = "░"
	emptyRep    = "▒"
)

// DeploymentComponent renders the live progress of one monitored deployment:
// a spinner-decorated headline with the run status, and a bar showing elapsed
// time against the estimated build duration.
type DeploymentComponent struct {
	appName string
	env     string

	mu       sync.Mutex
	latest   Update
	received bool
	frame    int

	stream <-chan Update
	done   chan struct{}

	Padding int
}

// ListenDeployment returns a DeploymentComponent that consumes sink until it
// is closed and renders the most recently received update.
func ListenDeployment(appName, env string, sink *Sink) *DeploymentComponent {
	c := &DeploymentComponent{
		appName: appName,
		env:     env,
		stream:  sink.Updates(),
		done:    make(chan struct{}),
	}
	go c.listen()
	return c
}

// Done returns a channel that's closed once the update stream ends.
func (c *DeploymentComponent) Done() <-chan struct{} {
	return c.done
}

// Render writes the headline, the elapsed bar, and any terminal message to out.
func (c *DeploymentComponent) Render(out io.Writer) (numLines int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.frame += 1
	spin := charset[c.frame%len(charset)]

	headline := fmt.Sprintf("%s Deploying %s to %s %s", spin, c.appName, c.env, c.prettyStatus())
	components := []Renderer{
		&singleLineComponent{Text: headline, Padding: c.Padding},
	}
	if bar := c.elapsedBar(); bar != nil {
		components = append(components, bar)
	}
	if msg := c.latest.Message; msg != "" {
		for _, line := range strings.Split(strings.TrimRight(msg, "\n"), "\n") {
			components = append(components, &singleLineComponent{
				Text:    color.Faint.Sprint(line),
				Padding: c.Padding + nestedComponentPadding,
			})
		}
	}
	return renderComponents(out, components)
}

func (c *DeploymentComponent) listen() {
	for u := range c.stream {
		c.mu.Lock()
		c.latest = u
		c.received = true
		c.mu.Unlock()
	}
	close(c.done)
}

func (c *DeploymentComponent) prettyStatus() string {
	if !c.received {
		return color.Faint.Sprint("[waiting for run]")
	}
	status := strings.ReplaceAll(string(c.latest.Status), "_", " ")
	text := fmt.Sprintf("[%s]", status)
	switch c.latest.Status {
	case StatusCompleted:
		return color.Green.Sprint(text)
	case StatusInProgress:
		return text
	default:
		return color.Faint.Sprint(text)
	}
}

// elapsedBar renders elapsed seconds against the estimated total. Once the
// estimate is exceeded the bar stays full rather than overflowing.
func (c *DeploymentComponent) elapsedBar() Renderer {
	if !c.received || c.latest.EstimatedTotalS <= 0 {
		return nil
	}
	elapsed := int(c.latest.ElapsedS)
	remaining := int(c.latest.EstimatedTotalS) - elapsed
	if remaining < 0 {
		remaining = 0
	}
	bar := summarybar.New([]summarybar.Datum{
		{Representation: doneRep, Value: elapsed},
		{Representation: leftRep, Value: remaining},
	}, summarybar.WithWidth(runBarWidth), summarybar.WithEmptyRep(emptyRep))
	label := fmt.Sprintf(" run %d %s", c.latest.RunID, color.Faint.Sprintf("[%.0fs/~%.0fs]", c.latest.ElapsedS, c.latest.EstimatedTotalS))
	return &suffixedComponent{bar: bar, suffix: label, padding: c.Padding + nestedComponentPadding}
}

// suffixedComponent writes a renderer followed by a suffix on the same line.
type suffixedComponent struct {
	bar     Renderer
	suffix  string
	padding int
}

// Render writes the padded bar, then the suffix, then a newline.
func (c *suffixedComponent) Render(out io.Writer) (numLines int, err error) {
	if _, err := fmt.Fprint(out, strings.Repeat(" ", c.padding)); err != nil {
		return 0, err
	}
	if _, err := c.bar.Render(out); err != nil {
		return 0, err
	}
	if _, err := fmt.Fprintf(out, "%s\n", c.suffix); err != nil {
		return 0, err
	}
	return 1, nil
}
