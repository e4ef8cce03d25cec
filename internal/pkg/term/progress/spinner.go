// Copyright OverSkill, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package progress

import (
	"fmt"
	"io"
	"os"
	"time"

	spin "github.com/briandowns/spinner"

	"github.com/overskill/launchpad/internal/pkg/term/color"
)

// Settings for the spinner and any text written under it.
const (
	spinnerInterval        = 125 * time.Millisecond
	noAdditionalFormatting = 0
)

type spinner interface {
	Start()
	Stop()
}

// Spinner is an indicator that a single long operation is taking place.
// It is meant for one-shot steps such as creating a repository; live run
// tracking uses the DeploymentComponent instead.
type Spinner struct {
	spin spinner
	sw   *stopWatch
}

// NewSpinner returns a spinner that writes to w.
func NewSpinner(w io.Writer) *Spinner {
	interval := spinnerInterval
	if os.Getenv("CI") == "true" {
		interval = 30 * time.Second
	}
	s := spin.New(charset, interval, spin.WithHiddenCursor(true))
	s.Writer = w
	return &Spinner{
		spin: s,
		sw:   newStopWatch(),
	}
}

// Start starts the spinner suffixed with a label and begins the elapsed stopwatch.
func (s *Spinner) Start(label string) {
	s.suffix(fmt.Sprintf(" %s", label))
	s.sw.start()
	s.spin.Start()
}

// Stop stops the spinner and replaces it with a label suffixed with the elapsed time.
func (s *Spinner) Stop(label string) {
	s.sw.stop()
	if elapsed, ok := s.sw.elapsed(); ok {
		label = fmt.Sprintf("%s %s", label, color.Faint.Sprintf("[%.1fs]", elapsed.Seconds()))
	}
	s.finalMSG(fmt.Sprintln(label))
	s.spin.Stop()
}

func (s *Spinner) suffix(label string) {
	if spinner, ok := s.spin.(*spin.Spinner); ok {
		spinner.Lock()
		spinner.Suffix = label
		spinner.Unlock()
	}
}

func (s *Spinner) finalMSG(msg string) {
	if spinner, ok := s.spin.(*spin.Spinner); ok {
		spinner.Lock()
		spinner.FinalMSG = msg
		spinner.Unlock()
	}
}
