// Copyright OverSkill, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package progress

import (
	"context"
	"io"
	"text/tabwriter"
	"time"

	"github.com/overskill/launchpad/internal/pkg/term/cursor"
)

// Renderer is the interface to print a component to a writer.
// It returns the number of lines printed and the error if any.
type Renderer interface {
	Render(out io.Writer) (numLines int, err error)
}

// DynamicRenderer is a Renderer that can notify that its internal states are Done updating.
// DynamicRenderer is implemented by components that listen to update streams.
type DynamicRenderer interface {
	Renderer
	Done() <-chan struct{}
}

// FileWriteFlusher is a buffered file writer whose contents can be flushed on demand.
type FileWriteFlusher interface {
	io.Writer
	// Fd returns the file descriptor of the underlying file.
	Fd() uintptr
	// Flush writes any buffered text to the underlying file.
	Flush() error
}

// FileWriter is an io.Writer with a file descriptor, such as os.Stderr.
type FileWriter interface {
	io.Writer
	// Fd returns the file descriptor of the underlying file.
	Fd() uintptr
}

// NewTabbedFileWriter takes a file as input and returns a FileWriteFlusher
// where columns in the file are aligned on tab characters.
func NewTabbedFileWriter(fw FileWriter) FileWriteFlusher {
	return &tabbedFileWriter{
		buf: tabwriter.NewWriter(fw, 0, 4, 2, ' ', noAdditionalFormatting),
		fw:  fw,
	}
}

type tabbedFileWriter struct {
	buf *tabwriter.Writer
	fw  FileWriter
}

func (w *tabbedFileWriter) Write(p []byte) (n int, err error) {
	return w.buf.Write(p)
}

// Fd returns the file descriptor of the underlying file.
func (w *tabbedFileWriter) Fd() uintptr {
	return w.fw.Fd()
}

// Flush writes any buffered text to the underlying file.
func (w *tabbedFileWriter) Flush() error {
	return w.buf.Flush()
}

// RenderOptions holds optional style configuration for renderers.
type RenderOptions struct {
	Padding int // Leading spaces before rendering the component.
}

// NestedRenderOptions takes a RenderOptions and returns the same RenderOptions but with additional padding.
func NestedRenderOptions(opts RenderOptions) RenderOptions {
	return RenderOptions{
		Padding: opts.Padding + nestedComponentPadding,
	}
}

// Render renders r periodically to out and returns the last number of lines written to out.
// Render stops when the ctx is canceled or r is done listening to new events.
// While Render is executing, the terminal cursor is hidden and updates are written in-place.
func Render(ctx context.Context, out FileWriteFlusher, r DynamicRenderer) (int, error) {
	defer out.Flush() // Make sure every buffered text in out is written before exiting.

	cur := cursor.NewWithWriter(out)
	cur.Hide()
	defer cur.Show()

	var writtenLines int
	for {
		select {
		case <-ctx.Done():
			return writtenLines, ctx.Err()
		case <-r.Done():
			return EraseAndRender(out, r, writtenLines)
		case <-time.After(renderInterval):
			nl, err := EraseAndRender(out, r, writtenLines)
			if err != nil {
				return nl, err
			}
			writtenLines = nl
		}
	}
}

// EraseAndRender erases prevNumLines from out and then renders r.
func EraseAndRender(out FileWriteFlusher, r Renderer, prevNumLines int) (int, error) {
	cursor.EraseLinesAbove(out, prevNumLines)
	if err := out.Flush(); err != nil {
		return 0, err
	}
	nl, err := r.Render(out)
	if err != nil {
		return 0, err
	}
	if err := out.Flush(); err != nil {
		return 0, err
	}
	return nl, err
}

// MultiRenderer returns a Renderer that's the concatenation of the input renderers.
// The renderers are rendered sequentially, and the MultiRenderer is only Done once all renderers are Done.
func MultiRenderer(renderers ...DynamicRenderer) DynamicRenderer {
	mr := &multiRenderer{
		renderers: renderers,
		done:      make(chan struct{}),
	}
	go mr.listen()
	return mr
}

type multiRenderer struct {
	renderers []DynamicRenderer
	done      chan struct{}
}

// Render sequentially renders the renderers to out and returns the sum of the number of lines written.
func (mr *multiRenderer) Render(out io.Writer) (int, error) {
	var sum int
	for _, r := range mr.renderers {
		nl, err := r.Render(out)
		if err != nil {
			return 0, err
		}
		sum += nl
	}
	return sum, nil
}

// Done returns a channel that's closed when there are no more events to listen for.
func (mr *multiRenderer) Done() <-chan struct{} {
	return mr.done
}

func (mr *multiRenderer) listen() {
	for _, r := range mr.renderers {
		<-r.Done()
	}
	close(mr.done)
}
