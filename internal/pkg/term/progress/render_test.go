// Copyright OverSkill, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package progress

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

type mockDynamicRenderer struct {
	content string
	done    chan struct{}
}

func (m *mockDynamicRenderer) Render(out io.Writer) (int, error) {
	out.Write([]byte(m.content))
	return 1, nil
}

func (m *mockDynamicRenderer) Done() <-chan struct{} {
	return m.done
}

type mockFileWriteFlusher struct {
	buf bytes.Buffer
}

func (m *mockFileWriteFlusher) Write(p []byte) (n int, err error) {
	return m.buf.Write(p)
}

func (m *mockFileWriteFlusher) Fd() uintptr {
	return 0
}

func (m *mockFileWriteFlusher) Flush() error {
	return nil
}

func TestRender(t *testing.T) {
	t.Run("stops when the context is canceled", func(t *testing.T) {
		// GIVEN
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		r := &mockDynamicRenderer{content: "hi\n", done: make(chan struct{})}
		out := &mockFileWriteFlusher{}

		// WHEN
		_, err := Render(ctx, out, r)

		// THEN
		require.ErrorIs(t, err, context.Canceled)
	})
	t.Run("renders one final frame once the renderer is done", func(t *testing.T) {
		// GIVEN
		r := &mockDynamicRenderer{content: "all done\n", done: make(chan struct{})}
		close(r.done)
		out := &mockFileWriteFlusher{}

		// WHEN
		nl, err := Render(context.Background(), out, r)

		// THEN
		require.NoError(t, err)
		require.Equal(t, 1, nl)
		require.Contains(t, out.buf.String(), "all done")
	})
}

func TestEraseAndRender(t *testing.T) {
	// GIVEN
	r := &mockDynamicRenderer{content: "fresh\n", done: make(chan struct{})}
	out := &mockFileWriteFlusher{}

	// WHEN
	nl, err := EraseAndRender(out, r, 2)

	// THEN
	require.NoError(t, err)
	require.Equal(t, 1, nl)
	require.Contains(t, out.buf.String(), "fresh")
}

func TestMultiRenderer(t *testing.T) {
	// GIVEN
	first := &mockDynamicRenderer{content: "a\n", done: make(chan struct{})}
	second := &mockDynamicRenderer{content: "b\n", done: make(chan struct{})}
	close(first.done)
	close(second.done)
	mr := MultiRenderer(first, second)

	// WHEN
	buf := new(bytes.Buffer)
	nl, err := mr.Render(buf)
	<-mr.Done()

	// THEN
	require.NoError(t, err)
	require.Equal(t, 2, nl)
	require.Equal(t, "a\nb\n", buf.String())
}
