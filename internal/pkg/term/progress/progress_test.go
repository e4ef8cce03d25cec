// Copyright OverSkill, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package progress

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSink_PushDropsWhileInFlight(t *testing.T) {
	// GIVEN
	sink := NewSink()

	// WHEN the reader has not consumed the first update yet.
	sink.Push(Update{RunID: 1, ElapsedS: 10})
	sink.Push(Update{RunID: 1, ElapsedS: 40})
	sink.Push(Update{RunID: 1, ElapsedS: 70})

	// THEN only the oldest unconsumed update remains.
	got := <-sink.Updates()
	require.Equal(t, float64(10), got.ElapsedS)

	select {
	case u := <-sink.Updates():
		require.FailNowf(t, "unexpected update", "got %+v", u)
	default:
	}
}

func TestSink_OrderIsPreservedForConsumedUpdates(t *testing.T) {
	// GIVEN
	sink := NewSink()

	// WHEN every update is consumed before the next push.
	var got []float64
	for _, elapsed := range []float64{0, 30, 60, 90} {
		sink.Push(Update{ElapsedS: elapsed})
		got = append(got, (<-sink.Updates()).ElapsedS)
	}

	// THEN elapsed seconds are non-decreasing.
	for i := 1; i < len(got); i += 1 {
		require.GreaterOrEqual(t, got[i], got[i-1])
	}
}

func TestSink_CloseEndsTheStream(t *testing.T) {
	sink := NewSink()
	sink.Push(Update{RunID: 7})
	sink.Close()
	sink.Close() // closing twice is safe

	u, ok := <-sink.Updates()
	require.True(t, ok)
	require.Equal(t, int64(7), u.RunID)

	_, ok = <-sink.Updates()
	require.False(t, ok, "channel should be closed after draining")
}
