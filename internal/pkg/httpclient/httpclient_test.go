// Copyright OverSkill, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package httpclient

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNew_RetriesServerErrors(t *testing.T) {
	// GIVEN a server that fails twice before succeeding.
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	// WHEN
	client := New()
	resp, err := client.Get(srv.URL)

	// THEN
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestNew_DoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := New()
	resp, err := client.Get(srv.URL)

	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestNew_StampsUserAgent(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := New()
	resp, err := client.Get(srv.URL)

	require.NoError(t, err)
	resp.Body.Close()
	require.Contains(t, gotUA, "launchpad/")
}

func TestJitter(t *testing.T) {
	t.Run("keeps delays within ±20%", func(t *testing.T) {
		base := 30 * time.Second
		for i := 0; i < 100; i += 1 {
			got := Jitter(base)
			require.GreaterOrEqual(t, got, 24*time.Second)
			require.LessOrEqual(t, got, 36*time.Second)
		}
	})
	t.Run("passes through non-positive durations", func(t *testing.T) {
		require.Equal(t, time.Duration(0), Jitter(0))
	})
}
