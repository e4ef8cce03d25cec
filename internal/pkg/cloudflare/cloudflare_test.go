// Copyright OverSkill, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package cloudflare

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New("acct-123", "test-token", WithBaseURL(srv.URL))
}

func writeEnvelope(t *testing.T, w http.ResponseWriter, status int, result interface{}, apiErrs ...APIError) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	raw, err := json.Marshal(result)
	require.NoError(t, err)
	require.NoError(t, json.NewEncoder(w).Encode(map[string]interface{}{
		"success": status < 400,
		"errors":  apiErrs,
		"result":  json.RawMessage(raw),
	}))
}

func TestClient_UploadScript_MultipartFormat(t *testing.T) {
	metadata := ScriptMetadata{
		CompatibilityDate: "2024-01-01",
		Tags:              []string{"app:ab12cd"},
		Bindings: []Binding{
			{Type: "kv_namespace", Name: "PREVIEW_FILES", NamespaceID: "kv-1"},
			{Type: "plain_text", Name: "ENVIRONMENT", Text: "production"},
			{Type: "plain_text", Name: "APP_ID", Text: "ab12cd"},
		},
	}

	var gotAuth string
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		require.Equal(t, "/accounts/acct-123/workers/dispatch/namespaces/overskill-production-production/scripts/countmaster", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")

		mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		require.NoError(t, err)
		require.Equal(t, "multipart/form-data", mediaType)

		mr := multipart.NewReader(r.Body, params["boundary"])

		// The metadata part must come first.
		part, err := mr.NextPart()
		require.NoError(t, err)
		require.Equal(t, "metadata", part.FormName())
		require.Equal(t, "application/json", part.Header.Get("Content-Type"))
		var gotMeta ScriptMetadata
		require.NoError(t, json.NewDecoder(part).Decode(&gotMeta))
		require.Equal(t, "index.js", gotMeta.MainModule)
		// Binding order must round-trip exactly.
		require.Equal(t, metadata.Bindings, gotMeta.Bindings)

		part, err = mr.NextPart()
		require.NoError(t, err)
		require.Equal(t, "index.js", part.FormName())
		require.Equal(t, "application/javascript+module", part.Header.Get("Content-Type"))
		body, err := io.ReadAll(part)
		require.NoError(t, err)
		require.Equal(t, "export default {}", string(body))

		writeEnvelope(t, w, http.StatusOK, map[string]string{"id": "countmaster"})
	}))

	err := c.UploadScript(context.Background(), "overskill-production-production", "countmaster", []byte("export default {}"), metadata)
	require.NoError(t, err)
	require.Equal(t, "Bearer test-token", gotAuth)
}

func TestClient_EnsureDispatchNamespace(t *testing.T) {
	t.Run("creates once and tolerates already-exists", func(t *testing.T) {
		creates := 0
		c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/accounts/acct-123/workers/dispatch/namespaces", r.URL.Path)
			creates += 1
			if creates == 1 {
				writeEnvelope(t, w, http.StatusOK, map[string]string{"namespace_name": "overskill-production-preview"})
				return
			}
			writeEnvelope(t, w, http.StatusConflict, nil, APIError{Code: 100119, Message: "namespace already exists"})
		}))

		for i := 0; i < 3; i += 1 {
			require.NoError(t, c.EnsureDispatchNamespace(context.Background(), "overskill-production-preview"))
		}
		require.Equal(t, 3, creates)
	})

	t.Run("surfaces other rejections", func(t *testing.T) {
		c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeEnvelope(t, w, http.StatusBadRequest, nil, APIError{Code: 7003, Message: "invalid namespace name"})
		}))
		err := c.EnsureDispatchNamespace(context.Background(), "bad name")
		var perm *ErrPermanent
		require.ErrorAs(t, err, &perm)
		require.Equal(t, http.StatusBadRequest, perm.Code)
	})
}

func TestClient_CreateRoute(t *testing.T) {
	t.Run("treats an existing identical route as success", func(t *testing.T) {
		c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/zones/zone-1/workers/routes", r.URL.Path)
			var got Route
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			require.Equal(t, "countmaster.overskill.app/*", got.Pattern)
			require.Equal(t, "overskill-dispatch", got.Script)
			writeEnvelope(t, w, http.StatusConflict, nil, APIError{Code: 10020, Message: "route already exists"})
		}))
		require.NoError(t, c.CreateRoute(context.Background(), "zone-1", "countmaster.overskill.app/*", "overskill-dispatch"))
	})
}

func TestClient_ZoneID(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/zones", r.URL.Path)
		require.Equal(t, "overskill.app", r.URL.Query().Get("name"))
		writeEnvelope(t, w, http.StatusOK, []map[string]string{
			{"id": "zone-1", "name": "overskill.app"},
		})
	}))
	id, err := c.ZoneID(context.Background(), "overskill.app")
	require.NoError(t, err)
	require.Equal(t, "zone-1", id)
}

func TestClient_ScriptContent(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/accounts/acct-123/workers/dispatch/namespaces/overskill-production-staging/scripts/ab12cd/content", r.URL.Path)
		w.Header().Set("Content-Type", "application/javascript+module")
		fmt.Fprint(w, "export default { fetch() {} }")
	}))
	body, err := c.ScriptContent(context.Background(), "overskill-production-staging", "ab12cd")
	require.NoError(t, err)
	require.Equal(t, "export default { fetch() {} }", string(body))
}

func TestClient_GetOrCreateKVNamespace(t *testing.T) {
	t.Run("returns the existing namespace without creating", func(t *testing.T) {
		c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodGet, r.Method)
			writeEnvelope(t, w, http.StatusOK, []KVNamespace{{ID: "kv-1", Title: "PREVIEW_FILES"}})
		}))
		id, err := c.GetOrCreateKVNamespace(context.Background(), "PREVIEW_FILES")
		require.NoError(t, err)
		require.Equal(t, "kv-1", id)
	})

	t.Run("creates when absent", func(t *testing.T) {
		c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet {
				writeEnvelope(t, w, http.StatusOK, []KVNamespace{})
				return
			}
			var got map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			require.Equal(t, "PREVIEW_FILES", got["title"])
			writeEnvelope(t, w, http.StatusOK, KVNamespace{ID: "kv-new", Title: "PREVIEW_FILES"})
		}))
		id, err := c.GetOrCreateKVNamespace(context.Background(), "PREVIEW_FILES")
		require.NoError(t, err)
		require.Equal(t, "kv-new", id)
	})
}

func TestClient_ErrorMapping(t *testing.T) {
	tests := map[string]struct {
		status  int
		check   func(t *testing.T, err error)
	}{
		"404 is not found": {
			status: http.StatusNotFound,
			check: func(t *testing.T, err error) {
				var notFound *ErrNotFound
				require.ErrorAs(t, err, &notFound)
			},
		},
		"403 is unauthorized": {
			status: http.StatusForbidden,
			check: func(t *testing.T, err error) {
				var unauthorized *ErrUnauthorized
				require.ErrorAs(t, err, &unauthorized)
			},
		},
		"400 is permanent": {
			status: http.StatusBadRequest,
			check: func(t *testing.T, err error) {
				var perm *ErrPermanent
				require.ErrorAs(t, err, &perm)
				require.Contains(t, perm.Error(), "status 400")
			},
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeEnvelope(t, w, tc.status, nil, APIError{Code: 1, Message: "nope"})
			}))
			_, err := c.ListScripts(context.Background(), "overskill-production-preview")
			tc.check(t, err)
		})
	}
}

func TestClient_AccountSubdomain(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/accounts/acct-123/workers/subdomain", r.URL.Path)
		writeEnvelope(t, w, http.StatusOK, map[string]string{"subdomain": "overskill"})
	}))
	sub, err := c.AccountSubdomain(context.Background())
	require.NoError(t, err)
	require.Equal(t, "overskill", sub)
}
