// Copyright OverSkill, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package cloudflare

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"
)

// scriptModuleName is the entry module every uploaded worker ships as.
const scriptModuleName = "index.js"

// scriptContentType marks the entry part as an ES module.
const scriptContentType = "application/javascript+module"

// Binding is one resource binding attached to an uploaded script. Bindings
// are an ordered list; upload preserves the order callers compose.
type Binding struct {
	Type string `json:"type"`
	Name string `json:"name"`
	// Text is set on plain_text bindings.
	Text string `json:"text,omitempty"`
	// NamespaceID is set on kv_namespace bindings.
	NamespaceID string `json:"namespace_id,omitempty"`
	// Namespace is set on dispatch_namespace bindings.
	Namespace string `json:"namespace,omitempty"`
}

// ScriptMetadata is the metadata part of a multipart script upload.
type ScriptMetadata struct {
	MainModule        string    `json:"main_module"`
	CompatibilityDate string    `json:"compatibility_date,omitempty"`
	Tags              []string  `json:"tags,omitempty"`
	Bindings          []Binding `json:"bindings"`
}

// Script describes a script stored in a dispatch namespace.
type Script struct {
	Name       string    `json:"id"`
	CreatedOn  time.Time `json:"created_on"`
	ModifiedOn time.Time `json:"modified_on"`
}

// EnsureDispatchNamespace creates the named dispatch namespace if it does not
// exist. Already-existing namespaces are success, so the call is idempotent.
func (c *Client) EnsureDispatchNamespace(ctx context.Context, name string) error {
	op := fmt.Sprintf("dispatch namespace %s", name)
	body, err := jsonBody(map[string]string{"name": name})
	if err != nil {
		return fmt.Errorf("encode %s: %w", op, err)
	}
	_, err = c.do(ctx, "create "+op, http.MethodPost, c.accountPath("/workers/dispatch/namespaces"), body, "application/json")
	if err == nil || isAlreadyExists(err) {
		return nil
	}
	return err
}

// UploadScript uploads script bytes under name into a dispatch namespace.
func (c *Client) UploadScript(ctx context.Context, namespace, name string, script []byte, metadata ScriptMetadata) error {
	op := fmt.Sprintf("script %s in namespace %s", name, namespace)
	path := c.accountPath("/workers/dispatch/namespaces/%s/scripts/%s", escape(namespace), escape(name))
	return c.uploadMultipart(ctx, op, path, script, metadata)
}

// UploadWorker uploads script bytes as a plain account-level worker, used for
// the shared dispatch worker.
func (c *Client) UploadWorker(ctx context.Context, name string, script []byte, metadata ScriptMetadata) error {
	op := fmt.Sprintf("worker %s", name)
	path := c.accountPath("/workers/scripts/%s", escape(name))
	return c.uploadMultipart(ctx, op, path, script, metadata)
}

// DeleteScript removes a script from a dispatch namespace.
func (c *Client) DeleteScript(ctx context.Context, namespace, name string) error {
	op := fmt.Sprintf("delete script %s in namespace %s", name, namespace)
	path := c.accountPath("/workers/dispatch/namespaces/%s/scripts/%s", escape(namespace), escape(name))
	_, err := c.do(ctx, op, http.MethodDelete, path, nil, "")
	return err
}

// ListScripts returns every script stored in a dispatch namespace.
func (c *Client) ListScripts(ctx context.Context, namespace string) ([]Script, error) {
	op := fmt.Sprintf("list scripts in namespace %s", namespace)
	env, err := c.do(ctx, op, http.MethodGet, c.accountPath("/workers/dispatch/namespaces/%s/scripts", escape(namespace)), nil, "")
	if err != nil {
		return nil, err
	}
	var scripts []Script
	if err := decodeResult(env, op, &scripts); err != nil {
		return nil, err
	}
	return scripts, nil
}

// GetScript reports whether a script exists in a namespace and returns its
// stored attributes.
func (c *Client) GetScript(ctx context.Context, namespace, name string) (*Script, error) {
	op := fmt.Sprintf("script %s in namespace %s", name, namespace)
	env, err := c.do(ctx, op, http.MethodGet, c.accountPath("/workers/dispatch/namespaces/%s/scripts/%s", escape(namespace), escape(name)), nil, "")
	if err != nil {
		return nil, err
	}
	var script Script
	if err := decodeResult(env, op, &script); err != nil {
		return nil, err
	}
	return &script, nil
}

// ScriptContent downloads the raw module bytes of a stored script, used to
// copy compiled artifacts between namespaces on promotion.
func (c *Client) ScriptContent(ctx context.Context, namespace, name string) ([]byte, error) {
	op := fmt.Sprintf("content of script %s in namespace %s", name, namespace)
	return c.doRaw(ctx, op, http.MethodGet, c.accountPath("/workers/dispatch/namespaces/%s/scripts/%s/content", escape(namespace), escape(name)))
}

// ToggleWorkersDev enables or disables the workers.dev subdomain for an
// account-level worker.
func (c *Client) ToggleWorkersDev(ctx context.Context, script string, enabled bool) error {
	op := fmt.Sprintf("workers.dev subdomain of %s", script)
	body, err := jsonBody(map[string]bool{"enabled": enabled})
	if err != nil {
		return fmt.Errorf("encode %s: %w", op, err)
	}
	_, err = c.do(ctx, "toggle "+op, http.MethodPatch, c.accountPath("/workers/scripts/%s/subdomain", escape(script)), body, "application/json")
	return err
}

// uploadMultipart PUTs a two-part body: the metadata JSON first, then the
// entry module. The platform requires the metadata part to come first.
func (c *Client) uploadMultipart(ctx context.Context, op, path string, script []byte, metadata ScriptMetadata) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	metaHeader := textproto.MIMEHeader{}
	metaHeader.Set("Content-Disposition", `form-data; name="metadata"`)
	metaHeader.Set("Content-Type", "application/json")
	metaPart, err := mw.CreatePart(metaHeader)
	if err != nil {
		return fmt.Errorf("build metadata part for %s: %w", op, err)
	}
	if metadata.MainModule == "" {
		metadata.MainModule = scriptModuleName
	}
	if err := json.NewEncoder(metaPart).Encode(metadata); err != nil {
		return fmt.Errorf("encode metadata for %s: %w", op, err)
	}

	moduleHeader := textproto.MIMEHeader{}
	moduleHeader.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, scriptModuleName, scriptModuleName))
	moduleHeader.Set("Content-Type", scriptContentType)
	modulePart, err := mw.CreatePart(moduleHeader)
	if err != nil {
		return fmt.Errorf("build module part for %s: %w", op, err)
	}
	if _, err := modulePart.Write(script); err != nil {
		return fmt.Errorf("write module for %s: %w", op, err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("finish multipart body for %s: %w", op, err)
	}

	_, err = c.do(ctx, "upload "+op, http.MethodPut, path, &buf, mw.FormDataContentType())
	return err
}

// isAlreadyExists recognizes the platform's "already exists" rejections,
// which idempotent create operations treat as success.
func isAlreadyExists(err error) bool {
	var perm *ErrPermanent
	if !errors.As(err, &perm) {
		return false
	}
	if perm.Code == http.StatusConflict {
		return true
	}
	for _, apiErr := range perm.Errors {
		if strings.Contains(strings.ToLower(apiErr.Message), "already exist") {
			return true
		}
	}
	return false
}
