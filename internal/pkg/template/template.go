// Copyright OverSkill, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package template renders the static files under the "/templates/" directory.
package template

import (
	"bytes"
	"fmt"
	"io/fs"
	"text/template"

	"github.com/overskill/launchpad/templates"
)

// Paths of the rendered assets under "/templates/".
const (
	WorkflowPath       = "workflows/deploy.yml"
	WranglerPath       = "wrangler/wrangler.toml"
	DispatchWorkerPath = "dispatch/worker.js"
	bootstrapRoot      = "bootstrap"
)

// Parser is the interface that wraps the Parse method.
type Parser interface {
	Parse(path string, data interface{}, options ...ParseOption) (*Content, error)
}

// ReadParser is the interface that wraps the Read and Parse methods.
type ReadParser interface {
	Read(path string) (*Content, error)
	Parser
}

// Template reads and renders files under the "/templates/" directory.
type Template struct {
	fs fs.FS
}

// New returns a Template object that can be used to parse files under the
// "/templates/" directory.
func New() *Template {
	return &Template{fs: templates.FS}
}

// ParseOption represents a functional option for Parse.
type ParseOption func(t *template.Template) *template.Template

// WithFuncs returns a template that can parse additional custom functions.
func WithFuncs(fns map[string]interface{}) ParseOption {
	return func(t *template.Template) *template.Template {
		return t.Funcs(fns)
	}
}

// Content represents the parsed template.
type Content struct {
	*bytes.Buffer
}

// MarshalBinary returns the contents as binary and implements the
// encoding.BinaryMarshaler interface.
func (c *Content) MarshalBinary() ([]byte, error) {
	return c.Bytes(), nil
}

// Read returns the raw contents of the template under "/templates/{path}".
func (t *Template) Read(path string) (*Content, error) {
	raw, err := fs.ReadFile(t.fs, path)
	if err != nil {
		return nil, fmt.Errorf("read template %s: %w", path, err)
	}
	return &Content{bytes.NewBuffer(raw)}, nil
}

// Parse parses the template under "/templates/{path}" with the given data and
// returns its rendered content.
func (t *Template) Parse(path string, data interface{}, options ...ParseOption) (*Content, error) {
	content, err := t.Read(path)
	if err != nil {
		return nil, err
	}
	tpl := template.New(path)
	for _, opt := range options {
		tpl = opt(tpl)
	}
	parsed, err := tpl.Parse(content.String())
	if err != nil {
		return nil, fmt.Errorf("parse template %s: %w", path, err)
	}
	buf := &bytes.Buffer{}
	if err := parsed.Execute(buf, data); err != nil {
		return nil, fmt.Errorf("execute template %s: %w", path, err)
	}
	return &Content{buf}, nil
}

// ParseBootstrap renders every file of the bootstrap template set with the
// given data and returns them keyed by repository-relative path.
func (t *Template) ParseBootstrap(data interface{}) (map[string]string, error) {
	out := make(map[string]string)
	err := fs.WalkDir(t.fs, bootstrapRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rendered, err := t.Parse(path, data)
		if err != nil {
			return err
		}
		out[path[len(bootstrapRoot)+1:]] = rendered.String()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("render bootstrap file set: %w", err)
	}
	return out, nil
}
