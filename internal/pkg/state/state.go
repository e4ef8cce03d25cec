// Copyright OverSkill, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package state is the durable record of deployments and version snapshots.
// Deployment rows are append-only with guarded transitions: a row moves from
// deploying to exactly one terminal state and never leaves it.
package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/overskill/launchpad/internal/pkg/apps"
)

// Status is the lifecycle state of one deployment row.
type Status string

const (
	StatusDeploying Status = "deploying"
	StatusDeployed  Status = "deployed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether the status permits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusDeployed || s == StatusFailed
}

// Deployment is one deployment attempt of an app into an environment.
type Deployment struct {
	ID uint `gorm:"primarykey"`
	// AuditID is the stable opaque identifier surfaced in logs and summaries.
	AuditID     string `gorm:"size:36;uniqueIndex"`
	AppID       string `gorm:"size:64;index:idx_deployments_app_env,priority:1"`
	Environment string `gorm:"size:16;index:idx_deployments_app_env,priority:2"`
	// DeploymentID equals the script name generated for the environment at
	// push time.
	DeploymentID string `gorm:"size:128"`
	Status       Status `gorm:"size:16"`
	URL          string
	Actor        string `gorm:"size:128"`
	// Metadata is a JSON blob: commit SHA, run id, digest on promotion, and
	// the failure summary on failed rows.
	Metadata  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DecodeMetadata unmarshals the row's metadata blob.
func (d *Deployment) DecodeMetadata() (map[string]interface{}, error) {
	if d.Metadata == "" {
		return map[string]interface{}{}, nil
	}
	out := map[string]interface{}{}
	if err := json.Unmarshal([]byte(d.Metadata), &out); err != nil {
		return nil, fmt.Errorf("decode metadata of deployment %s: %w", d.AuditID, err)
	}
	return out, nil
}

// Handle identifies an in-flight deployment row between Begin and its
// terminal transition.
type Handle struct {
	rowID   uint
	AuditID string
	AppID   string
	Env     apps.Environment
}

// EnvStatus is the aggregated latest state of one environment.
type EnvStatus struct {
	URL          string
	Status       Status
	LastDeployed time.Time
}

// Store persists deployment and version rows. Writes to the same (app, env)
// key are serialized so transition guards observe a consistent row.
type Store struct {
	db *gorm.DB

	mu   sync.Mutex
	keys map[string]*sync.Mutex
}

// Open connects to the relational store at dsn and migrates the schema.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open deployment store: %w", err)
	}
	return NewWithDB(db)
}

// NewWithDB wraps an existing gorm handle, used by tests with a sqlite
// driver.
func NewWithDB(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&Deployment{}, &AppVersion{}, &AppVersionFile{}); err != nil {
		return nil, fmt.Errorf("migrate deployment store: %w", err)
	}
	return &Store{db: db, keys: make(map[string]*sync.Mutex)}, nil
}

// Begin opens a deploying row for (app, env). A second Begin while another
// row on the same key is still deploying fails with ErrDeploymentInFlight.
func (s *Store) Begin(ctx context.Context, appID string, env apps.Environment, deploymentID, actor string, metadata map[string]interface{}) (*Handle, error) {
	unlock := s.lockKey(appID, env)
	defer unlock()

	var inflight int64
	err := s.db.WithContext(ctx).Model(&Deployment{}).
		Where("app_id = ? AND environment = ? AND status = ?", appID, string(env), StatusDeploying).
		Count(&inflight).Error
	if err != nil {
		return nil, fmt.Errorf("check in-flight deployments for %s/%s: %w", appID, env, err)
	}
	if inflight > 0 {
		return nil, &ErrDeploymentInFlight{AppID: appID, Env: env}
	}

	meta, err := encodeMetadata(metadata)
	if err != nil {
		return nil, err
	}
	row := Deployment{
		AuditID:      uuid.NewString(),
		AppID:        appID,
		Environment:  string(env),
		DeploymentID: deploymentID,
		Status:       StatusDeploying,
		Actor:        actor,
		Metadata:     meta,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, fmt.Errorf("create deployment row for %s/%s: %w", appID, env, err)
	}
	return &Handle{rowID: row.ID, AuditID: row.AuditID, AppID: appID, Env: env}, nil
}

// Complete transitions the handle's row to deployed and records its public
// URL.
func (s *Store) Complete(ctx context.Context, h *Handle, url string) error {
	return s.finish(ctx, h, StatusDeployed, map[string]interface{}{}, url)
}

// Fail transitions the handle's row to failed, folding the error summary into
// the metadata blob.
func (s *Store) Fail(ctx context.Context, h *Handle, cause error, summary map[string]interface{}) error {
	if summary == nil {
		summary = map[string]interface{}{}
	}
	if cause != nil {
		summary["error"] = cause.Error()
	}
	return s.finish(ctx, h, StatusFailed, summary, "")
}

// finish performs the guarded terminal transition. The UPDATE's status
// predicate is the transition guard: a row already out of deploying is left
// untouched and the call fails with ErrIllegalTransition.
func (s *Store) finish(ctx context.Context, h *Handle, to Status, extraMeta map[string]interface{}, url string) error {
	unlock := s.lockKey(h.AppID, h.Env)
	defer unlock()

	var row Deployment
	if err := s.db.WithContext(ctx).First(&row, h.rowID).Error; err != nil {
		return fmt.Errorf("load deployment %s: %w", h.AuditID, err)
	}
	merged, err := row.DecodeMetadata()
	if err != nil {
		return err
	}
	for k, v := range extraMeta {
		merged[k] = v
	}
	meta, err := encodeMetadata(merged)
	if err != nil {
		return err
	}

	updates := map[string]interface{}{"status": to, "metadata": meta}
	if url != "" {
		updates["url"] = url
	}
	res := s.db.WithContext(ctx).Model(&Deployment{}).
		Where("id = ? AND status = ?", h.rowID, StatusDeploying).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("transition deployment %s to %s: %w", h.AuditID, to, res.Error)
	}
	if res.RowsAffected == 0 {
		return &ErrIllegalTransition{AuditID: h.AuditID, From: row.Status, To: to}
	}
	return nil
}

// Latest returns the most recent deployment row for (app, env), or nil when
// the app never deployed there.
func (s *Store) Latest(ctx context.Context, appID string, env apps.Environment) (*Deployment, error) {
	var row Deployment
	err := s.db.WithContext(ctx).
		Where("app_id = ? AND environment = ?", appID, string(env)).
		Order("created_at DESC, id DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest deployment for %s/%s: %w", appID, env, err)
	}
	return &row, nil
}

// List returns every deployment row of an app, most recent first.
func (s *Store) List(ctx context.Context, appID string) ([]Deployment, error) {
	var rows []Deployment
	err := s.db.WithContext(ctx).
		Where("app_id = ?", appID).
		Order("created_at DESC, id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list deployments for %s: %w", appID, err)
	}
	return rows, nil
}

// StatusByEnv aggregates the latest row per environment. Environments never
// deployed to are absent from the result.
func (s *Store) StatusByEnv(ctx context.Context, appID string) (map[apps.Environment]EnvStatus, error) {
	out := make(map[apps.Environment]EnvStatus)
	for _, env := range apps.Environments {
		latest, err := s.Latest(ctx, appID, env)
		if err != nil {
			return nil, err
		}
		if latest == nil {
			continue
		}
		status := EnvStatus{URL: latest.URL, Status: latest.Status}
		if latest.Status == StatusDeployed {
			status.LastDeployed = latest.UpdatedAt
		}
		out[env] = status
	}
	return out, nil
}

// lockKey serializes writers of one (app, env) tuple. Distinct tuples
// proceed independently.
func (s *Store) lockKey(appID string, env apps.Environment) (unlock func()) {
	key := appID + "/" + string(env)
	s.mu.Lock()
	m, ok := s.keys[key]
	if !ok {
		m = &sync.Mutex{}
		s.keys[key] = m
	}
	s.mu.Unlock()
	m.Lock()
	return m.Unlock
}

func encodeMetadata(metadata map[string]interface{}) (string, error) {
	if len(metadata) == 0 {
		return "", nil
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		return "", fmt.Errorf("encode deployment metadata: %w", err)
	}
	return string(raw), nil
}
