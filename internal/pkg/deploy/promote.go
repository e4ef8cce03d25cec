// Copyright OverSkill, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package deploy

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/overskill/launchpad/internal/pkg/apps"
	"github.com/overskill/launchpad/internal/pkg/dispatch"
)

// PromoteOutcome reports a completed promotion.
type PromoteOutcome struct {
	AuditID string
	URL     string
	// Digest is the hex SHA-256 of the promoted script bytes, recorded so a
	// promotion can be audited against the source environment's script.
	Digest string
}

// Promote copies the app's compiled script from one environment into the
// next without a rebuild and records the result as a deployment. Only the
// preview→staging and staging→production hops are legal.
func (c *Coordinator) Promote(ctx context.Context, app *apps.App, from, to apps.Environment, actor string) (*PromoteOutcome, error) {
	if !from.CanPromoteTo(to) {
		return nil, fmt.Errorf("cannot promote %s from %s to %s", app.PublicID, from, to)
	}

	result, script, err := c.edge.Promote(ctx, app, from, to, dispatch.PublishInfo{
		BuildTimestamp: c.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(script)
	digest := hex.EncodeToString(sum[:])

	handle, err := c.store.Begin(ctx, app.PublicID, to, app.ScriptName(to), actor, map[string]interface{}{
		"promoted_from": string(from),
		"script_digest": digest,
	})
	if err != nil {
		return nil, err
	}
	if err := c.store.Complete(ctx, handle, result.URL); err != nil {
		return nil, err
	}
	return &PromoteOutcome{AuditID: handle.AuditID, URL: result.URL, Digest: digest}, nil
}
