// Copyright OverSkill, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package github

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/google/go-github/v45/github"
	"golang.org/x/crypto/nacl/box"
)

// PutSecret uploads a repository secret. The value is sealed against the
// repository's public key with an anonymous NaCl box, so only the source
// host's runners can recover it.
func (c *Client) PutSecret(ctx context.Context, repo, name, value string) error {
	op := fmt.Sprintf("secret %s in %s/%s", name, c.org, repo)

	key, resp, err := c.actions.GetRepoPublicKey(ctx, c.org, repo)
	if err != nil {
		return c.mapErr("public key for "+op, resp, err)
	}
	sealed, err := sealSecret(key.GetKey(), value)
	if err != nil {
		return fmt.Errorf("seal %s: %w", op, err)
	}

	resp, err = c.actions.CreateOrUpdateRepoSecret(ctx, c.org, repo, &github.EncryptedSecret{
		Name:           name,
		KeyID:          key.GetKeyID(),
		EncryptedValue: sealed,
	})
	if err != nil {
		return c.mapErr("put "+op, resp, err)
	}
	return nil
}

// sealSecret encrypts value against the base64-encoded curve25519 public key
// and returns the base64 ciphertext.
func sealSecret(publicKeyB64, value string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(publicKeyB64)
	if err != nil {
		return "", fmt.Errorf("decode repository public key: %w", err)
	}
	if len(raw) != 32 {
		return "", fmt.Errorf("repository public key is %d bytes, want 32", len(raw))
	}
	var key [32]byte
	copy(key[:], raw)

	sealed, err := box.SealAnonymous(nil, []byte(value), &key, rand.Reader)
	if err != nil {
		return "", fmt.Errorf("seal secret value: %w", err)
	}
	return base64.StdEncoding.EncodeToString(sealed), nil
}
