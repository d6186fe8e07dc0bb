package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"

	"mercator-hq/switchboard/pkg/backends"
)

// keyFields are the request fields that identify a cacheable response.
type keyFields struct {
	Target   string             `json:"target"`
	Model    string             `json:"model"`
	Messages []backends.Message `json:"messages"`
	Params   backends.Params    `json:"params"`
}

// Key returns the deterministic cache key for a request.
func Key(req *backends.Request) (string, error) {
	target := req.Target
	if req.IsAuto() {
		target = backends.TargetAuto
	}

	raw, err := json.Marshal(keyFields{
		Target:   target,
		Model:    req.Model,
		Messages: req.Messages,
		Params:   req.Params,
	})
	if err != nil {
		return "", fmt.Errorf("encode cache key: %w", err)
	}

	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("canonicalize cache key: %w", err)
	}

	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
