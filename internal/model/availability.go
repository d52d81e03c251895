package model

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// builtinModels is the last-resort availability table. Every tier is marked
// available so resolution always succeeds.
var builtinModels = map[Tier]ModelStatus{
	TierReasoning: {ID: "claude-opus-4-6", Available: true},
	TierBalanced:  {ID: "claude-sonnet-4-5", Available: true},
	TierFast:      {ID: "claude-haiku-4-5", Available: true},
}

// Builtin returns the built-in availability snapshot.
func Builtin() ResolvedModels {
	models := make(map[Tier]ModelStatus, len(builtinModels))
	for t, m := range builtinModels {
		models[t] = m
	}
	return ResolvedModels{Models: models, Source: "builtin"}
}

// manifestPayload is the wire format of the availability manifest.
type manifestPayload struct {
	Models map[string]struct {
		ID        string `json:"id"`
		Available bool   `json:"available"`
	} `json:"models"`
}

// FetchAvailability refreshes the availability snapshot from a network
// manifest. Any failure — fetch error, timeout, non-200 status, malformed
// payload, missing tiers — silently yields the built-in table. It never
// returns an error.
func FetchAvailability(ctx context.Context, client *http.Client, url string, timeout time.Duration) ResolvedModels {
	if url == "" {
		return Builtin()
	}
	if client == nil {
		client = http.DefaultClient
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Builtin()
	}
	resp, err := client.Do(req)
	if err != nil {
		return Builtin()
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Builtin()
	}

	var payload manifestPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Builtin()
	}

	models, err := fromPayload(payload)
	if err != nil {
		return Builtin()
	}
	return ResolvedModels{Models: models, Source: "manifest"}
}

// fromPayload validates the manifest covers every tier with a usable
// balanced entry (the last-resort tier must exist and be available).
func fromPayload(payload manifestPayload) (map[Tier]ModelStatus, error) {
	models := make(map[Tier]ModelStatus, 3)
	for _, tier := range []Tier{TierReasoning, TierBalanced, TierFast} {
		entry, ok := payload.Models[string(tier)]
		if !ok || entry.ID == "" {
			return nil, fmt.Errorf("manifest missing tier %q", tier)
		}
		models[tier] = ModelStatus{ID: entry.ID, Available: entry.Available}
	}
	if !models[TierBalanced].Available {
		return nil, fmt.Errorf("manifest marks balanced tier unavailable")
	}
	return models, nil
}
