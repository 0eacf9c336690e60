package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"treechat-backend/internal/models"
	"treechat-backend/internal/store"
)

const dismissedKeyPrefix = "dismissed_shared_discoveries"

// DiscoveryAPI is the slice of the upstream client the discovery service
// needs.
type DiscoveryAPI interface {
	ListDiscoveries(ctx context.Context) ([]models.Discovery, error)
	ShareDiscovery(ctx context.Context, content string, personIDs []string) error
}

// DiscoveryService handles the shared-discoveries feed: fetching it,
// sharing chat messages into it, and hiding entries the user dismissed.
// Dismissals are kept per tree in a local key-value store and are
// append-only; ids are never removed.
type DiscoveryService struct {
	api DiscoveryAPI
	kv  store.KV
}

// NewDiscoveryService creates a DiscoveryService backed by kv.
func NewDiscoveryService(api DiscoveryAPI, kv store.KV) *DiscoveryService {
	return &DiscoveryService{api: api, kv: kv}
}

// dismissedKey builds the storage key for one tree's dismissed-id set.
func dismissedKey(treeID string) string {
	if treeID == "" {
		treeID = "unknown"
	}
	return fmt.Sprintf("%s:%s", dismissedKeyPrefix, treeID)
}

// DismissedIDs loads a tree's dismissed discovery ids. Missing or corrupt
// data reads as an empty set rather than failing.
func (s *DiscoveryService) DismissedIDs(treeID string) []string {
	raw, err := s.kv.Get(dismissedKey(treeID))
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Warn().Err(err).Str("tree_id", treeID).Msg("failed to load dismissed discoveries")
		}
		return []string{}
	}

	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		log.Warn().Err(err).Str("tree_id", treeID).Msg("corrupt dismissed-discoveries entry, resetting")
		return []string{}
	}
	return ids
}

// Dismiss records a discovery id as dismissed for a tree. Dismissing an
// already-dismissed or blank id is a no-op.
func (s *DiscoveryService) Dismiss(treeID, discoveryID string) error {
	discoveryID = strings.TrimSpace(discoveryID)
	if discoveryID == "" {
		return nil
	}

	ids := s.DismissedIDs(treeID)
	for _, id := range ids {
		if id == discoveryID {
			return nil
		}
	}
	ids = append(ids, discoveryID)

	encoded, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("failed to encode dismissed discoveries: %w", err)
	}
	if err := s.kv.Set(dismissedKey(treeID), encoded); err != nil {
		return fmt.Errorf("failed to save dismissed discoveries: %w", err)
	}
	return nil
}

// VisibleDiscoveries fetches the shared feed and filters out dismissed
// entries. Upstream failures yield an empty feed plus an error message, so
// the caller always has something to render.
func (s *DiscoveryService) VisibleDiscoveries(ctx context.Context, treeID string) models.DiscoveryFeedResponse {
	discoveries, err := s.api.ListDiscoveries(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("failed to load shared discoveries")
		return models.DiscoveryFeedResponse{
			Discoveries: []models.Discovery{},
			Error:       err.Error(),
		}
	}

	hidden := make(map[string]struct{})
	for _, id := range s.DismissedIDs(treeID) {
		hidden[id] = struct{}{}
	}

	visible := make([]models.Discovery, 0, len(discoveries))
	for _, d := range discoveries {
		if _, dismissed := hidden[d.ID]; dismissed {
			continue
		}
		visible = append(visible, d)
	}
	return models.DiscoveryFeedResponse{Discoveries: visible}
}

// ShareMessage publishes a chat message to the shared feed, tagging it with
// the person ids referenced by its markdown links. Blank content is a
// no-op; the returned bool reports whether anything was shared.
func (s *DiscoveryService) ShareMessage(ctx context.Context, content string) (bool, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return false, nil
	}

	if err := s.api.ShareDiscovery(ctx, content, models.ExtractPersonIDs(content)); err != nil {
		return false, err
	}
	return true, nil
}
