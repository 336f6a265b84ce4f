package store

import (
	"context"

	"github.com/agenthands/brain/internal/model"
)

// StaticProfileStore is a registry resolved once at startup. Profile sets
// change with deploys, not at runtime, so a frozen table is enough.
type StaticProfileStore struct {
	profiles []model.IndexProfile
	byID     map[string]model.IndexProfile
}

func NewStaticProfileStore(profiles []model.IndexProfile) *StaticProfileStore {
	byID := make(map[string]model.IndexProfile, len(profiles))
	for _, p := range profiles {
		byID[p.ID] = p
	}
	return &StaticProfileStore{profiles: profiles, byID: byID}
}

func (s *StaticProfileStore) ListProfiles(ctx context.Context) ([]model.IndexProfile, error) {
	out := make([]model.IndexProfile, len(s.profiles))
	copy(out, s.profiles)
	return out, nil
}

func (s *StaticProfileStore) GetProfile(ctx context.Context, id string) (*model.IndexProfile, error) {
	p, ok := s.byID[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// Default profile ids used by hybrid search fan-out.
const (
	ProfileWork = "profile.work"
	ProfileDoc  = "profile.doc"
)

// DefaultProfiles is the standard work/doc registry.
func DefaultProfiles(embeddingModel string) []model.IndexProfile {
	return []model.IndexProfile{
		{
			ID:             ProfileWork,
			EntityType:     model.EntityWorkItem,
			EmbeddingModel: embeddingModel,
			Kind:           model.ProfileKindWork,
			TextFields:     []string{"summary", "title", "description"},
		},
		{
			ID:             ProfileDoc,
			EntityType:     model.EntityDocument,
			EmbeddingModel: embeddingModel,
			Kind:           model.ProfileKindDoc,
			TextFields:     []string{"title", "excerpt", "content"},
		},
	}
}
