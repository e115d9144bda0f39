package usecase

import (
	"context"
	"errors"
	"log"

	identitydomain "github.com/KomaiX512/Accountmanager-sub004/internal/identity/domain"
	identityrepo "github.com/KomaiX512/Accountmanager-sub004/internal/identity/repository"
	"github.com/KomaiX512/Accountmanager-sub004/pkg/platform"
)

// ErrUnresolved means no mapping exists and the fallback lookup could
// not produce one. Callers keep the event pending under a placeholder
// username and retry on a later pass; they never guess.
var ErrUnresolved = errors.New("identity: subject could not be resolved")

// ProfileLookup is the platform-side fallback for unknown subject IDs.
// Satisfied by platform.Client.
type ProfileLookup interface {
	LookupProfile(ctx context.Context, platformName, subjectID string) (string, error)
}

// Resolver maps platform subject IDs to internal accounts.
type Resolver interface {
	Resolve(ctx context.Context, platformName, subjectID string) (*identitydomain.Mapping, error)
	// Connect records the mapping for a freshly connected account.
	Connect(ctx context.Context, platformName, subjectID, username string) error
}

type resolver struct {
	mappings identityrepo.MappingRepository
	lookup   ProfileLookup
}

func NewResolver(mappings identityrepo.MappingRepository, lookup ProfileLookup) Resolver {
	return &resolver{mappings: mappings, lookup: lookup}
}

func (r *resolver) Resolve(ctx context.Context, platformName, subjectID string) (*identitydomain.Mapping, error) {
	mapping, err := r.mappings.Get(ctx, platformName, subjectID)
	if err != nil {
		return nil, err
	}
	if mapping != nil {
		return mapping, nil
	}

	if r.lookup == nil {
		return nil, ErrUnresolved
	}

	username, err := r.lookup.LookupProfile(ctx, platformName, subjectID)
	if err != nil {
		if errors.Is(err, platform.ErrThrottled) {
			log.Printf("[Identity] Lookup throttled for %s subject %s, deferring", platformName, subjectID)
		}
		return nil, ErrUnresolved
	}

	mapping = &identitydomain.Mapping{
		Platform:   platformName,
		SubjectID:  subjectID,
		Username:   username,
		Confidence: identitydomain.ConfidenceLookup,
	}
	if err := r.mappings.Create(ctx, mapping); err != nil {
		if errors.Is(err, identityrepo.ErrMappingConflict) {
			// Another writer won with a different answer; trust the store.
			existing, getErr := r.mappings.Get(ctx, platformName, subjectID)
			if getErr == nil && existing != nil {
				return existing, nil
			}
		}
		return nil, err
	}

	log.Printf("[Identity] Recovered mapping %s/%s -> %s via profile lookup", platformName, subjectID, username)
	return mapping, nil
}

func (r *resolver) Connect(ctx context.Context, platformName, subjectID, username string) error {
	return r.mappings.Create(ctx, &identitydomain.Mapping{
		Platform:   platformName,
		SubjectID:  subjectID,
		Username:   username,
		Confidence: identitydomain.ConfidenceConnected,
	})
}
