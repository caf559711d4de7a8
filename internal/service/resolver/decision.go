package resolver

import (
	"context"
	"strings"

	domain "github.com/manekisoft/update-server/internal/domain/release"
	"github.com/manekisoft/update-server/internal/logger"
)

// CheckUpdate decides whether a client at currentText needs to update.
//
// A malformed or absent client version never fails the check: such a client
// is treated as below every published release and offered the latest one.
// Store failures still propagate; the check endpoint must answer, but not
// with data it cannot read.
func (s *Service) CheckUpdate(ctx context.Context, currentText string) (*domain.UpdateDecision, error) {
	latestVersion, err := s.store.LatestPointer(ctx)
	if err != nil {
		return nil, err
	}

	latest, err := s.metadataWithDownloadURL(ctx, latestVersion)
	if err != nil {
		return nil, err
	}

	decision := &domain.UpdateDecision{
		LatestVersion: latestVersion,
	}

	currentText = strings.TrimSpace(currentText)

	current, parseErr := domain.ParseVersion(currentText)
	if parseErr != nil {
		if currentText != "" {
			logger.WarnKV(ctx, "Unparseable client version, treating as outdated", "current", currentText)
		}

		// Unknown client: below everything.
		decision.UpdateAvailable = true
		decision.Required = latest.Required
		decision.Latest = latest

		decision.Changelog, _, err = s.collectBetween(ctx, nil, latestVersion)
		if err != nil {
			return nil, err
		}

		return decision, nil
	}

	decision.CurrentVersion = &current

	if current.Compare(latestVersion) >= 0 {
		// Up to date (or ahead); no changelog in the response.
		return decision, nil
	}

	decision.UpdateAvailable = true
	decision.Latest = latest

	if latest.MinVersion != nil && current.Less(*latest.MinVersion) {
		decision.MinVersionViolated = true
	}

	var required bool

	decision.Changelog, required, err = s.collectBetween(ctx, &current, latestVersion)
	if err != nil {
		return nil, err
	}

	// A required flag on any release the client must pass through propagates
	// to the overall decision.
	decision.Required = required || latest.Required

	return decision, nil
}

// collectBetween walks published versions v with lower < v <= upper in
// ascending order, concatenating changelog entries (each release's stored
// order kept) and OR-ing the required flags. A nil lower bound means
// "below everything".
func (s *Service) collectBetween(ctx context.Context, lower *domain.Version, upper domain.Version) ([]string, bool, error) {
	versions, err := s.store.ListVersions(ctx)
	if err != nil {
		return nil, false, err
	}

	var (
		entries  []string
		required bool
	)

	for _, v := range versions {
		if lower != nil && v.Compare(*lower) <= 0 {
			continue
		}

		if upper.Less(v) {
			continue
		}

		metadata, metadataErr := s.store.GetMetadata(ctx, v)
		if metadataErr != nil {
			return nil, false, metadataErr
		}

		entries = append(entries, metadata.Changelog...)
		required = required || metadata.Required
	}

	return entries, required, nil
}
