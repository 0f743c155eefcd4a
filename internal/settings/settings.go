package settings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wonny/confluence/backend/internal/contracts"
	"github.com/wonny/confluence/backend/internal/instrument"
	"github.com/wonny/confluence/backend/pkg/logger"
)

// MaxRiskPerTradePct caps the per-trade risk a user may configure
const MaxRiskPerTradePct = 10.0

// ErrInvalid wraps every settings validation failure
var ErrInvalid = errors.New("invalid settings")

// Repository persists user settings
type Repository interface {
	Get(ctx context.Context, userID string) (*contracts.UserSettings, error)
	Save(ctx context.Context, s *contracts.UserSettings) error
}

// Service reads and writes settings; users that never saved get defaults
// ⭐ SSOT: 사용자 설정 검증/저장은 여기서만
type Service struct {
	repo   Repository
	logger *logger.Logger
	now    func() time.Time
}

// NewService creates a settings service
func NewService(repo Repository, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		repo:   repo,
		logger: log,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Get returns the stored settings or the defaults
func (s *Service) Get(ctx context.Context, userID string) (contracts.UserSettings, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return contracts.UserSettings{}, fmt.Errorf("%w: user id is required", ErrInvalid)
	}

	stored, err := s.repo.Get(ctx, userID)
	if errors.Is(err, contracts.ErrNotFound) {
		return contracts.DefaultUserSettings(userID), nil
	}
	if err != nil {
		return contracts.UserSettings{}, fmt.Errorf("failed to get settings: %w", err)
	}
	return *stored, nil
}

// Save validates, normalizes and stores settings
func (s *Service) Save(ctx context.Context, in contracts.UserSettings) (contracts.UserSettings, error) {
	out, err := Normalize(in)
	if err != nil {
		return contracts.UserSettings{}, err
	}
	out.UpdatedAt = s.now()

	if err := s.repo.Save(ctx, &out); err != nil {
		return contracts.UserSettings{}, fmt.Errorf("failed to save settings: %w", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"user_id":     out.UserID,
		"risk_pct":    out.RiskPerTradePct,
		"min_quality": out.MinQuality,
	}).Info("User settings saved")

	return out, nil
}

// Normalize checks settings and canonicalizes pair symbols
func Normalize(in contracts.UserSettings) (contracts.UserSettings, error) {
	out := in
	out.UserID = strings.TrimSpace(in.UserID)

	switch {
	case out.UserID == "":
		return out, fmt.Errorf("%w: user id is required", ErrInvalid)
	case out.AccountBalance <= 0:
		return out, fmt.Errorf("%w: account balance must be positive", ErrInvalid)
	case out.RiskPerTradePct <= 0 || out.RiskPerTradePct > MaxRiskPerTradePct:
		return out, fmt.Errorf("%w: risk per trade must be in (0, %.0f]", ErrInvalid, MaxRiskPerTradePct)
	}

	if out.MinQuality == "" {
		out.MinQuality = contracts.QualityGood
	}
	if !validQuality(out.MinQuality) {
		return out, fmt.Errorf("%w: unknown quality %q", ErrInvalid, out.MinQuality)
	}

	seen := make(map[string]bool, len(in.PreferredPairs))
	out.PreferredPairs = make([]string, 0, len(in.PreferredPairs))
	for _, p := range in.PreferredPairs {
		sym := instrument.Normalize(p)
		if sym == "" || seen[sym] {
			continue
		}
		seen[sym] = true
		out.PreferredPairs = append(out.PreferredPairs, sym)
	}

	return out, nil
}

func validQuality(q contracts.Quality) bool {
	for _, known := range contracts.AllQualities() {
		if q == known {
			return true
		}
	}
	return false
}
