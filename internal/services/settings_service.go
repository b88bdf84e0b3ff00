package services

import (
	"context"
	"log/slog"
	"strings"

	"github.com/bitlifehost4tvegesdgames/flux-keyauth/internal/store"
)

// Settings is the dashboard branding configuration.
type Settings struct {
	SiteName string `json:"site_name"`
	Accent   string `json:"accent"`
}

// Branding defaults, seeded into the settings table at schema creation and
// used as fallbacks for reads.
const (
	DefaultSiteName = "Flux Licensing"
	DefaultAccent   = "fuchsia"
)

// SettingsService reads and writes dashboard branding settings.
type SettingsService interface {
	Get(ctx context.Context) (*Settings, error)
	Update(ctx context.Context, settings Settings) error
}

type settingsService struct {
	store  *store.Store
	logger *slog.Logger
}

// NewSettingsService creates the settings service.
func NewSettingsService(st *store.Store, logger *slog.Logger) SettingsService {
	return &settingsService{
		store:  st,
		logger: logger.With(slog.String("service", "settings")),
	}
}

func (s *settingsService) Get(ctx context.Context) (*Settings, error) {
	siteName, err := s.store.GetSetting(ctx, store.SettingSiteName, DefaultSiteName)
	if err != nil {
		return nil, err
	}
	accent, err := s.store.GetSetting(ctx, store.SettingAccent, DefaultAccent)
	if err != nil {
		return nil, err
	}
	return &Settings{SiteName: siteName, Accent: accent}, nil
}

func (s *settingsService) Update(ctx context.Context, settings Settings) error {
	siteName := strings.TrimSpace(settings.SiteName)
	if siteName == "" {
		siteName = DefaultSiteName
	}
	accent := strings.TrimSpace(settings.Accent)
	if accent == "" {
		accent = DefaultAccent
	}

	if err := s.store.SetSetting(ctx, store.SettingSiteName, siteName); err != nil {
		return err
	}
	if err := s.store.SetSetting(ctx, store.SettingAccent, accent); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "settings updated",
		slog.String("site_name", siteName),
		slog.String("accent", accent))
	return nil
}
