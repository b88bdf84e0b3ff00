// Package services holds the business-logic layer between the HTTP
// handlers and the store: admin license management, branding settings, and
// health reporting. Handlers depend on the interfaces defined here so they
// can be tested with mocks.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	apierrors "github.com/bitlifehost4tvegesdgames/flux-keyauth/internal/errors"
	"github.com/bitlifehost4tvegesdgames/flux-keyauth/internal/license"
	"github.com/bitlifehost4tvegesdgames/flux-keyauth/internal/store"
	"github.com/bitlifehost4tvegesdgames/flux-keyauth/internal/websocket"
)

// maxKeyGenerationRetries bounds the regenerate-on-collision loop in
// Create. With 20 random alphanumeric characters per key a single retry is
// already astronomically unlikely; the bound exists so a corrupt random
// source cannot spin forever.
const maxKeyGenerationRetries = 5

// LicenseService provides the admin control surface over licenses. It
// carries no validation business logic — only input coercion and pass-
// through to the store, per the thin-CRUD contract.
type LicenseService interface {
	Create(ctx context.Context, days, maxActivations, notes string) (*license.License, error)
	Revoke(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]license.ListEntry, error)
}

type licenseService struct {
	store  *store.Store
	hub    *websocket.Hub
	logger *slog.Logger
}

// NewLicenseService creates the admin license service. The hub may be nil
// when no dashboard feed is wired (tests).
func NewLicenseService(st *store.Store, hub *websocket.Hub, logger *slog.Logger) LicenseService {
	return &licenseService{
		store:  st,
		hub:    hub,
		logger: logger.With(slog.String("service", "license")),
	}
}

// Create mints a new license. days and maxActivations arrive as raw admin
// input: a non-positive or non-numeric day count means "never expires",
// and max_activations is coerced to at least 1. Key generation retries on
// the (astronomically unlikely) duplicate-key collision.
func (s *licenseService) Create(ctx context.Context, days, maxActivations, notes string) (*license.License, error) {
	var expiresAt *time.Time
	if d := parseDays(days); d > 0 {
		t := time.Now().UTC().Add(time.Duration(d) * 24 * time.Hour).Truncate(time.Second)
		expiresAt = &t
	}

	params := store.CreateLicenseParams{
		ExpiresAt:      expiresAt,
		MaxActivations: coerceMaxActivations(maxActivations),
		Notes:          strings.TrimSpace(notes),
	}

	for attempt := 0; attempt < maxKeyGenerationRetries; attempt++ {
		key, err := license.GenerateKey()
		if err != nil {
			return nil, fmt.Errorf("services: generating key: %w", err)
		}
		params.Key = key

		lic, err := s.store.CreateLicense(ctx, params)
		if err != nil {
			if errors.Is(err, apierrors.ErrDuplicateKey) {
				s.logger.WarnContext(ctx, "generated key collided, regenerating",
					slog.Int("attempt", attempt+1))
				continue
			}
			return nil, err
		}

		s.emit(websocket.EventLicenseCreated, map[string]interface{}{
			"license_id":      lic.ID,
			"max_activations": lic.MaxActivations,
		})
		return lic, nil
	}

	return nil, fmt.Errorf("services: exhausted %d key generation attempts", maxKeyGenerationRetries)
}

// Revoke sets the revoked flag. Idempotent.
func (s *licenseService) Revoke(ctx context.Context, id string) error {
	if err := s.store.RevokeLicense(ctx, id); err != nil {
		return err
	}
	s.emit(websocket.EventLicenseRevoked, map[string]interface{}{"license_id": id})
	return nil
}

// Delete removes a license and cascades its activations.
func (s *licenseService) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteLicense(ctx, id); err != nil {
		return err
	}
	s.emit(websocket.EventLicenseDeleted, map[string]interface{}{"license_id": id})
	return nil
}

// List returns all licenses with activation counts, newest first.
func (s *licenseService) List(ctx context.Context) ([]license.ListEntry, error) {
	return s.store.ListLicenses(ctx)
}

func (s *licenseService) emit(eventType string, details map[string]interface{}) {
	if s.hub != nil {
		s.hub.Emit(eventType, details)
	}
}

// parseDays interprets the admin's expiry-in-days input. Anything that is
// not a positive integer means "never expires".
func parseDays(days string) int {
	d, err := strconv.Atoi(strings.TrimSpace(days))
	if err != nil || d <= 0 {
		return 0
	}
	return d
}

// coerceMaxActivations interprets the admin's activation-limit input.
// Non-numeric or non-positive values coerce to 1.
func coerceMaxActivations(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 {
		return 1
	}
	return n
}
