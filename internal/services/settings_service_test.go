package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitlifehost4tvegesdgames/flux-keyauth/internal/services"
	"github.com/bitlifehost4tvegesdgames/flux-keyauth/internal/shared/testutil"
)

func TestSettings_GetDefaults(t *testing.T) {
	svc := services.NewSettingsService(testutil.OpenTestStore(t), testutil.NewTestLogger(t))

	got, err := svc.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, services.DefaultSiteName, got.SiteName)
	assert.Equal(t, services.DefaultAccent, got.Accent)
}

func TestSettings_UpdateRoundTrip(t *testing.T) {
	svc := services.NewSettingsService(testutil.OpenTestStore(t), testutil.NewTestLogger(t))
	ctx := context.Background()

	require.NoError(t, svc.Update(ctx, services.Settings{SiteName: "Acme Keys", Accent: "emerald"}))

	got, err := svc.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Acme Keys", got.SiteName)
	assert.Equal(t, "emerald", got.Accent)
}

func TestSettings_BlankValuesRestoreDefaults(t *testing.T) {
	svc := services.NewSettingsService(testutil.OpenTestStore(t), testutil.NewTestLogger(t))
	ctx := context.Background()

	require.NoError(t, svc.Update(ctx, services.Settings{SiteName: "Acme Keys", Accent: "emerald"}))
	require.NoError(t, svc.Update(ctx, services.Settings{SiteName: "   ", Accent: ""}))

	got, err := svc.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, services.DefaultSiteName, got.SiteName)
	assert.Equal(t, services.DefaultAccent, got.Accent)
}
