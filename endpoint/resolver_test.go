package endpoint_test

import (
	"testing"

	"github.com/edukite/go-edukite-client/endpoint"
	apperrors "github.com/edukite/go-edukite-client/internal/errors"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	t.Run("explicit absolute base", func(t *testing.T) {
		b, err := endpoint.Resolve("https://api.edukite.io/v1/", "PROD")
		require.NoError(t, err)
		require.False(t, b.IsRelative())
		require.Equal(t, "https://api.edukite.io/v1", b.String())
	})

	t.Run("quoted base is unquoted", func(t *testing.T) {
		b, err := endpoint.Resolve(`"https://api.edukite.io"`, "PROD")
		require.NoError(t, err)
		require.Equal(t, "https://api.edukite.io", b.String())
	})

	t.Run("relative base kept relative", func(t *testing.T) {
		b, err := endpoint.Resolve("/backend/api/", "PROD")
		require.NoError(t, err)
		require.True(t, b.IsRelative())
		require.Equal(t, "/backend/api", b.String())
	})

	t.Run("dev defaults to /api", func(t *testing.T) {
		b, err := endpoint.Resolve("", "DEV")
		require.NoError(t, err)
		require.True(t, b.IsRelative())
		require.Equal(t, "/api", b.String())
	})

	t.Run("production without config fails fast", func(t *testing.T) {
		_, err := endpoint.Resolve("", "PROD")
		require.Error(t, err)
		require.ErrorIs(t, err, apperrors.ErrEndpointNotConfigured)
	})

	t.Run("non http scheme rejected", func(t *testing.T) {
		_, err := endpoint.Resolve("ftp://api.edukite.io", "PROD")
		require.Error(t, err)
		require.ErrorIs(t, err, apperrors.ErrInvalidEndpoint)
	})
}

func TestBase_JoinPath(t *testing.T) {
	b, err := endpoint.Resolve("https://api.edukite.io/v1", "PROD")
	require.NoError(t, err)

	t.Run("joins relative paths", func(t *testing.T) {
		require.Equal(t, "https://api.edukite.io/v1/auth/login", b.JoinPath("/auth/login"))
		require.Equal(t, "https://api.edukite.io/v1/auth/login", b.JoinPath("auth/login"))
	})

	t.Run("absolute caller paths pass through", func(t *testing.T) {
		require.Equal(t, "https://other.example.com/x", b.JoinPath("https://other.example.com/x"))
	})
}

func TestBase_WithOrigin(t *testing.T) {
	t.Run("relative base joined to origin", func(t *testing.T) {
		b, err := endpoint.Resolve("/api", "PROD")
		require.NoError(t, err)

		abs, err := b.WithOrigin("http://localhost:8080")
		require.NoError(t, err)
		require.Equal(t, "http://localhost:8080/api", abs.String())
		require.False(t, abs.IsRelative())
	})

	t.Run("relative base without origin fails", func(t *testing.T) {
		b, err := endpoint.Resolve("/api", "PROD")
		require.NoError(t, err)

		_, err = b.WithOrigin("")
		require.ErrorIs(t, err, apperrors.ErrOriginNotConfigured)
	})

	t.Run("absolute base unchanged", func(t *testing.T) {
		b, err := endpoint.Resolve("https://api.edukite.io", "PROD")
		require.NoError(t, err)

		abs, err := b.WithOrigin("")
		require.NoError(t, err)
		require.Equal(t, "https://api.edukite.io", abs.String())
	})
}
