package security_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/rendezvous/internal/shared/infrastructure/security"
)

func TestResolvePath(t *testing.T) {
	t.Run("rejects empty path", func(t *testing.T) {
		_, err := security.ResolvePath("  ")
		assert.ErrorIs(t, err, security.ErrEmptyPath)
	})

	t.Run("rejects shell characters", func(t *testing.T) {
		for _, path := range []string{"/tmp/a;rm", "/tmp/$(id).ics", "/tmp/a|b", "/tmp/`x`", "/tmp/a\nb"} {
			_, err := security.ResolvePath(path)
			assert.ErrorContains(t, err, "forbidden character", path)
		}
	})

	t.Run("makes relative paths absolute", func(t *testing.T) {
		got, err := security.ResolvePath("calendars/work.ics")
		require.NoError(t, err)
		assert.True(t, filepath.IsAbs(got))
		assert.Equal(t, "work.ics", filepath.Base(got))
	})

	t.Run("strips file scheme", func(t *testing.T) {
		dir := t.TempDir()
		got, err := security.ResolvePath("file://" + filepath.Join(dir, "missing.ics"))
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "missing.ics"), got)
	})

	t.Run("expands home", func(t *testing.T) {
		home := t.TempDir()
		t.Setenv("HOME", home)
		got, err := security.ResolvePath("~/Calendars/work.ics")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(home, "Calendars", "work.ics"), got)
	})

	t.Run("follows symlinks", func(t *testing.T) {
		dir := t.TempDir()
		real := filepath.Join(dir, "real.ics")
		require.NoError(t, os.WriteFile(real, []byte("BEGIN:VCALENDAR"), 0o600))
		link := filepath.Join(dir, "link.ics")
		require.NoError(t, os.Symlink(real, link))

		got, err := security.ResolvePath(link)
		require.NoError(t, err)
		want, err := filepath.EvalSymlinks(real)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})
}

func TestOpenAndReadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prefs.yaml")
	require.NoError(t, os.WriteFile(path, []byte("preferences: []\n"), 0o600))

	data, err := security.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "preferences: []\n", string(data))

	f, err := security.Open(path)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, err = security.Open(dir)
	assert.ErrorContains(t, err, "is a directory")

	_, err = security.ReadFile(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
