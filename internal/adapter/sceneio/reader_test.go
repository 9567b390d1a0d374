package sceneio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func TestLocateFiles(t *testing.T) {
	t.Run("finds nested product files", func(t *testing.T) {
		dir := t.TempDir()
		product := filepath.Join(dir, "S3A_SL_2_LST____20230512T101015_x.SEN3")
		writeFile(t, filepath.Join(product, "LST_in.nc"))
		writeFile(t, filepath.Join(product, "flags_in.nc"))
		writeFile(t, filepath.Join(product, "geodetic_in.nc"))

		files, err := locateFiles(dir)

		require.NoError(t, err)
		assert.Equal(t, filepath.Join(product, "LST_in.nc"), files["LST_in.nc"])
		assert.Equal(t, filepath.Join(product, "flags_in.nc"), files["flags_in.nc"])
		assert.Equal(t, filepath.Join(product, "geodetic_in.nc"), files["geodetic_in.nc"])
	})

	t.Run("missing file is an error", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, filepath.Join(dir, "LST_in.nc"))
		writeFile(t, filepath.Join(dir, "geodetic_in.nc"))

		_, err := locateFiles(dir)
		assert.ErrorContains(t, err, "flags_in.nc")
	})

	t.Run("first match wins", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, filepath.Join(dir, "a", "LST_in.nc"))
		writeFile(t, filepath.Join(dir, "b", "LST_in.nc"))
		writeFile(t, filepath.Join(dir, "a", "flags_in.nc"))
		writeFile(t, filepath.Join(dir, "a", "geodetic_in.nc"))

		files, err := locateFiles(dir)

		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "a", "LST_in.nc"), files["LST_in.nc"])
	})
}
