// FilePath: internal/storage/storage.layout_test.go
package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LowellObservatory/indi-allsky/internal/models"
)

func testCamera() *models.Camera {
	return &models.Camera{ID: 2, UUID: "11111111-2222-3333-4444-555555555555"}
}

func TestDayDateNightBucketsToPreviousEvening(t *testing.T) {
	// 03:00 local on March 16th still belongs to the March 15th night.
	early := time.Date(2024, 3, 16, 3, 0, 0, 0, time.UTC)
	assert.Equal(t, "20240315", DayDate(early, true))

	// The same instant as a day capture stays on its own date.
	assert.Equal(t, "20240316", DayDate(early, false))

	// After noon a night capture belongs to the current date.
	evening := time.Date(2024, 3, 16, 22, 0, 0, 0, time.UTC)
	assert.Equal(t, "20240316", DayDate(evening, true))
}

func TestImagePathLayout(t *testing.T) {
	layout, err := NewLayout(t.TempDir())
	require.NoError(t, err)

	captureTime := time.Date(2024, 3, 16, 3, 15, 42, 0, time.UTC)
	path, err := layout.ImagePath(testCamera(), models.AssetImage, captureTime, true, ".jpg")
	require.NoError(t, err)

	expected := filepath.Join(
		layout.BaseDir,
		"ccd_11111111-2222-3333-4444-555555555555",
		"20240315", "night", "16_03",
		"ccd2_20240316_031542.jpg",
	)
	assert.Equal(t, expected, path)

	// the directory chain is created eagerly
	info, err := os.Stat(filepath.Dir(path))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestImagePathPrefixesPerClass(t *testing.T) {
	layout, err := NewLayout(t.TempDir())
	require.NoError(t, err)

	captureTime := time.Date(2024, 3, 16, 14, 0, 0, 0, time.UTC)

	cases := map[models.AssetType]string{
		models.AssetImage:         "ccd2_",
		models.AssetRawImage:      "raw_ccd2_",
		models.AssetFitsImage:     "ccd2_",
		models.AssetPanoramaImage: "panorama_ccd2_",
	}

	for assetType, prefix := range cases {
		path, err := layout.ImagePath(testCamera(), assetType, captureTime, false, ".jpg")
		require.NoError(t, err)
		assert.Contains(t, filepath.Base(path), prefix)
	}

	_, err = layout.ImagePath(testCamera(), models.AssetVideo, captureTime, false, ".mp4")
	assert.Error(t, err, "video-like classes have no hour bucket")
}

func TestVideoPathLayout(t *testing.T) {
	layout, err := NewLayout(t.TempDir())
	require.NoError(t, err)

	path, err := layout.VideoPath(testCamera(), models.AssetKeogram, "20240315", true, ".jpg")
	require.NoError(t, err)

	expected := filepath.Join(
		layout.BaseDir,
		"ccd_11111111-2222-3333-4444-555555555555",
		"20240315",
		"allsky-keogram_ccd2_20240315_night.jpg",
	)
	assert.Equal(t, expected, path)
}

func TestPlaceSkipsEmptyMedia(t *testing.T) {
	layout, err := NewLayout(t.TempDir())
	require.NoError(t, err)

	tmp := filepath.Join(t.TempDir(), "empty.jpg")
	require.NoError(t, os.WriteFile(tmp, nil, 0o644))

	final := filepath.Join(layout.BaseDir, "final.jpg")
	require.NoError(t, layout.Place(tmp, final))

	_, err = os.Stat(final)
	assert.True(t, os.IsNotExist(err), "empty media must not produce a file")
	_, err = os.Stat(tmp)
	assert.True(t, os.IsNotExist(err), "temp file is consumed either way")
}

func TestPlaceMovesMedia(t *testing.T) {
	layout, err := NewLayout(t.TempDir())
	require.NoError(t, err)

	tmp := filepath.Join(t.TempDir(), "media.jpg")
	require.NoError(t, os.WriteFile(tmp, []byte("jpegdata"), 0o600))

	final := filepath.Join(layout.BaseDir, "final.jpg")
	require.NoError(t, layout.Place(tmp, final))

	data, err := os.ReadFile(final)
	require.NoError(t, err)
	assert.Equal(t, []byte("jpegdata"), data)

	_, err = os.Stat(tmp)
	assert.True(t, os.IsNotExist(err))
}

func TestRelAndURL(t *testing.T) {
	layout, err := NewLayout(t.TempDir())
	require.NoError(t, err)

	inside := filepath.Join(layout.BaseDir, "ccd_x", "20240101", "a.jpg")
	assert.Equal(t, "ccd_x/20240101/a.jpg", layout.Rel(inside))
	assert.Equal(t, "/images/ccd_x/20240101/a.jpg", layout.URL(inside))

	outside := "/etc/passwd"
	assert.Equal(t, "/etc/passwd", layout.Rel(outside))
}
