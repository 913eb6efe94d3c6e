// FilePath: internal/storage/storage.layout.go

// Package storage computes the canonical on-disk layout for synced
// assets. Images are partitioned by camera uuid / logical day /
// day-or-night / hour bucket; video-like assets live in a flat
// per-camera-day folder.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/LowellObservatory/indi-allsky/internal/errors"
	"github.com/LowellObservatory/indi-allsky/internal/models"
)

const (
	dirPermissions  = 0o755
	filePermissions = 0o644
	dayDateFormat   = "20060102"
	imageTimeFormat = "20060102_150405"
)

// Layout resolves asset paths under a base image directory.
type Layout struct {
	BaseDir string
}

func NewLayout(baseDir string) (*Layout, error) {
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, errors.NewValidationError("invalid image folder", err)
	}
	if err := createDirectoryIfNotExists(abs); err != nil {
		return nil, err
	}
	return &Layout{BaseDir: abs}, nil
}

// DayDate returns the logical capture-day bucket for a timestamp. A
// night capture belongs to the previous evening's calendar date until
// noon, so the bucket is taken 12 hours back.
func DayDate(captureTime time.Time, night bool) string {
	if night {
		return captureTime.Add(-12 * time.Hour).Format(dayDateFormat)
	}
	return captureTime.Format(dayDateFormat)
}

func timeOfDay(night bool) string {
	if night {
		return "night"
	}
	return "day"
}

// imageFilePrefixes per image-like asset class. The camera id and the
// capture timestamp complete the name.
var imageFilePrefixes = map[models.AssetType]string{
	models.AssetImage:         "ccd",
	models.AssetRawImage:      "raw_ccd",
	models.AssetFitsImage:     "ccd",
	models.AssetPanoramaImage: "panorama_ccd",
}

// videoFilePrefixes per video-like asset class.
var videoFilePrefixes = map[models.AssetType]string{
	models.AssetVideo:          "allsky-timelapse_ccd",
	models.AssetKeogram:        "allsky-keogram_ccd",
	models.AssetStarTrail:      "allsky-startrail_ccd",
	models.AssetStarTrailVideo: "allsky-startrail_timelapse_ccd",
	models.AssetPanoramaVideo:  "allsky-panorama_timelapse_ccd",
}

// ImagePath returns the canonical absolute path for an image-like
// asset, creating the directory chain. ext includes the dot.
func (l *Layout) ImagePath(camera *models.Camera, assetType models.AssetType, captureTime time.Time, night bool, ext string) (string, error) {
	prefix, ok := imageFilePrefixes[assetType]
	if !ok {
		return "", errors.NewValidationError(fmt.Sprintf("asset type %s is not image-like", assetType), nil)
	}

	dayStr := DayDate(captureTime, night)
	hourStr := captureTime.Format("02_15") // DD_HH bucket

	hourFolder := filepath.Join(
		l.BaseDir,
		fmt.Sprintf("ccd_%s", camera.UUID),
		dayStr,
		timeOfDay(night),
		hourStr,
	)
	if err := createDirectoryIfNotExists(hourFolder); err != nil {
		return "", err
	}

	filename := fmt.Sprintf("%s%d_%s%s", prefix, camera.ID, captureTime.Format(imageTimeFormat), ext)
	return filepath.Join(hourFolder, filename), nil
}

// VideoPath returns the canonical absolute path for a video-like asset
// (timelapse, keogram, star trail), creating the directory chain.
func (l *Layout) VideoPath(camera *models.Camera, assetType models.AssetType, dayDate string, night bool, ext string) (string, error) {
	prefix, ok := videoFilePrefixes[assetType]
	if !ok {
		return "", errors.NewValidationError(fmt.Sprintf("asset type %s is not video-like", assetType), nil)
	}

	dateFolder := filepath.Join(l.BaseDir, fmt.Sprintf("ccd_%s", camera.UUID), dayDate)
	if err := createDirectoryIfNotExists(dateFolder); err != nil {
		return "", err
	}

	filename := fmt.Sprintf("%s%d_%s_%s%s", prefix, camera.ID, dayDate, timeOfDay(night), ext)
	return filepath.Join(dateFolder, filename), nil
}

// Place moves media bytes from a temporary file into the canonical
// location. Zero-byte temp files are a deliberate metadata-only sync;
// the copy is skipped but the record still exists.
func (l *Layout) Place(tmpPath, finalPath string) error {
	info, err := os.Stat(tmpPath)
	if err != nil {
		return errors.NewInternalError("failed to stat temp media file", err)
	}

	if info.Size() != 0 {
		if err := copyFile(tmpPath, finalPath); err != nil {
			return err
		}
		if err := os.Chmod(finalPath, filePermissions); err != nil {
			return errors.NewInternalError("failed to set file permissions", err)
		}
	}

	if err := os.Remove(tmpPath); err != nil {
		return errors.NewInternalError("failed to remove temp media file", err)
	}
	return nil
}

// Rel returns the slash-separated path of an asset relative to the
// base directory. Paths outside the base come back unchanged.
func (l *Layout) Rel(filename string) string {
	rel, err := filepath.Rel(l.BaseDir, filename)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(filename)
	}
	return filepath.ToSlash(rel)
}

// URL returns the web path for an asset, used as the local url in
// sync responses.
func (l *Layout) URL(filename string) string {
	return "/images/" + l.Rel(filename)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return errors.NewInternalError("failed to open source file", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return errors.NewInternalError("failed to create destination file", err)
	}
	defer out.Close()

	if _, err := out.ReadFrom(in); err != nil {
		return errors.NewInternalError("failed to copy file", err)
	}
	return nil
}

func createDirectoryIfNotExists(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		err := os.MkdirAll(path, dirPermissions)
		if err != nil {
			return errors.NewInternalError("failed to create directory", err)
		}
	}
	return nil
}
