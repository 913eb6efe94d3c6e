// FilePath: internal/keogram/keogram_test.go
package keogram

import (
	"image"
	"image/color"
	"path/filepath"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// solidFrame is a uniformly colored test frame.
func solidFrame(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func TestAddFrameExtractsCenterColumn(t *testing.T) {
	g := NewGenerator(0, 100)

	require.NoError(t, g.AddFrame(solidFrame(64, 48, color.NRGBA{255, 0, 0, 255}), time.Now()))
	require.Len(t, g.columns, 1)

	column := g.columns[0]
	assert.Equal(t, 1, column.Bounds().Dx())
	assert.Equal(t, 48, column.Bounds().Dy())
	assert.Equal(t, color.NRGBA{255, 0, 0, 255}, column.NRGBAAt(0, 24))
}

func TestAddFrameRejectsMismatchedSize(t *testing.T) {
	g := NewGenerator(0, 100)

	require.NoError(t, g.AddFrame(solidFrame(64, 48, color.NRGBA{255, 0, 0, 255}), time.Now()))
	err := g.AddFrame(solidFrame(32, 48, color.NRGBA{0, 255, 0, 255}), time.Now())
	require.Error(t, err)

	// the rejected frame contributes nothing
	assert.Len(t, g.columns, 1)
	assert.Len(t, g.timestamps, 1)
}

func TestFinalizePreservesColumnOrder(t *testing.T) {
	g := NewGenerator(0, 100)
	base := time.Date(2024, 3, 15, 20, 0, 0, 0, time.UTC)

	colors := []color.NRGBA{
		{255, 0, 0, 255},
		{0, 255, 0, 255},
		{0, 0, 255, 255},
	}
	for i, c := range colors {
		require.NoError(t, g.AddFrame(solidFrame(40, 30, c), base.Add(time.Duration(i)*time.Minute)))
	}

	outfile := filepath.Join(t.TempDir(), "keogram.jpg")
	require.NoError(t, g.Finalize(outfile))

	out, err := imaging.Open(outfile)
	require.NoError(t, err)
	bounds := out.Bounds()
	assert.Equal(t, 3, bounds.Dx())
	assert.Equal(t, 30, bounds.Dy())

	// jpeg is lossy; check the dominant channel per column
	for i, want := range colors {
		r, gr, b, _ := out.At(i, 15).RGBA()
		switch {
		case want.R == 255:
			assert.Greater(t, r, gr)
			assert.Greater(t, r, b)
		case want.G == 255:
			assert.Greater(t, gr, r)
			assert.Greater(t, gr, b)
		default:
			assert.Greater(t, b, r)
			assert.Greater(t, b, gr)
		}
	}
}

func TestFinalizeScalesHeight(t *testing.T) {
	g := NewGenerator(0, 50)

	for i := 0; i < 4; i++ {
		require.NoError(t, g.AddFrame(solidFrame(40, 100, color.NRGBA{128, 128, 128, 255}), time.Now()))
	}

	outfile := filepath.Join(t.TempDir(), "keogram.jpg")
	require.NoError(t, g.Finalize(outfile))

	out, err := imaging.Open(outfile)
	require.NoError(t, err)
	assert.Equal(t, 50, out.Bounds().Dy())
}

func TestFinalizeWithoutFrames(t *testing.T) {
	g := NewGenerator(0, 100)
	assert.Error(t, g.Finalize(filepath.Join(t.TempDir(), "keogram.jpg")))
}

func TestRotationExpandsCanvas(t *testing.T) {
	g := NewGenerator(45, 100)

	require.NoError(t, g.AddFrame(solidFrame(100, 100, color.NRGBA{255, 255, 255, 255}), time.Now()))

	// a 45 degree rotation of a 100px square needs a ~141px canvas
	assert.Greater(t, g.rotatedHeight, 100)
	assert.Equal(t, g.rotatedHeight, g.columns[0].Bounds().Dy())
}

func TestTrimEdgesRemovesRotationWedges(t *testing.T) {
	g := NewGenerator(10, 100)

	for i := 0; i < 5; i++ {
		require.NoError(t, g.AddFrame(solidFrame(200, 100, color.NRGBA{200, 200, 200, 255}), time.Now()))
	}

	strip := image.NewNRGBA(image.Rect(0, 0, len(g.columns), g.rotatedHeight))
	trimmed := g.trimEdges(strip)

	assert.Less(t, trimmed.Bounds().Dy(), g.rotatedHeight)
	assert.Equal(t, len(g.columns), trimmed.Bounds().Dx())
}

func TestTrimEdgesNoopAtZeroAngle(t *testing.T) {
	g := NewGenerator(0, 100)

	require.NoError(t, g.AddFrame(solidFrame(200, 100, color.NRGBA{200, 200, 200, 255}), time.Now()))

	strip := image.NewNRGBA(image.Rect(0, 0, 1, g.rotatedHeight))
	trimmed := g.trimEdges(strip)
	assert.Equal(t, g.rotatedHeight, trimmed.Bounds().Dy())
}

func TestGenerateFromDirEmptyInput(t *testing.T) {
	g := NewGenerator(0, 100)
	err := g.GenerateFromDir(t.TempDir(), filepath.Join(t.TempDir(), "out.jpg"))
	assert.Error(t, err)
}
