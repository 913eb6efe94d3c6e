// FilePath: internal/keogram/keogram.go

// Package keogram composes a night's worth of sky images into a single
// strip. Each frame is rotated, its center pixel column extracted, and
// the columns appended left to right in capture order, so the strip
// reads as time on the x axis and the meridian on the y axis.
package keogram

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/disintegration/imaging"
	nuts "github.com/vaudience/go-nuts"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	jpegQuality = 90

	// hour tick styling
	tickLength = 35
	tickWidth  = 2
	labelPadX  = 5
	labelPadY  = 5
)

var (
	tickLight = color.NRGBA{200, 200, 200, 255}
	tickDark  = color.NRGBA{0, 0, 0, 255}
)

// Generator accumulates frames and renders the final strip. Frames
// must all share the dimensions of the first accepted frame; others
// are rejected.
type Generator struct {
	// Angle rotates each frame before column extraction, aligning the
	// extracted column with the celestial meridian.
	Angle float64

	// HScaleFactor compresses the strip vertically, in percent.
	HScaleFactor int

	originalWidth  int
	originalHeight int
	rotatedWidth   int
	rotatedHeight  int

	columns    []*image.NRGBA
	timestamps []time.Time
}

func NewGenerator(angle float64, hScaleFactor int) *Generator {
	return &Generator{
		Angle:        angle,
		HScaleFactor: hScaleFactor,
	}
}

// GenerateFromDir builds a keogram from every non-empty jpg under
// inputDir, ordered by file modification time, and writes it to
// outfile.
func (g *Generator) GenerateFromDir(inputDir, outfile string) error {
	files, err := collectFrameFiles(inputDir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no usable frames under %s", inputDir)
	}

	start := time.Now()
	for _, f := range files {
		img, err := imaging.Open(f.path)
		if err != nil {
			nuts.L.Errorf("[keogram] unable to read %s: %v", f.path, err)
			continue
		}
		if err := g.AddFrame(img, f.mtime); err != nil {
			nuts.L.Warnf("[keogram] rejected %s: %v", f.path, err)
		}
	}

	if err := g.Finalize(outfile); err != nil {
		return err
	}

	nuts.L.Infof("[keogram] processed %d frames in %0.1fs", len(g.timestamps), time.Since(start).Seconds())
	return nil
}

// AddFrame rotates a frame and appends its center column. Frames whose
// dimensions differ from the first accepted frame are rejected; a
// mixed-size input would otherwise shear the strip.
func (g *Generator) AddFrame(img image.Image, captureTime time.Time) error {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	if g.originalWidth == 0 {
		g.originalWidth = width
		g.originalHeight = height
	} else if width != g.originalWidth || height != g.originalHeight {
		return fmt.Errorf("frame is %dx%d, strip is built from %dx%d frames",
			width, height, g.originalWidth, g.originalHeight)
	}

	rotated := g.rotate(img)
	rotBounds := rotated.Bounds()
	g.rotatedWidth = rotBounds.Dx()
	g.rotatedHeight = rotBounds.Dy()

	centerX := g.rotatedWidth / 2
	column := imaging.Crop(rotated, image.Rect(centerX, 0, centerX+1, g.rotatedHeight))

	g.columns = append(g.columns, column)
	g.timestamps = append(g.timestamps, captureTime)
	return nil
}

// rotate turns the frame by the configured angle, expanding the canvas
// so no corner is clipped. The expanded size matches
// h*|sin| + w*|cos| in each dimension.
func (g *Generator) rotate(img image.Image) *image.NRGBA {
	if g.Angle == 0 {
		return imaging.Clone(img)
	}
	return imaging.Rotate(img, g.Angle, color.NRGBA{0, 0, 0, 255})
}

// Finalize assembles the columns, trims the rotation wedges, scales
// the strip vertically and writes the labeled result.
func (g *Generator) Finalize(outfile string) error {
	if len(g.columns) == 0 {
		return fmt.Errorf("no frames accepted")
	}

	strip := image.NewNRGBA(image.Rect(0, 0, len(g.columns), g.rotatedHeight))
	for i, column := range g.columns {
		strip = imaging.Paste(strip, column, image.Pt(i, 0))
	}

	trimmed := g.trimEdges(strip)

	trimBounds := trimmed.Bounds()
	newHeight := trimBounds.Dy() * g.HScaleFactor / 100
	if newHeight < 1 {
		newHeight = 1
	}
	resized := imaging.Resize(trimmed, trimBounds.Dx(), newHeight, imaging.Lanczos)

	g.applyLabels(resized)

	if err := imaging.Save(resized, outfile, imaging.JPEGQuality(jpegQuality)); err != nil {
		return fmt.Errorf("failed to write keogram: %w", err)
	}
	return nil
}

// trimEdges removes the black wedges the expand-to-fit rotation adds
// at the top and bottom of every column. When the rotation angle
// exceeds the diagonal angle of the original frame, the frame height
// becomes the hypotenuse of the trim triangle instead of the width.
func (g *Generator) trimEdges(strip *image.NRGBA) *image.NRGBA {
	switchAngle := 90 - radToDeg(math.Atan(float64(g.originalHeight)/float64(g.originalWidth)))

	angle180 := math.Mod(math.Abs(g.Angle), 180)
	var angle90 float64
	if angle180 > 90 {
		angle90 = 90 - math.Mod(math.Abs(g.Angle), 90)
	} else {
		angle90 = math.Mod(math.Abs(g.Angle), 90)
	}

	var hyp, cAngle float64
	if angle90 < switchAngle {
		hyp = float64(g.originalWidth)
		cAngle = angle90
	} else {
		hyp = float64(g.originalHeight)
		cAngle = 90 - angle90
	}

	adj := math.Cos(degToRad(cAngle))*hyp - float64(g.rotatedWidth)/2
	trimHeight := int(math.Tan(degToRad(cAngle)) * adj)

	bounds := strip.Bounds()
	if trimHeight <= 0 || 2*trimHeight >= bounds.Dy() {
		return strip
	}

	return imaging.Crop(strip, image.Rect(0, trimHeight, bounds.Dx(), bounds.Dy()-trimHeight))
}

// applyLabels draws a tick and the hour number at every hour change.
// Each mark is drawn twice, dark then light, so it stays readable over
// both bright and dark sky.
func (g *Generator) applyLabels(strip *image.NRGBA) {
	bounds := strip.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	lastHour := g.timestamps[0].Hour()
	for i, ts := range g.timestamps {
		hour := ts.Hour()
		if hour == lastHour {
			continue
		}
		lastHour = hour

		lineX := i * width / len(g.timestamps)

		drawVerticalTick(strip, lineX, height-tickLength, height, tickWidth+1, tickDark)
		drawVerticalTick(strip, lineX, height-tickLength, height, tickWidth, tickLight)

		label := fmt.Sprintf("%02d", hour)
		drawLabel(strip, label, lineX+labelPadX+1, height-labelPadY+1, tickDark)
		drawLabel(strip, label, lineX+labelPadX, height-labelPadY, tickLight)
	}
}

func drawVerticalTick(img *image.NRGBA, x, y1, y2, width int, c color.NRGBA) {
	for dx := 0; dx < width; dx++ {
		for y := y1; y < y2; y++ {
			img.SetNRGBA(x+dx, y, c)
		}
	}
}

func drawLabel(img *image.NRGBA, text string, x, y int, c color.NRGBA) {
	drawer := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	drawer.DrawString(text)
}

type frameFile struct {
	path  string
	mtime time.Time
}

// collectFrameFiles walks dir recursively for jpg frames, excluding
// empty files, sorted by modification time.
func collectFrameFiles(dir string) ([]frameFile, error) {
	var files []frameFile

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		ext := filepath.Ext(path)
		if ext != ".jpg" && ext != ".jpeg" {
			return nil
		}
		if info.Size() == 0 {
			return nil
		}
		files = append(files, frameFile{path: path, mtime: info.ModTime()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", dir, err)
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].mtime.Before(files[j].mtime)
	})
	return files, nil
}

func degToRad(d float64) float64 { return d * math.Pi / 180 }
func radToDeg(r float64) float64 { return r * 180 / math.Pi }
