package world

import (
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"golang.org/x/image/draw"
)

const previewAmbientLight = 0.2

// RenderPreview draws a top-down map of the resident chunks, one pixel per
// column, shaded by the light level above each surface block. The image is
// scaled up by scale with nearest-neighbour sampling.
func RenderPreview(store *Store, scale int) (*image.NRGBA, error) {
	resident := store.Resident()
	if len(resident) == 0 {
		return nil, errors.New("no resident chunks to preview")
	}
	if scale < 1 {
		scale = 1
	}
	dim := store.Dimensions()
	minC, maxC := resident[0], resident[0]
	for _, c := range resident[1:] {
		minC.X, maxC.X = min(minC.X, c.X), max(maxC.X, c.X)
		minC.Z, maxC.Z = min(minC.Z, c.Z), max(maxC.Z, c.Z)
	}
	w := (maxC.X - minC.X + 1) * dim.Width
	h := (maxC.Z - minC.Z + 1) * dim.Depth
	src := image.NewNRGBA(image.Rect(0, 0, w, h))
	background := color.NRGBA{R: 10, G: 10, B: 18, A: 255}
	draw.Draw(src, src.Bounds(), &image.Uniform{C: background}, image.Point{}, draw.Src)

	for _, c := range resident {
		chunk, _ := store.Chunk(c)
		ox := (c.X - minC.X) * dim.Width
		oz := (c.Z - minC.Z) * dim.Depth
		for z := 0; z < dim.Depth; z++ {
			for x := 0; x < dim.Width; x++ {
				src.SetNRGBA(ox+x, oz+z, columnColor(chunk, x, z))
			}
		}
	}

	if scale == 1 {
		return src, nil
	}
	dst := image.NewNRGBA(image.Rect(0, 0, w*scale, h*scale))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst, nil
}

// SavePreview renders the resident set and writes it as a PNG.
func SavePreview(store *Store, path string, scale int) error {
	img, err := RenderPreview(store, scale)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(err, "create preview dir")
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create preview")
	}
	defer file.Close()
	if err := png.Encode(file, img); err != nil {
		return errors.Wrap(err, "encode preview")
	}
	return nil
}

func columnColor(chunk *Chunk, x, z int) color.NRGBA {
	col := chunk.Column(x, z)
	for y := len(col) - 1; y >= 0; y-- {
		block := col[y]
		if block.IsAir() {
			continue
		}
		light := block.Light
		if y+1 < len(col) {
			light = col[y+1].Light
		}
		factor := previewAmbientLight + (1-previewAmbientLight)*float64(light)/float64(MaxLight)
		return applyLighting(ColorOf(block.Type), factor)
	}
	return color.NRGBA{A: 255}
}

func applyLighting(base color.NRGBA, factor float64) color.NRGBA {
	factor = math.Max(0, math.Min(1, factor))
	return color.NRGBA{
		R: uint8(math.Round(float64(base.R) * factor)),
		G: uint8(math.Round(float64(base.G) * factor)),
		B: uint8(math.Round(float64(base.B) * factor)),
		A: 255,
	}
}
