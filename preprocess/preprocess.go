// Package preprocess - Image to tensor transforms for ImageNet-style classifiers.
package preprocess

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"
)

// Channels is the number of color channels produced by the transform (RGB).
const Channels = 3

// ImageNetMean and ImageNetStd are the per-channel statistics the pretrained weights were
// trained with.
var (
	ImageNetMean = [Channels]float32{0.485, 0.456, 0.406}
	ImageNetStd  = [Channels]float32{0.229, 0.224, 0.225}
)

// Config defines the preprocessing applied to every sample.
type Config struct {
	// Size is the side of the square model input; the shorter image side is resized to it.
	Size int `json:"image_size" yaml:"image_size"`
	// Mean for standardization, one value per RGB channel.
	Mean []float32 `json:"mean"       yaml:"mean"`
	// Std for standardization, one value per RGB channel.
	Std []float32 `json:"std"        yaml:"std"`
}

// ImageNetConfig returns the standard ImageNet preprocessing at the given input size.
func ImageNetConfig(size int) Config {
	return Config{
		Size: size,
		Mean: append([]float32(nil), ImageNetMean[:]...),
		Std:  append([]float32(nil), ImageNetStd[:]...),
	}
}

// Validate checks that the configuration describes a usable transform.
func (c Config) Validate() error {
	if c.Size <= 0 {
		return fmt.Errorf("image_size must be positive, got %d", c.Size)
	}
	if len(c.Mean) != Channels || len(c.Std) != Channels {
		return fmt.Errorf("mean and std need %d values, got %d and %d", Channels, len(c.Mean), len(c.Std))
	}
	for i, s := range c.Std {
		if s <= 0 {
			return fmt.Errorf("std[%d] must be positive, got %f", i, s)
		}
	}
	return nil
}

// Transform converts decoded images into normalized CHW float32 planes.
type Transform struct {
	size int
	mean [Channels]float32
	std  [Channels]float32
}

// NewTransform creates a transform from a validated configuration.
//
// Arguments:
//   - cfg: The preprocessing configuration.
//
// Returns:
//   - *Transform: The transform.
//   - error: An error if the configuration is invalid.
func NewTransform(cfg Config) (*Transform, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	t := &Transform{size: cfg.Size}
	copy(t.mean[:], cfg.Mean)
	copy(t.std[:], cfg.Std)
	return t, nil
}

// Shape returns the per-sample tensor shape (C, H, W).
func (t *Transform) Shape() [3]int {
	return [3]int{Channels, t.size, t.size}
}

// Apply resizes the shorter side to the configured size, center-crops to a square and
// normalizes each channel.
//
// Arguments:
//   - img: The decoded source image.
//
// Returns:
//   - []float32: CHW planes of length 3*size*size.
func (t *Transform) Apply(img image.Image) []float32 {
	square := t.fit(img)

	plane := t.size * t.size
	out := make([]float32, Channels*plane)
	red := out[0:plane]
	green := out[plane : 2*plane]
	blue := out[2*plane : 3*plane]

	i := 0
	for y := 0; y < t.size; y++ {
		row := square.Pix[y*square.Stride : y*square.Stride+t.size*4]
		for x := 0; x < t.size; x++ {
			px := row[x*4 : x*4+4]
			red[i] = (float32(px[0])/255.0 - t.mean[0]) / t.std[0]
			green[i] = (float32(px[1])/255.0 - t.mean[1]) / t.std[1]
			blue[i] = (float32(px[2])/255.0 - t.mean[2]) / t.std[2]
			i++
		}
	}
	return out
}

// fit returns a size x size NRGBA image anchored at the origin.
func (t *Transform) fit(img image.Image) *image.NRGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	resized := img
	switch {
	case w == t.size && h == t.size:
	case w <= h:
		resized = resize.Resize(uint(t.size), 0, img, resize.Bilinear)
	default:
		resized = resize.Resize(0, uint(t.size), img, resize.Bilinear)
	}

	return imaging.CropCenter(resized, t.size, t.size)
}
