// Package imgutil prepares screenshots for comparison: decoding from disk,
// bringing two images to a common size and writing difference maps.
package imgutil

import (
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"

	"github.com/nfnt/resize"
	"go.crawlkit.dev/infra/go/skerr"
	"go.crawlkit.dev/infra/go/util"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	_ "go.crawlkit.dev/infra/perdiff/go/image/text"
)

// SizeMode controls how two images of different size are brought to a common
// size.
type SizeMode int

const (
	// SizeStrict leaves the images alone; comparing them will fail.
	SizeStrict SizeMode = iota
	// SizeCrop crops both images to their common top-left area.
	SizeCrop
	// SizeResize scales the second image to the size of the first.
	SizeResize
)

// Decode reads any registered image format: PNG, JPEG, GIF, BMP, TIFF, WebP
// and SKTEXT.
func Decode(r io.Reader) (image.Image, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", skerr.Wrap(err)
	}
	return img, format, nil
}

// DecodeFile decodes the image stored at path.
func DecodeFile(path string) (image.Image, error) {
	var img image.Image
	err := util.WithReadFile(path, func(r io.Reader) error {
		var err error
		img, _, err = Decode(r)
		return err
	})
	if err != nil {
		return nil, skerr.Wrapf(err, "decoding %s", path)
	}
	return img, nil
}

// Crop returns the top-left width x height area of img as a new NRGBA
// image. The area is clamped to the bounds of img.
func Crop(img image.Image, width, height int) *image.NRGBA {
	b := img.Bounds()
	width = util.MinInt(width, b.Dx())
	height = util.MinInt(height, b.Dy())
	ret := image.NewNRGBA(image.Rect(0, 0, width, height))
	draw.Draw(ret, ret.Bounds(), img, b.Min, draw.Src)
	return ret
}

// Resize scales img to width x height.
func Resize(img image.Image, width, height int) image.Image {
	b := img.Bounds()
	if b.Dx() == width && b.Dy() == height {
		return img
	}
	return resize.Resize(uint(width), uint(height), img, resize.Bilinear)
}

// Normalize returns a and b at a common size according to mode.
func Normalize(a, b image.Image, mode SizeMode) (image.Image, image.Image) {
	ab, bb := a.Bounds(), b.Bounds()
	if ab.Dx() == bb.Dx() && ab.Dy() == bb.Dy() {
		return a, b
	}
	switch mode {
	case SizeCrop:
		w := util.MinInt(ab.Dx(), bb.Dx())
		h := util.MinInt(ab.Dy(), bb.Dy())
		return Crop(a, w, h), Crop(b, w, h)
	case SizeResize:
		return a, Resize(b, ab.Dx(), ab.Dy())
	}
	return a, b
}

// EncodePNG writes img as a PNG.
func EncodePNG(w io.Writer, img image.Image) error {
	return skerr.Wrap(png.Encode(w, img))
}

// WritePNGFile writes img as a PNG to path, replacing any existing file only
// once the encoding succeeded.
func WritePNGFile(path string, img image.Image) error {
	return skerr.Wrapf(util.WithWriteFile(path, func(w io.Writer) error {
		return EncodePNG(w, img)
	}), "writing %s", path)
}
