package perdiff

import (
	"image"
	"image/draw"

	"go.crawlkit.dev/infra/go/skerr"
)

// Raster is a decoded image: Width*Height pixels in row-major order, each
// packed as 0xAARRGGBB. The engine never modifies a Raster.
type Raster struct {
	Width  int
	Height int
	Pix    []uint32
}

// NewRaster returns a Raster of the given size with all pixels set to 0.
func NewRaster(width, height int) *Raster {
	return &Raster{
		Width:  width,
		Height: height,
		Pix:    make([]uint32, width*height),
	}
}

// FromImage copies img into a new Raster. Colors are converted to
// non-premultiplied 8-bit ARGB.
func FromImage(img image.Image) *Raster {
	b := img.Bounds()
	nrgba, ok := img.(*image.NRGBA)
	if !ok || nrgba.Rect.Min != (image.Point{}) {
		nrgba = image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(nrgba, nrgba.Bounds(), img, b.Min, draw.Src)
	}
	r := NewRaster(b.Dx(), b.Dy())
	for y := 0; y < r.Height; y++ {
		row := nrgba.Pix[y*nrgba.Stride:]
		for x := 0; x < r.Width; x++ {
			p := row[4*x : 4*x+4]
			r.Pix[y*r.Width+x] = uint32(p[3])<<24 | uint32(p[0])<<16 | uint32(p[1])<<8 | uint32(p[2])
		}
	}
	return r
}

// ToNRGBA converts the Raster back into an image.
func (r *Raster) ToNRGBA() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, r.Width, r.Height))
	for i, c := range r.Pix {
		p := img.Pix[4*i : 4*i+4]
		p[0] = uint8(c >> 16)
		p[1] = uint8(c >> 8)
		p[2] = uint8(c)
		p[3] = uint8(c >> 24)
	}
	return img
}

// IsOpaque returns true if every pixel has an alpha of 0xff.
func (r *Raster) IsOpaque() bool {
	for _, c := range r.Pix {
		if c&alphaMask != alphaMask {
			return false
		}
	}
	return true
}

// validate rejects nil and empty rasters and a Pix of the wrong length.
func (r *Raster) validate() error {
	if r == nil || r.Width <= 0 || r.Height <= 0 {
		return ErrEmptyImage
	}
	if len(r.Pix) != r.Width*r.Height {
		return skerr.Fmt("%w: %d pixels for a %dx%d image", ErrInvalidRaster, len(r.Pix), r.Width, r.Height)
	}
	return nil
}

const alphaMask uint32 = 0xff000000
