// Package text contains a plain text image format used for test fixtures.
//
// A super simple format of the form:
//
// ! SKTEXTSIMPLE
// width height
// 0x000000ff 0xffffffff ...
// 0xddddddff 0xffffff88 ...
// ...
//
// Where the pixel values are encoded as 0xRRGGBBAA.
//
// Grayscale pixels can be encoded as 0xXX. The two images below are equivalent:
//
// ! SKTEXTSIMPLE
// 2 2
// 0x00 0x11
// 0xaa 0xbb
//
// ! SKTEXTSIMPLE
// 2 2
// 0x000000ff 0x111111ff
// 0xaaaaaaff 0xbbbbbbff
//
// The comparison engine works on packed 0xAARRGGBB pixels, so besides the
// image.Image codec this package also decodes straight into that layout.
package text

import (
	"bufio"
	"fmt"
	"image"
	"image/color"
	"io"
	"strconv"
	"strings"

	"go.crawlkit.dev/infra/go/skerr"
)

const skTextHeader = "! SKTEXTSIMPLE\n"

// dim returns the dimensions of the image.
func dim(reader *bufio.Reader) (int, int, error) {
	line, err := reader.ReadString('\n')
	if err != nil {
		return 0, 0, skerr.Wrapf(err, "reading SKTEXT header")
	}
	if line != skTextHeader {
		return 0, 0, skerr.Fmt("not a valid SKTEXT file: %q", line)
	}
	line, err = reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return 0, 0, skerr.Wrapf(err, "reading SKTEXT dimensions")
	}
	width, height := 0, 0
	if n, err := fmt.Sscanf(line, "%d %d", &width, &height); err != nil || n != 2 {
		return 0, 0, skerr.Fmt("not a valid SKTEXT file, couldn't find width and height in %q", line)
	}
	if width < 0 || height < 0 {
		return 0, 0, skerr.Fmt("not a valid SKTEXT file, negative dimensions %dx%d", width, height)
	}
	return width, height, nil
}

// parsePixel parses 0xRRGGBBAA or 0xXX into its components.
func parsePixel(h string) (r, g, b, a uint8, err error) {
	if !strings.HasPrefix(h, "0x") || (len(h) != 4 && len(h) != 10) {
		return 0, 0, 0, 0, skerr.Fmt("invalid pixel format, must be 0xRRGGBBAA or 0xXX (for color or grayscale pixels, respectively), got %q", h)
	}
	pixel, err := strconv.ParseUint(h, 0, 32)
	if err != nil {
		return 0, 0, 0, 0, skerr.Wrapf(err, "parsing pixel %q", h)
	}
	if len(h) == 4 {
		v := uint8(pixel)
		return v, v, v, 0xff, nil
	}
	return uint8(pixel >> 24), uint8(pixel >> 16), uint8(pixel >> 8), uint8(pixel), nil
}

// decode calls set for every pixel in the stream after reading the
// dimensions and calling alloc.
func decode(rd io.Reader, alloc func(w, h int), set func(x, y int, r, g, b, a uint8)) error {
	reader := bufio.NewReader(rd)
	width, height, err := dim(reader)
	if err != nil {
		return skerr.Wrapf(err, "decoding SKTEXT config")
	}
	alloc(width, height)
	for y := 0; ; y++ {
		line, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return skerr.Wrapf(err, "reading SKTEXT row %d", y)
		}
		fields := strings.Fields(line)
		if len(fields) > 0 {
			if y >= height {
				return skerr.Fmt("too many y values: %d > %d", y+1, height)
			}
			if len(fields) > width {
				return skerr.Fmt("too many x values in row %d: %d > %d", y, len(fields), width)
			}
		}
		for x, h := range fields {
			r, g, b, a, err := parsePixel(h)
			if err != nil {
				return skerr.Wrapf(err, "at (%d, %d)", x, y)
			}
			set(x, y, r, g, b, a)
		}
		if err == io.EOF {
			return nil
		}
	}
}

// Decode reads an SKTEXT image from r and returns it as an image.Image.
// The type of Image returned will always be NRGBA.
func Decode(r io.Reader) (image.Image, error) {
	var ret *image.NRGBA
	err := decode(r, func(w, h int) {
		ret = image.NewNRGBA(image.Rect(0, 0, w, h))
	}, func(x, y int, r, g, b, a uint8) {
		ret.SetNRGBA(x, y, color.NRGBA{R: r, G: g, B: b, A: a})
	})
	if err != nil {
		return nil, err
	}
	return ret, nil
}

// DecodeARGB reads an SKTEXT image from r into a row-major slice of packed
// 0xAARRGGBB pixels.
func DecodeARGB(r io.Reader) (width, height int, pix []uint32, err error) {
	err = decode(r, func(w, h int) {
		width, height = w, h
		pix = make([]uint32, w*h)
	}, func(x, y int, r, g, b, a uint8) {
		pix[y*width+x] = uint32(a)<<24 | uint32(r)<<16 | uint32(g)<<8 | uint32(b)
	})
	if err != nil {
		return 0, 0, nil, err
	}
	return width, height, pix, nil
}

// DecodeConfig returns the color model and dimensions of SKTEXT image without
// decoding the entire image.
func DecodeConfig(r io.Reader) (image.Config, error) {
	reader := bufio.NewReader(r)
	width, height, err := dim(reader)
	if err != nil {
		return image.Config{}, skerr.Wrapf(err, "decoding SKTEXT config")
	}
	return image.Config{
		ColorModel: color.NRGBAModel,
		Width:      width,
		Height:     height,
	}, nil
}

// Encode encodes the image in SKTEXT format.
func Encode(w io.Writer, m *image.NRGBA) error {
	b := m.Bounds()
	return encode(w, b.Dx(), b.Dy(), func(x, y int) (uint8, uint8, uint8, uint8) {
		c := m.NRGBAAt(b.Min.X+x, b.Min.Y+y)
		return c.R, c.G, c.B, c.A
	})
}

// EncodeARGB encodes packed 0xAARRGGBB pixels in SKTEXT format.
func EncodeARGB(w io.Writer, width, height int, pix []uint32) error {
	if len(pix) != width*height {
		return skerr.Fmt("pixel count %d does not match %dx%d", len(pix), width, height)
	}
	return encode(w, width, height, func(x, y int) (uint8, uint8, uint8, uint8) {
		p := pix[y*width+x]
		return uint8(p >> 16), uint8(p >> 8), uint8(p), uint8(p >> 24)
	})
}

func encode(w io.Writer, width, height int, at func(x, y int) (uint8, uint8, uint8, uint8)) error {
	if _, err := fmt.Fprintf(w, "%s%d %d\n", skTextHeader, width, height); err != nil {
		return skerr.Wrap(err)
	}
	for y := 0; y < height; y++ {
		row := make([]string, width)
		for x := range row {
			r, g, b, a := at(x, y)
			row[x] = fmt.Sprintf("0x%02x%02x%02x%02x", r, g, b, a)
		}
		line := strings.Join(row, " ")
		// Don't add a trailing \n to the very last line.
		if y < height-1 {
			line += "\n"
		}
		if _, err := io.WriteString(w, line); err != nil {
			return skerr.Wrap(err)
		}
	}
	return nil
}

func init() {
	image.RegisterFormat("sktext", skTextHeader, Decode, DecodeConfig)
}

// MustToNRGBA returns an *image.NRGBA from a given string, which is assumed to be an image in the
// SKTEXTSIMPLE "codec". It panics if the string cannot be processed into an image, suitable only
// for testing code.
func MustToNRGBA(s string) *image.NRGBA {
	img, err := Decode(strings.NewReader(s))
	if err != nil {
		// This indicates an error with the static test data.
		panic(fmt.Sprintf("Failed to decode a valid image: %s", err))
	}
	return img.(*image.NRGBA)
}

// MustToARGB is like MustToNRGBA but returns packed 0xAARRGGBB pixels.
func MustToARGB(s string) (width, height int, pix []uint32) {
	width, height, pix, err := DecodeARGB(strings.NewReader(s))
	if err != nil {
		panic(fmt.Sprintf("Failed to decode a valid image: %s", err))
	}
	return width, height, pix
}
