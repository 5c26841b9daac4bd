package imgutil

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.crawlkit.dev/infra/go/testutils/unittest"
	"go.crawlkit.dev/infra/perdiff/go/image/text"
)

const threeByTwo = `! SKTEXTSIMPLE
3 2
0x112233ff 0x445566ff 0x778899ff
0xaabbccff 0xddeeffff 0x000000ff`

func TestDecode_SKTEXT(t *testing.T) {
	unittest.SmallTest(t)
	img, format, err := Decode(strings.NewReader(threeByTwo))
	require.NoError(t, err)
	assert.Equal(t, "sktext", format)
	assert.Equal(t, image.Rect(0, 0, 3, 2), img.Bounds())
}

func TestDecode_Garbage_ReturnsError(t *testing.T) {
	unittest.SmallTest(t)
	_, _, err := Decode(strings.NewReader("not an image"))
	assert.Error(t, err)
}

func TestWritePNGFile_ThenDecodeFile(t *testing.T) {
	unittest.MediumTest(t)
	want := text.MustToNRGBA(threeByTwo)
	path := filepath.Join(t.TempDir(), "diff.png")
	require.NoError(t, WritePNGFile(path, want))

	got, err := DecodeFile(path)
	require.NoError(t, err)
	require.Equal(t, want.Bounds(), got.Bounds())
	for y := 0; y < 2; y++ {
		for x := 0; x < 3; x++ {
			assert.Equal(t, want.NRGBAAt(x, y), color.NRGBAModel.Convert(got.At(x, y)), "(%d, %d)", x, y)
		}
	}
}

func TestDecodeFile_Missing_ReturnsError(t *testing.T) {
	unittest.SmallTest(t)
	_, err := DecodeFile(filepath.Join(t.TempDir(), "missing.png"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestEncodePNG(t *testing.T) {
	unittest.SmallTest(t)
	var buf bytes.Buffer
	require.NoError(t, EncodePNG(&buf, text.MustToNRGBA(threeByTwo)))
	cfg, err := png.DecodeConfig(&buf)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Width)
}

func TestCrop(t *testing.T) {
	unittest.SmallTest(t)
	img := text.MustToNRGBA(threeByTwo)
	c := Crop(img, 2, 1)
	assert.Equal(t, image.Rect(0, 0, 2, 1), c.Bounds())
	assert.Equal(t, color.NRGBA{R: 0x44, G: 0x55, B: 0x66, A: 0xff}, c.NRGBAAt(1, 0))

	// Clamped to the source bounds.
	assert.Equal(t, image.Rect(0, 0, 3, 2), Crop(img, 10, 10).Bounds())
}

func TestResize(t *testing.T) {
	unittest.SmallTest(t)
	img := text.MustToNRGBA(threeByTwo)
	assert.Same(t, img, Resize(img, 3, 2))
	assert.Equal(t, image.Rect(0, 0, 6, 4), Resize(img, 6, 4).Bounds())
}

func TestNormalize(t *testing.T) {
	unittest.SmallTest(t)
	a := image.NewNRGBA(image.Rect(0, 0, 10, 8))
	b := image.NewNRGBA(image.Rect(0, 0, 6, 12))

	ca, cb := Normalize(a, b, SizeCrop)
	assert.Equal(t, image.Rect(0, 0, 6, 8), ca.Bounds())
	assert.Equal(t, image.Rect(0, 0, 6, 8), cb.Bounds())

	ra, rb := Normalize(a, b, SizeResize)
	assert.Same(t, a, ra)
	assert.Equal(t, image.Rect(0, 0, 10, 8), rb.Bounds())

	sa, sb := Normalize(a, b, SizeStrict)
	assert.Same(t, a, sa)
	assert.Same(t, b, sb)
}
