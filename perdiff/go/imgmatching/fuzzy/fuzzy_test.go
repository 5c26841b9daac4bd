package fuzzy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.crawlkit.dev/infra/go/testutils/unittest"
	"go.crawlkit.dev/infra/perdiff/go/image/text"
	"go.crawlkit.dev/infra/perdiff/go/perdiff"
)

func raster(s string) *perdiff.Raster {
	w, h, pix := text.MustToARGB(s)
	return &perdiff.Raster{Width: w, Height: h, Pix: pix}
}

const base = `! SKTEXTSIMPLE
2 2
0x000000ff 0x000000ff
0x000000ff 0x000000ff`

func TestFuzzyMatcher(t *testing.T) {
	unittest.SmallTest(t)

	tests := []struct {
		name            string
		matcher         Matcher
		image2          string
		expectedToMatch bool
	}{
		{
			name:    "different size images, returns false",
			matcher: Matcher{MaxDifferentPixels: 10, PixelDeltaThreshold: 1020},
			image2: `! SKTEXTSIMPLE
			3 2
			0x000000ff 0x000000ff 0x000000ff
			0x000000ff 0x000000ff 0x000000ff`,
			expectedToMatch: false,
		},
		{
			name:            "identical images, returns true",
			matcher:         Matcher{},
			image2:          base,
			expectedToMatch: true,
		},
		{
			name:    "one different pixel, zero tolerance, returns false",
			matcher: Matcher{},
			image2: `! SKTEXTSIMPLE
			2 2
			0x010000ff 0x000000ff
			0x000000ff 0x000000ff`,
			expectedToMatch: false,
		},
		{
			name:    "two small deltas within tolerance, returns true",
			matcher: Matcher{MaxDifferentPixels: 2, PixelDeltaThreshold: 4},
			image2: `! SKTEXTSIMPLE
			2 2
			0x010101ff 0x000000ff
			0x000000ff 0x000002fe`,
			expectedToMatch: true,
		},
		{
			name:    "delta above threshold, returns false",
			matcher: Matcher{MaxDifferentPixels: 2, PixelDeltaThreshold: 4},
			image2: `! SKTEXTSIMPLE
			2 2
			0x050000ff 0x000000ff
			0x000000ff 0x000000ff`,
			expectedToMatch: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			a, b := raster(base), raster(tc.image2)
			got, err := tc.matcher.Match(context.Background(), a, b)
			require.NoError(t, err)
			assert.Equal(t, tc.expectedToMatch, got, "image1 vs image2")
			got, err = tc.matcher.Match(context.Background(), b, a)
			require.NoError(t, err)
			assert.Equal(t, tc.expectedToMatch, got, "image2 vs image1")
		})
	}
}

func TestFuzzyMatcher_NilExpected_ReturnsFalse(t *testing.T) {
	unittest.SmallTest(t)
	m := Matcher{MaxDifferentPixels: 100, PixelDeltaThreshold: 1020}
	got, err := m.Match(context.Background(), nil, raster(base))
	require.NoError(t, err)
	assert.False(t, got)
}

func TestFuzzyMatcher_ShortPixelBuffer_ReturnsFalse(t *testing.T) {
	unittest.SmallTest(t)
	m := Matcher{MaxDifferentPixels: 100, PixelDeltaThreshold: 1020}
	short := &perdiff.Raster{Width: 2, Height: 2, Pix: make([]uint32, 3)}
	got, err := m.Match(context.Background(), raster(base), short)
	require.NoError(t, err)
	assert.False(t, got)
}

func TestCompare(t *testing.T) {
	unittest.SmallTest(t)
	s := Compare(raster(base), raster(`! SKTEXTSIMPLE
2 2
0x0a0000ff 0x000000ff
0x000000ff 0x01020300`))
	assert.Equal(t, Stats{NumDifferentPixels: 2, MaxPixelDelta: 255 + 6}, s)
}
