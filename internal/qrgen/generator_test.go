package qrgen

import (
	"bytes"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode_CanvasAndPNGMatch(t *testing.T) {
	g, err := NewGenerator().Encode("https://example.com", 0)
	require.NoError(t, err)

	assert.Equal(t, "https://example.com", g.Text)
	assert.Equal(t, DefaultSize, g.Size)
	assert.Equal(t, DefaultSize, g.Canvas.Bounds().Dx())
	assert.Equal(t, DefaultSize, g.Canvas.Bounds().Dy())
	assert.Positive(t, g.Version)

	decoded, err := png.Decode(bytes.NewReader(g.PNG))
	require.NoError(t, err)
	require.Equal(t, g.Canvas.Bounds(), decoded.Bounds())

	// Exportable image must be pixel-identical to the canvas.
	b := g.Canvas.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y += 7 {
		for x := b.Min.X; x < b.Max.X; x += 7 {
			r1, g1, b1, _ := g.Canvas.At(x, y).RGBA()
			r2, g2, b2, _ := decoded.At(x, y).RGBA()
			require.Equal(t, [3]uint32{r1, g1, b1}, [3]uint32{r2, g2, b2}, "pixel %d,%d", x, y)
		}
	}
}

func TestEncode_Sizes(t *testing.T) {
	for _, size := range []int{64, 128, 360, 1000} {
		g, err := NewGenerator().Encode("size check", size)
		require.NoError(t, err)
		assert.Equal(t, size, g.Canvas.Bounds().Dx())
		assert.Equal(t, size, g.Canvas.Bounds().Dy())
	}

	// A dense symbol still yields the requested canvas even when it would
	// not fit at one pixel per module.
	g, err := NewGenerator().Encode(strings.Repeat("x", 1500), 100)
	require.NoError(t, err)
	assert.Equal(t, 100, g.Canvas.Bounds().Dx())
}

func TestEncode_Deterministic(t *testing.T) {
	a, err := NewGenerator().Encode("same", 200)
	require.NoError(t, err)
	b, err := NewGenerator().Encode("same", 200)
	require.NoError(t, err)
	assert.Equal(t, a.PNG, b.PNG)
}

func TestEncode_Errors(t *testing.T) {
	tests := []struct {
		name string
		text string
		want error
		kind ErrorKind
	}{
		{"empty", "", ErrEmptyInput, KindEmptyInput},
		{"whitespace", " \t\n", ErrEmptyInput, KindEmptyInput},
		{"invalid utf8", "ok\xff\xfe", ErrInvalidInput, KindInvalidInput},
		{"too long", strings.Repeat("a", 5000), ErrCapacity, KindCapacity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := NewGenerator().Encode(tt.text, 0)
			assert.Nil(t, g)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)

			var ee *EncodeError
			require.ErrorAs(t, err, &ee)
			assert.Equal(t, tt.kind, ee.Kind)
		})
	}
}

func TestEncode_KeepsTextAsGiven(t *testing.T) {
	g, err := NewGenerator().Encode("cafe\u0301", 0)
	require.NoError(t, err)
	assert.Equal(t, "cafe\u0301", g.Text)
}

func TestEncode_NormalizeNFC(t *testing.T) {
	gen := NewGenerator()
	gen.NormalizeNFC = true
	g, err := gen.Encode("cafe\u0301", 0)
	require.NoError(t, err)
	assert.Equal(t, "caf\u00e9", g.Text)
}

func TestEncode_SizeLimit(t *testing.T) {
	g, err := NewGenerator().Encode("edge", MaxSize)
	require.NoError(t, err)
	assert.Equal(t, MaxSize, g.Canvas.Bounds().Dx())

	g, err = NewGenerator().Encode("edge", MaxSize+1)
	assert.Nil(t, g)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Contains(t, err.Error(), "exceeds the maximum")
}

func TestTerminalString(t *testing.T) {
	g, err := NewGenerator().Encode("terminal", 0)
	require.NoError(t, err)
	s := g.TerminalString()
	assert.NotEmpty(t, s)
	assert.Contains(t, s, "\n")

	var nilGen *Generated
	assert.Empty(t, nilGen.TerminalString())
}

func TestErrorKind_String(t *testing.T) {
	assert.Equal(t, "capacity exceeded", KindCapacity.String())
	assert.Equal(t, "unknown", ErrorKind(0).String())
	assert.Equal(t, "qrgen: empty input", (&EncodeError{Kind: KindEmptyInput}).Error())
}
