package media

import (
	"bytes"
	"image/color"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"posledger/internal/domain"
	"posledger/internal/store"
)

func blackPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	img := imaging.New(w, h, color.NRGBA{A: 255})
	require.NoError(t, imaging.Encode(&buf, img, imaging.PNG))
	return buf.Bytes()
}

func TestValidate(t *testing.T) {
	p := NewProcessor(2 << 20)

	cases := []struct {
		name   string
		upload domain.Upload
		msg    string
	}{
		{"not an image", domain.Upload{ContentType: "text/plain", Data: []byte("x")}, "File is not an image"},
		{"empty", domain.Upload{ContentType: "image/png"}, "Empty image"},
		{"too large", domain.Upload{ContentType: "image/png", Data: make([]byte, 2<<20+1)}, "Image exceeds 2MB"},
		{"html declared as png", domain.Upload{ContentType: "image/png", Data: []byte("<html><script>alert(1)</script></html>")}, "File is not a supported image"},
		{"svg", domain.Upload{ContentType: "image/svg+xml", Data: []byte(`<svg xmlns="http://www.w3.org/2000/svg"></svg>`)}, "File is not a supported image"},
		{"truncated png", domain.Upload{ContentType: "image/png", Data: []byte("\x89PNG\r\n\x1a\n")}, "File is not a valid image"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := p.Validate(tc.upload)
			require.ErrorIs(t, err, store.ErrInvalid)
			assert.Equal(t, tc.msg, err.Error())
		})
	}

	sniffed, err := p.Validate(domain.Upload{ContentType: "image/jpeg", Data: blackPNG(t, 4, 4)})
	require.NoError(t, err)
	assert.Equal(t, "image/png", sniffed)
}

func TestWatermarkStampsBottomRight(t *testing.T) {
	out, err := Watermark(blackPNG(t, 160, 60), "Product Image")
	require.NoError(t, err)

	img, err := imaging.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 160, img.Bounds().Dx())
	assert.Equal(t, 60, img.Bounds().Dy())

	lit := 0
	for y := 30; y < 60; y++ {
		for x := 40; x < 160; x++ {
			r, _, _, _ := img.At(x, y).RGBA()
			if r>>8 > 60 {
				lit++
			}
		}
	}
	assert.Greater(t, lit, 10)

	topLeft, _, _, _ := img.At(2, 2).RGBA()
	assert.Less(t, topLeft>>8, uint32(30))
}

func TestProcessRejectsGarbage(t *testing.T) {
	p := NewProcessor(0)

	_, err := p.Process(domain.Upload{ContentType: "image/png", Data: []byte("not really a png")}, true, "x")
	assert.ErrorIs(t, err, store.ErrInvalid)
}

func TestProcessNamesFilesByDetectedType(t *testing.T) {
	p := NewProcessor(0)
	data := blackPNG(t, 32, 16)

	plain, err := p.Process(domain.Upload{Filename: "evil.html", ContentType: "image/gif", Data: data}, false, "")
	require.NoError(t, err)
	assert.Equal(t, ".png", plain.Ext)
	assert.Equal(t, "image/png", plain.ContentType)
	assert.Equal(t, data, plain.Data)

	stamped, err := p.Process(domain.Upload{Filename: "evil.html", ContentType: "image/png", Data: data}, true, "Mark")
	require.NoError(t, err)
	assert.Equal(t, ".jpg", stamped.Ext)
	assert.Equal(t, "image/jpeg", stamped.ContentType)
}
