// Package media checks uploaded images and stamps them with a watermark
// before they are handed to file storage.
package media

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"net/http"
	"strings"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	_ "golang.org/x/image/webp"

	"posledger/internal/domain"
	"posledger/internal/store"
)

const (
	margin      = 10
	jpegQuality = 85
)

var watermarkColor = color.NRGBA{R: 255, G: 255, B: 255, A: 120}

// rasterExt maps sniffed content types to the extension a stored file gets.
// Anything else is refused, whatever the client declared.
var rasterExt = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/bmp":  ".bmp",
	"image/webp": ".webp",
}

// Image is an upload ready for file storage.
type Image struct {
	Data        []byte
	ContentType string
	Ext         string
}

type Processor struct {
	maxBytes int64
}

func NewProcessor(maxBytes int64) *Processor {
	if maxBytes <= 0 {
		maxBytes = 2 << 20
	}
	return &Processor{maxBytes: maxBytes}
}

// Validate checks the declared type and size, then sniffs the bytes and
// returns the detected content type.
func (p *Processor) Validate(upload domain.Upload) (string, error) {
	if !strings.HasPrefix(upload.ContentType, "image/") {
		return "", store.Invalidf("File is not an image")
	}
	if len(upload.Data) == 0 {
		return "", store.Invalidf("Empty image")
	}
	if int64(len(upload.Data)) > p.maxBytes {
		return "", store.Invalidf("Image exceeds %s", humanSize(p.maxBytes))
	}
	sniffed := http.DetectContentType(upload.Data)
	if _, ok := rasterExt[sniffed]; !ok {
		return "", store.Invalidf("File is not a supported image")
	}
	if _, _, err := image.DecodeConfig(bytes.NewReader(upload.Data)); err != nil {
		return "", store.Invalidf("File is not a valid image")
	}
	return sniffed, nil
}

// Process validates the upload. Watermarked images come back as JPEG; the
// rest keep their bytes under the extension of the detected type.
func (p *Processor) Process(upload domain.Upload, watermark bool, text string) (Image, error) {
	sniffed, err := p.Validate(upload)
	if err != nil {
		return Image{}, err
	}
	if !watermark {
		return Image{Data: upload.Data, ContentType: sniffed, Ext: rasterExt[sniffed]}, nil
	}
	stamped, err := Watermark(upload.Data, text)
	if err != nil {
		return Image{}, err
	}
	return Image{Data: stamped, ContentType: "image/jpeg", Ext: ".jpg"}, nil
}

// Watermark draws text in the bottom right corner in semi-transparent white.
func Watermark(data []byte, text string) ([]byte, error) {
	src, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, store.Invalidf("File is not a valid image")
	}
	canvas := imaging.Clone(src)

	if text != "" {
		face := basicfont.Face7x13
		d := &font.Drawer{
			Dst:  canvas,
			Src:  image.NewUniform(watermarkColor),
			Face: face,
		}
		bounds := canvas.Bounds()
		width := d.MeasureString(text).Ceil()
		x := max(bounds.Max.X-width-margin, bounds.Min.X)
		y := max(bounds.Max.Y-margin-face.Descent, bounds.Min.Y+face.Ascent)
		d.Dot = fixed.P(x, y)
		d.DrawString(text)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, canvas, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func humanSize(n int64) string {
	if n%(1<<20) == 0 {
		return fmt.Sprintf("%dMB", n>>20)
	}
	if n%(1<<10) == 0 {
		return fmt.Sprintf("%dKB", n>>10)
	}
	return fmt.Sprintf("%d bytes", n)
}
