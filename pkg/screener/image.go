package screener

import (
	"bytes"
	"fmt"
	"image/color"
	"image/png"
	"sync"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
)

// Image holds PNG encoded bytes.
type Image []byte

const (
	imprintPadding  = 20
	imprintBorder   = 1
	imprintFontSize = 24
)

var (
	fontOnce sync.Once
	fontFace font.Face
	fontErr  error
)

// AddTextToImage returns a copy of the image with a white caption strip
// holding text appended below a one pixel separator.
func (imgB Image) AddTextToImage(text string) (Image, error) {
	img, err := png.Decode(bytes.NewReader(imgB))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	face, err := loadFont()
	if err != nil {
		return nil, err
	}

	w := img.Bounds().Dx()
	h := img.Bounds().Dy() + imprintPadding*2 + imprintBorder
	dc := gg.NewContext(w, h)

	dc.DrawImage(img, 0, 0)

	yLine := float64(img.Bounds().Dy())
	dc.SetColor(color.White)
	dc.DrawRectangle(0, yLine, float64(w), float64(h)-yLine)
	dc.Fill()
	dc.SetColor(color.Black)
	dc.SetLineWidth(float64(imprintBorder))
	dc.DrawLine(0, yLine, float64(w), yLine)
	dc.Stroke()
	dc.SetFontFace(face)
	dc.DrawStringAnchored(text, float64(w)/2, yLine+float64(imprintBorder+imprintPadding), 0.5, 0.35)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dc.Image()); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	return buf.Bytes(), nil
}

func loadFont() (font.Face, error) {
	fontOnce.Do(func() {
		ttFont, err := truetype.Parse(goregular.TTF)
		if err != nil {
			fontErr = fmt.Errorf("failed to parse font: %w", err)
			return
		}
		fontFace = truetype.NewFace(ttFont, &truetype.Options{Size: imprintFontSize})
	})
	return fontFace, fontErr
}
