package plot

import (
	"fmt"
	"image"
	"image/color"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

var (
	faceLabel font.Face
	faceTitle font.Face
	fontOnce  sync.Once
	fontErr   error
)

func loadFonts() {
	fontOnce.Do(func() {
		regular, err := opentype.Parse(goregular.TTF)
		if err != nil {
			fontErr = fmt.Errorf("parse Go Regular: %w", err)
			return
		}
		faceLabel, err = opentype.NewFace(regular, &opentype.FaceOptions{
			Size:    13,
			DPI:     72,
			Hinting: font.HintingFull,
		})
		if err != nil {
			fontErr = fmt.Errorf("create label face: %w", err)
			return
		}

		bold, err := opentype.Parse(gobold.TTF)
		if err != nil {
			fontErr = fmt.Errorf("parse Go Bold: %w", err)
			return
		}
		faceTitle, err = opentype.NewFace(bold, &opentype.FaceOptions{
			Size:    18,
			DPI:     72,
			Hinting: font.HintingFull,
		})
		if err != nil {
			fontErr = fmt.Errorf("create title face: %w", err)
		}
	})
}

type anchor int

const (
	anchorLeft anchor = iota
	anchorCenter
	anchorRight
)

// drawText draws text with its baseline at y, aligned on x.
func drawText(img *image.RGBA, text string, x, y int, align anchor, col color.Color, face font.Face) {
	width := font.MeasureString(face, text).Round()
	switch align {
	case anchorCenter:
		x -= width / 2
	case anchorRight:
		x -= width
	}
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}
