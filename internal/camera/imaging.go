package camera

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const jpegQuality = 85

var (
	matchColor   = color.RGBA{0, 200, 0, 255}
	unknownColor = color.RGBA{220, 0, 0, 255}
	labelColor   = color.RGBA{255, 255, 255, 255}
)

func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// crop copies r out of img into a new image anchored at the origin
func crop(img image.Image, r image.Rectangle) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(dst, dst.Bounds(), img, r.Min, draw.Src)
	return dst
}

// fit scales img down so neither side exceeds maxSize, keeping the aspect ratio.
// Images already small enough are returned unchanged.
func fit(img image.Image, maxSize int) image.Image {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	if maxSize <= 0 || (width <= maxSize && height <= maxSize) {
		return img
	}

	var newWidth, newHeight int
	if width > height {
		newWidth = maxSize
		newHeight = height * maxSize / width
	} else {
		newHeight = maxSize
		newWidth = width * maxSize / height
	}
	if newWidth < 1 {
		newWidth = 1
	}
	if newHeight < 1 {
		newHeight = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}

// annotation is a labelled box drawn on a published frame
type annotation struct {
	Rect    image.Rectangle
	Label   string
	Matched bool
}

// annotate returns a copy of img with every box and its label drawn on it
func annotate(img image.Image, annotations []annotation) *image.RGBA {
	bounds := img.Bounds()
	dst := image.NewRGBA(bounds)
	draw.Draw(dst, bounds, img, bounds.Min, draw.Src)

	for _, a := range annotations {
		c := unknownColor
		if a.Matched {
			c = matchColor
		}
		drawBox(dst, a.Rect, 2, c)
		drawLabel(dst, a.Rect, a.Label, c)
	}
	return dst
}

func drawBox(dst *image.RGBA, r image.Rectangle, lineWidth int, c color.RGBA) {
	for w := 0; w < lineWidth; w++ {
		drawHLine(dst, r.Min.X, r.Max.X-1, r.Min.Y+w, c)
		drawHLine(dst, r.Min.X, r.Max.X-1, r.Max.Y-1-w, c)
		drawVLine(dst, r.Min.Y, r.Max.Y-1, r.Min.X+w, c)
		drawVLine(dst, r.Min.Y, r.Max.Y-1, r.Max.X-1-w, c)
	}
}

func drawHLine(dst *image.RGBA, x1, x2, y int, c color.RGBA) {
	bounds := dst.Bounds()
	if y < bounds.Min.Y || y >= bounds.Max.Y {
		return
	}
	for x := x1; x <= x2; x++ {
		if x >= bounds.Min.X && x < bounds.Max.X {
			dst.SetRGBA(x, y, c)
		}
	}
}

func drawVLine(dst *image.RGBA, y1, y2, x int, c color.RGBA) {
	bounds := dst.Bounds()
	if x < bounds.Min.X || x >= bounds.Max.X {
		return
	}
	for y := y1; y <= y2; y++ {
		if y >= bounds.Min.Y && y < bounds.Max.Y {
			dst.SetRGBA(x, y, c)
		}
	}
}

// drawLabel writes text on a filled strip just above r, or inside its top
// edge when r touches the top of the frame.
func drawLabel(dst *image.RGBA, r image.Rectangle, text string, background color.RGBA) {
	face := basicfont.Face7x13
	height := face.Metrics().Height.Ceil() + 2
	width := font.MeasureString(face, text).Ceil() + 4

	top := r.Min.Y - height
	if top < dst.Bounds().Min.Y {
		top = r.Min.Y
	}
	strip := image.Rect(r.Min.X, top, r.Min.X+width, top+height).Intersect(dst.Bounds())
	draw.Draw(dst, strip, image.NewUniform(background), image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(labelColor),
		Face: face,
		Dot:  fixed.P(r.Min.X+2, top+face.Metrics().Ascent.Ceil()+1),
	}
	d.DrawString(text)
}
