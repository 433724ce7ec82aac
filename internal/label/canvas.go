package label

import (
	"image"
	"image/color"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

// Pixels darker than this count as ink for cropping and bit packing.
const inkThreshold = 128

func newCanvas(w, h int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0xFF
	}
	return img
}

// contentBounds returns the tight bounding box of inked pixels. ok is false
// for an entirely blank image.
func contentBounds(img *image.Gray) (image.Rectangle, bool) {
	b := img.Bounds()
	minX, minY := b.Max.X, b.Max.Y
	maxX, maxY := b.Min.X, b.Min.Y

	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.Pix[(y-b.Min.Y)*img.Stride : (y-b.Min.Y)*img.Stride+b.Dx()]
		for x, v := range row {
			if v < inkThreshold {
				if x < minX {
					minX = x
				}
				if x > maxX {
					maxX = x
				}
				if y < minY {
					minY = y
				}
				if y > maxY {
					maxY = y
				}
			}
		}
	}

	if minX > maxX {
		return image.Rectangle{}, false
	}
	return image.Rect(minX, minY, maxX+1, maxY+1), true
}

// drawLines renders wrapped text lines into dst starting at its top edge,
// aligned within boxWidth.
func drawLines(dst *image.Gray, face font.Face, lines []string, align Align, boxWidth int, spacing float64) {
	metrics := face.Metrics()
	ascent := metrics.Ascent.Ceil()
	step := float64(lineHeight(face)) * spacing

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.Black,
		Face: face,
	}

	for i, line := range lines {
		x := 0
		switch align {
		case AlignCenter:
			x = (boxWidth - textWidth(face, line)) / 2
		case AlignRight:
			x = boxWidth - textWidth(face, line)
		}
		if x < 0 {
			x = 0
		}
		y := ascent + int(float64(i)*step)
		d.Dot = fixed.P(x, y)
		d.DrawString(line)
	}
}

// blit copies the src rectangle onto dst at (dx, dy), clipping at the dst
// edges. Only ink is transferred so overlapping fields cannot erase each
// other's output.
func blit(dst *image.Gray, src *image.Gray, srcRect image.Rectangle, dx, dy int) {
	db := dst.Bounds()
	for y := srcRect.Min.Y; y < srcRect.Max.Y; y++ {
		ty := dy + y - srcRect.Min.Y
		if ty < db.Min.Y || ty >= db.Max.Y {
			continue
		}
		for x := srcRect.Min.X; x < srcRect.Max.X; x++ {
			tx := dx + x - srcRect.Min.X
			if tx < db.Min.X || tx >= db.Max.X {
				continue
			}
			if src.GrayAt(x, y).Y < inkThreshold {
				dst.SetGray(tx, ty, color.Gray{Y: 0})
			}
		}
	}
}

const hexDigits = "0123456789ABCDEF"

// packBitmap packs the given region into the TSPL BITMAP wire form: one bit
// per dot, eight dots per byte, set bits are blank and cleared bits print
// black, rows padded to whole bytes, hex encoded.
func packBitmap(img *image.Gray, r image.Rectangle) (widthBytes, height int, data string) {
	widthBytes = (r.Dx() + 7) / 8
	height = r.Dy()

	var sb strings.Builder
	sb.Grow(widthBytes * height * 2)

	for y := r.Min.Y; y < r.Max.Y; y++ {
		for bx := 0; bx < widthBytes; bx++ {
			var b byte
			for bit := 0; bit < 8; bit++ {
				x := r.Min.X + bx*8 + bit
				if x >= r.Max.X || img.GrayAt(x, y).Y >= inkThreshold {
					b |= 1 << (7 - bit)
				}
			}
			sb.WriteByte(hexDigits[b>>4])
			sb.WriteByte(hexDigits[b&0x0F])
		}
	}

	return widthBytes, height, sb.String()
}
