package label

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	"image/png"
	"log"
	"os"
	"strings"
	"time"

	bcode "github.com/boombuler/barcode"

	"github.com/Vovanwotkd/labels-britannika/internal/dish"
)

var (
	// ErrZeroAreaTemplate is returned when a template's physical dimensions
	// resolve to zero printable dots.
	ErrZeroAreaTemplate = errors.New("template has zero printable area")

	// ErrPayloadTooLarge is returned when the encoded command stream exceeds
	// the configured size cap even after per-field cropping.
	ErrPayloadTooLarge = errors.New("label payload exceeds size cap")
)

// Encoding selects the wire form of a composed label. The transport in use
// decides which one it needs.
type Encoding string

const (
	EncodingTSPL Encoding = "tspl"
	EncodingPNG  Encoding = "png"
)

const (
	defaultBarNarrowDots  = 2
	defaultBarHeightDots  = 80
	defaultPayloadCap     = 5 * 1024
	defaultRasterWidthPad = 4
)

// Compositor renders a template plus dish data into a printer-ready payload.
// The zero value uses the default payload cap and no raster width hint.
type Compositor struct {
	// PayloadCapBytes caps the TSPL command stream size. Zero means the
	// default 5 KB cap; negative disables the check.
	PayloadCapBytes int

	// RasterWidthHint bounds the PNG crop width in dots when the template
	// does not carry its own hint. Zero means no bound.
	RasterWidthHint int
}

// bitmapBlock is one cropped monochrome region destined for a BITMAP command.
// Coordinates are canvas dots, already offset by the crop.
type bitmapBlock struct {
	img  *image.Gray
	rect image.Rectangle
	x, y int
}

// barcodeCmd is a BARCODE command the printer renders itself on the TSPL
// path. The same symbol is rasterized onto the canvas for the PNG path.
type barcodeCmd struct {
	x, y       int
	symbology  string
	heightDots int
	narrowDots int
	showText   bool
	payload    string
}

type renderOp struct {
	block *bitmapBlock
	bar   *barcodeCmd
}

// Composition holds the rendered canvas and the command stream parts for one
// label. It is produced once and can be encoded in either wire form.
type Composition struct {
	Kind LabelKind

	tpl       *Template
	canvas    *image.Gray
	ops       []renderOp
	capBytes  int
	widthHint int
}

// Compose renders every visible field of the template in declaration order.
// Fields whose content cannot be resolved are skipped; only a structurally
// unusable template or an invalid barcode payload aborts composition.
func (c *Compositor) Compose(t *Template, d *dish.DishData, kind LabelKind, now time.Time) (*Composition, error) {
	dpi := t.dpi()
	wDots := mmToDots(t.WidthMM, dpi)
	hDots := mmToDots(t.HeightMM, dpi)
	if wDots <= 0 || hDots <= 0 {
		return nil, fmt.Errorf("%w: %gx%g mm", ErrZeroAreaTemplate, t.WidthMM, t.HeightMM)
	}

	capBytes := c.PayloadCapBytes
	if capBytes == 0 {
		capBytes = defaultPayloadCap
	}
	widthHint := t.RasterWidthHint
	if widthHint == 0 {
		widthHint = c.RasterWidthHint
	}

	comp := &Composition{
		Kind:      kind,
		tpl:       t,
		canvas:    newCanvas(wDots, hDots),
		capBytes:  capBytes,
		widthHint: widthHint,
	}

	for i := range t.Fields {
		f := &t.Fields[i]
		if !f.IsVisible() {
			continue
		}
		var err error
		switch f.Kind {
		case FieldBarcode:
			err = comp.renderBarcode(f, d, dpi)
		case FieldLogo:
			comp.renderLogo(f, dpi)
		default:
			err = comp.renderText(f, d, now, dpi)
		}
		if err != nil {
			return nil, err
		}
	}

	return comp, nil
}

func (cp *Composition) renderText(f *FieldSpec, d *dish.DishData, now time.Time, dpi int) error {
	content := ResolveContent(f, d, cp.tpl, now)
	if content == "" {
		return nil
	}

	face, err := Face(f.fontSize(), f.Bold)
	if err != nil {
		return fmt.Errorf("failed to load font for field %q: %w", f.Kind, err)
	}

	xDots := mmToDots(f.XMM, dpi)
	yDots := mmToDots(f.YMM, dpi)
	wDots := mmToDots(f.WidthMM, dpi)
	if wDots <= 0 {
		wDots = cp.canvas.Bounds().Dx() - xDots
	}
	if wDots <= 0 {
		return nil
	}

	lines := WrapToLines(content, face, wDots, f.MaxLines)
	if len(lines) == 0 {
		return nil
	}

	hDots := mmToDots(f.HeightMM, dpi)
	step := float64(lineHeight(face)) * f.lineSpacing()
	needed := int(float64(len(lines)-1)*step) + lineHeight(face)
	if hDots <= 0 || hDots > needed {
		hDots = needed
	}

	fieldImg := newCanvas(wDots, hDots)
	drawLines(fieldImg, face, lines, f.Align, wDots, f.lineSpacing())

	rect, ok := contentBounds(fieldImg)
	if !ok {
		return nil
	}

	blit(cp.canvas, fieldImg, rect, xDots+rect.Min.X, yDots+rect.Min.Y)
	cp.ops = append(cp.ops, renderOp{block: &bitmapBlock{
		img:  fieldImg,
		rect: rect,
		x:    xDots + rect.Min.X,
		y:    yDots + rect.Min.Y,
	}})
	return nil
}

func (cp *Composition) renderBarcode(f *FieldSpec, d *dish.DishData, dpi int) error {
	payload := ""
	if d != nil {
		payload = d.Code
	}
	if payload == "" {
		log.Printf("[compositor] barcode field skipped: dish has no code")
		return nil
	}

	code, err := EncodeBarcode(f.Symbology, payload)
	if err != nil {
		return err
	}

	narrow := int(f.BarWidthMM * GetDotsPerMM(dpi))
	if narrow < 1 {
		narrow = defaultBarNarrowDots
	}
	heightDots := mmToDots(f.HeightMM, dpi)
	if heightDots <= 0 {
		heightDots = defaultBarHeightDots
	}

	widthDots := code.Bounds().Dx() * narrow
	scaled, err := bcode.Scale(code, widthDots, heightDots)
	if err != nil {
		return &EncodingError{Symbology: f.Symbology, Payload: payload, Reason: err.Error()}
	}

	xDots := mmToDots(f.XMM, dpi)
	yDots := mmToDots(f.YMM, dpi)
	drawImage(cp.canvas, scaled, xDots, yDots)

	cp.ops = append(cp.ops, renderOp{bar: &barcodeCmd{
		x:          xDots,
		y:          yDots,
		symbology:  tsplSymbology(f.Symbology),
		heightDots: heightDots,
		narrowDots: narrow,
		showText:   f.ShowText,
		payload:    payload,
	}})
	return nil
}

func (cp *Composition) renderLogo(f *FieldSpec, dpi int) {
	if f.ImagePath == "" {
		return
	}
	file, err := os.Open(f.ImagePath)
	if err != nil {
		log.Printf("[compositor] logo field skipped: %v", err)
		return
	}
	defer file.Close()

	src, _, err := image.Decode(file)
	if err != nil {
		log.Printf("[compositor] logo field skipped: failed to decode %s: %v", f.ImagePath, err)
		return
	}

	xDots := mmToDots(f.XMM, dpi)
	yDots := mmToDots(f.YMM, dpi)

	gray := toGray(src)
	drawImage(cp.canvas, gray, xDots, yDots)

	rect, ok := contentBounds(gray)
	if !ok {
		return
	}
	cp.ops = append(cp.ops, renderOp{block: &bitmapBlock{
		img:  gray,
		rect: rect,
		x:    xDots + rect.Min.X,
		y:    yDots + rect.Min.Y,
	}})
}

// Encode emits the composition in the requested wire form.
func (cp *Composition) Encode(enc Encoding) ([]byte, error) {
	switch enc {
	case EncodingPNG:
		return cp.EncodePNG()
	case EncodingTSPL, "":
		return cp.EncodeTSPL()
	default:
		return nil, fmt.Errorf("unknown payload encoding %q", enc)
	}
}

// EncodeTSPL builds the command stream for raw socket delivery. Text and
// logo fields travel as tightly cropped BITMAP blocks so Cyrillic output
// does not depend on printer codepages; barcodes travel as BARCODE commands
// the printer renders itself.
func (cp *Composition) EncodeTSPL() ([]byte, error) {
	var sb strings.Builder

	fmt.Fprintf(&sb, "SIZE %s mm, %s mm\r\n", formatMM(cp.tpl.WidthMM), formatMM(cp.tpl.HeightMM))
	fmt.Fprintf(&sb, "GAP %s mm, 0 mm\r\n", formatMM(cp.tpl.GapMM))
	sb.WriteString("DIRECTION 1\r\n")
	sb.WriteString("CLS\r\n")

	for _, op := range cp.ops {
		switch {
		case op.block != nil:
			b := op.block
			widthBytes, height, data := packBitmap(b.img, b.rect)
			fmt.Fprintf(&sb, "BITMAP %d,%d,%d,%d,0,%s\r\n", b.x, b.y, widthBytes, height, data)
		case op.bar != nil:
			b := op.bar
			fmt.Fprintf(&sb, "BARCODE %d,%d,\"%s\",%d,%s,0,%d,%d,\"%s\"\r\n",
				b.x, b.y, b.symbology, b.heightDots,
				boolDigit(b.showText), b.narrowDots, b.narrowDots*2,
				escapeTSPL(b.payload))
		}
	}

	sb.WriteString("PRINT 1\r\n")

	out := []byte(sb.String())
	if cp.capBytes > 0 && len(out) > cp.capBytes {
		return nil, fmt.Errorf("%w: %d bytes, cap %d", ErrPayloadTooLarge, len(out), cp.capBytes)
	}
	return out, nil
}

// EncodePNG rasterizes the full canvas for spooler delivery. The canvas is
// cropped at the bottom and right edges only, so field positions stay valid,
// and the crop width is bounded by the raster width hint when one is set.
func (cp *Composition) EncodePNG() ([]byte, error) {
	img := cp.canvas
	if rect, ok := contentBounds(img); ok {
		maxX := rect.Max.X + defaultRasterWidthPad
		maxY := rect.Max.Y + defaultRasterWidthPad
		if cp.widthHint > 0 && maxX > cp.widthHint {
			maxX = cp.widthHint
		}
		bounds := img.Bounds()
		if maxX > bounds.Max.X {
			maxX = bounds.Max.X
		}
		if maxY > bounds.Max.Y {
			maxY = bounds.Max.Y
		}
		img = img.SubImage(image.Rect(0, 0, maxX, maxY)).(*image.Gray)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode label raster: %w", err)
	}
	return buf.Bytes(), nil
}

// tsplSymbology maps a template symbology name to the TSPL code type token.
// The mapping is shared with EncodeBarcode via normalizeSymbology.
func tsplSymbology(symbology string) string {
	norm, ok := normalizeSymbology(symbology)
	if !ok {
		return "128"
	}
	return norm
}

func boolDigit(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// formatMM prints a millimeter value without a trailing fraction when whole.
func formatMM(v float64) string {
	if v == float64(int(v)) {
		return fmt.Sprintf("%d", int(v))
	}
	return fmt.Sprintf("%.1f", v)
}

func toGray(src image.Image) *image.Gray {
	if g, ok := src.(*image.Gray); ok {
		return g
	}
	b := src.Bounds()
	g := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			g.Set(x-b.Min.X, y-b.Min.Y, color.GrayModel.Convert(src.At(x, y)))
		}
	}
	return g
}

// drawImage transfers the ink of src onto dst at (dx, dy) through the
// monochrome threshold.
func drawImage(dst *image.Gray, src image.Image, dx, dy int) {
	gray := toGray(src)
	blit(dst, gray, gray.Bounds(), dx, dy)
}
