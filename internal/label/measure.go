package label

import (
	"fmt"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// The Go fonts cover Latin, Greek and Cyrillic, which is exactly the glyph
// set the kitchen labels need. Faces are cached per (size, weight).

var (
	fontOnce    sync.Once
	fontRegular *opentype.Font
	fontBold    *opentype.Font
	fontErr     error

	faceMu    sync.Mutex
	faceCache = make(map[faceKey]font.Face)
)

type faceKey struct {
	size float64
	bold bool
}

func loadFonts() {
	fontRegular, fontErr = opentype.Parse(goregular.TTF)
	if fontErr != nil {
		fontErr = fmt.Errorf("failed to parse regular font: %w", fontErr)
		return
	}
	fontBold, fontErr = opentype.Parse(gobold.TTF)
	if fontErr != nil {
		fontErr = fmt.Errorf("failed to parse bold font: %w", fontErr)
	}
}

// Face returns a cached font face whose em height is sizeDots printer dots.
// Sizing in dots rather than points keeps bitmap payloads small: a 203 dpi
// head makes a 12 pt face three times the area of the 12 dot one, and the
// whole glyph raster travels to the printer inside the BITMAP command.
func Face(sizeDots float64, bold bool) (font.Face, error) {
	fontOnce.Do(loadFonts)
	if fontErr != nil {
		return nil, fontErr
	}

	key := faceKey{size: sizeDots, bold: bold}

	faceMu.Lock()
	defer faceMu.Unlock()

	if face, ok := faceCache[key]; ok {
		return face, nil
	}

	src := fontRegular
	if bold {
		src = fontBold
	}
	face, err := opentype.NewFace(src, &opentype.FaceOptions{
		Size:    sizeDots,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create font face: %w", err)
	}
	faceCache[key] = face
	return face, nil
}

func textWidth(face font.Face, s string) int {
	return font.MeasureString(face, s).Ceil()
}

func lineHeight(face font.Face) int {
	return face.Metrics().Height.Ceil()
}

// MeasureText wraps s greedily against maxWidthPx and returns the resulting
// lines plus total height in pixels. It touches no canvas and no shared
// state beyond the immutable face cache, so identical inputs always produce
// identical output.
func MeasureText(s string, face font.Face, maxWidthPx int) ([]string, int) {
	lines := wrapText(s, face, maxWidthPx)
	return lines, len(lines) * lineHeight(face)
}

func wrapText(s string, face font.Face, maxWidthPx int) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if maxWidthPx <= 0 {
		return []string{s}
	}

	var lines []string
	var current string

	for _, word := range strings.Fields(s) {
		candidate := word
		if current != "" {
			candidate = current + " " + word
		}
		if textWidth(face, candidate) <= maxWidthPx {
			current = candidate
			continue
		}
		if current != "" {
			lines = append(lines, current)
			current = ""
		}
		// A single word wider than the field is hard-split.
		for textWidth(face, word) > maxWidthPx {
			cut := splitPoint(word, face, maxWidthPx)
			lines = append(lines, word[:cut])
			word = word[cut:]
		}
		current = word
	}
	if current != "" {
		lines = append(lines, current)
	}
	return lines
}

func splitPoint(word string, face font.Face, maxWidthPx int) int {
	runes := []rune(word)
	cut := len(string(runes[:1]))
	for i := 2; i <= len(runes); i++ {
		n := len(string(runes[:i]))
		if textWidth(face, word[:n]) > maxWidthPx {
			break
		}
		cut = n
	}
	return cut
}

const ellipsis = "..."

// WrapToLines wraps like MeasureText but truncates to maxLines, replacing
// the tail of the last kept line with an ellipsis marker. maxLines <= 0
// means unlimited.
func WrapToLines(s string, face font.Face, maxWidthPx, maxLines int) []string {
	lines := wrapText(s, face, maxWidthPx)
	if maxLines <= 0 || len(lines) <= maxLines {
		return lines
	}

	kept := lines[:maxLines]
	last := kept[maxLines-1]
	for last != "" && textWidth(face, last+ellipsis) > maxWidthPx {
		runes := []rune(last)
		last = strings.TrimRight(string(runes[:len(runes)-1]), " ")
	}
	kept[maxLines-1] = last + ellipsis
	return kept
}
