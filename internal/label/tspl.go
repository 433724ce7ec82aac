package label

import (
	"strings"
)

func mmToDots(mm float64, dpi int) int {
	return int(mm*float64(dpi)/25.4 + 0.5)
}

func GetDotsPerMM(dpi int) float64 {
	switch dpi {
	case 203:
		return 8.0
	case 300:
		return 12.0
	case 600:
		return 24.0
	default:
		return float64(dpi) / 25.4
	}
}

// escapeTSPL strips characters that would break a quoted TSPL argument.
// The command language has no escape sequence for double quotes, so they
// are replaced rather than escaped.
func escapeTSPL(s string) string {
	s = strings.ReplaceAll(s, `"`, "'")
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", "")
	return s
}
