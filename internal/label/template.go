package label

import (
	"encoding/json"
	"fmt"
)

// LabelKind distinguishes the primary dish label from the sub-labels printed
// for its extras (sauces, side items).
type LabelKind string

const (
	KindMain  LabelKind = "MAIN"
	KindExtra LabelKind = "EXTRA"
)

type FieldKind string

const (
	FieldText           FieldKind = "text"
	FieldDishName       FieldKind = "dish_name"
	FieldWeightCalories FieldKind = "weight_calories"
	FieldNutrition      FieldKind = "nutrition"
	FieldComposition    FieldKind = "composition"
	FieldMadeAt         FieldKind = "made_at"
	FieldBestBy         FieldKind = "best_by"
	FieldBarcode        FieldKind = "barcode"
	FieldLogo           FieldKind = "logo"
)

type Align string

const (
	AlignLeft   Align = "left"
	AlignCenter Align = "center"
	AlignRight  Align = "right"
)

// FieldSpec is one visual element of a template. Position and size are in
// millimeters; the renderer converts to dots at the template DPI. A single
// flat struct with a kind tag keeps templates directly JSON-editable.
type FieldSpec struct {
	Kind     FieldKind `json:"kind"`
	XMM      float64   `json:"x_mm"`
	YMM      float64   `json:"y_mm"`
	WidthMM  float64   `json:"width_mm"`
	HeightMM float64   `json:"height_mm"`
	Visible  *bool     `json:"visible,omitempty"`

	// FontSize is the glyph em height in printer dots.
	FontSize    float64 `json:"font_size,omitempty"`
	Bold        bool    `json:"bold,omitempty"`
	Align       Align   `json:"align,omitempty"`
	MaxLines    int     `json:"max_lines,omitempty"`
	LineSpacing float64 `json:"line_spacing,omitempty"`

	Content string `json:"content,omitempty"`

	Label  string `json:"label,omitempty"`
	Format string `json:"format,omitempty"`
	Hours  int    `json:"hours,omitempty"`

	Symbology  string  `json:"symbology,omitempty"`
	BarWidthMM float64 `json:"bar_width_mm,omitempty"`
	ShowText   bool    `json:"show_text,omitempty"`

	ImagePath string `json:"image_path,omitempty"`
}

func (f *FieldSpec) IsVisible() bool {
	return f.Visible == nil || *f.Visible
}

func (f *FieldSpec) fontSize() float64 {
	if f.FontSize > 0 {
		return f.FontSize
	}
	return 10
}

func (f *FieldSpec) lineSpacing() float64 {
	if f.LineSpacing > 0 {
		return f.LineSpacing
	}
	return 1.0
}

type Template struct {
	Name            string      `json:"name"`
	WidthMM         float64     `json:"width_mm"`
	HeightMM        float64     `json:"height_mm"`
	GapMM           float64     `json:"gap_mm"`
	DPI             int         `json:"dpi"`
	ShelfLifeHours  int         `json:"shelf_life_hours"`
	RasterWidthHint int         `json:"raster_width_hint,omitempty"`
	Fields          []FieldSpec `json:"fields"`
}

func ParseTemplate(jsonStr string) (*Template, error) {
	var t Template
	if err := json.Unmarshal([]byte(jsonStr), &t); err != nil {
		return nil, fmt.Errorf("failed to parse template JSON: %w", err)
	}
	if t.DPI == 0 {
		t.DPI = 203
	}
	if t.ShelfLifeHours == 0 {
		t.ShelfLifeHours = 6
	}
	return &t, nil
}

func (t *Template) dpi() int {
	if t.DPI == 0 {
		return 203
	}
	return t.DPI
}

type Warning struct {
	Field   int
	Message string
}

func (w Warning) String() string {
	if w.Field < 0 {
		return w.Message
	}
	return fmt.Sprintf("field %d: %s", w.Field, w.Message)
}

// Validate reports template-authoring problems. They are warnings, not
// errors: an overlapping or out-of-bounds field is a design-time issue and
// must not block printing. Only a zero-area label is rejected later by the
// compositor.
func (t *Template) Validate() []Warning {
	var warnings []Warning

	if t.WidthMM <= 0 || t.HeightMM <= 0 {
		warnings = append(warnings, Warning{Field: -1,
			Message: fmt.Sprintf("label has zero or negative area: %.1fx%.1f mm", t.WidthMM, t.HeightMM)})
	}
	if t.GapMM < 0 {
		warnings = append(warnings, Warning{Field: -1, Message: "negative gap"})
	}

	for i := range t.Fields {
		f := &t.Fields[i]

		switch f.Kind {
		case FieldText, FieldDishName, FieldWeightCalories, FieldNutrition,
			FieldComposition, FieldMadeAt, FieldBestBy, FieldBarcode, FieldLogo:
		default:
			warnings = append(warnings, Warning{Field: i, Message: fmt.Sprintf("unknown kind %q", f.Kind)})
			continue
		}

		if f.XMM < 0 || f.YMM < 0 {
			warnings = append(warnings, Warning{Field: i, Message: "negative position"})
		}
		if f.WidthMM < 0 || f.HeightMM < 0 {
			warnings = append(warnings, Warning{Field: i, Message: "negative size"})
		}
		if f.XMM+f.WidthMM > t.WidthMM || f.YMM+f.HeightMM > t.HeightMM {
			warnings = append(warnings, Warning{Field: i, Message: "extends past label bounds"})
		}
		if f.Kind == FieldBarcode && f.BarWidthMM < 0 {
			warnings = append(warnings, Warning{Field: i, Message: "negative bar width"})
		}

		for j := 0; j < i; j++ {
			g := &t.Fields[j]
			if !f.IsVisible() || !g.IsVisible() {
				continue
			}
			if rectsOverlap(f, g) {
				warnings = append(warnings, Warning{Field: i, Message: fmt.Sprintf("overlaps field %d", j)})
			}
		}
	}

	return warnings
}

func rectsOverlap(a, b *FieldSpec) bool {
	if a.WidthMM <= 0 || a.HeightMM <= 0 || b.WidthMM <= 0 || b.HeightMM <= 0 {
		return false
	}
	return a.XMM < b.XMM+b.WidthMM && b.XMM < a.XMM+a.WidthMM &&
		a.YMM < b.YMM+b.HeightMM && b.YMM < a.YMM+a.HeightMM
}

// DefaultTemplate is the 58x60 mm britannika layout: title, weight/calories,
// nutrition, composition, production/expiry stamps and a CODE128 barcode of
// the dish code.
func DefaultTemplate() *Template {
	return &Template{
		Name:           "britannika-default",
		WidthMM:        58,
		HeightMM:       60,
		GapMM:          2,
		DPI:            203,
		ShelfLifeHours: 6,
		Fields: []FieldSpec{
			{Kind: FieldDishName, XMM: 2, YMM: 2, WidthMM: 54, HeightMM: 10, FontSize: 18, Bold: true, MaxLines: 2},
			{Kind: FieldWeightCalories, XMM: 2, YMM: 13, WidthMM: 54, HeightMM: 5, FontSize: 12},
			{Kind: FieldNutrition, XMM: 2, YMM: 18, WidthMM: 54, HeightMM: 5, FontSize: 12},
			{Kind: FieldComposition, XMM: 2, YMM: 24, WidthMM: 54, HeightMM: 12, FontSize: 10, MaxLines: 3},
			{Kind: FieldMadeAt, XMM: 2, YMM: 37, WidthMM: 54, HeightMM: 4, FontSize: 10},
			{Kind: FieldBestBy, XMM: 2, YMM: 41, WidthMM: 54, HeightMM: 4, FontSize: 10, Bold: true},
			{Kind: FieldBarcode, XMM: 4, YMM: 46, WidthMM: 50, HeightMM: 12, Symbology: "128", BarWidthMM: 0.25},
		},
	}
}
