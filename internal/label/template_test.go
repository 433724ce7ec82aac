package label

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTemplateDefaults(t *testing.T) {
	tpl, err := ParseTemplate(`{"name":"minimal","width_mm":58,"height_mm":60,"fields":[]}`)
	require.NoError(t, err)

	assert.Equal(t, 203, tpl.DPI)
	assert.Equal(t, 6, tpl.ShelfLifeHours)
	assert.Equal(t, 58.0, tpl.WidthMM)
}

func TestParseTemplateInvalidJSON(t *testing.T) {
	_, err := ParseTemplate(`{"width_mm":`)
	assert.Error(t, err)
}

func TestValidateWarnings(t *testing.T) {
	tests := []struct {
		name     string
		template Template
		want     []string
	}{
		{
			name:     "zero area",
			template: Template{WidthMM: 0, HeightMM: 60},
			want:     []string{"zero or negative area"},
		},
		{
			name: "field out of bounds",
			template: Template{WidthMM: 58, HeightMM: 60, Fields: []FieldSpec{
				{Kind: FieldText, XMM: 50, YMM: 2, WidthMM: 20, HeightMM: 5, Content: "x"},
			}},
			want: []string{"extends past label bounds"},
		},
		{
			name: "unknown kind",
			template: Template{WidthMM: 58, HeightMM: 60, Fields: []FieldSpec{
				{Kind: "hologram", XMM: 2, YMM: 2, WidthMM: 10, HeightMM: 5},
			}},
			want: []string{"unknown kind"},
		},
		{
			name: "overlapping fields",
			template: Template{WidthMM: 58, HeightMM: 60, Fields: []FieldSpec{
				{Kind: FieldText, XMM: 2, YMM: 2, WidthMM: 20, HeightMM: 10},
				{Kind: FieldDishName, XMM: 10, YMM: 5, WidthMM: 20, HeightMM: 10},
			}},
			want: []string{"overlaps field 0"},
		},
		{
			name: "hidden field does not overlap",
			template: Template{WidthMM: 58, HeightMM: 60, Fields: []FieldSpec{
				{Kind: FieldText, XMM: 2, YMM: 2, WidthMM: 20, HeightMM: 10, Visible: boolPtr(false)},
				{Kind: FieldDishName, XMM: 10, YMM: 5, WidthMM: 20, HeightMM: 10},
			}},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			warnings := tt.template.Validate()
			require.Len(t, warnings, len(tt.want))
			for i, substr := range tt.want {
				assert.Contains(t, warnings[i].String(), substr)
			}
		})
	}
}

func TestDefaultTemplateIsClean(t *testing.T) {
	tpl := DefaultTemplate()
	assert.Empty(t, tpl.Validate())
	assert.Equal(t, 58.0, tpl.WidthMM)
	assert.Equal(t, 60.0, tpl.HeightMM)
}

func boolPtr(b bool) *bool {
	return &b
}
