package label

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Vovanwotkd/labels-britannika/internal/dish"
)

func TestResolveContent(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 30, 0, 0, time.UTC)
	tpl := &Template{ShelfLifeHours: 6}

	protein := 12.5
	fat := 8.0
	carbs := 30.2
	calories := 245.0

	full := &dish.DishData{
		Name:        "Суп куриный",
		Code:        "1000001",
		WeightG:     250,
		Protein:     &protein,
		Fat:         &fat,
		Carbs:       &carbs,
		Calories:    &calories,
		Ingredients: []string{"курица", "лапша", "морковь"},
	}

	tests := []struct {
		name  string
		field FieldSpec
		dish  *dish.DishData
		want  string
	}{
		{
			name:  "static text",
			field: FieldSpec{Kind: FieldText, Content: "ООО Британника"},
			dish:  full,
			want:  "ООО Британника",
		},
		{
			name:  "dish name",
			field: FieldSpec{Kind: FieldDishName},
			dish:  full,
			want:  "Суп куриный",
		},
		{
			name:  "weight and calories",
			field: FieldSpec{Kind: FieldWeightCalories},
			dish:  full,
			want:  "Вес: 250г | 245 ккал",
		},
		{
			name:  "weight without calories",
			field: FieldSpec{Kind: FieldWeightCalories},
			dish:  &dish.DishData{Name: "x", WeightG: 100},
			want:  "Вес: 100г",
		},
		{
			name:  "nutrition line",
			field: FieldSpec{Kind: FieldNutrition},
			dish:  full,
			want:  "Б:12.5г Ж:8.0г У:30.2г",
		},
		{
			name:  "nutrition with missing macros",
			field: FieldSpec{Kind: FieldNutrition},
			dish:  &dish.DishData{Name: "x", Protein: &protein},
			want:  "Б:12.5г",
		},
		{
			name:  "composition",
			field: FieldSpec{Kind: FieldComposition},
			dish:  full,
			want:  "Состав: курица, лапша, морковь",
		},
		{
			name:  "composition empty",
			field: FieldSpec{Kind: FieldComposition},
			dish:  &dish.DishData{Name: "x"},
			want:  "",
		},
		{
			name:  "made at default prefix",
			field: FieldSpec{Kind: FieldMadeAt},
			dish:  full,
			want:  "Изготовлено: 14.03 12:30",
		},
		{
			name:  "best by uses template shelf life",
			field: FieldSpec{Kind: FieldBestBy},
			dish:  full,
			want:  "Годен до: 14.03 18:30",
		},
		{
			name:  "best by with field hours override",
			field: FieldSpec{Kind: FieldBestBy, Hours: 48},
			dish:  full,
			want:  "Годен до: 16.03 12:30",
		},
		{
			name:  "best by custom prefix and date format",
			field: FieldSpec{Kind: FieldBestBy, Label: "Употребить до:", Format: "date"},
			dish:  full,
			want:  "Употребить до: 14.03.2026",
		},
		{
			name:  "nil dish resolves empty",
			field: FieldSpec{Kind: FieldDishName},
			dish:  nil,
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveContent(&tt.field, tt.dish, tpl, now)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveContentDeterministic(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 30, 0, 0, time.UTC)
	f := FieldSpec{Kind: FieldMadeAt}

	first := ResolveContent(&f, nil, &Template{}, now)
	second := ResolveContent(&f, nil, &Template{}, now)
	assert.Equal(t, first, second)
}
