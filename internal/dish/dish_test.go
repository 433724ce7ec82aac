package dish

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWeightFallback(t *testing.T) {
	tests := []struct {
		name string
		d    DishData
		want float64
	}{
		{"declared wins", DishData{WeightG: 250, CalculatedWeightG: 240}, 250},
		{"falls back to calculated", DishData{CalculatedWeightG: 240}, 240},
		{"both unknown", DishData{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.d.Weight())
		})
	}
}

func TestAggregateIngredients(t *testing.T) {
	rows := []Ingredient{
		{Name: "лук", Yield: 10},
		{Name: "мука", Yield: 100},
		{Name: "лук", Yield: 5},
		{Name: "соль", Yield: 2},
		{Name: "", Yield: 3},
		{Name: "мука", Yield: 20},
	}

	got := AggregateIngredients(rows)

	assert.Equal(t, []string{"лук", "мука", "соль"}, names(got))
	assert.Equal(t, 15.0, got[0].Yield)
	assert.Equal(t, 120.0, got[1].Yield)
	assert.Equal(t, 2.0, got[2].Yield)
}

func TestAggregateIngredientsEmpty(t *testing.T) {
	assert.Empty(t, AggregateIngredients(nil))
}
