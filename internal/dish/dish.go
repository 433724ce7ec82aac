package dish

// DishData is the enrichment-complete payload for one physical label.
// Ingredients is the flat list of base-ingredient names: semi-finished-good
// trees are already flattened by the export that builds the dishes database,
// the store only aggregates duplicate names. Immutable once handed to the
// renderer.
type DishData struct {
	RID               int64      `json:"rid,omitempty"`
	Name              string     `json:"name"`
	Code              string     `json:"code"`
	WeightG           float64    `json:"weight_g,omitempty"`
	CalculatedWeightG float64    `json:"calculated_weight_g,omitempty"`
	Protein           *float64   `json:"protein,omitempty"`
	Fat               *float64   `json:"fat,omitempty"`
	Carbs             *float64   `json:"carbs,omitempty"`
	Calories          *float64   `json:"calories,omitempty"`
	Ingredients       []string   `json:"ingredients,omitempty"`
	Extras            []DishData `json:"extras,omitempty"`
}

// Weight returns the declared weight, falling back to the weight calculated
// from the composition. Zero means unknown.
func (d *DishData) Weight() float64 {
	if d.WeightG > 0 {
		return d.WeightG
	}
	return d.CalculatedWeightG
}

// Ingredient is one row of a dish composition before aggregation.
type Ingredient struct {
	Name  string
	Yield float64
	Unit  string
}

// AggregateIngredients collapses duplicate ingredient names, summing their
// yields, and returns the names in first-seen order. Composition trees can
// mention the same base ingredient through several branches (onion in the
// dough and in the filling), but a label lists it once.
func AggregateIngredients(rows []Ingredient) []Ingredient {
	index := make(map[string]int, len(rows))
	var out []Ingredient
	for _, row := range rows {
		if row.Name == "" {
			continue
		}
		if i, ok := index[row.Name]; ok {
			out[i].Yield += row.Yield
			continue
		}
		index[row.Name] = len(out)
		out = append(out, row)
	}
	return out
}

func names(rows []Ingredient) []string {
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.Name)
	}
	return out
}
