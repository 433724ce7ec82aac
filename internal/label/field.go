package label

import (
	"fmt"
	"strings"
	"time"

	"github.com/Vovanwotkd/labels-britannika/internal/dish"
)

const stampLayout = "02.01 15:04"

// ResolveContent turns a computed field kind into its final string for one
// dish. Missing data resolves to the empty string, never an error: a label
// with partial data still has to print.
//
// Units follow the food-safety label convention: weights in whole grams,
// macros to one decimal, calories whole.
func ResolveContent(f *FieldSpec, d *dish.DishData, t *Template, now time.Time) string {
	switch f.Kind {
	case FieldText:
		return f.Content

	case FieldDishName:
		if d == nil {
			return ""
		}
		return d.Name

	case FieldWeightCalories:
		if d == nil {
			return ""
		}
		var parts []string
		if w := d.Weight(); w > 0 {
			parts = append(parts, fmt.Sprintf("Вес: %.0fг", w))
		}
		if d.Calories != nil {
			parts = append(parts, fmt.Sprintf("%.0f ккал", *d.Calories))
		}
		return strings.Join(parts, " | ")

	case FieldNutrition:
		if d == nil {
			return ""
		}
		var parts []string
		if d.Protein != nil {
			parts = append(parts, fmt.Sprintf("Б:%.1fг", *d.Protein))
		}
		if d.Fat != nil {
			parts = append(parts, fmt.Sprintf("Ж:%.1fг", *d.Fat))
		}
		if d.Carbs != nil {
			parts = append(parts, fmt.Sprintf("У:%.1fг", *d.Carbs))
		}
		return strings.Join(parts, " ")

	case FieldComposition:
		if d == nil || len(d.Ingredients) == 0 {
			return ""
		}
		return "Состав: " + strings.Join(d.Ingredients, ", ")

	case FieldMadeAt:
		prefix := f.Label
		if prefix == "" {
			prefix = "Изготовлено:"
		}
		return prefix + " " + formatStamp(now, f.Format)

	case FieldBestBy:
		prefix := f.Label
		if prefix == "" {
			prefix = "Годен до:"
		}
		hours := f.Hours
		if hours == 0 {
			hours = t.ShelfLifeHours
		}
		return prefix + " " + formatStamp(now.Add(time.Duration(hours)*time.Hour), f.Format)
	}

	return ""
}

func formatStamp(ts time.Time, format string) string {
	switch format {
	case "date":
		return ts.Format("02.01.2006")
	case "time":
		return ts.Format("15:04")
	default:
		return ts.Format(stampLayout)
	}
}
