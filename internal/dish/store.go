package dish

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

var ErrDishNotFound = errors.New("dish not found")

// Resolver is the dish-data collaborator boundary: code in, complete label
// payload out.
type Resolver interface {
	Resolve(ctx context.Context, code string) (*DishData, error)
}

// Store reads the dishes_with_extras database produced by the StoreHouse
// export. The database is read-only from this process.
type Store struct {
	db *sql.DB
}

func OpenStore(path string) (*Store, error) {
	conn, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?mode=ro", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open dishes database: %w", err)
	}
	conn.SetMaxOpenConns(1)
	return &Store{db: conn}, nil
}

func NewStore(conn *sql.DB) *Store {
	return &Store{db: conn}
}

func (s *Store) Close() error {
	return s.db.Close()
}

const (
	getDishByCode = `
		SELECT rid, name, rkeeper_code, protein, fat, carbs, calories, weight_g, calculated_weight_g, has_extra_labels
		FROM dishes WHERE rkeeper_code = ?
	`

	getDishIngredients = `
		SELECT name, yield_value, unit FROM ingredients
		WHERE dish_rid = ? ORDER BY id ASC
	`

	getExtraLabels = `
		SELECT extra_dish_rid, extra_dish_name, extra_dish_protein, extra_dish_fat,
		       extra_dish_carbs, extra_dish_calories, extra_dish_weight_g, extra_dish_calculated_weight_g
		FROM dish_extra_labels WHERE main_dish_rid = ? ORDER BY sort_order ASC, id ASC
	`

	getExtraIngredients = `
		SELECT name, yield_value, unit FROM extra_dish_ingredients
		WHERE extra_dish_rid = ? ORDER BY id ASC
	`
)

// Resolve loads one dish by its register code, with duplicate ingredient
// names aggregated and extras attached in their configured order. Extras
// reuse the main dish code as barcode payload since they rarely carry one
// of their own.
func (s *Store) Resolve(ctx context.Context, code string) (*DishData, error) {
	d := &DishData{}
	var rkCode sql.NullString
	var protein, fat, carbs, calories, weight, calcWeight sql.NullFloat64
	var hasExtras int

	err := s.db.QueryRowContext(ctx, getDishByCode, code).Scan(
		&d.RID, &d.Name, &rkCode, &protein, &fat, &carbs, &calories,
		&weight, &calcWeight, &hasExtras,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: code %s", ErrDishNotFound, code)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query dish %s: %w", code, err)
	}

	d.Code = rkCode.String
	if d.Code == "" {
		d.Code = code
	}
	d.Protein = nullToPtr(protein)
	d.Fat = nullToPtr(fat)
	d.Carbs = nullToPtr(carbs)
	d.Calories = nullToPtr(calories)
	d.WeightG = weight.Float64
	d.CalculatedWeightG = calcWeight.Float64

	rows, err := s.queryIngredients(ctx, getDishIngredients, d.RID)
	if err != nil {
		return nil, err
	}
	d.Ingredients = names(AggregateIngredients(rows))

	if hasExtras != 0 {
		extras, err := s.loadExtras(ctx, d.RID, d.Code)
		if err != nil {
			return nil, err
		}
		d.Extras = extras
	}

	return d, nil
}

func (s *Store) loadExtras(ctx context.Context, mainRID int64, mainCode string) ([]DishData, error) {
	rows, err := s.db.QueryContext(ctx, getExtraLabels, mainRID)
	if err != nil {
		return nil, fmt.Errorf("failed to query extra labels: %w", err)
	}
	defer rows.Close()

	var extras []DishData
	for rows.Next() {
		var e DishData
		var protein, fat, carbs, calories, weight, calcWeight sql.NullFloat64
		if err := rows.Scan(&e.RID, &e.Name, &protein, &fat, &carbs, &calories, &weight, &calcWeight); err != nil {
			return nil, fmt.Errorf("failed to scan extra label: %w", err)
		}
		e.Code = mainCode
		e.Protein = nullToPtr(protein)
		e.Fat = nullToPtr(fat)
		e.Carbs = nullToPtr(carbs)
		e.Calories = nullToPtr(calories)
		e.WeightG = weight.Float64
		e.CalculatedWeightG = calcWeight.Float64
		extras = append(extras, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate extra labels: %w", err)
	}

	for i := range extras {
		ing, err := s.queryIngredients(ctx, getExtraIngredients, extras[i].RID)
		if err != nil {
			return nil, err
		}
		extras[i].Ingredients = names(AggregateIngredients(ing))
	}

	return extras, nil
}

func (s *Store) queryIngredients(ctx context.Context, query string, rid int64) ([]Ingredient, error) {
	rows, err := s.db.QueryContext(ctx, query, rid)
	if err != nil {
		return nil, fmt.Errorf("failed to query ingredients: %w", err)
	}
	defer rows.Close()

	var out []Ingredient
	for rows.Next() {
		var ing Ingredient
		var yieldVal sql.NullFloat64
		var unit sql.NullString
		if err := rows.Scan(&ing.Name, &yieldVal, &unit); err != nil {
			return nil, fmt.Errorf("failed to scan ingredient: %w", err)
		}
		ing.Yield = yieldVal.Float64
		ing.Unit = unit.String
		out = append(out, ing)
	}
	return out, rows.Err()
}

func nullToPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
