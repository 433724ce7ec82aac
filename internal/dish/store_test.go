package dish

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixtureSchema = `
CREATE TABLE dishes (
	rid INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	rkeeper_code TEXT,
	protein REAL, fat REAL, carbs REAL, calories REAL,
	weight_g REAL, calculated_weight_g REAL,
	has_extra_labels INTEGER DEFAULT 0
);
CREATE TABLE ingredients (
	id INTEGER PRIMARY KEY,
	dish_rid INTEGER NOT NULL,
	name TEXT, yield_value REAL, unit TEXT
);
CREATE TABLE dish_extra_labels (
	id INTEGER PRIMARY KEY,
	main_dish_rid INTEGER NOT NULL,
	extra_dish_rid INTEGER NOT NULL,
	extra_dish_name TEXT NOT NULL,
	extra_dish_protein REAL, extra_dish_fat REAL,
	extra_dish_carbs REAL, extra_dish_calories REAL,
	extra_dish_weight_g REAL, extra_dish_calculated_weight_g REAL,
	sort_order INTEGER DEFAULT 0
);
CREATE TABLE extra_dish_ingredients (
	id INTEGER PRIMARY KEY,
	extra_dish_rid INTEGER NOT NULL,
	name TEXT, yield_value REAL, unit TEXT
);
`

func fixtureStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dishes.sqlite")

	conn, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Exec(fixtureSchema)
	require.NoError(t, err)

	_, err = conn.Exec(`
		INSERT INTO dishes (rid, name, rkeeper_code, protein, fat, carbs, calories, weight_g, calculated_weight_g, has_extra_labels)
		VALUES
			(100, 'Суп куриный', '1000001', 12.5, 8.0, 30.2, 245, 250, 248, 1),
			(200, 'Чай чёрный', '1000002', NULL, NULL, NULL, NULL, NULL, 200, 0);

		INSERT INTO ingredients (dish_rid, name, yield_value, unit) VALUES
			(100, 'курица', 80, 'г'),
			(100, 'лапша', 50, 'г'),
			(100, 'лук', 10, 'г'),
			(100, 'лук', 5, 'г');

		INSERT INTO dish_extra_labels (main_dish_rid, extra_dish_rid, extra_dish_name, extra_dish_weight_g, sort_order) VALUES
			(100, 301, 'Хлеб', 50, 1),
			(100, 302, 'Сметана', 30, 0);

		INSERT INTO extra_dish_ingredients (extra_dish_rid, name, yield_value, unit) VALUES
			(302, 'сметана', 30, 'г');
	`)
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	store, err := OpenStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestResolveDish(t *testing.T) {
	store := fixtureStore(t)

	d, err := store.Resolve(context.Background(), "1000001")
	require.NoError(t, err)

	assert.Equal(t, "Суп куриный", d.Name)
	assert.Equal(t, "1000001", d.Code)
	assert.Equal(t, 250.0, d.WeightG)
	require.NotNil(t, d.Protein)
	assert.Equal(t, 12.5, *d.Protein)

	// Duplicate ingredient names collapse, first-seen order kept.
	assert.Equal(t, []string{"курица", "лапша", "лук"}, d.Ingredients)
}

func TestResolveDishExtras(t *testing.T) {
	store := fixtureStore(t)

	d, err := store.Resolve(context.Background(), "1000001")
	require.NoError(t, err)

	require.Len(t, d.Extras, 2)
	// sort_order wins over insertion order.
	assert.Equal(t, "Сметана", d.Extras[0].Name)
	assert.Equal(t, "Хлеб", d.Extras[1].Name)

	// Extras reuse the main dish code for the barcode.
	assert.Equal(t, "1000001", d.Extras[0].Code)
	assert.Equal(t, []string{"сметана"}, d.Extras[0].Ingredients)
	assert.Empty(t, d.Extras[1].Ingredients)
}

func TestResolveDishWithoutMacros(t *testing.T) {
	store := fixtureStore(t)

	d, err := store.Resolve(context.Background(), "1000002")
	require.NoError(t, err)

	assert.Nil(t, d.Protein)
	assert.Nil(t, d.Calories)
	assert.Equal(t, 0.0, d.WeightG)
	assert.Equal(t, 200.0, d.CalculatedWeightG)
	assert.Equal(t, 200.0, d.Weight())
	assert.Empty(t, d.Extras)
}

func TestResolveUnknownDish(t *testing.T) {
	store := fixtureStore(t)

	_, err := store.Resolve(context.Background(), "404")
	assert.ErrorIs(t, err, ErrDishNotFound)
}
