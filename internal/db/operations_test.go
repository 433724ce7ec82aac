package db

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := Open(Config{Path: filepath.Join(t.TempDir(), "labels.db")})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labels.db")

	first, err := Open(Config{Path: path})
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := Open(Config{Path: path})
	require.NoError(t, err)
	defer second.Close()

	var n int
	require.NoError(t, second.QueryRow("SELECT COUNT(*) FROM print_jobs").Scan(&n))
	assert.Equal(t, 0, n)
}

func TestTemplateStoreCRUD(t *testing.T) {
	ctx := context.Background()
	store := NewTemplateStore(openTestDB(t))

	tpl := &LabelTemplate{
		Name:       "58x60",
		SchemaJSON: `{"width_mm":58,"height_mm":60,"fields":[]}`,
		WidthMM:    58,
		HeightMM:   60,
		IsDefault:  true,
	}
	require.NoError(t, store.Create(ctx, tpl))
	require.NotZero(t, tpl.ID)

	got, err := store.GetByID(ctx, tpl.ID)
	require.NoError(t, err)
	assert.Equal(t, "58x60", got.Name)
	assert.Equal(t, 58.0, got.WidthMM)

	def, err := store.GetDefault(ctx)
	require.NoError(t, err)
	assert.Equal(t, tpl.ID, def.ID)

	got.Name = "58x60 v2"
	require.NoError(t, store.Update(ctx, got))

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "58x60 v2", list[0].Name)

	require.NoError(t, store.Delete(ctx, tpl.ID))
	_, err = store.GetByID(ctx, tpl.ID)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestWebhookStoreCRUD(t *testing.T) {
	ctx := context.Background()
	store := NewWebhookStore(openTestDB(t))

	w := &Webhook{
		Name:       "board",
		URL:        "http://board.local/hook",
		Secret:     "s3cret",
		EventsJSON: `["job_printed","job_failed"]`,
		Enabled:    true,
	}
	require.NoError(t, store.Create(ctx, w))
	require.NotZero(t, w.ID)

	got, err := store.GetByID(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, "board", got.Name)
	assert.True(t, got.Enabled)

	got.Enabled = false
	require.NoError(t, store.Update(ctx, got))

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.False(t, list[0].Enabled)

	require.NoError(t, store.Delete(ctx, w.ID))
	assert.ErrorIs(t, store.Delete(ctx, w.ID), sql.ErrNoRows)
}

func TestSettingsStoreUpsert(t *testing.T) {
	ctx := context.Background()
	store := NewSettingsStore(openTestDB(t))

	_, err := store.Get(ctx, "archive_days")
	assert.ErrorIs(t, err, sql.ErrNoRows)

	require.NoError(t, store.Set(ctx, "archive_days", "14", false))

	got, err := store.Get(ctx, "archive_days")
	require.NoError(t, err)
	assert.Equal(t, "14", got.Value)

	require.NoError(t, store.Set(ctx, "archive_days", "30", false))
	got, err = store.Get(ctx, "archive_days")
	require.NoError(t, err)
	assert.Equal(t, "30", got.Value)
}
