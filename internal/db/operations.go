package db

import (
	"context"
	"database/sql"
	"fmt"
)

type TemplateStore struct {
	db *sql.DB
}

func NewTemplateStore(conn *sql.DB) *TemplateStore {
	return &TemplateStore{db: conn}
}

func (s *TemplateStore) Create(ctx context.Context, t *LabelTemplate) error {
	result, err := s.db.ExecContext(ctx, InsertTemplate,
		t.Name, t.BrandID, t.IsDefault, t.SchemaJSON, t.WidthMM, t.HeightMM)
	if err != nil {
		return fmt.Errorf("failed to create template: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get template id: %w", err)
	}
	t.ID = id

	if t.IsDefault {
		if _, err := s.db.ExecContext(ctx, ClearDefaultTemplate, id); err != nil {
			return fmt.Errorf("failed to clear default flag: %w", err)
		}
	}
	return nil
}

func (s *TemplateStore) scanTemplate(row interface{ Scan(...any) error }) (*LabelTemplate, error) {
	t := &LabelTemplate{}
	var brandID sql.NullString
	var isDefault int
	err := row.Scan(&t.ID, &t.Name, &brandID, &isDefault, &t.SchemaJSON,
		&t.WidthMM, &t.HeightMM, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.BrandID = brandID.String
	t.IsDefault = isDefault == 1
	return t, nil
}

func (s *TemplateStore) GetByID(ctx context.Context, id int64) (*LabelTemplate, error) {
	t, err := s.scanTemplate(s.db.QueryRowContext(ctx, GetTemplateByID, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("failed to get template: %w", err)
	}
	return t, nil
}

func (s *TemplateStore) GetByBrand(ctx context.Context, brandID string) (*LabelTemplate, error) {
	t, err := s.scanTemplate(s.db.QueryRowContext(ctx, GetTemplateByBrand, brandID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("failed to get template by brand: %w", err)
	}
	return t, nil
}

func (s *TemplateStore) GetDefault(ctx context.Context) (*LabelTemplate, error) {
	t, err := s.scanTemplate(s.db.QueryRowContext(ctx, GetDefaultTemplate))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("failed to get default template: %w", err)
	}
	return t, nil
}

func (s *TemplateStore) List(ctx context.Context) ([]*LabelTemplate, error) {
	rows, err := s.db.QueryContext(ctx, ListTemplates)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	defer rows.Close()

	var templates []*LabelTemplate
	for rows.Next() {
		t, err := s.scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan template: %w", err)
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

func (s *TemplateStore) Update(ctx context.Context, t *LabelTemplate) error {
	_, err := s.db.ExecContext(ctx, UpdateTemplate,
		t.Name, t.BrandID, t.IsDefault, t.SchemaJSON, t.WidthMM, t.HeightMM, t.ID)
	if err != nil {
		return fmt.Errorf("failed to update template: %w", err)
	}
	if t.IsDefault {
		if _, err := s.db.ExecContext(ctx, ClearDefaultTemplate, t.ID); err != nil {
			return fmt.Errorf("failed to clear default flag: %w", err)
		}
	}
	return nil
}

func (s *TemplateStore) Delete(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, DeleteTemplate, id)
	if err != nil {
		return fmt.Errorf("failed to delete template: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

type WebhookStore struct {
	db *sql.DB
}

func NewWebhookStore(conn *sql.DB) *WebhookStore {
	return &WebhookStore{db: conn}
}

func (s *WebhookStore) scanWebhook(row interface{ Scan(...any) error }) (*Webhook, error) {
	w := &Webhook{}
	var enabled int
	err := row.Scan(&w.ID, &w.Name, &w.URL, &w.Secret, &w.EventsJSON, &enabled, &w.CreatedAt)
	if err != nil {
		return nil, err
	}
	w.Enabled = enabled == 1
	return w, nil
}

func (s *WebhookStore) Create(ctx context.Context, w *Webhook) error {
	result, err := s.db.ExecContext(ctx, InsertWebhook,
		w.Name, w.URL, w.Secret, w.EventsJSON, w.Enabled)
	if err != nil {
		return fmt.Errorf("failed to create webhook: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get webhook id: %w", err)
	}
	w.ID = id
	return nil
}

func (s *WebhookStore) GetByID(ctx context.Context, id int64) (*Webhook, error) {
	w, err := s.scanWebhook(s.db.QueryRowContext(ctx, GetWebhookByID, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("failed to get webhook: %w", err)
	}
	return w, nil
}

func (s *WebhookStore) List(ctx context.Context) ([]*Webhook, error) {
	rows, err := s.db.QueryContext(ctx, ListWebhooks)
	if err != nil {
		return nil, fmt.Errorf("failed to list webhooks: %w", err)
	}
	defer rows.Close()

	var webhooks []*Webhook
	for rows.Next() {
		w, err := s.scanWebhook(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan webhook: %w", err)
		}
		webhooks = append(webhooks, w)
	}
	return webhooks, rows.Err()
}

func (s *WebhookStore) Update(ctx context.Context, w *Webhook) error {
	_, err := s.db.ExecContext(ctx, UpdateWebhook,
		w.Name, w.URL, w.Secret, w.EventsJSON, w.Enabled, w.ID)
	if err != nil {
		return fmt.Errorf("failed to update webhook: %w", err)
	}
	return nil
}

func (s *WebhookStore) Delete(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, DeleteWebhook, id)
	if err != nil {
		return fmt.Errorf("failed to delete webhook: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

type SettingsStore struct {
	db *sql.DB
}

func NewSettingsStore(conn *sql.DB) *SettingsStore {
	return &SettingsStore{db: conn}
}

func (s *SettingsStore) Get(ctx context.Context, key string) (*Setting, error) {
	setting := &Setting{}
	var encrypted int
	err := s.db.QueryRowContext(ctx, GetSetting, key).Scan(
		&setting.Key, &setting.Value, &encrypted, &setting.UpdatedAt)
	if err != nil {
		return nil, err
	}
	setting.Encrypted = encrypted == 1
	return setting, nil
}

func (s *SettingsStore) Set(ctx context.Context, key, value string, encrypted bool) error {
	_, err := s.db.ExecContext(ctx, UpsertSetting, key, value, encrypted)
	if err != nil {
		return fmt.Errorf("failed to set setting %s: %w", key, err)
	}
	return nil
}
