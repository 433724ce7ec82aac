package db

const (
	InsertTemplate = `
		INSERT INTO label_templates (name, brand_id, is_default, schema_json, width_mm, height_mm)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	GetTemplateByID = `
		SELECT id, name, brand_id, is_default, schema_json, width_mm, height_mm, created_at, updated_at
		FROM label_templates WHERE id = ?
	`

	GetTemplateByBrand = `
		SELECT id, name, brand_id, is_default, schema_json, width_mm, height_mm, created_at, updated_at
		FROM label_templates WHERE brand_id = ?
	`

	GetDefaultTemplate = `
		SELECT id, name, brand_id, is_default, schema_json, width_mm, height_mm, created_at, updated_at
		FROM label_templates WHERE is_default = 1 LIMIT 1
	`

	ListTemplates = `
		SELECT id, name, brand_id, is_default, schema_json, width_mm, height_mm, created_at, updated_at
		FROM label_templates ORDER BY name ASC
	`

	UpdateTemplate = `
		UPDATE label_templates SET
			name = ?, brand_id = ?, is_default = ?, schema_json = ?, width_mm = ?, height_mm = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	ClearDefaultTemplate = `UPDATE label_templates SET is_default = 0 WHERE id != ?`

	DeleteTemplate = `DELETE FROM label_templates WHERE id = ?`
)

const (
	InsertJob = `
		INSERT INTO print_jobs (order_item_ref, label_kind, template_id, dish_json, status, max_retries)
		VALUES (?, ?, ?, ?, 'QUEUED', ?)
	`

	selectJobColumns = `
		SELECT id, order_item_ref, label_kind, template_id, dish_json, status,
		       retry_count, max_retries, error_message, created_at, started_at, printed_at
		FROM print_jobs
	`

	GetJobByID = selectJobColumns + ` WHERE id = ?`

	ListJobsBase = selectJobColumns + ` WHERE 1=1`

	SelectDueQueuedJobs = selectJobColumns + `
		WHERE status = 'QUEUED' AND next_attempt_at <= ?
		ORDER BY created_at ASC, id ASC
		LIMIT ?
	`

	ClaimJob = `
		UPDATE print_jobs SET status = 'PRINTING', started_at = ?
		WHERE id = ? AND status = 'QUEUED'
	`

	MarkJobDone = `
		UPDATE print_jobs SET status = 'DONE', error_message = '', printed_at = ?
		WHERE id = ? AND status = 'PRINTING'
	`

	MarkJobRetry = `
		UPDATE print_jobs SET status = 'QUEUED', retry_count = retry_count + 1,
			error_message = ?, next_attempt_at = ?
		WHERE id = ? AND status = 'PRINTING'
	`

	MarkJobFailedFinal = `
		UPDATE print_jobs SET status = 'FAILED', retry_count = retry_count + 1,
			error_message = ?, printed_at = ?
		WHERE id = ? AND status = 'PRINTING'
	`

	MarkJobFailed = `
		UPDATE print_jobs SET status = 'FAILED', error_message = ?, printed_at = ?
		WHERE id = ? AND status = 'PRINTING'
	`

	CancelJob = `
		UPDATE print_jobs SET status = 'CANCELLED'
		WHERE id = ? AND status = 'QUEUED'
	`

	RequeueFailedJob = `
		UPDATE print_jobs SET status = 'QUEUED', retry_count = 0, error_message = '',
			next_attempt_at = ?, started_at = NULL, printed_at = NULL
		WHERE id = ? AND status = 'FAILED'
	`

	RecoverStaleJobs = `
		UPDATE print_jobs SET status = 'QUEUED', started_at = NULL
		WHERE status = 'PRINTING'
	`

	CountJobsByStatus = `SELECT status, COUNT(*) FROM print_jobs GROUP BY status`
)

const (
	GetSetting = `SELECT key, value, encrypted, updated_at FROM settings WHERE key = ?`

	UpsertSetting = `
		INSERT INTO settings (key, value, encrypted, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, encrypted = excluded.encrypted,
			updated_at = CURRENT_TIMESTAMP
	`
)

const (
	ListEnabledWebhooksForEvent = `
		SELECT id, name, url, secret, events_json, enabled, created_at
		FROM webhooks WHERE enabled = 1 AND events_json LIKE ?
	`

	GetWebhookByID = `
		SELECT id, name, url, secret, events_json, enabled, created_at
		FROM webhooks WHERE id = ?
	`

	ListWebhooks = `
		SELECT id, name, url, secret, events_json, enabled, created_at
		FROM webhooks ORDER BY id ASC
	`

	InsertWebhook = `
		INSERT INTO webhooks (name, url, secret, events_json, enabled)
		VALUES (?, ?, ?, ?, ?)
	`

	UpdateWebhook = `
		UPDATE webhooks SET name = ?, url = ?, secret = ?, events_json = ?, enabled = ?
		WHERE id = ?
	`

	DeleteWebhook = `DELETE FROM webhooks WHERE id = ?`
)
