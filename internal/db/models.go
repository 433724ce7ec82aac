package db

import (
	"time"
)

type LabelTemplate struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	BrandID    string    `json:"brand_id,omitempty"`
	IsDefault  bool      `json:"is_default"`
	SchemaJSON string    `json:"schema_json"`
	WidthMM    float64   `json:"width_mm"`
	HeightMM   float64   `json:"height_mm"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type Webhook struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	URL        string    `json:"url"`
	Secret     string    `json:"secret,omitempty"`
	EventsJSON string    `json:"events_json"`
	Enabled    bool      `json:"enabled"`
	CreatedAt  time.Time `json:"created_at"`
}

type Setting struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	Encrypted bool      `json:"encrypted"`
	UpdatedAt time.Time `json:"updated_at"`
}

type JobFilter struct {
	Status       string
	OrderItemRef string
	Limit        int
	Offset       int
}
