package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Vovanwotkd/labels-britannika/internal/db"
	"github.com/Vovanwotkd/labels-britannika/internal/dish"
	"github.com/Vovanwotkd/labels-britannika/internal/label"
)

type CreateTemplateRequest struct {
	Name      string          `json:"name" binding:"required"`
	BrandID   string          `json:"brand_id"`
	IsDefault bool            `json:"is_default"`
	Schema    json.RawMessage `json:"schema" binding:"required"`
}

type UpdateTemplateRequest struct {
	Name      string          `json:"name"`
	BrandID   string          `json:"brand_id"`
	IsDefault *bool           `json:"is_default"`
	Schema    json.RawMessage `json:"schema"`
}

type ValidateResponse struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

type TemplateHandler struct {
	store *db.TemplateStore
}

func NewTemplateHandler(store *db.TemplateStore) *TemplateHandler {
	return &TemplateHandler{store: store}
}

func (h *TemplateHandler) ListTemplates(c *gin.Context) {
	templates, err := h.store.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "database_error", Message: "Failed to list templates"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"templates": templates, "count": len(templates)})
}

func (h *TemplateHandler) GetTemplate(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_id", Message: "Invalid template ID"})
		return
	}

	t, err := h.store.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: "Template not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "database_error", Message: "Failed to get template"})
		return
	}

	c.JSON(http.StatusOK, t)
}

func (h *TemplateHandler) CreateTemplate(c *gin.Context) {
	var req CreateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: err.Error()})
		return
	}

	tpl, err := label.ParseTemplate(string(req.Schema))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_schema", Message: err.Error()})
		return
	}
	if tpl.WidthMM <= 0 || tpl.HeightMM <= 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_schema", Message: "schema width_mm and height_mm must be positive"})
		return
	}

	t := &db.LabelTemplate{
		Name:       req.Name,
		BrandID:    req.BrandID,
		IsDefault:  req.IsDefault,
		SchemaJSON: string(req.Schema),
		WidthMM:    tpl.WidthMM,
		HeightMM:   tpl.HeightMM,
	}

	if err := h.store.Create(c.Request.Context(), t); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "database_error", Message: "Failed to create template"})
		return
	}

	c.JSON(http.StatusCreated, t)
}

func (h *TemplateHandler) UpdateTemplate(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_id", Message: "Invalid template ID"})
		return
	}

	t, err := h.store.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: "Template not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "database_error", Message: "Failed to get template"})
		return
	}

	var req UpdateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: err.Error()})
		return
	}

	if req.Name != "" {
		t.Name = req.Name
	}
	if req.BrandID != "" {
		t.BrandID = req.BrandID
	}
	if req.IsDefault != nil {
		t.IsDefault = *req.IsDefault
	}
	if len(req.Schema) > 0 {
		tpl, err := label.ParseTemplate(string(req.Schema))
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_schema", Message: err.Error()})
			return
		}
		t.SchemaJSON = string(req.Schema)
		if tpl.WidthMM > 0 {
			t.WidthMM = tpl.WidthMM
		}
		if tpl.HeightMM > 0 {
			t.HeightMM = tpl.HeightMM
		}
	}

	if err := h.store.Update(c.Request.Context(), t); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "database_error", Message: "Failed to update template"})
		return
	}

	c.JSON(http.StatusOK, t)
}

func (h *TemplateHandler) DeleteTemplate(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_id", Message: "Invalid template ID"})
		return
	}

	if err := h.store.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: "Template not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "database_error", Message: "Failed to delete template"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "template deleted"})
}

// ValidateTemplate parses the stored schema and reports layout warnings
// (out-of-bounds or overlapping fields). Warnings do not block printing.
func (h *TemplateHandler) ValidateTemplate(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_id", Message: "Invalid template ID"})
		return
	}

	t, err := h.store.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: "Template not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "database_error", Message: "Failed to get template"})
		return
	}

	tpl, err := label.ParseTemplate(t.SchemaJSON)
	if err != nil {
		c.JSON(http.StatusOK, ValidateResponse{Valid: false, Errors: []string{err.Error()}})
		return
	}

	warnings := tpl.Validate()
	resp := ValidateResponse{Valid: true}
	for _, w := range warnings {
		resp.Warnings = append(resp.Warnings, w.String())
	}
	c.JSON(http.StatusOK, resp)
}

// PreviewTemplate renders the template with sample dish data and returns a
// PNG, so the layout can be checked in a browser without wasting labels.
func (h *TemplateHandler) PreviewTemplate(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_id", Message: "Invalid template ID"})
		return
	}

	t, err := h.store.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: "Template not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "database_error", Message: "Failed to get template"})
		return
	}

	tpl, err := label.ParseTemplate(t.SchemaJSON)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_schema", Message: err.Error()})
		return
	}

	compositor := &label.Compositor{}
	comp, err := compositor.Compose(tpl, previewDish(), label.KindMain, time.Now())
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "render_failed", Message: err.Error()})
		return
	}

	png, err := comp.EncodePNG()
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "render_failed", Message: err.Error()})
		return
	}

	c.Data(http.StatusOK, "image/png", png)
}

func previewDish() *dish.DishData {
	protein := 12.5
	fat := 8.3
	carbs := 31.2
	calories := 262.0
	return &dish.DishData{
		Name:     "Суп куриный с лапшой",
		Code:     "1000001",
		WeightG:  250,
		Protein:  &protein,
		Fat:      &fat,
		Carbs:    &carbs,
		Calories: &calories,
		Ingredients: []string{
			"бульон куриный", "лапша", "филе куриное", "морковь", "лук репчатый", "зелень",
		},
	}
}

func (h *TemplateHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/templates", h.ListTemplates)
	r.POST("/templates", h.CreateTemplate)
	r.GET("/templates/:id", h.GetTemplate)
	r.PUT("/templates/:id", h.UpdateTemplate)
	r.DELETE("/templates/:id", h.DeleteTemplate)
	r.GET("/templates/:id/validate", h.ValidateTemplate)
	r.GET("/templates/:id/preview", h.PreviewTemplate)
}
