package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Vovanwotkd/labels-britannika/internal/archive"
)

type ArchiveHandler struct {
	archiver *archive.Archiver
}

func NewArchiveHandler(archiver *archive.Archiver) *ArchiveHandler {
	return &ArchiveHandler{archiver: archiver}
}

type ArchiveListResponse struct {
	Archives []*archive.ArchiveFile `json:"archives"`
	Count    int                    `json:"count"`
}

func (h *ArchiveHandler) ListArchives(c *gin.Context) {
	archives, err := h.archiver.ListArchives()
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "archive_error", Message: "Failed to list archives"})
		return
	}

	c.JSON(http.StatusOK, ArchiveListResponse{
		Archives: archives,
		Count:    len(archives),
	})
}

func (h *ArchiveHandler) RunSweep(c *gin.Context) {
	result, err := h.archiver.RunSweep(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "archive_error", Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *ArchiveHandler) DeleteArchive(c *gin.Context) {
	filename := c.Param("filename")

	if err := h.archiver.DeleteArchive(filename); err != nil {
		if err.Error() == "archive not found" {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: "Archive not found"})
			return
		}
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "archive_error", Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "archive deleted"})
}

func (h *ArchiveHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/archives", h.ListArchives)
	r.POST("/archives/sweep", h.RunSweep)
	r.DELETE("/archives/:filename", h.DeleteArchive)
}
