package handler

import (
	"errors"
	"net/http"
	"os"

	"invoice-backend/internal/middleware"
	"invoice-backend/internal/model"
	"invoice-backend/internal/service"
	"invoice-backend/pkg/response"

	"github.com/gin-gonic/gin"
)

const defaultImportFile = "bd_exam_invoices.json"

type ImportHandler struct {
	importService service.ImportService
}

func NewImportHandler(importService service.ImportService) *ImportHandler {
	return &ImportHandler{importService: importService}
}

func (h *ImportHandler) RegisterRoutes(router *gin.RouterGroup) {
	imports := router.Group("/api/import")
	{
		imports.POST("/invoices", middleware.RequireRole(model.RoleAdmin, model.RoleAccountant), h.ImportInvoices)
	}
}

// ImportInvoices runs one reconciliation over the configured batch file
// @Summary      Import invoices
// @Description  Runs a reconciliation over the invoice feed file. Duplicates are skipped, inconsistent invoices are flagged and imported. With skip_invalid=true, malformed records are skipped instead of aborting the run.
// @Tags         import
// @Security     BearerAuth
// @Produce      json
// @Param        file          query     string  false  "Feed file path (defaults to IMPORT_FILE env or bd_exam_invoices.json)"
// @Param        skip_invalid  query     bool    false  "Skip malformed records instead of aborting"
// @Success      200           {object}  response.Response{data=service.ImportResult}
// @Failure      400           {object}  response.Response
// @Failure      404           {object}  response.Response
// @Router       /api/import/invoices [post]
func (h *ImportHandler) ImportInvoices(c *gin.Context) {
	path := c.Query("file")
	if path == "" {
		path = os.Getenv("IMPORT_FILE")
	}
	if path == "" {
		path = defaultImportFile
	}

	opts := service.ImportOptions{SkipInvalid: c.Query("skip_invalid") == "true"}

	result, err := h.importService.ImportFromFile(c.Request.Context(), path, opts)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrImportFileNotFound):
			c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, err.Error()))
		case errors.Is(err, service.ErrMalformedBatch), errors.Is(err, service.ErrInvalidRecord):
			c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		default:
			c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		}
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}
