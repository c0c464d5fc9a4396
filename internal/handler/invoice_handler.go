package handler

import (
	"errors"
	"net/http"

	"invoice-backend/internal/middleware"
	"invoice-backend/internal/model"
	"invoice-backend/internal/service"
	"invoice-backend/pkg/pagination"
	"invoice-backend/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type InvoiceHandler struct {
	invoiceService    service.InvoiceService
	creditNoteService service.CreditNoteService
}

func NewInvoiceHandler(invoiceService service.InvoiceService, creditNoteService service.CreditNoteService) *InvoiceHandler {
	return &InvoiceHandler{
		invoiceService:    invoiceService,
		creditNoteService: creditNoteService,
	}
}

func (h *InvoiceHandler) RegisterRoutes(router *gin.RouterGroup) {
	invoices := router.Group("/api/invoices")
	{
		invoices.GET("", middleware.RequireRole(model.RoleAdmin, model.RoleAccountant, model.RoleViewer), h.ListInvoices)
		invoices.GET("/search", middleware.RequireRole(model.RoleAdmin, model.RoleAccountant, model.RoleViewer), h.SearchInvoices)
		invoices.GET("/report/overdue-unpaid", middleware.RequireRole(model.RoleAdmin, model.RoleAccountant), h.OverdueUnpaidReport)
		invoices.GET("/report/payment-summary", middleware.RequireRole(model.RoleAdmin, model.RoleAccountant), h.PaymentSummary)
		invoices.GET("/report/inconsistent", middleware.RequireRole(model.RoleAdmin, model.RoleAccountant), h.InconsistentReport)
		invoices.POST("/credit-note", middleware.RequireRole(model.RoleAdmin, model.RoleAccountant), h.AddCreditNote)
		invoices.GET("/:invoiceNumber", middleware.RequireRole(model.RoleAdmin, model.RoleAccountant, model.RoleViewer), h.GetInvoice)
	}
}

// ListInvoices returns a paginated list of invoices with their line items and credit notes
// @Summary      List invoices
// @Tags         invoices
// @Security     BearerAuth
// @Produce      json
// @Param        page   query     int  false  "Page number (default 1)"
// @Param        limit  query     int  false  "Items per page (default 20)"
// @Success      200    {object}  response.Response{data=[]service.InvoiceResponse}
// @Failure      500    {object}  response.Response
// @Router       /api/invoices [get]
func (h *InvoiceHandler) ListInvoices(c *gin.Context) {
	params := pagination.Parse(c)

	invoices, total, err := h.invoiceService.ListInvoices(c.Request.Context(), params.Page, params.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Paginated(http.StatusOK, invoices, params.Page, params.Limit, total))
}

// GetInvoice returns one invoice aggregate by its number
// @Summary      Get invoice by number
// @Tags         invoices
// @Security     BearerAuth
// @Produce      json
// @Param        invoiceNumber  path      string  true  "Invoice number"
// @Success      200            {object}  response.Response{data=service.InvoiceResponse}
// @Failure      404            {object}  response.Response
// @Router       /api/invoices/{invoiceNumber} [get]
func (h *InvoiceHandler) GetInvoice(c *gin.Context) {
	invoice, err := h.invoiceService.GetInvoice(c.Request.Context(), c.Param("invoiceNumber"))
	if err != nil {
		if errors.Is(err, service.ErrInvoiceNotFound) {
			c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, err.Error()))
			return
		}
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, invoice))
}

// SearchInvoices filters invoices by status and/or payment status
// @Summary      Search invoices
// @Tags         invoices
// @Security     BearerAuth
// @Produce      json
// @Param        status          query     string  false  "Invoice status (Issued, Partial, Cancelled)"
// @Param        payment_status  query     string  false  "Payment status (Pending, Overdue, Paid)"
// @Success      200             {object}  response.Response{data=[]service.InvoiceResponse}
// @Failure      500             {object}  response.Response
// @Router       /api/invoices/search [get]
func (h *InvoiceHandler) SearchInvoices(c *gin.Context) {
	invoices, err := h.invoiceService.SearchInvoices(c.Request.Context(), c.Query("status"), c.Query("payment_status"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, invoices))
}

// AddCreditNote applies a credit note to an invoice and re-derives its status
// @Summary      Apply credit note
// @Description  Adds a credit note to an invoice. The amount must be positive and must not exceed the outstanding amount; an amount equal to the outstanding amount cancels the invoice.
// @Tags         invoices
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.ApplyCreditNoteRequest  true  "Credit note payload"
// @Success      200      {object}  response.Response{data=service.InvoiceResponse}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Failure      422      {object}  response.Response
// @Router       /api/invoices/credit-note [post]
func (h *InvoiceHandler) AddCreditNote(c *gin.Context) {
	var req service.ApplyCreditNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid amount: "+err.Error()))
		return
	}

	invoice, err := h.creditNoteService.ApplyCreditNote(c.Request.Context(), req.InvoiceNumber, amount)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvoiceNotFound):
			c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, err.Error()))
		case errors.Is(err, service.ErrInvoiceCancelled):
			c.JSON(http.StatusConflict, response.Error(http.StatusConflict, err.Error()))
		case errors.Is(err, service.ErrExceedsOutstanding):
			c.JSON(http.StatusUnprocessableEntity, response.Error(http.StatusUnprocessableEntity, err.Error()))
		case errors.Is(err, service.ErrAmountNotPositive):
			c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		default:
			c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		}
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, invoice))
}

// OverdueUnpaidReport lists consistent invoices overdue by more than 30 days with no credit notes or payments
// @Summary      Overdue unpaid report
// @Tags         reports
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=[]service.InvoiceResponse}
// @Failure      500  {object}  response.Response
// @Router       /api/invoices/report/overdue-unpaid [get]
func (h *InvoiceHandler) OverdueUnpaidReport(c *gin.Context) {
	invoices, err := h.invoiceService.OverdueUnpaidReport(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, invoices))
}

// PaymentSummary returns invoice counts and percentages per payment status
// @Summary      Payment status summary
// @Tags         reports
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=service.PaymentSummaryResponse}
// @Failure      500  {object}  response.Response
// @Router       /api/invoices/report/payment-summary [get]
func (h *InvoiceHandler) PaymentSummary(c *gin.Context) {
	summary, err := h.invoiceService.PaymentSummary(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, summary))
}

// InconsistentReport lists invoices whose declared total does not match the sum of their line items
// @Summary      Inconsistent invoices report
// @Tags         reports
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=[]service.InvoiceResponse}
// @Failure      500  {object}  response.Response
// @Router       /api/invoices/report/inconsistent [get]
func (h *InvoiceHandler) InconsistentReport(c *gin.Context) {
	invoices, err := h.invoiceService.InconsistentReport(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, invoices))
}
