package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"order_composer/internal/models"
	"order_composer/internal/services"
)

// OperatorHeader names the operator working on a draft. Authentication is
// done in front of this service.
const OperatorHeader = "X-Operator"

type APIHandler struct {
	draftService      services.DraftService
	submissionService services.SubmissionService
	logger            logrus.FieldLogger
}

func NewAPIHandler(
	draftService services.DraftService,
	submissionService services.SubmissionService,
	logger logrus.FieldLogger,
) *APIHandler {
	useJSONFieldNames()
	return &APIHandler{
		draftService:      draftService,
		submissionService: submissionService,
		logger:            logger,
	}
}

func (h *APIHandler) RegisterRoutes(r gin.IRouter) {
	drafts := r.Group("/drafts")
	{
		drafts.POST("", h.CreateDraft)
		drafts.GET("/:id", h.GetDraft)
		drafts.DELETE("/:id", h.DeleteDraft)
		drafts.PATCH("/:id", h.UpdateFields)
		drafts.PUT("/:id/customer", h.SetCustomer)
		drafts.PUT("/:id/grand-total", h.SetGrandTotal)
		drafts.POST("/:id/refresh-discounts", h.RefreshDiscounts)
		drafts.POST("/:id/pending-services", h.AddPendingServices)
		drafts.POST("/:id/submit", h.Submit)
		drafts.GET("/:id/submissions", h.Submissions)

		drafts.POST("/:id/items", h.AddItem)
		drafts.PATCH("/:id/items/:itemId", h.UpdateItem)
		drafts.POST("/:id/items/:itemId/commit", h.CommitItem)
		drafts.DELETE("/:id/items/:itemId", h.RemoveItem)
	}
	r.POST("/orders/:orderId/edit", h.EditOrder)
}

func operator(c *gin.Context) string {
	return strings.TrimSpace(c.GetHeader(OperatorHeader))
}

// Draft endpoints
func (h *APIHandler) CreateDraft(c *gin.Context) {
	view, err := h.draftService.CreateDraft(c.Request.Context(), operator(c))
	if err != nil {
		respondError(c, h.logger, "CreateDraft", err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

func (h *APIHandler) GetDraft(c *gin.Context) {
	view, err := h.draftService.GetDraft(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, "GetDraft", err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *APIHandler) DeleteDraft(c *gin.Context) {
	if err := h.draftService.DeleteDraft(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, h.logger, "DeleteDraft", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *APIHandler) EditOrder(c *gin.Context) {
	orderID := models.RefID(c.Param("orderId"))
	view, err := h.draftService.EditOrder(c.Request.Context(), operator(c), orderID)
	if err != nil {
		respondError(c, h.logger, "EditOrder", err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

func (h *APIHandler) UpdateFields(c *gin.Context) {
	var req services.FieldsInput
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	view, err := h.draftService.UpdateFields(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, h.logger, "UpdateFields", err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *APIHandler) SetCustomer(c *gin.Context) {
	var req services.CustomerInput
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	if !req.CustomerID.IsZero() && req.NewCustomer != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": gin.H{"customerId": "cannot be combined with newCustomer"}})
		return
	}
	view, err := h.draftService.SetCustomer(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, h.logger, "SetCustomer", err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *APIHandler) SetGrandTotal(c *gin.Context) {
	var req struct {
		GrandTotal *decimal.Decimal `json:"grandTotal" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	view, err := h.draftService.SetGrandTotal(c.Request.Context(), c.Param("id"), *req.GrandTotal)
	if err != nil {
		respondError(c, h.logger, "SetGrandTotal", err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *APIHandler) RefreshDiscounts(c *gin.Context) {
	view, err := h.draftService.RefreshDiscounts(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, "RefreshDiscounts", err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *APIHandler) AddPendingServices(c *gin.Context) {
	view, err := h.draftService.AddPendingServices(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, "AddPendingServices", err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Item endpoints
func (h *APIHandler) AddItem(c *gin.Context) {
	var req services.AddItemInput
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	view, result, err := h.draftService.AddItem(c.Request.Context(), c.Param("id"), operator(c), req)
	if err != nil {
		respondError(c, h.logger, "AddItem", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"draft":       view.Draft,
		"totals":      view.Totals,
		"allocations": view.Allocations,
		"result":      result,
	})
}

func (h *APIHandler) UpdateItem(c *gin.Context) {
	var req services.UpdateItemInput
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	view, err := h.draftService.UpdateItem(c.Request.Context(), c.Param("id"), c.Param("itemId"), req)
	if err != nil {
		respondError(c, h.logger, "UpdateItem", err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *APIHandler) CommitItem(c *gin.Context) {
	view, err := h.draftService.CommitItem(c.Request.Context(), c.Param("id"), c.Param("itemId"))
	if err != nil {
		respondError(c, h.logger, "CommitItem", err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *APIHandler) RemoveItem(c *gin.Context) {
	view, err := h.draftService.RemoveItem(c.Request.Context(), c.Param("id"), c.Param("itemId"))
	if err != nil {
		respondError(c, h.logger, "RemoveItem", err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Submission endpoints
func (h *APIHandler) Submit(c *gin.Context) {
	var req services.SubmitInput
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}
	}
	result, err := h.submissionService.Submit(c.Request.Context(), c.Param("id"), operator(c), req)
	if err != nil {
		respondError(c, h.logger, "Submit", err)
		return
	}
	status := http.StatusCreated
	if result.Replayed {
		status = http.StatusOK
	}
	c.JSON(status, result)
}

func (h *APIHandler) Submissions(c *gin.Context) {
	history, err := h.submissionService.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, "Submissions", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"submissions": history})
}
