package api

import (
	"net/http"
	"strconv"
	"time"

	"sales-core/internal/apperror"
	"sales-core/internal/models"
	"sales-core/internal/service"
	"sales-core/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const actorHeader = "X-Actor-ID"

// Handler contains HTTP handlers
type Handler struct {
	drafts       *service.DraftService
	finalizer    *service.Finalizer
	inactivation *service.InactivationEngine
	documents    *service.DocumentService
	logger       *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(
	drafts *service.DraftService,
	finalizer *service.Finalizer,
	inactivation *service.InactivationEngine,
	documents *service.DocumentService,
) *Handler {
	return &Handler{
		drafts:       drafts,
		finalizer:    finalizer,
		inactivation: inactivation,
		documents:    documents,
		logger:       util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/sales/drafts", h.stageSaleDraft)
		v1.POST("/sales/drafts/finalize", h.finalizeStagedSale)
		v1.POST("/purchases/drafts", h.stagePurchaseDraft)
		v1.POST("/purchases/drafts/finalize", h.finalizeStagedPurchase)

		v1.POST("/sales/direct", h.openDirectSale)
		v1.POST("/sales/direct/:id/finalize", h.finalizeDirectSale)

		v1.POST("/sales/:number/inactivate", h.inactivateSale)
		v1.POST("/sales/:number/reactivate", h.reactivateSale)

		v1.GET("/documents/:number", h.getDocument)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

type stageSaleRequest struct {
	Items         []service.ItemRequest `json:"items" binding:"dive"`
	Customer      models.Customer       `json:"customer"`
	PaymentMethod string                `json:"payment_method"`
}

type stagePurchaseRequest struct {
	Items    []service.ItemRequest `json:"items" binding:"dive"`
	Customer models.Customer       `json:"customer"`
}

type inactivateRequest struct {
	Reason string `json:"reason"`
}

type draftResponse struct {
	DraftID        string `json:"draft_id"`
	DocumentNumber string `json:"document_number"`
	Subtotal       string `json:"subtotal"`
	Tax            string `json:"tax"`
	Total          string `json:"total"`
	ExpiresAt      int64  `json:"expires_at"`
}

func newDraftResponse(d *models.Draft) draftResponse {
	return draftResponse{
		DraftID:        d.ID,
		DocumentNumber: d.DocumentNumber,
		Subtotal:       d.Subtotal.StringFixed(2),
		Tax:            d.Tax.StringFixed(2),
		Total:          d.Total.StringFixed(2),
		ExpiresAt:      d.ExpiresAt.Unix(),
	}
}

// stageSaleDraft handles staging of a point-of-sale checkout
func (h *Handler) stageSaleDraft(c *gin.Context) {
	actorID, ok := h.actorID(c)
	if !ok {
		return
	}

	var req stageSaleRequest
	if !h.bind(c, &req) {
		return
	}

	draft, err := h.drafts.StageSaleDraft(c.Request.Context(), actorID, req.Items, req.Customer, req.PaymentMethod)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, newDraftResponse(draft))
}

// stagePurchaseDraft handles staging of an online purchase checkout
func (h *Handler) stagePurchaseDraft(c *gin.Context) {
	actorID, ok := h.actorID(c)
	if !ok {
		return
	}

	var req stagePurchaseRequest
	if !h.bind(c, &req) {
		return
	}

	draft, err := h.drafts.StagePurchaseDraft(c.Request.Context(), actorID, req.Items, req.Customer)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, newDraftResponse(draft))
}

func (h *Handler) finalizeStagedSale(c *gin.Context) {
	actorID, ok := h.actorID(c)
	if !ok {
		return
	}

	var req service.PaymentInstrument
	if !h.bind(c, &req) {
		return
	}

	header, err := h.finalizer.FinalizeStagedSale(c.Request.Context(), actorID, req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, header)
}

func (h *Handler) finalizeStagedPurchase(c *gin.Context) {
	actorID, ok := h.actorID(c)
	if !ok {
		return
	}

	var req service.PaymentInstrument
	if !h.bind(c, &req) {
		return
	}

	header, err := h.finalizer.FinalizeStagedPurchase(c.Request.Context(), actorID, req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, header)
}

func (h *Handler) openDirectSale(c *gin.Context) {
	actorID, ok := h.actorID(c)
	if !ok {
		return
	}

	var req stageSaleRequest
	if !h.bind(c, &req) {
		return
	}

	header, err := h.finalizer.OpenDirectSale(c.Request.Context(), actorID, req.Items, req.Customer, req.PaymentMethod)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, header)
}

func (h *Handler) finalizeDirectSale(c *gin.Context) {
	headerID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid sale ID",
		})
		return
	}

	var req service.PaymentInstrument
	if !h.bind(c, &req) {
		return
	}

	header, err := h.finalizer.FinalizeDirectSale(c.Request.Context(), headerID, req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, header)
}

func (h *Handler) inactivateSale(c *gin.Context) {
	var req inactivateRequest
	if !h.bind(c, &req) {
		return
	}

	header, err := h.inactivation.InactivateSale(c.Request.Context(), c.Param("number"), req.Reason)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, header)
}

func (h *Handler) reactivateSale(c *gin.Context) {
	header, err := h.inactivation.ReactivateSale(c.Request.Context(), c.Param("number"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, header)
}

func (h *Handler) getDocument(c *gin.Context) {
	doc, err := h.documents.GetDocument(c.Request.Context(), c.Param("number"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, doc)
}

func (h *Handler) actorID(c *gin.Context) (int64, bool) {
	actorID, err := strconv.ParseInt(c.GetHeader(actorHeader), 10, 64)
	if err != nil || actorID <= 0 {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "Missing or invalid " + actorHeader + " header",
		})
		return 0, false
	}
	return actorID, true
}

func (h *Handler) bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return false
	}
	return true
}

// respondError maps domain errors to HTTP responses. System errors are logged
// and reported without internal detail.
func (h *Handler) respondError(c *gin.Context, err error) {
	appErr := apperror.GetAppError(err)

	body := gin.H{
		"error": appErr.Message,
		"kind":  appErr.Kind,
	}
	if len(appErr.Errors) > 0 {
		body["details"] = appErr.Errors
	}

	if appErr.Kind == apperror.KindSystem {
		h.logger.Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err))
		body["error"] = "Internal error"
	}

	c.JSON(appErr.Code, body)
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
