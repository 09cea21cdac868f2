package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"inventory-ledger/internal/models"
	"inventory-ledger/internal/service"
	"inventory-ledger/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler contains HTTP handlers
type Handler struct {
	purchases   *service.PurchaseService
	adjustments *service.AdjustmentService
	bulkIntake  *service.BulkIntakeService
	duplicates  *service.DuplicateChecker
}

// NewHandler creates a new HTTP handler
func NewHandler(
	purchases *service.PurchaseService,
	adjustments *service.AdjustmentService,
	bulkIntake *service.BulkIntakeService,
	duplicates *service.DuplicateChecker,
) *Handler {
	return &Handler{
		purchases:   purchases,
		adjustments: adjustments,
		bulkIntake:  bulkIntake,
		duplicates:  duplicates,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	v1.Use(tenantMiddleware())
	{
		v1.POST("/purchases", h.createPurchase)
		v1.GET("/purchases/:id", h.getPurchase)
		v1.PUT("/purchases/:id", h.updatePurchase)
		v1.POST("/purchases/:id/confirm", h.confirmPurchase)
		v1.DELETE("/purchases/:id", h.deletePurchase)

		v1.POST("/adjustments", h.createAdjustment)
		v1.GET("/adjustments/:id", h.getAdjustment)
		v1.POST("/imports/bulk", h.bulkImport)

		v1.GET("/products/:id/stock", h.getStock)
		v1.POST("/serials/duplicates", h.findDuplicates)
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

// createPurchase handles receiving document creation
func (h *Handler) createPurchase(c *gin.Context) {
	var req service.CreateDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	purchase, err := h.purchases.CreateDraft(c.Request.Context(), tenantID(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, purchase)
}

// getPurchase handles get purchase by ID
func (h *Handler) getPurchase(c *gin.Context) {
	purchaseID, ok := pathID(c)
	if !ok {
		return
	}

	purchase, instances, err := h.purchases.Get(c.Request.Context(), tenantID(c), purchaseID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"purchase":  purchase,
		"instances": instances,
	})
}

// updatePurchase handles document edits
func (h *Handler) updatePurchase(c *gin.Context) {
	purchaseID, ok := pathID(c)
	if !ok {
		return
	}

	var req service.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	purchase, err := h.purchases.Update(c.Request.Context(), tenantID(c), purchaseID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, purchase)
}

// confirmPurchase flips a draft document into live stock. The cost
// completeness gate lives here, on the caller side of Confirm.
func (h *Handler) confirmPurchase(c *gin.Context) {
	purchaseID, ok := pathID(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	tenant := tenantID(c)

	incomplete, err := h.purchases.HasIncompleteCosts(ctx, tenant, purchaseID)
	if err != nil {
		respondError(c, err)
		return
	}
	if incomplete {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "All line items must have a positive cost before confirmation",
		})
		return
	}

	if err := h.purchases.Confirm(ctx, tenant, purchaseID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": models.PurchaseStatusConfirmed})
}

// deletePurchase handles document deletion
func (h *Handler) deletePurchase(c *gin.Context) {
	purchaseID, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.purchases.Delete(c.Request.Context(), tenantID(c), purchaseID); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// createAdjustment handles manual stock adjustments
func (h *Handler) createAdjustment(c *gin.Context) {
	var req service.AdjustmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}
	req.RecorderUserID = sessionUserID(c)

	adjustment, err := h.adjustments.Adjust(c.Request.Context(), tenantID(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, adjustment)
}

// getAdjustment handles get adjustment by ID
func (h *Handler) getAdjustment(c *gin.Context) {
	adjustmentID, ok := pathID(c)
	if !ok {
		return
	}

	adjustment, instances, err := h.adjustments.Get(c.Request.Context(), tenantID(c), adjustmentID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"adjustment": adjustment,
		"instances":  instances,
	})
}

// bulkImport handles tabular intake runs
func (h *Handler) bulkImport(c *gin.Context) {
	var req service.BulkIntakeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	purchase, err := h.bulkIntake.Import(c.Request.Context(), tenantID(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, purchase)
}

// getStock returns the sellable unit count for a product
func (h *Handler) getStock(c *gin.Context) {
	productID, ok := pathID(c)
	if !ok {
		return
	}

	count, err := h.adjustments.StockOnHand(c.Request.Context(), tenantID(c), productID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"product_id": productID,
		"in_stock":   count,
	})
}

// findDuplicates is the read-only serial lookup used by intake tooling
func (h *Handler) findDuplicates(c *gin.Context) {
	var req struct {
		Serials []string `json:"serials"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	duplicates, err := h.duplicates.FindActiveDuplicates(c.Request.Context(), tenantID(c), req.Serials)
	if err != nil {
		respondError(c, err)
		return
	}
	if duplicates == nil {
		duplicates = []string{}
	}

	c.JSON(http.StatusOK, gin.H{"duplicates": duplicates})
}

// tenantMiddleware resolves the tenant from the request; absence is a hard
// authentication failure.
func tenantMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseInt(c.GetHeader("X-Tenant-ID"), 10, 64)
		if err != nil || id <= 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "unauthenticated",
			})
			return
		}
		c.Set("tenant_id", id)

		if userID, err := strconv.ParseInt(c.GetHeader("X-User-ID"), 10, 64); err == nil {
			c.Set("user_id", userID)
		}

		c.Next()
	}
}

func tenantID(c *gin.Context) int64 {
	return c.GetInt64("tenant_id")
}

func sessionUserID(c *gin.Context) int64 {
	return c.GetInt64("user_id")
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID"})
		return 0, false
	}
	return id, true
}

// respondError maps domain errors to HTTP responses. NotFound and
// cross-tenant mismatches are indistinguishable on the wire.
func respondError(c *gin.Context, err error) {
	var validation *models.ValidationError
	var duplicate *models.DuplicateSerialError
	var insufficient *models.InsufficientStockError

	switch {
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"error": validation.Error()})
	case errors.As(err, &duplicate):
		c.JSON(http.StatusConflict, gin.H{
			"error":   "duplicate serials",
			"serials": duplicate.Serials,
		})
	case errors.As(err, &insufficient):
		c.JSON(http.StatusConflict, gin.H{
			"error":     "insufficient stock",
			"available": insufficient.Available,
			"requested": insufficient.Requested,
		})
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, models.ErrInvalidSignature):
		c.JSON(http.StatusForbidden, gin.H{"error": "invalid signature"})
	case errors.Is(err, models.ErrInsufficientPrivilege):
		c.JSON(http.StatusForbidden, gin.H{"error": "insufficient privilege"})
	case errors.Is(err, models.ErrNumberingExhausted):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "reception numbering exhausted, retry"})
	case errors.Is(err, models.ErrPurchaseHasSales):
		c.JSON(http.StatusConflict, gin.H{"error": "purchase has sold units"})
	case errors.Is(err, models.ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
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
