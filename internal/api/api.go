package api

import (
	"context"
	"log"
	"net/http"
	"strconv"

	"resale-tracker/internal/fees"
	"resale-tracker/internal/fxrates"
	"resale-tracker/internal/models"
	"resale-tracker/internal/pricing"
	"resale-tracker/internal/store"
	syncengine "resale-tracker/internal/sync"

	"github.com/gin-gonic/gin"
)

type APIHandler struct {
	store      store.Store
	reconciler *pricing.Reconciler
	rates      *fxrates.Fetcher
	runner     *syncengine.Runner
}

func SetupRoutes(r *gin.RouterGroup, st store.Store, reconciler *pricing.Reconciler, rates *fxrates.Fetcher, runner *syncengine.Runner) *APIHandler {
	handler := &APIHandler{
		store:      st,
		reconciler: reconciler,
		rates:      rates,
		runner:     runner,
	}

	prices := r.Group("/prices")
	{
		prices.GET("/:styleId", handler.GetUnifiedPrice)
	}

	sync := r.Group("/sync")
	{
		sync.GET("/status", handler.GetSyncStatus)
		sync.POST("/run", handler.TriggerSyncRun)
	}

	return handler
}

// GetUnifiedPrice serves the reconciled price view for one variant.
// Query params: size (required), unit (default US), cost + cost_currency
// for profit math, commission/shipping to override the fee profile.
func (h *APIHandler) GetUnifiedPrice(c *gin.Context) {
	styleID := c.Param("styleId")
	size := c.Query("size")
	if size == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "size query parameter is required"})
		return
	}
	sizeUnit := c.DefaultQuery("unit", "US")

	variant, err := h.store.FindVariant(c.Request.Context(), styleID, size, sizeUnit)
	if err != nil {
		log.Printf("[API] variant lookup failed for %s/%s: %v", styleID, size, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "variant lookup failed"})
		return
	}
	if variant == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "variant not found"})
		return
	}

	snapshots, err := h.store.LatestSnapshots(c.Request.Context(), variant.ID)
	if err != nil {
		log.Printf("[API] snapshot load failed for variant %d: %v", variant.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "snapshot load failed"})
		return
	}

	input := pricing.SnapshotInput{
		StyleID: styleID,
		Size:    size,
		A:       snapshots[models.ProviderA],
		B:       snapshots[models.ProviderB],
	}

	rates := h.rates.Snapshot()
	profile := h.feeProfile(c)
	cost := h.costBasis(c, rates.UserCurrency)

	view, err := h.reconciler.ComputeUnifiedPriceWithFees(input, cost, rates, profile)
	if err != nil {
		log.Printf("[API] price reconciliation failed for %s/%s: %v", styleID, size, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "price reconciliation failed"})
		return
	}

	if !view.HasPrice() {
		c.JSON(http.StatusOK, gin.H{
			"style_id":  styleID,
			"size":      size,
			"no_price":  true,
			"providers": view.Providers,
		})
		return
	}

	c.JSON(http.StatusOK, view)
}

// GetSyncStatus reports the runner state, the last run summary, and
// per-account sync markers.
func (h *APIHandler) GetSyncStatus(c *gin.Context) {
	state, lastRun := h.runner.State()

	accounts, err := h.store.ListActiveAccounts(c.Request.Context())
	if err != nil {
		log.Printf("[API] account list failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "account list failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"state":    state,
		"last_run": lastRun,
		"accounts": accounts,
	})
}

// TriggerSyncRun kicks off a full sync in the background. The runner
// claims the running state atomically, so concurrent triggers cannot
// start overlapping runs.
func (h *APIHandler) TriggerSyncRun(c *gin.Context) {
	// detached from the request context so the run outlives the response
	if !h.runner.StartAll(context.Background()) {
		c.JSON(http.StatusConflict, gin.H{"error": "a sync run is already in progress"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "sync run started"})
}

func (h *APIHandler) feeProfile(c *gin.Context) fees.Profile {
	profile := fees.Profile{
		SellerLevel:    1,
		CommissionRate: 0.09,
		ShippingCost:   4.0,
	}
	if v := c.Query("commission"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 && f < 1 {
			profile.CommissionRate = f
		}
	}
	if v := c.Query("shipping"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			profile.ShippingCost = f
		}
	}
	return profile
}

func (h *APIHandler) costBasis(c *gin.Context, userCurrency string) *pricing.CostBasis {
	v := c.Query("cost")
	if v == "" {
		return nil
	}
	amount, err := strconv.ParseFloat(v, 64)
	if err != nil || amount < 0 {
		return nil
	}
	return &pricing.CostBasis{
		Amount:   amount,
		Currency: c.DefaultQuery("cost_currency", userCurrency),
	}
}
