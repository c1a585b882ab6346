// Package api exposes the tracker over HTTP.
package api

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"steam-price-tracker/internal/errs"
	"steam-price-tracker/internal/export"
	"steam-price-tracker/internal/logger"
	"steam-price-tracker/internal/services/steam"
	"steam-price-tracker/internal/services/tracker"
	"steam-price-tracker/internal/services/updater"

	"github.com/gin-gonic/gin"
)

// Deps are the services the handlers call.
type Deps struct {
	Tracker  *tracker.Service
	Recorder *tracker.Recorder
	Updater  *updater.Updater
	Steam    *steam.SteamService
	Hub      *Hub
	// CronSecret guards the cron trigger and admin routes.
	CronSecret string
}

type APIHandler struct {
	tracker  *tracker.Service
	recorder *tracker.Recorder
	updater  *updater.Updater
	steam    *steam.SteamService
}

// NewRouter builds the gin engine with middleware and every route mounted.
func NewRouter(deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(), CORS())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if deps.Hub != nil {
		r.GET("/ws", deps.Hub.ServeWS)
	}

	h := SetupRoutes(r.Group("/api/v1"), deps)

	cron := r.Group("/api/cron", BearerAuth(deps.CronSecret))
	{
		cron.GET("/update-prices", h.TriggerUpdate)
		cron.POST("/update-prices", h.TriggerUpdate)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Not found"})
	})
	return r
}

// SetupRoutes mounts the /api/v1 routes on r.
func SetupRoutes(r *gin.RouterGroup, deps Deps) *APIHandler {
	handler := &APIHandler{
		tracker:  deps.Tracker,
		recorder: deps.Recorder,
		updater:  deps.Updater,
		steam:    deps.Steam,
	}

	items := r.Group("/items")
	{
		items.POST("", handler.AddItem)
		items.GET("", handler.ListItems)
		items.GET("/:id", handler.GetItem)
		items.GET("/:id/price", handler.GetCurrentPrice)
		items.GET("/:id/history", handler.GetPriceHistory)
		items.GET("/:id/history/export", handler.ExportPriceHistory)
	}

	r.GET("/steam-price", handler.ProxySteamPrice)
	r.GET("/updater/status", handler.UpdaterStatus)

	admin := r.Group("/admin", BearerAuth(deps.CronSecret))
	{
		admin.POST("/items/:id/refresh", handler.RefreshItem)
	}

	return handler
}

func respondOK(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

func respondError(c *gin.Context, err error) {
	kind := errs.KindOf(err)
	status := errs.HTTPStatus(kind)
	msg := errs.Message(err)
	if kind == errs.KindInternal {
		logger.Error("[api] %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		if msg == "" || msg == err.Error() {
			msg = "Internal server error"
		}
	}
	c.JSON(status, gin.H{"success": false, "error": msg})
}

func itemID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid item id"})
		return 0, false
	}
	return id, true
}

type addItemRequest struct {
	MarketHashName string `json:"market_hash_name"`
	SteamAppID     int    `json:"steam_appid"`
}

// AddItem handles POST /api/v1/items.
func (h *APIHandler) AddItem(c *gin.Context) {
	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request body"})
		return
	}
	item, err := h.tracker.AddItem(c.Request.Context(), req.MarketHashName, req.SteamAppID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, item)
}

// ListItems handles GET /api/v1/items?q=.
func (h *APIHandler) ListItems(c *gin.Context) {
	items, err := h.tracker.ListItems(c.Request.Context(), c.Query("q"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, items)
}

func (h *APIHandler) GetItem(c *gin.Context) {
	id, ok := itemID(c)
	if !ok {
		return
	}
	sum, err := h.tracker.GetItemSummary(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, sum)
}

// GetCurrentPrice returns a live quote. It never records history.
func (h *APIHandler) GetCurrentPrice(c *gin.Context) {
	id, ok := itemID(c)
	if !ok {
		return
	}
	pq, err := h.tracker.GetCurrentPrice(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, pq)
}

func (h *APIHandler) GetPriceHistory(c *gin.Context) {
	id, ok := itemID(c)
	if !ok {
		return
	}
	history, err := h.tracker.GetPriceHistory(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, history)
}

func (h *APIHandler) ExportPriceHistory(c *gin.Context) {
	id, ok := itemID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	item, err := h.tracker.GetItem(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	history, err := h.tracker.GetPriceHistory(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteHistory(&buf, item, history); err != nil {
		respondError(c, errs.Wrap(errs.KindInternal, "Failed to export price history", err))
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+export.Filename(item)+`"`)
	c.Data(http.StatusOK, export.ContentType, buf.Bytes())
}

// ProxySteamPrice handles GET /api/v1/steam-price?appId=&marketHashName=&currency=.
// The response keeps the market's own price strings.
func (h *APIHandler) ProxySteamPrice(c *gin.Context) {
	appIDParam := strings.TrimSpace(c.Query("appId"))
	name := c.Query("marketHashName")
	if appIDParam == "" || name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Missing required parameters"})
		return
	}
	appID, err := strconv.Atoi(appIDParam)
	if err != nil || appID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid appId"})
		return
	}
	currency, err := strconv.Atoi(c.DefaultQuery("currency", "1"))
	if err != nil || currency <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid currency"})
		return
	}

	q, err := h.steam.GetPriceOverviewIn(c.Request.Context(), appID, name, currency)
	switch {
	case errs.Is(err, errs.KindNotFoundExternal):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "No price data available"})
		return
	case err != nil:
		c.JSON(http.StatusBadGateway, gin.H{"success": false, "error": "Failed to fetch price from Steam"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"lowest_price": q.LowestPrice,
		"median_price": q.MedianPrice,
		"volume":       q.Volume,
	})
}

// RefreshItem records a fresh sample for one item. Admin only.
func (h *APIHandler) RefreshItem(c *gin.Context) {
	id, ok := itemID(c)
	if !ok {
		return
	}
	pq, err := h.recorder.RecordPrice(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, pq)
}

func (h *APIHandler) UpdaterStatus(c *gin.Context) {
	respondOK(c, http.StatusOK, h.updater.Stats())
}

// TriggerUpdate runs a full batch update and answers when it is done. The run is detached
// from the request so a dropped connection does not abort it.
func (h *APIHandler) TriggerUpdate(c *gin.Context) {
	ctx := context.WithoutCancel(c.Request.Context())
	report, err := h.updater.Run(ctx)
	switch {
	case errors.Is(err, updater.ErrRunInProgress):
		c.JSON(http.StatusConflict, gin.H{"success": false, "error": "Price update already in progress"})
		return
	case err != nil:
		logger.Error("[cron] price update failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to update prices"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Price update completed successfully",
		"run":     report,
	})
}
