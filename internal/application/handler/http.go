// Package handler serves the application form and load table endpoints.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"connections-portal/backend/internal/application/domain"
	"connections-portal/backend/internal/application/repository"
	"connections-portal/backend/internal/assessment"
)

// Assessor is the subset of the assessment evaluator used by the handler.
type Assessor interface {
	Assess(ctx context.Context, items []*domain.LoadItem) (assessment.Result, error)
}

// Handler serves /api/applications and /api/load-items.
type Handler struct {
	repo     repository.Repository
	assessor Assessor
}

// NewHandler returns a Handler. assessor may be nil; then the assessment route is not registered.
func NewHandler(repo repository.Repository, assessor Assessor) *Handler {
	return &Handler{repo: repo, assessor: assessor}
}

// Register mounts the application routes on r.
func (h *Handler) Register(r gin.IRouter) {
	r.POST("/api/applications", h.Create)
	r.GET("/api/applications/:id", h.Get)
	r.PUT("/api/applications/:id", h.Update)
	if h.assessor != nil {
		r.GET("/api/applications/:id/assessment", h.Assessment)
	}
	r.GET("/api/load-items/:app_id", h.ListLoadItems)
	r.POST("/api/load-items/:app_id", h.AddLoadItem)
	r.DELETE("/api/load-items/:app_id", h.DeleteLoadItem)
}

func fail(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"error": msg})
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		fail(c, http.StatusBadRequest, "Invalid application id")
		return 0, false
	}
	return id, true
}

// bindSections reads the body as a section map. An empty body is an empty form.
func bindSections(c *gin.Context) (domain.Sections, bool) {
	var body domain.Sections
	if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
		fail(c, http.StatusBadRequest, "Request body must be a JSON object")
		return nil, false
	}
	if body == nil {
		body = domain.Sections{}
	}
	return body, true
}

// Create stores a new draft application.
func (h *Handler) Create(c *gin.Context) {
	sections, ok := bindSections(c)
	if !ok {
		return
	}
	norm, err := sections.Normalize()
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	a := &domain.Application{Sections: norm}
	if err := h.repo.Create(c.Request.Context(), a); err != nil {
		log.Printf("application: create failed: %v", err)
		fail(c, http.StatusInternalServerError, "Failed to create application")
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": a.ID, "message": "Application created successfully"})
}

// Get returns one application with every section decoded.
func (h *Handler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	a, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		log.Printf("application: get %d failed: %v", id, err)
		fail(c, http.StatusInternalServerError, "Failed to load application")
		return
	}
	if a == nil {
		fail(c, http.StatusNotFound, "Application not found")
		return
	}
	c.JSON(http.StatusOK, a)
}

// Update overwrites every section. An optional "status" key moves the application between draft and submitted.
func (h *Handler) Update(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	sections, ok := bindSections(c)
	if !ok {
		return
	}
	var rawStatus string
	if s, present := sections["status"]; present {
		if err := json.Unmarshal(s, &rawStatus); err != nil {
			fail(c, http.StatusBadRequest, domain.ErrInvalidStatus.Error())
			return
		}
	}
	status, err := domain.ParseStatus(rawStatus)
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	norm, err := sections.Normalize()
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	found, err := h.repo.Update(c.Request.Context(), &domain.Application{ID: id, Sections: norm, Status: status})
	if err != nil {
		log.Printf("application: update %d failed: %v", id, err)
		fail(c, http.StatusInternalServerError, "Failed to update application")
		return
	}
	if !found {
		fail(c, http.StatusNotFound, "Application not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Application updated successfully"})
}

// Assessment evaluates the connection rules over the application's load items.
func (h *Handler) Assessment(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	a, err := h.repo.GetByID(ctx, id)
	if err != nil {
		log.Printf("application: get %d failed: %v", id, err)
		fail(c, http.StatusInternalServerError, "Failed to load application")
		return
	}
	if a == nil {
		fail(c, http.StatusNotFound, "Application not found")
		return
	}
	items, err := h.repo.ListLoadItems(ctx, id)
	if err != nil {
		log.Printf("application: list load items for %d failed: %v", id, err)
		fail(c, http.StatusInternalServerError, "Failed to load items")
		return
	}
	res, err := h.assessor.Assess(ctx, items)
	if err != nil {
		log.Printf("application: assess %d failed: %v", id, err)
		fail(c, http.StatusInternalServerError, "Failed to assess application")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"application_id":      id,
		"total_kva":           res.TotalKVA,
		"recommended_phases":  res.RecommendedPhases,
		"warnings":            res.Warnings,
		"auto_quote_eligible": res.AutoQuoteEligible,
	})
}

// ListLoadItems returns the load table. Unknown applications have an empty table.
func (h *Handler) ListLoadItems(c *gin.Context) {
	appID, ok := pathID(c, "app_id")
	if !ok {
		return
	}
	items, err := h.repo.ListLoadItems(c.Request.Context(), appID)
	if err != nil {
		log.Printf("application: list load items for %d failed: %v", appID, err)
		fail(c, http.StatusInternalServerError, "Failed to load items")
		return
	}
	c.JSON(http.StatusOK, items)
}

type loadItemRequest struct {
	ConnectionType      string   `json:"connection_type"`
	Phases              string   `json:"phases"`
	HeatingType         string   `json:"heating_type"`
	Bedrooms            string   `json:"bedrooms"`
	Quantity            int      `json:"quantity"`
	LoadPerInstallation float64  `json:"load_per_installation"`
	SummedLoad          *float64 `json:"summed_load"`
}

// AddLoadItem appends a row to the load table. summed_load defaults to quantity x load_per_installation.
func (h *Handler) AddLoadItem(c *gin.Context) {
	appID, ok := pathID(c, "app_id")
	if !ok {
		return
	}
	var req loadItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid load item")
		return
	}
	item := &domain.LoadItem{
		ApplicationID:       appID,
		ConnectionType:      req.ConnectionType,
		Phases:              req.Phases,
		HeatingType:         req.HeatingType,
		Bedrooms:            req.Bedrooms,
		Quantity:            req.Quantity,
		LoadPerInstallation: req.LoadPerInstallation,
	}
	if req.SummedLoad != nil {
		item.SummedLoad = *req.SummedLoad
	} else {
		item.ComputeSummedLoad()
	}
	if err := item.Validate(); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	ctx := c.Request.Context()
	a, err := h.repo.GetByID(ctx, appID)
	if err != nil {
		log.Printf("application: get %d failed: %v", appID, err)
		fail(c, http.StatusInternalServerError, "Failed to add load item")
		return
	}
	if a == nil {
		fail(c, http.StatusNotFound, "Application not found")
		return
	}
	if err := h.repo.AddLoadItem(ctx, item); err != nil {
		log.Printf("application: add load item to %d failed: %v", appID, err)
		fail(c, http.StatusInternalServerError, "Failed to add load item")
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": item.ID, "message": "Load item added successfully"})
}

// DeleteLoadItem removes ?item_id from the application's load table.
func (h *Handler) DeleteLoadItem(c *gin.Context) {
	appID, ok := pathID(c, "app_id")
	if !ok {
		return
	}
	itemID, err := strconv.ParseInt(c.Query("item_id"), 10, 64)
	if err != nil || itemID <= 0 {
		fail(c, http.StatusBadRequest, "item_id is required")
		return
	}
	deleted, err := h.repo.DeleteLoadItem(c.Request.Context(), appID, itemID)
	if err != nil {
		log.Printf("application: delete load item %d of %d failed: %v", itemID, appID, err)
		fail(c, http.StatusInternalServerError, "Failed to delete load item")
		return
	}
	if !deleted {
		fail(c, http.StatusNotFound, "Load item not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Load item deleted successfully"})
}
