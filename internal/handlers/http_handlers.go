package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/logger"

	"stamprally/internal/models"
	"stamprally/internal/services"
)

const participantHeader = "X-Participant-ID"
const adminKeyHeader = "X-Admin-Key"

// HTTPHandler holds the dependencies for the HTTP handlers.
type HTTPHandler struct {
	stamps   *services.StampService
	draw     *services.DrawService
	adminKey string
}

// NewHTTPHandler creates a new HTTPHandler.
func NewHTTPHandler(stamps *services.StampService, draw *services.DrawService, adminKey string) *HTTPHandler {
	return &HTTPHandler{
		stamps:   stamps,
		draw:     draw,
		adminKey: adminKey,
	}
}

// RegisterRoutes registers all the application routes.
func (h *HTTPHandler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api")
	api.POST("/participants", h.RegisterParticipant)
	api.GET("/booths", h.ListBooths)

	rally := api.Group("/")
	rally.Use(h.ParticipantMiddleware())
	rally.POST("/stamps", h.AttemptStamp)
	rally.GET("/progress", h.GetProgress)
	rally.POST("/tickets/refresh", h.RefreshTickets)

	admin := api.Group("/admin")
	admin.Use(h.AdminMiddleware())
	admin.GET("/progress", h.AdminListProgress)
	admin.GET("/lucky-draw/eligible", h.ListEligible)
	admin.GET("/lucky-draw/winners", h.ListWinners)
	admin.POST("/lucky-draw/sample", h.SampleCandidates)
	admin.POST("/lucky-draw/confirm", h.ConfirmWinners)
	admin.POST("/lucky-draw/revoke", h.RevokeWinner)
	admin.POST("/booths", h.UpsertBooth)
	admin.POST("/booths/:id/rotate", h.RotateBoothSecret)
	admin.GET("/booths/:id/rotations", h.ListRotations)
}

// ParticipantMiddleware requires the participant id header on rally routes
// and stores it in the request context.
func (h *HTTPHandler) ParticipantMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader(participantHeader))
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing " + participantHeader + " header"})
			return
		}
		c.Set("userID", userID)
		c.Next()
	}
}

// AdminMiddleware gates the admin routes behind the configured key.
func (h *HTTPHandler) AdminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader(adminKeyHeader) != h.adminKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid admin key"})
			return
		}
		c.Next()
	}
}

type registerParticipantRequest struct {
	UserID    string `json:"user_id" binding:"required"`
	Name      string `json:"name" binding:"required"`
	StudentID string `json:"student_id" binding:"required"`
}

// RegisterParticipant records a new participant identity.
func (h *HTTPHandler) RegisterParticipant(c *gin.Context) {
	var req registerParticipantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	participant, err := h.stamps.RegisterParticipant(req.UserID, req.Name, req.StudentID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, participant)
}

// ListBooths returns the public booth listing.
func (h *HTTPHandler) ListBooths(c *gin.Context) {
	booths, err := h.stamps.ListBooths()
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, booths)
}

// Code is not a required binding on purpose: a blank code is still a
// definitive invalid_code verification outcome, not a malformed request.
type attemptStampRequest struct {
	BoothID int    `json:"booth_id" binding:"required"`
	Code    string `json:"code"`
}

// AttemptStamp handles a stamp claim. Duplicate and wrong-code outcomes are
// definitive results, not transport errors, so they come back 200 with
// accepted=false and a reason category.
func (h *HTTPHandler) AttemptStamp(c *gin.Context) {
	var req attemptStampRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, err := h.stamps.AttemptStamp(c.GetString("userID"), req.BoothID, req.Code)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetProgress returns the caller's rally progress.
func (h *HTTPHandler) GetProgress(c *gin.Context) {
	progress, err := h.stamps.GetProgress(c.GetString("userID"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, progress)
}

// RefreshTickets recomputes the caller's lucky-draw ticket tally.
func (h *HTTPHandler) RefreshTickets(c *gin.Context) {
	count, err := h.stamps.RefreshTickets(c.GetString("userID"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ticket_count": count})
}

// AdminListProgress serves the paged per-participant progress listing.
func (h *HTTPHandler) AdminListProgress(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "50"))
	rows, err := h.stamps.ListProgress(c.Query("search"), c.Query("order"), page, pageSize)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

// ListEligible returns the full lucky-draw pool.
func (h *HTTPHandler) ListEligible(c *gin.Context) {
	entries, err := h.draw.ListEligible()
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

// ListWinners returns confirmed winners.
func (h *HTTPHandler) ListWinners(c *gin.Context) {
	entries, err := h.draw.ListWinners()
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

type sampleRequest struct {
	N int `json:"n" binding:"required"`
}

// SampleCandidates draws a provisional candidate set. Calling it again
// re-rolls; nothing is persisted until confirm.
func (h *HTTPHandler) SampleCandidates(c *gin.Context) {
	var req sampleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	entries, err := h.draw.SampleCandidates(req.N)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

type confirmRequest struct {
	EntryIDs []string `json:"entry_ids" binding:"required"`
}

// ConfirmWinners persists a sampled candidate set as winners.
func (h *HTTPHandler) ConfirmWinners(c *gin.Context) {
	var req confirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	affected, err := h.draw.ConfirmWinners(req.EntryIDs)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"affected": affected})
}

type revokeRequest struct {
	EntryID string `json:"entry_id" binding:"required"`
}

// RevokeWinner returns a winner to the draw pool.
func (h *HTTPHandler) RevokeWinner(c *gin.Context) {
	var req revokeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.draw.RevokeWinner(req.EntryID); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"affected": 1})
}

// UpsertBooth creates or updates a booth, credentials included.
func (h *HTTPHandler) UpsertBooth(c *gin.Context) {
	var booth models.Booth
	if err := c.ShouldBindJSON(&booth); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.stamps.UpsertBooth(&booth); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, booth)
}

type rotateRequest struct {
	Kind string `json:"kind" binding:"required"`
}

// RotateBoothSecret replaces a booth credential and returns the new value.
func (h *HTTPHandler) RotateBoothSecret(c *gin.Context) {
	boothID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid booth id"})
		return
	}
	var req rotateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	secret, err := h.stamps.RotateBoothSecret(boothID, req.Kind)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"new_secret": secret})
}

// ListRotations returns a booth's rotation audit trail.
func (h *HTTPHandler) ListRotations(c *gin.Context) {
	boothID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid booth id"})
		return
	}
	rotations, err := h.stamps.ListRotations(boothID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rotations)
}

// fail maps domain errors to HTTP statuses. Everything in the taxonomy is
// recovered here; only unexpected storage failures log as errors.
func (h *HTTPHandler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrBoothNotFound),
		errors.Is(err, models.ErrParticipantNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrBoothInactive),
		errors.Is(err, models.ErrInsufficientPool),
		errors.Is(err, models.ErrInvalidWinnerSet),
		errors.Is(err, models.ErrAlreadyStamped):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrUnknownSecretKind):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		logger.Errorf("Unhandled error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
