package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wikicontest/wikicontest/internal/service/submission"
	"github.com/wikicontest/wikicontest/pkg/logger"
)

// SubmissionHandler handles submission lookups and reviews.
type SubmissionHandler struct {
	submissions *submission.Service
	log         *logger.Logger
}

// NewSubmissionHandler creates a new submission handler.
func NewSubmissionHandler(submissions *submission.Service, log *logger.Logger) *SubmissionHandler {
	return &SubmissionHandler{submissions: submissions, log: log}
}

// Pending lists the submissions the current user may review.
// GET /api/submission/pending.
func (h *SubmissionHandler) Pending(c *gin.Context) {
	subs, err := h.submissions.Pending(c.Request.Context(), currentUser(c))
	if err != nil {
		fail(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"submissions": subs,
		"total":       len(subs),
	})
}

// Stats returns the current user's submission statistics.
// GET /api/submission/stats.
func (h *SubmissionHandler) Stats(c *gin.Context) {
	stats, err := h.submissions.Stats(c.Request.Context(), currentUser(c))
	if err != nil {
		fail(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Get returns one submission.
// GET /api/submission/:id.
func (h *SubmissionHandler) Get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	sub, err := h.submissions.Get(c.Request.Context(), currentUser(c), id)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"submission": sub})
}

// Review records a jury decision.
// PUT /api/submission/:id.
func (h *SubmissionHandler) Review(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var in submission.ReviewInput
	if !bindJSON(c, &in) {
		return
	}

	reviewed, err := h.submissions.Review(c.Request.Context(), currentUser(c), id, in)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":    "Submission reviewed successfully",
		"submission": reviewed,
	})
}
