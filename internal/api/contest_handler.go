package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wikicontest/wikicontest/internal/models"
	"github.com/wikicontest/wikicontest/internal/service/contest"
	"github.com/wikicontest/wikicontest/internal/service/leaderboard"
	"github.com/wikicontest/wikicontest/internal/service/submission"
	"github.com/wikicontest/wikicontest/pkg/logger"
)

// ContestHandler handles contest, leaderboard and per-contest submission requests.
// The :id parameter accepts a numeric id or a slug.
type ContestHandler struct {
	contests    *contest.Service
	submissions *submission.Service
	leaderboard *leaderboard.Service
	log         *logger.Logger
}

// NewContestHandler creates a new contest handler.
func NewContestHandler(
	contests *contest.Service,
	submissions *submission.Service,
	lb *leaderboard.Service,
	log *logger.Logger,
) *ContestHandler {
	return &ContestHandler{contests: contests, submissions: submissions, leaderboard: lb, log: log}
}

// List returns the contests of a category.
// GET /api/contest/?category=current.
func (h *ContestHandler) List(c *gin.Context) {
	category := c.DefaultQuery("category", contest.CategoryAll)

	views, err := h.contests.List(c.Request.Context(), category)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"contests": views,
		"category": category,
		"total":    len(views),
	})
}

// Create defines a new contest owned by the current user.
// POST /api/contest/.
func (h *ContestHandler) Create(c *gin.Context) {
	var in contest.CreateInput
	if !bindJSON(c, &in) {
		return
	}

	created, err := h.contests.Create(c.Request.Context(), currentUser(c), in)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Contest created successfully",
		"contest": h.contests.View(created),
	})
}

// Get returns one contest.
// GET /api/contest/:id.
func (h *ContestHandler) Get(c *gin.Context) {
	found, ok := h.resolve(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"contest": h.contests.View(found)})
}

// Update applies a partial update.
// PUT /api/contest/:id.
func (h *ContestHandler) Update(c *gin.Context) {
	found, ok := h.resolve(c)
	if !ok {
		return
	}
	var in contest.UpdateInput
	if !bindJSON(c, &in) {
		return
	}

	updated, err := h.contests.Update(c.Request.Context(), currentUser(c), found.ID, in)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Contest updated successfully",
		"contest": h.contests.View(updated),
	})
}

// Delete removes a contest with its submissions.
// DELETE /api/contest/:id.
func (h *ContestHandler) Delete(c *gin.Context) {
	found, ok := h.resolve(c)
	if !ok {
		return
	}

	if err := h.contests.Delete(c.Request.Context(), currentUser(c), found.ID); err != nil {
		fail(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Contest deleted successfully"})
}

// Leaderboard ranks the contest's participants.
// GET /api/contest/:id/leaderboard.
func (h *ContestHandler) Leaderboard(c *gin.Context) {
	found, ok := h.resolve(c)
	if !ok {
		return
	}

	entries, err := h.leaderboard.ContestLeaderboard(c.Request.Context(), found.ID)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"contest_id":    found.ID,
		"leaderboard":   entries,
		"total_entries": len(entries),
		"generated_at":  time.Now().UTC(),
	})
}

// Submit enters an article into the contest.
// POST /api/contest/:id/submit.
func (h *ContestHandler) Submit(c *gin.Context) {
	found, ok := h.resolve(c)
	if !ok {
		return
	}
	var in submission.SubmitInput
	if !bindJSON(c, &in) {
		return
	}

	created, err := h.submissions.Submit(c.Request.Context(), currentUser(c), found.ID, in)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message":    "Submission created successfully",
		"submission": created,
	})
}

// Submissions lists the contest's submissions to its creator and jury.
// GET /api/contest/:id/submissions.
func (h *ContestHandler) Submissions(c *gin.Context) {
	found, ok := h.resolve(c)
	if !ok {
		return
	}

	subs, err := h.submissions.List(c.Request.Context(), currentUser(c), found.ID)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"submissions": subs,
		"total":       len(subs),
	})
}

// RefreshMetadata refetches article metadata for the contest's submissions.
// POST /api/contest/:id/refresh-metadata.
func (h *ContestHandler) RefreshMetadata(c *gin.Context) {
	found, ok := h.resolve(c)
	if !ok {
		return
	}

	result, err := h.submissions.RefreshMetadata(c.Request.Context(), currentUser(c), found.ID)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *ContestHandler) resolve(c *gin.Context) (*models.Contest, bool) {
	found, err := h.contests.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, h.log, err)
		return nil, false
	}
	return found, true
}
