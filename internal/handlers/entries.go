package handlers

import (
	"errors"
	"net/http"

	"atmeex_cloud/internal/repository"

	"github.com/gin-gonic/gin"
)

const (
	statusRemoved = "removed"

	errListEntries  = "failed to load config entries"
	errRemoveEntry  = "failed to remove config entry"
	errUnknownEntry = "config entry not found"
)

// @Summary      List configured accounts
// @Tags         entries
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "count, entries"
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/entries [get]
// @Security     BearerAuth
func (h *Handler) listEntries(c *gin.Context) {
	entries, err := h.services.Entries(c.Request.Context())
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errListEntries, "entries_list_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":   len(entries),
		"entries": entries,
	})
}

// @Summary      Remove an account
// @Description  Stops polling, drops its climate entities and deletes the stored entry.
// @Tags         entries
// @Produce      json
// @Param        id   path      string  true  "Entry id"
// @Success      200  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/entries/{id} [delete]
// @Security     BearerAuth
func (h *Handler) deleteEntry(c *gin.Context) {
	id := c.Param("id")
	if err := h.services.RemoveEntry(c.Request.Context(), id); err != nil {
		if errors.Is(err, repository.ErrEntryNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": errUnknownEntry})
			return
		}
		h.logAndJSONError(c, http.StatusInternalServerError, errRemoveEntry, "entries_remove_failed", err, "entry_id", id)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusRemoved, "id": id})
}
