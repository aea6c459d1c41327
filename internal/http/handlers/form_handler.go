// Form HTTP handlers.
//
// This file exposes form definitions so field clients can refresh their
// offline schema cache:
//   - GET /forms/{id} (fetch one form definition with its render schema)
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/obi-nwosu/fieldsync/internal/repo"
)

// GetForm returns a form definition by id. Clients store the response in
// their local schema cache and render from it while offline.
func (h *Handlers) GetForm(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "form id is required")
		return
	}

	form, err := repo.GetForm(c.Request.Context(), h.db, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "form not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not load form")
		return
	}
	ok(c, http.StatusOK, form)
}
