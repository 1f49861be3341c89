package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/north-cloud/notify-hub/internal/domain"
)

// UserStore reads the user directory.
type UserStore interface {
	List(ctx context.Context) ([]*domain.User, error)
}

// UserHandler serves the user directory the dashboards use to resolve
// recipient lists.
type UserHandler struct {
	store UserStore
}

// NewUserHandler creates a UserHandler.
func NewUserHandler(store UserStore) *UserHandler {
	return &UserHandler{store: store}
}

// List returns all users.
func (h *UserHandler) List(c *gin.Context) {
	users, err := h.store.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, users)
}
