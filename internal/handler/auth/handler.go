package auth

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-api/internal/handler"
	"github.com/jwalitptl/clinic-api/internal/middleware"
	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/pkg/httputil"
)

type Service interface {
	Login(ctx context.Context, email, password string) (*model.TokenResponse, error)
}

type Handler struct {
	handler.BaseHandler
	svc  Service
	auth *middleware.AuthMiddleware
}

func NewHandler(svc Service, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{svc: svc, auth: auth}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	auth := r.Group("/auth")
	{
		auth.POST("/login", h.Login)
		auth.GET("/me", h.auth.Authenticate(), h.Me)
	}
}

func (h *Handler) Login(c *gin.Context) {
	var req model.LoginRequest
	if !h.BindJSON(c, &req) {
		return
	}

	tokens, err := h.svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, tokens)
}

// Me echoes the identity carried by the token.
func (h *Handler) Me(c *gin.Context) {
	claims, ok := h.Caller(c)
	if !ok {
		return
	}
	httputil.RespondWithSuccess(c, gin.H{
		"user_id":   claims.UserID,
		"clinic_id": claims.ClinicID,
		"branch_id": claims.BranchID,
		"email":     claims.Email,
		"role":      claims.Role,
	})
}
