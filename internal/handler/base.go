package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/middleware"
	"github.com/jwalitptl/clinic-api/internal/model"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/httputil"
	"github.com/jwalitptl/clinic-api/pkg/validator"
)

// BaseHandler holds the request plumbing shared by the staff handlers:
// binding, path parameters and the tenant scope carried by the token.
type BaseHandler struct{}

// BindJSON decodes the body into obj and writes a 400 with one reason per
// field on failure.
func (h *BaseHandler) BindJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			httputil.RespondWithError(c, apperrors.BadRequest("request body too large", err))
			return false
		}
		httputil.RespondWithValidation(c, validator.Reasons(err))
		return false
	}
	return true
}

// UUIDParam parses a path parameter, answering 400 when it is malformed.
func (h *BaseHandler) UUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid "+name, err))
		return uuid.Nil, false
	}
	return id, true
}

// Caller returns the authenticated staff member or writes a 401.
func (h *BaseHandler) Caller(c *gin.Context) (*model.TokenClaims, bool) {
	claims, ok := middleware.Claims(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthorized(""))
		return nil, false
	}
	return claims, true
}

// AuthorizeClinic checks that the caller belongs to clinicID.
func (h *BaseHandler) AuthorizeClinic(c *gin.Context, claims *model.TokenClaims, clinicID uuid.UUID) bool {
	if claims.ClinicID != clinicID {
		httputil.RespondWithError(c, apperrors.Forbidden("resource belongs to another clinic"))
		return false
	}
	return true
}

// AuthorizeBranch checks the clinic and, for staff tied to a branch other
// than admins, the branch.
func (h *BaseHandler) AuthorizeBranch(c *gin.Context, claims *model.TokenClaims, clinicID, branchID uuid.UUID) bool {
	if !h.AuthorizeClinic(c, claims, clinicID) {
		return false
	}
	if claims.Role == model.UserRoleAdmin || claims.BranchID == nil {
		return true
	}
	if *claims.BranchID != branchID {
		httputil.RespondWithError(c, apperrors.Forbidden("resource belongs to another branch"))
		return false
	}
	return true
}
