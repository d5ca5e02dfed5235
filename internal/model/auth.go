package model

import (
	"encoding/json"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

func (r *LoginRequest) UnmarshalJSON(data []byte) error {
	type plain LoginRequest
	if err := json.Unmarshal(data, (*plain)(r)); err != nil {
		return err
	}
	r.Email = strings.TrimSpace(r.Email)
	return nil
}

type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresIn   int64     `json:"expires_in"`
	UserID      uuid.UUID `json:"user_id"`
	Role        UserRole  `json:"role"`
}

// TokenClaims represents JWT claims
type TokenClaims struct {
	jwt.RegisteredClaims
	UserID   uuid.UUID  `json:"user_id"`
	ClinicID uuid.UUID  `json:"clinic_id"`
	BranchID *uuid.UUID `json:"branch_id,omitempty"`
	Email    string     `json:"email"`
	Role     UserRole   `json:"role"`
}
