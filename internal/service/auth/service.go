package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/service/audit"
	"github.com/jwalitptl/clinic-api/pkg/auth"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/security"
)

var ErrInvalidCredentials = apperrors.Unauthorized("invalid credentials")

type Service struct {
	userRepo repository.UserRepository
	jwtSvc   auth.JWTService
	hasher   security.PasswordHasher
	auditor  audit.Logger
}

func NewService(userRepo repository.UserRepository, jwtSvc auth.JWTService, hasher security.PasswordHasher, auditor audit.Logger) *Service {
	return &Service{
		userRepo: userRepo,
		jwtSvc:   jwtSvc,
		hasher:   hasher,
		auditor:  auditor,
	}
}

// Login exchanges staff credentials for an access token. Unknown email,
// wrong password and inactive accounts are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (*model.TokenResponse, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, apperrors.Internal(fmt.Errorf("failed to load user: %w", err))
	}

	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		log.Debug().Str("user_id", user.ID.String()).Msg("password mismatch")
		return nil, ErrInvalidCredentials
	}
	if !user.Active {
		return nil, ErrInvalidCredentials
	}

	token, err := s.jwtSvc.GenerateAccessToken(user)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	s.auditor.Log(ctx, user.ID, user.ClinicID, "login", "user", user.ID, &audit.LogOptions{
		Metadata: map[string]interface{}{"role": user.Role},
	})

	return &model.TokenResponse{
		AccessToken: token,
		ExpiresIn:   int64(s.jwtSvc.Expiry().Seconds()),
		UserID:      user.ID,
		Role:        user.Role,
	}, nil
}
