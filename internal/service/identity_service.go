package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/noah-isme/lesson-scheduler-api/internal/models"
	appErrors "github.com/noah-isme/lesson-scheduler-api/pkg/errors"
)

type tutorRepository interface {
	ListManagedStudentIDs(ctx context.Context, tutorID string) ([]string, error)
}

// IdentityConfig configures access token verification.
type IdentityConfig struct {
	Secret string
	Issuer string
}

// IdentityService turns access tokens issued by the authentication layer into actors.
type IdentityService struct {
	tutors tutorRepository
	config IdentityConfig
	logger *zap.Logger
}

// NewIdentityService constructs an IdentityService.
func NewIdentityService(tutors tutorRepository, cfg IdentityConfig, logger *zap.Logger) *IdentityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IdentityService{tutors: tutors, config: cfg, logger: logger}
}

// ValidateToken parses and validates an access token returning the claims.
func (s *IdentityService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if s.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.config.Issuer))
	}
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.Secret), nil
	}, opts...)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid || strings.TrimSpace(claims.UserID) == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	return claims, nil
}

// ResolveActor maps claims to the matching actor variant. Tutors carry the
// students they actively manage.
func (s *IdentityService) ResolveActor(ctx context.Context, claims *models.JWTClaims) (models.Actor, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	switch claims.Role {
	case models.RoleTeacher:
		return models.TeacherActor{ID: claims.UserID}, nil
	case models.RoleStudent:
		return models.StudentActor{ID: claims.UserID}, nil
	case models.RoleTutor:
		if s.tutors == nil {
			return nil, appErrors.Clone(appErrors.ErrInternal, "tutor directory unavailable")
		}
		ids, err := s.tutors.ListManagedStudentIDs(ctx, claims.UserID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve tutor students")
		}
		return models.TutorActor{ID: claims.UserID, ManagedStudentIDs: ids}, nil
	case models.RoleAdmin, models.RoleSuperAdmin:
		return models.AdminActor{ID: claims.UserID, Role: claims.Role}, nil
	default:
		s.logger.Warn("token carries unknown role", zap.String("user_id", claims.UserID), zap.String("role", string(claims.Role)))
		return nil, appErrors.Clone(appErrors.ErrForbidden, "role not permitted")
	}
}
