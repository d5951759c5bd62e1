package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fdg312/nutri-plans/internal/access"
	"github.com/fdg312/nutri-plans/internal/config"
	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken   = errors.New("invalid token")
	ErrInvalidRequest = errors.New("invalid request")
)

// Service issues and verifies access tokens. Real sign-in lives outside this
// service; tokens are minted here only for AUTH_MODE=dev and tests.
type Service struct {
	config *config.Config
}

func NewService(cfg *config.Config) *Service {
	return &Service{config: cfg}
}

// SignInDev — dev-авторизация: выдаёт токен для произвольного актора
func (s *Service) SignInDev(ctx context.Context, req DevAuthRequest) (*DevAuthResponse, error) {
	_ = ctx

	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user_id is required", ErrInvalidRequest)
	}
	role, err := access.ParseRole(req.Role)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	patientID := strings.TrimSpace(req.PatientID)
	if patientID != "" && role != access.RolePatient {
		return nil, fmt.Errorf("%w: patient_id is only valid for role PATIENT", ErrInvalidRequest)
	}

	ttl := time.Duration(s.config.JWTTTLMinutes) * time.Minute
	token, err := s.IssueToken(access.Actor{ID: userID, Role: role, PatientID: patientID}, ttl)
	if err != nil {
		return nil, fmt.Errorf("failed to generate dev JWT: %w", err)
	}

	return &DevAuthResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(ttl.Seconds()),
	}, nil
}

// IssueToken signs an HS256 token carrying the actor.
func (s *Service) IssueToken(actor access.Actor, ttl time.Duration) (string, error) {
	now := time.Now()
	exp := now.Add(ttl)

	claims := jwt.MapClaims{
		"sub":  actor.ID,
		"role": string(actor.Role),
		"iss":  s.config.JWTIssuer,
		"exp":  exp.Unix(),
		"iat":  now.Unix(),
	}
	if actor.PatientID != "" {
		claims["patient_id"] = actor.PatientID
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.JWTSecret))
}

// VerifyToken — проверка JWT токена
func (s *Service) VerifyToken(tokenString string) (access.Actor, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.JWTSecret), nil
	}, jwt.WithIssuer(s.config.JWTIssuer), jwt.WithExpirationRequired())
	if err != nil {
		return access.Actor{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return access.Actor{}, ErrInvalidToken
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return access.Actor{}, ErrInvalidToken
	}
	roleStr, _ := claims["role"].(string)
	role, err := access.ParseRole(roleStr)
	if err != nil {
		return access.Actor{}, ErrInvalidToken
	}
	patientID, _ := claims["patient_id"].(string)

	return access.Actor{ID: sub, Role: role, PatientID: patientID}, nil
}
