package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"itsm-knowledge-base/config"
	"itsm-knowledge-base/models"
	"itsm-knowledge-base/repositories"
	"itsm-knowledge-base/storage"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type AuthService interface {
	Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error)
	Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	UpdateRole(ctx context.Context, id string, role models.UserRole, p models.Principal) (*models.User, error)
}

type authService struct {
	userRepo           repositories.UserRepository
	jwt                config.JWTConfig
	allowRoleSelection bool
	now                Clock
}

func NewAuthService(userRepo repositories.UserRepository, jwtCfg config.JWTConfig, allowRoleSelection bool) AuthService {
	return &authService{
		userRepo:           userRepo,
		jwt:                jwtCfg,
		allowRoleSelection: allowRoleSelection,
		now:                SystemClock,
	}
}

func (s *authService) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error) {
	// Check if user already exists
	if _, err := s.userRepo.GetByEmail(ctx, req.Email); err == nil {
		return nil, models.NewConflict("user already exists")
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, storageError(err, "user")
	}
	if _, err := s.userRepo.GetByUsername(ctx, req.Username); err == nil {
		return nil, models.NewConflict("username is taken")
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, storageError(err, "user")
	}

	// Role is only honoured when self selection is enabled
	role := models.RoleReader
	if req.Role != "" {
		if !req.Role.Valid() {
			return nil, models.NewValidationFailed([]models.FieldError{{Field: "role", Message: "role must be one of reader, actor, author, editor"}})
		}
		if s.allowRoleSelection {
			role = req.Role
		}
	}

	// Hash password
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, models.NewInternal("failed to hash password", err)
	}

	now := s.now()
	user := &models.User{
		ID:        uuid.NewString(),
		Username:  req.Username,
		Email:     req.Email,
		Password:  string(hashedPassword),
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, storageError(err, "user")
	}

	// Generate token
	token, err := s.generateToken(user)
	if err != nil {
		return nil, err
	}
	slog.Info("User registered", "user_id", user.ID, "role", user.Role)

	return &models.AuthResponse{
		Token: token,
		User:  user.Public(),
	}, nil
}

func (s *authService) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	user, err := s.userRepo.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, models.NewUnauthenticated("invalid credentials")
		}
		return nil, storageError(err, "user")
	}

	// Check password
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, models.NewUnauthenticated("invalid credentials")
	}

	// Generate token
	token, err := s.generateToken(user)
	if err != nil {
		return nil, err
	}

	return &models.AuthResponse{
		Token: token,
		User:  user.Public(),
	}, nil
}

func (s *authService) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, storageError(err, "user")
	}
	public := user.Public()
	return &public, nil
}

func (s *authService) UpdateRole(ctx context.Context, id string, role models.UserRole, p models.Principal) (*models.User, error) {
	if !models.HasPermission(p, models.PermUserManage) {
		return nil, models.NewForbidden("only editors can change roles")
	}
	if !role.Valid() {
		return nil, models.NewValidationFailed([]models.FieldError{{Field: "role", Message: "role must be one of reader, actor, author, editor"}})
	}
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, storageError(err, "user")
	}
	if user.Role == role {
		public := user.Public()
		return &public, nil
	}

	previous := user.Role
	user.Role = role
	user.UpdatedAt = s.now()
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, storageError(err, "user")
	}
	slog.Info("User role changed", "user_id", user.ID, "from", previous, "to", role, "by", p.ID)

	public := user.Public()
	return &public, nil
}

func (s *authService) generateToken(user *models.User) (string, error) {
	now := time.Now()

	claims := jwt.MapClaims{
		"user_id":  user.ID,
		"username": user.Username,
		"role":     user.Role,
		"exp":      now.Add(s.jwt.Expiration).Unix(),
		"iat":      now.Unix(),
		"nbf":      now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedToken, err := token.SignedString(s.jwt.Secret)
	if err != nil {
		return "", models.NewInternal("failed to sign token", err)
	}

	return signedToken, nil
}
