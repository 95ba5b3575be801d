package router

import (
	"time"

	"itsm-knowledge-base/config"
	"itsm-knowledge-base/helper"
	"itsm-knowledge-base/repositories"
	"itsm-knowledge-base/services"
	"itsm-knowledge-base/storage"
)

// Services is the fully wired service layer over one storage backend.
type Services struct {
	Auth       services.AuthService
	Articles   services.ArticleService
	Versions   services.VersionService
	Locks      services.LockService
	Comments   services.CommentService
	Categories services.CategoryService
}

// NewServices builds repositories and services over backend. clock may be
// nil for the system clock.
func NewServices(backend storage.Backend, cfg *config.Config, clock services.Clock) *Services {
	if clock == nil {
		clock = services.SystemClock
	}

	userRepo := repositories.NewUserRepository(backend)
	articleRepo := repositories.NewArticleRepository(backend)
	versionRepo := repositories.NewArticleVersionRepository(backend)
	lockRepo := repositories.NewLockRepository(backend)
	commentRepo := repositories.NewCommentRepository(backend)
	categoryRepo := repositories.NewCategoryRepository(backend)

	validator := helper.NewValidator()
	sanitizer := helper.NewSanitizer()
	sections := services.NewKeyedMutex()

	lockTimeout := cfg.LockTimeout
	if lockTimeout <= 0 {
		lockTimeout = services.DefaultLockTimeout
	}

	locks := services.NewLockService(lockRepo, articleRepo, sections, clock, lockTimeout)
	versions := services.NewVersionService(versionRepo, articleRepo, clock)
	categories := services.NewCategoryService(categoryRepo, articleRepo, sanitizer, clock)

	return &Services{
		Auth:     services.NewAuthService(userRepo, cfg.JWT, cfg.AllowRoleSelection),
		Versions: versions,
		Locks:    locks,
		Articles: services.NewArticleService(services.ArticleDeps{
			Articles:   articleRepo,
			Locks:      lockRepo,
			Comments:   commentRepo,
			Versions:   versions,
			Categories: categories,
			Sections:   sections,
			Validator:  validator,
			Sanitizer:  sanitizer,
			Clock:      clock,
		}),
		Comments:   services.NewCommentService(commentRepo, articleRepo, validator, sanitizer, clock),
		Categories: categories,
	}
}

// DefaultConfig is used by tools and tests that do not read the environment.
func DefaultConfig(secret string) *config.Config {
	return &config.Config{
		GinMode:            "test",
		LockTimeout:        services.DefaultLockTimeout,
		RequestTimeout:     15 * time.Second,
		CorsOrigins:        []string{"*"},
		AllowRoleSelection: true,
		JWT:                config.JWTConfig{Secret: []byte(secret), Expiration: time.Hour},
	}
}
