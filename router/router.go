package router

import (
	"time"

	"itsm-knowledge-base/config"
	"itsm-knowledge-base/handlers"
	"itsm-knowledge-base/middleware"
	"itsm-knowledge-base/models"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func SetupRouter(cfg *config.Config, svc *Services) *gin.Engine {
	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.Metrics())
	router.Use(corsMiddleware(cfg.CorsOrigins))

	router.GET("/health", handlers.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authHandler := handlers.NewAuthHandler(svc.Auth)
	articleHandler := handlers.NewArticleHandler(svc.Articles, svc.Versions)
	lockHandler := handlers.NewLockHandler(svc.Locks)
	commentHandler := handlers.NewCommentHandler(svc.Comments)
	categoryHandler := handlers.NewCategoryHandler(svc.Categories)

	can := middleware.RequirePermission

	v1 := router.Group("/api/v1")
	v1.Use(middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst).Middleware())
	v1.Use(middleware.Timeout(cfg.RequestTimeout))
	{
		// Auth routes (public)
		auth := v1.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
		}

		// Protected routes
		protected := v1.Group("/")
		protected.Use(middleware.AuthMiddleware(cfg.JWT))
		{
			protected.GET("/profile", authHandler.GetProfile)
			protected.PUT("/users/:id/role", can(models.PermUserManage), authHandler.UpdateRole)

			articles := protected.Group("/articles")
			{
				articles.GET("", can(models.PermArticleView), articleHandler.GetArticles)
				articles.POST("", can(models.PermArticleCreate), articleHandler.CreateArticle)
				articles.GET("/:id", can(models.PermArticleView), articleHandler.GetArticle)
				articles.PUT("/:id", can(models.PermArticleEditOwn), articleHandler.UpdateArticle)
				articles.DELETE("/:id", can(models.PermArticleDeleteOwn), articleHandler.DeleteArticle)
				articles.DELETE("/:id/permanent", can(models.PermArticleDeleteAll), articleHandler.PermanentDeleteArticle)
				articles.POST("/:id/restore", can(models.PermArticleRestoreOwn), articleHandler.RestoreArticle)
				articles.POST("/:id/publish", can(models.PermArticlePublishOwn), articleHandler.PublishArticle)
				articles.POST("/:id/archive", can(models.PermArticleArchive), articleHandler.ArchiveArticle)

				articles.GET("/:id/lock", can(models.PermArticleView), lockHandler.GetLockStatus)
				articles.POST("/:id/lock", can(models.PermArticleEditOwn), lockHandler.AcquireLock)
				articles.PUT("/:id/lock", can(models.PermArticleEditOwn), lockHandler.RenewLock)
				articles.DELETE("/:id/lock", can(models.PermArticleEditOwn), lockHandler.ReleaseLock)

				articles.GET("/:id/versions", can(models.PermVersionView), articleHandler.GetArticleVersions)
				articles.GET("/:id/versions/compare", can(models.PermVersionView), articleHandler.CompareVersions)
				articles.GET("/:id/versions/:version", can(models.PermVersionView), articleHandler.GetArticleVersion)
				articles.POST("/:id/versions/:version/restore", can(models.PermArticleEditOwn), articleHandler.RestoreVersion)

				articles.GET("/:id/comments", can(models.PermArticleView), commentHandler.GetComments)
				articles.POST("/:id/comments", can(models.PermCommentCreate), commentHandler.CreateComment)
			}

			comments := protected.Group("/comments")
			{
				comments.PUT("/:id", can(models.PermCommentEditOwn), commentHandler.UpdateComment)
				comments.DELETE("/:id", can(models.PermCommentDeleteOwn), commentHandler.DeleteComment)
			}

			categories := protected.Group("/categories")
			{
				categories.GET("", can(models.PermArticleView), categoryHandler.GetCategories)
				categories.GET("/:id", can(models.PermArticleView), categoryHandler.GetCategory)
				categories.POST("", can(models.PermCategoryManage), categoryHandler.CreateCategory)
				categories.PUT("/:id", can(models.PermCategoryManage), categoryHandler.UpdateCategory)
				categories.DELETE("/:id", can(models.PermCategoryManage), categoryHandler.DeleteCategory)
				categories.POST("/reconcile", can(models.PermCategoryManage), categoryHandler.ReconcileCategories)
			}
		}
	}

	return router
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	corsCfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", "X-Change-Reason", middleware.CorrelationIDHeader},
		ExposeHeaders: []string{middleware.CorrelationIDHeader, "Retry-After"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = origins
	}
	return cors.New(corsCfg)
}
