package v1

import (
	"net/http"
	"time"

	"go-panelworks-backend/config"
	"go-panelworks-backend/internal/delivery/http/middleware"
	"go-panelworks-backend/internal/delivery/http/response"
	"go-panelworks-backend/internal/domain"
	"go-panelworks-backend/pkg/apperror"
	"go-panelworks-backend/pkg/security"

	"github.com/gin-gonic/gin"
)

type RouterDeps struct {
	ContactUC domain.ContactUsecase
	Limiter   *security.SubmissionLimiter
	Config    *config.Config
}

func NewRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()

	// CORS must be first so preflights and error responses carry the headers
	r.Use(middleware.CORSMiddleware())
	r.Use(gin.Recovery())
	r.Use(gin.Logger())
	r.Use(middleware.RequestID())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.ErrorHandler())

	// Wrong verb on a known route answers 405, not gin's default 404
	r.HandleMethodNotAllowed = true
	r.NoMethod(func(c *gin.Context) {
		c.Error(apperror.MethodNotAllowed())
	})

	api := r.Group("/api")

	api.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, "System operational")
	})

	window := time.Duration(deps.Config.RateLimitWindowSeconds) * time.Second
	rateLimit := middleware.SubmissionRateLimit(deps.Limiter, deps.Config.RateLimitPerWindow, window)

	NewContactHandler(api, deps.ContactUC, deps.Config, rateLimit)

	return r
}
