package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"cv-backend/internal/accounts"
	"cv-backend/internal/cv"
	"cv-backend/internal/shared/config"
	"cv-backend/internal/shared/metrics"
	"cv-backend/internal/shared/server/middleware"
	"cv-backend/internal/shared/server/respond"
)

const (
	rateGroupAuth   = "AUTH"
	rateGroupExport = "EXPORT"
)

// RouterDeps carries the handlers mounted on the API.
type RouterDeps struct {
	Config     config.Config
	Verifier   middleware.TokenVerifier
	Accounts   *accounts.Handler
	GoogleAuth *accounts.GoogleHandler
	CV         *cv.Handler
	// Now overrides the rate limiter clock in tests.
	Now func() time.Time
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	if !deps.Config.IsDevLike() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
		middleware.Auth(deps.Verifier),
	)

	limiter := middleware.NewRateLimiter(deps.Now)
	limit := middleware.RateLimit(middleware.RateLimitConfig{
		Rules: map[string]middleware.RateLimitRule{
			rateGroupAuth:   {Rate: 1, Burst: 10},
			rateGroupExport: {Rate: 0.2, Burst: 3},
		},
		GroupFor: middleware.GroupByPrefix(map[string]string{
			"/api/v1/auth/":     rateGroupAuth,
			"/api/v1/cv/export": rateGroupExport,
		}),
		Limiter: limiter,
	})

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		respond.JSON(c, http.StatusOK, gin.H{"ok": true})
	})
	api.GET("/metrics", metrics.Handler())

	authGroup := api.Group("", limit)
	if deps.Accounts != nil {
		deps.Accounts.RegisterRoutes(authGroup)
	}
	if deps.GoogleAuth != nil {
		deps.GoogleAuth.RegisterRoutes(authGroup)
	}
	if deps.CV != nil {
		deps.CV.RegisterRoutes(api, limit)
	}
	return r
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
