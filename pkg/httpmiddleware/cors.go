package httpmiddleware

import (
	"net/http"

	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// CORSConfig configures Cross-Origin Resource Sharing.
type CORSConfig struct {
	// AllowOrigins lists allowed origins. Empty or "*" allows any origin.
	AllowOrigins     []string
	AllowMethods     []string
	AllowHeaders     []string
	ExposeHeaders    []string
	AllowCredentials bool
	// MaxAge is the preflight cache lifetime in seconds.
	MaxAge int
}

// CORS returns a go-chi/cors middleware. When lg is non-nil, CORS decisions
// are logged at Debug.
func CORS(cfg CORSConfig, lg *zap.Logger) Middleware {
	origins := cfg.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	methods := cfg.AllowMethods
	if len(methods) == 0 {
		methods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   methods,
		AllowedHeaders:   cfg.AllowHeaders,
		ExposedHeaders:   cfg.ExposeHeaders,
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           cfg.MaxAge,
	})
	// Options.Log is not propagated by cors.New.
	if lg != nil {
		if std, err := zap.NewStdLogAt(lg.Named("cors"), zap.DebugLevel); err == nil {
			c.Log = std
		}
	}
	return c.Handler
}
