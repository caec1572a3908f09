// Package server carries MCP JSON-RPC over HTTP and websocket and turns
// request headers into the per-call session context the tools need.
package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"

	"lighter-mcp/internal/orders"
	"lighter-mcp/internal/signer"
	"lighter-mcp/internal/tools"
)

const (
	HeaderSession    = "Mcp-Session-Id"
	HeaderDeployment = "X-Deployment-Id"
	HeaderRequestID  = "X-Request-Id"

	maxBodyBytes = 1 << 20
)

// Signers scopes the signing hub to one caller's credentials.
type Signers interface {
	ForCredentials(creds signer.Credentials) signer.Facade
}

type Options struct {
	AllowedOrigins []string
	// Markets is reported by /healthz.
	Markets int
	Version string
}

type Server struct {
	registry *tools.Registry
	signers  Signers
	opts     Options
	log      *logrus.Entry
	upgrader websocket.Upgrader
}

func New(registry *tools.Registry, signers Signers, opts Options, log *logrus.Entry) *Server {
	if opts.Version == "" {
		opts.Version = "dev"
	}
	s := &Server{registry: registry, signers: signers, opts: opts, log: log}
	s.upgrader = websocket.Upgrader{
		HandshakeTimeout: 10 * time.Second,
		CheckOrigin:      s.originAllowed,
	}
	return s
}

// Handler returns the full HTTP surface with CORS applied.
func (s *Server) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/healthz", s.handleHealth)
	r.POST("/mcp", s.handleRPC)
	r.GET("/mcp/ws", s.handleWebSocket)

	c := cors.New(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", HeaderSession, HeaderDeployment},
		ExposedHeaders: []string{HeaderSession, HeaderRequestID},
	})
	return c.Handler(r)
}

// Run serves on addr until ctx is cancelled, then drains in-flight
// requests for up to ten seconds.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("MCP server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown")
	}
	return nil
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(HeaderRequestID, id)
		c.Set("log", s.log.WithField("request_id", id))

		start := time.Now()
		c.Next()

		s.log.WithFields(logrus.Fields{
			"request_id": id,
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"elapsed":    time.Since(start).String(),
		}).Debug("request")
	}
}

func requestLog(c *gin.Context, fallback *logrus.Entry) *logrus.Entry {
	if v, ok := c.Get("log"); ok {
		if l, ok := v.(*logrus.Entry); ok {
			return l
		}
	}
	return fallback
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "markets": s.opts.Markets})
}

// caller builds the session context from request headers. Without a
// bearer token there is no signer, and wallet tools will refuse to run.
func (s *Server) caller(h http.Header, sessionID string) orders.Caller {
	c := orders.Caller{SessionID: sessionID}
	token := bearerToken(h.Get("Authorization"))
	if token != "" && s.signers != nil {
		c.Signer = s.signers.ForCredentials(signer.Credentials{
			Token:        token,
			DeploymentID: h.Get(HeaderDeployment),
		})
	}
	return c
}

func bearerToken(v string) string {
	const prefix = "bearer "
	if len(v) < len(prefix) || !strings.EqualFold(v[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(v[len(prefix):])
}

func (s *Server) originAllowed(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range s.opts.AllowedOrigins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}
