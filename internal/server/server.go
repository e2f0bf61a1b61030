// Package server exposes the remediation webhook over HTTP.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/leonardo-meireles/vm-remediator/pkg/errors"
	"github.com/leonardo-meireles/vm-remediator/pkg/metrics"
	"github.com/leonardo-meireles/vm-remediator/pkg/remediation"
	"github.com/leonardo-meireles/vm-remediator/pkg/security"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

// Options tune the listener. A zero RateLimit disables limiting.
type Options struct {
	RateLimit float64
	RateBurst int
}

// Server routes probe reports to a Remediator.
type Server struct {
	router     *gin.Engine
	validator  *security.Validator
	remediator remediation.Remediator
	metrics    *metrics.Metrics
}

// New builds the router. m may be nil, in which case /metrics is not served.
func New(validator *security.Validator, remediator remediation.Remediator, m *metrics.Metrics, opts Options) *Server {
	s := &Server{
		router:     gin.New(),
		validator:  validator,
		remediator: remediator,
		metrics:    m,
	}

	s.router.Use(RecoveryMiddleware(), LoggingMiddleware(), otelgin.Middleware("vm-remediator"))

	s.router.GET("/healthz", s.handleHealth)
	if m != nil {
		s.router.GET("/metrics", gin.WrapH(m.Handler()))
	}

	webhook := s.router.Group("/")
	if opts.RateLimit > 0 {
		limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), opts.RateBurst)
		webhook.Use(RateLimitMiddleware(limiter, func() { s.metrics.Report("rate_limited") }))
	}
	webhook.POST("/", s.handleRemediate)
	webhook.POST("/remediate", s.handleRemediate)

	return s
}

// Handler returns the router as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then drains in-flight
// requests for up to ten seconds.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server_listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return errors.Wrap(err, "server failed")
	case <-ctx.Done():
	}

	slog.Info("server_shutdown", "addr", addr)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "server shutdown failed")
	}
	return nil
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleRemediate(c *gin.Context) {
	headerSecret := c.GetHeader(security.HeaderSecret)

	var payload security.Payload
	if err := c.ShouldBindJSON(&payload); err != nil {
		slog.Warn("webhook_body_invalid", "error", err)
		s.respondError(c, security.Malformed(err))
		return
	}

	slog.Info("webhook_received",
		"response_state", payload.ResponseState,
		"header_secret_present", headerSecret != "",
		"payload_secret_present", payload.Secret != "",
	)

	report, err := s.validator.Validate(headerSecret, payload)
	if err != nil {
		s.respondError(c, err)
		return
	}

	out, err := s.remediator.Remediate(c.Request.Context(), *report)
	if err != nil {
		s.respondError(c, err)
		return
	}

	s.metrics.Report(remediation.ResultLabel(nil))
	trace.SpanFromContext(c.Request.Context()).SetAttributes(
		attribute.String("remediation.result", remediation.ResultLabel(nil)),
		attribute.String("remediation.instance", out.Instance.Name),
		attribute.String("remediation.action", string(out.Action)),
	)
	c.JSON(http.StatusOK, out)
}

// StatusFor maps an error kind to the response code.
func StatusFor(err error) int {
	switch errors.KindOf(err) {
	case errors.KindAuthorization, errors.KindSignalValidation:
		return http.StatusForbidden
	case errors.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondError(c *gin.Context, err error) {
	kind := errors.KindOf(err)
	status := StatusFor(err)
	s.metrics.Report(remediation.ResultLabel(err))
	trace.SpanFromContext(c.Request.Context()).SetAttributes(attribute.String("remediation.result", remediation.ResultLabel(err)))

	body := gin.H{"error": kind.String(), "message": err.Error()}
	if status == http.StatusForbidden {
		// Authorization and signal rejections are indistinguishable to the caller.
		body = gin.H{"error": "forbidden", "message": "request rejected"}
	}
	if instance := errors.InstanceOf(err); instance != "" {
		body["instance"] = instance
	}

	slog.Warn("webhook_rejected", "status", status, "kind", kind.String(), "instance", errors.InstanceOf(err))
	c.JSON(status, body)
}
