// Package apiserver assembles the HTTP service from its configuration and
// runs it until a shutdown signal.
package apiserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"taskhub/internal/authmw"
	"taskhub/internal/cache"
	"taskhub/internal/config"
	"taskhub/internal/mstats"
	"taskhub/internal/mtask"
	"taskhub/internal/muser"
	"taskhub/internal/notify"
	"taskhub/internal/observability"
)

const (
	apiPrefix   = "/api"
	serviceName = "taskhub"
	cachePrefix = "taskhub:cache:"
)

type Server struct {
	cfg      config.Config
	log      *logrus.Logger
	backends Backends

	engine   *gin.Engine
	registry *prometheus.Registry
	metrics  *observability.Metrics
	cache    *cache.Cache
	bus      *notify.Bus
	keyset   *authmw.KeySet
	cron     *cron.Cron
}

// New wires a server over b. Nothing runs until Start.
func New(cfg config.Config, log *logrus.Logger, b Backends) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Server{
		cfg:      cfg,
		log:      log,
		backends: b,
		registry: prometheus.NewRegistry(),
		cron:     cron.New(),
	}
	s.metrics = observability.NewMetrics(s.registry)
	s.cache = cache.New(b.Redis, cachePrefix, cfg.CacheTTL, log, s.metrics)

	var pub notify.Publisher = notify.NopPublisher
	if b.Redis != nil {
		pub = notify.NewRedisPublisher(b.Redis)
	}
	var mailer notify.Mailer = notify.NopMailer
	smtpCfg := notify.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.MailFrom,
	}
	if smtpCfg.Enabled() {
		mailer = notify.NewSMTPMailer(smtpCfg)
	} else {
		log.Info("SMTP is not configured, assignment mails are skipped")
	}
	s.bus = notify.NewBus(pub, mailer, notify.Options{
		Workers:   cfg.NotifyWorkers,
		QueueSize: cfg.NotifyQueue,
		Timeout:   cfg.NotifyTimeout,
	}, log, s.metrics)

	tokens, err := authmw.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.TokenTTL)
	if err != nil {
		return nil, err
	}
	verifiers := []authmw.Verifier{tokens}
	if cfg.JWKSURL != "" {
		ks, err := authmw.NewKeySet(cfg.JWKSURL, cfg.JWKSIssuer, cfg.JWKSAudience)
		if err != nil {
			return nil, err
		}
		s.keyset = ks
		verifiers = append(verifiers, ks)
	}
	resolver := authmw.NewResolver(b.Store, b.Store, verifiers...)

	if err := schedulePurge(s.cron, cfg.RevocationPurgeSpec, b.Store, log); err != nil {
		return nil, err
	}

	s.engine = gin.New()
	s.engine.Use(gin.Recovery(), observability.RequestLogger(log), s.metrics.GinMiddleware())
	s.setCors()
	s.setRoutes(resolver, tokens)
	return s, nil
}

func (s *Server) setCors() {
	corsconfig := cors.DefaultConfig()
	corsconfig.AllowOrigins = s.cfg.AllowedOrigins
	corsconfig.AllowMethods = s.cfg.AllowedMethods
	corsconfig.AllowHeaders = s.cfg.AllowedHeaders
	s.engine.Use(cors.New(corsconfig))
}

func (s *Server) setRoutes(resolver *authmw.Resolver, tokens *authmw.TokenManager) {
	root := s.engine.Group("/")
	{
		root.GET("/healthz", s.handleHealth)
		if s.cfg.MetricsEnabled {
			root.GET("/metrics", gin.WrapH(observability.Handler(s.registry)))
		}
	}

	st := s.backends.Store
	api := s.engine.Group(apiPrefix)
	muser.New(muser.Deps{
		Users:    st,
		Revoked:  st,
		Tokens:   tokens,
		Resolver: resolver,
		Cache:    s.cache,
		Log:      s.log,
	}).SetRoutes(api)

	secure := api.Group("", resolver.Require())
	mtask.New(mtask.Deps{
		Tasks:    st,
		Users:    st,
		Cache:    s.cache,
		Notifier: s.bus,
		Log:      s.log,
		ListTTL:  s.cfg.ListCacheTTL,
	}).SetRoutes(secure)
	mstats.New(mstats.Deps{
		Tasks: st,
		Users: st,
		Cache: s.cache,
		Log:   s.log,
	}).SetRoutes(secure)
}

func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	body := gin.H{"status": "alive", "store": "ok", "cache": "disabled"}
	if err := s.backends.Store.Ping(ctx); err != nil {
		status = http.StatusServiceUnavailable
		body["status"] = "degraded"
		body["store"] = err.Error()
	}
	if s.cache.Available() {
		body["cache"] = "ok"
		if err := s.cache.Ping(ctx); err != nil {
			body["cache"] = "unreachable"
		}
	}
	c.JSON(status, body)
}

// Handler is the root handler, traced with otelhttp.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.engine, serviceName)
}

// Start launches the notification workers and the scheduled jobs.
func (s *Server) Start() {
	s.bus.Start()
	s.cron.Start()
}

// Shutdown stops background work and releases the backends. The queue is
// drained within ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	<-s.cron.Stop().Done()

	var errs []error
	if err := s.bus.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if s.keyset != nil {
		s.keyset.Close()
	}
	if s.backends.Redis != nil {
		if err := s.backends.Redis.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.backends.Store.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
