// Package app assembles the coordinator from its parts.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/aidline/aidline/api/cases"
	"github.com/aidline/aidline/config"
	coreauth "github.com/aidline/aidline/core/auth"
	"github.com/aidline/aidline/core/dispatch"
	"github.com/aidline/aidline/core/lifecycle"
	coremetrics "github.com/aidline/aidline/core/metrics"
	"github.com/aidline/aidline/core/model"
	"github.com/aidline/aidline/core/registry"
	"github.com/aidline/aidline/core/router"
	"github.com/aidline/aidline/core/store"
	infraauth "github.com/aidline/aidline/infra/auth"
	"github.com/aidline/aidline/infra/logger"
	"github.com/aidline/aidline/infra/metrics"
	"github.com/aidline/aidline/infra/mqtt"
	infrastore "github.com/aidline/aidline/infra/store"
	"github.com/aidline/aidline/internal/eventbus"
)

// caseStore is the combined persistence surface the service needs.
type caseStore interface {
	store.CaseRepository
	store.ResponderDirectory
	PutResponder(ctx context.Context, r model.ResponderLocation) error
}

// Service orchestrates the gateway, the planner and the observability
// surfaces.
type Service struct {
	Planner *dispatch.Planner
	Engine  *lifecycle.Engine

	cfg     *config.Config
	reg     *registry.Registry
	bus     eventbus.EventBus
	sink    coremetrics.MetricsSink
	gateway *mqtt.Gateway
	repo    caseStore
	closers []func() error
	log     logger.Logger
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")

	repo, closers, err := newStore(cfg.Store)
	if err != nil {
		return nil, err
	}
	if err := seedResponders(repo, cfg.Store.Responders); err != nil {
		return nil, err
	}

	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}

	reg := registry.New()
	if rec, ok := sink.(coremetrics.ConnectionRecorder); ok {
		reg.OnCountChange(func(n int) { _ = rec.RecordConnectionCount(n) })
	}

	bus := eventbus.New()
	rt := router.New(reg, repo, bus, logger.New("router"))
	engine := lifecycle.NewEngine(repo, rt, logger.New("lifecycle"))
	planner, err := dispatch.NewPlanner(engine, repo, repo, cfg.Dispatch, sink, logger.New("planner"))
	if err != nil {
		return nil, fmt.Errorf("planner: %w", err)
	}

	verifier, err := newVerifier(cfg.Auth)
	if err != nil {
		return nil, err
	}

	gateway, err := mqtt.NewGateway(cfg.MQTT, reg, verifier, planner)
	if err != nil {
		return nil, fmt.Errorf("mqtt gateway: %w", err)
	}

	return &Service{
		Planner: planner,
		Engine:  engine,
		cfg:     cfg,
		reg:     reg,
		bus:     bus,
		sink:    sink,
		gateway: gateway,
		repo:    repo,
		closers: closers,
		log:     logg,
	}, nil
}

// Run starts the HTTP surfaces and the metrics collector and blocks until
// the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	metrics.StartEventCollector(ctx, s.bus, s.sink)

	if addr := s.cfg.Metrics.PrometheusAddr; addr != "" {
		go func() {
			if err := metrics.StartPromServer(ctx, addr); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}

	srv := &http.Server{
		Addr:    s.cfg.API.Addr,
		Handler: cases.NewMux(s.repo, s.cfg.API.Token),
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Errorf("api server shutdown: %v", err)
		}
	}()
	s.log.Infof("api listening on %s", s.cfg.API.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	s.gateway.Disconnect()
	s.bus.Close()
	var firstErr error
	for _, c := range s.closers {
		if err := c(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func newStore(cfg config.StoreConfig) (caseStore, []func() error, error) {
	switch cfg.Backend {
	case "redis":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		rs, err := infrastore.NewRedisStore(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, fmt.Errorf("redis store: %w", err)
		}
		return rs, []func() error{rs.Close}, nil
	default:
		return infrastore.NewMemoryStore(), nil, nil
	}
}

func newVerifier(cfg config.AuthConfig) (coreauth.Verifier, error) {
	switch cfg.Mode {
	case "static":
		table := make(map[string]model.Identity, len(cfg.Static))
		for cred, id := range cfg.Static {
			table[cred] = model.Identity{UserID: id.UserID, Role: model.Role(id.Role)}
		}
		return infraauth.NewStaticVerifier(table), nil
	default:
		return infraauth.NewJWTVerifier(cfg.JWT, nil)
	}
}

func seedResponders(repo caseStore, seeds []config.ResponderSeed) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, s := range seeds {
		avail := model.Availability(s.Availability)
		if avail == "" {
			avail = model.Available
		}
		r := model.ResponderLocation{
			OrganizationID: s.OrganizationID,
			Kind:           model.ResponderKind(s.Kind),
			Lat:            s.Lat,
			Lng:            s.Lng,
			Availability:   avail,
			MemberIDs:      s.MemberIDs,
		}
		if !r.Assignable() {
			return fmt.Errorf("responder %s has unknown kind %s", s.OrganizationID, s.Kind)
		}
		if err := repo.PutResponder(ctx, r); err != nil {
			return fmt.Errorf("seed responder %s: %w", s.OrganizationID, err)
		}
	}
	return nil
}
