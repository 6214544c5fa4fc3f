// Package reconcile runs one reconciliation pass for a host argument record.
package reconcile

import (
	"context"

	"github.com/alexisbeaulieu97/ccreconcile/internal/config"
	domain "github.com/alexisbeaulieu97/ccreconcile/internal/domain/reconcile"
	"github.com/alexisbeaulieu97/ccreconcile/internal/engine"
	"github.com/alexisbeaulieu97/ccreconcile/internal/gateway"
	"github.com/alexisbeaulieu97/ccreconcile/internal/infrastructure/events"
	"github.com/alexisbeaulieu97/ccreconcile/internal/ports"
)

// GatewayFactory builds the controller gateway for a pass.
type GatewayFactory func(opts gateway.Options) (ports.Gateway, error)

// DefaultGatewayFactory returns the HTTPS client.
func DefaultGatewayFactory(opts gateway.Options) (ports.Gateway, error) {
	return gateway.New(opts)
}

// Service wires arguments, gateway and driver together and publishes pass
// and item events.
type Service struct {
	registry   ports.ResourceRegistry
	newGateway GatewayFactory
	logger     ports.Logger
	events     ports.EventPublisher
	metrics    ports.MetricsCollector
	driverOpts []engine.Option
}

// Option customises a Service.
type Option func(*Service)

// WithGatewayFactory replaces the HTTPS gateway.
func WithGatewayFactory(f GatewayFactory) Option {
	return func(s *Service) {
		if f != nil {
			s.newGateway = f
		}
	}
}

// WithEvents attaches an event publisher.
func WithEvents(p ports.EventPublisher) Option {
	return func(s *Service) { s.events = p }
}

// WithMetrics attaches a metrics collector.
func WithMetrics(m ports.MetricsCollector) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithDriverOptions forwards options to every driver the service builds.
func WithDriverOptions(opts ...engine.Option) Option {
	return func(s *Service) { s.driverOpts = append(s.driverOpts, opts...) }
}

// NewService constructs a Service.
func NewService(registry ports.ResourceRegistry, logger ports.Logger, opts ...Option) *Service {
	s := &Service{
		registry:   registry,
		newGateway: DefaultGatewayFactory,
		logger:     logger,
		metrics:    ports.NoopMetrics{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Validate checks the argument record and every config item without
// contacting the controller.
func (s *Service) Validate(ctx context.Context, args *config.ModuleArgs) error {
	cfg, err := args.PassConfig()
	if err != nil {
		return invalidSettings(err)
	}
	driver := engine.New(nil, s.registry, s.driverOptions()...)
	if err := driver.Validate(cfg, args.Records()); err != nil {
		s.warn(ctx, "configuration rejected", "error", err)
		return err
	}
	s.info(ctx, "configuration valid", "items", len(args.Config), "state", cfg.State.Label())
	return nil
}

// Run executes one pass. The context receives a correlation id when it has
// none. Failures are reported in the returned report, never as panics.
func (s *Service) Run(ctx context.Context, args *config.ModuleArgs) domain.Report {
	if ports.GetCorrelationID(ctx) == "" {
		ctx = ports.WithCorrelationID(ctx, ports.GenerateCorrelationID())
	}

	cfg, err := args.PassConfig()
	if err != nil {
		return s.abort(ctx, cfg, invalidSettings(err))
	}

	gw, err := s.newGateway(gateway.Options{
		Host:            args.Host,
		Port:            args.Port,
		Username:        args.Username,
		Password:        args.Password,
		Verify:          args.Verify,
		RateLimit:       args.RateLimit,
		StrictResponses: args.ValidateResponseSchema,
		Logger:          s.component("gateway"),
		Metrics:         s.metrics,
	})
	if err != nil {
		return s.abort(ctx, cfg, err)
	}

	s.publish(ctx, events.PassStarted(cfg, len(args.Config)))
	s.info(ctx, "pass started",
		"host", args.Host,
		"state", cfg.State.Label(),
		"items", len(args.Config),
		"check_mode", cfg.DryRun,
	)

	opts := append(s.driverOptions(), engine.WithItemHook(func(ctx context.Context, result domain.ItemResult) {
		s.publish(ctx, events.ItemFinished(result))
	}))
	report := engine.New(gw, s.registry, opts...).Run(ctx, cfg, args.Records())

	s.finish(ctx, report)
	return report
}

func invalidSettings(err error) error {
	if domain.CodeOf(err) == domain.ErrCodeValidation {
		return err
	}
	return domain.NewValidationError(err.Error(), nil)
}

func (s *Service) driverOptions() []engine.Option {
	opts := []engine.Option{engine.WithMetrics(s.metrics)}
	if logger := s.component("driver"); logger != nil {
		opts = append(opts, engine.WithLogger(logger))
	}
	return append(opts, s.driverOpts...)
}

func (s *Service) abort(ctx context.Context, cfg domain.PassConfig, err error) domain.Report {
	s.warn(ctx, "pass aborted", "error", err)
	builder := domain.NewReportBuilder(cfg.DryRun)
	builder.Abort(err)
	report := builder.Build()
	s.finish(ctx, report)
	return report
}

func (s *Service) finish(ctx context.Context, report domain.Report) {
	s.metrics.IncCounter(ctx, ports.MetricPassesTotal, map[string]string{"status": string(report.Status)})
	s.publish(ctx, events.PassFinished(report))
}

func (s *Service) publish(ctx context.Context, event ports.DomainEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.warn(ctx, "failed to publish domain event", "event_type", event.EventType(), "error", err)
	}
}

func (s *Service) component(name string) ports.Logger {
	if s.logger == nil {
		return nil
	}
	return s.logger.With("component", name)
}

func (s *Service) info(ctx context.Context, msg string, fields ...interface{}) {
	if s.logger != nil {
		s.logger.Info(ctx, msg, fields...)
	}
}

func (s *Service) warn(ctx context.Context, msg string, fields ...interface{}) {
	if s.logger != nil {
		s.logger.Warn(ctx, msg, fields...)
	}
}
