package reconcile

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/Masterminds/semver/v3"
	"github.com/stretchr/testify/require"

	"github.com/alexisbeaulieu97/ccreconcile/internal/config"
	domain "github.com/alexisbeaulieu97/ccreconcile/internal/domain/reconcile"
	"github.com/alexisbeaulieu97/ccreconcile/internal/gateway"
	logginginfra "github.com/alexisbeaulieu97/ccreconcile/internal/infrastructure/logging"
	"github.com/alexisbeaulieu97/ccreconcile/internal/ports"
	"github.com/alexisbeaulieu97/ccreconcile/internal/resources"
	"github.com/alexisbeaulieu97/ccreconcile/internal/schema"
)

func testArgs(records ...schema.Record) *config.ModuleArgs {
	args := config.Defaults()
	args.Host = "cc.example.com"
	args.Username = "admin"
	args.Password = "secret"
	args.Kind = "transit"
	args.Config = records
	return &args
}

func TestServicePublishesEventsWithCorrelationID(t *testing.T) {
	t.Parallel()

	ctx := ports.WithCorrelationID(context.Background(), "corr-123")
	gw := &stubGateway{version: semver.MustParse("2.3.7")}
	events := &recordingPublisher{}
	metrics := &countingMetrics{}

	var seen gateway.Options
	service := NewService(resources.Default(), logginginfra.NewNoOpLogger(),
		WithEvents(events),
		WithMetrics(metrics),
		WithGatewayFactory(func(opts gateway.Options) (ports.Gateway, error) {
			seen = opts
			return gw, nil
		}),
	)

	report := service.Run(ctx, testArgs(
		schema.Record{"name": "T1", "asn": 65001},
		schema.Record{"name": "T2", "asn": 65002},
	))

	require.Equal(t, domain.StatusSuccess, report.Status, report.Msg)
	require.Equal(t, 2, report.Counts.Created)
	require.Equal(t, 2, gw.creates)

	require.Equal(t, "cc.example.com", seen.Host)
	require.True(t, seen.StrictResponses)
	require.True(t, seen.Verify)

	require.Equal(t, []string{
		ports.EventPassStarted,
		ports.EventItemCompleted,
		ports.EventItemCompleted,
		ports.EventPassCompleted,
	}, events.types())
	for _, evt := range events.events {
		require.Equal(t, "corr-123", evt.correlationID)
	}
	require.Equal(t, 1, metrics.count(ports.MetricPassesTotal))
	require.Equal(t, 2, metrics.count(ports.MetricItemsTotal))
}

func TestServiceGeneratesCorrelationID(t *testing.T) {
	t.Parallel()

	events := &recordingPublisher{}
	service := NewService(resources.Default(), nil,
		WithEvents(events),
		WithGatewayFactory(func(gateway.Options) (ports.Gateway, error) {
			return &stubGateway{version: semver.MustParse("2.3.7")}, nil
		}),
	)

	service.Run(context.Background(), testArgs(schema.Record{"name": "T1", "asn": 65001}))
	require.NotEmpty(t, events.events)
	require.Len(t, events.events[0].correlationID, 36)
}

func TestServiceAbortsWhenGatewayCannotBeBuilt(t *testing.T) {
	t.Parallel()

	events := &recordingPublisher{}
	service := NewService(resources.Default(), nil,
		WithEvents(events),
		WithGatewayFactory(func(gateway.Options) (ports.Gateway, error) {
			return nil, domain.NewValidationError("controller host is required", nil)
		}),
	)

	report := service.Run(context.Background(), testArgs(schema.Record{"name": "T1", "asn": 65001}))
	require.True(t, report.Failed())
	require.Equal(t, domain.ErrCodeValidation, report.Error.Kind)
	require.Equal(t, []string{ports.EventPassFailed}, events.types())
}

func TestServiceValidateDoesNotContactController(t *testing.T) {
	t.Parallel()

	service := NewService(resources.Default(), nil, WithGatewayFactory(func(gateway.Options) (ports.Gateway, error) {
		return nil, errors.New("must not be called")
	}))

	require.NoError(t, service.Validate(context.Background(), testArgs(schema.Record{"name": "T1", "asn": 65001})))

	err := service.Validate(context.Background(), testArgs(schema.Record{"name": "T1", "type": "ip"}))
	require.Equal(t, domain.ErrCodeValidation, domain.CodeOf(err))
	require.ErrorContains(t, err, "asn is required")
}

func TestServiceRejectsBadPassSettings(t *testing.T) {
	t.Parallel()

	args := testArgs(schema.Record{"name": "T1", "asn": 65001})
	args.State = "replaced"

	report := NewService(resources.Default(), nil).Run(context.Background(), args)
	require.True(t, report.Failed())
	require.Equal(t, domain.ErrCodeValidation, report.Error.Kind)
	require.Contains(t, report.Msg, "unknown state")
}

// stubGateway accepts every write and reports tasks as finished on the
// first poll.
type stubGateway struct {
	mu      sync.Mutex
	version *semver.Version
	creates int
}

func (g *stubGateway) List(context.Context, domain.Collection, domain.Filter, int, int) (domain.Page, error) {
	return domain.Page{Total: 0}, nil
}

func (g *stubGateway) Get(_ context.Context, coll domain.Collection, id string) (map[string]any, error) {
	return nil, domain.NewNotFoundError(coll.Name, id)
}

func (g *stubGateway) Create(context.Context, domain.Collection, map[string]any) (domain.TaskHandle, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.creates++
	return domain.TaskHandle{Token: "task-1", Request: domain.RequestSnapshot{Operation: domain.OpCreate}}, nil
}

func (g *stubGateway) Update(context.Context, domain.Collection, string, map[string]any) (domain.TaskHandle, error) {
	return domain.TaskHandle{Token: "task-2", Request: domain.RequestSnapshot{Operation: domain.OpUpdate}}, nil
}

func (g *stubGateway) Delete(context.Context, domain.Collection, string) (domain.TaskHandle, error) {
	return domain.TaskHandle{Token: "task-3", Request: domain.RequestSnapshot{Operation: domain.OpDelete}}, nil
}

func (g *stubGateway) TaskStatus(_ context.Context, token string) (domain.TaskStatus, error) {
	return domain.TaskStatus{ID: token, Status: "SUCCESS"}, nil
}

func (g *stubGateway) TaskDetail(_ context.Context, token string) (domain.TaskDetail, error) {
	return domain.TaskDetail{ID: token}, nil
}

func (g *stubGateway) Version(context.Context) (*semver.Version, error) {
	return g.version, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []eventRecord
}

type eventRecord struct {
	eventType     string
	correlationID string
}

func (r *recordingPublisher) Publish(ctx context.Context, event ports.DomainEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, eventRecord{eventType: event.EventType(), correlationID: ports.GetCorrelationID(ctx)})
	return nil
}

func (r *recordingPublisher) Subscribe(string, ports.EventHandler) (ports.Subscription, error) {
	return nil, nil
}

func (r *recordingPublisher) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.eventType)
	}
	return out
}

type countingMetrics struct {
	mu     sync.Mutex
	counts map[string]int
}

func (m *countingMetrics) IncCounter(_ context.Context, name string, _ map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts == nil {
		m.counts = make(map[string]int)
	}
	m.counts[name]++
}

func (m *countingMetrics) SetGauge(context.Context, string, float64, map[string]string) {}

func (m *countingMetrics) ObserveHistogram(context.Context, string, float64, map[string]string) {}

func (m *countingMetrics) count(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[name]
}
