package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Masterminds/semver/v3"
	clocktesting "k8s.io/utils/clock/testing"

	"github.com/alexisbeaulieu97/ccreconcile/internal/domain/reconcile"
	"github.com/alexisbeaulieu97/ccreconcile/internal/ports"
	"github.com/alexisbeaulieu97/ccreconcile/internal/resources"
	"github.com/alexisbeaulieu97/ccreconcile/internal/schema"
)

// fakeGateway is an in-memory controller that counts calls per operation.
// Writes take effect when submitted; task progress is scripted.
type fakeGateway struct {
	objects  map[string][]map[string]any
	calls    map[reconcile.Operation]int
	payloads map[reconcile.Operation][]map[string]any
	version  *semver.Version

	// pendingPolls is how many in-progress statuses a task reports before
	// succeeding. Negative means the task never finishes.
	pendingPolls int
	failReason   string
	ignoreWrites bool
	listErr      error
	// onList runs before every list call.
	onList func()

	nextID int
	tasks  map[string]int
}

var _ ports.Gateway = (*fakeGateway)(nil)

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		objects:  make(map[string][]map[string]any),
		calls:    make(map[reconcile.Operation]int),
		payloads: make(map[reconcile.Operation][]map[string]any),
		version:  semver.MustParse("2.3.7"),
		tasks:    make(map[string]int),
	}
}

func (g *fakeGateway) seed(coll string, objects ...map[string]any) {
	for _, obj := range objects {
		g.nextID++
		stored := copyMap(obj)
		if _, ok := stored["id"]; !ok {
			stored["id"] = fmt.Sprintf("obj-%d", g.nextID)
		}
		g.objects[coll] = append(g.objects[coll], stored)
	}
}

func (g *fakeGateway) writes() int {
	return g.calls[reconcile.OpCreate] + g.calls[reconcile.OpUpdate] + g.calls[reconcile.OpDelete]
}

func (g *fakeGateway) List(ctx context.Context, coll reconcile.Collection, filter reconcile.Filter, offset, limit int) (reconcile.Page, error) {
	g.calls[reconcile.OpList]++
	if g.onList != nil {
		g.onList()
	}
	if err := ctx.Err(); err != nil {
		return reconcile.Page{}, err
	}
	if g.listErr != nil {
		return reconcile.Page{}, g.listErr
	}

	var matched []map[string]any
	for _, obj := range g.objects[coll.Path] {
		if matches(obj, filter) {
			matched = append(matched, copyMap(obj))
		}
	}
	start := offset - coll.OffsetBase
	if start >= len(matched) {
		return reconcile.Page{Total: -1}, nil
	}
	end := start + limit
	if end > len(matched) {
		end = len(matched)
	}
	return reconcile.Page{Items: matched[start:end], Total: -1}, nil
}

func (g *fakeGateway) Get(_ context.Context, coll reconcile.Collection, id string) (map[string]any, error) {
	g.calls[reconcile.OpGet]++
	for _, obj := range g.objects[coll.Path] {
		if obj["id"] == id {
			return copyMap(obj), nil
		}
	}
	return nil, reconcile.NewNotFoundError(coll.Name, id)
}

func (g *fakeGateway) Create(_ context.Context, coll reconcile.Collection, payload map[string]any) (reconcile.TaskHandle, error) {
	g.calls[reconcile.OpCreate]++
	g.payloads[reconcile.OpCreate] = append(g.payloads[reconcile.OpCreate], payload)
	if !g.ignoreWrites {
		g.seed(coll.Path, payload)
	}
	return g.task(reconcile.OpCreate), nil
}

func (g *fakeGateway) Update(_ context.Context, coll reconcile.Collection, id string, payload map[string]any) (reconcile.TaskHandle, error) {
	g.calls[reconcile.OpUpdate]++
	g.payloads[reconcile.OpUpdate] = append(g.payloads[reconcile.OpUpdate], payload)
	if !g.ignoreWrites {
		for _, obj := range g.objects[coll.Path] {
			if obj["id"] == id {
				for k, v := range payload {
					obj[k] = v
				}
			}
		}
	}
	return g.task(reconcile.OpUpdate), nil
}

func (g *fakeGateway) Delete(_ context.Context, coll reconcile.Collection, id string) (reconcile.TaskHandle, error) {
	g.calls[reconcile.OpDelete]++
	if !g.ignoreWrites {
		kept := g.objects[coll.Path][:0]
		for _, obj := range g.objects[coll.Path] {
			if obj["id"] != id {
				kept = append(kept, obj)
			}
		}
		g.objects[coll.Path] = kept
	}
	return g.task(reconcile.OpDelete), nil
}

func (g *fakeGateway) task(op reconcile.Operation) reconcile.TaskHandle {
	token := fmt.Sprintf("task-%d", len(g.tasks)+1)
	g.tasks[token] = 0
	return reconcile.TaskHandle{Token: token, Request: reconcile.RequestSnapshot{Operation: op}}
}

func (g *fakeGateway) TaskStatus(_ context.Context, token string) (reconcile.TaskStatus, error) {
	g.calls[reconcile.OpTaskStatus]++
	g.tasks[token]++
	polls := g.tasks[token]
	if g.pendingPolls < 0 || polls <= g.pendingPolls {
		return reconcile.TaskStatus{ID: token, Status: "IN_PROGRESS"}, nil
	}
	if g.failReason != "" {
		return reconcile.TaskStatus{ID: token, Status: "FAILURE", IsError: true, FailureReason: g.failReason}, nil
	}
	return reconcile.TaskStatus{ID: token, Status: "SUCCESS"}, nil
}

func (g *fakeGateway) TaskDetail(_ context.Context, token string) (reconcile.TaskDetail, error) {
	g.calls[reconcile.OpTaskDetail]++
	return reconcile.TaskDetail{ID: token, FailureReason: g.failReason, IsError: g.failReason != ""}, nil
}

func (g *fakeGateway) Version(context.Context) (*semver.Version, error) {
	g.calls[reconcile.OpVersion]++
	return g.version, nil
}

// snapshot returns the stored objects of coll ordered by id.
func (g *fakeGateway) snapshot(coll string) []map[string]any {
	out := make([]map[string]any, 0, len(g.objects[coll]))
	for _, obj := range g.objects[coll] {
		out = append(out, copyMap(obj))
	}
	sort.Slice(out, func(i, j int) bool { return fmt.Sprint(out[i]["id"]) < fmt.Sprint(out[j]["id"]) })
	return out
}

func matches(obj map[string]any, filter reconcile.Filter) bool {
	for k, v := range filter {
		if fmt.Sprint(obj[k]) != v {
			return false
		}
	}
	return true
}

func copyMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// steppingClock advances virtual time whenever the tracker waits.
type steppingClock struct {
	*clocktesting.FakeClock
}

func newSteppingClock() *steppingClock {
	return &steppingClock{FakeClock: clocktesting.NewFakeClock(time.Unix(0, 0))}
}

func (c *steppingClock) After(d time.Duration) <-chan time.Time {
	c.Step(d)
	ch := make(chan time.Time, 1)
	ch <- c.Now()
	return ch
}

const (
	transitPath = "/transits"
	devicePath  = "/devices"
)

// testTransit is a flat transit kind whose wire shape equals its spec shape.
func testTransit() *resources.SpecResource {
	return resources.MustNew(resources.Config{
		Spec: schema.Spec{
			Kind:       "transit",
			NaturalKey: "name",
			Fields: []schema.Field{
				{Name: "name", Type: schema.TypeString, Required: true},
				{Name: "type", Type: schema.TypeString, Choices: []string{"ip", "sda"}, Immutable: true},
				{Name: "asn", Type: schema.TypeInt, Range: &schema.Range{Min: 1, Max: 4294967295}},
				{
					Name: "devices", Type: schema.TypeSet, Elem: schema.TypeString, Validate: "ipv4",
					Lookup: &schema.Lookup{Collection: "device", FilterKey: "ip", IDField: "id"},
				},
			},
		},
		Collection: reconcile.Collection{Name: "transit", Path: transitPath},
		Lookups: map[string]reconcile.Collection{
			"device": {Name: "device", Path: devicePath},
		},
		MinVersion: "2.3.5",
		FilterKey:  "name",
		Checks: []resources.CrossCheck{func(values schema.Record) error {
			if values["type"] == "ip" && values["asn"] == nil {
				return fmt.Errorf("asn is required when type is ip")
			}
			return nil
		}},
	})
}

func testRegistry() *resources.Registry {
	r := resources.NewRegistry()
	if err := r.Register(testTransit()); err != nil {
		panic(err)
	}
	return r
}
