package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Masterminds/semver/v3"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"

	appreconcile "github.com/alexisbeaulieu97/ccreconcile/internal/application/reconcile"
	"github.com/alexisbeaulieu97/ccreconcile/internal/domain/reconcile"
	"github.com/alexisbeaulieu97/ccreconcile/internal/gateway"
	"github.com/alexisbeaulieu97/ccreconcile/internal/ports"
)

const transitArgs = `host: cc.example.com
username: admin
password: secret
kind: transit
config:
  - name: T1
    asn: 65001
`

func writeArgs(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "args.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func useGateway(t *testing.T, gw ports.Gateway) {
	t.Helper()
	original := serviceOptions
	serviceOptions = []appreconcile.Option{appreconcile.WithGatewayFactory(func(gateway.Options) (ports.Gateway, error) {
		return gw, nil
	})}
	t.Cleanup(func() { serviceOptions = original })
}

func TestApplyRendersTable(t *testing.T) {
	gw := &cliGateway{}
	useGateway(t, gw)

	out, _, err := executeCommand("apply", writeArgs(t, transitArgs), "--no-color")
	require.NoError(t, err)
	require.Contains(t, out, "T1")
	require.Contains(t, out, "created")
	require.Contains(t, out, "success 1 created, 0 updated, 0 deleted, 0 unchanged, 0 failed")
	require.Equal(t, 1, gw.creates)
}

func TestApplyCheckModeWritesNothing(t *testing.T) {
	gw := &cliGateway{}
	useGateway(t, gw)

	out, _, err := executeCommand("apply", writeArgs(t, transitArgs), "--check", "--output", "json", "--diff")
	require.NoError(t, err)
	require.Zero(t, gw.creates)

	var report reconcile.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	require.True(t, report.Changed)
	require.Len(t, report.Response, 1)
	require.True(t, strings.HasPrefix(report.Response[0].Message, "would create"))
	require.True(t, strings.HasPrefix(report.Msg, "check mode:"))
}

func TestApplyFailsWhenPassFails(t *testing.T) {
	gw := &cliGateway{failReason: "asn already in use"}
	useGateway(t, gw)

	out, _, err := executeCommand("apply", writeArgs(t, transitArgs), "--no-color")
	require.ErrorIs(t, err, errPassFailed)
	require.Contains(t, out, "CONTROLLER_ERROR")
	require.Contains(t, out, "asn already in use")
}

func TestApplyWritesMetricsFile(t *testing.T) {
	useGateway(t, &cliGateway{})

	metricsPath := filepath.Join(t.TempDir(), "ccreconcile.prom")
	_, _, err := executeCommand("apply", writeArgs(t, transitArgs), "--metrics-file", metricsPath)
	require.NoError(t, err)

	data, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	require.Contains(t, string(data), `ccreconcile_items_total{action="created",kind="transit"} 1`)
	require.Contains(t, string(data), `ccreconcile_passes_total{status="success"} 1`)
}

func TestApplyRejectsMissingArgsFile(t *testing.T) {
	_, _, err := executeCommand("apply", "/path/does/not/exist")
	require.ErrorContains(t, err, "does not exist")
}

func TestApplyRejectsUnknownFormat(t *testing.T) {
	_, _, err := executeCommand("apply", writeArgs(t, transitArgs), "--output", "xml")
	require.ErrorContains(t, err, `unknown output format "xml"`)
}

func TestValidateCommand(t *testing.T) {
	out, _, err := executeCommand("validate", writeArgs(t, transitArgs), "--no-color")
	require.NoError(t, err)
	require.Contains(t, out, "configuration is valid: 1 item(s)")

	invalid := strings.Replace(transitArgs, "asn: 65001", "type: ip", 1)
	_, errOut, err := executeCommand("validate", writeArgs(t, invalid), "--no-color")
	require.ErrorContains(t, err, "configuration is invalid")
	require.Contains(t, errOut, "invalid configuration")
	require.Contains(t, errOut, "asn is required when type is ip")
}

func TestValidateReportsArgumentViolations(t *testing.T) {
	_, _, err := executeCommand("validate", writeArgs(t, "username: admin\nconfig: []\n"))
	require.ErrorContains(t, err, "host: is required")
}

// cliGateway holds no objects; every submitted task finishes on its first
// poll, failing with failReason when set.
type cliGateway struct {
	creates    int
	failReason string
}

func (g *cliGateway) List(context.Context, reconcile.Collection, reconcile.Filter, int, int) (reconcile.Page, error) {
	return reconcile.Page{Total: 0}, nil
}

func (g *cliGateway) Get(_ context.Context, coll reconcile.Collection, id string) (map[string]any, error) {
	return nil, reconcile.NewNotFoundError(coll.Name, id)
}

func (g *cliGateway) Create(context.Context, reconcile.Collection, map[string]any) (reconcile.TaskHandle, error) {
	g.creates++
	return reconcile.TaskHandle{Token: "task-1", Request: reconcile.RequestSnapshot{Operation: reconcile.OpCreate}}, nil
}

func (g *cliGateway) Update(context.Context, reconcile.Collection, string, map[string]any) (reconcile.TaskHandle, error) {
	return reconcile.TaskHandle{Token: "task-2", Request: reconcile.RequestSnapshot{Operation: reconcile.OpUpdate}}, nil
}

func (g *cliGateway) Delete(context.Context, reconcile.Collection, string) (reconcile.TaskHandle, error) {
	return reconcile.TaskHandle{Token: "task-3", Request: reconcile.RequestSnapshot{Operation: reconcile.OpDelete}}, nil
}

func (g *cliGateway) TaskStatus(_ context.Context, token string) (reconcile.TaskStatus, error) {
	if g.failReason != "" {
		return reconcile.TaskStatus{ID: token, Status: "FAILURE", IsError: true, FailureReason: g.failReason}, nil
	}
	return reconcile.TaskStatus{ID: token, Status: "SUCCESS"}, nil
}

func (g *cliGateway) TaskDetail(_ context.Context, token string) (reconcile.TaskDetail, error) {
	return reconcile.TaskDetail{ID: token, FailureReason: g.failReason, IsError: g.failReason != ""}, nil
}

func (g *cliGateway) Version(context.Context) (*semver.Version, error) {
	return semver.MustParse("2.3.7"), nil
}
