package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/alexisbeaulieu97/ccreconcile/internal/domain/reconcile"
)

const tasksPath = "/dna/intent/api/v1/tasks/"

type taskStatusBody struct {
	Response struct {
		ID            string `json:"id"`
		Status        string `json:"status"`
		IsError       bool   `json:"isError"`
		Progress      string `json:"progress"`
		FailureReason string `json:"failureReason"`
	} `json:"response"`
}

type taskDetailBody struct {
	Response map[string]any `json:"response"`
}

// TaskStatus polls the status of a task.
func (c *Client) TaskStatus(ctx context.Context, token string) (reconcile.TaskStatus, error) {
	var body taskStatusBody
	err := c.do(ctx, request{op: reconcile.OpTaskStatus, method: http.MethodGet, path: tasksPath + url.PathEscape(token)}, &body)
	if errors.Is(err, errNotFound) {
		return reconcile.TaskStatus{}, reconcile.NewNotFoundError("task", token)
	}
	if err != nil {
		return reconcile.TaskStatus{}, err
	}

	id := body.Response.ID
	if id == "" {
		id = token
	}
	return reconcile.TaskStatus{
		ID:            id,
		Status:        body.Response.Status,
		IsError:       body.Response.IsError,
		Progress:      body.Response.Progress,
		FailureReason: body.Response.FailureReason,
	}, nil
}

// TaskDetail fetches the full report of a task.
func (c *Client) TaskDetail(ctx context.Context, token string) (reconcile.TaskDetail, error) {
	var body taskDetailBody
	err := c.do(ctx, request{op: reconcile.OpTaskDetail, method: http.MethodGet, path: tasksPath + url.PathEscape(token) + "/detail"}, &body)
	if errors.Is(err, errNotFound) {
		return reconcile.TaskDetail{}, reconcile.NewNotFoundError("task", token)
	}
	if err != nil {
		return reconcile.TaskDetail{}, err
	}

	raw := body.Response
	detail := reconcile.TaskDetail{
		ID:            stringField(raw, "id"),
		Progress:      stringField(raw, "progress"),
		Data:          stringField(raw, "data"),
		FailureReason: stringField(raw, "failureReason"),
		Raw:           raw,
	}
	if isError, ok := raw["isError"].(bool); ok {
		detail.IsError = isError
	}
	if detail.ID == "" {
		detail.ID = token
	}
	return detail, nil
}

func stringField(m map[string]any, key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}
