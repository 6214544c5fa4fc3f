package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/alexisbeaulieu97/ccreconcile/internal/domain/reconcile"
)

var errNotFound = errors.New("not found")

// envelope is the controller's standard response wrapper.
type envelope struct {
	Response   json.RawMessage `json:"response"`
	TotalCount *int            `json:"totalCount,omitempty"`
	TaskID     string          `json:"taskId,omitempty"`
}

type taskRef struct {
	TaskID string `json:"taskId"`
	URL    string `json:"url"`
}

// List fetches one page of a collection. offset is absolute, starting at
// the collection's OffsetBase.
func (c *Client) List(ctx context.Context, coll reconcile.Collection, filter reconcile.Filter, offset, limit int) (reconcile.Page, error) {
	query := url.Values{}
	for key, value := range filter {
		query.Set(key, value)
	}
	if limit > 0 {
		query.Set("offset", strconv.Itoa(offset))
		query.Set("limit", strconv.Itoa(limit))
	}

	var env envelope
	err := c.do(ctx, request{op: reconcile.OpList, method: http.MethodGet, path: coll.Path, query: query}, &env)
	if errors.Is(err, errNotFound) {
		// Some listings answer 404 for an empty filter match.
		return reconcile.Page{Total: -1}, nil
	}
	if err != nil {
		return reconcile.Page{}, err
	}

	if c.strict && len(env.Response) == 0 {
		return reconcile.Page{}, reconcile.NewTransportError(string(reconcile.OpList), errors.New("reply has no response envelope"))
	}
	items, err := decodeList(env.Response)
	if err != nil {
		return reconcile.Page{}, reconcile.NewTransportError(string(reconcile.OpList), err)
	}

	page := reconcile.Page{Items: items, Total: -1}
	if env.TotalCount != nil {
		page.Total = *env.TotalCount
	}
	return page, nil
}

// Get fetches one object by opaque id.
func (c *Client) Get(ctx context.Context, coll reconcile.Collection, id string) (map[string]any, error) {
	path, query := itemRoute(coll, id)
	if coll.GetByQuery {
		path, query = coll.Path, url.Values{coll.IDQueryParam(): []string{id}}
	}

	var env envelope
	err := c.do(ctx, request{op: reconcile.OpGet, method: http.MethodGet, path: path, query: query}, &env)
	if errors.Is(err, errNotFound) {
		return nil, reconcile.NewNotFoundError(coll.Name, id)
	}
	if err != nil {
		return nil, err
	}

	// Collections without an item route answer with a filtered list.
	if items, listErr := decodeList(env.Response); listErr == nil {
		for _, item := range items {
			if fmt.Sprint(item[coll.IDKey()]) == id {
				return item, nil
			}
		}
		return nil, reconcile.NewNotFoundError(coll.Name, id)
	}

	var object map[string]any
	if err := decode(env.Response, &object); err != nil || object == nil {
		return nil, reconcile.NewNotFoundError(coll.Name, id)
	}
	return object, nil
}

// Create submits a new object and returns the task handle.
func (c *Client) Create(ctx context.Context, coll reconcile.Collection, payload map[string]any) (reconcile.TaskHandle, error) {
	req := request{op: reconcile.OpCreate, method: http.MethodPost, path: coll.Path, body: wrap(coll, payload)}
	return c.submit(ctx, coll, req, "", payload)
}

// Update submits a change to the object with the given id.
func (c *Client) Update(ctx context.Context, coll reconcile.Collection, id string, payload map[string]any) (reconcile.TaskHandle, error) {
	body := make(map[string]any, len(payload)+1)
	for k, v := range payload {
		body[k] = v
	}

	req := request{op: reconcile.OpUpdate, method: http.MethodPut}
	if coll.UpdateOnCollection {
		body[coll.IDKey()] = id
		req.path = coll.Path
	} else {
		req.path, req.query = itemRoute(coll, id)
	}
	req.body = wrap(coll, body)
	return c.submit(ctx, coll, req, id, payload)
}

// Delete removes the object with the given id.
func (c *Client) Delete(ctx context.Context, coll reconcile.Collection, id string) (reconcile.TaskHandle, error) {
	path, query := itemRoute(coll, id)
	req := request{op: reconcile.OpDelete, method: http.MethodDelete, path: path, query: query}
	return c.submit(ctx, coll, req, id, nil)
}

func (c *Client) submit(ctx context.Context, coll reconcile.Collection, req request, id string, payload map[string]any) (reconcile.TaskHandle, error) {
	var env envelope
	err := c.do(ctx, req, &env)
	if errors.Is(err, errNotFound) {
		return reconcile.TaskHandle{}, reconcile.NewNotFoundError(coll.Name, id)
	}
	if err != nil {
		return reconcile.TaskHandle{}, err
	}

	token := env.TaskID
	if token == "" && len(env.Response) > 0 {
		var ref taskRef
		if decode(env.Response, &ref) == nil {
			token = ref.TaskID
		}
	}
	if token == "" {
		return reconcile.TaskHandle{}, reconcile.NewTransportError(string(req.op), errors.New("response carries no task id"))
	}

	return reconcile.TaskHandle{
		Token: token,
		Request: reconcile.RequestSnapshot{
			Operation:  req.op,
			Collection: coll.Name,
			ID:         id,
			Payload:    payload,
		},
	}, nil
}

func itemRoute(coll reconcile.Collection, id string) (string, url.Values) {
	if coll.ItemPath == "" {
		return coll.Path, url.Values{coll.IDQueryParam(): []string{id}}
	}
	return strings.ReplaceAll(coll.ItemPath, "{id}", url.PathEscape(id)), nil
}

func wrap(coll reconcile.Collection, payload map[string]any) any {
	if coll.WrapPayload {
		return []map[string]any{payload}
	}
	return payload
}

func decodeList(raw json.RawMessage) ([]map[string]any, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var items []map[string]any
	if err := decode(raw, &items); err != nil {
		return nil, err
	}
	return items, nil
}
