package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/Udit004/alumni-networking-sub003/src/models"
)

// Source is a request/response notification API
type Source interface {
	Fetch(ctx context.Context, recipient string, limit int) ([]models.Notification, error)
	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context, recipient string) error
}

// envelope is the JSON body every notification endpoint answers with
type envelope struct {
	Success       bool                  `json:"success"`
	Message       string                `json:"message,omitempty"`
	Notifications []models.Notification `json:"notifications,omitempty"`
}

// RESTClient talks to one notification API base URL, forwarding the bearer
// token verbatim on every call
type RESTClient struct {
	base   string
	token  string
	client *http.Client
}

// NewRESTClient creates a client for base, e.g. http://host:3000/api
func NewRESTClient(base, token string, client *http.Client) *RESTClient {
	if client == nil {
		client = &http.Client{}
	}
	return &RESTClient{
		base:   strings.TrimRight(base, "/"),
		token:  token,
		client: client,
	}
}

// Fetch returns the recipient's newest notifications
func (r *RESTClient) Fetch(ctx context.Context, recipient string, limit int) ([]models.Notification, error) {
	q := url.Values{}
	q.Set("recipient", recipient)
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	env, err := r.do(ctx, http.MethodGet, "/notifications?"+q.Encode())
	if err != nil {
		return nil, err
	}
	return env.Notifications, nil
}

// MarkRead marks one notification read
func (r *RESTClient) MarkRead(ctx context.Context, id string) error {
	_, err := r.do(ctx, http.MethodPut, "/notifications/"+url.PathEscape(id)+"/read")
	return err
}

// MarkAllRead marks every notification of the authenticated user read
func (r *RESTClient) MarkAllRead(ctx context.Context, recipient string) error {
	_, err := r.do(ctx, http.MethodPut, "/notifications/read-all")
	return err
}

func (r *RESTClient) do(ctx context.Context, method, path string) (*envelope, error) {
	req, err := http.NewRequestWithContext(ctx, method, r.base+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, err
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%s %s: status %d, undecodable body: %w", method, path, resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || !env.Success {
		return nil, fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, env.Message)
	}
	return &env, nil
}
