package community

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Client is the surface of the ticketing/events service used by the assistant.
type Client interface {
	ListTickets(ctx context.Context) ([]Ticket, error)
	CreateTicket(ctx context.Context, t NewTicket) (Ticket, error)
	ListEvents(ctx context.Context) ([]Event, error)
}

// APIClient implements Client over the service's REST API.
type APIClient struct {
	httpClient *http.Client
	baseAPI    string
	validate   *validator.Validate
}

// NewAPIClient returns a client for baseURL. A nil httpClient gets a plain
// client with the given timeout; zero disables the timeout.
func NewAPIClient(baseURL string, httpClient *http.Client, timeout time.Duration) *APIClient {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if timeout > 0 {
		httpClient.Timeout = timeout
	}
	return &APIClient{
		httpClient: httpClient,
		baseAPI:    strings.TrimRight(baseURL, "/"),
		validate:   validator.New(),
	}
}

// ---- Helpers ----

func (c *APIClient) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseAPI+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", ErrNetwork, method, path, err)
	}
	return resp, nil
}

func (c *APIClient) sendJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func (c *APIClient) getJSON(ctx context.Context, path string, out any) error {
	return c.sendJSON(ctx, http.MethodGet, path, nil, out)
}

func (c *APIClient) postJSON(ctx context.Context, path string, in, out any) error {
	return c.sendJSON(ctx, http.MethodPost, path, in, out)
}

// ---- Implementations ----

func (c *APIClient) ListTickets(ctx context.Context) ([]Ticket, error) {
	var tickets []Ticket
	if err := c.getJSON(ctx, "/tickets/", &tickets); err != nil {
		return nil, err
	}
	return tickets, nil
}

func (c *APIClient) CreateTicket(ctx context.Context, t NewTicket) (Ticket, error) {
	if t.Status == "" {
		t.Status = StatusOpen
	}
	if t.CreatedAt == "" {
		t.CreatedAt = time.Now().UTC().Format(time.RFC3339Nano)
	}
	if err := c.validate.Struct(t); err != nil {
		return Ticket{}, fmt.Errorf("invalid ticket: %w", err)
	}
	var created Ticket
	if err := c.postJSON(ctx, "/tickets/", t, &created); err != nil {
		return Ticket{}, err
	}
	return created, nil
}

func (c *APIClient) ListEvents(ctx context.Context) ([]Event, error) {
	var events []Event
	if err := c.getJSON(ctx, "/events/", &events); err != nil {
		return nil, err
	}
	return events, nil
}
