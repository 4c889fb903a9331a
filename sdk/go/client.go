package atlassdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Atlas HTTP API client.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Profile represents the API account model.
type Profile struct {
	ID           string   `json:"id"`
	Username     string   `json:"username"`
	FullName     string   `json:"full_name"`
	Role         string   `json:"role"`
	Email        string   `json:"email"`
	DepartmentID *string  `json:"department_id,omitempty"`
	Supervised   []string `json:"supervised,omitempty"`
}

// Task represents the API task model.
type Task struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	Description  string  `json:"description,omitempty"`
	CreatorID    string  `json:"creator_id"`
	AssigneeID   *string `json:"assignee_id,omitempty"`
	AssigneeText *string `json:"assignee_text,omitempty"`
	Priority     string  `json:"priority"`
	Status       string  `json:"status"`
	IsPrivate    bool    `json:"is_private"`
	UpdatedAt    string  `json:"updated_at"`
}

// TimelineEntry is one line of a task's feed.
type TimelineEntry struct {
	ID        int64   `json:"id"`
	TaskID    string  `json:"task_id"`
	ActorID   string  `json:"actor_id"`
	Field     string  `json:"field"`
	OldValue  *string `json:"old_value,omitempty"`
	NewValue  string  `json:"new_value"`
	Kind      string  `json:"kind"`
	CreatedAt string  `json:"created_at"`
}

// Notification is one inbox entry.
type Notification struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Message   string `json:"message"`
	IsRead    bool   `json:"is_read"`
	CreatedAt string `json:"created_at"`
}

// Session is a login result.
type Session struct {
	Token   string  `json:"token"`
	Profile Profile `json:"profile"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Login authenticates and stores the session token on the client.
func (c *Client) Login(ctx context.Context, email, password string) (Session, error) {
	var resp Session
	err := c.do(ctx, http.MethodPost, "auth/login", map[string]any{
		"email":    email,
		"password": password,
	}, &resp)
	if err == nil {
		c.BearerToken = resp.Token
	}
	return resp, err
}

// CreateUser provisions an account. Requires a service key or a session
// with user management.
func (c *Client) CreateUser(ctx context.Context, email, password, fullName, role string) (Profile, error) {
	var resp Profile
	body := map[string]any{
		"email":     email,
		"password":  password,
		"full_name": fullName,
	}
	if role != "" {
		body["role"] = role
	}
	err := c.do(ctx, http.MethodPost, "users", body, &resp)
	return resp, err
}

// CreateTask creates a task.
func (c *Client) CreateTask(ctx context.Context, title, description, priority, assignedTo string, private bool) (Task, error) {
	var resp Task
	body := map[string]any{
		"titulo":  title,
		"privada": private,
	}
	if description != "" {
		body["descripcion"] = description
	}
	if priority != "" {
		body["prioridad"] = priority
	}
	if assignedTo != "" {
		body["assigned_to"] = assignedTo
	}
	err := c.do(ctx, http.MethodPost, "tasks", body, &resp)
	return resp, err
}

// Tasks lists visible tasks. Pass "OPEN_TASKS" as status to exclude
// finished ones; empty filters are omitted.
func (c *Client) Tasks(ctx context.Context, status, priority, query string) ([]Task, error) {
	var resp struct {
		Items []Task `json:"items"`
	}
	params := url.Values{}
	if status != "" {
		params.Set("estado", status)
	}
	if priority != "" {
		params.Set("prioridad", priority)
	}
	if query != "" {
		params.Set("q", query)
	}
	endpoint := "tasks"
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Items, err
}

// History returns a task's timeline, oldest first.
func (c *Client) History(ctx context.Context, taskID string) ([]TimelineEntry, error) {
	var resp struct {
		Items []TimelineEntry `json:"items"`
	}
	endpoint := fmt.Sprintf("tasks/%s/history", url.PathEscape(taskID))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Items, err
}

// Chat posts a chat message on a task.
func (c *Client) Chat(ctx context.Context, taskID, message string) (TimelineEntry, error) {
	var resp TimelineEntry
	endpoint := fmt.Sprintf("tasks/%s/chat", url.PathEscape(taskID))
	err := c.do(ctx, http.MethodPost, endpoint, map[string]any{"message": message}, &resp)
	return resp, err
}

// Notifications lists the caller's inbox.
func (c *Client) Notifications(ctx context.Context) ([]Notification, error) {
	var resp struct {
		Items []Notification `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, "notifications", nil, &resp)
	return resp.Items, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	target := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, target, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
