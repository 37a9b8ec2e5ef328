package tui

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/fentz26/prodtrack/internal/controlplane"
	"github.com/fentz26/prodtrack/internal/models"
	"github.com/fentz26/prodtrack/internal/workflow"
)

// DefaultClientTimeout is the default timeout for API requests.
const DefaultClientTimeout = 10 * time.Second

// Client wraps HTTP calls to the prodtrack API.
type Client struct {
	baseURL    string
	httpClient *http.Client

	// Display names, filled lazily. Entities and task types are immutable.
	mu        sync.Mutex
	entities  map[string]string
	taskTypes map[string]string
}

// NewClient creates a new API client with timeout.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultClientTimeout},
		entities:   make(map[string]string),
		taskTypes:  make(map[string]string),
	}
}

func (c *Client) do(method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		data, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("API error (%d): %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("API error (%d): %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// ListTasks fetches tasks, optionally filtered by status.
func (c *Client) ListTasks(status models.TaskStatus) ([]TaskItem, error) {
	path := "/tasks"
	if status != "" {
		path += "?status=" + url.QueryEscape(string(status))
	}
	var tasks []controlplane.TaskView
	if err := c.do(http.MethodGet, path, nil, &tasks); err != nil {
		return nil, err
	}

	items := make([]TaskItem, 0, len(tasks))
	for _, t := range tasks {
		entity, err := c.entityName(t.EntityID)
		if err != nil {
			return nil, err
		}
		taskType, err := c.taskTypeName(t.TaskTypeID)
		if err != nil {
			return nil, err
		}
		items = append(items, TaskItem{
			ID:          t.ID,
			Entity:      entity,
			TaskType:    taskType,
			Name:        t.Name,
			Status:      t.Status,
			StatusLabel: t.StatusLabel,
			Assignees:   len(t.Assignees),
		})
	}
	return items, nil
}

func (c *Client) entityName(id string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if name, ok := c.entities[id]; ok {
		return name, nil
	}
	var e models.Entity
	if err := c.do(http.MethodGet, "/entities/"+url.PathEscape(id), nil, &e); err != nil {
		return "", err
	}
	c.entities[id] = e.Name
	return e.Name, nil
}

func (c *Client) taskTypeName(id string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if name, ok := c.taskTypes[id]; ok {
		return name, nil
	}
	var types []models.TaskType
	if err := c.do(http.MethodGet, "/task-types", nil, &types); err != nil {
		return "", err
	}
	for _, tt := range types {
		c.taskTypes[tt.ID] = tt.Name
	}
	return c.taskTypes[id], nil
}

// GetTask fetches a task with its working path.
func (c *Client) GetTask(id string) (*TaskDetail, error) {
	var task controlplane.TaskView
	if err := c.do(http.MethodGet, "/tasks/"+url.PathEscape(id), nil, &task); err != nil {
		return nil, err
	}
	detail := &TaskDetail{Task: task}
	var path controlplane.PathResult
	if err := c.do(http.MethodGet, "/tasks/"+url.PathEscape(id)+"/path?sep=/", nil, &path); err != nil {
		detail.PathError = err.Error()
	} else {
		detail.Path = path.FilePath
	}
	return detail, nil
}

// Transition runs a workflow operation and returns the new status label.
func (c *Client) Transition(id string, op workflow.Operation, personIDs ...string) (string, error) {
	var body any
	if len(personIDs) > 0 {
		body = map[string][]string{"person_ids": personIDs}
	}
	var res controlplane.TransitionResponse
	if err := c.do(http.MethodPost, "/tasks/"+url.PathEscape(id)+"/"+string(op), body, &res); err != nil {
		return "", err
	}
	return res.Task.StatusLabel, nil
}

// PersonIDs maps emails to person IDs. Unknown emails are an error.
func (c *Client) PersonIDs(emails []string) ([]string, error) {
	var persons []models.Person
	if err := c.do(http.MethodGet, "/persons", nil, &persons); err != nil {
		return nil, err
	}
	byEmail := make(map[string]string, len(persons))
	for _, p := range persons {
		byEmail[strings.ToLower(p.Email)] = p.ID
	}
	ids := make([]string, 0, len(emails))
	for _, email := range emails {
		id, ok := byEmail[strings.ToLower(email)]
		if !ok {
			return nil, fmt.Errorf("no person with email %q", email)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Ping reports whether the daemon answers /health.
func (c *Client) Ping() error {
	return c.do(http.MethodGet, "/health", nil, nil)
}
