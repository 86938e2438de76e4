// Package jira is a narrow client for the issue tracker REST API: fetch an
// epic's description tree, overwrite it, and create new story issues. The
// core engine never talks to the network; everything here is collaborator
// plumbing.
package jira

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"storyforge/internal/adf"
)

var (
	// ErrNotFound maps a 404 from the tracker ("document not found").
	ErrNotFound = errors.New("issue not found")
	// ErrForbidden maps a 401/403 from the tracker ("access denied").
	ErrForbidden = errors.New("access denied")
)

// Client communicates with a Jira Cloud site.
type Client struct {
	baseURL    string
	email      string
	apiToken   string
	httpClient *http.Client
}

func NewClient(baseURL, email, apiToken string) *Client {
	return &Client{
		baseURL:  baseURL,
		email:    email,
		apiToken: apiToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Issue is the slice of an issue this service needs.
type Issue struct {
	Key     string
	Summary string
	// Description is the rich-text description tree; nil when the issue
	// predates rich-text descriptions.
	Description *adf.Doc
	// RenderedDescription is plain text flattened from the tracker's
	// rendered HTML, kept as read-only prompt context for issues without
	// a Description tree.
	RenderedDescription string
}

type issueResponse struct {
	Key    string `json:"key"`
	Fields struct {
		Summary     string          `json:"summary"`
		Description json.RawMessage `json:"description"`
	} `json:"fields"`
	RenderedFields struct {
		Description string `json:"description"`
	} `json:"renderedFields"`
}

// GetIssue fetches an issue with its description tree.
func (c *Client) GetIssue(ctx context.Context, key string) (*Issue, error) {
	u := fmt.Sprintf("%s/rest/api/3/issue/%s?fields=summary,description&expand=renderedFields", c.baseURL, key)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get issue: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, "get issue "+key); err != nil {
		return nil, err
	}

	var ir issueResponse
	if err := json.NewDecoder(resp.Body).Decode(&ir); err != nil {
		return nil, fmt.Errorf("decode issue %s: %w", key, err)
	}

	issue := &Issue{Key: ir.Key, Summary: ir.Fields.Summary}
	if len(ir.Fields.Description) > 0 && string(ir.Fields.Description) != "null" {
		var doc adf.Doc
		if err := json.Unmarshal(ir.Fields.Description, &doc); err != nil {
			return nil, fmt.Errorf("decode description of %s: %w", key, err)
		}
		issue.Description = &doc
	}
	if ir.RenderedFields.Description != "" {
		issue.RenderedDescription = flattenHTML(ir.RenderedFields.Description)
	}
	return issue, nil
}

// UpdateDescription overwrites the issue's description with doc. The tracker
// treats the write as all-or-nothing.
func (c *Client) UpdateDescription(ctx context.Context, key string, doc *adf.Doc) error {
	body, err := json.Marshal(map[string]any{
		"fields": map[string]any{"description": doc},
	})
	if err != nil {
		return fmt.Errorf("marshal description: %w", err)
	}
	u := fmt.Sprintf("%s/rest/api/3/issue/%s", c.baseURL, key)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("update issue: %w", err)
	}
	defer resp.Body.Close()
	return checkStatus(resp, "update issue "+key)
}

// NewIssue describes a story to create.
type NewIssue struct {
	ProjectKey  string
	Summary     string
	IssueType   string // defaults to "Story"
	ParentKey   string // the epic
	Description *adf.Doc
	Labels      []string
}

// CreateIssue creates a story and returns its key.
func (c *Client) CreateIssue(ctx context.Context, in NewIssue) (string, error) {
	issueType := in.IssueType
	if issueType == "" {
		issueType = "Story"
	}
	fields := map[string]any{
		"project":     map[string]string{"key": in.ProjectKey},
		"summary":     in.Summary,
		"issuetype":   map[string]string{"name": issueType},
		"description": in.Description,
	}
	if in.ParentKey != "" {
		fields["parent"] = map[string]string{"key": in.ParentKey}
	}
	if len(in.Labels) > 0 {
		fields["labels"] = in.Labels
	}

	body, err := json.Marshal(map[string]any{"fields": fields})
	if err != nil {
		return "", fmt.Errorf("marshal issue: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rest/api/3/issue", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("create issue: %w", err)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp, "create issue"); err != nil {
		return "", err
	}

	var created struct {
		Key string `json:"key"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("decode created issue: %w", err)
	}
	return created.Key, nil
}

// BrowseURL returns the human-facing URL for an issue key.
func (c *Client) BrowseURL(key string) string {
	return c.baseURL + "/browse/" + key
}

func (c *Client) authorize(req *http.Request) {
	req.SetBasicAuth(c.email, c.apiToken)
	req.Header.Set("Accept", "application/json")
}

func checkStatus(resp *http.Response, op string) error {
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case resp.StatusCode == http.StatusForbidden, resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%s: %w", op, ErrForbidden)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%s: status %d: %s", op, resp.StatusCode, string(body))
	}
	return nil
}

// Close releases idle connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}
