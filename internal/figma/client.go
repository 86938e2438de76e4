// Package figma is a narrow client for the design-tool REST API: resolve
// screen URLs from shell stories into node names and rendered image URLs
// for prompt context.
package figma

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrNotFound maps a 404 from the design tool.
var ErrNotFound = errors.New("figma node not found")

// Client communicates with the Figma REST API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewClient(baseURL, token string) *Client {
	if baseURL == "" {
		baseURL = "https://api.figma.com"
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// ScreenRef identifies one node inside a Figma file.
type ScreenRef struct {
	FileKey string
	NodeID  string
}

// ParseScreenURL extracts the file key and node id from a
// www.figma.com/design or /file URL. Shell-story screen links use the
// node-id query parameter with a dash separator ("12-34").
func ParseScreenURL(raw string) (ScreenRef, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return ScreenRef{}, fmt.Errorf("parse screen url: %w", err)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 || (parts[0] != "design" && parts[0] != "file") {
		return ScreenRef{}, fmt.Errorf("not a figma design url: %s", raw)
	}
	ref := ScreenRef{FileKey: parts[1]}
	if id := u.Query().Get("node-id"); id != "" {
		ref.NodeID = strings.ReplaceAll(id, "-", ":")
	}
	if ref.NodeID == "" {
		return ScreenRef{}, fmt.Errorf("figma url has no node-id: %s", raw)
	}
	return ref, nil
}

// Screen is the metadata this service cares about for one design node.
type Screen struct {
	NodeID   string `json:"node_id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	ImageURL string `json:"image_url,omitempty"`
}

type nodesResponse struct {
	Nodes map[string]struct {
		Document struct {
			ID   string `json:"id"`
			Name string `json:"name"`
			Type string `json:"type"`
		} `json:"document"`
	} `json:"nodes"`
}

// GetNodes fetches node metadata for a set of node ids in one file.
func (c *Client) GetNodes(ctx context.Context, fileKey string, nodeIDs []string) ([]Screen, error) {
	u := fmt.Sprintf("%s/v1/files/%s/nodes?ids=%s", c.baseURL, fileKey,
		url.QueryEscape(strings.Join(nodeIDs, ",")))
	var nr nodesResponse
	if err := c.getJSON(ctx, u, &nr); err != nil {
		return nil, err
	}

	screens := make([]Screen, 0, len(nodeIDs))
	for _, id := range nodeIDs {
		node, ok := nr.Nodes[id]
		if !ok {
			return nil, fmt.Errorf("file %s node %s: %w", fileKey, id, ErrNotFound)
		}
		screens = append(screens, Screen{
			NodeID: node.Document.ID,
			Name:   node.Document.Name,
			Type:   node.Document.Type,
		})
	}
	return screens, nil
}

type imagesResponse struct {
	Err    string            `json:"err"`
	Images map[string]string `json:"images"`
}

// GetImages renders nodes to PNG and returns node id -> image URL.
func (c *Client) GetImages(ctx context.Context, fileKey string, nodeIDs []string) (map[string]string, error) {
	u := fmt.Sprintf("%s/v1/images/%s?ids=%s&format=png", c.baseURL, fileKey,
		url.QueryEscape(strings.Join(nodeIDs, ",")))
	var ir imagesResponse
	if err := c.getJSON(ctx, u, &ir); err != nil {
		return nil, err
	}
	if ir.Err != "" {
		return nil, fmt.Errorf("render images for %s: %s", fileKey, ir.Err)
	}
	return ir.Images, nil
}

func (c *Client) getJSON(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-Figma-Token", c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("figma api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("figma api status %d: %s", resp.StatusCode, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode figma response: %w", err)
	}
	return nil
}

// Close releases idle connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}
