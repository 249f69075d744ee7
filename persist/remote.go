package persist

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"storyweave/models"
)

// SaveResponse is the body returned by POST /api/story.
type SaveResponse struct {
	Success bool   `json:"success,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// RemoteStore talks to the story endpoint of a story server.
type RemoteStore struct {
	endpoint string
	client   *http.Client
}

var _ Store = (*RemoteStore)(nil)

func NewRemoteStore(baseURL string, client *http.Client) *RemoteStore {
	if client == nil {
		client = http.DefaultClient
	}
	return &RemoteStore{endpoint: strings.TrimRight(baseURL, "/") + "/api/story", client: client}
}

// Load fetches the manifest. 404 or an empty page list is ErrNoStory.
func (s *RemoteStore) Load(ctx context.Context) (*models.Manifest, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build story request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: load story: %v", models.ErrNetwork, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, models.ErrNoStory
	}
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("%w: load story: %s", models.ErrNetwork, errorMessage(resp))
	}
	var m models.Manifest
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		return nil, fmt.Errorf("%w: decode story: %v", models.ErrNetwork, err)
	}
	if len(m.Pages) == 0 {
		return nil, models.ErrNoStory
	}
	return &m, nil
}

// Save posts the manifest. A 409 answer is ErrStaleRevision.
func (s *RemoteStore) Save(ctx context.Context, m *models.Manifest) error {
	body, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode story: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build story request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: save story: %v", models.ErrNetwork, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusConflict {
		return models.ErrStaleRevision
	}
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("%w: save story: %s", models.ErrNetwork, errorMessage(resp))
	}
	return nil
}

func errorMessage(resp *http.Response) string {
	var out SaveResponse
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(data, &out); err == nil && out.Error != "" {
		return out.Error
	}
	return resp.Status
}
