package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"storyweave/models"
)

const maxFetchBytes = 100 << 20

// UploadResponse is the body returned by the upload endpoint.
type UploadResponse struct {
	Success      bool   `json:"success"`
	FileName     string `json:"fileName"`
	FilePath     string `json:"filePath"`
	OriginalName string `json:"originalName"`
	Error        string `json:"error,omitempty"`
}

// RemoteStore uploads payloads to the story server, which keeps them in its
// materials directory.
type RemoteStore struct {
	base   string
	client *http.Client
	logger *zap.Logger
}

func NewRemoteStore(baseURL string, client *http.Client, logger *zap.Logger) *RemoteStore {
	if client == nil {
		client = http.DefaultClient
	}
	return &RemoteStore{base: strings.TrimRight(baseURL, "/"), client: client, logger: logger.Named("remote-media")}
}

// Store uploads f and returns the server path assigned to it.
func (s *RemoteStore) Store(ctx context.Context, f File, t models.PageType) (models.MediaRef, error) {
	if !t.IsMedia() {
		return models.MediaRef{}, fmt.Errorf("%w: cannot store media for %s page", models.ErrValidation, t)
	}
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, f.Name))
	ct := f.Mime
	if ct == "" {
		ct = SniffMime(f.Data, f.Name)
	}
	h.Set("Content-Type", ct)
	part, err := mw.CreatePart(h)
	if err != nil {
		return models.MediaRef{}, fmt.Errorf("create multipart: %w", err)
	}
	if _, err := part.Write(f.Data); err != nil {
		return models.MediaRef{}, fmt.Errorf("write multipart: %w", err)
	}
	if err := mw.Close(); err != nil {
		return models.MediaRef{}, fmt.Errorf("close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.base+"/api/upload", &body)
	if err != nil {
		return models.MediaRef{}, fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := s.client.Do(req)
	if err != nil {
		return models.MediaRef{}, fmt.Errorf("%w: upload %s: %v", models.ErrNetwork, f.Name, err)
	}
	defer resp.Body.Close()

	var out UploadResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return models.MediaRef{}, fmt.Errorf("%w: upload %s: status %d, undecodable response: %v", models.ErrNetwork, f.Name, resp.StatusCode, err)
	}
	if resp.StatusCode/100 != 2 || out.FilePath == "" {
		msg := out.Error
		if msg == "" {
			msg = resp.Status
		}
		return models.MediaRef{}, fmt.Errorf("%w: upload %s: %s", models.ErrNetwork, f.Name, msg)
	}
	s.logger.Debug("Uploaded media", zap.String("file", out.FileName), zap.String("original", out.OriginalName))
	return models.ServerPath(out.FilePath), nil
}

// Fetch downloads a server path or remote URL. 404 yields (nil, nil).
func (s *RemoteStore) Fetch(ctx context.Context, ref models.MediaRef) (*Blob, error) {
	var target string
	switch ref.Kind {
	case models.MediaServerPath:
		target = ref.Value
		if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
			if !strings.HasPrefix(target, "/") {
				target = "/" + target
			}
			target = s.base + target
		}
	case models.MediaRemoteURL:
		target = ref.Value
	default:
		return nil, fmt.Errorf("remote store cannot fetch %s", ref)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build fetch request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch %s: %v", models.ErrNetwork, target, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("%w: fetch %s: %s", models.ErrNetwork, target, resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", models.ErrNetwork, target, err)
	}
	name := target[strings.LastIndexByte(target, '/')+1:]
	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = SniffMime(data, name)
	}
	return &Blob{FileName: name, Mime: ct, Data: data}, nil
}
