package handlers

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"storyweave/materials"
	"storyweave/media"
	"storyweave/models"
	"storyweave/persist"
)

type testServer struct {
	handler http.Handler
	dir     string
}

func newTestServer(t *testing.T, uploadLimit int64) *testServer {
	t.Helper()
	dir := t.TempDir()
	disk, err := materials.NewDisk(dir)
	require.NoError(t, err)
	h := New(persist.NewFileStore(filepath.Join(dir, "story.json")), disk, uploadLimit, zap.NewNop())
	return &testServer{handler: h.Router(), dir: dir}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) postStory(t *testing.T, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/story", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return s.do(req)
}

func uploadRequest(t *testing.T, field, name string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile(field, name)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestGetStoryEmpty(t *testing.T) {
	s := newTestServer(t, 0)

	rec := s.do(httptest.NewRequest(http.MethodGet, "/api/story", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var m models.Manifest
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	assert.Equal(t, models.ManifestVersion, m.Version)
	assert.NotNil(t, m.Pages)
	assert.Empty(t, m.Pages)
}

func TestSaveAndLoadStory(t *testing.T) {
	s := newTestServer(t, 0)

	rec := s.postStory(t, `{"pages":[{"id":"a","type":"text","text":"Hello","durationSec":3},{"id":"b","type":"image","fileName":"cat.png","blobId":"x"}]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp persist.SaveResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)

	rec = s.do(httptest.NewRequest(http.MethodGet, "/api/story", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var m models.Manifest
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	assert.Equal(t, models.ManifestVersion, m.Version)
	assert.False(t, m.UpdatedAt.IsZero())
	require.Len(t, m.Pages, 2)
	assert.Equal(t, 3.0, *m.Pages[0].DurationSec)
	assert.Equal(t, "cat.png", m.Pages[1].FileName)
	assert.Empty(t, m.Pages[1].BlobID)
}

func TestSaveStoryRejectsInvalidData(t *testing.T) {
	s := newTestServer(t, 0)

	tests := []struct {
		name string
		body string
	}{
		{"not json", `nope`},
		{"missing pages", `{"version":"1.0"}`},
		{"pages not array", `{"pages":{}}`},
		{"bad file name", `{"pages":[{"id":"a","type":"image","fileName":"../x.png"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.postStory(t, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}
	_, err := os.Stat(filepath.Join(s.dir, "story.json"))
	assert.True(t, os.IsNotExist(err))
}

func TestSaveStoryStaleRevision(t *testing.T) {
	s := newTestServer(t, 0)

	require.Equal(t, http.StatusOK, s.postStory(t, `{"revision":5,"pages":[{"id":"a","type":"text","text":"new"}]}`).Code)
	rec := s.postStory(t, `{"revision":4,"pages":[{"id":"a","type":"text","text":"old"}]}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(httptest.NewRequest(http.MethodGet, "/api/story", nil))
	assert.Contains(t, rec.Body.String(), `"new"`)
}

func TestUploadAndServeMaterial(t *testing.T) {
	s := newTestServer(t, 0)
	data := append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{1}, 100)...)

	rec := s.do(uploadRequest(t, "file", "My Cat.PNG", data))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp media.UploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "My Cat.PNG", resp.OriginalName)
	assert.Regexp(t, `^my-cat_\d+_[0-9a-v]{20}\.png$`, resp.FileName)
	assert.Equal(t, "/materials/"+resp.FileName, resp.FilePath)

	rec = s.do(httptest.NewRequest(http.MethodGet, resp.FilePath, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, data, rec.Body.Bytes())
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))

	req := httptest.NewRequest(http.MethodGet, resp.FilePath, nil)
	req.Header.Set("Range", "bytes=0-7")
	rec = s.do(req)
	assert.Equal(t, http.StatusPartialContent, rec.Code)
	assert.Equal(t, data[:8], rec.Body.Bytes())
}

func TestUploadTooLarge(t *testing.T) {
	s := newTestServer(t, 10)

	rec := s.do(uploadRequest(t, "file", "big.mp4", bytes.Repeat([]byte("x"), 2000)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Contains(t, rec.Body.String(), "10 B")

	entries, err := os.ReadDir(s.dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestUploadWithoutFile(t *testing.T) {
	s := newTestServer(t, 0)

	rec := s.do(uploadRequest(t, "other", "a.png", []byte("x")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/upload", strings.NewReader("plain"))
	req.Header.Set("Content-Type", "text/plain")
	rec = s.do(req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMaterialNotFound(t *testing.T) {
	s := newTestServer(t, 0)
	require.NoError(t, os.WriteFile(filepath.Join(s.dir, ".hidden"), []byte("x"), 0o600))

	for _, target := range []string{"/materials/missing.png", "/materials/.hidden"} {
		rec := s.do(httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code, target)
	}
}

func TestHealthAndRequestID(t *testing.T) {
	s := newTestServer(t, 0)

	rec := s.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/api/story", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	rec = s.do(req)
	assert.Equal(t, "abc-123", rec.Header().Get(requestIDHeader))
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, 0)

	req := httptest.NewRequest(http.MethodOptions, "/api/story", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")
	rec := s.do(req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "Content-Type", rec.Header().Get("Access-Control-Allow-Headers"))

	req = httptest.NewRequest(http.MethodOptions, "/api/story", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "X-Secret")
	assert.Equal(t, http.StatusForbidden, s.do(req).Code)
}

func TestCORSSimpleRequest(t *testing.T) {
	s := newTestServer(t, 0)

	req := httptest.NewRequest(http.MethodGet, "/api/story", nil)
	req.Header.Set("Origin", "http://example.com")
	rec := s.do(req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, http.CanonicalHeaderKey(requestIDHeader), rec.Header().Get("Access-Control-Expose-Headers"))
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
}

func TestStoryIsCompressed(t *testing.T) {
	s := newTestServer(t, 0)
	text := strings.Repeat("a long line of story text ", 200)
	require.Equal(t, http.StatusOK, s.postStory(t, `{"pages":[{"id":"a","type":"text","text":"`+text+`"}]}`).Code)

	req := httptest.NewRequest(http.MethodGet, "/api/story", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := s.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Less(t, len(body), len(text))
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, 0)
	s.postStory(t, `{"pages":[]}`)

	rec := s.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "storyweave_story_saves_total")
}
