package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
	"github.com/klauspost/compress/gzhttp"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"storyweave/materials"
	"storyweave/media"
	"storyweave/models"
	"storyweave/persist"
)

const (
	// DefaultUploadLimit is the largest accepted media file.
	DefaultUploadLimit = 100 << 20

	// multipart framing on top of the file itself
	multipartSlack   = 1 << 20
	multipartMemory  = 32 << 20
	materialsPrefix  = "/materials/"
	maxStoryBodySize = 16 << 20
)

// Handler serves the story endpoint, media uploads and the materials.
type Handler struct {
	stories     persist.Store
	materials   materials.Materials
	uploadLimit int64
	logger      *zap.Logger
	now         func() time.Time
}

func New(stories persist.Store, mats materials.Materials, uploadLimit int64, logger *zap.Logger) *Handler {
	if uploadLimit <= 0 {
		uploadLimit = DefaultUploadLimit
	}
	return &Handler{
		stories:     stories,
		materials:   mats,
		uploadLimit: uploadLimit,
		logger:      logger.Named("http"),
		now:         time.Now,
	}
}

// Router returns the full handler chain: gzip, CORS, request logging and the
// routes.
func (h *Handler) Router() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/api/story", h.getStory).Methods(http.MethodGet)
	r.HandleFunc("/api/story", h.saveStory).Methods(http.MethodPost)
	r.HandleFunc("/api/upload", h.upload).Methods(http.MethodPost)
	r.HandleFunc("/materials/{name}", h.material).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/health", healthCheck).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	return gzhttp.GzipHandler(cors(requestLogger(h.logger, r)))
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func (h *Handler) getStory(w http.ResponseWriter, r *http.Request) {
	m, err := h.stories.Load(r.Context())
	if errors.Is(err, models.ErrNoStory) {
		writeJSON(w, http.StatusOK, models.Manifest{Version: models.ManifestVersion, Pages: []models.ManifestPage{}})
		return
	}
	if err != nil {
		h.logger.Error("Failed to load story", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to read story data")
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *Handler) saveStory(w http.ResponseWriter, r *http.Request) {
	var m models.Manifest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxStoryBodySize)).Decode(&m); err != nil {
		storySavesTotal.WithLabelValues("invalid").Inc()
		writeError(w, http.StatusBadRequest, "Invalid story data")
		return
	}
	if m.Pages == nil {
		storySavesTotal.WithLabelValues("invalid").Inc()
		writeError(w, http.StatusBadRequest, "Invalid story data: pages must be an array")
		return
	}
	if err := m.Validate(); err != nil {
		storySavesTotal.WithLabelValues("invalid").Inc()
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	for i := range m.Pages {
		m.Pages[i].BlobID = ""
	}
	m.UpdatedAt = h.now().UTC()
	if m.Version == "" {
		m.Version = models.ManifestVersion
	}

	err := h.stories.Save(r.Context(), &m)
	switch {
	case errors.Is(err, models.ErrStaleRevision):
		storySavesTotal.WithLabelValues("stale").Inc()
		writeError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		storySavesTotal.WithLabelValues("error").Inc()
		h.logger.Error("Failed to save story", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to save story data")
		return
	}
	storySavesTotal.WithLabelValues("ok").Inc()
	storyPagesSaved.Set(float64(len(m.Pages)))
	h.logger.Info("Story saved", zap.Int("pages", len(m.Pages)), zap.Uint64("revision", m.Revision))
	writeJSON(w, http.StatusOK, persist.SaveResponse{Success: true, Message: "Story saved"})
}

func (h *Handler) tooLarge(w http.ResponseWriter) {
	uploadsTotal.WithLabelValues("too_large").Inc()
	writeError(w, http.StatusRequestEntityTooLarge,
		fmt.Sprintf("File too large (max %s)", humanize.IBytes(uint64(h.uploadLimit))))
}

func (h *Handler) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.uploadLimit+multipartSlack)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.tooLarge(w)
			return
		}
		uploadsTotal.WithLabelValues("invalid").Inc()
		writeError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		uploadsTotal.WithLabelValues("invalid").Inc()
		writeError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer file.Close()
	if header.Size > h.uploadLimit {
		h.tooLarge(w)
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		head := make([]byte, 512)
		n, _ := io.ReadFull(file, head)
		contentType = media.SniffMime(head[:n], header.Filename)
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			uploadsTotal.WithLabelValues("error").Inc()
			writeError(w, http.StatusInternalServerError, "Failed to upload file")
			return
		}
	}

	name := materials.FileName(header.Filename, h.now())
	if err := h.materials.Put(r.Context(), name, file, header.Size, contentType); err != nil {
		uploadsTotal.WithLabelValues("error").Inc()
		h.logger.Error("Failed to store upload", zap.String("file", name), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to upload file")
		return
	}
	uploadsTotal.WithLabelValues("ok").Inc()
	uploadedBytesTotal.Add(float64(header.Size))
	h.logger.Info("Media uploaded",
		zap.String("file", name),
		zap.String("original", header.Filename),
		zap.String("size", humanize.Bytes(uint64(header.Size))),
		zap.String("content_type", contentType))
	writeJSON(w, http.StatusOK, media.UploadResponse{
		Success:      true,
		FileName:     name,
		FilePath:     materialsPrefix + name,
		OriginalName: header.Filename,
	})
}

func (h *Handler) material(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	obj, err := h.materials.Open(r.Context(), name)
	if errors.Is(err, models.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		h.logger.Error("Failed to open material", zap.String("name", name), zap.Error(err))
		http.Error(w, "Failed to read file", http.StatusInternalServerError)
		return
	}
	defer obj.Close()
	if obj.ContentType != "" {
		w.Header().Set("Content-Type", obj.ContentType)
	}
	http.ServeContent(w, r, name, obj.ModTime, obj)
}

func healthCheck(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}
