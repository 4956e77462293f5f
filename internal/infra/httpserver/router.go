package httpserver

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	appsonify "github.com/bryanwahyu/sonifier/internal/application/sonify"
	domain "github.com/bryanwahyu/sonifier/internal/domain/sonify"
	"github.com/bryanwahyu/sonifier/internal/middleware"
)

// Options configures the HTTP surface around the service.
type Options struct {
	Logger          *slog.Logger
	APIKeys         map[string]string // tenant -> key, empty disables auth
	CORSOrigins     []string
	RateLimiter     *middleware.RateLimiter // nil disables rate limiting
	Checkers        map[string]middleware.HealthChecker
	OptionalChecks  []string
	MaxUploadBytes  int64
	DefaultDuration int
	Composer        *domain.Composer
}

type Router struct {
	svc  *appsonify.Service
	opts Options
	log  *slog.Logger
}

func NewRouter(svc *appsonify.Service, opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 20 << 20
	}
	if opts.DefaultDuration <= 0 {
		opts.DefaultDuration = 10
	}
	if opts.Composer == nil {
		opts.Composer = domain.NewComposer()
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}
	r := &Router{svc: svc, opts: opts, log: opts.Logger}

	mux := chi.NewRouter()
	mux.Use(chimw.RequestID)
	mux.Use(chimw.Recoverer)
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	mux.Use(middleware.LoggingMiddleware(opts.Logger))
	mux.Use(middleware.MetricsMiddleware)
	mux.Use(middleware.APIKeyAuth(opts.APIKeys))
	if opts.RateLimiter != nil {
		mux.Use(middleware.RateLimitMiddleware(opts.RateLimiter))
	}

	mux.Get("/", r.handleIndex)
	mux.Get("/health", middleware.HealthHandler(opts.Checkers, opts.OptionalChecks...))
	mux.Get("/ready", middleware.ReadinessHandler)
	mux.Get("/live", middleware.LivenessHandler)
	mux.Get("/metrics", middleware.MetricsHandler)

	mux.Route("/v1/{tenant}", func(rt chi.Router) {
		rt.Use(middleware.RequireValidTenant)
		rt.Post("/sonify", r.wrap(r.handleSonify))
		rt.Post("/compose", r.wrap(r.handleCompose))
		rt.Get("/sonifications", r.wrap(r.handleList))
		rt.Get("/sonifications/latest", r.wrap(r.handleLatest))
		rt.Get("/sonifications/{id}", r.wrap(r.handleGet))
		rt.Get("/sonifications/{id}/failures", r.wrap(r.handleFailures))
		rt.Get("/sonifications/{id}/audio", r.wrap(r.handleAudio))
		rt.Get("/summary", r.wrap(r.handleSummary))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}
		status := statusFor(err)
		if status == http.StatusServiceUnavailable {
			w.Header().Set("Retry-After", "30")
		}
		if status >= 500 {
			r.log.ErrorContext(req.Context(), "request failed", "path", req.URL.Path, "err", err)
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
	}
}

func statusFor(err error) int {
	var maxErr *http.MaxBytesError
	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, sql.ErrNoRows):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnsupportedMedia):
		return http.StatusUnsupportedMediaType
	case errors.As(err, &maxErr):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, domain.ErrResourceExhausted):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

// GET /
func (r *Router) handleIndex(w http.ResponseWriter, req *http.Request) {
	_ = writeJSON(w, http.StatusOK, map[string]any{
		"service": "sonifier",
		"message": "image to music sonification API",
		"endpoints": []string{
			"POST /v1/{tenant}/sonify",
			"POST /v1/{tenant}/compose",
			"GET /v1/{tenant}/sonifications",
			"GET /v1/{tenant}/sonifications/{id}/audio",
			"GET /v1/{tenant}/summary",
			"GET /health",
		},
	})
}

type sonifyResponse struct {
	*domain.Record
	DownloadURL string `json:"download_url,omitempty"`
}

func downloadURL(rec *domain.Record) string {
	return fmt.Sprintf("/v1/%s/sonifications/%s/audio", rec.TenantID, rec.ID)
}

// POST /v1/{tenant}/sonify (multipart: image, duration) [?async=true]
func (r *Router) handleSonify(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")

	req.Body = http.MaxBytesReader(w, req.Body, r.opts.MaxUploadBytes)
	if err := req.ParseMultipartForm(8 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return err
		}
		return fmt.Errorf("%w: expected multipart form with an image field: %v", domain.ErrInvalidInput, err)
	}
	defer req.MultipartForm.RemoveAll()

	file, header, err := req.FormFile("image")
	if err != nil {
		return fmt.Errorf("%w: image file is required", domain.ErrInvalidInput)
	}
	defer file.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(file, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read upload: %w", err)
	}
	head = head[:n]
	if err := middleware.ValidateImageUpload(header.Filename, head); err != nil {
		return err
	}

	rawDuration := req.FormValue("duration")
	duration, err := middleware.ParseDuration(rawDuration, r.opts.DefaultDuration)
	if err != nil {
		return err
	}

	cmd := appsonify.SonifyCommand{
		TenantID:  tenant,
		ImageName: header.Filename,
		Image:     io.MultiReader(bytes.NewReader(head), file),
		Duration:  &duration,
	}

	if async, _ := strconv.ParseBool(req.URL.Query().Get("async")); async {
		rec, err := r.svc.SonifyAsync(req.Context(), cmd)
		if err != nil {
			return err
		}
		return writeJSON(w, http.StatusAccepted, sonifyResponse{Record: rec, DownloadURL: downloadURL(rec)})
	}

	done := middleware.StartSonification()
	rec, err := r.svc.Sonify(req.Context(), cmd)
	if err != nil {
		done(err, false, 0)
		return err
	}
	done(nil, rec.Retried, rec.DurationSeconds)
	return writeJSON(w, http.StatusOK, sonifyResponse{Record: rec, DownloadURL: downloadURL(rec)})
}

// POST /v1/{tenant}/compose
// Body: {"caption": "...", "primary_mood": "...", "mood_scores": [{"label": "...", "confidence": 0.4}]}
func (r *Router) handleCompose(w http.ResponseWriter, req *http.Request) error {
	var body domain.AnalysisResult
	dec := json.NewDecoder(io.LimitReader(req.Body, 1<<20))
	if err := dec.Decode(&body); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %v", domain.ErrInvalidInput, err)
	}
	caption := middleware.SanitizeString(body.Caption)
	if caption == "" {
		caption = domain.FallbackCaption
	}
	mood := strings.ToLower(middleware.SanitizeString(body.PrimaryMood))
	if mood == "" && len(body.MoodScores) > 0 {
		mood = body.MoodScores[0].Label
	}
	if mood == "" {
		mood = domain.FallbackMood
	}
	for _, s := range body.MoodScores {
		if s.Confidence < 0 || s.Confidence > 1 {
			return fmt.Errorf("%w: confidence of %q must be within [0,1]", domain.ErrInvalidInput, s.Label)
		}
	}

	return writeJSON(w, http.StatusOK, map[string]any{
		"prompt":       r.opts.Composer.Compose(caption, mood, body.MoodScores),
		"genre_hint":   r.opts.Composer.GenreHint(caption, mood),
		"caption":      caption,
		"primary_mood": mood,
	})
}

// GET /v1/{tenant}/sonifications?page=&page_size=&status=&mood=&caption=
func (r *Router) handleList(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	q := req.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	size, _ := strconv.Atoi(q.Get("page_size"))

	if err := middleware.ValidateStatus(q.Get("status")); err != nil {
		return err
	}
	filters := map[string]string{
		"status":  q.Get("status"),
		"mood":    middleware.SanitizeString(q.Get("mood")),
		"caption": middleware.SanitizeString(q.Get("caption")),
	}

	list, err := r.svc.List(req.Context(), tenant, middleware.ValidatePage(page), middleware.ValidateLimit(size), filters)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, list)
}

// GET /v1/{tenant}/sonifications/latest?limit=20
func (r *Router) handleLatest(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))

	list, err := r.svc.Latest(req.Context(), tenant, middleware.ValidateLimit(limit))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, list)
}

// GET /v1/{tenant}/sonifications/{id}
func (r *Router) handleGet(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	id := chi.URLParam(req, "id")
	if err := middleware.ValidateSonificationID(id); err != nil {
		return err
	}

	rec, err := r.svc.Get(req.Context(), tenant, domain.ID(id))
	if err != nil {
		return err
	}
	resp := sonifyResponse{Record: rec}
	if rec.Status == domain.StatusSuccess {
		resp.DownloadURL = downloadURL(rec)
	}
	return writeJSON(w, http.StatusOK, resp)
}

// GET /v1/{tenant}/sonifications/{id}/failures?limit=20
func (r *Router) handleFailures(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	id := chi.URLParam(req, "id")
	if err := middleware.ValidateSonificationID(id); err != nil {
		return err
	}
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))

	list, err := r.svc.Failures(req.Context(), tenant, domain.ID(id), middleware.ValidateLimit(limit))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, list)
}

// GET /v1/{tenant}/sonifications/{id}/audio
func (r *Router) handleAudio(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	id := chi.URLParam(req, "id")
	if err := middleware.ValidateSonificationID(id); err != nil {
		return err
	}

	rc, size, err := r.svc.OpenAudio(req.Context(), tenant, domain.ID(id))
	if err != nil {
		return err
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="sonified_%s.wav"`, id))
	if size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	}
	w.Header().Set("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
	if _, err := io.Copy(w, rc); err != nil {
		// headers are already sent; only log
		r.log.WarnContext(req.Context(), "audio stream interrupted", "id", id, "err", err)
	}
	return nil
}

// GET /v1/{tenant}/summary?days=7
func (r *Router) handleSummary(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	days, _ := strconv.Atoi(req.URL.Query().Get("days"))

	summary, err := r.svc.Summary(req.Context(), tenant, middleware.ValidateDays(days))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, summary)
}
