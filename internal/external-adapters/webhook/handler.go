package webhook

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/sbuilder/yessfish-builds/internal/domain/entities"
	"github.com/sbuilder/yessfish-builds/internal/domain/interfaces"
	"github.com/sbuilder/yessfish-builds/internal/domain/services"
	orchestrators "github.com/sbuilder/yessfish-builds/internal/domain-orchestrators"
)

// Headers sent by GitHub with every delivery
const (
	SignatureHeader = "X-Hub-Signature-256"
	EventHeader     = "X-GitHub-Event"
	DeliveryHeader  = "X-GitHub-Delivery"
)

// Webhook delivery outcomes, used as the metrics label
const (
	OutcomeTriggered   = "triggered"
	OutcomeIgnored     = "ignored"
	OutcomePing        = "ping"
	OutcomeBadSig      = "invalid_signature"
	OutcomeBadPayload  = "invalid_payload"
	OutcomeRateLimited = "rate_limited"
	OutcomeQueueFull   = "queue_full"
	OutcomeUnavailable = "unavailable"
	OutcomeTooLarge    = "too_large"
)

// Dispatcher queues builds and reports their state
type Dispatcher interface {
	Enqueue(req entities.BuildRequest) (entities.BuildJob, error)
	Get(id string) (entities.BuildJob, error)
	List() []entities.BuildJob
}

// Recorder collects HTTP and webhook metrics
type Recorder interface {
	Middleware(next http.Handler) http.Handler
	RecordWebhook(outcome string)
	Handler() http.Handler
}

// HandlerConfig holds the handler settings
type HandlerConfig struct {
	Secret       []byte
	AppName      string
	Port         string
	MaxBodyBytes int64
	// Descriptor selects the revision built for pushes; empty uses the orchestrator default
	Descriptor string
}

// Handler serves the webhook routes
type Handler struct {
	config     HandlerConfig
	policy     *services.PushPolicy
	dispatcher Dispatcher
	limiter    *RateLimiter
	metrics    Recorder
	logger     interfaces.Logger
	now        func() time.Time
}

// NewHandler creates the webhook handler; limiter and metrics may be nil
func NewHandler(config HandlerConfig, policy *services.PushPolicy, dispatcher Dispatcher, limiter *RateLimiter, metrics Recorder, logger interfaces.Logger) *Handler {
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = 25 << 20
	}
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	return &Handler{
		config:     config,
		policy:     policy,
		dispatcher: dispatcher,
		limiter:    limiter,
		metrics:    metrics,
		logger:     logger,
		now:        time.Now,
	}
}

// Router builds the HTTP routes
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", h.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/health", h.handleHealthPost).Methods(http.MethodPost)
	r.HandleFunc("/webhook", h.handleWebhook).Methods(http.MethodPost)
	r.HandleFunc("/builds", h.handleBuilds).Methods(http.MethodGet)
	r.HandleFunc("/builds/{id}", h.handleBuild).Methods(http.MethodGet)
	if h.metrics != nil {
		r.Handle("/metrics", h.metrics.Handler()).Methods(http.MethodGet)
	}
	r.Use(h.middleware)

	// unknown paths and wrong methods are both plain 404s; mux skips
	// r.Use middleware for these so they get the chain explicitly
	notFound := h.middleware(http.HandlerFunc(h.handleNotFound))
	r.NotFoundHandler = notFound
	r.MethodNotAllowedHandler = notFound

	return r
}

func (h *Handler) middleware(next http.Handler) http.Handler {
	next = h.logRequests(next)
	if h.metrics != nil {
		next = h.metrics.Middleware(next)
	}
	return next
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"app":       h.config.AppName,
		"port":      h.config.Port,
		"timestamp": h.now().Format(time.RFC3339),
	})
}

func (h *Handler) handleHealthPost(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"app":    h.config.AppName,
	})
}

func (h *Handler) handleNotFound(w http.ResponseWriter, r *http.Request) {
	h.logger.Debug("no route", interfaces.F("method", r.Method), interfaces.F("path", r.URL.Path))
	w.WriteHeader(http.StatusNotFound)
}

func (h *Handler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	delivery := r.Header.Get(DeliveryHeader)

	if h.limiter != nil && !h.limiter.Allow(clientKey(r)) {
		h.record(OutcomeRateLimited)
		h.logger.Warn("webhook rate limited", interfaces.F("client", clientKey(r)))
		writeJSON(w, http.StatusTooManyRequests, errorBody("rate limit exceeded"))
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.config.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.record(OutcomeTooLarge)
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody("payload too large"))
			return
		}
		h.record(OutcomeBadPayload)
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read body"))
		return
	}

	if err := services.VerifySignature(h.config.Secret, body, r.Header.Get(SignatureHeader)); err != nil {
		h.record(OutcomeBadSig)
		h.logger.Warn("invalid webhook signature", interfaces.F("delivery", delivery), interfaces.F("client", clientKey(r)))
		writeJSON(w, http.StatusForbidden, errorBody("Invalid signature"))
		return
	}

	if r.Header.Get(EventHeader) == "ping" {
		h.record(OutcomePing)
		h.logger.Info("webhook ping received", interfaces.F("delivery", delivery))
		writeJSON(w, http.StatusOK, map[string]string{"status": "pong"})
		return
	}

	evt, err := ParsePushEvent(body)
	if err != nil {
		h.record(OutcomeBadPayload)
		h.logger.Warn("invalid webhook payload", interfaces.F("delivery", delivery), interfaces.F("error", err))
		writeJSON(w, http.StatusBadRequest, errorBody("Invalid JSON"))
		return
	}

	decision := h.policy.Evaluate(evt)
	if !decision.Trigger {
		h.record(OutcomeIgnored)
		h.logger.Info(decision.Reason, interfaces.F("delivery", delivery))
		w.WriteHeader(http.StatusOK)
		return
	}

	req := decision.Request
	req.Descriptor = h.config.Descriptor
	h.logger.Info("push to build branch",
		interfaces.F("repository", evt.Repository),
		interfaces.F("branch", req.Branch),
		interfaces.F("commit", req.Commit),
		interfaces.F("pusher", req.Pusher),
		interfaces.F("message", req.Message))

	job, err := h.dispatcher.Enqueue(req)
	if err != nil {
		if errors.Is(err, orchestrators.ErrQueueFull) {
			h.record(OutcomeQueueFull)
		} else {
			h.record(OutcomeUnavailable)
		}
		h.logger.Error("failed to queue build", interfaces.F("commit", req.Commit), interfaces.F("error", err))
		writeJSON(w, http.StatusServiceUnavailable, errorBody(err.Error()))
		return
	}

	h.record(OutcomeTriggered)
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "success",
		"message":  "Flutter build triggered",
		"branch":   req.Branch,
		"commit":   req.Commit,
		"app":      h.config.AppName,
		"build_id": job.ID,
	})
}

func (h *Handler) handleBuilds(w http.ResponseWriter, _ *http.Request) {
	jobs := h.dispatcher.List()
	out := make([]buildResponse, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, newBuildResponse(job))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"builds": out})
}

func (h *Handler) handleBuild(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	job, err := h.dispatcher.Get(id)
	if err != nil {
		if errors.Is(err, orchestrators.ErrBuildNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("build not found"))
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorBody(err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, newBuildResponse(job))
}

func (h *Handler) record(outcome string) {
	if h.metrics != nil {
		h.metrics.RecordWebhook(outcome)
	}
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		h.logger.Info("request",
			interfaces.F("method", r.Method),
			interfaces.F("path", r.URL.Path),
			interfaces.F("status", rec.status),
			interfaces.F("client", clientKey(r)),
			interfaces.F("duration", time.Since(start)))
	})
}

type buildResponse struct {
	ID         string             `json:"id"`
	Status     string             `json:"status"`
	Branch     string             `json:"branch"`
	Commit     string             `json:"commit"`
	Pusher     string             `json:"pusher"`
	Message    string             `json:"message"`
	QueuedAt   time.Time          `json:"queued_at"`
	StartedAt  *time.Time         `json:"started_at,omitempty"`
	FinishedAt *time.Time         `json:"finished_at,omitempty"`
	Artifacts  []artifactResponse `json:"artifacts,omitempty"`
	Error      string             `json:"error,omitempty"`
}

type artifactResponse struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	SHA256 string `json:"sha256"`
}

func newBuildResponse(job entities.BuildJob) buildResponse {
	resp := buildResponse{
		ID:       job.ID,
		Status:   string(job.Status),
		Branch:   job.Request.Branch,
		Commit:   job.Request.Commit,
		Pusher:   job.Request.Pusher,
		Message:  job.Request.Message,
		QueuedAt: job.QueuedAt,
		Error:    job.Error,
	}
	if !job.StartedAt.IsZero() {
		t := job.StartedAt
		resp.StartedAt = &t
	}
	if !job.FinishedAt.IsZero() {
		t := job.FinishedAt
		resp.FinishedAt = &t
	}
	for _, a := range job.Artifacts {
		resp.Artifacts = append(resp.Artifacts, artifactResponse{Name: a.Name, Type: a.Type, SHA256: a.SHA256})
	}
	return resp
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
