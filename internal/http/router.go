package httpx

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"log/slog"

	"github.com/gorilla/websocket"

	"github.com/splax/installer/internal/domain"
	"github.com/splax/installer/internal/service/installation"
	"github.com/splax/installer/internal/ws"
)

const (
	maxBodyBytes       = 1 << 20
	healthCheckTimeout = 2 * time.Second
	sseHeartbeat       = 15 * time.Second
	wsPingInterval     = 30 * time.Second
)

// ActivationService runs the environment step of the installer.
type ActivationService interface {
	ActivateClassic(ctx context.Context, raw string) domain.ActivationResult
	ActivateWizard(ctx context.Context, form map[string]string) domain.ActivationResult
}

// InstallationService runs the database stage.
type InstallationService interface {
	Complete(ctx context.Context) (installation.Result, error)
}

// EnvironmentContent exposes the current environment file for the classic editor.
type EnvironmentContent interface {
	Content() (string, error)
}

// Router wires HTTP endpoints to services.
type Router struct {
	mux          *http.ServeMux
	logger       *slog.Logger
	activation   ActivationService
	installation InstallationService
	env          EnvironmentContent
	hub          *ws.Hub
	upgrader     websocket.Upgrader
	limiter      RateLimiter
	rateLimit    int
	rateWindow   time.Duration
	pingInterval time.Duration
	metrics      *metrics

	healthMu sync.RWMutex
	health   map[string]func(context.Context) error
}

// NewRouter assembles routes with dependencies.
func NewRouter(logger *slog.Logger, activationSvc ActivationService, installationSvc InstallationService, env EnvironmentContent, hub *ws.Hub, limiter RateLimiter, rateLimit int, rateWindow time.Duration) *Router {
	r := &Router{
		mux:          http.NewServeMux(),
		logger:       logger,
		activation:   activationSvc,
		installation: installationSvc,
		env:          env,
		hub:          hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		limiter:      limiter,
		rateLimit:    rateLimit,
		rateWindow:   rateWindow,
		pingInterval: wsPingInterval,
		metrics:      newMetrics(),
		health:       make(map[string]func(context.Context) error),
	}
	if r.limiter == nil {
		r.limiter = NewMemoryRateLimiter()
	}
	r.register()
	return r
}

// ServeHTTP delegates to underlying mux.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Close releases background resources.
func (r *Router) Close() {
	if r.limiter != nil {
		r.limiter.Close()
	}
}

// AddHealthCheck registers a named dependency check reported by /healthz.
func (r *Router) AddHealthCheck(name string, check func(context.Context) error) {
	r.healthMu.Lock()
	defer r.healthMu.Unlock()
	r.health[name] = check
}

func (r *Router) register() {
	r.mux.HandleFunc("/healthz", r.audit("/healthz", r.handleHealthz))
	r.mux.Handle("/metrics", r.metrics.handler())
	r.mux.HandleFunc("/install/environment", r.audit("/install/environment", r.handleEnvironment))
	r.mux.HandleFunc("/install/environment/classic", r.audit("/install/environment/classic", r.withRateLimit("/install/environment/classic", r.handleClassic)))
	r.mux.HandleFunc("/install/environment/wizard", r.audit("/install/environment/wizard", r.withRateLimit("/install/environment/wizard", r.handleWizard)))
	r.mux.HandleFunc("/install/database", r.audit("/install/database", r.withRateLimit("/install/database", r.handleDatabase)))
	r.mux.HandleFunc("/ws/notices", r.audit("/ws/notices", r.handleNoticesWS))
	r.mux.HandleFunc("/sse/notices", r.audit("/sse/notices", r.handleNoticesSSE))
}

func (r *Router) handleEnvironment(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	content, err := r.env.Content()
	if err != nil {
		r.logger.Error("read environment file failed", "error", err)
		writeError(w, http.StatusInternalServerError, "could not read environment file")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"env_config": content})
}

func (r *Router) handleClassic(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	fields, err := decodeFields(w, req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	result := r.activation.ActivateClassic(req.Context(), fields["env_config"])
	r.recordActivation(result)
	writeJSON(w, activationStatus(result), result)
}

func (r *Router) handleWizard(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	form, err := decodeFields(w, req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	result := r.activation.ActivateWizard(req.Context(), form)
	r.recordActivation(result)
	writeJSON(w, activationStatus(result), result)
}

func (r *Router) handleDatabase(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	result, err := r.installation.Complete(req.Context())
	if err != nil {
		r.recordInstallation("error")
		if errors.Is(err, installation.ErrNoConnection) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		r.logger.Error("database stage failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	r.recordInstallation("ok")
	writeJSON(w, http.StatusOK, result)
}

func (r *Router) handleNoticesWS(w http.ResponseWriter, req *http.Request) {
	if r.hub == nil {
		writeError(w, http.StatusServiceUnavailable, "notice stream disabled")
		return
	}
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	client := ws.NewClient(conn, r.logger)
	r.hub.Register(client)

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	go func() {
		ticker := time.NewTicker(r.pingInterval)
		defer func() {
			ticker.Stop()
			r.hub.Unregister(client)
			client.Close()
		}()
		for {
			select {
			case <-readDone:
				return
			case <-r.hub.Done():
				return
			case <-ticker.C:
				if err := client.Ping(); err != nil {
					r.logger.Debug("websocket ping failed", "error", err)
					return
				}
			}
		}
	}()
}

func (r *Router) handleNoticesSSE(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	if r.hub == nil {
		writeError(w, http.StatusServiceUnavailable, "notice stream disabled")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	headers := w.Header()
	headers.Set("Content-Type", "text/event-stream")
	headers.Set("Cache-Control", "no-cache")
	headers.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	client := ws.NewSSEClient(w, flusher, r.logger)
	r.hub.Register(client)
	defer r.hub.Unregister(client)

	ticker := time.NewTicker(sseHeartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-req.Context().Done():
			client.Close()
			return
		case <-r.hub.Done():
			return
		case <-ticker.C:
			if err := client.Heartbeat(); err != nil {
				return
			}
		}
	}
}

func (r *Router) handleHealthz(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	r.healthMu.RLock()
	names := make([]string, 0, len(r.health))
	for name := range r.health {
		names = append(names, name)
	}
	sort.Strings(names)
	checks := make(map[string]func(context.Context) error, len(r.health))
	for name, check := range r.health {
		checks[name] = check
	}
	r.healthMu.RUnlock()

	components := make(map[string]any)
	status := "ok"
	for _, name := range names {
		ctx, cancel := context.WithTimeout(req.Context(), healthCheckTimeout)
		err := checks[name](ctx)
		cancel()
		if err != nil {
			status = "degraded"
			components[name] = map[string]any{"status": "down", "error": err.Error()}
			continue
		}
		components[name] = map[string]any{"status": "up"}
	}
	payload := map[string]any{
		"status":     status,
		"components": components,
		"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
	}
	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, payload)
}

// decodeFields reads a JSON object or an urlencoded form into string fields.
func decodeFields(w http.ResponseWriter, req *http.Request) (map[string]string, error) {
	req.Body = http.MaxBytesReader(w, req.Body, maxBodyBytes)
	mediaType, _, _ := mime.ParseMediaType(req.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var raw map[string]any
		if err := json.NewDecoder(req.Body).Decode(&raw); err != nil {
			return nil, errors.New("invalid JSON body")
		}
		fields := make(map[string]string, len(raw))
		for k, v := range raw {
			fields[k] = stringify(v)
		}
		return fields, nil
	}
	if err := req.ParseForm(); err != nil {
		return nil, errors.New("invalid form body")
	}
	fields := make(map[string]string, len(req.PostForm))
	for k := range req.PostForm {
		fields[k] = req.PostForm.Get(k)
	}
	return fields, nil
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

func activationStatus(res domain.ActivationResult) int {
	if res.OK() {
		return http.StatusOK
	}
	return http.StatusUnprocessableEntity
}

func (r *Router) audit(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w}
		start := time.Now()
		next(recorder, req)

		status := recorder.status
		if status == 0 {
			status = http.StatusOK
		}
		duration := time.Since(start)
		r.recordRequestMetrics(req.Method, route, status, duration)
		fields := []any{
			"method", req.Method,
			"path", req.URL.Path,
			"status", status,
			"bytes", recorder.bytes,
			"duration_ms", duration.Milliseconds(),
		}
		if ip := clientIP(req); ip != "" {
			fields = append(fields, "ip", ip)
		}
		if reqID := strings.TrimSpace(req.Header.Get("X-Request-ID")); reqID != "" {
			fields = append(fields, "request_id", reqID)
		}

		switch {
		case status >= http.StatusInternalServerError:
			r.logger.Error("http_request", fields...)
		case status >= http.StatusBadRequest:
			r.logger.Warn("http_request", fields...)
		default:
			r.logger.Info("http_request", fields...)
		}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n
	return n, err
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := sr.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, errors.New("hijacker not supported")
}

func clientIP(req *http.Request) string {
	if forwarded := strings.TrimSpace(req.Header.Get("X-Forwarded-For")); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			ip := strings.TrimSpace(parts[0])
			if ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(req.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(req.RemoteAddr)
	}
	return host
}

func (r *Router) applyRateHeaders(w http.ResponseWriter, limit int, decision rateDecision) {
	if limit <= 0 {
		return
	}
	remaining := limit - decision.count
	if remaining < 0 {
		remaining = 0
	}
	headers := w.Header()
	headers.Set("X-RateLimit-Limit", strconv.Itoa(limit))
	headers.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	if !decision.windowEnd.IsZero() {
		headers.Set("X-RateLimit-Reset", strconv.FormatInt(decision.windowEnd.Unix(), 10))
	}
}

func (r *Router) methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}
