package httpapi

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"github.com/ticketpool/ticketpool-simulation-go/simulation"
)

const (
	routeHealth     = "GET /api/health"
	routeStatistics = "GET /api/simulation/statistics"
	routeStart      = "POST /api/simulation/start"
	routeStop       = "POST /api/simulation/stop"
	routeReset      = "POST /api/simulation/reset"

	maxRequestBodyBytes = 1 << 16

	metricRequests        = "httpapi_requests_total"
	metricRequestDuration = "httpapi_request_duration_seconds"
	labelRoute            = "route"
	labelStatus           = "status"
	logMsgRequestFailed   = "http request failed"
	logMsgWriteFailed     = "writing http response failed"
	logAttrRoute          = "route"
	logAttrStatus         = "status"
	logAttrError          = "error"
)

var (
	// ErrNilController is returned when NewHandler receives no coordinator.
	ErrNilController = errors.New("controller must not be nil")

	// ErrNilMetricsCollector is returned when WithMetrics receives nil.
	ErrNilMetricsCollector = errors.New("metrics collector must not be nil")

	// ErrInvalidRequestBody is returned for start bodies that are not a JSON config object.
	ErrInvalidRequestBody = errors.New("invalid request body")
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// Controller is the part of simulation.Coordinator the API drives.
type Controller interface {
	Start(cfg simulation.Config) error
	Stop() error
	Reset() error
	Status() simulation.RunStatus
}

// Logger interface for request failures.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// MetricsCollector interface for request counts and latencies.
type MetricsCollector interface {
	RecordDuration(metric string, duration time.Duration, labels map[string]string)
	IncrementCounter(metric string, labels map[string]string)
	RecordValue(metric string, value float64, labels map[string]string)
}

// StatusResponse is the body of the statistics, start, stop and reset routes.
type StatusResponse struct {
	State      string `json:"state"`
	RunID      string `json:"runId,omitempty"`
	Available  int    `json:"available"`
	Produced   int    `json:"produced"`
	Sold       int    `json:"sold"`
	IsComplete bool   `json:"isComplete"`
	Error      string `json:"error,omitempty"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Option defines a functional option for configuring a Handler.
type Option func(*Handler) error

// WithLogger sets the logger for the Handler.
func WithLogger(logger Logger) Option {
	return func(h *Handler) error {
		h.logger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the Handler.
func WithMetrics(collector MetricsCollector) Option {
	return func(h *Handler) error {
		if collector == nil {
			return ErrNilMetricsCollector
		}

		h.metricsCollector = collector

		return nil
	}
}

// WithBaseConfig sets the config a start request body is merged onto.
func WithBaseConfig(cfg simulation.Config) Option {
	return func(h *Handler) error {
		h.baseConfig = cfg
		return nil
	}
}

// Handler serves the simulation API.
type Handler struct {
	controller       Controller
	baseConfig       simulation.Config
	mux              *http.ServeMux
	logger           Logger
	metricsCollector MetricsCollector
}

// NewHandler creates a Handler for controller.
func NewHandler(controller Controller, options ...Option) (*Handler, error) {
	if controller == nil {
		return nil, ErrNilController
	}

	h := &Handler{
		controller: controller,
		baseConfig: simulation.DefaultConfig(),
		mux:        http.NewServeMux(),
	}

	for _, option := range options {
		if err := option(h); err != nil {
			return nil, err
		}
	}

	h.handle(routeHealth, h.health)
	h.handle(routeStatistics, h.statistics)
	h.handle(routeStart, h.start)
	h.handle(routeStop, h.stop)
	h.handle(routeReset, h.reset)

	return h, nil
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) handle(route string, fn func(r *http.Request) (int, any)) {
	h.mux.HandleFunc(route, func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		status, body := fn(r)

		h.writeJSON(w, status, body)
		h.observe(route, status, time.Since(start))
	})
}

func (h *Handler) health(_ *http.Request) (int, any) {
	return http.StatusOK, map[string]string{"status": "ok"}
}

func (h *Handler) statistics(_ *http.Request) (int, any) {
	return http.StatusOK, statusResponseFrom(h.controller.Status())
}

func (h *Handler) start(r *http.Request) (int, any) {
	cfg, err := h.decodeConfig(r.Body)
	if err != nil {
		return http.StatusBadRequest, ErrorResponse{Error: err.Error()}
	}

	if err = h.controller.Start(cfg); err != nil {
		return statusCodeFor(err), ErrorResponse{Error: err.Error()}
	}

	return http.StatusAccepted, statusResponseFrom(h.controller.Status())
}

func (h *Handler) stop(_ *http.Request) (int, any) {
	if err := h.controller.Stop(); err != nil {
		return statusCodeFor(err), ErrorResponse{Error: err.Error()}
	}

	return http.StatusOK, statusResponseFrom(h.controller.Status())
}

func (h *Handler) reset(_ *http.Request) (int, any) {
	if err := h.controller.Reset(); err != nil {
		return statusCodeFor(err), ErrorResponse{Error: err.Error()}
	}

	return http.StatusOK, statusResponseFrom(h.controller.Status())
}

// decodeConfig merges an optional JSON body onto the base config.
func (h *Handler) decodeConfig(body io.Reader) (simulation.Config, error) {
	cfg := h.baseConfig

	raw, err := io.ReadAll(io.LimitReader(body, maxRequestBodyBytes))
	if err != nil {
		return simulation.Config{}, errors.Join(ErrInvalidRequestBody, err)
	}

	if len(raw) == 0 {
		return cfg, nil
	}

	if err = jsonAPI.Unmarshal(raw, &cfg); err != nil {
		return simulation.Config{}, errors.Join(ErrInvalidRequestBody, err)
	}

	return cfg, nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := jsonAPI.NewEncoder(w).Encode(body); err != nil && h.logger != nil {
		h.logger.Warn(logMsgWriteFailed, logAttrError, err.Error())
	}
}

func (h *Handler) observe(route string, status int, duration time.Duration) {
	if status >= http.StatusInternalServerError && h.logger != nil {
		h.logger.Error(logMsgRequestFailed, logAttrRoute, route, logAttrStatus, status)
	}

	if h.metricsCollector == nil {
		return
	}

	labels := map[string]string{labelRoute: route, labelStatus: strconv.Itoa(status)}
	h.metricsCollector.IncrementCounter(metricRequests, labels)
	h.metricsCollector.RecordDuration(metricRequestDuration, duration, labels)
}

func statusCodeFor(err error) int {
	switch {
	case errors.Is(err, simulation.ErrInvalidConfig):
		return http.StatusBadRequest
	case errors.Is(err, simulation.ErrInvalidState), errors.Is(err, simulation.ErrResetWhileRunning):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func statusResponseFrom(status simulation.RunStatus) StatusResponse {
	response := StatusResponse{
		State:      status.State.String(),
		Available:  status.Statistics.Available,
		Produced:   status.Statistics.Produced,
		Sold:       status.Statistics.Sold,
		IsComplete: status.Statistics.IsComplete,
	}

	if status.RunID != uuid.Nil {
		response.RunID = status.RunID.String()
	}

	if status.Err != nil {
		response.Error = status.Err.Error()
	}

	return response
}
