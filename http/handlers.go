package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"organicscan/classifier"
	"organicscan/monitoring"
	"organicscan/spectral"
)

const (
	ServiceName = "Organic Tester API"
	Version     = "1.0.0"
)

// ModelStatus reports whether the models are loaded without loading them.
type ModelStatus interface {
	Loaded() bool
}

// API holds the handlers' dependencies. Hub and metrics are optional.
type API struct {
	predictor classifier.Predictor
	models    ModelStatus
	hub       *monitoring.ScanHub
	metrics   *monitoring.Metrics
	logger    *zap.Logger
}

type APIOption func(*API)

func WithScanHub(hub *monitoring.ScanHub) APIOption {
	return func(a *API) { a.hub = hub }
}

func WithMetrics(metrics *monitoring.Metrics) APIOption {
	return func(a *API) { a.metrics = metrics }
}

func WithLogger(logger *zap.Logger) APIOption {
	return func(a *API) {
		if logger != nil {
			a.logger = logger.Named("api")
		}
	}
}

func NewAPI(predictor classifier.Predictor, models ModelStatus, opts ...APIOption) *API {
	a := &API{predictor: predictor, models: models, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

type route struct {
	method  string
	path    string
	handler http.Handler
}

func (a *API) routes() []route {
	routes := []route{
		{http.MethodGet, "/", http.HandlerFunc(a.handleIndex)},
		{http.MethodPost, "/api/scan", http.HandlerFunc(a.handleScan)},
		{http.MethodGet, "/api/health", http.HandlerFunc(a.handleHealth)},
		{http.MethodGet, "/api/info", http.HandlerFunc(a.handleInfo)},
	}
	if a.metrics != nil {
		routes = append(routes, route{http.MethodGet, "/api/metrics", a.metrics.Handler()})
	}
	if a.hub != nil {
		routes = append(routes, route{http.MethodGet, "/api/ws/scans", a.hub})
	}
	return routes
}

// Register mounts every route plus a JSON fallback for unknown paths and
// wrong methods.
func (a *API) Register(mux *http.ServeMux) {
	methods := make(map[string][]string)
	for _, rt := range a.routes() {
		pattern := rt.path
		if pattern == "/" {
			pattern = "/{$}"
		}
		mux.Handle(rt.method+" "+pattern, a.metrics.WrapHandler(rt.path, rt.handler))
		methods[rt.path] = append(methods[rt.path], rt.method)
		if rt.method == http.MethodGet {
			methods[rt.path] = append(methods[rt.path], http.MethodHead)
		}
	}

	allow := make(map[string]string, len(methods))
	for path, m := range methods {
		allow[path] = strings.Join(append(m, http.MethodOptions), ", ")
	}
	mux.Handle("/", a.metrics.WrapHandler("unmatched", fallback(a.logger, allow)))
}

func fallback(logger *zap.Logger, allow map[string]string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if methods, ok := allow[r.URL.Path]; ok {
			w.Header().Set("Allow", methods)
			respondError(logger, w, http.StatusMethodNotAllowed, "Method not allowed", "The HTTP method is not allowed for this endpoint")
			return
		}
		respondError(logger, w, http.StatusNotFound, "Not found", "The requested resource does not exist")
	}
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type scanResponse struct {
	Success  bool                        `json:"success"`
	Data     classifier.PredictionResult `json:"data"`
	Warnings []string                    `json:"warnings,omitempty"`
}

func (a *API) handleScan(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	event := monitoring.ScanEvent{RequestID: GetRequestID(r.Context())}
	defer func() {
		event.LatencyMillis = float64(time.Since(start).Microseconds()) / 1000
		a.record(event)
	}()
	logger := a.logger.With(zap.String("request_id", event.RequestID))

	body, err := decodeBody(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			event.Outcome, event.Error = "too_large", err.Error()
			respondError(a.logger, w, http.StatusRequestEntityTooLarge, "Request too large",
				fmt.Sprintf("Request body must not exceed %d bytes", tooLarge.Limit))
			return
		}
		event.Outcome, event.Error = "invalid_json", err.Error()
		respondError(a.logger, w, http.StatusBadRequest, "Invalid request", "Request body must be valid JSON")
		return
	}

	validation, err := spectral.Validate(body)
	if err != nil {
		kind := spectral.KindOf(err)
		event.Outcome, event.Error = outcome(kind), err.Error()
		logger.Debug("scan rejected", zap.String("kind", string(kind)), zap.Error(err))
		respondError(a.logger, w, http.StatusBadRequest, kind.Title(), err.Error())
		return
	}

	var warnings []string
	for _, anomaly := range validation.Anomalies {
		warnings = append(warnings, anomaly.String())
		event.OutOfRange = append(event.OutOfRange, anomaly.Index)
	}
	if len(warnings) > 0 {
		logger.Warn("spectral values outside nominal range", zap.Strings("warnings", warnings))
	}

	result, err := a.predictor.Predict(validation.Reading)
	switch {
	case errors.Is(err, classifier.ErrModelUnavailable):
		event.Outcome, event.Error = "model_unavailable", err.Error()
		logger.Error("models unavailable", zap.Error(err))
		respondError(a.logger, w, http.StatusInternalServerError, "Model not found",
			"Machine learning models are not available. Please train models first.")
		return
	case err != nil:
		event.Outcome, event.Error = "prediction_error", err.Error()
		logger.Error("prediction failed", zap.Error(err))
		respondError(a.logger, w, http.StatusInternalServerError, "Prediction error", "An error occurred during prediction")
		return
	}

	event.Outcome = "ok"
	event.Fruit = result.Fruit.String()
	event.OrganicStatus = result.OrganicStatus.String()
	event.FruitConfidence = result.FruitConfidence
	event.OrganicConfidence = result.OrganicConfidence
	respondJSON(a.logger, w, http.StatusOK, scanResponse{Success: true, Data: result, Warnings: warnings})
}

func (a *API) record(event monitoring.ScanEvent) {
	a.metrics.Scan(event.Outcome)
	a.metrics.OutOfRange(len(event.OutOfRange))
	if event.Outcome == "ok" {
		a.metrics.Prediction(event.Fruit, event.OrganicStatus)
	}
	if a.hub != nil {
		if err := a.hub.PublishScan(event); err != nil {
			a.logger.Warn("publish scan event", zap.Error(err))
		}
	}
}

// decodeBody reads exactly one JSON value. Numbers stay json.Number so
// integer and float literals both reach the validator intact.
func decodeBody(r io.Reader) (any, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var body any
	if err := dec.Decode(&body); err != nil {
		return nil, err
	}
	if body == nil {
		return nil, errors.New("request body is null")
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, err
		}
		return nil, errors.New("unexpected data after JSON body")
	}
	return body, nil
}

func outcome(kind spectral.ErrorKind) string {
	switch kind {
	case spectral.MissingField:
		return "missing_field"
	case spectral.InvalidType:
		return "invalid_type"
	case spectral.InvalidSize:
		return "invalid_size"
	case spectral.InvalidValue:
		return "invalid_value"
	default:
		return "invalid_input"
	}
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	loaded := a.models.Loaded()
	status, code := "healthy", http.StatusOK
	if !loaded {
		status, code = "unhealthy", http.StatusServiceUnavailable
	}
	respondJSON(a.logger, w, code, map[string]any{
		"status":        status,
		"service":       ServiceName,
		"models_loaded": loaded,
	})
}

type endpointInfo struct {
	Method          string         `json:"method"`
	Description     string         `json:"description"`
	InputFormat     map[string]any `json:"input_format,omitempty"`
	ExampleRequest  map[string]any `json:"example_request,omitempty"`
	ExampleResponse map[string]any `json:"example_response,omitempty"`
}

func (a *API) handleInfo(w http.ResponseWriter, r *http.Request) {
	endpoints := map[string]endpointInfo{
		"/api/scan": {
			Method:      http.MethodPost,
			Description: "Analyze spectral data to classify fruit and organic status",
			InputFormat: map[string]any{
				spectral.FieldName: fmt.Sprintf("Array of %d numeric values representing spectral channels F1-F%d", spectral.ChannelCount, spectral.ChannelCount),
			},
			ExampleRequest: map[string]any{
				spectral.FieldName: []float64{0.45, 0.52, 0.58, 0.62, 0.55, 0.48, 0.42, 0.38},
			},
			ExampleResponse: map[string]any{
				"success": true,
				"data": classifier.PredictionResult{
					Fruit:             classifier.Apple,
					OrganicStatus:     classifier.Organic,
					FruitConfidence:   0.95,
					OrganicConfidence: 0.87,
				},
			},
		},
		"/api/health": {Method: http.MethodGet, Description: "Check API health and model availability"},
		"/api/info":   {Method: http.MethodGet, Description: "Get API information and documentation"},
	}
	if a.metrics != nil {
		endpoints["/api/metrics"] = endpointInfo{Method: http.MethodGet, Description: "Prometheus metrics"}
	}
	if a.hub != nil {
		endpoints["/api/ws/scans"] = endpointInfo{Method: http.MethodGet, Description: "WebSocket stream of scan results"}
	}

	respondJSON(a.logger, w, http.StatusOK, map[string]any{
		"api":               ServiceName,
		"version":           Version,
		"endpoints":         endpoints,
		"supported_fruits":  classifier.FruitNames(),
		"spectral_channels": spectral.ChannelNames(),
	})
}

func (a *API) handleIndex(w http.ResponseWriter, r *http.Request) {
	endpoints := map[string]string{
		"root":   "/",
		"health": "/api/health",
		"info":   "/api/info",
		"scan":   "/api/scan (POST)",
	}
	if a.metrics != nil {
		endpoints["metrics"] = "/api/metrics"
	}
	if a.hub != nil {
		endpoints["scans_stream"] = "/api/ws/scans (WebSocket)"
	}
	respondJSON(a.logger, w, http.StatusOK, map[string]any{
		"message":   ServiceName + " is running",
		"status":    "online",
		"version":   Version,
		"endpoints": endpoints,
	})
}

func respondJSON(logger *zap.Logger, w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Warn("failed to encode JSON response", zap.Error(err))
	}
}

func respondError(logger *zap.Logger, w http.ResponseWriter, status int, title, message string) {
	respondJSON(logger, w, status, errorResponse{Error: title, Message: message})
}
