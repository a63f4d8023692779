package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	extension "github.com/effectus/extension-sdk"
	"github.com/effectus/extension-sdk/events"
)

// WebhookConfig holds configuration of the notification endpoint
type WebhookConfig struct {
	ListenAddr string            `json:"listen_addr" yaml:"listen_addr" split_words:"true"`
	Path       string            `json:"path" yaml:"path" split_words:"true"`
	AuthMethod string            `json:"auth_method" yaml:"auth_method" split_words:"true"`
	AuthConfig map[string]string `json:"auth_config" yaml:"auth_config" split_words:"true"`
}

// Webhook receives host notifications as {"event", "data"} POST bodies and
// emits them on an Emitter.
type Webhook struct {
	config  WebhookConfig
	emitter extension.Emitter
	server  *http.Server
	logger  *zap.Logger
}

// NewWebhook creates a webhook endpoint
func NewWebhook(config WebhookConfig, emitter extension.Emitter, logger *zap.Logger) (*Webhook, error) {
	if emitter == nil {
		return nil, fmt.Errorf("webhook requires an emitter")
	}
	switch config.AuthMethod {
	case "", "none", "bearer_token", "api_key":
	default:
		return nil, fmt.Errorf("unknown auth method %q", config.AuthMethod)
	}
	if config.ListenAddr == "" {
		config.ListenAddr = ":8080"
	}
	if config.Path == "" {
		config.Path = "/webhook"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Webhook{config: config, emitter: emitter, logger: logger}, nil
}

// Handler returns the endpoint's handler
func (w *Webhook) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(w.config.Path, w.handleNotification)
	return mux
}

// Start listens in the background
func (w *Webhook) Start(ctx context.Context) error {
	if w.server != nil {
		return fmt.Errorf("webhook already started")
	}
	w.server = &http.Server{Addr: w.config.ListenAddr, Handler: w.Handler()}

	go func() {
		if err := w.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			w.logger.Error("webhook server error", zap.Error(err))
		}
	}()

	w.logger.Info("webhook started", zap.String("addr", w.config.ListenAddr), zap.String("path", w.config.Path))
	return nil
}

// Stop shuts the server down
func (w *Webhook) Stop(ctx context.Context) error {
	if w.server == nil {
		return nil
	}
	if err := w.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown webhook server: %w", err)
	}
	w.server = nil
	w.logger.Info("webhook stopped")
	return nil
}

func (w *Webhook) handleNotification(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(rw, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	if !w.authenticateRequest(r) {
		http.Error(rw, "Unauthorized", http.StatusUnauthorized)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(rw, "Bad Request", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	name, data, err := events.DecodeNotification(string(body))
	if err != nil {
		w.logger.Warn("rejecting notification", zap.Error(err))
		http.Error(rw, "Bad Request", http.StatusBadRequest)
		return
	}

	w.emitter.Emit(r.Context(), name, data)

	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(http.StatusOK)
	json.NewEncoder(rw).Encode(map[string]string{"status": "received", "event": name})
}

// authenticateRequest validates the incoming request
func (w *Webhook) authenticateRequest(r *http.Request) bool {
	switch w.config.AuthMethod {
	case "none", "":
		return true
	case "bearer_token":
		return w.validateBearerToken(r)
	case "api_key":
		return w.validateAPIKey(r)
	default:
		return false
	}
}

func (w *Webhook) validateBearerToken(r *http.Request) bool {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return false
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	expected := w.config.AuthConfig["token"]
	return expected != "" && token == expected
}

func (w *Webhook) validateAPIKey(r *http.Request) bool {
	header := w.config.AuthConfig["token_header"]
	if header == "" {
		header = "X-API-Key"
	}
	expected := w.config.AuthConfig["expected_token"]
	return expected != "" && r.Header.Get(header) == expected
}
