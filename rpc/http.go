package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"sentechain/core"
	"sentechain/crypto"
	"sentechain/gateway/middleware"
	"sentechain/integrations/mirror"
	"sentechain/native/lending"
	"sentechain/observability"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

// MirrorReader is the read side of the persistence mirror.
type MirrorReader interface {
	UserProfile(ctx context.Context, address string) (*mirror.UserProfile, error)
	UserLoans(ctx context.Context, borrower string, activeOnly bool) ([]mirror.LoanRow, error)
	ScoreHistory(ctx context.Context, address string, limit int) ([]mirror.ScoreChangeRow, error)
	LoanStats(ctx context.Context) (*mirror.LoanStats, error)
	PlatformStats(ctx context.Context) (*mirror.PlatformStats, error)
}

type Config struct {
	Node    *core.Node
	Mirror  MirrorReader
	Logger  *slog.Logger
	Version string
	// Authenticator resolves callers from bearer tokens. When nil, or when
	// it is disabled, the caller parameter of each request is trusted.
	Authenticator *middleware.Authenticator
	AuthEnabled   bool
	RateLimiter   *middleware.RateLimiter
	Observability *middleware.Observability
	CORS          middleware.CORSConfig
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      json.RawMessage   `json:"id,omitempty"`
}

type RPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type method func(r *http.Request, params []json.RawMessage) (interface{}, error)

type Server struct {
	node    *core.Node
	mirror  MirrorReader
	logger  *slog.Logger
	version string
	cfg     Config
	hub     *Hub
	methods map[string]method
	// trustCaller accepts the caller parameter as the caller identity.
	trustCaller bool
}

func NewServer(cfg Config) (*Server, error) {
	if cfg.Node == nil {
		return nil, errors.New("rpc: node required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		node:        cfg.Node,
		mirror:      cfg.Mirror,
		logger:      logger.With("component", "rpc"),
		version:     cfg.Version,
		cfg:         cfg,
		hub:         NewHub(logger),
		methods:     make(map[string]method),
		trustCaller: cfg.Authenticator == nil || !cfg.AuthEnabled,
	}
	cfg.Node.Subscribe(s.hub)
	s.registerReputation()
	s.registerLending()
	s.registerCredential()
	s.registerToken()
	s.registerSystem()
	s.registerMirror()
	return s, nil
}

// Hub returns the websocket event hub.
func (s *Server) Hub() *Hub { return s.hub }

// Methods lists the registered JSON-RPC method names.
func (s *Server) Methods() []string {
	out := make([]string, 0, len(s.methods))
	for name := range s.methods {
		out = append(out, name)
	}
	return out
}

// Handler assembles the HTTP surface of the node.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.CORS(s.cfg.CORS))

	obs := s.cfg.Observability
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/version", s.handleVersion)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(gr chi.Router) {
		if s.cfg.Authenticator != nil {
			gr.Use(s.cfg.Authenticator.Middleware())
		}
		if s.cfg.RateLimiter != nil {
			gr.Use(s.cfg.RateLimiter.Middleware())
		}
		if obs != nil {
			gr.Use(obs.Middleware("rpc"))
		}
		gr.Post("/rpc", s.handle)
		gr.Post("/", s.handle)
	})
	r.Group(func(gr chi.Router) {
		if s.cfg.RateLimiter != nil {
			gr.Use(s.cfg.RateLimiter.Middleware())
		}
		if obs != nil {
			gr.Use(obs.Middleware("ws"))
		}
		gr.Get("/ws/events", s.hub.ServeWS)
	})
	return otelhttp.NewHandler(r, "sentechaind")
}

func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"version": s.version,
		"height":  s.node.Height(),
		"pool":    s.node.PoolAddress().String(),
	})
}

func writeError(w http.ResponseWriter, status int, id json.RawMessage, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id json.RawMessage, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
		}
		writeError(w, status, nil, codeInvalidRequest, message, ErrorData{Reason: "InvalidRequest", Detail: err.Error()})
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", ErrorData{Reason: "InvalidRequest"})
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", ErrorData{Reason: "ParseError", Detail: err.Error()})
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", ErrorData{Reason: "InvalidRequest", Detail: req.JSONRPC})
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", ErrorData{Reason: "InvalidRequest"})
		return
	}
	fn, ok := s.methods[req.Method]
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method not found", ErrorData{Reason: "MethodNotFound", Detail: req.Method})
		return
	}

	start := time.Now()
	result, err := fn(r, req.Params)
	module, name := splitMethod(req.Method)
	if err != nil {
		f := classify(err)
		observability.ModuleMetrics().Observe(module, name, f.reason, time.Since(start))
		if f.status == http.StatusInternalServerError {
			s.logger.Error("rpc call failed", "method", req.Method, "error", err)
		}
		data := ErrorData{Reason: f.reason}
		if errors.Is(err, lending.ErrLoanDefaulted) {
			data.Result = result
		}
		var pe *paramError
		if errors.As(err, &pe) {
			data.Detail = pe.detail
		}
		writeError(w, f.status, req.ID, f.code, err.Error(), data)
		return
	}
	observability.ModuleMetrics().Observe(module, name, "", time.Since(start))
	writeResult(w, req.ID, result)
}

func splitMethod(full string) (string, string) {
	module, name, ok := strings.Cut(full, "_")
	if !ok {
		return "rpc", full
	}
	return module, name
}

// decodeParams unmarshals the single parameter object into dst. Unknown
// fields are rejected.
func decodeParams(params []json.RawMessage, dst interface{}) error {
	switch len(params) {
	case 0:
		return &paramError{cause: errEmptyParams, detail: "expected [ { ... } ]"}
	case 1:
	default:
		return &paramError{cause: errTooManyParams, detail: fmt.Sprintf("got %d parameters", len(params))}
	}
	dec := json.NewDecoder(bytes.NewReader(params[0]))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return &paramError{cause: errMalformedParams, detail: err.Error()}
	}
	return nil
}

// decodeOptionalParams accepts an empty parameter list.
func decodeOptionalParams(params []json.RawMessage, dst interface{}) error {
	if len(params) == 0 {
		return nil
	}
	return decodeParams(params, dst)
}

func parseAddress(field, raw string) (crypto.Address, error) {
	addr, err := crypto.DecodeAddress(strings.TrimSpace(raw))
	if err != nil {
		return crypto.Address{}, &paramError{cause: errInvalidAddress, detail: fmt.Sprintf("%s: %v", field, err)}
	}
	return addr, nil
}

func parseAmount(field, raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, &paramError{cause: errInvalidAmount, detail: fmt.Sprintf("%s: %q", field, raw)}
	}
	return amount, nil
}

type callerParam struct {
	Caller string `json:"caller,omitempty"`
}

// caller resolves the identity a mutation acts as: the authenticated caller
// when present, otherwise the caller parameter if the server trusts it.
func (s *Server) caller(r *http.Request, p callerParam) (crypto.Address, error) {
	if addr, ok := middleware.CallerFromContext(r.Context()); ok {
		return addr, nil
	}
	if s.trustCaller && strings.TrimSpace(p.Caller) != "" {
		return parseAddress("caller", p.Caller)
	}
	return crypto.Address{}, errMissingCaller
}

type mutationResult struct {
	OK     bool   `json:"ok"`
	Height uint64 `json:"height"`
}

func committed(height uint64) mutationResult {
	return mutationResult{OK: true, Height: height}
}
