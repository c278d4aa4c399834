package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/roach88/components/internal/ir"
	"github.com/roach88/components/internal/store"
	"github.com/roach88/components/internal/telemetry"
)

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithStateStore serves saveComponentState and getComponentState.
func WithStateStore(s store.StateStore) ServerOption {
	return func(srv *Server) {
		srv.states = s
	}
}

// WithSender serves sendToConnection.
func WithSender(s telemetry.Sender) ServerOption {
	return func(srv *Server) {
		srv.sender = s
	}
}

// WithPackageTargets serves getPackageUrls.
func WithPackageTargets(t PackageTargets) ServerOption {
	return func(srv *Server) {
		srv.targets = t
	}
}

// WithServerLogger sets the logger. Defaults to slog.Default().
func WithServerLogger(l *slog.Logger) ServerOption {
	return func(srv *Server) {
		srv.logger = l
	}
}

// Server is the engine side of the protocol spoken by Client.
// Functions without a configured backend answer 501.
type Server struct {
	dispatcher Dispatcher
	states     store.StateStore
	sender     telemetry.Sender
	targets    PackageTargets
	logger     *slog.Logger
	mux        *http.ServeMux
}

// NewServer returns a server that runs components through d.
func NewServer(d Dispatcher, opts ...ServerOption) *Server {
	srv := &Server{
		dispatcher: d,
		logger:     slog.Default(),
		mux:        http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(srv)
	}

	srv.mux.HandleFunc("POST /engine/"+FnRunComponent, srv.runComponent)
	srv.mux.HandleFunc("POST /engine/"+FnSaveComponentState, srv.saveState)
	srv.mux.HandleFunc("POST /engine/"+FnGetComponentState, srv.getState)
	srv.mux.HandleFunc("POST /engine/"+FnSendToConnection, srv.sendToConnection)
	srv.mux.HandleFunc("POST /engine/"+FnGetPackageURLs, srv.packageURLs)
	return srv
}

func (srv *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	srv.mux.ServeHTTP(w, r)
}

func (srv *Server) runComponent(w http.ResponseWriter, r *http.Request) {
	if srv.dispatcher == nil {
		srv.unavailable(w, FnRunComponent)
		return
	}
	var inv ir.Invocation
	if !srv.decode(w, r, &inv) {
		return
	}
	fillAuth(r, &inv.AccessKey, &inv.Org)
	if inv.Inputs == nil {
		inv.Inputs = ir.IRObject{}
	}

	outputs, err := srv.dispatcher.Dispatch(r.Context(), inv)
	if err != nil {
		srv.logger.Info("invocation failed",
			"invocation_id", inv.ID,
			"instance", inv.Name,
			"method", inv.Method,
			"error", err,
		)
		srv.writeError(w, statusFor(r.Context(), err), err)
		return
	}
	if outputs == nil {
		outputs = ir.IRObject{}
	}
	srv.writeJSON(w, outputs)
}

func (srv *Server) saveState(w http.ResponseWriter, r *http.Request) {
	if srv.states == nil {
		srv.unavailable(w, FnSaveComponentState)
		return
	}
	var rec ir.StateRecord
	if !srv.decode(w, r, &rec) {
		return
	}
	fillAuth(r, &rec.AccessKey, &rec.Org)
	if rec.Name == "" {
		srv.writeError(w, http.StatusBadRequest, errors.New("state record has no instance name"))
		return
	}
	if rec.State == nil {
		rec.State = ir.IRObject{}
	}
	if err := srv.states.SaveState(r.Context(), rec.Identity, rec.State); err != nil {
		srv.writeError(w, statusFor(r.Context(), err), err)
		return
	}
	srv.writeJSON(w, ir.IRObject{})
}

func (srv *Server) getState(w http.ResponseWriter, r *http.Request) {
	if srv.states == nil {
		srv.unavailable(w, FnGetComponentState)
		return
	}
	var rec ir.StateRecord
	if !srv.decode(w, r, &rec) {
		return
	}
	fillAuth(r, &rec.AccessKey, &rec.Org)
	state, err := srv.states.ReadState(r.Context(), rec.Identity)
	if err != nil {
		srv.writeError(w, statusFor(r.Context(), err), err)
		return
	}
	srv.writeJSON(w, ir.StateRecord{Identity: rec.Identity, State: state})
}

func (srv *Server) sendToConnection(w http.ResponseWriter, r *http.Request) {
	if srv.sender == nil {
		srv.unavailable(w, FnSendToConnection)
		return
	}
	var ev ir.Event
	if !srv.decode(w, r, &ev) {
		return
	}
	fillAuth(r, &ev.AccessKey, &ev.Org)
	if err := srv.sender.Send(r.Context(), ev); err != nil {
		var ce *telemetry.ConnectionError
		status := statusFor(r.Context(), err)
		if errors.As(err, &ce) {
			status = http.StatusGone
		}
		srv.writeError(w, status, err)
		return
	}
	srv.writeJSON(w, ir.IRObject{})
}

func (srv *Server) packageURLs(w http.ResponseWriter, r *http.Request) {
	if srv.targets == nil {
		srv.unavailable(w, FnGetPackageURLs)
		return
	}
	var req packageURLRequest
	if !srv.decode(w, r, &req) {
		return
	}
	fillAuth(r, &req.AccessKey, &req.Org)
	urls, err := srv.targets.PackageURLs(r.Context(), req.Org, req.AccessKey)
	if err != nil {
		srv.writeError(w, statusFor(r.Context(), err), err)
		return
	}
	srv.writeJSON(w, urls)
}

func (srv *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		srv.writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return false
	}
	return true
}

func (srv *Server) unavailable(w http.ResponseWriter, fn string) {
	srv.writeError(w, http.StatusNotImplemented, fmt.Errorf("%s is not served by this engine", fn))
}

func (srv *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		srv.logger.Warn("write response", "error", err)
	}
}

func (srv *Server) writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if encErr := json.NewEncoder(w).Encode(ir.ErrorPayloadFrom(err)); encErr != nil {
		srv.logger.Warn("write error response", "error", encErr)
	}
}

// fillAuth takes the access key and org from headers when the body left
// them out.
func fillAuth(r *http.Request, accessKey, org *string) {
	if *accessKey == "" {
		if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
			*accessKey = token
		}
	}
	if *org == "" {
		*org = r.Header.Get(headerOrg)
	}
}

func statusFor(ctx context.Context, err error) int {
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	var be *BackendError
	if errors.As(err, &be) && be.Status >= 400 {
		return be.Status
	}
	return http.StatusInternalServerError
}
