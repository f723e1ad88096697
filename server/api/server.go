// Package api is the request layer: plain CRUD plumbing over the chat
// service. Live delivery concerns stay inside the hub; the only
// coupling is that sending a message dispatches it synchronously after
// persistence.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/dsemenov/converse/auth"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

const (
	defaultShutdownDeadline = 10 * time.Second
)

var (
	ErrUnexpected = errors.New("unexpected server error")
)

type GenericResponse struct {
	Message string      `json:"message,omitempty"`
	Error   string      `json:"error,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

type Server struct {
	logger   zerolog.Logger
	svc      ChatService
	validate *validator.Validate
	tokens   *auth.Authenticator
	*http.Server
}

type Config struct {
	Logger        *zerolog.Logger
	ChatService   ChatService
	Authenticator *auth.Authenticator
	ListenAddr    string
}

func NewServer(cfg Config) *Server {
	srv := &Server{
		logger:   cfg.Logger.With().Str("component", "api-server").Logger(),
		svc:      cfg.ChatService,
		validate: validator.New(),
		tokens:   cfg.Authenticator,
	}

	r := http.NewServeMux()
	r.HandleFunc("POST /api/auth/login", srv.login)
	r.HandleFunc("GET /api/auth/user", srv.authenticated(srv.currentUser))
	r.HandleFunc("GET /api/users", srv.authenticated(srv.listUsers))
	r.HandleFunc("GET /api/chats", srv.authenticated(srv.listChats))
	r.HandleFunc("POST /api/chats/direct", srv.authenticated(srv.createDirectChat))
	r.HandleFunc("POST /api/chats/group", srv.authenticated(srv.createGroupChat))
	r.HandleFunc("GET /api/chats/{chatID}/messages", srv.authenticated(srv.listMessages))
	r.HandleFunc("POST /api/chats/{chatID}/messages", srv.authenticated(srv.sendMessage))
	r.HandleFunc("OPTIONS /", corsHandler)

	srv.Server = &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: r,
	}
	return srv
}

func corsHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
	w.Header().Set("Access-Control-Max-Age", "86400")
	w.Header().Set("Access-Control-Allow-Credentials", "true")
	w.WriteHeader(http.StatusNoContent)
}

func (srv *Server) Run(ctx context.Context, wg *sync.WaitGroup, errc chan<- error) {
	defer func() {
		srv.logger.Debug().Msg("server stopped")
		wg.Done()
	}()

	hErr := make(chan error)
	go func() {
		hErr <- srv.ListenAndServe()
	}()

	srv.logger.Info().Str("addr", srv.Addr).Msg("server started")

	select {
	case err := <-hErr:
		if !errors.Is(err, http.ErrServerClosed) {
			errc <- errors.Join(ErrUnexpected, err)
		}
	case <-ctx.Done():
		shCtx, shCancel := context.WithTimeout(context.Background(), defaultShutdownDeadline)
		defer shCancel()
		if err := srv.Shutdown(shCtx); err != nil {
			srv.logger.Error().Err(err).Msg("server shutdown failed")
		}
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	writeBytes(w, code, b)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, &GenericResponse{Error: msg})
}

func writeBytes(w http.ResponseWriter, code int, b []byte) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(b)))
	w.WriteHeader(code)
	if _, err := w.Write(b); err != nil {
		log.Printf("failed to write response: %v", err)
	}
}
