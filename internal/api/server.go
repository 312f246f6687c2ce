// Package api serves the reply service over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	router *chi.Mux
	port   int
	svc    ReplyUseCase
	logger *slog.Logger
}

func NewServer(svc ReplyUseCase, port int, logger *slog.Logger) (*Server, error) {
	if svc == nil {
		return nil, errors.New("api: use case must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{router: router, port: port, svc: svc, logger: logger}

	router.Get("/health", s.health)
	router.Post("/generate_reply", s.generateReply)
	router.Post("/detect_ad", s.detectAd)
	router.Get("/reply_history/{userID}/{postID}", s.history)
	router.Delete("/reply_history/{userID}/{postID}", s.deleteHistory)

	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("API server starting", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.logger.Info("API server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, NewHealthResponse(s.svc.Health()))
}

func (s *Server) generateReply(w http.ResponseWriter, r *http.Request) {
	var req GenerateReplyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, InvalidBody(err))
		return
	}
	out, err := s.svc.GenerateReply(r.Context(), req.Input())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, NewGenerateReplyResponse(out))
}

func (s *Server) detectAd(w http.ResponseWriter, r *http.Request) {
	var req DetectAdRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, InvalidBody(err))
		return
	}
	out, err := s.svc.DetectAd(r.Context(), req.Input())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, NewDetectAdResponse(out))
}

func (s *Server) history(w http.ResponseWriter, r *http.Request) {
	out, err := s.svc.History(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "postID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, NewHistoryResponse(out))
}

func (s *Server) deleteHistory(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteHistory(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "postID")); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, NewDeleteResponse())
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := StatusForError(err)
	logFn := s.logger.Warn
	if status >= http.StatusInternalServerError {
		logFn = s.logger.Error
	}
	logFn("request failed",
		"path", r.URL.Path,
		"request_id", middleware.GetReqID(r.Context()),
		"status", status,
		"code", body.Error,
		"err", err,
	)
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
