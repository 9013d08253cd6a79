package apiv1

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/ameeramer/personal-coacher/internal/domain"
	"github.com/ameeramer/personal-coacher/internal/infra/api"
	"github.com/ameeramer/personal-coacher/internal/infra/logging"
	"github.com/ameeramer/personal-coacher/internal/infra/redis"
	"github.com/ameeramer/personal-coacher/internal/usecase"
)

// RateLimiter is what the submit endpoints need from the redis limiter.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// Server wires the v1 REST routes to the use cases.
type Server struct {
	chat          usecase.ChatUseCase
	tools         usecase.ToolUseCase
	jobs          usecase.JobUseCase
	push          usecase.PushUseCase
	notifications usecase.NotificationUseCase

	limiter      RateLimiter
	ratePerMin   int
	jwtSecret    string
	notifySecret string
	presence     api.PresenceToucher

	log *zerolog.Logger
}

type ServerDeps struct {
	Chat          usecase.ChatUseCase
	Tools         usecase.ToolUseCase
	Jobs          usecase.JobUseCase
	Push          usecase.PushUseCase
	Notifications usecase.NotificationUseCase
	Limiter       RateLimiter
	RatePerMin    int
	JWTSecret     string
	NotifySecret  string
	Presence      api.PresenceToucher
	Logger        *zerolog.Logger
}

func NewServer(d ServerDeps) *Server {
	return &Server{
		chat:          d.Chat,
		tools:         d.Tools,
		jobs:          d.Jobs,
		push:          d.Push,
		notifications: d.Notifications,
		limiter:       d.Limiter,
		ratePerMin:    d.RatePerMin,
		jwtSecret:     d.JWTSecret,
		notifySecret:  d.NotifySecret,
		presence:      d.Presence,
		log:           d.Logger,
	}
}

// Router assembles the full route tree with middleware.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(api.TraceID(), api.Recover(s.log), api.RequestLog(s.log), api.Timeout(30*time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/push/public-key", s.handlePublicKey)

		r.Group(func(r chi.Router) {
			r.Use(api.Auth(s.jwtSecret, s.presence, s.log))

			r.Post("/chat/messages", s.handleSendMessage)
			r.Get("/conversations/{conversationID}", s.handleGetConversation)

			r.Post("/tools/generate", s.handleGenerateTool)
			r.Post("/tools/{toolID}/refine", s.handleRefineTool)
			r.Get("/tools/{toolID}", s.handleGetTool)

			r.Get("/jobs/{jobID}", s.handlePollJob)
			r.Post("/jobs/{jobID}/seen", s.handleMarkSeen)

			r.Post("/push/subscriptions", s.handleRegisterPush)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(api.SharedSecret(s.notifySecret))
		r.Post("/internal/notify", s.handleNotify)
	})

	return r
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	owner := api.UserID(r.Context())
	if !s.allow(w, r, owner, "chat_send") {
		return
	}

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed body")
		return
	}

	sub, err := s.chat.SendMessage(r.Context(), owner, req.ConversationID, req.Message)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, sendMessageResponse{
		ConversationID: sub.ConversationID,
		UserMessage:    toMessageResponse(sub.UserMessage),
		PendingMessage: toMessageResponse(sub.PendingMessage),
		JobID:          sub.Job.ID,
		Status:         string(sub.Job.Status),
	})
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	owner := api.UserID(r.Context())
	conv, err := s.chat.GetConversation(r.Context(), owner, chi.URLParam(r, "conversationID"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toConversationResponse(conv))
}

func (s *Server) handleGenerateTool(w http.ResponseWriter, r *http.Request) {
	owner := api.UserID(r.Context())
	if !s.allow(w, r, owner, "tool_generate") {
		return
	}

	var req generateToolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed body")
		return
	}

	sub, err := s.tools.Generate(r.Context(), owner, req.Focus)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toolSubmissionResponse{
		Tool:   toToolResponse(sub.Tool),
		JobID:  sub.Job.ID,
		Status: string(sub.Job.Status),
	})
}

func (s *Server) handleRefineTool(w http.ResponseWriter, r *http.Request) {
	owner := api.UserID(r.Context())
	if !s.allow(w, r, owner, "tool_refine") {
		return
	}

	var req refineToolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed body")
		return
	}

	sub, err := s.tools.Refine(r.Context(), owner, chi.URLParam(r, "toolID"), req.Instructions)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toolSubmissionResponse{
		Tool:   toToolResponse(sub.Tool),
		JobID:  sub.Job.ID,
		Status: string(sub.Job.Status),
	})
}

func (s *Server) handleGetTool(w http.ResponseWriter, r *http.Request) {
	owner := api.UserID(r.Context())
	tool, err := s.tools.GetTool(r.Context(), owner, chi.URLParam(r, "toolID"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toToolResponse(tool))
}

func (s *Server) handlePollJob(w http.ResponseWriter, r *http.Request) {
	owner := api.UserID(r.Context())
	job, err := s.jobs.Poll(r.Context(), owner, chi.URLParam(r, "jobID"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toJobResponse(job))
}

func (s *Server) handleMarkSeen(w http.ResponseWriter, r *http.Request) {
	owner := api.UserID(r.Context())
	if err := s.jobs.MarkSeen(r.Context(), owner, chi.URLParam(r, "jobID")); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, markSeenResponse{Success: true})
}

func (s *Server) handleRegisterPush(w http.ResponseWriter, r *http.Request) {
	owner := api.UserID(r.Context())

	var req registerPushRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed body")
		return
	}

	sub, err := s.push.Register(r.Context(), owner, req.Endpoint, req.Keys.P256dh, req.Keys.Auth)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, registerPushResponse{ID: sub.ID})
}

func (s *Server) handlePublicKey(w http.ResponseWriter, r *http.Request) {
	key, err := s.push.PublicKey()
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, publicKeyResponse{PublicKey: key})
}

func (s *Server) handleNotify(w http.ResponseWriter, r *http.Request) {
	res, err := s.notifications.DispatchPending(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// allow enforces the per-user submit rate limit; a limiter outage fails open.
func (s *Server) allow(w http.ResponseWriter, r *http.Request, owner, action string) bool {
	if s.limiter == nil {
		return true
	}
	ok, err := s.limiter.Allow(r.Context(), redis.UserActionKey(owner, action), s.ratePerMin, time.Minute)
	if err != nil {
		logging.With(r.Context(), s.log).Warn().Err(err).Msg("rate limiter unavailable")
		return true
	}
	if !ok {
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return false
	}
	return true
}

func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, "invalid request")
	case errors.Is(err, domain.ErrPushUnconfigured):
		writeError(w, http.StatusInternalServerError, "push not configured")
	default:
		logging.With(r.Context(), s.log).Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
