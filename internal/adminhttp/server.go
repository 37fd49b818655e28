// Package adminhttp serves the operator endpoints: health, live counts, and realm cleanup.
package adminhttp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/park285/kakao-minigame-bot/internal/minigame"
	"github.com/park285/kakao-minigame-bot/internal/obslog"
	"github.com/park285/kakao-minigame-bot/pkg/gamedto"
)

type Engine interface {
	Stats() minigame.EngineStats
	Sessions(realm string) []minigame.Session
	DropRealm(realm string) ([]minigame.Session, []minigame.Challenge)
}

// RealmForgetter drops per-room state kept outside the engine (the mention roster).
type RealmForgetter interface {
	Forget(ctx context.Context, room string) error
}

type Server struct {
	eng    Engine
	forget RealmForgetter
	health func() error
	log    *zap.Logger
	srv    *http.Server
}

type Option func(*Server)

func WithRealmForgetter(f RealmForgetter) Option { return func(s *Server) { s.forget = f } }

// WithHealthCheck makes /healthz answer 503 while fn returns an error.
func WithHealthCheck(fn func() error) Option { return func(s *Server) { s.health = fn } }

func New(eng Engine, opts ...Option) *Server {
	s := &Server{eng: eng, log: obslog.Named("adminhttp")}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.accessLog)

	r.Get("/healthz", s.healthz)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/stats", s.stats)
		r.Get("/realms/{realm}/sessions", s.sessions)
		r.Delete("/realms/{realm}", s.dropRealm)
	})
	return r
}

// Start listens on addr in the background; an empty addr disables the server.
func (s *Server) Start(addr string) {
	if strings.TrimSpace(addr) == "" {
		return
	}
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
	go func() {
		s.log.Info("admin_listen", zap.String("addr", addr))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("admin_listen_failed", zap.Error(err))
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("admin_request",
			zap.String("method", r.Method), zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()), zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	if s.health != nil {
		if err := s.health(); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "reason": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) stats(w http.ResponseWriter, _ *http.Request) {
	st := s.eng.Stats()
	writeJSON(w, http.StatusOK, gamedto.EngineStats{Sessions: st.Sessions, Challenges: st.Challenges, ByKind: st.ByKind})
}

func (s *Server) sessions(w http.ResponseWriter, r *http.Request) {
	realm := chi.URLParam(r, "realm")
	list := s.eng.Sessions(realm)
	out := make([]gamedto.Session, 0, len(list))
	for i := range list {
		out = append(out, toSession(&list[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) dropRealm(w http.ResponseWriter, r *http.Request) {
	realm := strings.TrimSpace(chi.URLParam(r, "realm"))
	if realm == "" {
		writeJSON(w, http.StatusBadRequest, gamedto.Error{Error: "realm required"})
		return
	}
	ss, chs := s.eng.DropRealm(realm)
	if s.forget != nil {
		if err := s.forget.Forget(r.Context(), realm); err != nil {
			s.log.Warn("roster_forget_failed", zap.String("realm", realm), zap.Error(err))
		}
	}
	res := gamedto.DropResult{Realm: realm, Sessions: make([]gamedto.Session, 0, len(ss)), Challenges: make([]gamedto.Challenge, 0, len(chs))}
	for i := range ss {
		res.Sessions = append(res.Sessions, toSession(&ss[i]))
	}
	for _, c := range chs {
		res.Challenges = append(res.Challenges, gamedto.Challenge{
			ID:         c.ID,
			Realm:      c.Realm,
			Kind:       c.Kind,
			Challenger: c.Challenger,
			Challenged: c.Challenged,
			ExpiresAt:  c.ExpiresAt,
		})
	}
	writeJSON(w, http.StatusOK, res)
}

func toSession(s *minigame.Session) gamedto.Session {
	d := gamedto.Session{
		ID:        s.ID,
		Realm:     s.Realm,
		Kind:      s.Kind,
		Mode:      string(s.Mode),
		Primary:   s.Primary,
		Secondary: s.Secondary,
		Names:     s.Names,
		Turn:      string(s.Turn),
		Round:     s.Round,
		Scores:    map[string]int{},
		Moves:     make([]gamedto.Move, 0, len(s.Moves)),
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
	for slot, v := range s.Scores {
		d.Scores[string(slot)] = v
	}
	for _, m := range s.Moves {
		d.Moves = append(d.Moves, gamedto.Move{Round: m.Round, Slot: string(m.Slot), Player: m.Player, Points: m.Points})
	}
	return d
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		obslog.L().Warn("admin_encode_failed", zap.Error(err))
	}
}
