package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"afterhours/internal/auth"
	"afterhours/internal/game"
	"afterhours/internal/loop"
	"afterhours/internal/session"
)

type contextKey string

const playerContextKey contextKey = "player"

type Server struct {
	log  *slog.Logger
	auth *auth.Service
	loop *loop.Loop
	reg  *session.Registry
	mux  *chi.Mux
}

func New(logger *slog.Logger, authSvc *auth.Service, gameLoop *loop.Loop, reg *session.Registry) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		log:  logger,
		auth: authSvc,
		loop: gameLoop,
		reg:  reg,
		mux:  chi.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	r := s.mux
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	r.Route("/v1", func(r chi.Router) {
		// The websocket route lives outside the timeout middleware;
		// sessions are long-lived on purpose.
		r.With(s.authMiddleware).Get("/ws", s.handleWS)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(30 * time.Second))

			r.Post("/auth/signup", s.handleSignup)
			r.Post("/auth/login", s.handleLogin)

			r.Get("/market", s.handleMarket)
			r.Get("/leaderboard", s.handleLeaderboard)

			r.Group(func(r chi.Router) {
				r.Use(s.authMiddleware)
				r.Post("/auth/logout", s.handleLogout)
				r.Post("/orders", s.handleOrder)
				r.Post("/covert", s.handleCovert)
			})
		})
	})
}

// authMiddleware accepts the token as a bearer header or, for websocket
// clients that cannot set headers, a query parameter.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			token = r.URL.Query().Get("token")
		}
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		player, err := s.auth.Verify(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		ctx := context.WithValue(r.Context(), playerContextKey, player)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func playerFromContext(ctx context.Context) (string, error) {
	player, ok := ctx.Value(playerContextKey).(string)
	if !ok || player == "" {
		return "", errors.New("no player in context")
	}
	return player, nil
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Name     string `json:"name"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	token, err := s.auth.Register(strings.TrimSpace(in.Name), in.Password)
	if err != nil {
		writeAuthError(w, err)
		return
	}
	if err := s.loop.Join(r.Context(), strings.TrimSpace(in.Name)); err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"token": token})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Name     string `json:"name"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	token, err := s.auth.Login(in.Name, in.Password)
	if err != nil {
		writeAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": token})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r.Header.Get("Authorization"))
	s.auth.Logout(token)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleMarket(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.loop.MarketView())
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"leaderboard": s.loop.Leaderboard()})
}

func (s *Server) handleOrder(w http.ResponseWriter, r *http.Request) {
	player, err := playerFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var in struct {
		Symbol   string `json:"symbol"`
		Side     string `json:"side"`
		Quantity int64  `json:"quantity"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	symbol := strings.ToUpper(strings.TrimSpace(in.Symbol))
	if err := game.ValidateSymbol(symbol); err != nil {
		writeDomainError(w, err)
		return
	}
	side := game.Side(strings.ToLower(strings.TrimSpace(in.Side)))
	if side != game.SideBuy && side != game.SideSell {
		writeError(w, http.StatusBadRequest, "side must be buy or sell")
		return
	}
	if in.Quantity <= 0 {
		writeError(w, http.StatusBadRequest, "quantity must be > 0")
		return
	}
	fill, err := s.loop.SubmitOrder(r.Context(), game.OrderInput{
		Player:   player,
		Symbol:   symbol,
		Side:     side,
		Quantity: in.Quantity,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fill)
}

func (s *Server) handleCovert(w http.ResponseWriter, r *http.Request) {
	player, err := playerFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var in game.CovertAction
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	in.Symbol = strings.ToUpper(strings.TrimSpace(in.Symbol))
	if err := s.loop.SubmitCovert(r.Context(), player, in); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"queued": in.Describe()})
}

func writeAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidName), errors.Is(err, auth.ErrNameTaken):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, game.ErrInvalidSymbol),
		errors.Is(err, game.ErrInsufficientFunds),
		errors.Is(err, game.ErrInsufficientShares),
		errors.Is(err, game.ErrNoSharesAvailable):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, game.ErrUnknownTarget), errors.Is(err, game.ErrUnknownPlayer):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, game.ErrCompanyEliminated):
		writeError(w, http.StatusGone, err.Error())
	case errors.Is(err, game.ErrWrongPhase),
		errors.Is(err, game.ErrCovertQueued),
		errors.Is(err, game.ErrGameOver):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, game.ErrCovertLocked):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, game.ErrEngineFatal):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func bearerToken(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": strings.TrimSpace(message)})
}
