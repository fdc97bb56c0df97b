package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/jackc/pgx/v5"

	"enigma-holdem/server/agent"
	"enigma-holdem/server/engine"
	"enigma-holdem/server/session"
	"enigma-holdem/server/store"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

type API struct {
	games   *session.Registry
	db      *store.DB // optional
	presets Presets
	origins []string
	log     *log.Logger

	upgrader websocket.Upgrader
}

func NewAPI(games *session.Registry, db *store.DB, presets Presets, origins []string, logger *log.Logger) *API {
	a := &API{
		games:   games,
		db:      db,
		presets: presets,
		origins: origins,
		log:     logger,
	}
	a.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return a.originAllowed(r.Header.Get("Origin")) },
	}
	return a
}

func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(a.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(a.cors)

	r.Get("/api/health", a.health)
	r.Route("/api/games", func(r chi.Router) {
		r.Post("/", a.createGame)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", a.getGame)
			r.Delete("/", a.deleteGame)
			r.Get("/legal", a.legal)
			r.Get("/observation", a.observation)
			r.Post("/actions", a.applyAction)
			r.Post("/next-hand", a.nextHand)
			r.Get("/ws", a.watch)
		})
	})
	r.Get("/api/duels/last", a.lastDuel)
	return r
}

func (a *API) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			a.log.Debug("request", "method", r.Method, "path", r.URL.Path, "status", ww.Status(),
				"bytes", ww.BytesWritten(), "dur", time.Since(start), "req", middleware.GetReqID(r.Context()))
		}()
		next.ServeHTTP(ww, r)
	})
}

func (a *API) originAllowed(origin string) bool {
	if origin == "" {
		return true
	}
	for _, o := range a.origins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

// cors answers preflight requests and tags responses for the allowed
// frontend origins.
func (a *API) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && a.originAllowed(origin) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Add("Vary", "Origin")
			if r.Method == http.MethodOptions {
				h.Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
				if req := r.Header.Get("Access-Control-Request-Headers"); req != "" {
					h.Set("Access-Control-Allow-Headers", req)
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (a *API) health(w http.ResponseWriter, r *http.Request) {
	out := map[string]any{"status": "ok", "message": "Hello from Enigma Backend", "games": a.games.Len()}
	if a.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		out["db"] = a.db.Ping(ctx) == nil
	}
	writeJSON(w, out)
}

type createGameReq struct {
	ID        string         `json:"id"`
	Preset    string         `json:"preset"`
	Config    *engine.Config `json:"config"`
	UserChips *int           `json:"user_chips"`
	BotChips  *int           `json:"bot_chips"`
	Dealer    *int           `json:"dealer"`
	Seed      int64          `json:"seed"`
	Resume    bool           `json:"resume"`
}

func (a *API) createGame(w http.ResponseWriter, r *http.Request) {
	var req createGameReq
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	cfg, err := a.presets.Lookup(req.Preset)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Config != nil {
		cfg = *req.Config
	}
	dealer := engine.RandomDealer
	if req.Dealer != nil {
		dealer = *req.Dealer
	}
	s, err := a.games.Create(r.Context(), session.CreateRequest{
		ID:        req.ID,
		Config:    cfg,
		UserChips: req.UserChips,
		BotChips:  req.BotChips,
		Dealer:    dealer,
		Seed:      req.Seed,
		Resume:    req.Resume,
	})
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, view(r, s))
}

func (a *API) getGame(w http.ResponseWriter, r *http.Request) {
	s, err := a.games.Get(chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, view(r, s))
}

func (a *API) deleteGame(w http.ResponseWriter, r *http.Request) {
	if err := a.games.Delete(chi.URLParam(r, "id")); err != nil {
		a.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) legal(w http.ResponseWriter, r *http.Request) {
	player := engine.PlayerID(r.URL.Query().Get("player"))
	l, err := a.games.Legal(chi.URLParam(r, "id"), player)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, l)
}

// observation is the seat-driver view: own hole cards only, plus the
// legal menu when the player is on turn.
func (a *API) observation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	player := engine.PlayerID(r.URL.Query().Get("player"))
	s, err := a.games.Get(id)
	if err != nil {
		a.fail(w, err)
		return
	}
	if _, ok := s.Seat(player); !ok {
		writeError(w, http.StatusBadRequest, engine.ErrUnknownPlayer)
		return
	}
	l, err := a.games.Legal(id, player)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, agent.BuildObservation(s, l))
}

type actionReq struct {
	Player string `json:"player"`
	Action string `json:"action"`
	Amount int    `json:"amount"`
}

func (a *API) applyAction(w http.ResponseWriter, r *http.Request) {
	var req actionReq
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s, err := a.games.Apply(r.Context(), chi.URLParam(r, "id"), engine.PlayerID(req.Player), engine.Verb(req.Action), req.Amount)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, view(r, s))
}

func (a *API) nextHand(w http.ResponseWriter, r *http.Request) {
	s, err := a.games.NextHand(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, view(r, s))
}

// watch streams snapshots over a websocket. Text frames from the client
// are actions ({"player","action","amount"}); rejected ones come back as
// {"error": ...}.
func (a *API) watch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	updates, cancel, err := a.games.Subscribe(id)
	if err != nil {
		a.fail(w, err)
		return
	}
	defer cancel()

	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.log.Warn("websocket upgrade failed", "game", id, "err", err)
		return
	}
	defer conn.Close()

	viewer := engine.PlayerID(r.URL.Query().Get("as"))
	errs := make(chan string, 4)
	report := func(msg string) {
		select {
		case errs <- msg:
		default:
		}
	}
	done := make(chan struct{})

	go func() {
		defer close(done)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					a.log.Debug("websocket closed", "game", id, "err", err)
				}
				return
			}
			var req actionReq
			if err := json.Unmarshal(msg, &req); err != nil {
				report("bad action: " + err.Error())
				continue
			}
			if _, err := a.games.Apply(context.Background(), id, engine.PlayerID(req.Player), engine.Verb(req.Action), req.Amount); err != nil {
				report(err.Error())
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case s, ok := <-updates:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "game closed"))
				return
			}
			if viewer != "" {
				s = s.Redacted(viewer)
			}
			if err := conn.WriteJSON(s); err != nil {
				return
			}
		case msg := <-errs:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(map[string]string{"error": msg}); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (a *API) lastDuel(w http.ResponseWriter, r *http.Request) {
	if a.db == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("no database configured"))
		return
	}
	run, parts, err := a.db.LastDuelRun(r.Context())
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(w, http.StatusNotFound, errors.New("no duels yet"))
		return
	}
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, map[string]any{"run": run, "participants": parts})
}

// view redacts hole cards when the caller names a viewer with ?as=.
func view(r *http.Request, s engine.GameState) engine.GameState {
	if as := r.URL.Query().Get("as"); as != "" {
		return s.Redacted(engine.PlayerID(as))
	}
	return s
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrExists),
		errors.Is(err, engine.ErrInvalidTurn),
		errors.Is(err, engine.ErrGameOver),
		errors.Is(err, engine.ErrHandInProgress):
		return http.StatusConflict
	case errors.Is(err, engine.ErrUnknownPlayer),
		errors.Is(err, engine.ErrUnknownVerb),
		errors.Is(err, engine.ErrInvalidConfig),
		errors.Is(err, engine.ErrNegativeChips):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (a *API) fail(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		a.log.Error("request failed", "err", err)
	}
	writeError(w, code, err)
}

// decodeBody reads a JSON request body; an empty body leaves v untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSONStatus(w, code, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
