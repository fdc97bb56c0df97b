// Package session keeps the live games of the HTTP server. Every game has
// its own lock so actions on one table never wait on another.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/google/uuid"

	"enigma-holdem/server/engine"
	"enigma-holdem/server/store"
)

var (
	ErrNotFound = errors.New("game not found")
	ErrExists   = errors.New("game already exists")
)

// Store persists carried-forward stacks. *store.DB satisfies it.
type Store interface {
	SaveSession(ctx context.Context, s store.Session) error
	LoadSession(ctx context.Context, id string) (store.Session, error)
}

type Option func(*Registry)

func WithClock(c quartz.Clock) Option    { return func(r *Registry) { r.clock = c } }
func WithStore(s Store) Option           { return func(r *Registry) { r.store = s } }
func WithLogger(l *log.Logger) Option    { return func(r *Registry) { r.log = l } }
func WithTTL(d time.Duration) Option     { return func(r *Registry) { r.ttl = d } }
func WithSeeds(next func() int64) Option { return func(r *Registry) { r.seeds = next } }

// WithEvaluator replaces the hand evaluator of new games.
func WithEvaluator(e engine.HandEvaluator) Option {
	return func(r *Registry) { r.eval = e }
}

// Registry maps game ids to running games.
type Registry struct {
	mu    sync.RWMutex
	games map[string]*entry

	clock quartz.Clock
	store Store
	log   *log.Logger
	ttl   time.Duration
	eval  engine.HandEvaluator
	seeds func() int64
}

type entry struct {
	mu       sync.Mutex
	game     *engine.Game
	lastUsed time.Time
	subs     map[chan engine.GameState]struct{}
	closed   bool
}

func New(opts ...Option) *Registry {
	r := &Registry{
		games: make(map[string]*entry),
		clock: quartz.NewReal(),
		log:   log.New(io.Discard),
		ttl:   2 * time.Hour,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// CreateRequest describes a new game. An empty ID gets a random one.
// Dealer is a seat index or engine.RandomDealer. With Resume set and a
// store configured, saved stacks replace the requested ones and the
// dealer button moves on from the last saved hand.
type CreateRequest struct {
	ID        string
	Config    engine.Config
	UserChips *int
	BotChips  *int
	Dealer    int
	Seed      int64
	Resume    bool
}

func (r *Registry) Create(ctx context.Context, req CreateRequest) (engine.GameState, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	opts := engine.StartOptions{
		StartingChips: req.Config.StartingChips,
		UserChips:     req.UserChips,
		BotChips:      req.BotChips,
		Dealer:        req.Dealer,
		Seed:          req.Seed,
	}
	if opts.Seed == 0 && r.seeds != nil {
		opts.Seed = r.seeds()
	}
	cfg := req.Config

	if req.Resume && r.store != nil {
		saved, err := r.store.LoadSession(ctx, req.ID)
		switch {
		case err == nil:
			cfg = saved.Config
			opts.UserChips = &saved.UserChips
			opts.BotChips = &saved.BotChips
			opts.Dealer = 1 - saved.Dealer
			opts.HandsPlayed = saved.HandCount
			r.log.Info("resuming game", "game", req.ID, "hands", saved.HandCount,
				"user", saved.UserChips, "bot", saved.BotChips)
		case errors.Is(err, store.ErrNoSession):
		default:
			return engine.GameState{}, err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.games[req.ID]; ok {
		return engine.GameState{}, fmt.Errorf("create %s: %w", req.ID, ErrExists)
	}
	g, err := engine.StartHand(req.ID, cfg, r.eval, opts, engine.WithLogger(r.log.WithPrefix("engine")))
	if err != nil {
		return engine.GameState{}, err
	}
	e := &entry{game: g, lastUsed: r.clock.Now(), subs: make(map[chan engine.GameState]struct{})}
	r.games[req.ID] = e

	s := g.State()
	r.log.Info("game created", "game", req.ID, "dealer", s.DealerPosition,
		"sb", cfg.SmallBlind, "bb", cfg.BigBlind)
	if s.Over() {
		r.persist(ctx, s, cfg)
	}
	return s, nil
}

func (r *Registry) lookup(id string) (*entry, error) {
	r.mu.RLock()
	e, ok := r.games[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return e, nil
}

// Get returns a snapshot of the game.
func (r *Registry) Get(id string) (engine.GameState, error) {
	e, err := r.lookup(id)
	if err != nil {
		return engine.GameState{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return engine.GameState{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return e.game.State(), nil
}

func (r *Registry) Legal(id string, player engine.PlayerID) (engine.LegalActions, error) {
	e, err := r.lookup(id)
	if err != nil {
		return engine.LegalActions{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.game.Legal(player), nil
}

// Apply forwards one action to the game. A hand that ends here has its
// stacks saved when a store is configured.
func (r *Registry) Apply(ctx context.Context, id string, player engine.PlayerID, verb engine.Verb, amount int) (engine.GameState, error) {
	return r.mutate(ctx, id, func(g *engine.Game) (engine.GameState, error) {
		return g.Apply(player, verb, amount)
	})
}

// NextHand deals the following hand of a finished one.
func (r *Registry) NextHand(ctx context.Context, id string) (engine.GameState, error) {
	return r.mutate(ctx, id, func(g *engine.Game) (engine.GameState, error) {
		return g.NextHand()
	})
}

func (r *Registry) mutate(ctx context.Context, id string, fn func(*engine.Game) (engine.GameState, error)) (engine.GameState, error) {
	e, err := r.lookup(id)
	if err != nil {
		return engine.GameState{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return engine.GameState{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	prev := e.game.State()
	s, err := fn(e.game)
	if err != nil {
		return s, err
	}
	e.lastUsed = r.clock.Now()
	// A hand finished, either by this action or on the deal itself.
	if s.Over() && (!prev.Over() || s.HandNumber != prev.HandNumber) {
		r.persist(ctx, s, e.game.Config())
	}
	e.publish(s)
	return s, nil
}

// persist saves the stacks a finished hand leaves behind. Failures are
// logged; play continues in memory.
func (r *Registry) persist(ctx context.Context, s engine.GameState, cfg engine.Config) {
	if r.store == nil {
		return
	}
	err := r.store.SaveSession(ctx, store.Session{
		ID:        s.GameID,
		Config:    cfg,
		UserChips: s.Players[0].Chips,
		BotChips:  s.Players[1].Chips,
		Dealer:    s.DealerPosition,
		HandCount: s.HandNumber,
	})
	if err != nil {
		r.log.Warn("save session failed", "game", s.GameID, "err", err)
	}
}

// Delete drops the game from memory and closes its subscriptions. Saved
// stacks stay in the store so the game can be resumed.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	e, ok := r.games[id]
	delete(r.games, id)
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	e.close()
	r.log.Info("game deleted", "game", id)
	return nil
}

// Len reports the number of live games.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.games)
}

// Subscribe returns a channel that receives a snapshot after every change
// to the game, starting with the current one. A slow reader misses
// intermediate snapshots rather than blocking play. The channel closes
// when the game is deleted or expires, or after cancel.
func (r *Registry) Subscribe(id string) (<-chan engine.GameState, func(), error) {
	e, err := r.lookup(id)
	if err != nil {
		return nil, nil, err
	}
	ch := make(chan engine.GameState, 8)
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	e.subs[ch] = struct{}{}
	ch <- e.game.State()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			if _, ok := e.subs[ch]; ok {
				delete(e.subs, ch)
				close(ch)
			}
		})
	}
	return ch, cancel, nil
}

func (e *entry) publish(s engine.GameState) {
	for ch := range e.subs {
		select {
		case ch <- s.Clone():
		default:
		}
	}
}

func (e *entry) close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	for ch := range e.subs {
		delete(e.subs, ch)
		close(ch)
	}
}

// Sweep removes games idle for longer than the TTL and returns how many
// were dropped.
func (r *Registry) Sweep() int {
	now := r.clock.Now()
	var stale []*entry
	r.mu.Lock()
	for id, e := range r.games {
		e.mu.Lock()
		idle := now.Sub(e.lastUsed)
		e.mu.Unlock()
		if idle > r.ttl {
			delete(r.games, id)
			stale = append(stale, e)
			r.log.Info("game expired", "game", id, "idle", idle)
		}
	}
	r.mu.Unlock()
	for _, e := range stale {
		e.close()
	}
	return len(stale)
}

// Run sweeps every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, every time.Duration) {
	t := r.clock.NewTicker(every, "session", "sweep")
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := r.Sweep(); n > 0 {
				r.log.Debug("sweep", "expired", n, "live", r.Len())
			}
		}
	}
}
