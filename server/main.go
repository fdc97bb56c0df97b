package main

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"

	"enigma-holdem/server/session"
	"enigma-holdem/server/store"
)

var version = "dev"

type CLI struct {
	Version  kong.VersionFlag `short:"v" help:"Show version"`
	LogLevel string           `short:"l" env:"LOG_LEVEL" default:"info" enum:"debug,info,warn,error" help:"Log level"`
	Tables   string           `short:"c" env:"TABLES_FILE" default:"tables.hcl" help:"Path to HCL table presets"`

	Serve   ServeCmd   `cmd:"" default:"withargs" help:"Run the HTTP game server"`
	Migrate MigrateCmd `cmd:"" help:"Apply the database schema"`
	Duel    DuelCmd    `cmd:"" help:"Self-play between seat drivers"`
}

// Globals is what every command receives from the root flags.
type Globals struct {
	Log     *log.Logger
	Presets Presets
}

func main() {
	_ = godotenv.Load()

	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("enigma"),
		kong.Description("Heads-up hold'em engine server"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
		kong.Vars{"version": version},
	)

	logger := newLogger(cli.LogLevel)
	presets, err := LoadTables(cli.Tables)
	if err != nil {
		logger.Error("load tables", "file", cli.Tables, "err", err)
		ctx.Exit(1)
	}
	err = ctx.Run(&Globals{Log: logger, Presets: presets})
	ctx.FatalIfErrorf(err)
}

func newLogger(level string) *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true, TimeFormat: time.TimeOnly})
	switch level {
	case "debug":
		logger.SetLevel(log.DebugLevel)
	case "warn":
		logger.SetLevel(log.WarnLevel)
	case "error":
		logger.SetLevel(log.ErrorLevel)
	default:
		logger.SetLevel(log.InfoLevel)
	}
	return logger
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// openDB connects when DATABASE_URL is set and applies the schema when
// AUTO_MIGRATE is on. A nil DB means persistence is off.
func openDB(ctx context.Context, logger *log.Logger) (*store.DB, error) {
	dsn := getenv("DATABASE_URL", "")
	if dsn == "" {
		return nil, nil
	}
	db, err := store.Open(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if asBool(os.Getenv("AUTO_MIGRATE")) {
		if err := store.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
		logger.Info("migrated")
	}
	return db, nil
}

type ServeCmd struct {
	Port       string        `env:"PORT" default:"8080" help:"HTTP port"`
	SessionTTL time.Duration `env:"SESSION_TTL" default:"2h" help:"Drop games idle for this long"`
	Origins    string        `env:"CORS_ORIGINS" default:"http://localhost,http://localhost:3000" help:"Comma separated allowed origins"`
}

func (c *ServeCmd) Run(g *Globals) error {
	ctx, cancel := signalContext()
	defer cancel()

	opts := []session.Option{
		session.WithLogger(g.Log.WithPrefix("session")),
		session.WithTTL(c.SessionTTL),
	}
	db, err := openDB(ctx, g.Log)
	if err != nil {
		g.Log.Warn("DB disabled (open failed)", "err", err)
	}
	if db != nil {
		defer db.Close()
		opts = append(opts, session.WithStore(db))
	}
	if seed, ok := deckSeedFromEnv(); ok {
		stream := newSeedStream(seed)
		var mu sync.Mutex
		opts = append(opts, session.WithSeeds(func() int64 {
			mu.Lock()
			defer mu.Unlock()
			return int64(stream.next() >> 1)
		}))
		g.Log.Info("deterministic decks", "seed", seed)
	}
	games := session.New(opts...)
	go games.Run(ctx, time.Minute)

	api := NewAPI(games, db, g.Presets, splitList(c.Origins), g.Log.WithPrefix("http"))
	srv := &http.Server{Addr: ":" + c.Port, Handler: api.Router(), ReadHeaderTimeout: 15 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	g.Log.Info("listening", "addr", "http://localhost:"+c.Port, "persist", db != nil)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	g.Log.Info("stopped")
	return nil
}

type MigrateCmd struct{}

func (c *MigrateCmd) Run(g *Globals) error {
	ctx, cancel := signalContext()
	defer cancel()
	dsn := getenv("DATABASE_URL", "")
	if dsn == "" {
		return fmt.Errorf("DATABASE_URL is not set")
	}
	db, err := store.Open(ctx, dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := store.Migrate(ctx, db); err != nil {
		return err
	}
	g.Log.Info("migrated")
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

//
// ===== randomness =====
//

// seedStream derives independent per-game seeds from one base (splitmix64).
type seedStream struct{ state uint64 }

func newSeedStream(base uint64) *seedStream { return &seedStream{state: base} }
func (s *seedStream) next() uint64 {
	s.state += 0x9E3779B97F4A7C15
	z := s.state
	z ^= z >> 30
	z *= 0xBF58476D1CE4E5B9
	z ^= z >> 27
	z *= 0x94D049BB133111EB
	z ^= z >> 31
	return z
}

func secureBaseSeed() uint64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err == nil {
		return binary.LittleEndian.Uint64(b[:]) ^ uint64(time.Now().UnixNano()) ^ uint64(os.Getpid())
	}
	return uint64(time.Now().UnixNano()) ^ 0xA5A5A5A5A5A5A5A5
}

func deckSeedFromEnv() (uint64, bool) {
	if s := os.Getenv("DECK_SEED"); s != "" {
		if v, err := strconv.ParseInt(s, 10, 64); err == nil {
			return uint64(v), true
		}
	}
	return 0, false
}
