package store

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"enigma-holdem/server/engine"
)

//go:embed schema.sql
var schema embed.FS

// ErrNoSession is returned by LoadSession for an unknown id.
var ErrNoSession = errors.New("no saved session")

type DB struct{ *pgxpool.Pool }

func Open(ctx context.Context, dsn string) (*DB, error) {
	p, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &DB{p}, nil
}

func (db *DB) Close()                         { db.Pool.Close() }
func (db *DB) Ping(ctx context.Context) error { return db.Pool.Ping(ctx) }

func Migrate(ctx context.Context, db *DB) error {
	sqlBytes, err := schema.ReadFile("schema.sql")
	if err != nil {
		return err
	}
	_, err = db.Exec(ctx, string(sqlBytes))
	return err
}

/* -----------------------------
   Sessions
------------------------------*/

// Session is what survives a restart: the stacks carried into the next
// hand, the dealer seat of the last hand played and how many were played.
type Session struct {
	ID        string
	Config    engine.Config
	UserChips int
	BotChips  int
	Dealer    int
	HandCount int
	UpdatedAt time.Time
}

func (db *DB) SaveSession(ctx context.Context, s Session) error {
	_, err := db.Exec(ctx, `
		INSERT INTO sessions(id, config, user_chips, bot_chips, dealer, hand_count)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (id) DO UPDATE
		  SET config = EXCLUDED.config,
		      user_chips = EXCLUDED.user_chips,
		      bot_chips = EXCLUDED.bot_chips,
		      dealer = EXCLUDED.dealer,
		      hand_count = EXCLUDED.hand_count,
		      updated_at = now()
	`, s.ID, s.Config, s.UserChips, s.BotChips, s.Dealer, s.HandCount)
	if err != nil {
		return fmt.Errorf("save session %s: %w", s.ID, err)
	}
	return nil
}

func (db *DB) LoadSession(ctx context.Context, id string) (Session, error) {
	s := Session{ID: id}
	err := db.QueryRow(ctx, `
		SELECT config, user_chips, bot_chips, dealer, hand_count, updated_at
		  FROM sessions WHERE id = $1
	`, id).Scan(&s.Config, &s.UserChips, &s.BotChips, &s.Dealer, &s.HandCount, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Session{}, fmt.Errorf("load session %s: %w", id, ErrNoSession)
	}
	if err != nil {
		return Session{}, fmt.Errorf("load session %s: %w", id, err)
	}
	return s, nil
}

func (db *DB) DeleteSession(ctx context.Context, id string) error {
	_, err := db.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return err
}

/* -----------------------------
   Duel runs
------------------------------*/

type DuelRun struct {
	ID         int64      `json:"id"`
	CreatedAt  time.Time  `json:"created_at"`
	EndedAt    *time.Time `json:"ended_at"`
	SB         int        `json:"sb"`
	BB         int        `json:"bb"`
	StartStack int        `json:"start_stack"`
	Tables     int        `json:"tables"`
	Hands      int        `json:"hands"`
	SeedBase   int64      `json:"seed_base"`
	Preset     string     `json:"preset"`
}

type DuelParticipant struct {
	Player    string `json:"player"`
	Agent     string `json:"agent"`
	Hands     int    `json:"hands"`
	Wins      int    `json:"wins"`
	Ties      int    `json:"ties"`
	VPIP      int    `json:"vpip"`
	PFR       int    `json:"pfr"`
	Showdowns int    `json:"showdowns"`
	NetChips  int    `json:"net_chips"`
	Check     int    `json:"check_ct"`
	Call      int    `json:"call_ct"`
	Raise     int    `json:"raise_ct"`
	Fold      int    `json:"fold_ct"`

	// River decisions the judge scored, and how many were within its slack.
	JudgeTop   int     `json:"judge_top"`
	JudgeTotal int     `json:"judge_total"`
	JudgeGapBB float64 `json:"judge_gap_bb"`

	Elo      float64 `json:"elo"`
	Glicko   float64 `json:"glicko"`
	GlickoRD float64 `json:"glicko_rd"`
}

// CreateDuelRun inserts a run row and returns its id.
func (db *DB) CreateDuelRun(ctx context.Context, r DuelRun) (int64, error) {
	var id int64
	err := db.QueryRow(ctx, `
		INSERT INTO duel_runs(sb, bb, start_stack, tables, hands, seed_base, preset)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING id
	`, r.SB, r.BB, r.StartStack, r.Tables, r.Hands, r.SeedBase, r.Preset).Scan(&id)
	return id, err
}

// CompleteDuelRun stores both participants and closes the run atomically.
func (db *DB) CompleteDuelRun(ctx context.Context, runID int64, parts []DuelParticipant) error {
	tx, err := db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // safe if already committed

	for _, p := range parts {
		if _, err := tx.Exec(ctx, `
			INSERT INTO duel_participants(
				run_id, player, agent, hands, wins, ties, vpip, pfr, showdowns,
				net_chips, check_ct, call_ct, raise_ct, fold_ct,
				judge_top, judge_total, judge_gap_bb, elo, glicko, glicko_rd
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)
		`, runID, p.Player, p.Agent, p.Hands, p.Wins, p.Ties, p.VPIP, p.PFR, p.Showdowns,
			p.NetChips, p.Check, p.Call, p.Raise, p.Fold,
			p.JudgeTop, p.JudgeTotal, p.JudgeGapBB, p.Elo, p.Glicko, p.GlickoRD); err != nil {
			return fmt.Errorf("insert participant %s: %w", p.Player, err)
		}
	}
	if _, err := tx.Exec(ctx, `UPDATE duel_runs SET ended_at = now() WHERE id = $1`, runID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// LastDuelRun returns the newest run with its participants.
func (db *DB) LastDuelRun(ctx context.Context) (DuelRun, []DuelParticipant, error) {
	var r DuelRun
	err := db.QueryRow(ctx, `
		SELECT id, created_at, ended_at, sb, bb, start_stack, tables, hands, seed_base, preset
		  FROM duel_runs
		 ORDER BY id DESC
		 LIMIT 1
	`).Scan(&r.ID, &r.CreatedAt, &r.EndedAt, &r.SB, &r.BB, &r.StartStack, &r.Tables, &r.Hands, &r.SeedBase, &r.Preset)
	if err != nil {
		return DuelRun{}, nil, err
	}

	rows, err := db.Query(ctx, `
		SELECT player, agent, hands, wins, ties, vpip, pfr, showdowns,
		       net_chips, check_ct, call_ct, raise_ct, fold_ct,
		       judge_top, judge_total, judge_gap_bb, elo, glicko, glicko_rd
		  FROM duel_participants
		 WHERE run_id = $1
		 ORDER BY player
	`, r.ID)
	if err != nil {
		return DuelRun{}, nil, err
	}
	defer rows.Close()
	parts := []DuelParticipant{}
	for rows.Next() {
		var p DuelParticipant
		if err := rows.Scan(&p.Player, &p.Agent, &p.Hands, &p.Wins, &p.Ties, &p.VPIP, &p.PFR, &p.Showdowns,
			&p.NetChips, &p.Check, &p.Call, &p.Raise, &p.Fold,
			&p.JudgeTop, &p.JudgeTotal, &p.JudgeGapBB, &p.Elo, &p.Glicko, &p.GlickoRD); err != nil {
			return DuelRun{}, nil, err
		}
		parts = append(parts, p)
	}
	return r, parts, rows.Err()
}
