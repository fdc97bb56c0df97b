package main

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"os"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"enigma-holdem/server/agent"
	"enigma-holdem/server/engine"
	"enigma-holdem/server/judge"
	"enigma-holdem/server/store"
)

type DuelCmd struct {
	Hands     int    `default:"1000" env:"DUEL_HANDS" help:"Hands per table"`
	Tables    int    `default:"4" help:"Independent tables"`
	Parallel  int    `default:"0" help:"Tables played at once (0 = all)"`
	Preset    string `default:"default" help:"Table preset name"`
	User      string `default:"random" help:"Driver for the user seat (random, call)"`
	Bot       string `default:"call" help:"Driver for the bot seat (random, call)"`
	Seed      int64  `env:"DECK_SEED" help:"Base seed; 0 draws one"`
	Bootstrap int    `default:"2000" help:"Bootstrap resamples for the bb/hand interval"`
	Judge     bool   `default:"true" negatable:"" help:"Score river decisions against exact equity"`
}

func (c *DuelCmd) Run(g *Globals) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg, err := g.Presets.Lookup(c.Preset)
	if err != nil {
		return err
	}
	seed := uint64(c.Seed)
	if seed == 0 {
		seed = secureBaseSeed()
	}
	plan := duelPlan{
		cfg:      cfg,
		hands:    c.Hands,
		tables:   c.Tables,
		parallel: c.Parallel,
		user:     c.User,
		bot:      c.Bot,
		seed:     seed,
	}
	if c.Judge {
		plan.judge = judge.New()
	}
	logger := g.Log.WithPrefix("duel")
	logger.Info("duel", "tables", c.Tables, "hands", c.Hands, "preset", c.Preset,
		"user", c.User, "bot", c.Bot, "seed", seed)

	res, err := runDuel(ctx, plan, logger)
	if err != nil {
		return err
	}
	printSummary(os.Stdout, res, cfg.BigBlind, c.Bootstrap, rand.New(rand.NewSource(int64(seed))))

	db, err := openDB(ctx, logger)
	if err != nil {
		logger.Warn("DB disabled (open failed)", "err", err)
		return nil
	}
	if db == nil {
		return nil
	}
	defer db.Close()
	if err := recordDuel(ctx, db, plan, c.Preset, res); err != nil {
		logger.Warn("record duel failed", "err", err)
	}
	return nil
}

type duelPlan struct {
	cfg      engine.Config
	hands    int
	tables   int
	parallel int
	user     string
	bot      string
	seed     uint64
	judge    *judge.Judge // nil skips decision review
}

// duelResult is the merged outcome of every table.
type duelResult struct {
	Players map[engine.PlayerID]*PlayerStats
	Ratings Ratings
}

type tableResult struct {
	stats map[engine.PlayerID]*PlayerStats
	hands []handResult
}

type tableSeeds struct {
	deck, user, bot int64
}

// runDuel plays plan.tables independent tables. Seeds are drawn up front
// in table order, so results do not depend on scheduling.
func runDuel(ctx context.Context, plan duelPlan, logger *log.Logger) (*duelResult, error) {
	if plan.tables <= 0 || plan.hands <= 0 {
		return nil, fmt.Errorf("duel needs tables and hands > 0")
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	stream := newSeedStream(plan.seed)
	seeds := make([]tableSeeds, plan.tables)
	for i := range seeds {
		seeds[i] = tableSeeds{
			deck: int64(stream.next()>>1) | 1,
			user: int64(stream.next() >> 1),
			bot:  int64(stream.next() >> 1),
		}
	}

	results := make([]tableResult, plan.tables)
	eg, ctx := errgroup.WithContext(ctx)
	if plan.parallel > 0 {
		eg.SetLimit(plan.parallel)
	}
	for i := range seeds {
		eg.Go(func() error {
			u, err := agent.ByName(plan.user, seeds[i].user)
			if err != nil {
				return err
			}
			b, err := agent.ByName(plan.bot, seeds[i].bot)
			if err != nil {
				return err
			}
			r, err := playTable(ctx, fmt.Sprintf("duel-%d", i+1), plan, seeds[i].deck, u, b, logger)
			if err != nil {
				return err
			}
			results[i] = r
			logger.Debug("table done", "table", i+1, "user_net", r.stats[engine.User].Overall.NetChips)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	merged := &duelResult{
		Players: map[engine.PlayerID]*PlayerStats{engine.User: {}, engine.Bot: {}},
		Ratings: NewRatings(),
	}
	for _, r := range results {
		for id, st := range r.stats {
			merged.Players[id].Merge(st)
		}
		merged.Ratings.RateTable(r.hands, plan.cfg.BigBlind, plan.cfg.StartingChips)
	}
	return merged, nil
}

// playTable runs hands on one engine. A busted player rebuys to the
// starting stack, the other keeps its chips, and play continues with the
// button moved on.
func playTable(ctx context.Context, id string, plan duelPlan, seed int64, u, b agent.Agent, logger *log.Logger) (tableResult, error) {
	cfg := plan.cfg
	start := func(stacks [2]int, dealer, played int, seed int64) (*engine.Game, error) {
		return engine.StartHand(id, cfg, nil, engine.StartOptions{
			UserChips:   &stacks[0],
			BotChips:    &stacks[1],
			Dealer:      dealer,
			Seed:        seed,
			HandsPlayed: played,
		}, engine.WithLogger(logger.WithPrefix(id)))
	}
	stacks := [2]int{cfg.StartingChips, cfg.StartingChips}
	g, err := start(stacks, engine.RandomDealer, 0, seed)
	if err != nil {
		return tableResult{}, err
	}
	drivers := map[engine.PlayerID]agent.Agent{engine.User: u, engine.Bot: b}
	stats := map[engine.PlayerID]*PlayerStats{
		engine.User: {Agent: u.Name()},
		engine.Bot:  {Agent: b.Name()},
	}
	out := tableResult{stats: stats, hands: make([]handResult, 0, plan.hands)}

	for hand := 0; hand < plan.hands; hand++ {
		if err := ctx.Err(); err != nil {
			return tableResult{}, err
		}
		s := g.State()
		total := stacks[0] + stacks[1]
		for steps := 0; !s.Over(); steps++ {
			if steps > 1000 {
				return tableResult{}, fmt.Errorf("%s hand %d: no result after %d actions", id, s.HandNumber, steps)
			}
			p := s.CurrentPlayerID
			v, amt := drivers[p].Act(agent.BuildObservation(s, g.Legal(p))).Verb()
			if plan.judge != nil {
				review(plan.judge, s, p, v, stats[p])
			}
			if s, err = g.Apply(p, v, amt); err != nil {
				return tableResult{}, fmt.Errorf("%s hand %d: %w", id, s.HandNumber, err)
			}
		}
		if got := s.TotalChips(); got != total {
			return tableResult{}, fmt.Errorf("%s hand %d: chip total %d, want %d", id, s.HandNumber, got, total)
		}
		stats[engine.User].RecordHand(s, engine.User, stacks[0])
		stats[engine.Bot].RecordHand(s, engine.Bot, stacks[1])
		pot := 0
		for _, amt := range s.Payouts {
			pot += amt
		}
		out.hands = append(out.hands, handResult{UserNet: s.Players[0].Chips - stacks[0], Pot: pot})

		stacks = [2]int{s.Players[0].Chips, s.Players[1].Chips}
		if stacks[0] == 0 || stacks[1] == 0 {
			logger.Debug("rebuy", "table", id, "hand", s.HandNumber, "user", stacks[0], "bot", stacks[1])
			stacks = rebuy(stacks, cfg.StartingChips)
			if g, err = start(stacks, 1-s.DealerPosition, s.HandNumber, seed+int64(s.HandNumber)); err != nil {
				return tableResult{}, err
			}
			continue
		}
		if _, err := g.NextHand(); err != nil {
			return tableResult{}, err
		}
	}
	return out, nil
}

// rebuy refills every empty stack to startingChips.
func rebuy(stacks [2]int, startingChips int) [2]int {
	for i := range stacks {
		if stacks[i] == 0 {
			stacks[i] = startingChips
		}
	}
	return stacks
}

// review scores p's choice when s is a river decision. Verbs the judge
// does not compare for the spot are skipped.
func review(j *judge.Judge, s engine.GameState, p engine.PlayerID, v engine.Verb, st *PlayerStats) {
	d, ok := judge.FromState(s, p, v)
	if !ok {
		return
	}
	verdict, err := j.Review(d)
	if err != nil {
		return
	}
	seat, _ := s.Seat(p)
	st.RecordVerdict(verdict, seat == s.DealerPosition)
}

func pct(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return 100 * float64(n) / float64(d)
}

func printSummary(w io.Writer, res *duelResult, bb, resamples int, rng *rand.Rand) {
	for _, id := range []engine.PlayerID{engine.User, engine.Bot} {
		st := res.Players[id]
		elo, g2 := res.rating(id)
		o := st.Overall
		wlo, whi := WilsonCI95(o.Wins, o.Ties, o.Hands)
		blo, bhi := BootstrapCI95(st.NetBB, resamples, rng)
		fmt.Fprintf(w, "%-4s %-16s hands=%d wins=%d ties=%d win%%CI=[%.3f, %.3f]\n",
			id, st.Agent, o.Hands, o.Wins, o.Ties, wlo, whi)
		fmt.Fprintf(w, "     VPIP=%.1f%% PFR=%.1f%% WTSD=%.1f%% AF=%.2f\n",
			pct(o.VPIP, o.Hands), pct(o.PFR, o.Hands), pct(o.WTSD, o.Hands), o.AF())
		fmt.Fprintf(w, "     net=%d bb/100=%.2f (dealer %.2f, big blind %.2f) bb/hand CI=[%.3f, %.3f]\n",
			o.NetChips, o.BBPer100(bb), st.Dealer.BBPer100(bb), st.BigBlind.BBPer100(bb), blo, bhi)
		fmt.Fprintf(w, "     actions check=%d call=%d raise=%d fold=%d\n", o.Checks, o.Calls, o.Aggr, o.Folds)
		if o.JudgeTotal > 0 {
			fmt.Fprintf(w, "     river judge top=%d/%d (%.1f%%) avg gap=%.2fbb\n",
				o.JudgeTop, o.JudgeTotal, pct(o.JudgeTop, o.JudgeTotal), o.JudgeGapBB/float64(o.JudgeTotal))
		}
		fmt.Fprintf(w, "     elo=%.1f glicko=%.1f (rd %.1f)\n", elo, g2.Rating, g2.RD)
	}
}

// rating returns id's Elo and Glicko-2 standing.
func (r *duelResult) rating(id engine.PlayerID) (float64, *Glicko2) {
	if id == engine.User {
		return r.Ratings.Elo.A, r.Ratings.User
	}
	return r.Ratings.Elo.B, r.Ratings.Bot
}

func recordDuel(ctx context.Context, db *store.DB, plan duelPlan, preset string, res *duelResult) error {
	runID, err := db.CreateDuelRun(ctx, store.DuelRun{
		SB:         plan.cfg.SmallBlind,
		BB:         plan.cfg.BigBlind,
		StartStack: plan.cfg.StartingChips,
		Tables:     plan.tables,
		Hands:      plan.hands,
		SeedBase:   int64(plan.seed),
		Preset:     preset,
	})
	if err != nil {
		return err
	}
	return db.CompleteDuelRun(ctx, runID, participants(res))
}

func participants(res *duelResult) []store.DuelParticipant {
	var out []store.DuelParticipant
	for _, id := range []engine.PlayerID{engine.Bot, engine.User} {
		st := res.Players[id]
		o := st.Overall
		elo, g2 := res.rating(id)
		out = append(out, store.DuelParticipant{
			Player:    string(id),
			Agent:     st.Agent,
			Hands:     o.Hands,
			Wins:      o.Wins,
			Ties:      o.Ties,
			VPIP:      o.VPIP,
			PFR:       o.PFR,
			Showdowns: o.WTSD,
			NetChips:  o.NetChips,
			Check:     o.Checks,
			Call:      o.Calls,
			Raise:     o.Aggr,
			Fold:      o.Folds,

			JudgeTop:   o.JudgeTop,
			JudgeTotal: o.JudgeTotal,
			JudgeGapBB: o.JudgeGapBB,
			Elo:        elo,
			Glicko:     g2.Rating,
			GlickoRD:   g2.RD,
		})
	}
	return out
}
