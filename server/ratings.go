package main

import "math"

// Ratings tracks the two seat drivers of a duel on both scales. Elo moves
// after every hand, Glicko-2 once per table.
type Ratings struct {
	Elo  Elo
	User *Glicko2
	Bot  *Glicko2
}

func NewRatings() Ratings {
	return Ratings{Elo: NewElo(1500, 16), User: NewGlicko2(), Bot: NewGlicko2()}
}

// handResult is one finished hand from the user seat's side.
type handResult struct {
	UserNet int
	Pot     int
}

// RateTable applies one table's hands in order, then one Glicko-2 period
// scored on the table's chip margin against effStack.
func (r *Ratings) RateTable(hands []handResult, bb, effStack int) {
	net := 0
	for _, h := range hands {
		su := 0.5
		switch {
		case h.UserNet > 0:
			su = 1
		case h.UserNet < 0:
			su = 0
		}
		r.Elo.UpdateHand(su, 1-su, h.Pot, bb)
		net += h.UserNet
	}
	u, b := r.User.Copy(), r.Bot.Copy()
	s := ScoreFromMargin(net, float64(effStack), 1.0)
	r.User.UpdatePair(b, s, 0.5)
	r.Bot.UpdatePair(u, 1-s, 0.5)
}

// Elo holds the user (A) and bot (B) ratings.
type Elo struct {
	A, B  float64
	K     float64
	Games int
}

func NewElo(start, k float64) Elo { return Elo{A: start, B: start, K: k} }

func (e Elo) expect() (ea, eb float64) {
	ea = 1.0 / (1.0 + math.Pow(10, (e.B-e.A)/400.0))
	return ea, 1.0 - ea
}

// UpdateHand scores one hand; sa and sb are in [0,1]. K grows with the
// pot and anneals with the number of hands seen.
func (e *Elo) UpdateHand(sa, sb float64, pot, bb int) (dA, dB float64) {
	ea, eb := e.expect()
	k := e.K * potScale(pot, bb) * decay(e.Games)
	dA = k * (sa - ea)
	dB = k * (sb - eb)
	e.A += dA
	e.B += dB
	e.Games++
	return dA, dB
}

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}

// potScale is 1 at a 2bb pot, clamped to [0.5, 3].
func potScale(pot, bb int) float64 {
	if bb <= 0 || pot <= 0 {
		return 1.0
	}
	return clamp(float64(pot)/(2.0*float64(bb)), 0.5, 3.0)
}

func decay(games int) float64 {
	return 1.0 / (1.0 + 0.001*float64(games))
}

const (
	g2Scale = 173.7178
	pi2     = math.Pi * math.Pi
)

// Glicko2 holds the public 1500-scale values.
type Glicko2 struct {
	Rating     float64
	RD         float64
	Volatility float64
	Games      int
}

func NewGlicko2() *Glicko2 {
	return &Glicko2{Rating: 1500, RD: 350, Volatility: 0.06}
}

func (g *Glicko2) Copy() *Glicko2 {
	cp := *g
	return &cp
}

func toMuPhi(r, rd float64) (mu, phi float64)   { return (r - 1500.0) / g2Scale, rd / g2Scale }
func fromMuPhi(mu, phi float64) (r, rd float64) { return mu*g2Scale + 1500.0, phi * g2Scale }

func gPhi(phi float64) float64 { return 1.0 / math.Sqrt(1.0+3.0*phi*phi/pi2) }

func gExp(mu, muj, phij float64) float64 {
	return 1.0 / (1.0 + math.Exp(-gPhi(phij)*(mu-muj)))
}

// OpponentResult is the aggregate score S in [0,1] against one opponent
// over a rating period.
type OpponentResult struct {
	Opp *Glicko2
	S   float64
}

// Age is the no-games step: RD grows with volatility.
func (a *Glicko2) Age() {
	mu, phi := toMuPhi(a.Rating, a.RD)
	a.Rating, a.RD = fromMuPhi(mu, math.Sqrt(phi*phi+a.Volatility*a.Volatility))
	a.Games++
}

// UpdateBatch runs one rating period. Opponent values must be the ones
// from the start of the period.
func (a *Glicko2) UpdateBatch(results []OpponentResult, tau float64) {
	if len(results) == 0 {
		a.Age()
		return
	}
	muA, phiA := toMuPhi(a.Rating, a.RD)

	var sumG2E, sumGSE float64
	for _, r := range results {
		muB, phiB := toMuPhi(r.Opp.Rating, r.Opp.RD)
		gB := gPhi(phiB)
		e := gExp(muA, muB, phiB)
		sumG2E += gB * gB * e * (1.0 - e)
		sumGSE += gB * (r.S - e)
	}
	v := 1.0 / sumG2E
	delta := v * sumGSE

	newVol := a.Volatility
	if math.Abs(delta) >= 1e-12 {
		newVol = a.solveVolatility(delta, phiA, v, tau)
	}
	phiStar := math.Sqrt(phiA*phiA + newVol*newVol)
	phiNew := 1.0 / math.Sqrt(1.0/(phiStar*phiStar)+1.0/v)
	muNew := muA + phiNew*phiNew*sumGSE

	a.Rating, a.RD = fromMuPhi(muNew, phiNew)
	a.Volatility = newVol
	a.Games++
}

// solveVolatility finds the new sigma with the Illinois iteration.
func (a *Glicko2) solveVolatility(delta, phi, v, tau float64) float64 {
	a2 := math.Log(a.Volatility * a.Volatility)
	f := func(x float64) float64 {
		ex := math.Exp(x)
		den := phi*phi + v + ex
		return ex*(delta*delta-phi*phi-v-ex)/(2.0*den*den) - (x-a2)/(tau*tau)
	}

	A := a2
	var B float64
	if delta*delta > phi*phi+v {
		B = math.Log(delta*delta - phi*phi - v)
	} else {
		k := 1.0
		for f(a2-k) < 0 && k < 1e6 {
			k *= 2.0
		}
		B = a2 - k
	}
	fA, fB := f(A), f(B)
	for it := 0; it < 60 && math.Abs(B-A) > 1e-6; it++ {
		C := A + (A-B)*fA/(fB-fA)
		fC := f(C)
		if math.IsNaN(fC) || math.IsInf(fC, 0) {
			break
		}
		if fC*fB < 0 {
			A, fA = B, fB
		} else {
			fA /= 2
		}
		B, fB = C, fC
	}
	return math.Exp(A / 2.0)
}

func (a *Glicko2) UpdatePair(b *Glicko2, s, tau float64) {
	a.UpdateBatch([]OpponentResult{{Opp: b, S: s}}, tau)
}

// ScoreFromMargin maps chipsA/effStack onto [0,1] with a tanh curve of
// steepness k. A non-positive effStack scores 0.5.
func ScoreFromMargin(chipsA int, effStack, k float64) float64 {
	if effStack <= 0 {
		return 0.5
	}
	return 0.5 + 0.5*math.Tanh(k*float64(chipsA)/effStack)
}
