// Package seed writes a deterministic demo game into the journal so local
// runs have play-by-play to query, build, and export.
package seed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"strings"
	"time"

	"github.com/louisbranch/rewind/internal/domain/age"
	"github.com/louisbranch/rewind/internal/domain/event"
	"github.com/louisbranch/rewind/internal/ingest"
	"github.com/louisbranch/rewind/internal/storage"
)

// Config holds demo game settings.
type Config struct {
	// GameID names the seeded game.
	GameID string
	// Seed drives every random choice. The same seed always produces the
	// same journal, chain hashes included.
	Seed int64
	// TipOff is the timestamp of the opening event.
	TipOff time.Time
	// PossessionsPerPeriod sets the pace. The outcome script cycles once
	// every seven possessions, so the default pace runs it several times
	// per period.
	PossessionsPerPeriod int
	// Verbose reports progress to the output writer.
	Verbose bool
}

// DefaultConfig returns the settings local runs use.
func DefaultConfig() Config {
	return Config{
		GameID:               "demo-game",
		Seed:                 1,
		TipOff:               time.Date(2026, time.June, 19, 19, 0, 0, 0, time.UTC),
		PossessionsPerPeriod: 12,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if strings.TrimSpace(c.GameID) == "" {
		c.GameID = def.GameID
	}
	if c.TipOff.IsZero() {
		c.TipOff = def.TipOff
	}
	if c.PossessionsPerPeriod <= 0 {
		c.PossessionsPerPeriod = def.PossessionsPerPeriod
	}
	return c
}

// demoPlayer is one roster entry of the scripted matchup.
type demoPlayer struct {
	id       string
	name     string
	born     time.Time
	country  string
	position string
	heightCM int64
	side     event.Side
}

// demoRoster lists both eight-player squads. The first five of each side
// start; the remaining three rotate in at period breaks.
func demoRoster() []demoPlayer {
	return []demoPlayer{
		{"pio-1", "Arlo Vance", birthday(1996, time.March, 12), "US", "PG", 196, event.SideHome},
		{"pio-2", "Dez Okafor", birthday(1998, time.July, 3), "NG", "SF", 203, event.SideHome},
		{"pio-3", "Milan Petric", birthday(1995, time.November, 21), "RS", "C", 211, event.SideHome},
		{"pio-4", "Theo Lindqvist", birthday(2000, time.January, 30), "SE", "PF", 199, event.SideHome},
		{"pio-5", "Rui Tanaka", birthday(1999, time.May, 8), "JP", "SG", 188, event.SideHome},
		{"pio-6", "Caleb Mercer", birthday(2002, time.September, 17), "US", "SF", 201, event.SideHome},
		{"pio-7", "Iker Salazar", birthday(1997, time.April, 25), "ES", "SG", 193, event.SideHome},
		{"pio-8", "Noa Berger", birthday(2003, time.December, 2), "IL", "PF", 206, event.SideHome},
		{"voy-1", "Emil Korhonen", birthday(1994, time.August, 14), "FI", "C", 208, event.SideAway},
		{"voy-2", "Jalen Rios", birthday(1999, time.February, 27), "US", "PG", 191, event.SideAway},
		{"voy-3", "Sasha Morin", birthday(1996, time.October, 9), "CA", "SF", 200, event.SideAway},
		{"voy-4", "Kofi Mensah", birthday(2001, time.June, 19), "GH", "PF", 213, event.SideAway},
		{"voy-5", "Luca Ferri", birthday(1998, time.December, 5), "IT", "SG", 195, event.SideAway},
		{"voy-6", "Owen Whitfield", birthday(2000, time.March, 23), "AU", "SF", 198, event.SideAway},
		{"voy-7", "Mateo Aguirre", birthday(2004, time.July, 11), "AR", "PG", 190, event.SideAway},
		{"voy-8", "Viktor Hald", birthday(1995, time.January, 6), "DK", "C", 210, event.SideAway},
	}
}

func birthday(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Team identifiers and venue of the scripted matchup.
const (
	homeTeamID = "pioneers"
	awayTeamID = "voyagers"
	demoVenue  = "harbor-fieldhouse"
)

const periods = 4

// possessionOutcome enumerates the scripted possession endings. Rotating
// through them in order touches every event type; randomness only picks
// which players act and how the clock moves.
type possessionOutcome int

const (
	outcomeMadeTwo possessionOutcome = iota
	outcomeMadeThreeAssisted
	outcomeMissedShot
	outcomeTurnover
	outcomeFreeThrows
	outcomeBlockedShot
	outcomeOffensiveBoard
	outcomeCount
)

// Generator scripts one full game and lands it through the ingest core,
// so marks get touched the same way live transports touch them.
type Generator struct {
	cfg Config
	svc *ingest.Service
	out io.Writer

	rng     *rand.Rand
	clock   time.Time
	events  []event.Event
	onFloor map[event.Side][]string
	bench   map[event.Side][]string
	score   map[event.Side]int64
	seq     uint64
}

// New builds a generator. A nil out discards progress reporting.
func New(cfg Config, svc *ingest.Service, out io.Writer) *Generator {
	if out == nil {
		out = io.Discard
	}
	cfg = cfg.withDefaults()
	return &Generator{
		cfg: cfg,
		svc: svc,
		out: out,
		rng: rand.New(rand.NewSource(cfg.Seed)),
	}
}

// Run saves the demo roster bios and appends the scripted journal. Any
// rejected event fails the run; the script is expected to land whole.
func (g *Generator) Run(ctx context.Context) error {
	if g.svc == nil {
		return errors.New("ingest service is required")
	}

	roster := demoRoster()
	for _, p := range roster {
		if err := ctx.Err(); err != nil {
			return err
		}
		height := p.heightCM
		bio := storage.Bio{
			PlayerID:       p.id,
			FullName:       p.name,
			BirthDate:      p.born,
			BirthPrecision: age.PrecisionDay,
			Country:        p.country,
			Position:       p.position,
			HeightCM:       &height,
		}
		if err := g.svc.SaveBio(ctx, bio); err != nil {
			return fmt.Errorf("save bio %s: %w", p.id, err)
		}
	}
	if g.cfg.Verbose {
		fmt.Fprintf(g.out, "saved %d player bios\n", len(roster))
	}

	g.buildTimeline(roster)

	outcomes, err := g.svc.AppendBatch(ctx, g.events)
	if err != nil {
		return fmt.Errorf("append demo journal: %w", err)
	}
	for i, outcome := range outcomes {
		if outcome.Err != nil {
			return fmt.Errorf("demo event %d (%s) rejected: %w", i, g.events[i].Type, outcome.Err)
		}
	}
	if g.cfg.Verbose {
		fmt.Fprintf(g.out, "appended %d events for game %s\n", len(outcomes), g.cfg.GameID)
		fmt.Fprintf(g.out, "final score %s %d, %s %d\n",
			homeTeamID, g.score[event.SideHome], awayTeamID, g.score[event.SideAway])
	}
	return nil
}

// buildTimeline scripts the whole game in order: tip-off, four periods of
// alternating possessions with a lineup swap at each break, then the final
// horn. Possession sequence numbers are global and start at one.
func (g *Generator) buildTimeline(roster []demoPlayer) {
	g.clock = g.cfg.TipOff
	g.onFloor = make(map[event.Side][]string)
	g.bench = make(map[event.Side][]string)
	g.score = make(map[event.Side]int64)
	for _, p := range roster {
		if len(g.onFloor[p.side]) < 5 {
			g.onFloor[p.side] = append(g.onFloor[p.side], p.id)
			continue
		}
		g.bench[p.side] = append(g.bench[p.side], p.id)
	}

	g.add(event.TypeGameStart, "", "", event.GameStartPayload{
		HomeTeamID: homeTeamID,
		AwayTeamID: awayTeamID,
		Venue:      demoVenue,
	})

	offense := event.SideHome
	for period := 1; period <= periods; period++ {
		g.add(event.TypePeriodStart, "", "", event.PeriodPayload{Period: period})
		g.rotateLineups(period)
		for i := 0; i < g.cfg.PossessionsPerPeriod; i++ {
			g.runPossession(offense)
			offense = offense.Opponent()
		}
		g.add(event.TypePeriodEnd, "", "", event.PeriodPayload{Period: period})
	}

	g.add(event.TypeGameEnd, "", "", event.GameEndPayload{
		HomeScore: int(g.score[event.SideHome]),
		AwayScore: int(g.score[event.SideAway]),
	})
}

// rotateLineups checks players in. The first period seats the starters;
// later periods swap one bench player in per side, so substitutions appear
// in both directions without ever breaking the five-player bound.
func (g *Generator) rotateLineups(period int) {
	sides := []event.Side{event.SideHome, event.SideAway}
	if period == 1 {
		for _, side := range sides {
			for _, id := range g.onFloor[side] {
				g.add(event.TypeSubIn, side, id, nil)
			}
		}
		return
	}
	swap := period - 2
	for _, side := range sides {
		out := g.onFloor[side][swap%len(g.onFloor[side])]
		in := g.bench[side][swap%len(g.bench[side])]
		g.add(event.TypeSubOut, side, out, nil)
		g.add(event.TypeSubIn, side, in, nil)
		g.onFloor[side][swap%len(g.onFloor[side])] = in
		g.bench[side][swap%len(g.bench[side])] = out
	}
}

// runPossession opens a possession, scripts its outcome, and closes it.
func (g *Generator) runPossession(offense event.Side) {
	g.seq++
	defense := offense.Opponent()
	g.add(event.TypePossessionStart, offense, "", event.PossessionStartPayload{PossessionSeq: g.seq})

	result := "made_shot"
	points := 0
	switch possessionOutcome((g.seq - 1) % uint64(outcomeCount)) {
	case outcomeMadeTwo:
		g.add(event.TypeShotMade, offense, g.pick(offense), event.ShotPayload{Points: 2})
		points = 2
	case outcomeMadeThreeAssisted:
		shooter := g.pick(offense)
		assister := g.pickOther(offense, shooter)
		g.add(event.TypeShotMade, offense, shooter, event.ShotPayload{Points: 3, AssistPlayerID: assister})
		g.add(event.TypeAssist, offense, assister, nil)
		points = 3
	case outcomeMissedShot:
		g.add(event.TypeShotMissed, offense, g.pick(offense), event.ShotPayload{Points: 2})
		g.add(event.TypeRebound, defense, g.pick(defense), event.ReboundPayload{})
		result = "defensive_rebound"
	case outcomeTurnover:
		g.add(event.TypeTurnover, offense, g.pick(offense), nil)
		g.add(event.TypeSteal, defense, g.pick(defense), nil)
		result = "turnover"
	case outcomeFreeThrows:
		shooter := g.pick(offense)
		g.add(event.TypeFoul, defense, g.pick(defense), event.FoulPayload{DrawnByPlayerID: shooter})
		g.add(event.TypeFreeThrowMade, offense, shooter, event.FreeThrowPayload{Attempt: 1, Of: 2})
		g.add(event.TypeFreeThrowMissed, offense, shooter, event.FreeThrowPayload{Attempt: 2, Of: 2})
		g.add(event.TypeRebound, defense, g.pick(defense), event.ReboundPayload{})
		result = "free_throws"
		points = 1
	case outcomeBlockedShot:
		g.add(event.TypeShotMissed, offense, g.pick(offense), event.ShotPayload{Points: 2})
		g.add(event.TypeBlock, defense, g.pick(defense), nil)
		g.add(event.TypeRebound, defense, g.pick(defense), event.ReboundPayload{})
		result = "defensive_rebound"
	case outcomeOffensiveBoard:
		g.add(event.TypeShotMissed, offense, g.pick(offense), event.ShotPayload{Points: 2})
		board := g.pick(offense)
		g.add(event.TypeRebound, offense, board, event.ReboundPayload{Offensive: true})
		g.add(event.TypeShotMade, offense, board, event.ShotPayload{Points: 2})
		points = 2
	}
	g.score[offense] += int64(points)

	g.add(event.TypePossessionEnd, offense, "", event.PossessionEndPayload{
		PossessionSeq: g.seq,
		Result:        result,
		Points:        points,
	})
}

// add advances the clock a few seconds and stages the event.
func (g *Generator) add(typ event.Type, side event.Side, playerID string, payload any) {
	g.clock = g.clock.Add(time.Duration(2+g.rng.Intn(16)) * time.Second)
	raw := []byte("{}")
	if payload != nil {
		if data, err := json.Marshal(payload); err == nil {
			raw = data
		}
	}
	g.events = append(g.events, event.Event{
		GameID:      g.cfg.GameID,
		Timestamp:   g.clock,
		Type:        typ,
		Side:        side,
		PlayerID:    playerID,
		PayloadJSON: raw,
	})
}

func (g *Generator) pick(side event.Side) string {
	floor := g.onFloor[side]
	return floor[g.rng.Intn(len(floor))]
}

func (g *Generator) pickOther(side event.Side, exclude string) string {
	for {
		id := g.pick(side)
		if id != exclude {
			return id
		}
	}
}
