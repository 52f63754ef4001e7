// Package match sequences a pair of engine sessions through one complete
// game under a clock: turn alternation, wall-clock accounting, the one-time
// midgame option transition, and termination detection via an external
// rules engine.
package match

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"uciarena/uci"
)

// StartPosition is the fixed start marker of the position descriptor.
// Every move token played is appended to it, space-separated; engines parse
// the descriptor as a replay from the initial position, so it is never
// rewritten.
const StartPosition = "startpos moves"

// Defaults applied by New when Options fields are zero.
const (
	DefaultTimeMs     = 300_000
	DefaultMidgamePly = 18
)

// Color indexes the two sides of a match.
type Color int

const (
	White Color = iota
	Black
)

func (c Color) String() string {
	if c == White {
		return "white"
	}
	return "black"
}

// Move is whatever the rules engine produces when parsing a move token.
// The controller stores and forwards it without looking inside.
type Move any

// Searcher is the slice of an engine session the controller drives.
// *uci.Engine satisfies it.
type Searcher interface {
	Name() string
	NewGame() error
	EnterMidgame() error
	Search(position string, wtimeMs, btimeMs int) (string, uci.SearchInfo, error)
}

// Rules is the external rules engine: it owns the board, accepts moves, and
// classifies termination. The controller never interprets positions itself.
type Rules interface {
	SideToMove() Color
	Parse(token string) (Move, error)
	Apply(m Move) error
	Status() Status
	// SAN renders a parsed move against the current board; only valid
	// before the move is applied. Used for logging.
	SAN(m Move) string
}

// Options configures a match.
type Options struct {
	TimeMs        int  // initial clock budget per side in ms; 0 means DefaultTimeMs
	MidgamePly    int  // ply count that triggers the midgame transition; 0 means DefaultMidgamePly, negative disables
	ForfeitOnFlag bool // score a loss when the mover's clock runs out
	Logger        zerolog.Logger
}

// Match drives one game. States run Setup (New) → Playing (PlayPly) →
// Terminal, with no way back to Setup; start a new Match for a new game.
type Match struct {
	sessions [2]Searcher
	rules    Rules
	opts     Options

	clocks   [2]int // remaining ms per color, decremented by search wall time
	position string
	moves    []Move
	infos    []uci.SearchInfo
	status   Status

	now func() time.Time
}

// New sets up a game between two already-initialized sessions: both engines
// get a fresh game, clocks are set to the configured budget, and the
// position descriptor starts at the start marker.
func New(white, black Searcher, rules Rules, opts Options) (*Match, error) {
	if opts.TimeMs == 0 {
		opts.TimeMs = DefaultTimeMs
	}
	if opts.MidgamePly == 0 {
		opts.MidgamePly = DefaultMidgamePly
	}
	if err := white.NewGame(); err != nil {
		return nil, fmt.Errorf("match: new game for %s: %w", white.Name(), err)
	}
	if err := black.NewGame(); err != nil {
		return nil, fmt.Errorf("match: new game for %s: %w", black.Name(), err)
	}
	return &Match{
		sessions: [2]Searcher{white, black},
		rules:    rules,
		opts:     opts,
		clocks:   [2]int{opts.TimeMs, opts.TimeMs},
		position: StartPosition,
		status:   Status{Outcome: InProgress},
		now:      time.Now,
	}, nil
}

// PlayPly runs one half-move: ask the session on move for its move given the
// current descriptor and clocks, charge the wall-clock search time to its
// clock, then let the rules engine advance the board and classify the game.
func (m *Match) PlayPly() error {
	if m.status.Terminal() {
		return fmt.Errorf("match: game already over: %v", m.status)
	}

	// The transition fires exactly when the completed-ply count first
	// equals the threshold; it is not retried on later plies.
	if len(m.moves) == m.opts.MidgamePly {
		for _, s := range m.sessions {
			if err := s.EnterMidgame(); err != nil {
				return fmt.Errorf("match: midgame options for %s: %w", s.Name(), err)
			}
		}
	}

	color := m.rules.SideToMove()
	session := m.sessions[color]

	start := m.now()
	token, info, err := session.Search(m.position, m.clocks[White], m.clocks[Black])
	if err != nil {
		return fmt.Errorf("match: search by %s: %w", session.Name(), err)
	}
	elapsed := int(m.now().Sub(start).Milliseconds())

	move, err := m.rules.Parse(token)
	if err != nil {
		return fmt.Errorf("match: %s played %q: %w", session.Name(), token, err)
	}

	m.position += " " + token
	m.clocks[color] -= elapsed
	m.moves = append(m.moves, move)
	m.infos = append(m.infos, info)

	m.logMove(color, move, info, elapsed)

	if err := m.rules.Apply(move); err != nil {
		return fmt.Errorf("match: apply %q: %w", token, err)
	}
	m.status = m.rules.Status()

	if m.opts.ForfeitOnFlag && !m.status.Terminal() && m.clocks[color] <= 0 {
		winner := WhiteWin
		if color == White {
			winner = BlackWin
		}
		m.status = Status{Outcome: winner, Reason: ReasonTimeForfeit}
	}
	return nil
}

// FinishGame drives the game to a terminal status and returns it.
func (m *Match) FinishGame() (Status, error) {
	for !m.status.Terminal() {
		if err := m.PlayPly(); err != nil {
			return m.status, err
		}
	}
	return m.status, nil
}

// Status returns the current (outcome, reason) pair.
func (m *Match) Status() Status { return m.status }

// Position returns the current position descriptor.
func (m *Match) Position() string { return m.position }

// Plies returns the number of half-moves played so far.
func (m *Match) Plies() int { return len(m.moves) }

// Moves returns the parsed moves in play order.
func (m *Match) Moves() []Move { return m.moves }

// SearchInfos returns the per-ply telemetry snapshots, parallel to Moves.
func (m *Match) SearchInfos() []uci.SearchInfo { return m.infos }

// Clock returns the remaining time for a color in milliseconds.
func (m *Match) Clock(c Color) int { return m.clocks[c] }

// logMove is called after the histories are updated but before the move is
// applied, while SAN can still be rendered against the pre-move board.
func (m *Match) logMove(color Color, move Move, info uci.SearchInfo, elapsedMs int) {
	m.opts.Logger.Info().
		Int("move", (len(m.moves)+1)/2).
		Str("color", color.String()).
		Str("san", m.rules.SAN(move)).
		Int("clock_ms", m.clocks[color]).
		Int("elapsed_ms", elapsedMs).
		Int("depth", info.Depth).
		Str("score", info.Score).
		Msg("played")
}
