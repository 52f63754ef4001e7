// Package rules adapts the notnil/chess rules engine to the match
// controller: side to move, move-token parsing, move application, and
// termination classification. The controller treats all of it as a black box.
package rules

import (
	"fmt"

	"github.com/notnil/chess"

	"uciarena/match"
)

// Game wraps one notnil/chess game.
type Game struct {
	g *chess.Game
}

var _ match.Rules = (*Game)(nil)

// NewGame starts from the standard initial position.
func NewGame() *Game {
	return &Game{g: chess.NewGame()}
}

func (r *Game) SideToMove() match.Color {
	if r.g.Position().Turn() == chess.White {
		return match.White
	}
	return match.Black
}

// Parse reads an engine move token (long algebraic notation, e.g. "e2e4" or
// "e7e8q") against the current position.
func (r *Game) Parse(token string) (match.Move, error) {
	mv, err := chess.UCINotation{}.Decode(r.g.Position(), token)
	if err != nil {
		return nil, fmt.Errorf("rules: %w", err)
	}
	return mv, nil
}

// Apply plays the move. Threefold-repetition and fifty-move draws are
// claimed as soon as they become available; neither engine gets a say.
func (r *Game) Apply(m match.Move) error {
	mv, ok := m.(*chess.Move)
	if !ok {
		return fmt.Errorf("rules: move of unexpected type %T", m)
	}
	if err := r.g.Move(mv); err != nil {
		return fmt.Errorf("rules: %w", err)
	}
	for _, method := range r.g.EligibleDraws() {
		if method == chess.ThreefoldRepetition || method == chess.FiftyMoveRule {
			if err := r.g.Draw(method); err != nil {
				return fmt.Errorf("rules: claim draw: %w", err)
			}
			break
		}
	}
	return nil
}

// Status classifies the current board.
func (r *Game) Status() match.Status {
	switch r.g.Outcome() {
	case chess.WhiteWon:
		return match.Status{Outcome: match.WhiteWin, Reason: reason(r.g.Method())}
	case chess.BlackWon:
		return match.Status{Outcome: match.BlackWin, Reason: reason(r.g.Method())}
	case chess.Draw:
		return match.Status{Outcome: match.Draw, Reason: reason(r.g.Method())}
	default:
		return match.Status{Outcome: match.InProgress}
	}
}

// SAN renders a parsed move in short algebraic notation against the current
// board. Only valid before the move is applied.
func (r *Game) SAN(m match.Move) string {
	mv, ok := m.(*chess.Move)
	if !ok {
		return ""
	}
	return chess.AlgebraicNotation{}.Encode(r.g.Position(), mv)
}

func reason(m chess.Method) string {
	switch m {
	case chess.Checkmate:
		return match.ReasonCheckmate
	case chess.Stalemate:
		return match.ReasonStalemate
	case chess.ThreefoldRepetition, chess.FivefoldRepetition:
		return match.ReasonRepetition
	case chess.FiftyMoveRule, chess.SeventyFiveMoveRule:
		return match.ReasonFiftyMove
	case chess.InsufficientMaterial:
		return match.ReasonInsufficient
	default:
		return fmt.Sprintf("method %d", m)
	}
}
