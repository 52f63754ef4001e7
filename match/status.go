package match

// Outcome classifies a game.
type Outcome int

const (
	InProgress Outcome = iota
	Draw
	WhiteWin
	BlackWin
)

func (o Outcome) String() string {
	switch o {
	case Draw:
		return "draw"
	case WhiteWin:
		return "white wins"
	case BlackWin:
		return "black wins"
	default:
		return "in progress"
	}
}

// Reason codes produced by the rules adapter and the forfeit path.
const (
	ReasonCheckmate    = "checkmate"
	ReasonStalemate    = "stalemate"
	ReasonFiftyMove    = "50 moves"
	ReasonRepetition   = "threefold repetition"
	ReasonInsufficient = "insufficient material"
	ReasonTimeForfeit  = "time forfeit"
)

// Status pairs an outcome with the rule that produced it. The zero value is
// an in-progress game.
type Status struct {
	Outcome Outcome
	Reason  string
}

// Terminal reports whether the game is over.
func (s Status) Terminal() bool { return s.Outcome != InProgress }

// String renders the result as a sentence.
func (s Status) String() string {
	switch s.Outcome {
	case Draw:
		switch s.Reason {
		case ReasonStalemate:
			return "The game was a stalemate"
		case ReasonFiftyMove:
			return "The game was a draw under the 50 moves rule"
		case ReasonRepetition:
			return "The game was a draw under the three repetitions rule"
		case ReasonInsufficient:
			return "The game was a draw because there is insufficient material for a checkmate"
		default:
			return "The game was a draw (" + s.Reason + ")"
		}
	case WhiteWin, BlackWin:
		result := "White won"
		if s.Outcome == BlackWin {
			result = "Black won"
		}
		switch s.Reason {
		case ReasonCheckmate:
			return result + " with a checkmate"
		case ReasonTimeForfeit:
			return result + " on time"
		default:
			return result + " (" + s.Reason + ")"
		}
	default:
		return "The game is in progress"
	}
}
