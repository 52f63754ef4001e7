// Package tournament schedules round-robin pairings and aggregates game
// results into a standings table.
package tournament

import (
	"fmt"
	"io"
	"sort"

	"uciarena/match"
)

// Pairing is one scheduled game.
type Pairing struct {
	White string
	Black string
}

// RoundRobin schedules every ordered pair of players, so each pairing is
// played twice with colors reversed.
func RoundRobin(names []string) []Pairing {
	var pairings []Pairing
	for _, w := range names {
		for _, b := range names {
			if w == b {
				continue
			}
			pairings = append(pairings, Pairing{White: w, Black: b})
		}
	}
	return pairings
}

// Result records one finished game.
type Result struct {
	White   string
	Black   string
	Outcome match.Outcome
	Plies   int
}

// Standing is one player's accumulated score line. Wins earn two points,
// draws one. The move-count totals are tiebreak material: quick wins
// subtract, drawn-out losses add.
type Standing struct {
	Name              string
	Played            int
	Wins              int
	Draws             int
	Losses            int
	Points            int
	PointsAsBlack     int
	MovePoints        int
	MovePointsAsBlack int
}

// Standings aggregates results into a table ranked by points earned, then
// by games played, then by points earned as black. Unfinished results are
// skipped.
func Standings(names []string, results []Result) []Standing {
	table := make([]Standing, len(names))
	for i, name := range names {
		table[i].Name = name
		for _, r := range results {
			if r.Outcome == match.InProgress {
				continue
			}
			switch name {
			case r.White:
				table[i].addAsWhite(r)
			case r.Black:
				table[i].addAsBlack(r)
			}
		}
	}
	sort.SliceStable(table, func(i, j int) bool {
		a, b := table[i], table[j]
		if a.Points != b.Points {
			return a.Points > b.Points
		}
		if a.Played != b.Played {
			return a.Played > b.Played
		}
		return a.PointsAsBlack > b.PointsAsBlack
	})
	return table
}

func (s *Standing) addAsWhite(r Result) {
	s.Played++
	switch r.Outcome {
	case match.WhiteWin:
		s.Wins++
		s.Points += 2
		s.MovePoints -= r.Plies
	case match.Draw:
		s.Draws++
		s.Points++
	case match.BlackWin:
		s.Losses++
		s.MovePoints += r.Plies
	}
}

func (s *Standing) addAsBlack(r Result) {
	s.Played++
	switch r.Outcome {
	case match.BlackWin:
		s.Wins++
		s.Points += 2
		s.PointsAsBlack += 2
		s.MovePoints -= r.Plies
		s.MovePointsAsBlack -= r.Plies
	case match.Draw:
		s.Draws++
		s.Points++
		s.PointsAsBlack++
	case match.WhiteWin:
		s.Losses++
		s.MovePoints += r.Plies
		s.MovePointsAsBlack += r.Plies
	}
}

// WriteTable renders the standings, points shown as halves of the
// two-per-win internal scale.
func WriteTable(w io.Writer, standings []Standing) {
	fmt.Fprintln(w, "Name        W  D  L  P")
	for _, s := range standings {
		fmt.Fprintf(w, "%-9s: %2d %2d %2d  %.1f\n",
			s.Name, s.Wins, s.Draws, s.Losses, float64(s.Points)/2)
	}
}
