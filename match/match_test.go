package match_test

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"uciarena/match"
	"uciarena/rules"
	"uciarena/uci"
)

// fakeSearcher replays a fixed move list and records what the controller
// asked for.
type fakeSearcher struct {
	name  string
	moves []string
	infos []uci.SearchInfo

	idx       int
	newGames  int
	midgames  int
	positions []string
	clocks    [][2]int
	searchErr error
}

func (f *fakeSearcher) Name() string        { return f.name }
func (f *fakeSearcher) NewGame() error      { f.newGames++; return nil }
func (f *fakeSearcher) EnterMidgame() error { f.midgames++; return nil }

func (f *fakeSearcher) Search(pos string, wtimeMs, btimeMs int) (string, uci.SearchInfo, error) {
	if f.searchErr != nil {
		return "", uci.SearchInfo{}, f.searchErr
	}
	f.positions = append(f.positions, pos)
	f.clocks = append(f.clocks, [2]int{wtimeMs, btimeMs})
	if f.idx >= len(f.moves) {
		return "", uci.SearchInfo{}, fmt.Errorf("fake %s is out of moves", f.name)
	}
	move := f.moves[f.idx]
	var info uci.SearchInfo
	if f.idx < len(f.infos) {
		info = f.infos[f.idx]
	}
	f.idx++
	return move, info, nil
}

// fakeRules alternates colors, accepts every token, and ends in a draw
// after endAt plies (never, when zero).
type fakeRules struct {
	plies int
	endAt int
}

func (r *fakeRules) SideToMove() match.Color { return match.Color(r.plies % 2) }

func (r *fakeRules) Parse(token string) (match.Move, error) { return token, nil }

func (r *fakeRules) Apply(m match.Move) error { r.plies++; return nil }

func (r *fakeRules) Status() match.Status {
	if r.endAt > 0 && r.plies >= r.endAt {
		return match.Status{Outcome: match.Draw, Reason: match.ReasonStalemate}
	}
	return match.Status{Outcome: match.InProgress}
}

func (r *fakeRules) SAN(m match.Move) string { return fmt.Sprint(m) }

// steppingClock returns a now func that advances stepMs per reading.
func steppingClock(stepMs int) func() time.Time {
	base := time.Date(2023, 4, 1, 12, 0, 0, 0, time.UTC)
	var calls int
	return func() time.Time {
		t := base.Add(time.Duration(calls*stepMs) * time.Millisecond)
		calls++
		return t
	}
}

func TestFinishGameFoolsMate(t *testing.T) {
	white := &fakeSearcher{name: "white", moves: []string{"f2f3", "g2g4"}}
	black := &fakeSearcher{
		name:  "black",
		moves: []string{"e7e5", "d8h4"},
		infos: []uci.SearchInfo{{Depth: 1, Score: "cp 30"}, {Depth: 1, Score: "mate 1"}},
	}

	m, err := match.New(white, black, rules.NewGame(), match.Options{TimeMs: 300_000})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if white.newGames != 1 || black.newGames != 1 {
		t.Fatalf("both sessions should get a fresh game: %d/%d", white.newGames, black.newGames)
	}

	status, err := m.FinishGame()
	if err != nil {
		t.Fatalf("FinishGame: %v", err)
	}

	if status.Outcome != match.BlackWin || status.Reason != match.ReasonCheckmate {
		t.Errorf("want black win by checkmate, got %+v", status)
	}
	if m.Plies() != 4 {
		t.Errorf("plies: want 4, got %d", m.Plies())
	}
	if len(m.Moves()) != len(m.SearchInfos()) {
		t.Errorf("history lengths diverge: %d moves, %d infos", len(m.Moves()), len(m.SearchInfos()))
	}
	if got, want := m.Position(), "startpos moves f2f3 e7e5 g2g4 d8h4"; got != want {
		t.Errorf("position descriptor: want %q, got %q", want, got)
	}
	if got := m.SearchInfos()[3]; got.Score != "mate 1" {
		t.Errorf("telemetry history: want final score \"mate 1\", got %+v", got)
	}

	// Each session saw the descriptor as of its own turns.
	wantWhite := []string{"startpos moves", "startpos moves f2f3 e7e5"}
	if !reflect.DeepEqual(white.positions, wantWhite) {
		t.Errorf("white positions: want %v, got %v", wantWhite, white.positions)
	}
	wantBlack := []string{"startpos moves f2f3", "startpos moves f2f3 e7e5 g2g4"}
	if !reflect.DeepEqual(black.positions, wantBlack) {
		t.Errorf("black positions: want %v, got %v", wantBlack, black.positions)
	}
}

func TestFinishGameIsDeterministic(t *testing.T) {
	play := func() (match.Status, string) {
		white := &fakeSearcher{name: "w", moves: []string{"f2f3", "g2g4"}}
		black := &fakeSearcher{name: "b", moves: []string{"e7e5", "d8h4"}}
		m, err := match.New(white, black, rules.NewGame(), match.Options{})
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		status, err := m.FinishGame()
		if err != nil {
			t.Fatalf("FinishGame: %v", err)
		}
		return status, m.Position()
	}

	s1, p1 := play()
	s2, p2 := play()
	if s1 != s2 || p1 != p2 {
		t.Errorf("repeated runs diverged: %+v %q vs %+v %q", s1, p1, s2, p2)
	}
}

func TestClockAccounting(t *testing.T) {
	white := &fakeSearcher{name: "w", moves: []string{"a", "c"}}
	black := &fakeSearcher{name: "b", moves: []string{"b", "d"}}
	fr := &fakeRules{}

	m, err := match.New(white, black, fr, match.Options{TimeMs: 10_000})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	m.SetNow(steppingClock(250)) // each ply takes one 250ms step

	if err := m.PlayPly(); err != nil {
		t.Fatalf("PlayPly: %v", err)
	}
	if got := m.Clock(match.White); got != 9_750 {
		t.Errorf("white clock: want 9750, got %d", got)
	}
	if got := m.Clock(match.Black); got != 10_000 {
		t.Errorf("black clock must be untouched, got %d", got)
	}

	if err := m.PlayPly(); err != nil {
		t.Fatalf("PlayPly: %v", err)
	}
	if got := m.Clock(match.Black); got != 9_750 {
		t.Errorf("black clock: want 9750, got %d", got)
	}
	if got := m.Clock(match.White); got != 9_750 {
		t.Errorf("white clock must be untouched on black's move, got %d", got)
	}

	// Both remaining clocks ride along on every search request.
	want := [][2]int{{9_750, 10_000}}
	if !reflect.DeepEqual(black.clocks, want) {
		t.Errorf("clocks seen by black: want %v, got %v", want, black.clocks)
	}
}

func TestFlaggedClocksStillReachSearch(t *testing.T) {
	white := &fakeSearcher{name: "w", moves: strings.Fields("a b")}
	black := &fakeSearcher{name: "b", moves: strings.Fields("a")}
	fr := &fakeRules{endAt: 3}

	// Forfeit stays off, so both clocks go negative and keep riding along
	// on every search request.
	m, err := match.New(white, black, fr, match.Options{TimeMs: 100, MidgamePly: -1})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	m.SetNow(steppingClock(250))

	if _, err := m.FinishGame(); err != nil {
		t.Fatalf("FinishGame: %v", err)
	}

	wantWhite := [][2]int{{100, 100}, {-150, -150}}
	if !reflect.DeepEqual(white.clocks, wantWhite) {
		t.Errorf("clocks seen by white: want %v, got %v", wantWhite, white.clocks)
	}
	wantBlack := [][2]int{{-150, 100}}
	if !reflect.DeepEqual(black.clocks, wantBlack) {
		t.Errorf("clocks seen by black: want %v, got %v", wantBlack, black.clocks)
	}
}

func TestMidgameTransitionFiresOnceAtThreshold(t *testing.T) {
	white := &fakeSearcher{name: "w", moves: strings.Fields("a b c d e f")}
	black := &fakeSearcher{name: "b", moves: strings.Fields("a b c d e f")}
	fr := &fakeRules{}

	m, err := match.New(white, black, fr, match.Options{MidgamePly: 4})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	for ply := 0; ply < 6; ply++ {
		wantMidgames := 0
		if ply >= 4 {
			wantMidgames = 1
		}
		if err := m.PlayPly(); err != nil {
			t.Fatalf("PlayPly %d: %v", ply, err)
		}
		if white.midgames != wantMidgames || black.midgames != wantMidgames {
			t.Fatalf("after ply %d: midgame transitions %d/%d, want %d",
				ply+1, white.midgames, black.midgames, wantMidgames)
		}
	}

	// The transition preceded the fifth search request.
	if len(white.positions) < 3 {
		t.Fatalf("white searched %d times", len(white.positions))
	}
}

func TestMidgameDisabledWithNegativeThreshold(t *testing.T) {
	white := &fakeSearcher{name: "w", moves: strings.Fields("a b c")}
	black := &fakeSearcher{name: "b", moves: strings.Fields("a b c")}
	fr := &fakeRules{endAt: 6}

	m, err := match.New(white, black, fr, match.Options{MidgamePly: -1})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := m.FinishGame(); err != nil {
		t.Fatalf("FinishGame: %v", err)
	}
	if white.midgames != 0 || black.midgames != 0 {
		t.Errorf("midgame transition should not fire: %d/%d", white.midgames, black.midgames)
	}
}

func TestSearchErrorAbortsPly(t *testing.T) {
	boom := errors.New("engine crashed")
	white := &fakeSearcher{name: "w", searchErr: boom}
	black := &fakeSearcher{name: "b"}

	m, err := match.New(white, black, &fakeRules{}, match.Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := m.PlayPly(); !errors.Is(err, boom) {
		t.Fatalf("want search error to surface, got %v", err)
	}
	if m.Status().Terminal() {
		t.Errorf("status must stay in progress on abort, got %+v", m.Status())
	}
	if m.Plies() != 0 {
		t.Errorf("no ply should be recorded, got %d", m.Plies())
	}
}

func TestForfeitOnFlag(t *testing.T) {
	white := &fakeSearcher{name: "w", moves: strings.Fields("a b c")}
	black := &fakeSearcher{name: "b", moves: strings.Fields("a b c")}
	fr := &fakeRules{}

	m, err := match.New(white, black, fr, match.Options{TimeMs: 400, ForfeitOnFlag: true, MidgamePly: -1})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	m.SetNow(steppingClock(250))

	status, err := m.FinishGame()
	if err != nil {
		t.Fatalf("FinishGame: %v", err)
	}
	// White spends 250ms per move and flags on its second move.
	if status.Outcome != match.BlackWin || status.Reason != match.ReasonTimeForfeit {
		t.Errorf("want black win on time, got %+v", status)
	}
	if m.Clock(match.White) > 0 {
		t.Errorf("white clock should be exhausted, got %d", m.Clock(match.White))
	}
}

func TestPlayPlyAfterTerminalFails(t *testing.T) {
	white := &fakeSearcher{name: "w", moves: strings.Fields("a")}
	black := &fakeSearcher{name: "b", moves: strings.Fields("a")}
	fr := &fakeRules{endAt: 1}

	m, err := match.New(white, black, fr, match.Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := m.FinishGame(); err != nil {
		t.Fatalf("FinishGame: %v", err)
	}
	if err := m.PlayPly(); err == nil {
		t.Errorf("PlayPly on a finished game must fail")
	}
}

func TestStatusString(t *testing.T) {
	cases := []struct {
		status match.Status
		want   string
	}{
		{match.Status{Outcome: match.Draw, Reason: match.ReasonStalemate}, "The game was a stalemate"},
		{match.Status{Outcome: match.Draw, Reason: match.ReasonFiftyMove}, "The game was a draw under the 50 moves rule"},
		{match.Status{Outcome: match.Draw, Reason: match.ReasonRepetition}, "The game was a draw under the three repetitions rule"},
		{match.Status{Outcome: match.Draw, Reason: match.ReasonInsufficient}, "The game was a draw because there is insufficient material for a checkmate"},
		{match.Status{Outcome: match.WhiteWin, Reason: match.ReasonCheckmate}, "White won with a checkmate"},
		{match.Status{Outcome: match.BlackWin, Reason: match.ReasonTimeForfeit}, "Black won on time"},
		{match.Status{}, "The game is in progress"},
	}

	for _, c := range cases {
		if got := c.status.String(); got != c.want {
			t.Errorf("%+v: want %q, got %q", c.status, c.want, got)
		}
	}
}
