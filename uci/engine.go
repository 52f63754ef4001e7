// Package uci drives one UCI chess engine process over its text streams:
// handshake, option configuration, and the blocking move-search
// request/response cycle with telemetry aggregation.
package uci

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os/exec"
	"strings"

	"github.com/rs/zerolog"
)

// Sentinel errors for engine sessions.
var (
	// ErrProtocol indicates the engine sent something other than the
	// expected terminal response. Unrecoverable; the session is unusable.
	ErrProtocol = errors.New("uci: protocol violation")

	// ErrClosed indicates an operation on a session after Close.
	ErrClosed = errors.New("uci: engine closed")
)

// SearchConfig selects how the "go" command is assembled. All configured
// clauses are appended; the clock clauses only when UseClock is set.
type SearchConfig struct {
	UseClock   bool
	Depth      int // fixed search depth when > 0
	MoveTimeMs int // fixed per-move time in milliseconds when > 0
}

// NoClock marks a clock with no reading; its clause is omitted from the go
// command. Negative remaining time is a real reading and is sent through.
const NoClock = math.MinInt

type sessionState int

const (
	stateReady sessionState = iota
	stateSearching
	stateFailed // protocol violation or dead stream; only Close is allowed
	stateClosed
)

type option struct {
	name  string
	value string
}

// Engine is one running engine process plus its communication channels and
// per-game configuration. All calls block the caller until the engine's
// terminal response line arrives; the protocol is strictly request/response.
// An Engine is not safe for concurrent use.
type Engine struct {
	name string
	cmd  *exec.Cmd // nil when attached to arbitrary streams
	in   *bufio.Writer
	out  *bufio.Scanner
	log  zerolog.Logger

	options []option // replayed on NewGame, insertion order
	midgame []option // replayed on EnterMidgame, insertion order
	search  SearchConfig
	state   sessionState
}

// Start launches the engine executable and completes the UCI handshake.
// The first line the engine prints is a banner and is discarded unread.
func Start(name, command string, log zerolog.Logger) (*Engine, error) {
	cmd := exec.Command(command)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("uci: %s: stdin pipe: %w", name, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("uci: %s: stdout pipe: %w", name, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("uci: %s: start %q: %w", name, command, err)
	}

	e := attach(name, stdin, stdout, log)
	e.cmd = cmd
	if err := e.handshake(); err != nil {
		return nil, err
	}
	return e, nil
}

// attach wraps existing streams without spawning a process. The caller still
// owes a handshake before the session is usable.
func attach(name string, w io.Writer, r io.Reader, log zerolog.Logger) *Engine {
	return &Engine{
		name: name,
		in:   bufio.NewWriter(w),
		out:  bufio.NewScanner(r),
		log:  log,
	}
}

// Name returns the label the session was created with.
func (e *Engine) Name() string { return e.name }

// SetOption records an option to replay on every NewGame. Setting the same
// name again overwrites the value in place, keeping first-write order.
func (e *Engine) SetOption(name, value string) {
	e.options = setOption(e.options, name, value)
}

// SetMidgameOption records an option to replay when EnterMidgame is called.
func (e *Engine) SetMidgameOption(name, value string) {
	e.midgame = setOption(e.midgame, name, value)
}

func setOption(opts []option, name, value string) []option {
	for i := range opts {
		if opts[i].name == name {
			opts[i].value = value
			return opts
		}
	}
	return append(opts, option{name: name, value: value})
}

// SetSearch configures how Search builds its "go" command.
func (e *Engine) SetSearch(sc SearchConfig) { e.search = sc }

// NewGame resets engine-internal state for a fresh game, replays the
// persistent options, and waits for the engine to report ready. Safe to
// call again between games.
func (e *Engine) NewGame() error {
	if err := e.guard("new game"); err != nil {
		return err
	}
	e.send("ucinewgame")
	for _, o := range e.options {
		e.sendOption(o)
	}
	e.send("isready")
	return e.expect("readyok")
}

// EnterMidgame replays the midgame option set. No effect when none are
// configured. The commands stay buffered until the next blocking wait
// flushes them, ahead of that wait's own commands.
func (e *Engine) EnterMidgame() error {
	if err := e.guard("midgame options"); err != nil {
		return err
	}
	for _, o := range e.midgame {
		e.sendOption(o)
	}
	return nil
}

// Search hands the engine the position descriptor, issues a "go" shaped by
// the session's SearchConfig, and blocks until a bestmove line arrives.
// It returns the move token and the telemetry accumulated during this call.
// Clock values are sent verbatim, flagged clocks included; pass NoClock to
// omit a clause.
func (e *Engine) Search(position string, wtimeMs, btimeMs int) (string, SearchInfo, error) {
	if err := e.guard("search"); err != nil {
		return "", SearchInfo{}, err
	}
	e.state = stateSearching

	e.send("position " + position)

	goCmd := "go"
	if e.search.Depth > 0 {
		goCmd += fmt.Sprintf(" depth %d", e.search.Depth)
	}
	if e.search.MoveTimeMs > 0 {
		goCmd += fmt.Sprintf(" movetime %d", e.search.MoveTimeMs)
	}
	if e.search.UseClock {
		if wtimeMs != NoClock {
			goCmd += fmt.Sprintf(" wtime %d", wtimeMs)
		}
		if btimeMs != NoClock {
			goCmd += fmt.Sprintf(" btime %d", btimeMs)
		}
	}
	e.send(goCmd)

	var info SearchInfo
	head, rest, err := e.waitResult(&info)
	if err != nil {
		e.state = stateFailed
		return "", SearchInfo{}, err
	}
	if head != "bestmove" || rest == "" {
		e.state = stateFailed
		return "", SearchInfo{}, fmt.Errorf("%w: %s: expected bestmove, got %q",
			ErrProtocol, e.name, strings.TrimSpace(head+" "+rest))
	}

	move := rest
	if i := strings.IndexByte(rest, ' '); i >= 0 {
		move = rest[:i]
	}
	e.state = stateReady
	return move, info, nil
}

// Close tells the engine to quit and waits for the process to exit.
// The session is unusable afterwards. A failed session can still be
// closed; the process is reaped either way.
func (e *Engine) Close() error {
	if e.state == stateClosed {
		return ErrClosed
	}
	e.state = stateClosed
	e.send("quit")
	if err := e.in.Flush(); err != nil {
		return fmt.Errorf("uci: %s: flush: %w", e.name, err)
	}
	if e.cmd != nil {
		if err := e.cmd.Wait(); err != nil {
			return fmt.Errorf("uci: %s: wait: %w", e.name, err)
		}
	}
	return nil
}

// handshake discards the banner line, sends "uci", and waits for uciok.
func (e *Engine) handshake() error {
	if _, err := e.readLine(); err != nil {
		return err
	}
	e.send("uci")
	return e.expect("uciok")
}

func (e *Engine) guard(op string) error {
	switch e.state {
	case stateClosed, stateFailed:
		return fmt.Errorf("%w: %s: %s", ErrClosed, e.name, op)
	case stateSearching:
		return fmt.Errorf("%w: %s: %s during an active search", ErrProtocol, e.name, op)
	}
	return nil
}

func (e *Engine) send(cmd string) {
	e.log.Debug().Str("engine", e.name).Str("line", cmd).Msg("send")
	fmt.Fprintln(e.in, cmd)
}

func (e *Engine) sendOption(o option) {
	e.send("setoption name " + o.name + " value " + o.value)
}

// expect waits for a result line and checks its head token. Any failure
// leaves the session failed; protocol violations are unrecoverable.
func (e *Engine) expect(token string) error {
	head, rest, err := e.waitResult(nil)
	if err != nil {
		e.state = stateFailed
		return err
	}
	if head != token {
		e.state = stateFailed
		return fmt.Errorf("%w: %s: expected %s, got %q",
			ErrProtocol, e.name, token, strings.TrimSpace(head+" "+rest))
	}
	return nil
}

// waitResult blocks until a result line arrives, discarding identity and
// capability lines and folding telemetry lines into si when non-nil.
// Buffered commands are flushed before the first read; both sides block
// forever otherwise.
func (e *Engine) waitResult(si *SearchInfo) (head, rest string, err error) {
	if err := e.in.Flush(); err != nil {
		return "", "", fmt.Errorf("uci: %s: flush: %w", e.name, err)
	}
	for {
		s, err := e.readLine()
		if err != nil {
			return "", "", err
		}
		l := parseLine(s)
		switch l.kind {
		case lineIdentity, lineCapability:
			// Ignore.
		case lineTelemetry:
			if si != nil {
				si.merge(l.rest)
			}
		case lineResult:
			return l.head, l.rest, nil
		}
	}
}

// readLine returns the next non-empty line from the engine.
func (e *Engine) readLine() (string, error) {
	for e.out.Scan() {
		s := strings.TrimSpace(e.out.Text())
		if s == "" {
			continue
		}
		e.log.Debug().Str("engine", e.name).Str("line", s).Msg("recv")
		return s, nil
	}
	if err := e.out.Err(); err != nil {
		return "", fmt.Errorf("uci: %s: read: %w", e.name, err)
	}
	return "", fmt.Errorf("uci: %s: engine closed its output stream", e.name)
}
