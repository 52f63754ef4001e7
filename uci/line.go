package uci

import (
	"strconv"
	"strings"
)

// SearchInfo aggregates the telemetry an engine reports while it thinks.
// A fresh value is built during every Search call; nothing carries over
// between calls.
type SearchInfo struct {
	Depth  int    // deepest "depth" reported
	Score  string // latest "score", two tokens verbatim (e.g. "cp 31", "mate -2")
	TimeMs int    // largest "time" reported, milliseconds
	TBHits int    // largest positive "tbhits" reported
}

type lineKind int

const (
	lineIdentity   lineKind = iota // "id ...", never terminates a wait
	lineCapability                 // "option ...", never terminates a wait
	lineTelemetry                  // "info ...", folded into SearchInfo
	lineResult                     // anything else terminates the active wait
)

// line is one classified inbound protocol line, split on the first space.
type line struct {
	kind lineKind
	head string
	rest string
}

func parseLine(s string) line {
	head, rest, _ := strings.Cut(s, " ")
	l := line{head: head, rest: rest}
	switch head {
	case "id":
		l.kind = lineIdentity
	case "option":
		l.kind = lineCapability
	case "info":
		l.kind = lineTelemetry
	default:
		l.kind = lineResult
	}
	return l
}

// merge folds the fields of one info line into the accumulated telemetry.
// Depth, time and tbhits keep the maximum seen; score keeps the latest
// value, which may legitimately decrease. A tbhits reading of zero never
// erases an earlier nonzero one.
func (si *SearchInfo) merge(rest string) {
	fields := strings.Fields(rest)
	for i := 0; i < len(fields); i++ {
		switch fields[i] {
		case "depth":
			if i+1 < len(fields) {
				if d, err := strconv.Atoi(fields[i+1]); err == nil && d > si.Depth {
					si.Depth = d
				}
				i++
			}
		case "score":
			if i+2 < len(fields) {
				si.Score = fields[i+1] + " " + fields[i+2]
				i += 2
			}
		case "time":
			if i+1 < len(fields) {
				if ms, err := strconv.Atoi(fields[i+1]); err == nil && ms > si.TimeMs {
					si.TimeMs = ms
				}
				i++
			}
		case "tbhits":
			if i+1 < len(fields) {
				if n, err := strconv.Atoi(fields[i+1]); err == nil && n > 0 && n > si.TBHits {
					si.TBHits = n
				}
				i++
			}
		}
	}
}
