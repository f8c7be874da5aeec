package engine

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/justapithecus/sparring/types"
)

// Line tags of the engine's text protocol.
const (
	tagInfo     = "info"
	tagBestMove = "bestmove"
	tagTotal    = "Total"
	tagReadyOK  = "readyok"
	markVictims = "victims"
)

// lineKind classifies one response line.
type lineKind int

const (
	lineEmpty lineKind = iota
	lineInfo
	lineBestMove
	lineTotal
	lineVictims
	lineReady
	lineOther
)

func (k lineKind) String() string {
	switch k {
	case lineEmpty:
		return "empty"
	case lineInfo:
		return "info"
	case lineBestMove:
		return "bestmove"
	case lineTotal:
		return "total"
	case lineVictims:
		return "victims"
	case lineReady:
		return "readyok"
	default:
		return "other"
	}
}

var (
	errEmptyLine        = errors.New("empty line")
	errNotTotalLine     = errors.New("not a Total line")
	errMalformedTotal   = errors.New("malformed Total line")
	errNotVictimsLine   = errors.New("not a victims line")
	errMalformedVictims = errors.New("malformed victims line")
	errNoBestMove       = errors.New("bestmove line has no move")
	errNotScoreLine     = errors.New("not an info score line")
)

// classifyLine tags a trimmed response line by its first field. The victims
// marker is matched anywhere in the line.
func classifyLine(line string) (lineKind, []string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return lineEmpty, nil
	}
	switch fields[0] {
	case tagInfo:
		return lineInfo, fields
	case tagBestMove:
		return lineBestMove, fields
	case tagTotal:
		return lineTotal, fields
	case tagReadyOK:
		return lineReady, fields
	}
	if strings.Contains(line, markVictims) {
		return lineVictims, fields
	}
	return lineOther, fields
}

// parseTotal extracts the coefficient of a line shaped like
// "Total <heuristic> score of <n> for <color>".
func parseTotal(fields []string) (int, error) {
	if len(fields) == 0 {
		return 0, errEmptyLine
	}
	if fields[0] != tagTotal {
		return 0, errNotTotalLine
	}
	if len(fields) < 5 {
		return 0, fmt.Errorf("%w: %q", errMalformedTotal, strings.Join(fields, " "))
	}
	n, err := strconv.Atoi(fields[4])
	if err != nil {
		return 0, fmt.Errorf("%w: %v", errMalformedTotal, err)
	}
	return n, nil
}

// parseVictims extracts the trailing integer of a "move victims <n>" line.
func parseVictims(line string) (int, error) {
	if !strings.Contains(line, markVictims) {
		return 0, errNotVictimsLine
	}
	fields := strings.Fields(line)
	n, err := strconv.Atoi(fields[len(fields)-1])
	if err != nil {
		return 0, fmt.Errorf("%w: %q", errMalformedVictims, line)
	}
	return n, nil
}

// parseScore extracts the centipawn score of an "info score cp <n> ..." line.
func parseScore(fields []string) (int, error) {
	if len(fields) < 4 || fields[0] != tagInfo || fields[1] != "score" || fields[2] != "cp" {
		return 0, errNotScoreLine
	}
	return strconv.Atoi(fields[3])
}

// parseBestMove returns the final token of a bestmove line.
func parseBestMove(fields []string) (types.Move, error) {
	if len(fields) < 2 {
		return "", errNoBestMove
	}
	return types.Move(fields[len(fields)-1]), nil
}

// SearchLimits bounds a search request. A positive Depth selects a
// depth-bounded search; otherwise TimeMs and Inc select a clocked search.
type SearchLimits struct {
	Depth  int
	TimeMs float64
	Inc    float64
}

// DepthLimit returns limits for a fixed-depth search.
func DepthLimit(depth int) SearchLimits {
	return SearchLimits{Depth: depth}
}

// ClockLimit returns limits for a time-plus-increment search.
func ClockLimit(timeMs, inc float64) SearchLimits {
	return SearchLimits{TimeMs: timeMs, Inc: inc}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Command builders. Each returns one newline-terminated line.

// OptionSetting is one engine option sent before the first game.
type OptionSetting struct {
	Name  string
	Value string
}

// ParseOptionSetting parses "name=value". The name must be non-empty and
// contain no whitespace; the value may be empty.
func ParseOptionSetting(s string) (OptionSetting, error) {
	name, value, ok := strings.Cut(s, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" || strings.ContainsAny(name, " \t") {
		return OptionSetting{}, fmt.Errorf("invalid option %q: want name=value", s)
	}
	return OptionSetting{Name: name, Value: strings.TrimSpace(value)}, nil
}

func cmdSetOption(name, value string) string {
	return fmt.Sprintf("setoption name %s value %s\n", name, value)
}

func cmdPosition(moves types.MoveHistory) string {
	if len(moves) == 0 {
		return "position startpos\n"
	}
	return "position startpos moves " + strings.Join(moves.Strings(), " ") + "\n"
}

func cmdGo(limits SearchLimits) string {
	if limits.Depth > 0 {
		return fmt.Sprintf("go depth %d\n", limits.Depth)
	}
	return fmt.Sprintf("go time %s inc %s\n", formatFloat(limits.TimeMs), formatFloat(limits.Inc))
}

func cmdMove(m types.Move) string {
	return fmt.Sprintf("move %s\n", m)
}

const (
	cmdStatus   = "status\n"
	cmdEval     = "eval\n"
	cmdGenerate = "generate\n"
	cmdFen      = "fen\n"
	cmdIsReady  = "isready\n"
	cmdQuit     = "quit\n"
)
