// Package enginetest provides an in-process engine that speaks the line
// protocol over pipes. Its toy game is a pure function of the move history,
// so two fakes with the same Config agree on every position.
package enginetest

import (
	"bufio"
	"fmt"
	"hash/fnv"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/justapithecus/sparring/engine"
)

// Skew perturbs one coefficient from a given ply onwards.
type Skew struct {
	Index   int
	Amount  int
	FromPly int
}

// Config shapes the fake's behavior. The zero value plays an endless game
// with three legal moves per position and four coefficients.
type Config struct {
	// Coefficients is the evaluation vector length (default 4).
	Coefficients int
	// Branch is the number of legal moves per position (default 3).
	Branch int
	// MateAt reports mate once the history reaches this many plies.
	MateAt int
	// DrawAt reports a draw once the history reaches this many plies.
	DrawAt int
	// Skew perturbs the evaluation vector.
	Skew *Skew
	// TruncateFrom drops the last coefficient from this ply onwards.
	TruncateFrom int
	// Victims returns the victim count reported for a legal move.
	Victims func(ply int, move string) int
	// Score returns the centipawn score reported at a ply.
	Score func(ply int) int
	// NoScore omits scores from search and eval output.
	NoScore bool
	// Preamble lines are emitted before the first info line of a search.
	Preamble []string
	// StatusText overrides the status reply body for non-terminal positions.
	StatusText string
	// EvalDetail lines precede the totals of every eval reply, like the
	// per-piece bonus and penalty lines of a verbose evaluation.
	EvalDetail []string
	// EvalBlank opens every eval reply with an empty line.
	EvalBlank bool
	// HangOn stops responding once a command with this prefix arrives.
	HangOn string
	// CrashOn closes the output stream once a command with this prefix arrives.
	CrashOn string
}

// Fake is an engine.Process backed by pipes.
type Fake struct {
	cfg Config

	stdinR  *io.PipeReader
	stdinW  *io.PipeWriter
	stdoutR *io.PipeReader
	stdoutW *io.PipeWriter

	mu       sync.Mutex
	received []string
	options  map[string]string
	history  []string

	killed   chan struct{}
	killOnce sync.Once
	exited   chan struct{}
	exitCode int
}

var _ engine.Process = (*Fake)(nil)

// New starts a fake engine.
func New(cfg Config) *Fake {
	if cfg.Coefficients <= 0 {
		cfg.Coefficients = 4
	}
	if cfg.Branch <= 0 {
		cfg.Branch = 3
	}
	f := &Fake{
		cfg:     cfg,
		options: make(map[string]string),
		killed:  make(chan struct{}),
		exited:  make(chan struct{}),
	}
	f.stdinR, f.stdinW = io.Pipe()
	f.stdoutR, f.stdoutW = io.Pipe()
	go f.serve()
	return f
}

// NewLink starts a fake and wraps it in a Link.
func NewLink(cfg Config, opts ...engine.Option) (*engine.Link, *Fake) {
	f := New(cfg)
	return engine.New(f, opts...), f
}

// Stdin implements engine.Process.
func (f *Fake) Stdin() io.Writer { return f.stdinW }

// Stdout implements engine.Process.
func (f *Fake) Stdout() io.Reader { return f.stdoutR }

// Kill implements engine.Process.
func (f *Fake) Kill() error {
	f.killOnce.Do(func() {
		close(f.killed)
		_ = f.stdinR.CloseWithError(io.ErrClosedPipe)
		_ = f.stdoutW.Close()
	})
	return nil
}

// Wait implements engine.Process.
func (f *Fake) Wait() (*engine.ExitResult, error) {
	<-f.exited
	return &engine.ExitResult{ExitCode: f.exitCode}, nil
}

// Received returns every command line the fake has read.
func (f *Fake) Received() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.received))
	copy(out, f.received)
	return out
}

// Option returns the last value set for an engine option.
func (f *Fake) Option(name string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.options[name]
	return v, ok
}

// History returns the fake's current move history.
func (f *Fake) History() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.history...)
}

// Killed reports whether Kill was called.
func (f *Fake) Killed() bool {
	select {
	case <-f.killed:
		return true
	default:
		return false
	}
}

func (f *Fake) serve() {
	defer close(f.exited)
	defer f.stdoutW.Close()

	scanner := bufio.NewScanner(f.stdinR)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		f.mu.Lock()
		f.received = append(f.received, line)
		f.mu.Unlock()

		if f.cfg.HangOn != "" && strings.HasPrefix(line, f.cfg.HangOn) {
			<-f.killed
			f.exitCode = -1
			return
		}
		if f.cfg.CrashOn != "" && strings.HasPrefix(line, f.cfg.CrashOn) {
			f.exitCode = 139
			return
		}
		if line == "quit" {
			return
		}
		if err := f.handle(line); err != nil {
			f.exitCode = -1
			return
		}
	}
}

func (f *Fake) handle(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}

	switch fields[0] {
	case "setoption":
		// setoption name N value V
		if len(fields) >= 5 {
			f.mu.Lock()
			f.options[fields[2]] = strings.Join(fields[4:], " ")
			f.mu.Unlock()
		}
		return nil
	case "position":
		var moves []string
		if len(fields) > 2 && fields[2] == "moves" {
			moves = append(moves, fields[3:]...)
		}
		f.mu.Lock()
		f.history = moves
		f.mu.Unlock()
		return nil
	case "isready":
		return f.emit("readyok")
	case "go":
		return f.search()
	case "eval":
		return f.eval()
	case "generate":
		return f.generate()
	case "move":
		if len(fields) < 2 {
			return f.emit("info Illegal move: victims -1")
		}
		return f.move(fields[1])
	case "status":
		return f.status()
	case "fen":
		h := f.History()
		return f.emit("startpos/" + strings.Join(h, "/"))
	default:
		return f.emit("info string unknown command " + fields[0])
	}
}

func (f *Fake) emit(lines ...string) error {
	for _, l := range lines {
		if _, err := io.WriteString(f.stdoutW, l+"\n"); err != nil {
			return err
		}
	}
	return nil
}

// Terminal reports the game state after the given number of plies.
func (c Config) Terminal(ply int) string {
	switch {
	case c.MateAt > 0 && ply >= c.MateAt:
		if ply%2 == 1 {
			return "mate - white wins"
		}
		return "mate - black wins"
	case c.DrawAt > 0 && ply >= c.DrawAt:
		return "draw"
	default:
		return ""
	}
}

// Moves returns the legal moves after the given history.
func (c Config) Moves(history []string) []string {
	if c.Terminal(len(history)) != "" {
		return nil
	}
	branch := c.Branch
	if branch <= 0 {
		branch = 3
	}
	h := hashHistory(history)
	moves := make([]string, branch)
	for k := range moves {
		moves[k] = fmt.Sprintf("%c%d", 'a'+byte(k), (h>>uint(k*3))%8)
	}
	return moves
}

// Features returns the evaluation vector after the given history.
func (c Config) Features(history []string) []int {
	n := c.Coefficients
	if n <= 0 {
		n = 4
	}
	ply := len(history)
	if c.TruncateFrom > 0 && ply >= c.TruncateFrom {
		n--
	}
	h := hashHistory(history)
	out := make([]int, n)
	for i := range out {
		out[i] = int((h>>uint(i*8))&0xff) - 128
	}
	if s := c.Skew; s != nil && ply >= s.FromPly && s.Index < len(out) {
		out[s.Index] += s.Amount
	}
	return out
}

func (c Config) score(history []string) int {
	if c.Score != nil {
		return c.Score(len(history))
	}
	return int(hashHistory(history)%200) - 100
}

func (f *Fake) search() error {
	h := f.History()
	moves := f.cfg.Moves(h)
	best := "none"
	if len(moves) > 0 {
		best = moves[0]
	}
	if err := f.emit(f.cfg.Preamble...); err != nil {
		return err
	}
	info := "info depth 1 pv " + best
	if !f.cfg.NoScore {
		info = fmt.Sprintf("info depth 1 score cp %d pv %s", f.cfg.score(h), best)
	}
	return f.emit("info depth 0 nodes 1", info, "bestmove "+best)
}

func (f *Fake) eval() error {
	h := f.History()
	feats := f.cfg.Features(h)
	lines := make([]string, 0, len(f.cfg.EvalDetail)+len(feats)+2)
	if f.cfg.EvalBlank {
		lines = append(lines, "")
	}
	lines = append(lines, f.cfg.EvalDetail...)
	for i, c := range feats {
		lines = append(lines, fmt.Sprintf("Total h%d score of %d for white", i, c))
	}
	if f.cfg.NoScore {
		lines = append(lines, "info string eval done")
	} else {
		lines = append(lines, "info score cp "+strconv.Itoa(f.cfg.score(h)))
	}
	return f.emit(lines...)
}

func (f *Fake) generate() error {
	moves := f.cfg.Moves(f.History())
	if len(moves) == 0 {
		return f.emit("")
	}
	return f.emit("info " + strings.Join(moves, " "))
}

func (f *Fake) move(m string) error {
	h := f.History()
	legal := false
	for _, cand := range f.cfg.Moves(h) {
		if cand == m {
			legal = true
			break
		}
	}
	if !legal {
		return f.emit("info Illegal move: victims -1")
	}
	victims := 0
	if f.cfg.Victims != nil {
		victims = f.cfg.Victims(len(h), m)
	}
	f.mu.Lock()
	f.history = append(f.history, m)
	f.mu.Unlock()
	return f.emit(fmt.Sprintf("info move %s victims %d", m, victims))
}

func (f *Fake) status() error {
	h := f.History()
	if t := f.cfg.Terminal(len(h)); t != "" {
		return f.emit("status " + t)
	}
	if f.cfg.StatusText != "" {
		return f.emit("status " + f.cfg.StatusText)
	}
	return f.emit("status ok")
}

func hashHistory(history []string) uint64 {
	h := fnv.New64a()
	for _, m := range history {
		_, _ = h.Write([]byte(m))
		_, _ = h.Write([]byte{' '})
	}
	return h.Sum64()
}
