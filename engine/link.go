// Package engine drives an external game engine over its line protocol.
//
// A Link owns one engine process. Requests are strictly sequential: a new
// command is never written while the previous response is still unread.
package engine

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/justapithecus/sparring/log"
	"github.com/justapithecus/sparring/types"
)

// State is the protocol state of a link.
type State int

const (
	// StateIdle means no request is outstanding.
	StateIdle State = iota
	// StateAwaitingSearch means a search response is being read.
	StateAwaitingSearch
	// StateAwaitingEval means an evaluation dump is being read.
	StateAwaitingEval
	// StateAwaitingMoveResult means a move application response is being read.
	StateAwaitingMoveResult
	// StateAwaitingReply means a one-line query response is being read.
	StateAwaitingReply
	// StateBroken means an earlier failure left the stream unusable.
	StateBroken
	// StateClosed means the link was terminated.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingSearch:
		return "awaiting_search"
	case StateAwaitingEval:
		return "awaiting_eval"
	case StateAwaitingMoveResult:
		return "awaiting_move_result"
	case StateAwaitingReply:
		return "awaiting_reply"
	case StateBroken:
		return "broken"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// DefaultCommandLogSize bounds the outbound command log.
const DefaultCommandLogSize = 512

// SearchTrace is the response to a search request.
type SearchTrace struct {
	// Lines are the response lines from the first info line through the
	// bestmove line, in order.
	Lines []string
	// BestMove is the final token of the bestmove line.
	BestMove types.Move
	// Score is the last reported "info score cp" value.
	Score int
	// HasScore is false when no score line was reported.
	HasScore bool
}

// Evaluation is the response to an evaluation request.
type Evaluation struct {
	// Features are the aggregate-total coefficients, in report order.
	Features types.FeatureVector
	// Score is the static score from the closing info line.
	Score int
	// HasScore is false when the closing line carried no score.
	HasScore bool
}

// lineResult is one pumped line or the error that ended the stream.
type lineResult struct {
	line string
	err  error
}

// Link is a typed request/response channel over one engine process.
// A Link is owned by a single worker; only Terminate may be called
// concurrently with a request.
type Link struct {
	name    string
	proc    Process
	stdin   io.Writer
	logger  *log.Logger
	rng     *rand.Rand
	timeout time.Duration

	lines chan lineResult
	done  chan struct{}

	mu       sync.Mutex
	state    State
	broken   error
	commands []string
	sent     int
	logSize  int

	closeOnce sync.Once
	closeErr  error
}

// Option configures a Link.
type Option func(*Link)

// WithName labels the link in errors and logs.
func WithName(name string) Option {
	return func(l *Link) { l.name = name }
}

// WithLogger sets the logger used for protocol warnings.
func WithLogger(logger *log.Logger) Option {
	return func(l *Link) { l.logger = logger }
}

// WithReadTimeout bounds every blocking read. Zero means unbounded.
func WithReadTimeout(d time.Duration) Option {
	return func(l *Link) { l.timeout = d }
}

// WithRand sets the source used by RandomLegalMove.
func WithRand(r *rand.Rand) Option {
	return func(l *Link) { l.rng = r }
}

// WithCommandLogSize bounds how many outbound commands are retained.
func WithCommandLogSize(n int) Option {
	return func(l *Link) { l.logSize = n }
}

// New wraps a running process. The link starts reading the process's
// output immediately.
func New(proc Process, opts ...Option) *Link {
	l := &Link{
		name:    "engine",
		proc:    proc,
		stdin:   proc.Stdin(),
		logger:  log.NewNop(),
		rng:     rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		lines:   make(chan lineResult, 16),
		done:    make(chan struct{}),
		logSize: DefaultCommandLogSize,
	}
	for _, opt := range opts {
		opt(l)
	}
	go l.pump(proc.Stdout())
	return l
}

// Spawn launches an engine binary and wraps it in a Link.
func Spawn(ctx context.Context, config ExecConfig, opts ...Option) (*Link, error) {
	proc := NewExecProcess(config)
	if err := proc.Start(ctx); err != nil {
		return nil, err
	}
	return New(proc, opts...), nil
}

// pump forwards output lines until the stream ends or the link closes.
func (l *Link) pump(r io.Reader) {
	br := bufio.NewReader(r)
	for {
		raw, err := br.ReadString('\n')
		if raw != "" {
			select {
			case l.lines <- lineResult{line: strings.TrimSpace(raw)}:
			case <-l.done:
				return
			}
		}
		if err != nil {
			select {
			case l.lines <- lineResult{err: err}:
			case <-l.done:
			}
			return
		}
	}
}

// Name returns the link's label.
func (l *Link) Name() string {
	return l.name
}

// State returns the current protocol state.
func (l *Link) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Commands returns the retained outbound commands, oldest first, without
// trailing newlines.
func (l *Link) Commands() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.commands))
	copy(out, l.commands)
	return out
}

// CommandsSent returns the total number of commands written.
func (l *Link) CommandsSent() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sent
}

// begin claims the link for one request. Caller must hold l.mu.
func (l *Link) begin(op string, next State) error {
	switch l.state {
	case StateClosed:
		return &LinkError{Kind: ErrLinkClosed, Link: l.name, Op: op}
	case StateBroken:
		return &LinkError{Kind: l.brokenKind(), Link: l.name, Op: op, Err: l.broken}
	case StateIdle:
		l.state = next
		return nil
	default:
		return &LinkError{Kind: ErrProtocolDesync, Link: l.name, Op: op,
			Err: fmt.Errorf("request outstanding in state %s", l.state)}
	}
}

// finish returns the link to idle, or marks it broken when err leaves the
// stream in an unknown position. Caller must hold l.mu.
func (l *Link) finish(err error) {
	if l.state == StateClosed {
		return
	}
	if err != nil && IsWorkerFatal(err) {
		l.state = StateBroken
		l.broken = err
		return
	}
	l.state = StateIdle
}

func (l *Link) brokenKind() error {
	for _, kind := range []error{ErrStreamClosed, ErrProtocolTimeout, ErrCanceled, ErrIllegalMove, ErrProtocolDesync} {
		if errors.Is(l.broken, kind) {
			return kind
		}
	}
	return ErrProtocolDesync
}

// send writes one command line. Caller must hold l.mu.
func (l *Link) send(op, cmd string) error {
	l.sent++
	if l.logSize > 0 {
		if len(l.commands) >= l.logSize {
			l.commands = append(l.commands[:0], l.commands[1:]...)
		}
		l.commands = append(l.commands, strings.TrimSuffix(cmd, "\n"))
	}
	if _, err := io.WriteString(l.stdin, cmd); err != nil {
		return &LinkError{Kind: ErrStreamClosed, Link: l.name, Op: op, Err: err}
	}
	return nil
}

// readLine blocks for the next output line.
func (l *Link) readLine(ctx context.Context, op string) (string, error) {
	var timeout <-chan time.Time
	if l.timeout > 0 {
		timer := time.NewTimer(l.timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case res := <-l.lines:
		if res.err != nil {
			// Keep the terminal error visible to later reads.
			l.lines <- res
			if errors.Is(res.err, io.EOF) || errors.Is(res.err, io.ErrClosedPipe) {
				return "", &LinkError{Kind: ErrStreamClosed, Link: l.name, Op: op}
			}
			return "", &LinkError{Kind: ErrStreamClosed, Link: l.name, Op: op, Err: res.err}
		}
		return res.line, nil
	case <-timeout:
		return "", &LinkError{Kind: ErrProtocolTimeout, Link: l.name, Op: op,
			Err: fmt.Errorf("no output within %s", l.timeout)}
	case <-ctx.Done():
		return "", &LinkError{Kind: ErrCanceled, Link: l.name, Op: op, Err: ctx.Err()}
	case <-l.done:
		return "", &LinkError{Kind: ErrLinkClosed, Link: l.name, Op: op}
	}
}

// fireAndForget sends a command that has no response.
func (l *Link) fireAndForget(op, cmd string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.begin(op, StateIdle); err != nil {
		return err
	}
	err := l.send(op, cmd)
	l.finish(err)
	return err
}

// Configure sets an engine option. No response is expected.
func (l *Link) Configure(option, value string) error {
	return l.fireAndForget("setoption", cmdSetOption(option, value))
}

// SetPosition re-anchors the engine at the start position followed by the
// full move history. No response is expected.
func (l *Link) SetPosition(moves types.MoveHistory) error {
	return l.fireAndForget("position", cmdPosition(moves))
}

// ResetPosition re-anchors the engine at the start position.
func (l *Link) ResetPosition() error {
	return l.fireAndForget("position", cmdPosition(nil))
}

// Search runs a bounded search. Lines before the first info line are
// discarded; reading stops at the bestmove line.
func (l *Link) Search(ctx context.Context, limits SearchLimits) (trace *SearchTrace, err error) {
	const op = "search"
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.begin(op, StateAwaitingSearch); err != nil {
		return nil, err
	}
	defer func() { l.finish(err) }()

	if err := l.send(op, cmdGo(limits)); err != nil {
		return nil, err
	}

	trace = &SearchTrace{}
	inOutput := false
	for {
		line, err := l.readLine(ctx, op)
		if err != nil {
			return nil, err
		}
		kind, fields := classifyLine(line)
		if kind == lineInfo {
			inOutput = true
		}
		if !inOutput {
			continue
		}
		trace.Lines = append(trace.Lines, line)
		if kind == lineInfo {
			if score, err := parseScore(fields); err == nil {
				trace.Score, trace.HasScore = score, true
			}
		}
		if kind == lineBestMove {
			move, err := parseBestMove(fields)
			if err != nil {
				return nil, &LinkError{Kind: ErrProtocolDesync, Link: l.name, Op: op, Err: err}
			}
			trace.BestMove = move
			return trace, nil
		}
	}
}

// BestMove searches to a fixed depth and returns the chosen move.
func (l *Link) BestMove(ctx context.Context, depth int) (types.Move, error) {
	trace, err := l.Search(ctx, DepthLimit(depth))
	if err != nil {
		return "", err
	}
	return trace.BestMove, nil
}

// GenerateMoves returns the legal moves at the current position.
func (l *Link) GenerateMoves(ctx context.Context) (moves []types.Move, err error) {
	const op = "generate"
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.begin(op, StateAwaitingReply); err != nil {
		return nil, err
	}
	defer func() { l.finish(err) }()

	if err := l.send(op, cmdGenerate); err != nil {
		return nil, err
	}
	line, err := l.readLine(ctx, op)
	if err != nil {
		return nil, err
	}

	kind, fields := classifyLine(line)
	switch kind {
	case lineEmpty:
		return nil, nil
	case lineInfo:
		moves = make([]types.Move, 0, len(fields)-1)
		for _, f := range fields[1:] {
			moves = append(moves, types.Move(f))
		}
		return moves, nil
	default:
		return nil, &LinkError{Kind: ErrProtocolDesync, Link: l.name, Op: op,
			Err: fmt.Errorf("unexpected %s line %q", kind, line)}
	}
}

// RandomLegalMove picks a uniformly random legal move. It fails with
// ErrNoMovesAvailable when the engine reports none; callers should consult
// QueryStatus first.
func (l *Link) RandomLegalMove(ctx context.Context) (types.Move, error) {
	moves, err := l.GenerateMoves(ctx)
	if err != nil {
		return "", err
	}
	if len(moves) == 0 {
		return "", &LinkError{Kind: ErrNoMovesAvailable, Link: l.name, Op: "generate"}
	}
	return moves[l.rng.IntN(len(moves))], nil
}

// Evaluate requests the evaluation dump and accumulates the aggregate-total
// coefficients until the closing info line. Per-term detail lines before and
// between the totals are skipped; a reply that opens with an empty line is a
// desync.
func (l *Link) Evaluate(ctx context.Context) (ev *Evaluation, err error) {
	const op = "eval"
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.begin(op, StateAwaitingEval); err != nil {
		return nil, err
	}
	defer func() { l.finish(err) }()

	if err := l.send(op, cmdEval); err != nil {
		return nil, err
	}

	ev = &Evaluation{Features: types.FeatureVector{}}
	first := true
	for {
		line, err := l.readLine(ctx, op)
		if err != nil {
			return nil, err
		}
		kind, fields := classifyLine(line)
		if first && kind == lineEmpty {
			return nil, &LinkError{Kind: ErrProtocolDesync, Link: l.name, Op: op,
				Err: errors.New("empty first eval line")}
		}
		first = false

		switch kind {
		case lineInfo:
			if score, err := parseScore(fields); err == nil {
				ev.Score, ev.HasScore = score, true
			}
			return ev, nil
		case lineTotal:
			c, err := parseTotal(fields)
			if err != nil {
				return nil, &LinkError{Kind: ErrProtocolDesync, Link: l.name, Op: op, Err: err}
			}
			ev.Features = append(ev.Features, c)
		}
	}
}

// ApplyMove plays a move on the engine's own position and returns the
// reported victim count.
func (l *Link) ApplyMove(ctx context.Context, move types.Move) (victims int, err error) {
	const op = "move"
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.begin(op, StateAwaitingMoveResult); err != nil {
		return 0, err
	}
	defer func() { l.finish(err) }()

	if err := l.send(op, cmdMove(move)); err != nil {
		return 0, err
	}
	for {
		line, err := l.readLine(ctx, op)
		if err != nil {
			return 0, err
		}
		if !strings.Contains(line, markVictims) {
			continue
		}
		n, err := parseVictims(line)
		if err != nil {
			return 0, &LinkError{Kind: ErrProtocolDesync, Link: l.name, Op: op, Err: err}
		}
		if n < 0 {
			return 0, &LinkError{Kind: ErrIllegalMove, Link: l.name, Op: op,
				Err: fmt.Errorf("engine rejected %s", move)}
		}
		return n, nil
	}
}

// QueryStatus polls the terminal state. Unrecognized text is treated as
// ongoing and logged.
func (l *Link) QueryStatus(ctx context.Context) (types.Status, error) {
	line, err := l.queryLine(ctx, "status", cmdStatus)
	if err != nil {
		return types.StatusOngoing, err
	}
	status, recognized := types.ParseStatus(line)
	if !recognized {
		l.logger.Warn("unrecognized status line", map[string]any{
			"link": l.name,
			"line": line,
		})
	}
	return status, nil
}

// QueryPosition returns the engine's position string. It is opaque and used
// only for diagnostics.
func (l *Link) QueryPosition(ctx context.Context) (string, error) {
	return l.queryLine(ctx, "fen", cmdFen)
}

// queryLine sends a command answered by exactly one line.
func (l *Link) queryLine(ctx context.Context, op, cmd string) (line string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.begin(op, StateAwaitingReply); err != nil {
		return "", err
	}
	defer func() { l.finish(err) }()

	if err := l.send(op, cmd); err != nil {
		return "", err
	}
	return l.readLine(ctx, op)
}

// Ready performs the isready/readyok handshake, discarding any output
// emitted before readyok.
func (l *Link) Ready(ctx context.Context) (err error) {
	const op = "isready"
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.begin(op, StateAwaitingReply); err != nil {
		return err
	}
	defer func() { l.finish(err) }()

	if err := l.send(op, cmdIsReady); err != nil {
		return err
	}
	for {
		line, err := l.readLine(ctx, op)
		if err != nil {
			return err
		}
		if kind, _ := classifyLine(line); kind == lineReady {
			return nil
		}
	}
}

// Terminate stops the engine. It is idempotent, never blocks, and may be
// called while another goroutine is blocked in a request. The process is
// reaped in the background.
func (l *Link) Terminate() error {
	l.closeOnce.Do(func() {
		close(l.done)

		if l.mu.TryLock() {
			idle := l.state == StateIdle
			l.state = StateClosed
			l.mu.Unlock()
			if idle {
				// Polite shutdown; the kill below does not wait for it.
				go func() { _, _ = io.WriteString(l.stdin, cmdQuit) }()
			}
		} else {
			go func() {
				l.mu.Lock()
				l.state = StateClosed
				l.mu.Unlock()
			}()
		}

		l.closeErr = l.proc.Kill()
		go func() { _, _ = l.proc.Wait() }()
	})
	return l.closeErr
}
