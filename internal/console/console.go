package console

import (
	"bufio"
	"context"
	stderrors "errors"
	"io"
	"strings"

	"interviewroom/internal/errors"
	"interviewroom/internal/session"
	"interviewroom/internal/types"
)

// Room is the session the console drives
type Room interface {
	Start(ctx context.Context) error
	StartRecording(ctx context.Context) error
	StopAndSubmit(ctx context.Context) error
	Finalize(ctx context.Context) error
	SetUseLocalSynthesis(useLocal bool)
	ReplayQuestion()
	Snapshot() types.Snapshot
	Close()
}

// Console reads commands from the terminal and renders session state.
// It is the session's Observer and Alerter.
type Console struct {
	renderer *Renderer
	lines    chan string
	logger   *errors.Logger
}

// New creates a console reading lines from in and drawing to out
func New(in io.Reader, out io.Writer, logger *errors.Logger) *Console {
	c := &Console{
		renderer: NewRenderer(out),
		lines:    make(chan string, 8),
		logger:   logger,
	}
	go c.read(in)
	return c
}

// OnChange renders every state change
func (c *Console) OnChange(snap types.Snapshot) {
	c.renderer.Render(snap)
}

// Alert shows message and blocks until the user presses Enter
func (c *Console) Alert(message string) {
	c.renderer.Notice("\n[!] %s\nPress Enter to continue.", message)
	<-c.lines
}

// Run drives sessions created by newRoom until one completes or the user quits.
// After a session-fatal error the user may reload, which starts a fresh room.
// The last snapshot is returned either way.
func (c *Console) Run(ctx context.Context, newRoom func() Room) (types.Snapshot, error) {
	for {
		room := newRoom()
		snap, retry, err := c.runRoom(ctx, room)
		room.Close()
		if !retry {
			return snap, err
		}
		c.logger.Info("Reloading interview session", "session_id", snap.SessionID)
	}
}

func (c *Console) runRoom(ctx context.Context, room Room) (types.Snapshot, bool, error) {
	c.renderer.Render(room.Snapshot())

	if err := room.Start(ctx); err != nil {
		retry, werr := c.waitRetry(ctx)
		return room.Snapshot(), retry, werr
	}

	for {
		line, ok := c.next(ctx)
		if !ok {
			return room.Snapshot(), false, ctx.Err()
		}

		switch strings.ToLower(strings.TrimSpace(line)) {
		case "":
			c.toggleRecording(ctx, room)
		case "r":
			room.ReplayQuestion()
		case "v":
			room.SetUseLocalSynthesis(!room.Snapshot().UseLocalSynthesis)
		case "t":
			c.renderer.Transcript(room.Snapshot())
		case "f":
			if err := room.Finalize(ctx); err != nil && !isSessionFatal(room) {
				c.renderer.Notice("Cannot finish now: %s", err.Error())
			}
		case "h", "help", "?":
			c.renderer.Help()
		case "q", "quit", "exit":
			return room.Snapshot(), false, nil
		default:
			c.renderer.Notice("Unknown command %q (h for help)", line)
		}

		switch snap := room.Snapshot(); snap.Status {
		case types.StatusCompleted:
			return snap, false, nil
		case types.StatusError:
			retry, err := c.waitRetry(ctx)
			return room.Snapshot(), retry, err
		}
	}
}

func (c *Console) toggleRecording(ctx context.Context, room Room) {
	if !room.Snapshot().Recording {
		err := room.StartRecording(ctx)
		switch {
		case err == nil, stderrors.Is(err, session.ErrMicrophoneUnavailable):
			// the alert was already shown
		default:
			c.renderer.Notice("Cannot record now: %s", err.Error())
		}
		return
	}

	err := room.StopAndSubmit(ctx)
	if stderrors.Is(err, session.ErrTurnFailed) {
		c.logger.Debug("Turn failed", "error", err.Error())
		c.renderer.Notice("Your answer could not be processed. Press Enter to record it again.")
		c.renderer.Render(room.Snapshot())
	}
}

// waitRetry blocks on the error view until the user asks to reload or quit
func (c *Console) waitRetry(ctx context.Context) (bool, error) {
	for {
		line, ok := c.next(ctx)
		if !ok {
			return false, ctx.Err()
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "retry", "reload":
			return true, nil
		case "q", "quit", "exit":
			return false, nil
		default:
			c.renderer.Notice("Type 'retry' to reload the session or 'q' to quit.")
		}
	}
}

// next returns the next input line. It reports false on end of input or cancellation.
func (c *Console) next(ctx context.Context) (string, bool) {
	select {
	case line, ok := <-c.lines:
		return line, ok
	case <-ctx.Done():
		return "", false
	}
}

func (c *Console) read(in io.Reader) {
	defer close(c.lines)
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		c.lines <- scanner.Text()
	}
	if err := scanner.Err(); err != nil {
		c.logger.Warn("Stopped reading input", "error", err.Error())
	}
}

func isSessionFatal(room Room) bool {
	return room.Snapshot().Status == types.StatusError
}
