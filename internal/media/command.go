package media

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"
)

// stopGrace is how long a recorder gets to flush after SIGINT before it is killed
const stopGrace = 2 * time.Second

// CommandDevice records by running an external recorder that writes audio to stdout,
// for example arecord or sox's rec. The recorder process is the stream's only track.
type CommandDevice struct {
	Argv      []string
	MIME      string
	ChunkSize int
}

// NewCommandDevice creates a device for the recorder argv
func NewCommandDevice(argv []string, mimeType string, chunkSize int) *CommandDevice {
	if chunkSize <= 0 {
		chunkSize = 32 * 1024
	}
	return &CommandDevice{Argv: argv, MIME: mimeType, ChunkSize: chunkSize}
}

// Name returns the recorder program name
func (d *CommandDevice) Name() string {
	if len(d.Argv) == 0 {
		return "recorder"
	}
	return d.Argv[0]
}

// Open starts the recorder. The process outlives ctx; it ends when its track is stopped.
func (d *CommandDevice) Open(ctx context.Context) (Stream, error) {
	if len(d.Argv) == 0 {
		return nil, fmt.Errorf("no recorder command configured")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := exec.LookPath(d.Argv[0])
	if err != nil {
		return nil, fmt.Errorf("recorder %q not found: %w", d.Argv[0], err)
	}

	cmd := exec.Command(path, d.Argv[1:]...) // #nosec G204 -- recorder argv comes from configuration
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	var stderr strings.Builder
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start recorder: %w", err)
	}

	s := &commandStream{
		chunks: make(chan []byte, 16),
		mime:   d.MIME,
		exited: make(chan struct{}),
	}
	s.track = &processTrack{cmd: cmd, exited: s.exited}

	go s.pump(stdout, d.ChunkSize, cmd, &stderr)
	return s, nil
}

type commandStream struct {
	chunks chan []byte
	mime   string
	track  *processTrack
	exited chan struct{}

	mu  sync.Mutex
	err error
}

func (s *commandStream) Chunks() <-chan []byte { return s.chunks }
func (s *commandStream) Tracks() []Track       { return []Track{s.track} }
func (s *commandStream) MIMEType() string      { return s.mime }

func (s *commandStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *commandStream) pump(r io.Reader, chunkSize int, cmd *exec.Cmd, stderr *strings.Builder) {
	defer close(s.chunks)

	for {
		buf := make([]byte, chunkSize)
		n, err := r.Read(buf)
		if n > 0 {
			s.chunks <- buf[:n]
		}
		if err != nil {
			if !stderrors.Is(err, io.EOF) && !stderrors.Is(err, os.ErrClosed) {
				s.setErr(fmt.Errorf("reading recorder output: %w", err))
			}
			break
		}
	}

	waitErr := cmd.Wait()
	close(s.exited)
	// Exit caused by our own signal is the normal way a recording ends
	if waitErr != nil && !s.track.stopped() {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			waitErr = fmt.Errorf("%w: %s", waitErr, msg)
		}
		s.setErr(fmt.Errorf("recorder exited: %w", waitErr))
	}
}

func (s *commandStream) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

type processTrack struct {
	cmd    *exec.Cmd
	exited chan struct{}

	mu   sync.Mutex
	stop bool
}

func (t *processTrack) ID() string {
	return fmt.Sprintf("%s[%d]", t.cmd.Path, t.cmd.Process.Pid)
}

// Stop interrupts the recorder so it can finalize its output, then kills it if it lingers
func (t *processTrack) Stop() error {
	t.mu.Lock()
	t.stop = true
	t.mu.Unlock()

	select {
	case <-t.exited:
		return nil
	default:
	}

	if err := t.cmd.Process.Signal(syscall.SIGINT); err != nil && !stderrors.Is(err, os.ErrProcessDone) {
		return t.cmd.Process.Kill()
	}

	go func() {
		select {
		case <-t.exited:
		case <-time.After(stopGrace):
			_ = t.cmd.Process.Kill()
		}
	}()
	return nil
}

func (t *processTrack) stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stop
}
