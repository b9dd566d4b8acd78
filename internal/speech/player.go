package speech

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"sync"

	"interviewroom/internal/errors"
	"interviewroom/internal/types"
	"interviewroom/internal/utils"
)

// ErrSuperseded is returned by playback that was replaced by a newer request
var ErrSuperseded = stderrors.New("playback superseded by a newer request")

// slot holds the one playback that may be running. Taking the slot cancels
// whoever held it before.
type slot struct {
	mu     sync.Mutex
	cancel context.CancelCauseFunc
	gen    uint64
}

func (s *slot) take(ctx context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancelCause(ctx)

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel(ErrSuperseded)
	}
	s.cancel = cancel
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	return ctx, func() {
		s.mu.Lock()
		if s.gen == gen {
			s.cancel = nil
		}
		s.mu.Unlock()
		cancel(nil)
	}
}

func (s *slot) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel(ErrSuperseded)
		s.cancel = nil
	}
}

func superseded(ctx context.Context) bool {
	return stderrors.Is(context.Cause(ctx), ErrSuperseded)
}

// Player plays synthesized audio through an external program reading from stdin.
// There is a single playback handle: a new Play replaces the one in progress.
type Player struct {
	argv   []string
	runner Runner
	logger *errors.Logger
	slot   slot
}

// NewPlayer creates a player for argv, e.g. ffplay -nodisp -autoexit -
func NewPlayer(argv []string, runner Runner, logger *errors.Logger) *Player {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Player{argv: argv, runner: runner, logger: logger}
}

// Play blocks until audio finished playing. It returns ErrSuperseded if a
// newer Play or Stop replaced it.
func (p *Player) Play(ctx context.Context, audio *types.Audio) error {
	if len(p.argv) == 0 {
		return errors.NewConfigError(errors.ErrCodePlaybackFailed, "no audio player configured", nil)
	}
	if audio == nil || len(audio.Data) == 0 {
		return errors.NewValidationError(errors.ErrCodePlaybackFailed, "no audio to play", nil)
	}

	ctx, release := p.slot.take(ctx)
	defer release()

	p.logger.Debug("Playing synthesized audio",
		"player", p.argv[0],
		"content_type", audio.ContentType,
		"size", utils.FormatFileSize(int64(len(audio.Data))))

	err := p.runner.Run(ctx, bytes.NewReader(audio.Data), p.argv[0], p.argv[1:]...)
	if superseded(ctx) {
		return ErrSuperseded
	}
	if err != nil {
		return errors.NewDeviceError(errors.ErrCodePlaybackFailed, fmt.Sprintf("%s could not play audio", p.argv[0]), err)
	}
	return nil
}

// Stop ends the current playback, if any
func (p *Player) Stop() {
	p.slot.stop()
}
