package speech

import (
	"context"
	stderrors "errors"
	"sync/atomic"

	"interviewroom/internal/errors"
	"interviewroom/internal/observability"
	"interviewroom/internal/types"

	"go.opentelemetry.io/otel/attribute"
)

// Synthesizer turns text into audio remotely
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (*types.Audio, error)
}

// LocalSpeaker speaks text on this machine
type LocalSpeaker interface {
	Speak(ctx context.Context, text string) error
}

// AudioPlayer plays one audio resource at a time
type AudioPlayer interface {
	Play(ctx context.Context, audio *types.Audio) error
	Stop()
}

// Adapter speaks questions with remote or local synthesis. Remote failures
// fall back to local synthesis of the same text. A new Speak supersedes the
// one in progress.
type Adapter struct {
	remote Synthesizer
	player AudioPlayer
	local  LocalSpeaker
	om     *observability.ObservabilityManager
	logger *errors.Logger

	useLocal atomic.Bool
	slot     slot
}

// NewAdapter creates a playback adapter. remote and player may be nil, in
// which case every request is spoken locally.
func NewAdapter(remote Synthesizer, player AudioPlayer, local LocalSpeaker, om *observability.ObservabilityManager, logger *errors.Logger) *Adapter {
	return &Adapter{remote: remote, player: player, local: local, om: om, logger: logger}
}

// SetUseLocal selects local synthesis when true
func (a *Adapter) SetUseLocal(useLocal bool) {
	a.useLocal.Store(useLocal)
}

// UseLocal reports whether local synthesis is selected
func (a *Adapter) UseLocal() bool {
	return a.useLocal.Load()
}

// Speak blocks until text was spoken or superseded. A superseded request returns nil.
func (a *Adapter) Speak(ctx context.Context, text string) error {
	ctx, release := a.slot.take(ctx)
	defer release()

	if a.useLocal.Load() || a.remote == nil || a.player == nil {
		return a.speakLocal(ctx, text)
	}

	err := a.speakRemote(ctx, text)
	if err == nil || superseded(ctx) || stderrors.Is(err, ErrSuperseded) {
		return nil
	}

	a.logger.Warn("Remote speech failed, falling back to local synthesis",
		"error_code", errors.CodeOf(err),
		"error", err.Error())
	a.om.RecordSessionEvent(ctx, observability.EventSpeechFallback, true,
		attribute.String("error_code", errors.CodeOf(err)))

	return a.speakLocal(ctx, text)
}

// Stop silences any playback in progress
func (a *Adapter) Stop() {
	a.slot.stop()
	if a.player != nil {
		a.player.Stop()
	}
}

func (a *Adapter) speakRemote(ctx context.Context, text string) error {
	audio, err := a.remote.Synthesize(ctx, text)
	if err != nil {
		return err
	}
	return a.player.Play(ctx, audio)
}

func (a *Adapter) speakLocal(ctx context.Context, text string) error {
	if a.local == nil {
		return ErrNoLocalEngine
	}
	err := a.local.Speak(ctx, text)
	if superseded(ctx) {
		return nil
	}
	return err
}
