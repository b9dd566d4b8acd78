package speech

import (
	"context"
	stderrors "errors"
	"strconv"
	"sync"

	"interviewroom/internal/config"
	"interviewroom/internal/errors"
	"interviewroom/internal/types"
)

// Local synthesis engines
const (
	EngineAuto   = "auto"
	EngineSay    = "say"
	EngineEspeak = "espeak-ng"
	EngineNone   = "none"
)

// ErrNoLocalEngine is returned when no local synthesis engine is installed
var ErrNoLocalEngine = stderrors.New("no local speech synthesis engine available")

// LocalSynthesizer speaks text with the platform's synthesis engine
type LocalSynthesizer struct {
	engine string
	rate   int
	prefer []string
	runner Runner
	logger *errors.Logger

	voiceOnce sync.Once
	voice     *types.Voice
}

// NewLocalSynthesizer resolves the configured engine. With "auto" it picks
// say when present, then espeak-ng, else none.
func NewLocalSynthesizer(cfg config.SpeechConfig, runner Runner, logger *errors.Logger) *LocalSynthesizer {
	if runner == nil {
		runner = ExecRunner{}
	}
	engine := cfg.Engine
	if engine == "" || engine == EngineAuto {
		engine = EngineNone
		for _, candidate := range []string{EngineSay, EngineEspeak} {
			if _, err := runner.LookPath(candidate); err == nil {
				engine = candidate
				break
			}
		}
	}

	logger.Debug("Local speech engine resolved", "configured", cfg.Engine, "engine", engine)
	return &LocalSynthesizer{
		engine: engine,
		rate:   cfg.Rate,
		prefer: cfg.PreferredVoices,
		runner: runner,
		logger: logger,
	}
}

// Engine returns the resolved engine name
func (l *LocalSynthesizer) Engine() string {
	return l.engine
}

// Voices lists the voices installed for the engine
func (l *LocalSynthesizer) Voices(ctx context.Context) ([]types.Voice, error) {
	switch l.engine {
	case EngineSay:
		out, err := l.runner.Output(ctx, EngineSay, "-v", "?")
		if err != nil {
			return nil, errors.NewDeviceError(errors.ErrCodeSynthesisFailed, "failed to list voices", err)
		}
		return parseSayVoices(out), nil
	case EngineEspeak:
		out, err := l.runner.Output(ctx, EngineEspeak, "--voices")
		if err != nil {
			return nil, errors.NewDeviceError(errors.ErrCodeSynthesisFailed, "failed to list voices", err)
		}
		return parseEspeakVoices(out), nil
	default:
		return nil, ErrNoLocalEngine
	}
}

// Voice returns the voice chosen from the preference list, or nil for the
// engine default. The choice is made once.
func (l *LocalSynthesizer) Voice(ctx context.Context) *types.Voice {
	l.voiceOnce.Do(func() {
		voices, err := l.Voices(ctx)
		if err != nil {
			l.logger.Debug("Using default voice", "reason", err.Error())
			return
		}
		l.voice = SelectVoice(voices, l.prefer)
		if l.voice != nil {
			l.logger.Debug("Selected local voice", "voice", l.voice.Name, "language", l.voice.Language)
		}
	})
	return l.voice
}

// Speak blocks until text has been spoken
func (l *LocalSynthesizer) Speak(ctx context.Context, text string) error {
	if l.engine == EngineNone {
		return ErrNoLocalEngine
	}

	args := l.args(l.Voice(ctx), text)
	if err := l.runner.Run(ctx, nil, l.engine, args...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errors.NewDeviceError(errors.ErrCodeSynthesisFailed, "local speech synthesis failed", err).
			WithContext("engine", l.engine)
	}
	return nil
}

func (l *LocalSynthesizer) args(voice *types.Voice, text string) []string {
	var args []string
	switch l.engine {
	case EngineSay:
		if voice != nil {
			args = append(args, "-v", voice.Name)
		}
		if l.rate > 0 {
			args = append(args, "-r", strconv.Itoa(l.rate))
		}
	case EngineEspeak:
		if voice != nil {
			args = append(args, "-v", voice.Language)
		}
		if l.rate > 0 {
			args = append(args, "-s", strconv.Itoa(l.rate))
		}
	}
	// "--" keeps questions that start with a dash from being read as flags
	return append(args, "--", text)
}
