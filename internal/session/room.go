// Package session drives one turn-based voice interview against the Interview Service.
package session

import (
	"context"
	stderrors "errors"
	"fmt"
	"slices"
	"sync"

	"interviewroom/internal/errors"
	"interviewroom/internal/observability"
	"interviewroom/internal/types"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

var (
	// ErrMicrophoneUnavailable wraps per-attempt device failures; the user may retry
	ErrMicrophoneUnavailable = stderrors.New("microphone unavailable")
	// ErrTurnFailed wraps a failed answer submission; the same question stays current
	ErrTurnFailed       = stderrors.New("answer could not be submitted")
	ErrBusy             = stderrors.New("an answer is still being processed")
	ErrNotActive        = stderrors.New("session is not active")
	ErrAlreadyStarted   = stderrors.New("session already started")
	ErrAlreadyRecording = stderrors.New("already recording")
	ErrNotRecording     = stderrors.New("not recording")
)

// Service is the part of the Interview Service a session needs
type Service interface {
	StartSession(ctx context.Context, sessionID string) (*types.StartSessionResponse, error)
	SubmitAnswer(ctx context.Context, sessionID string, rec *types.Recording) (*types.SubmitAnswerResponse, error)
	Finalize(ctx context.Context, sessionID string) (*types.FinalizeResponse, error)
}

// Capturer records one answer at a time
type Capturer interface {
	Start(ctx context.Context) error
	Stop() (*types.Recording, error)
}

// Speaker reads questions aloud
type Speaker interface {
	Speak(ctx context.Context, text string) error
	SetUseLocal(useLocal bool)
	Stop()
}

// Navigator leaves the session for the report view
type Navigator interface {
	Navigate(ctx context.Context, target string) error
}

// Alerter shows a blocking message to the user
type Alerter interface {
	Alert(message string)
}

// Observer is told about every state change
type Observer interface {
	OnChange(snap types.Snapshot)
}

// Options configure a Room
type Options struct {
	TargetQuestions   int
	UseLocalSynthesis bool
	Playback          bool
	ReportRoute       func(sessionID string) string
}

// Room is the client-side state machine for one interview session:
// loading → active → loading → completed, with error reachable from any request.
type Room struct {
	id       string
	svc      Service
	capture  Capturer
	speaker  Speaker
	nav      Navigator
	alerter  Alerter
	observer Observer
	om       *observability.ObservabilityManager
	logger   *errors.Logger
	opts     Options

	playCtx    context.Context
	stopPlay   context.CancelFunc
	playbackWG sync.WaitGroup

	mu              sync.Mutex
	status          types.Status
	loadingReason   types.LoadingReason
	transcript      []types.TranscriptEntry
	currentQuestion string
	questionCount   int
	recording       bool
	processing      bool
	useLocal        bool
	started         bool
	finalizeIssued  bool
	errMessage      string
}

// Deps are a Room's collaborators. Speaker, Navigator, Alerter and Observer may be nil.
type Deps struct {
	Service  Service
	Capturer Capturer
	Speaker  Speaker
	Nav      Navigator
	Alerter  Alerter
	Observer Observer
	Obs      *observability.ObservabilityManager
}

// NewRoom creates a session in the loading state
func NewRoom(sessionID string, deps Deps, opts Options, logger *errors.Logger) *Room {
	if opts.TargetQuestions <= 0 {
		opts.TargetQuestions = 10
	}
	playCtx, stopPlay := context.WithCancel(context.Background())

	r := &Room{
		id:            sessionID,
		svc:           deps.Service,
		capture:       deps.Capturer,
		speaker:       deps.Speaker,
		nav:           deps.Nav,
		alerter:       deps.Alerter,
		observer:      deps.Observer,
		om:            deps.Obs,
		logger:        logger.With("session_id", sessionID),
		opts:          opts,
		playCtx:       playCtx,
		stopPlay:      stopPlay,
		status:        types.StatusLoading,
		loadingReason: types.LoadingBootstrapping,
		useLocal:      opts.UseLocalSynthesis,
	}
	if r.speaker != nil {
		r.speaker.SetUseLocal(opts.UseLocalSynthesis)
	}
	return r
}

// ID returns the session ID
func (r *Room) ID() string {
	return r.id
}

// Start requests the first question. Any failure moves the session to error.
func (r *Room) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return stateError(ErrAlreadyStarted)
	}
	r.started = true
	r.mu.Unlock()

	ctx, span := r.om.Tracer("interviewroom.session").Start(ctx, "session.start")
	defer span.End()

	resp, err := r.svc.StartSession(ctx, r.id)
	if err != nil {
		r.fail(ctx, span, err, "Failed to start interview session")
		r.om.RecordSessionEvent(ctx, observability.EventSessionStarted, false)
		return err
	}

	r.mu.Lock()
	r.transcript = append(r.transcript, types.TranscriptEntry{Role: types.RoleInterviewer, Text: resp.Question})
	r.currentQuestion = resp.Question
	r.questionCount = 1
	r.status = types.StatusActive
	r.loadingReason = types.LoadingNone
	r.mu.Unlock()

	r.logger.Info("Interview session started", "target_questions", r.opts.TargetQuestions)
	r.om.RecordSessionEvent(ctx, observability.EventSessionStarted, true)
	r.notify()
	r.speak(resp.Question)
	return nil
}

// StartRecording opens the microphone. A device failure alerts the user and
// leaves the session unchanged.
func (r *Room) StartRecording(ctx context.Context) error {
	r.mu.Lock()
	if err := r.recordableLocked(); err != nil {
		r.mu.Unlock()
		return err
	}

	if err := r.capture.Start(ctx); err != nil {
		r.mu.Unlock()
		r.logger.LogError(err, "Could not start recording")
		r.om.RecordSessionEvent(ctx, observability.EventMicrophoneError, false)
		if r.alerter != nil {
			r.alerter.Alert("Could not access the microphone. Check that a recording device is available and allowed, then try again.")
		}
		return fmt.Errorf("%w: %w", ErrMicrophoneUnavailable, err)
	}
	r.recording = true
	r.mu.Unlock()

	r.notify()
	return nil
}

// StopAndSubmit ends the recording and uploads it as the answer to the current
// question. A failed submission leaves the transcript and question untouched.
func (r *Room) StopAndSubmit(ctx context.Context) error {
	r.mu.Lock()
	if !r.recording {
		r.mu.Unlock()
		return stateError(ErrNotRecording)
	}
	r.recording = false
	r.processing = true
	question := r.currentQuestion
	r.mu.Unlock()
	r.notify()

	ctx, span := r.om.Tracer("interviewroom.session").Start(ctx, "session.turn",
		oteltrace.WithAttributes(attribute.Int("question_number", r.Snapshot().QuestionCount)))
	defer span.End()

	rec, err := r.capture.Stop()
	if err != nil {
		return r.turnFailed(ctx, span, err, "Recording could not be finalized")
	}

	resp, err := r.svc.SubmitAnswer(ctx, r.id, rec)
	if err != nil {
		return r.turnFailed(ctx, span, err, "Answer submission failed")
	}

	continues := resp.Continues()
	r.mu.Lock()
	r.transcript = append(r.transcript, types.TranscriptEntry{Role: types.RoleCandidate, Text: resp.AnswerTranscript})
	if continues {
		r.transcript = append(r.transcript, types.TranscriptEntry{Role: types.RoleInterviewer, Text: resp.Question})
		r.currentQuestion = resp.Question
		r.questionCount++
	} else {
		// Claim finalization in the same step so nothing can record in between
		r.beginFinalizeLocked()
	}
	r.processing = false
	count := r.questionCount
	r.mu.Unlock()

	r.om.RecordSessionEvent(ctx, observability.EventTurnSubmitted, true, attribute.Bool("continues", continues))
	span.SetAttributes(attribute.Bool("continues", continues), attribute.Int("recording_bytes", rec.Size()))
	r.logger.Info("Answer submitted",
		"answered_question", question,
		"continues", continues,
		"question_count", count)

	if !continues {
		r.notify()
		return r.finalize(ctx)
	}

	r.notify()
	r.speak(resp.Question)
	return nil
}

// Finalize asks the service for the report and navigates to it. It runs at
// most once per session; failure moves the session to error.
func (r *Room) Finalize(ctx context.Context) error {
	r.mu.Lock()
	switch {
	case r.status != types.StatusActive || r.finalizeIssued:
		r.mu.Unlock()
		return stateError(ErrNotActive)
	case r.processing:
		r.mu.Unlock()
		return stateError(ErrBusy)
	case r.recording:
		r.mu.Unlock()
		return stateError(ErrAlreadyRecording)
	}
	r.beginFinalizeLocked()
	r.mu.Unlock()
	r.notify()

	return r.finalize(ctx)
}

func (r *Room) beginFinalizeLocked() {
	r.finalizeIssued = true
	r.status = types.StatusLoading
	r.loadingReason = types.LoadingFinalizing
}

func (r *Room) finalize(ctx context.Context) error {
	if r.speaker != nil {
		r.speaker.Stop()
	}

	ctx, span := r.om.Tracer("interviewroom.session").Start(ctx, "session.finalize")
	defer span.End()

	if _, err := r.svc.Finalize(ctx, r.id); err != nil {
		r.fail(ctx, span, err, "Failed to finalize interview session")
		r.om.RecordSessionEvent(ctx, observability.EventSessionCompleted, false)
		return err
	}

	r.mu.Lock()
	r.status = types.StatusCompleted
	r.loadingReason = types.LoadingNone
	count := r.questionCount
	r.mu.Unlock()

	r.logger.Info("Interview session completed", "question_count", count)
	r.om.RecordSessionEvent(ctx, observability.EventSessionCompleted, true)
	r.notify()

	if r.nav != nil && r.opts.ReportRoute != nil {
		target := r.opts.ReportRoute(r.id)
		if err := r.nav.Navigate(ctx, target); err != nil {
			r.logger.Warn("Could not open report", "target", target, "error", err.Error())
		}
	}
	return nil
}

// SetUseLocalSynthesis switches between local and remote speech for later questions
func (r *Room) SetUseLocalSynthesis(useLocal bool) {
	if r.speaker != nil {
		r.speaker.SetUseLocal(useLocal)
	}
	r.mu.Lock()
	r.useLocal = useLocal
	r.mu.Unlock()
	r.notify()
}

// ReplayQuestion speaks the current question again
func (r *Room) ReplayQuestion() {
	r.mu.Lock()
	question := r.currentQuestion
	active := r.status == types.StatusActive
	r.mu.Unlock()

	if active && question != "" {
		r.speak(question)
	}
}

// CanRecord reports whether a new recording may start now
func (r *Room) CanRecord() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recordableLocked() == nil
}

// Snapshot returns a copy of the current state
func (r *Room) Snapshot() types.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return types.Snapshot{
		SessionID:         r.id,
		Status:            r.status,
		LoadingReason:     r.loadingReason,
		Transcript:        slices.Clone(r.transcript),
		CurrentQuestion:   r.currentQuestion,
		QuestionCount:     r.questionCount,
		TargetQuestions:   r.opts.TargetQuestions,
		Recording:         r.recording,
		Processing:        r.processing,
		UseLocalSynthesis: r.useLocal,
		ErrorMessage:      r.errMessage,
	}
}

// Close stops playback and releases the microphone if a recording is still open
func (r *Room) Close() {
	r.mu.Lock()
	recording := r.recording
	r.recording = false
	r.mu.Unlock()

	if recording {
		if _, err := r.capture.Stop(); err != nil {
			r.logger.Debug("Discarded open recording", "error", err.Error())
		}
	}
	r.stopPlay()
	if r.speaker != nil {
		r.speaker.Stop()
	}
	r.playbackWG.Wait()
}

func (r *Room) recordableLocked() error {
	switch {
	case r.status != types.StatusActive:
		return stateError(ErrNotActive)
	case r.processing:
		return stateError(ErrBusy)
	case r.recording:
		return stateError(ErrAlreadyRecording)
	}
	return nil
}

// speak plays text in the background. Playback problems never touch session state.
func (r *Room) speak(text string) {
	if r.speaker == nil || !r.opts.Playback {
		return
	}
	r.playbackWG.Add(1)
	go func() {
		defer r.playbackWG.Done()
		if err := r.speaker.Speak(r.playCtx, text); err != nil && r.playCtx.Err() == nil {
			r.logger.Debug("Question was not spoken", "error", err.Error())
		}
	}()
}

func (r *Room) turnFailed(ctx context.Context, span oteltrace.Span, err error, message string) error {
	r.mu.Lock()
	r.processing = false
	r.mu.Unlock()

	r.logger.LogError(err, message)
	r.om.RecordSessionEvent(ctx, observability.EventTurnSubmitted, false, attribute.String("error_code", errors.CodeOf(err)))
	span.RecordError(err)
	span.SetStatus(codes.Error, message)
	r.notify()
	return fmt.Errorf("%w: %w", ErrTurnFailed, err)
}

func (r *Room) fail(ctx context.Context, span oteltrace.Span, err error, message string) {
	r.mu.Lock()
	r.status = types.StatusError
	r.loadingReason = types.LoadingNone
	r.errMessage = err.Error()
	r.mu.Unlock()

	r.logger.LogError(err, message)
	span.RecordError(err)
	span.SetStatus(codes.Error, message)
	r.notify()
}

func (r *Room) notify() {
	if r.observer != nil {
		r.observer.OnChange(r.Snapshot())
	}
}

func stateError(sentinel error) error {
	return errors.NewValidationError(errors.ErrCodeInvalidSessionState, sentinel.Error(), sentinel)
}
