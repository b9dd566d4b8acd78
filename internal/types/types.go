package types

import "time"

// Status is the client-local view of the server-side session state
type Status string

const (
	StatusLoading   Status = "loading"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

// LoadingReason tells apart the two uses of StatusLoading
type LoadingReason string

const (
	LoadingNone          LoadingReason = ""
	LoadingBootstrapping LoadingReason = "bootstrapping"
	LoadingFinalizing    LoadingReason = "finalizing"
)

// Role identifies who spoke a transcript line
type Role string

const (
	RoleInterviewer Role = "interviewer"
	RoleCandidate   Role = "candidate"
)

// TranscriptEntry is one utterance in the interview transcript
type TranscriptEntry struct {
	Role Role   `json:"role" yaml:"role"`
	Text string `json:"text" yaml:"text"`
}

// Recording is the single blob produced by one capture
type Recording struct {
	Data     []byte
	MIMEType string
	Duration time.Duration
}

// Size returns the recording size in bytes
func (r *Recording) Size() int {
	if r == nil {
		return 0
	}
	return len(r.Data)
}

// Snapshot is a read-only view of a session at a point in time
type Snapshot struct {
	SessionID         string            `json:"sessionId" yaml:"sessionId"`
	Status            Status            `json:"status" yaml:"status"`
	LoadingReason     LoadingReason     `json:"loadingReason,omitempty" yaml:"loadingReason,omitempty"`
	Transcript        []TranscriptEntry `json:"transcript" yaml:"transcript"`
	CurrentQuestion   string            `json:"currentQuestion,omitempty" yaml:"currentQuestion,omitempty"`
	QuestionCount     int               `json:"questionCount" yaml:"questionCount"`
	TargetQuestions   int               `json:"targetQuestions" yaml:"targetQuestions"`
	Recording         bool              `json:"recording" yaml:"recording"`
	Processing        bool              `json:"processing" yaml:"processing"`
	UseLocalSynthesis bool              `json:"useLocalSynthesis" yaml:"useLocalSynthesis"`
	ErrorMessage      string            `json:"errorMessage,omitempty" yaml:"errorMessage,omitempty"`
}

// StartSessionRequest is the body of the start session call
type StartSessionRequest struct {
	SessionID string `json:"sessionId"`
}

// StartSessionResponse is returned by the start session call
type StartSessionResponse struct {
	Success  bool   `json:"success"`
	Question string `json:"question"`
	Message  string `json:"message,omitempty"`
}

// SubmitAnswerResponse is returned by the submit answer call.
// Status is "active" while the interview continues; any other value means the interview is done.
type SubmitAnswerResponse struct {
	Success          bool   `json:"success"`
	Status           string `json:"status"`
	AnswerTranscript string `json:"answerTranscript"`
	Question         string `json:"question,omitempty"`
	Message          string `json:"message,omitempty"`
}

// Continues reports whether the service asked another question
func (r *SubmitAnswerResponse) Continues() bool {
	return r.Status == string(StatusActive)
}

// SynthesizeRequest is the body of the text-to-speech call
type SynthesizeRequest struct {
	Text string `json:"text"`
}

// FinalizeRequest is the body of the finalize call
type FinalizeRequest struct {
	SessionID string `json:"sessionId"`
}

// FinalizeResponse is returned by the finalize call
type FinalizeResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// Audio is a synthesized speech resource
type Audio struct {
	Data        []byte
	ContentType string
}

// TranscriptExport is what gets written when a transcript is exported
type TranscriptExport struct {
	SessionID       string            `json:"sessionId" yaml:"sessionId"`
	Status          Status            `json:"status" yaml:"status"`
	QuestionCount   int               `json:"questionCount" yaml:"questionCount"`
	TargetQuestions int               `json:"targetQuestions" yaml:"targetQuestions"`
	ReportURL       string            `json:"reportUrl,omitempty" yaml:"reportUrl,omitempty"`
	ExportedAt      time.Time         `json:"exportedAt" yaml:"exportedAt"`
	Transcript      []TranscriptEntry `json:"transcript" yaml:"transcript"`
}

// Voice describes a locally installed synthesis voice
type Voice struct {
	Name     string `json:"name" yaml:"name"`
	Language string `json:"language,omitempty" yaml:"language,omitempty"`
	Sample   string `json:"sample,omitempty" yaml:"sample,omitempty"`
}

// SessionRecord is a finished practice session kept in the local history
type SessionRecord struct {
	ID              int64             `json:"id" yaml:"id"`
	SessionID       string            `json:"sessionId" yaml:"sessionId"`
	Status          Status            `json:"status" yaml:"status"`
	QuestionCount   int               `json:"questionCount" yaml:"questionCount"`
	TargetQuestions int               `json:"targetQuestions" yaml:"targetQuestions"`
	ReportURL       string            `json:"reportUrl,omitempty" yaml:"reportUrl,omitempty"`
	StartedAt       time.Time         `json:"startedAt" yaml:"startedAt"`
	EndedAt         time.Time         `json:"endedAt" yaml:"endedAt"`
	Transcript      []TranscriptEntry `json:"transcript,omitempty" yaml:"transcript,omitempty"`
}

// Export converts the record to the transcript export shape
func (r *SessionRecord) Export() TranscriptExport {
	return TranscriptExport{
		SessionID:       r.SessionID,
		Status:          r.Status,
		QuestionCount:   r.QuestionCount,
		TargetQuestions: r.TargetQuestions,
		ReportURL:       r.ReportURL,
		ExportedAt:      time.Now().UTC(),
		Transcript:      r.Transcript,
	}
}
