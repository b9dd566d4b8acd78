// Package console is the terminal front end for an interview session.
package console

import (
	"fmt"
	"io"
	"strings"

	"interviewroom/internal/types"
)

// Renderer draws session snapshots as plain text
type Renderer struct {
	w io.Writer
}

// NewRenderer creates a renderer writing to w
func NewRenderer(w io.Writer) *Renderer {
	return &Renderer{w: w}
}

// Render draws the view for snap
func (r *Renderer) Render(snap types.Snapshot) {
	var out strings.Builder

	switch snap.Status {
	case types.StatusLoading:
		renderLoading(&out, snap)
	case types.StatusError:
		renderError(&out, snap)
	case types.StatusCompleted:
		out.WriteString("\n=== INTERVIEW COMPLETE ===\n")
		fmt.Fprintf(&out, "Questions answered: %d\n", snap.QuestionCount)
	default:
		renderActive(&out, snap)
	}

	_, _ = io.WriteString(r.w, out.String())
}

// Transcript draws the whole transcript
func (r *Renderer) Transcript(snap types.Snapshot) {
	var out strings.Builder
	out.WriteString("\n=== TRANSCRIPT ===\n")
	writeTranscript(&out, snap.Transcript)
	_, _ = io.WriteString(r.w, out.String())
}

// Help lists the commands
func (r *Renderer) Help() {
	_, _ = io.WriteString(r.w, `Commands:
  <Enter>  start recording, or stop and submit the answer
  r        repeat the question
  v        switch between service and local voice
  t        show the transcript
  f        finish the interview now
  q        quit
`)
}

// Notice prints a one-line message
func (r *Renderer) Notice(format string, args ...any) {
	_, _ = fmt.Fprintf(r.w, format+"\n", args...)
}

func renderLoading(out *strings.Builder, snap types.Snapshot) {
	if snap.LoadingReason == types.LoadingFinalizing {
		out.WriteString("\nGenerating your interview report...\n")
		return
	}
	fmt.Fprintf(out, "\nPreparing interview session %s...\n", snap.SessionID)
}

func renderError(out *strings.Builder, snap types.Snapshot) {
	out.WriteString("\n=== SESSION ERROR ===\n")
	out.WriteString("The interview session could not continue.\n")
	if snap.ErrorMessage != "" {
		fmt.Fprintf(out, "Reason: %s\n", snap.ErrorMessage)
	}
	out.WriteString("Type 'retry' to reload the session or 'q' to quit.\n")
}

func renderActive(out *strings.Builder, snap types.Snapshot) {
	switch {
	case snap.Recording:
		out.WriteString("● Recording... press Enter to stop and submit.\n")
		return
	case snap.Processing:
		out.WriteString("Processing your answer...\n")
		return
	}

	voice := "service voice"
	if snap.UseLocalSynthesis {
		voice = "local voice"
	}
	fmt.Fprintf(out, "\n--- Question %d of %d (%s) ---\n", snap.QuestionCount, snap.TargetQuestions, voice)
	fmt.Fprintf(out, "Interviewer: %s\n", snap.CurrentQuestion)
	out.WriteString("Press Enter to record your answer (h for help).\n")
}

func writeTranscript(out *strings.Builder, transcript []types.TranscriptEntry) {
	if len(transcript) == 0 {
		out.WriteString("(empty)\n")
		return
	}
	for _, entry := range transcript {
		fmt.Fprintf(out, "%s: %s\n", speakerLabel(entry.Role), entry.Text)
	}
}

func speakerLabel(role types.Role) string {
	if role == types.RoleCandidate {
		return "You"
	}
	return "Interviewer"
}
