package formatters

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"interviewroom/internal/types"

	"gopkg.in/yaml.v3"
)

// Formatter interface for different output formats
type Formatter interface {
	Format(data any) (string, error)
	SupportedType() string
}

// FormatterRegistry manages all available formatters
type FormatterRegistry struct {
	formatters map[string]map[string]Formatter // format -> type -> formatter
}

// GlobalRegistry is the registry used by the CLI
var GlobalRegistry = NewFormatterRegistry()

// NewFormatterRegistry creates a new formatter registry with default formatters
func NewFormatterRegistry() *FormatterRegistry {
	registry := &FormatterRegistry{
		formatters: make(map[string]map[string]Formatter),
	}

	// Register default formatters
	registry.RegisterFormatter("json", "any", &JSONFormatter{})
	registry.RegisterFormatter("yaml", "any", &YAMLFormatter{})
	registry.RegisterFormatter("text", "TranscriptExport", &TranscriptTextFormatter{})
	registry.RegisterFormatter("markdown", "TranscriptExport", &TranscriptMarkdownFormatter{})
	registry.RegisterFormatter("text", "VoiceList", &VoiceListTextFormatter{})
	registry.RegisterFormatter("markdown", "VoiceList", &VoiceListMarkdownFormatter{})
	registry.RegisterFormatter("text", "SessionHistory", &HistoryTextFormatter{})
	registry.RegisterFormatter("markdown", "SessionHistory", &HistoryMarkdownFormatter{})

	return registry
}

// RegisterFormatter registers a new formatter for a specific format and data type
func (fr *FormatterRegistry) RegisterFormatter(format, dataType string, formatter Formatter) {
	if fr.formatters[format] == nil {
		fr.formatters[format] = make(map[string]Formatter)
	}
	fr.formatters[format][dataType] = formatter
}

// Format formats data using the appropriate formatter
func (fr *FormatterRegistry) Format(data any, format string) (string, error) {
	dataType := getDataType(data)

	// Try specific formatter first
	if formatters, exists := fr.formatters[format]; exists {
		if formatter, exists := formatters[dataType]; exists {
			return formatter.Format(data)
		}
		// Fall back to generic formatter
		if formatter, exists := formatters["any"]; exists {
			return formatter.Format(data)
		}
	}

	return "", fmt.Errorf("no formatter found for format '%s' and type '%s'", format, dataType)
}

// GetSupportedFormats returns all supported formats, sorted
func (fr *FormatterRegistry) GetSupportedFormats() []string {
	formats := make([]string, 0, len(fr.formatters))
	for format := range fr.formatters {
		formats = append(formats, format)
	}
	slices.Sort(formats)
	return formats
}

// VoiceList is the result of listing local voices
type VoiceList struct {
	Engine   string        `json:"engine" yaml:"engine"`
	Selected string        `json:"selected,omitempty" yaml:"selected,omitempty"`
	Voices   []types.Voice `json:"voices" yaml:"voices"`
}

// SessionHistory is a page of past practice sessions
type SessionHistory struct {
	Records []types.SessionRecord `json:"sessions" yaml:"sessions"`
}

func getDataType(data any) string {
	switch data.(type) {
	case types.TranscriptExport, *types.TranscriptExport:
		return "TranscriptExport"
	case VoiceList:
		return "VoiceList"
	case SessionHistory:
		return "SessionHistory"
	default:
		return "any"
	}
}

// JSONFormatter handles JSON formatting for any data type
type JSONFormatter struct{}

func (jf *JSONFormatter) Format(data any) (string, error) {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", err
	}
	return string(jsonData) + "\n", nil
}

func (jf *JSONFormatter) SupportedType() string {
	return "any"
}

// YAMLFormatter handles YAML formatting for any data type
type YAMLFormatter struct{}

func (yf *YAMLFormatter) Format(data any) (string, error) {
	var buf strings.Builder
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(data); err != nil {
		return "", err
	}
	if err := encoder.Close(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (yf *YAMLFormatter) SupportedType() string {
	return "any"
}

func asTranscript(data any) (types.TranscriptExport, error) {
	switch v := data.(type) {
	case types.TranscriptExport:
		return v, nil
	case *types.TranscriptExport:
		if v != nil {
			return *v, nil
		}
	}
	return types.TranscriptExport{}, fmt.Errorf("expected TranscriptExport, got %T", data)
}

// TranscriptTextFormatter handles text formatting for interview transcripts
type TranscriptTextFormatter struct{}

func (ttf *TranscriptTextFormatter) Format(data any) (string, error) {
	result, err := asTranscript(data)
	if err != nil {
		return "", err
	}

	var output strings.Builder

	output.WriteString("=== INTERVIEW TRANSCRIPT ===\n\n")
	output.WriteString(fmt.Sprintf("Session: %s\n", result.SessionID))
	output.WriteString(fmt.Sprintf("Status: %s\n", result.Status))
	output.WriteString(fmt.Sprintf("Questions: %d of %d\n", result.QuestionCount, result.TargetQuestions))
	if result.ReportURL != "" {
		output.WriteString(fmt.Sprintf("Report: %s\n", result.ReportURL))
	}
	output.WriteString(fmt.Sprintf("Exported: %s\n\n", result.ExportedAt.Format(time.RFC3339)))

	if len(result.Transcript) == 0 {
		output.WriteString("No questions were asked.\n")
		return output.String(), nil
	}

	question := 0
	for _, entry := range result.Transcript {
		if entry.Role == types.RoleInterviewer {
			question++
			output.WriteString(fmt.Sprintf("Q%d. %s\n", question, entry.Text))
			continue
		}
		output.WriteString(fmt.Sprintf("    Answer: %s\n\n", entry.Text))
	}

	return output.String(), nil
}

func (ttf *TranscriptTextFormatter) SupportedType() string {
	return "TranscriptExport"
}

// TranscriptMarkdownFormatter handles markdown formatting for interview transcripts
type TranscriptMarkdownFormatter struct{}

func (tmf *TranscriptMarkdownFormatter) Format(data any) (string, error) {
	result, err := asTranscript(data)
	if err != nil {
		return "", err
	}

	var output strings.Builder

	output.WriteString("# Interview Transcript\n\n")
	output.WriteString(fmt.Sprintf("- **Session:** %s\n", result.SessionID))
	output.WriteString(fmt.Sprintf("- **Status:** %s\n", result.Status))
	output.WriteString(fmt.Sprintf("- **Questions:** %d of %d\n", result.QuestionCount, result.TargetQuestions))
	if result.ReportURL != "" {
		output.WriteString(fmt.Sprintf("- **Report:** [%s](%s)\n", result.ReportURL, result.ReportURL))
	}
	output.WriteString("\n")

	question := 0
	for _, entry := range result.Transcript {
		if entry.Role == types.RoleInterviewer {
			question++
			output.WriteString(fmt.Sprintf("## Question %d\n\n", question))
			output.WriteString(fmt.Sprintf("**Interviewer:** %s\n\n", entry.Text))
			continue
		}
		output.WriteString(fmt.Sprintf("**You:** %s\n\n", entry.Text))
	}

	return output.String(), nil
}

func (tmf *TranscriptMarkdownFormatter) SupportedType() string {
	return "TranscriptExport"
}

// VoiceListTextFormatter lists voices one per line
type VoiceListTextFormatter struct{}

func (vf *VoiceListTextFormatter) Format(data any) (string, error) {
	result, ok := data.(VoiceList)
	if !ok {
		return "", fmt.Errorf("expected VoiceList, got %T", data)
	}

	var output strings.Builder
	output.WriteString(fmt.Sprintf("Engine: %s\n", result.Engine))
	if result.Selected != "" {
		output.WriteString(fmt.Sprintf("Selected voice: %s\n", result.Selected))
	} else {
		output.WriteString("Selected voice: (engine default)\n")
	}
	output.WriteString(fmt.Sprintf("\n%d voices available:\n", len(result.Voices)))
	for _, v := range result.Voices {
		marker := " "
		if v.Name == result.Selected {
			marker = "*"
		}
		output.WriteString(fmt.Sprintf("%s %-24s %s\n", marker, v.Name, v.Language))
	}
	return output.String(), nil
}

func (vf *VoiceListTextFormatter) SupportedType() string {
	return "VoiceList"
}

// VoiceListMarkdownFormatter renders voices as a table
type VoiceListMarkdownFormatter struct{}

func (vf *VoiceListMarkdownFormatter) Format(data any) (string, error) {
	result, ok := data.(VoiceList)
	if !ok {
		return "", fmt.Errorf("expected VoiceList, got %T", data)
	}

	var output strings.Builder
	output.WriteString(fmt.Sprintf("# Voices (%s)\n\n", result.Engine))
	output.WriteString("| Voice | Language | Selected |\n|---|---|---|\n")
	for _, v := range result.Voices {
		selected := ""
		if v.Name == result.Selected {
			selected = "yes"
		}
		output.WriteString(fmt.Sprintf("| %s | %s | %s |\n", v.Name, v.Language, selected))
	}
	return output.String(), nil
}

func (vf *VoiceListMarkdownFormatter) SupportedType() string {
	return "VoiceList"
}

// HistoryTextFormatter prints one line per past session
type HistoryTextFormatter struct{}

func (hf *HistoryTextFormatter) Format(data any) (string, error) {
	result, ok := data.(SessionHistory)
	if !ok {
		return "", fmt.Errorf("expected SessionHistory, got %T", data)
	}
	if len(result.Records) == 0 {
		return "No practice sessions recorded yet.\n", nil
	}

	var output strings.Builder
	output.WriteString(fmt.Sprintf("%-20s %-24s %-10s %s\n", "ENDED", "SESSION", "STATUS", "QUESTIONS"))
	for _, rec := range result.Records {
		output.WriteString(fmt.Sprintf("%-20s %-24s %-10s %d/%d\n",
			rec.EndedAt.Local().Format("2006-01-02 15:04"), rec.SessionID, rec.Status,
			rec.QuestionCount, rec.TargetQuestions))
	}
	return output.String(), nil
}

func (hf *HistoryTextFormatter) SupportedType() string {
	return "SessionHistory"
}

// HistoryMarkdownFormatter renders past sessions as a table
type HistoryMarkdownFormatter struct{}

func (hf *HistoryMarkdownFormatter) Format(data any) (string, error) {
	result, ok := data.(SessionHistory)
	if !ok {
		return "", fmt.Errorf("expected SessionHistory, got %T", data)
	}

	var output strings.Builder
	output.WriteString("# Practice History\n\n")
	output.WriteString("| Ended | Session | Status | Questions | Report |\n|---|---|---|---|---|\n")
	for _, rec := range result.Records {
		report := ""
		if rec.ReportURL != "" {
			report = fmt.Sprintf("[report](%s)", rec.ReportURL)
		}
		output.WriteString(fmt.Sprintf("| %s | %s | %s | %d/%d | %s |\n",
			rec.EndedAt.UTC().Format(time.RFC3339), rec.SessionID, rec.Status,
			rec.QuestionCount, rec.TargetQuestions, report))
	}
	return output.String(), nil
}

func (hf *HistoryMarkdownFormatter) SupportedType() string {
	return "SessionHistory"
}
