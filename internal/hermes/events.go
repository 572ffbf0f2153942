package hermes

import "time"

// Subjects used by the service.
const (
	SubjectTranscriptSubmitted = "subtext.transcript.submitted"
	SubjectSafetyAnalyzed      = "subtext.safety.analyzed"
	SubjectSafetyHighRisk      = "subtext.safety.high_risk"
	SubjectServiceRegistered   = "subtext.service.registered"
)

// TranscriptSubmitted asks the service to parse and screen a pasted
// transcript. UserSender names the participant who is "Me".
type TranscriptSubmitted struct {
	ConversationRef string `json:"conversation_ref"`
	UserSender      string `json:"user_sender"`
	Text            string `json:"text"`
}

// SafetyAnalyzed summarizes a finished analysis. It carries no message text
// or evidence.
type SafetyAnalyzed struct {
	ConversationRef string    `json:"conversation_ref"`
	AnalysisID      string    `json:"analysis_id,omitempty"`
	Format          string    `json:"format"`
	MessageCount    int       `json:"message_count"`
	OverallRisk     string    `json:"overall_risk"`
	FlagTypes       []string  `json:"flag_types"`
	ResourcesShown  bool      `json:"resources_shown"`
	Timestamp       time.Time `json:"timestamp"`
}
