package api

import (
	"errors"
	"net/http"

	"github.com/MikeSquared-Agency/subtext/internal/transcript"
)

type transcriptRequest struct {
	Text string `json:"text"`
}

// userMessages maps parser error kinds to the text shown to people.
var userMessages = map[transcript.ErrorKind]string{
	transcript.KindEmptyText:       "Please paste some text to parse",
	transcript.KindNoMessagesFound: "No messages could be extracted from the text",
}

// detectFormat handles POST /api/v1/transcripts/detect
func (s *Server) detectFormat(w http.ResponseWriter, r *http.Request) {
	var req transcriptRequest
	if !decodeBody(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"format": string(transcript.DetectFormat(req.Text)),
	})
}

// parseTranscript handles POST /api/v1/transcripts/parse
func (s *Server) parseTranscript(w http.ResponseWriter, r *http.Request) {
	var req transcriptRequest
	if !decodeBody(w, r, &req) {
		return
	}

	parsed, err := transcript.Parse(req.Text)
	if err != nil {
		var perr *transcript.Error
		if errors.As(err, &perr) {
			s.deps.Metrics.ObserveParse(string(transcript.DetectFormat(req.Text)), perr.Kind.String())
			writeError(w, http.StatusUnprocessableEntity, perr.Kind.String(), userMessages[perr.Kind])
			return
		}
		writeError(w, http.StatusInternalServerError, "parse_failed", err.Error())
		return
	}

	s.deps.Metrics.ObserveParse(string(parsed.Format), "ok")
	writeJSON(w, http.StatusOK, parsed)
}
