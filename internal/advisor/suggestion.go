package advisor

import (
	"encoding/json"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	dateLayout = "2006-01-02"

	HorizonDays         = 14
	NotConfiguredOffset = 3
	FallbackOffset      = 7
	MaxReasoningChars   = 140
)

type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

func (c Confidence) Valid() bool {
	switch c {
	case ConfidenceLow, ConfidenceMedium, ConfidenceHigh:
		return true
	}
	return false
}

type Suggestion struct {
	DueDate    string     `json:"due_date"`
	Confidence Confidence `json:"confidence"`
	Reasoning  string     `json:"reasoning"`
}

// FallbackReason says why the model's answer was not used. Empty means it was.
type FallbackReason string

const (
	ReasonNone           FallbackReason = ""
	ReasonNotConfigured  FallbackReason = "not_configured"
	ReasonCircuitOpen    FallbackReason = "circuit_open"
	ReasonUpstreamError  FallbackReason = "upstream_error"
	ReasonMalformedReply FallbackReason = "malformed_reply"
	ReasonInvalidDate    FallbackReason = "invalid_date"
	ReasonPastDate       FallbackReason = "past_date"
)

var fallbackReasoning = map[FallbackReason]string{
	ReasonNotConfigured:  "AI suggestions are not configured; fallback (+3 days).",
	ReasonCircuitOpen:    "AI service temporarily unavailable; fallback to +7 days.",
	ReasonUpstreamError:  "AI call failed; fallback to +7 days.",
	ReasonMalformedReply: "AI output was not valid JSON; fallback to +7 days.",
	ReasonInvalidDate:    "AI output invalid date; fallback to +7 days.",
	ReasonPastDate:       "AI proposed a date in the past; fallback to +7 days.",
}

// Result always carries a usable Suggestion. Fallback and Clamped record how it was produced.
type Result struct {
	Suggestion Suggestion
	Fallback   FallbackReason
	Clamped    bool
	Cached     bool
}

func (r Result) IsFallback() bool {
	return r.Fallback != ReasonNone
}

// Outcome is a short label for metrics and logs.
func (r Result) Outcome() string {
	switch {
	case r.IsFallback():
		return string(r.Fallback)
	case r.Cached:
		return "cached"
	case r.Clamped:
		return "clamped"
	default:
		return "ok"
	}
}

// Today truncates t to its UTC calendar date.
func Today(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func Fallback(today time.Time, reason FallbackReason) Result {
	offset := FallbackOffset
	if reason == ReasonNotConfigured {
		offset = NotConfiguredOffset
	}

	return Result{
		Suggestion: Suggestion{
			DueDate:    today.AddDate(0, 0, offset).Format(dateLayout),
			Confidence: ConfidenceLow,
			Reasoning:  fallbackReasoning[reason],
		},
		Fallback: reason,
	}
}

// Sanitize turns a raw model reply into a Result. The reply is untrusted: any
// shape it takes yields either a validated suggestion or a fallback.
func Sanitize(reply string, today time.Time) Result {
	today = Today(today)

	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(stripFences(reply)), &raw); err != nil || raw == nil {
		return Fallback(today, ReasonMalformedReply)
	}

	due, ok := parseDate(stringField(raw, "due_date"))
	if !ok {
		return Fallback(today, ReasonInvalidDate)
	}
	if due.Before(today) {
		return Fallback(today, ReasonPastDate)
	}

	confidence := Confidence(strings.ToLower(strings.TrimSpace(stringField(raw, "confidence"))))
	if !confidence.Valid() {
		confidence = ConfidenceMedium
	}

	reasoning := strings.TrimSpace(stringField(raw, "reasoning"))

	result := Result{}
	horizon := today.AddDate(0, 0, HorizonDays)
	if due.After(horizon) {
		due = horizon
		confidence = ConfidenceLow
		result.Clamped = true
		if reasoning == "" {
			reasoning = "Clamped to the 14-day horizon."
		}
	}

	result.Suggestion = Suggestion{
		DueDate:    due.Format(dateLayout),
		Confidence: confidence,
		Reasoning:  truncate(reasoning, MaxReasoningChars),
	}
	return result
}

// stripFences removes a ```json ... ``` wrapper some models add despite instructions.
func stripFences(reply string) string {
	s := strings.TrimSpace(reply)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func stringField(raw map[string]interface{}, key string) string {
	if s, ok := raw[key].(string); ok {
		return s
	}
	return ""
}

// parseDate accepts YYYY-MM-DD or an ISO timestamp whose first ten characters are one.
func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if len(s) < len(dateLayout) {
		return time.Time{}, false
	}
	if len(s) > len(dateLayout) {
		if _, err := time.Parse(time.RFC3339, s); err != nil && s[len(dateLayout)] != 'T' && s[len(dateLayout)] != ' ' {
			return time.Time{}, false
		}
		s = s[:len(dateLayout)]
	}

	d, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return strings.TrimRight(string(runes[:max]), " \t\n")
}
