package enrichment

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Priya8975/watchlist-enricher/internal/domain"
)

var (
	ErrMalformedReply  = errors.New("model reply is not a JSON object")
	ErrIncompleteReply = errors.New("model reply is missing required fields")
	ErrInvalidSeverity = errors.New("model reply has an invalid severity")
)

const fence = "```"

// StripCodeFence removes a markdown code fence (with or without a language
// tag) wrapped around the reply. Text without a fence is returned trimmed.
func StripCodeFence(reply string) string {
	s := strings.TrimSpace(reply)
	if !strings.HasPrefix(s, fence) {
		return s
	}
	s = strings.TrimPrefix(s, fence)

	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		// Opening line is the language tag, if any.
		s = s[nl+1:]
	} else {
		s = strings.TrimLeftFunc(s, isTagRune)
	}

	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, fence)
	return strings.TrimSpace(s)
}

func isTagRune(r rune) bool {
	return r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' || r == '_'
}

type replyShape struct {
	Summary         *string `json:"summary"`
	Severity        *string `json:"severity"`
	SuggestedAction *string `json:"suggestedAction"`
}

// ParseResult decodes a model reply into a complete EnrichmentResult.
// Anything short of all three fields with a known severity is an error.
func ParseResult(reply string) (domain.EnrichmentResult, error) {
	var shape replyShape
	if err := json.Unmarshal([]byte(StripCodeFence(reply)), &shape); err != nil {
		return domain.EnrichmentResult{}, fmt.Errorf("%w: %v", ErrMalformedReply, err)
	}

	if shape.Summary == nil || shape.Severity == nil || shape.SuggestedAction == nil {
		return domain.EnrichmentResult{}, ErrIncompleteReply
	}

	summary := strings.TrimSpace(*shape.Summary)
	action := strings.TrimSpace(*shape.SuggestedAction)
	if summary == "" || action == "" {
		return domain.EnrichmentResult{}, ErrIncompleteReply
	}

	severity, err := domain.ParseSeverity(*shape.Severity)
	if err != nil {
		return domain.EnrichmentResult{}, fmt.Errorf("%w: %q", ErrInvalidSeverity, *shape.Severity)
	}

	return domain.EnrichmentResult{
		Summary:         summary,
		Severity:        severity,
		SuggestedAction: action,
	}, nil
}
