package domain

const (
	FallbackSummary = "Error en el análisis automático"
	FallbackAction  = "Revisar manualmente"
)

// EnrichmentResult is the model's assessment of an event description.
// Every field is always populated, including on the fallback path.
type EnrichmentResult struct {
	Summary         string   `json:"summary"`
	Severity        Severity `json:"severity"`
	SuggestedAction string   `json:"suggestedAction"`
}

// FallbackResult is returned whenever an automated assessment could not be produced.
func FallbackResult() EnrichmentResult {
	return EnrichmentResult{
		Summary:         FallbackSummary,
		Severity:        SeverityMedium,
		SuggestedAction: FallbackAction,
	}
}

// Complete reports whether the result satisfies the enrichment contract.
func (r EnrichmentResult) Complete() bool {
	return r.Summary != "" && r.SuggestedAction != "" && r.Severity.Valid()
}
