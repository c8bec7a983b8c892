package enrichment

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/Priya8975/watchlist-enricher/internal/domain"
)

const promptTemplate = `Analiza este evento de seguridad y devuelve SOLAMENTE un objeto JSON válido, sin markdown ni texto adicional.
Evento: %EVENT%

Estructura exacta, con estas tres claves y ninguna otra:
{
  "summary": "resumen breve del evento",
  "severity": "%SEVERITIES%",
  "suggestedAction": "acción recomendada"
}
`

var promptBase = strings.Replace(promptTemplate, "%SEVERITIES%", severityChoices(), 1)

func severityChoices() string {
	names := make([]string, len(domain.Severities))
	for i, s := range domain.Severities {
		names[i] = string(s)
	}
	return strings.Join(names, "|")
}

// BuildPrompt embeds description as a JSON string literal, so quotes,
// backslashes and line breaks in it cannot end the quoted event early.
func BuildPrompt(description string) string {
	return strings.Replace(promptBase, "%EVENT%", quote(description), 1)
}

func quote(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	// Encoding a string cannot fail; invalid UTF-8 becomes U+FFFD.
	_ = enc.Encode(s)
	return strings.TrimSuffix(buf.String(), "\n")
}
