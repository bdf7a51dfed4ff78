package redact

import (
	"encoding/json"
	"fmt"
	"strings"

	"metaredact/internal/metadata"
)

const systemPrompt = "You are an assistant that redacts personally identifiable information (PII) from file metadata. You must output your response as a single valid JSON object."

const userPromptTemplate = `Given the following metadata JSON object, redact any PII, such as names, addresses, phone numbers, email addresses, GPS coordinates, and other sensitive information.

Follow these rules precisely:
1.  Return a JSON object with exactly the same keys as the input. Do not add, rename or drop keys.
2.  Every value in the returned object must be a string.
3.  Replace each sensitive value with the exact text %q.
4.  If a value does not appear to be PII, leave it unredacted.

Metadata: %s`

// buildPrompt renders the user prompt for fields.
func buildPrompt(marker string, fields metadata.Mapping) (string, error) {
	body, err := json.Marshal(metadata.StringifyAll(fields))
	if err != nil {
		return "", fmt.Errorf("encode metadata for classifier: %w", err)
	}
	return fmt.Sprintf(userPromptTemplate, marker, body), nil
}

// decodeResponse parses a model answer, tolerating markdown code fences.
func decodeResponse(text string) (map[string]any, error) {
	clean := strings.TrimSpace(text)
	clean = strings.TrimPrefix(clean, "```json")
	clean = strings.TrimPrefix(clean, "```")
	clean = strings.TrimSuffix(clean, "```")
	clean = strings.TrimSpace(clean)
	if clean == "" {
		return nil, ErrEmptyResponse
	}

	var out map[string]any
	if err := json.Unmarshal([]byte(clean), &out); err != nil {
		return nil, fmt.Errorf("decode classifier response: %w", err)
	}
	return out, nil
}
