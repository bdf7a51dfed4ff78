package redact

import (
	"context"
	"regexp"

	"metaredact/internal/metadata"
)

// Rule flags a field as sensitive. When both patterns are set, both must
// match; a nil pattern matches anything.
type Rule struct {
	Name  string
	Key   *regexp.Regexp
	Value *regexp.Regexp
}

func (r Rule) matches(key, value string) bool {
	if r.Key == nil && r.Value == nil {
		return false
	}
	if r.Key != nil && !r.Key.MatchString(key) {
		return false
	}
	if r.Value != nil && !r.Value.MatchString(value) {
		return false
	}
	return true
}

// DefaultRules only fire on strong evidence. PDF "Creator" names the
// authoring application and is left alone; XMP "creator" (dc:creator) is
// a person.
var DefaultRules = []Rule{
	{
		Name: "person",
		Key:  regexp.MustCompile(`^(Author|Artist|Byline|BylineTitle|OwnerName|CameraOwnerName|Copyright|CopyrightNotice|rights|creator|Writer|Contact|XPAuthor|LastModifiedBy|Credit)$`),
	},
	{
		Name: "contact-key",
		Key:  regexp.MustCompile(`(?i)(e-?mail|phone|telephone|fax|url|website)`),
	},
	{
		Name: "address",
		Key:  regexp.MustCompile(`(?i)^(address|street|streetaddress|postalcode|zip|zipcode|city|state|province|country|countrycode|sublocation|location)$`),
	},
	{
		Name: "location",
		Key:  regexp.MustCompile(`(?i)^(gps|latitude$|longitude$)`),
	},
	{
		Name: "device-id",
		Key:  regexp.MustCompile(`(?i)(serial|^imageuniqueid$|^documentid$|^instanceid$|^originaldocumentid$)`),
	},
	{
		Name:  "email",
		Value: regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`),
	},
	{
		Name:  "phone",
		Value: regexp.MustCompile(`(?:\+\d{1,3}[\s.\-]?)?(?:\(\d{3}\)|\b\d{3})[\s.\-]\d{3}[\s.\-]\d{4}\b`),
	},
}

// RuleClassifier is a deterministic local classifier driven by a rule table.
type RuleClassifier struct {
	Marker string
	Rules  []Rule
}

func NewRuleClassifier(marker string) *RuleClassifier {
	if marker == "" {
		marker = DefaultMarker
	}
	return &RuleClassifier{Marker: marker, Rules: DefaultRules}
}

func (c *RuleClassifier) Classify(_ context.Context, fields metadata.Mapping) (map[string]any, error) {
	out := make(map[string]any, len(fields))
	for key, value := range fields {
		text := metadata.Stringify(value)
		out[key] = text
		if key == metadata.KeyInfo || value == nil {
			continue
		}
		for _, rule := range c.Rules {
			if rule.matches(key, text) {
				out[key] = c.Marker
				break
			}
		}
	}
	return out, nil
}
