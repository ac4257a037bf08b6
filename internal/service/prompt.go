package service

import (
	"fmt"
	"strings"

	"github.com/cloo-solutions/logsage/internal/domain"
	"github.com/cloo-solutions/logsage/internal/openai"
)

const (
	analystRole = "You are a professional cybersecurity analyst."
	expertRole  = "You are a cybersecurity expert."
)

func buildAnalysisRequest(context, message string) openai.ReasoningRequest {
	user := fmt.Sprintf(`You are a cybersecurity analyst.

Similar past logs:
%s

New log:
%s

Provide:
- Issue
- Possible reason
- Risk level (LOW/MEDIUM/HIGH/CRITICAL)
- Recommended fix
`, context, message)

	return openai.ReasoningRequest{System: analystRole, User: user}
}

func buildAskRequest(context, question string) openai.ReasoningRequest {
	user := fmt.Sprintf(`You are a cybersecurity expert.

Relevant logs:
%s

User question:
%s

Provide a detailed answer.
`, context, question)

	return openai.ReasoningRequest{System: expertRole, User: user}
}

type analysisField int

const (
	fieldNone analysisField = iota
	fieldIssue
	fieldReason
	fieldRisk
	fieldFix
)

var fieldLabels = []struct {
	label string
	field analysisField
}{
	{"possible reason", fieldReason},
	{"recommended fix", fieldFix},
	{"risk level", fieldRisk},
	{"reason", fieldReason},
	{"issue", fieldIssue},
	{"risk", fieldRisk},
	{"fix", fieldFix},
}

type parsedAnalysis struct {
	Issue          string
	PossibleReason string
	RiskLevel      domain.RiskLevel
	RecommendedFix string
}

// parseAnalysis pulls the four labelled fields out of free text. A label
// starts a line (after list or markdown markers) and is followed by a colon;
// the value runs until the next label. Missing fields stay empty.
func parseAnalysis(text string) parsedAnalysis {
	values := make(map[analysisField][]string)
	current := fieldNone

	for _, line := range strings.Split(text, "\n") {
		field, rest, ok := matchLabel(line)
		if ok {
			current = field
			if rest != "" {
				values[current] = append(values[current], rest)
			}
			continue
		}
		if current == fieldNone {
			continue
		}
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			values[current] = append(values[current], trimmed)
		}
	}

	join := func(f analysisField) string {
		return strings.TrimSpace(strings.Join(values[f], "\n"))
	}

	out := parsedAnalysis{
		Issue:          join(fieldIssue),
		PossibleReason: join(fieldReason),
		RecommendedFix: join(fieldFix),
		RiskLevel:      domain.RiskUnknown,
	}
	if risk := join(fieldRisk); risk != "" {
		out.RiskLevel = domain.ParseRiskLevel(risk)
	}
	return out
}

func matchLabel(line string) (analysisField, string, bool) {
	cleaned := strings.TrimLeft(strings.TrimSpace(line), "-*#>0123456789.) \t")
	lower := strings.ToLower(cleaned)

	for _, fl := range fieldLabels {
		if !strings.HasPrefix(lower, fl.label) {
			continue
		}
		rest := strings.TrimLeft(cleaned[len(fl.label):], "* \t")
		if !strings.HasPrefix(rest, ":") {
			continue
		}
		rest = strings.TrimSpace(strings.TrimLeft(rest[1:], "* \t"))
		return fl.field, rest, true
	}
	return fieldNone, "", false
}
