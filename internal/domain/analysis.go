package domain

import (
	"strings"
	"time"
)

// RiskLevel is the severity a reasoning provider assigned to an error.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
	RiskUnknown  RiskLevel = "UNKNOWN"
)

// AnalysisStatus tells whether the provider answered.
type AnalysisStatus string

const (
	AnalysisStatusOK            AnalysisStatus = "OK"
	AnalysisStatusProviderError AnalysisStatus = "PROVIDER_ERROR"
)

// AnalysisResult is the structured verdict for one ERROR record.
// RawText is authoritative; the parsed fields are best effort and may be empty.
type AnalysisResult struct {
	LogID          string         `json:"log_id"`
	Message        string         `json:"message"`
	Issue          string         `json:"issue,omitempty"`
	PossibleReason string         `json:"possible_reason,omitempty"`
	RiskLevel      RiskLevel      `json:"risk_level"`
	RecommendedFix string         `json:"recommended_fix,omitempty"`
	Status         AnalysisStatus `json:"status"`
	RawText        string         `json:"raw_text"`
	Cached         bool           `json:"cached"`
	CreatedAt      time.Time      `json:"created_at"`
}

// OK reports whether the provider produced an answer.
func (a *AnalysisResult) OK() bool {
	return a.Status == AnalysisStatusOK
}

// ParseRiskLevel finds the first known risk keyword in s.
// CRITICAL is checked before HIGH so "critical/high" resolves to the stronger one.
func ParseRiskLevel(s string) RiskLevel {
	upper := strings.ToUpper(s)
	for _, level := range []RiskLevel{RiskCritical, RiskHigh, RiskMedium, RiskLow} {
		if containsWord(upper, string(level)) {
			return level
		}
	}
	return RiskUnknown
}

func containsWord(s, word string) bool {
	for offset := 0; ; {
		i := strings.Index(s[offset:], word)
		if i < 0 {
			return false
		}
		start := offset + i
		end := start + len(word)
		if (start == 0 || !isLetter(s[start-1])) && (end == len(s) || !isLetter(s[end])) {
			return true
		}
		offset = end
	}
}

func isLetter(b byte) bool {
	return (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z')
}
