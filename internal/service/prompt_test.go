package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cloo-solutions/logsage/internal/domain"
)

func TestParseAnalysis(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected parsedAnalysis
	}{
		{
			name: "dash list",
			text: wellFormedAnswer,
			expected: parsedAnalysis{
				Issue:          "Disk is full on /tmp",
				PossibleReason: "Log rotation is not configured",
				RiskLevel:      domain.RiskHigh,
				RecommendedFix: "Enable logrotate and clean /tmp",
			},
		},
		{
			name: "markdown bold labels with values on following lines",
			text: "**Issue:**\nSQL injection attempt\n\n**Possible Reason:**\nUnsanitized input\n\n**Risk Level:** **Critical**\n\n**Recommended Fix:**\n1. Use prepared statements\n2. Add a WAF rule",
			expected: parsedAnalysis{
				Issue:          "SQL injection attempt",
				PossibleReason: "Unsanitized input",
				RiskLevel:      domain.RiskCritical,
				RecommendedFix: "1. Use prepared statements\n2. Add a WAF rule",
			},
		},
		{
			name: "numbered headings",
			text: "1. Issue: Expired certificate\n2. Reason: Renewal job failed\n3. Risk: medium\n4. Fix: Renew the certificate",
			expected: parsedAnalysis{
				Issue:          "Expired certificate",
				PossibleReason: "Renewal job failed",
				RiskLevel:      domain.RiskMedium,
				RecommendedFix: "Renew the certificate",
			},
		},
		{
			name: "preamble is ignored",
			text: "Here is my analysis.\n\nIssue: Brute force login\nRisk level: low",
			expected: parsedAnalysis{
				Issue:     "Brute force login",
				RiskLevel: domain.RiskLow,
			},
		},
		{
			name:     "no labels",
			text:     "Something went wrong but I cannot tell what.",
			expected: parsedAnalysis{RiskLevel: domain.RiskUnknown},
		},
		{
			name:     "unrecognised risk value",
			text:     "Risk level: moderate",
			expected: parsedAnalysis{RiskLevel: domain.RiskUnknown},
		},
		{
			name:     "label without colon is not a label",
			text:     "Issue tracker is down",
			expected: parsedAnalysis{RiskLevel: domain.RiskUnknown},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseAnalysis(tt.text))
		})
	}
}

func TestBuildAnalysisRequest(t *testing.T) {
	req := buildAnalysisRequest("past one\npast two", "new failure")

	assert.Equal(t, analystRole, req.System)
	assert.Contains(t, req.User, "Similar past logs:\npast one\npast two\n")
	assert.Contains(t, req.User, "New log:\nnew failure\n")
	for _, field := range []string{"- Issue", "- Possible reason", "- Risk level (LOW/MEDIUM/HIGH/CRITICAL)", "- Recommended fix"} {
		assert.Contains(t, req.User, field)
	}
}

func TestBuildAskRequest(t *testing.T) {
	req := buildAskRequest("ctx line", "what is failing?")

	assert.Equal(t, expertRole, req.System)
	assert.Contains(t, req.User, "Relevant logs:\nctx line\n")
	assert.Contains(t, req.User, "User question:\nwhat is failing?\n")
}
