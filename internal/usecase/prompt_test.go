package usecase

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"formula-agent/internal/dialogue"
	"formula-agent/internal/domain"
	"formula-agent/internal/integrations/openai"
)

func TestBuildPromptMessages_Layout(t *testing.T) {
	cat := testCatalogSource(t).cat
	history := []domain.Turn{
		{Sender: domain.SenderBot, Text: "What are you looking for?", Component: domain.SlotGoal},
		{Sender: domain.SenderUser, Text: "energy"},
		{Sender: domain.SenderUser, Text: "   "},
	}
	msgs := buildPromptMessages(promptContext{
		registry: dialogue.DefaultRegistry(),
		catalog:  cat,
		form:     domain.FormState{domain.SlotGoal: "Energy"},
		history:  history,
	}, "stick packs", "extra note")

	require.Len(t, msgs, 7)
	require.Equal(t, roleSystem, msgs[0].Role)
	require.Contains(t, msgs[0].Content, "Caffeine (50-200mg)")
	require.Contains(t, msgs[0].Content, "Caffeine>150mg")
	require.Contains(t, msgs[1].Content, "Mango, Watermelon")
	require.Contains(t, msgs[2].Content, "Goal: Energy")
	require.Contains(t, msgs[2].Content, "USER PERSONA SUMMARY")
	require.Equal(t, "[Asked about: Goal] What are you looking for?", msgs[3].Content)
	require.Equal(t, roleAssistant, msgs[3].Role)
	require.Equal(t, roleUser, msgs[4].Role)
	require.Equal(t, "extra note", msgs[5].Content)
	require.Equal(t, domain.ChatMessage{Role: roleUser, Content: "stick packs"}, msgs[6])
}

func TestBuildPromptMessages_EmptyFormSkipsCollected(t *testing.T) {
	msgs := buildPromptMessages(promptContext{registry: dialogue.DefaultRegistry(), catalog: testCatalogSource(t).cat}, "")
	require.Len(t, msgs, 2)
}

func TestFlowLine(t *testing.T) {
	line := flowLine(dialogue.DefaultRegistry())
	require.Equal(t, "Goal → Format → Routine → Lifestyle → Sensitivities → CurrentSupplements → Experience → Dosage → "+
		"[Stick Pack only: Sweetener → Flavors] → FormulaName → Complete", line)
}

func TestAnswerInstruction(t *testing.T) {
	require.Contains(t, answerInstruction(domain.SlotFormat, "stick packs", "Stick Pack"), `understood as "Stick Pack"`)
	require.Contains(t, answerInstruction(domain.SlotFormat, "hello", "hello"), `re-ask "Format"`)
}

func TestBuildPersonaSummary(t *testing.T) {
	require.Empty(t, buildPersonaSummary(nil))

	out := buildPersonaSummary(domain.FormState{
		domain.SlotExperience:         "I'm new to this",
		domain.SlotLifestyle:          "Sedentary",
		domain.SlotSensitivities:      "Caffeine sensitive",
		domain.SlotCurrentSupplements: "None",
		domain.SlotGoal:               "Sleep",
	})
	require.Contains(t, out, "Experience: BEGINNER")
	require.Contains(t, out, "Activity: LOW")
	require.Contains(t, out, "Caffeine/stimulant sensitivity")
	require.Contains(t, out, "Sensitivities present")
	require.NotContains(t, out, "Taking other supplements")
	require.Contains(t, out, "Goal is relaxation")

	out = buildPersonaSummary(domain.FormState{domain.SlotSensitivities: "No", domain.SlotGoal: "Energy"})
	require.Contains(t, out, "Experience: UNKNOWN")
	require.NotContains(t, out, "Sensitivities present")
	require.Contains(t, out, "Goal needs strong support")
}

func TestUpstreamError(t *testing.T) {
	tests := []struct {
		err    error
		code   ErrorCode
		reason string
	}{
		{&openai.HTTPStatusError{StatusCode: http.StatusTooManyRequests}, ErrorRateLimited, "openai_rate_limited"},
		{fmt.Errorf("wrap: %w", &openai.HTTPStatusError{StatusCode: http.StatusTooManyRequests, Body: "insufficient_quota"}), ErrorRateLimited, reasonQuotaExceeded},
		{&openai.HTTPStatusError{StatusCode: http.StatusUnauthorized}, ErrorInternal, reasonInvalidKey},
		{errors.New("invalid_api_key"), ErrorInternal, reasonInvalidKey},
		{errors.New("connection reset"), ErrorUpstream, "openai_error"},
	}
	for _, tt := range tests {
		got := upstreamError("openai", tt.err)
		require.Equal(t, tt.code, got.Code)
		require.Equal(t, tt.reason, got.Reason)
		require.ErrorIs(t, got, tt.err)
	}
}

func TestError_UserMessage(t *testing.T) {
	require.Contains(t, newError(ErrorRateLimited, reasonCooldown, nil).UserMessage(), "slow down")
	require.Contains(t, newError(ErrorRateLimited, reasonQuotaExceeded, nil).UserMessage(), "daily limit")
	require.Contains(t, newError(ErrorUpstream, "openai_error", nil).UserMessage(), "trouble connecting")
	require.NotEmpty(t, newError(ErrorInternal, "dynamodb_write_error", nil).UserMessage())
	require.Empty(t, (*Error)(nil).UserMessage())
}
