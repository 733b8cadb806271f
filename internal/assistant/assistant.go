// Package assistant answers patient questions about their results.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

var ErrEmptyMessage = errors.New("message is required")

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// AnalysisContext is a completed analysis the patient wants discussed.
type AnalysisContext struct {
	ColorBlindnessType string  `json:"color_blindness_type"`
	SeverityLevel      string  `json:"severity_level"`
	CombinedConfidence float64 `json:"combined_confidence"`
	FundusConfidence   float64 `json:"fundus_confidence"`
	ErgConfidence      float64 `json:"erg_confidence"`
}

type Request struct {
	Message string
	Context []AnalysisContext
	History []Message
}

// Model completes a conversation.
type Model interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

type Assistant struct {
	model Model
	log   *zap.SugaredLogger
}

func New(model Model) *Assistant {
	return &Assistant{model: model, log: zap.S().Named("assistant")}
}

// NewKeyword returns an assistant backed by the canned keyword responder.
func NewKeyword() *Assistant {
	return New(KeywordModel{})
}

func (a *Assistant) Reply(ctx context.Context, req Request) (string, error) {
	if strings.TrimSpace(req.Message) == "" {
		return "", ErrEmptyMessage
	}

	messages := make([]Message, 0, len(req.History)+2)
	messages = append(messages, Message{Role: RoleSystem, Content: SystemPrompt(req.Context)})
	for _, m := range req.History {
		if m.Role != RoleUser && m.Role != RoleAssistant {
			continue
		}
		messages = append(messages, m)
	}
	messages = append(messages, Message{Role: RoleUser, Content: req.Message})

	a.log.Debugw("completing conversation", "turns", len(messages), "analyses", len(req.Context))
	return a.model.Complete(ctx, messages)
}

const basePrompt = `You are a medical assistant for colour vision screening. You explain ERG results, fundus image findings and multimodal predictions to patients.

Explain ERG parameters (a-wave, b-wave, implicit time) and fundus findings (optic disc, macula, vessels).
Describe the colour vision deficiency types and what a confidence score means.
Use plain language, educate rather than diagnose and always recommend an ophthalmologist for medical decisions.`

// SystemPrompt describes the assistant and appends the patient's analyses.
func SystemPrompt(analyses []AnalysisContext) string {
	if len(analyses) == 0 {
		return basePrompt
	}

	var b strings.Builder
	b.WriteString(basePrompt)
	b.WriteString("\n\nPatient's recent analyses:\n")
	for i, a := range analyses {
		fmt.Fprintf(&b, "Analysis %d:\n- Type: %s\n- Severity: %s\n- Combined confidence: %.1f%%\n- Fundus confidence: %.1f%%\n- ERG confidence: %.1f%%\n",
			i+1, a.ColorBlindnessType, a.SeverityLevel,
			a.CombinedConfidence*100, a.FundusConfidence*100, a.ErgConfidence*100)
	}
	return b.String()
}
