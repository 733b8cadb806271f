package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/retinalab/retina-dashboard/internal/assistant"
	"github.com/retinalab/retina-dashboard/internal/store"
	"github.com/retinalab/retina-dashboard/internal/store/model"
)

const chatContextAnalyses = 3

type ChatForm struct {
	Message string
	Context []assistant.AnalysisContext
	History []assistant.Message
}

type ChatService struct {
	store     store.Store
	assistant *assistant.Assistant
}

func NewChatService(s store.Store, a *assistant.Assistant) *ChatService {
	return &ChatService{store: s, assistant: a}
}

// Chat answers a message. Without a client supplied context the user's latest
// completed analyses are used.
func (cs *ChatService) Chat(ctx context.Context, userID string, form ChatForm) (string, error) {
	analyses := form.Context
	if len(analyses) == 0 {
		recent, err := cs.recentAnalyses(ctx, userID)
		if err != nil {
			return "", err
		}
		analyses = recent
	}

	reply, err := cs.assistant.Reply(ctx, assistant.Request{
		Message: form.Message,
		Context: analyses,
		History: form.History,
	})
	if err != nil {
		if errors.Is(err, assistant.ErrEmptyMessage) {
			return "", NewErrInvalidInput("Message is required")
		}
		return "", fmt.Errorf("failed to process chat message: %w", err)
	}
	return reply, nil
}

func (cs *ChatService) recentAnalyses(ctx context.Context, userID string) ([]assistant.AnalysisContext, error) {
	analyses, err := cs.store.Analysis().List(ctx,
		store.NewAnalysisQueryFilter().ByOwner(userID).ByStatus(model.StatusCompleted),
		store.NewQueryOptions().WithSortOrder(store.SortByCreatedTime).WithLimit(chatContextAnalyses))
	if err != nil {
		return nil, fmt.Errorf("failed to load analyses: %w", err)
	}

	out := make([]assistant.AnalysisContext, 0, len(analyses))
	for _, a := range analyses {
		out = append(out, assistant.AnalysisContext{
			ColorBlindnessType: deref(a.ColorBlindnessType),
			SeverityLevel:      deref(a.SeverityLevel),
			CombinedConfidence: derefFloat(a.CombinedConfidence),
			FundusConfidence:   derefFloat(a.FundusConfidence),
			ErgConfidence:      derefFloat(a.ErgConfidence),
		})
	}
	return out, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefFloat(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
