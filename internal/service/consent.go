package service

import (
	"context"

	"github.com/retinalab/retina-dashboard/internal/audit"
	"go.uber.org/zap"
)

// ConsentForm holds the consents a patient gives before using the dashboard.
// Research is optional; the others are required.
type ConsentForm struct {
	Hipaa          bool
	DataProcessing bool
	AIAnalysis     bool
	Research       bool
}

// ConsentService records consent decisions in the audit trail only.
type ConsentService struct {
	recorder Recorder
	log      *zap.SugaredLogger
}

func NewConsentService(recorder Recorder) *ConsentService {
	return &ConsentService{recorder: recorder, log: zap.S().Named("consent_service")}
}

func (cs *ConsentService) Grant(ctx context.Context, userID string, form ConsentForm) error {
	var missing []string
	if !form.Hipaa {
		missing = append(missing, "hipaa")
	}
	if !form.DataProcessing {
		missing = append(missing, "dataProcessing")
	}
	if !form.AIAnalysis {
		missing = append(missing, "aiAnalysis")
	}
	if len(missing) > 0 {
		return NewErrConsentRequired(missing)
	}

	cs.recorder.Record(ctx, audit.Event{
		UserID:       userID,
		Action:       audit.ConsentGranted,
		ResourceType: audit.ResourceConsent,
		Metadata: map[string]any{
			"hipaa":           form.Hipaa,
			"data_processing": form.DataProcessing,
			"ai_analysis":     form.AIAnalysis,
			"research":        form.Research,
		},
	})
	cs.log.Debugw("consent granted", "user_id", userID, "research", form.Research)
	return nil
}

func (cs *ConsentService) Withdraw(ctx context.Context, userID string) {
	cs.recorder.Record(ctx, audit.Event{
		UserID:       userID,
		Action:       audit.ConsentWithdrawn,
		ResourceType: audit.ResourceConsent,
	})
}
