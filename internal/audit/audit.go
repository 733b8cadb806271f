package audit

import (
	"context"
	"time"

	"github.com/retinalab/retina-dashboard/internal/store"
	"github.com/retinalab/retina-dashboard/internal/store/model"
	"github.com/retinalab/retina-dashboard/pkg/requestid"
	"go.uber.org/zap"
)

type Action string

const (
	ViewFundusImage    Action = "view_fundus_image"
	ViewErgData        Action = "view_erg_data"
	ViewAnalysisResult Action = "view_analysis_result"

	UploadFundusImage Action = "upload_fundus_image"
	UploadErgData     Action = "upload_erg_data"
	DeleteFundusImage Action = "delete_fundus_image"
	DeleteErgData     Action = "delete_erg_data"

	StartAIAnalysis    Action = "start_ai_analysis"
	CompleteAIAnalysis Action = "complete_ai_analysis"

	UserLogin  Action = "user_login"
	UserLogout Action = "user_logout"

	ConsentGranted   Action = "consent_granted"
	ConsentWithdrawn Action = "consent_withdrawn"

	ExportData     Action = "export_data"
	DownloadReport Action = "download_report"
)

var actions = map[Action]struct{}{
	ViewFundusImage: {}, ViewErgData: {}, ViewAnalysisResult: {},
	UploadFundusImage: {}, UploadErgData: {}, DeleteFundusImage: {}, DeleteErgData: {},
	StartAIAnalysis: {}, CompleteAIAnalysis: {},
	UserLogin: {}, UserLogout: {},
	ConsentGranted: {}, ConsentWithdrawn: {},
	ExportData: {}, DownloadReport: {},
}

func (a Action) Valid() bool {
	_, ok := actions[a]
	return ok
}

const (
	ResourceFundusImage = "fundus_image"
	ResourceErgData     = "erg_data"
	ResourceAnalysis    = "multimodal_analysis"
	ResourceConsent     = "consent"
)

type Event struct {
	UserID       string
	Action       Action
	ResourceType string
	ResourceID   string
	Metadata     map[string]any
}

// Recorder appends audit events. Failures are logged and never reach the caller.
type Recorder struct {
	store store.Audit
	now   func() time.Time
	log   *zap.SugaredLogger
}

func NewRecorder(s store.Audit) *Recorder {
	return &Recorder{
		store: s,
		now:   func() time.Time { return time.Now().UTC() },
		log:   zap.S().Named("audit"),
	}
}

func (r *Recorder) Record(ctx context.Context, e Event) {
	if !e.Action.Valid() {
		r.log.Errorw("refusing unknown audit action", "action", e.Action, "user_id", e.UserID)
		return
	}

	metadata := make(map[string]any, len(e.Metadata)+1)
	for k, v := range e.Metadata {
		metadata[k] = v
	}
	if reqID := requestid.FromContext(ctx); reqID != "" {
		metadata["request_id"] = reqID
	}

	event := model.AuditEvent{
		UserID:       e.UserID,
		Action:       string(e.Action),
		ResourceType: e.ResourceType,
		Metadata:     model.MakeJSONField(metadata),
		Timestamp:    r.now(),
	}
	if e.ResourceID != "" {
		event.ResourceID = &e.ResourceID
	}

	if err := r.store.Append(ctx, event); err != nil {
		r.log.Errorw("failed to write audit event", "error", err, "action", e.Action, "resource_type", e.ResourceType, "resource_id", e.ResourceID)
	}
}
