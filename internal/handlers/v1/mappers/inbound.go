package mappers

import (
	"github.com/google/uuid"
	api "github.com/retinalab/retina-dashboard/api/v1"
	"github.com/retinalab/retina-dashboard/internal/assistant"
	"github.com/retinalab/retina-dashboard/internal/service"
)

// ProcessForm is a process request with its id aliases resolved.
type ProcessForm struct {
	RecordID string `validate:"required,record_id"`
}

func ProcessFormFromApi(req api.ProcessRequest) ProcessForm {
	id := req.RecordId
	if id == "" {
		id = req.ImageId
	}
	if id == "" {
		id = req.ErgId
	}
	return ProcessForm{RecordID: id}
}

type MultimodalForm struct {
	FundusID string `validate:"required,record_id"`
	ErgID    string `validate:"required,record_id"`
}

func MultimodalFormFromApi(req api.MultimodalRequest) MultimodalForm {
	return MultimodalForm{FundusID: req.FundusId, ErgID: req.ErgId}
}

type DeleteForm struct {
	RecordID string `validate:"required_without=URL,omitempty,record_id"`
	URL      string `validate:"required_without=RecordID,omitempty,artifact_url"`
}

func DeleteFormFromApi(req api.DeleteRequest) DeleteForm {
	return DeleteForm{RecordID: req.RecordId, URL: req.Url}
}

// ToService converts a validated form.
func (f DeleteForm) ToService() service.DeleteForm {
	form := service.DeleteForm{URL: f.URL}
	if f.RecordID != "" {
		id := uuid.MustParse(f.RecordID)
		form.RecordID = &id
	}
	return form
}

func ConsentFormFromApi(req api.ConsentRequest) service.ConsentForm {
	return service.ConsentForm{
		Hipaa:          req.Hipaa,
		DataProcessing: req.DataProcessing,
		AIAnalysis:     req.AiAnalysis,
		Research:       req.Research,
	}
}

func ChatFormFromApi(req api.ChatRequest) service.ChatForm {
	form := service.ChatForm{Message: req.Message}
	for _, c := range req.Context {
		form.Context = append(form.Context, assistant.AnalysisContext{
			ColorBlindnessType: c.ColorBlindnessType,
			SeverityLevel:      c.SeverityLevel,
			CombinedConfidence: c.CombinedConfidence,
			FundusConfidence:   c.FundusConfidence,
			ErgConfidence:      c.ErgConfidence,
		})
	}
	for _, m := range req.ConversationHistory {
		form.History = append(form.History, assistant.Message{Role: m.Role, Content: m.Content})
	}
	return form
}
