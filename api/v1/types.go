// Package v1 holds the request and response bodies of the /api/v1 endpoints.
package v1

import (
	"encoding/json"
	"net/http"
	"time"
)

type Modality string

const (
	ModalityFundus Modality = "fundus"
	ModalityErg    Modality = "erg"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

type UploadReply struct {
	Url      string `json:"url"`
	RecordId string `json:"recordId"`
	Status   Status `json:"status"`
}

type Record struct {
	Id                string          `json:"id"`
	Modality          Modality        `json:"modality"`
	Url               string          `json:"url"`
	FileName          string          `json:"fileName"`
	ContentType       string          `json:"contentType,omitempty"`
	Size              int64           `json:"size"`
	Status            Status          `json:"status"`
	QualityScore      *float64        `json:"qualityScore,omitempty"`
	ExtractedFeatures json.RawMessage `json:"extractedFeatures,omitempty"`
	FailureReason     *string         `json:"failureReason,omitempty"`
	CreatedAt         time.Time       `json:"createdAt"`
	ProcessedAt       *time.Time      `json:"processedAt,omitempty"`
}

type RecordList []Record

// ProcessRequest names the record to process. ImageId and ErgId are accepted as
// aliases of RecordId.
type ProcessRequest struct {
	RecordId string `json:"recordId"`
	ImageId  string `json:"imageId"`
	ErgId    string `json:"ergId"`
}

type ProcessReply struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type DeleteRequest struct {
	Url      string `json:"url"`
	RecordId string `json:"recordId"`
}

type SuccessReply struct {
	Success bool `json:"success"`
}

type MultimodalRequest struct {
	FundusId string `json:"fundusId"`
	ErgId    string `json:"ergId"`
}

type MultimodalReply struct {
	Success    bool   `json:"success"`
	AnalysisId string `json:"analysisId"`
	Message    string `json:"message"`
}

type Analysis struct {
	Id                 string          `json:"id"`
	FundusRecordId     string          `json:"fundusRecordId"`
	ErgRecordId        string          `json:"ergRecordId"`
	Status             Status          `json:"status"`
	FundusConfidence   *float64        `json:"fundusConfidence,omitempty"`
	ErgConfidence      *float64        `json:"ergConfidence,omitempty"`
	CombinedConfidence *float64        `json:"combinedConfidence,omitempty"`
	ColorBlindnessType *string         `json:"colorBlindnessType,omitempty"`
	SeverityLevel      *string         `json:"severityLevel,omitempty"`
	AnalysisDetails    json.RawMessage `json:"analysisDetails,omitempty"`
	FailureReason      *string         `json:"failureReason,omitempty"`
	CreatedAt          time.Time       `json:"createdAt"`
	CompletedAt        *time.Time      `json:"completedAt,omitempty"`
}

type AnalysisList []Analysis

type ConsentRequest struct {
	Hipaa          bool `json:"hipaa"`
	DataProcessing bool `json:"dataProcessing"`
	AiAnalysis     bool `json:"aiAnalysis"`
	Research       bool `json:"research"`
}

type ChatAnalysisContext struct {
	ColorBlindnessType string  `json:"color_blindness_type"`
	SeverityLevel      string  `json:"severity_level"`
	CombinedConfidence float64 `json:"combined_confidence"`
	FundusConfidence   float64 `json:"fundus_confidence"`
	ErgConfidence      float64 `json:"erg_confidence"`
}

type ChatMessage struct {
	Role    string `json:"role" validate:"chat_role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	Message             string                `json:"message" validate:"required"`
	Context             []ChatAnalysisContext `json:"context"`
	ConversationHistory []ChatMessage         `json:"conversationHistory" validate:"dive"`
}

type ChatReply struct {
	Message string `json:"message"`
}

type Export struct {
	Fundus   RecordList   `json:"fundus"`
	Erg      RecordList   `json:"erg"`
	Analyses AnalysisList `json:"analyses"`
}

type ErrorReply struct {
	Error     string  `json:"error"`
	RequestId *string `json:"requestId,omitempty"`
}

type HealthReply struct {
	Status string `json:"status"`
}

func (UploadReply) Render(w http.ResponseWriter, r *http.Request) error     { return nil }
func (ProcessReply) Render(w http.ResponseWriter, r *http.Request) error    { return nil }
func (SuccessReply) Render(w http.ResponseWriter, r *http.Request) error    { return nil }
func (MultimodalReply) Render(w http.ResponseWriter, r *http.Request) error { return nil }
func (Record) Render(w http.ResponseWriter, r *http.Request) error          { return nil }
func (Analysis) Render(w http.ResponseWriter, r *http.Request) error        { return nil }
func (ChatReply) Render(w http.ResponseWriter, r *http.Request) error       { return nil }
func (Export) Render(w http.ResponseWriter, r *http.Request) error          { return nil }
func (ErrorReply) Render(w http.ResponseWriter, r *http.Request) error      { return nil }
func (HealthReply) Render(w http.ResponseWriter, r *http.Request) error     { return nil }
