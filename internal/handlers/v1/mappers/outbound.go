package mappers

import (
	"encoding/json"

	api "github.com/retinalab/retina-dashboard/api/v1"
	"github.com/retinalab/retina-dashboard/internal/service"
	"github.com/retinalab/retina-dashboard/internal/store/model"
)

func RecordToApi(u model.Upload) api.Record {
	record := api.Record{
		Id:            u.ID.String(),
		Modality:      api.Modality(u.Modality),
		Url:           u.ArtifactURL,
		FileName:      u.FileName,
		ContentType:   u.ContentType,
		Size:          u.Size,
		Status:        api.Status(u.Status),
		QualityScore:  u.QualityScore,
		FailureReason: u.FailureReason,
		CreatedAt:     u.CreatedAt,
		ProcessedAt:   u.ProcessedAt,
	}
	if u.ExtractedFeatures != nil {
		record.ExtractedFeatures = marshal(featuresOf(u))
	}
	return record
}

// featuresOf returns the variant of the features matching the record modality.
func featuresOf(u model.Upload) any {
	if u.Modality == model.ModalityErg {
		return u.ExtractedFeatures.Data.Erg
	}
	return u.ExtractedFeatures.Data.Fundus
}

func RecordListToApi(uploads model.UploadList) api.RecordList {
	list := make(api.RecordList, 0, len(uploads))
	for _, u := range uploads {
		list = append(list, RecordToApi(u))
	}
	return list
}

func UploadReplyToApi(u *model.Upload) api.UploadReply {
	return api.UploadReply{
		Url:      u.ArtifactURL,
		RecordId: u.ID.String(),
		Status:   api.Status(u.Status),
	}
}

func AnalysisToApi(a model.Analysis) api.Analysis {
	analysis := api.Analysis{
		Id:                 a.ID.String(),
		FundusRecordId:     a.FundusRecordID.String(),
		ErgRecordId:        a.ErgRecordID.String(),
		Status:             api.Status(a.Status),
		FundusConfidence:   a.FundusConfidence,
		ErgConfidence:      a.ErgConfidence,
		CombinedConfidence: a.CombinedConfidence,
		ColorBlindnessType: a.ColorBlindnessType,
		SeverityLevel:      a.SeverityLevel,
		FailureReason:      a.FailureReason,
		CreatedAt:          a.CreatedAt,
		CompletedAt:        a.CompletedAt,
	}
	if a.Details != nil {
		analysis.AnalysisDetails = marshal(a.Details.Data)
	}
	return analysis
}

func AnalysisListToApi(analyses model.AnalysisList) api.AnalysisList {
	list := make(api.AnalysisList, 0, len(analyses))
	for _, a := range analyses {
		list = append(list, AnalysisToApi(a))
	}
	return list
}

func ExportToApi(e *service.Export) api.Export {
	return api.Export{
		Fundus:   RecordListToApi(e.Fundus),
		Erg:      RecordListToApi(e.Erg),
		Analyses: AnalysisListToApi(e.Analyses),
	}
}

func marshal(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}
