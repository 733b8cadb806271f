package jobs

import (
	"github.com/google/uuid"
	"github.com/riverqueue/river"
)

const (
	UploadJobKind   = "process_upload"
	AnalysisJobKind = "process_analysis"
)

// UploadArgs is stored in river_job.args for the finalization of an upload.
type UploadArgs struct {
	RecordID uuid.UUID `json:"record_id"`
	Modality string    `json:"modality"`
}

func (UploadArgs) Kind() string {
	return UploadJobKind
}

func (UploadArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		Queue:       DefaultQueue,
		MaxAttempts: MaxJobRetries,
	}
}

// AnalysisArgs is stored in river_job.args for the finalization of an analysis.
type AnalysisArgs struct {
	AnalysisID uuid.UUID `json:"analysis_id"`
}

func (AnalysisArgs) Kind() string {
	return AnalysisJobKind
}

func (AnalysisArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		Queue:       DefaultQueue,
		MaxAttempts: MaxJobRetries,
	}
}
