package processing

import "github.com/retinalab/retina-dashboard/internal/store/model"

// Outcome is the result of processing an upload: either features with a quality score
// or a failure reason.
type Outcome struct {
	succeeded    bool
	features     model.Features
	qualityScore float64
	reason       string
}

func Success(features model.Features, qualityScore float64) Outcome {
	return Outcome{succeeded: true, features: features, qualityScore: qualityScore}
}

func Failure(reason string) Outcome {
	return Outcome{reason: reason}
}

func (o Outcome) Succeeded() bool {
	return o.succeeded
}

// AnalysisOutcome is the result of a multimodal analysis.
type AnalysisOutcome struct {
	succeeded bool
	result    model.AnalysisResult
	reason    string
}

func AnalysisSuccess(result model.AnalysisResult) AnalysisOutcome {
	return AnalysisOutcome{succeeded: true, result: result}
}

func AnalysisFailure(reason string) AnalysisOutcome {
	return AnalysisOutcome{reason: reason}
}

func (o AnalysisOutcome) Succeeded() bool {
	return o.succeeded
}
