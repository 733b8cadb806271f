package processing

import (
	"fmt"
	"math/rand/v2"

	"github.com/retinalab/retina-dashboard/internal/fusion"
	"github.com/retinalab/retina-dashboard/internal/store/model"
)

const (
	CNNVersion    = "v2.1.0"
	MLPVersion    = "v1.8.0"
	FusionVersion = "v1.3.0"

	defaultVesselClarity   = 0.8
	defaultAWaveAmplitude  = 100
	defaultBWaveAmplitude  = 300
	defaultSignalIntegrity = 0.8
)

var attentionScores = []float64{0.8, 0.7, 0.9, 0.6}

// globalRandom draws from the goroutine safe top level source.
type globalRandom struct{}

func (globalRandom) Float64() float64 {
	return rand.Float64()
}

// between maps a uniform draw onto [lo, hi].
func between(r fusion.Random, lo, hi float64) float64 {
	return lo + r.Float64()*(hi-lo)
}

func chance(r fusion.Random, threshold float64) bool {
	return r.Float64() > threshold
}

// DeriveFundus simulates quality scoring and feature extraction of a retinal photograph.
func DeriveFundus(r fusion.Random) (model.FundusFeatures, float64) {
	quality := between(r, 0.6, 1.0)
	return model.FundusFeatures{
		OpticDiscDetected:   chance(r, 0.1),
		MaculaDetected:      chance(r, 0.15),
		VesselClarity:       between(r, 0.5, 1.0),
		ImageSharpness:      between(r, 0.7, 1.0),
		IlluminationQuality: between(r, 0.6, 1.0),
	}, quality
}

// DeriveErg simulates signal quality scoring and waveform feature extraction of an ERG recording.
func DeriveErg(r fusion.Random) (model.ErgFeatures, float64) {
	quality := between(r, 0.6, 1.0)
	return model.ErgFeatures{
		AWaveAmplitude:        between(r, 50, 150),
		BWaveAmplitude:        between(r, 200, 500),
		AWaveLatency:          between(r, 12, 17),
		BWaveLatency:          between(r, 45, 55),
		ImplicitTime:          between(r, 40, 60),
		OscillatoryPotentials: chance(r, 0.3),
		SignalToNoiseRatio:    between(r, 10, 30),
		BaselineStability:     between(r, 0.7, 1.0),
		ArtifactDetection:     chance(r, 0.8),
	}, quality
}

func DeriveFeatures(modality model.Modality, r fusion.Random) (model.Features, float64, error) {
	switch modality {
	case model.ModalityFundus:
		f, q := DeriveFundus(r)
		return model.Features{Fundus: &f}, q, nil
	case model.ModalityErg:
		f, q := DeriveErg(r)
		return model.Features{Erg: &f}, q, nil
	default:
		return model.Features{}, 0, fmt.Errorf("unknown modality %q", modality)
	}
}

// DeriveAnalysis scores a multimodal analysis from its two completed inputs.
// CompletedAt is left for the caller.
func DeriveAnalysis(fundus, erg *model.Upload, r fusion.Random) model.AnalysisResult {
	fundusConfidence := between(r, 0.7, 1.0)
	ergConfidence := between(r, 0.6, 0.9)
	scored := fusion.Score(fundusConfidence, ergConfidence, r)

	cnn := model.CNNFeatures{
		Vessel: defaultVesselClarity,
		ColorDistribution: model.ColorIntensities{
			Red:   between(r, 0.6, 1.0),
			Green: between(r, 0.6, 1.0),
			Blue:  between(r, 0.6, 1.0),
		},
	}
	if f := fundusFeatures(fundus); f != nil {
		cnn.OpticDisc = f.OpticDiscDetected
		cnn.Macula = f.MaculaDetected
		cnn.Vessel = f.VesselClarity
	}

	mlp := model.MLPFeatures{
		AWave:           defaultAWaveAmplitude,
		BWave:           defaultBWaveAmplitude,
		SignalIntegrity: defaultSignalIntegrity,
	}
	if f := ergFeatures(erg); f != nil {
		mlp.AWave = f.AWaveAmplitude
		mlp.BWave = f.BWaveAmplitude
		mlp.ConeResponse = f.OscillatoryPotentials
	}
	if erg != nil && erg.QualityScore != nil {
		mlp.SignalIntegrity = *erg.QualityScore
	}

	return model.AnalysisResult{
		FundusConfidence:   fundusConfidence,
		ErgConfidence:      ergConfidence,
		CombinedConfidence: scored.CombinedConfidence,
		ColorBlindnessType: string(scored.Diagnosis),
		SeverityLevel:      string(scored.Severity),
		Details: model.AnalysisDetails{
			CNNFeatures: cnn,
			MLPFeatures: mlp,
			FusionWeights: model.FusionWeights{
				Fundus:          fusion.FundusWeight,
				Erg:             fusion.ErgWeight,
				AttentionScores: append([]float64(nil), attentionScores...),
			},
			ModelVersions: model.ModelVersions{
				CNN:    CNNVersion,
				MLP:    MLPVersion,
				Fusion: FusionVersion,
			},
		},
	}
}

func fundusFeatures(u *model.Upload) *model.FundusFeatures {
	if u == nil || u.ExtractedFeatures == nil {
		return nil
	}
	return u.ExtractedFeatures.Data.Fundus
}

func ergFeatures(u *model.Upload) *model.ErgFeatures {
	if u == nil || u.ExtractedFeatures == nil {
		return nil
	}
	return u.ExtractedFeatures.Data.Erg
}
