package model

// FundusFeatures are the values extracted from a processed retinal photograph.
type FundusFeatures struct {
	OpticDiscDetected   bool    `json:"optic_disc_detected"`
	MaculaDetected      bool    `json:"macula_detected"`
	VesselClarity       float64 `json:"vessel_clarity"`
	ImageSharpness      float64 `json:"image_sharpness"`
	IlluminationQuality float64 `json:"illumination_quality"`
}

// ErgFeatures are the values extracted from a processed ERG recording.
// Amplitudes are in microvolts, latencies and implicit time in milliseconds.
type ErgFeatures struct {
	AWaveAmplitude        float64 `json:"a_wave_amplitude"`
	BWaveAmplitude        float64 `json:"b_wave_amplitude"`
	AWaveLatency          float64 `json:"a_wave_latency"`
	BWaveLatency          float64 `json:"b_wave_latency"`
	ImplicitTime          float64 `json:"implicit_time"`
	OscillatoryPotentials bool    `json:"oscillatory_potentials"`
	SignalToNoiseRatio    float64 `json:"signal_to_noise_ratio"`
	BaselineStability     float64 `json:"baseline_stability"`
	ArtifactDetection     bool    `json:"artifact_detection"`
}

// Features holds exactly one of the modality specific feature sets.
type Features struct {
	Fundus *FundusFeatures `json:"fundus,omitempty"`
	Erg    *ErgFeatures    `json:"erg,omitempty"`
}

func (f Features) Modality() Modality {
	if f.Erg != nil {
		return ModalityErg
	}
	return ModalityFundus
}

type ColorIntensities struct {
	Red   float64 `json:"red_channel_intensity"`
	Green float64 `json:"green_channel_intensity"`
	Blue  float64 `json:"blue_channel_intensity"`
}

type CNNFeatures struct {
	OpticDisc         bool             `json:"optic_disc_analysis"`
	Macula            bool             `json:"macula_analysis"`
	Vessel            float64          `json:"vessel_analysis"`
	ColorDistribution ColorIntensities `json:"color_distribution"`
}

type MLPFeatures struct {
	AWave           float64 `json:"a_wave_analysis"`
	BWave           float64 `json:"b_wave_analysis"`
	ConeResponse    bool    `json:"cone_response"`
	SignalIntegrity float64 `json:"signal_integrity"`
}

type FusionWeights struct {
	Fundus          float64   `json:"fundus_weight"`
	Erg             float64   `json:"erg_weight"`
	AttentionScores []float64 `json:"attention_scores"`
}

type ModelVersions struct {
	CNN    string `json:"cnn_version"`
	MLP    string `json:"mlp_version"`
	Fusion string `json:"fusion_version"`
}

// AnalysisDetails is the per-modality breakdown attached to a completed analysis.
type AnalysisDetails struct {
	CNNFeatures   CNNFeatures   `json:"cnn_features"`
	MLPFeatures   MLPFeatures   `json:"mlp_features"`
	FusionWeights FusionWeights `json:"fusion_weights"`
	ModelVersions ModelVersions `json:"model_versions"`
}
