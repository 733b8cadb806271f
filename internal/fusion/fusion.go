// Package fusion combines the fundus and ERG confidences of a multimodal analysis into
// one confidence and a color vision diagnosis.
package fusion

import (
	"github.com/retinalab/retina-dashboard/internal/util"
)

type Diagnosis string

const (
	Normal        Diagnosis = "Normal"
	Protanopia    Diagnosis = "Protanopia"
	Deuteranopia  Diagnosis = "Deuteranopia"
	Tritanopia    Diagnosis = "Tritanopia"
	Protanomaly   Diagnosis = "Protanomaly"
	Deuteranomaly Diagnosis = "Deuteranomaly"
)

type Severity string

const (
	SeverityNone     Severity = "None"
	SeverityMild     Severity = "Mild"
	SeverityModerate Severity = "Moderate"
	SeveritySevere   Severity = "Severe"
)

const (
	FundusWeight = 0.6
	ErgWeight    = 0.4

	JitterMin = 0.95
	JitterMax = 1.05

	severeThreshold   = 0.8
	moderateThreshold = 0.6
)

type WeightedDiagnosis struct {
	Diagnosis Diagnosis
	Weight    float64
}

// Distribution is the prior the diagnosis is drawn from. Weights sum to one.
var Distribution = []WeightedDiagnosis{
	{Normal, 0.40},
	{Protanopia, 0.15},
	{Deuteranopia, 0.15},
	{Tritanopia, 0.05},
	{Protanomaly, 0.125},
	{Deuteranomaly, 0.125},
}

// Random is a source of uniform draws in [0,1).
type Random interface {
	Float64() float64
}

type Result struct {
	CombinedConfidence float64
	Diagnosis          Diagnosis
	Severity           Severity
}

// Score draws the jitter and then the diagnosis from r.
func Score(fundusConfidence, ergConfidence float64, r Random) Result {
	combined := Combine(fundusConfidence, ergConfidence, Jitter(r.Float64()))
	diagnosis := SelectDiagnosis(r.Float64())

	return Result{
		CombinedConfidence: combined,
		Diagnosis:          diagnosis,
		Severity:           SeverityFor(diagnosis, combined),
	}
}

// Combine weights both confidences, applies the jitter and clamps the result to [0,1].
func Combine(fundusConfidence, ergConfidence, jitter float64) float64 {
	return util.Clamp((fundusConfidence*FundusWeight+ergConfidence*ErgWeight)*jitter, 0, 1)
}

// Jitter maps a uniform draw onto [JitterMin, JitterMax].
func Jitter(u float64) float64 {
	return JitterMin + util.Clamp(u, 0, 1)*(JitterMax-JitterMin)
}

// SelectDiagnosis walks the cumulative weights until they reach u.
func SelectDiagnosis(u float64) Diagnosis {
	cumulative := 0.0
	for _, wd := range Distribution {
		cumulative += wd.Weight
		if u <= cumulative {
			return wd.Diagnosis
		}
	}
	return Normal
}

func SeverityFor(d Diagnosis, combinedConfidence float64) Severity {
	switch {
	case d == Normal:
		return SeverityNone
	case combinedConfidence > severeThreshold:
		return SeveritySevere
	case combinedConfidence > moderateThreshold:
		return SeverityModerate
	default:
		return SeverityMild
	}
}
