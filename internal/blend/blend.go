// Package blend combines ensemble member outputs with external risk
// signals into a final scored decision.
package blend

import (
	"github.com/finshield/finshield/internal/domain"
	"github.com/finshield/finshield/internal/model"
)

// Blender merges member distributions, anomaly and graph signals, the
// text classifier vector and the rule score into one distribution.
type Blender struct {
	// AnomalyFloor is the minimum fraudulent probability when the
	// isolation forest flags the transaction.
	AnomalyFloor float64

	// GraphRiskThreshold triggers the graph floor; GraphRiskFloor is
	// the minimum fraudulent probability applied above it.
	GraphRiskThreshold float64
	GraphRiskFloor     float64

	// Final combination weights.
	EnsembleWeight       float64
	TextWeight           float64
	RuleWeight           float64
	SuspiciousRuleWeight float64

	// BlockThreshold: fraudulent strictly above it blocks.
	BlockThreshold float64

	// MediumFraudThreshold / MediumSuspiciousThreshold bound the
	// MEDIUM risk band below BlockThreshold.
	MediumFraudThreshold      float64
	MediumSuspiciousThreshold float64
}

// NewBlender creates a blender with the default policy.
func NewBlender() *Blender {
	return &Blender{
		AnomalyFloor:              0.7,
		GraphRiskThreshold:        0.7,
		GraphRiskFloor:            0.6,
		EnsembleWeight:            0.4,
		TextWeight:                0.3,
		RuleWeight:                0.3,
		SuspiciousRuleWeight:      0.15,
		BlockThreshold:            0.7,
		MediumFraudThreshold:      0.3,
		MediumSuspiciousThreshold: 0.5,
	}
}

// Input carries every signal the blender consumes for one transaction.
type Input struct {
	Members   model.MemberOutputs
	GraphRisk float64
	Text      domain.RiskScores
	RuleScore float64
}

// Result is the blended decision.
type Result struct {
	Scores      domain.RiskScores
	Prediction  domain.RiskProfile
	Confidence  float64
	RiskLevel   domain.RiskLevel
	ShouldBlock bool
}

// Blend applies the combination policy in order: member average,
// anomaly floor, graph floor, renormalize, weighted combine with the
// text and rule signals, renormalize, then classify.
func (b *Blender) Blend(in *Input) *Result {
	ens := b.ensembleAverage(in.Members)

	if in.Members.Anomaly && ens.Fraudulent < b.AnomalyFloor {
		ens.Fraudulent = b.AnomalyFloor
	}
	if in.GraphRisk > b.GraphRiskThreshold && ens.Fraudulent < b.GraphRiskFloor {
		ens.Fraudulent = b.GraphRiskFloor
	}
	ens = normalize(ens)

	// Rule score pushes probability mass away from normal and toward
	// suspicious and fraudulent, with a reduced suspicious weight.
	final := domain.RiskScores{
		Normal:     b.EnsembleWeight*ens.Normal + b.TextWeight*in.Text.Normal + b.RuleWeight*(1-in.RuleScore),
		Suspicious: b.EnsembleWeight*ens.Suspicious + b.TextWeight*in.Text.Suspicious + b.SuspiciousRuleWeight*in.RuleScore,
		Fraudulent: b.EnsembleWeight*ens.Fraudulent + b.TextWeight*in.Text.Fraudulent + b.RuleWeight*in.RuleScore,
	}
	final = normalize(final)

	prediction, confidence := argmax(final)

	return &Result{
		Scores:      final,
		Prediction:  prediction,
		Confidence:  confidence,
		RiskLevel:   b.riskLevel(final),
		ShouldBlock: final.Fraudulent > b.BlockThreshold,
	}
}

func (b *Blender) ensembleAverage(m model.MemberOutputs) domain.RiskScores {
	return domain.RiskScores{
		Normal:     (m.Forest.Normal + m.MLP.Normal + m.LSTM.Normal) / 3,
		Suspicious: (m.Forest.Suspicious + m.MLP.Suspicious + m.LSTM.Suspicious) / 3,
		Fraudulent: (m.Forest.Fraudulent + m.MLP.Fraudulent + m.LSTM.Fraudulent) / 3,
	}
}

func (b *Blender) riskLevel(s domain.RiskScores) domain.RiskLevel {
	switch {
	case s.Fraudulent > b.BlockThreshold:
		return domain.RiskLevelHigh
	case s.Fraudulent > b.MediumFraudThreshold || s.Suspicious > b.MediumSuspiciousThreshold:
		return domain.RiskLevelMedium
	default:
		return domain.RiskLevelLow
	}
}

func normalize(s domain.RiskScores) domain.RiskScores {
	sum := s.Normal + s.Suspicious + s.Fraudulent
	if sum <= 0 {
		return domain.UniformScores()
	}
	return domain.RiskScores{
		Normal:     s.Normal / sum,
		Suspicious: s.Suspicious / sum,
		Fraudulent: s.Fraudulent / sum,
	}
}

func argmax(s domain.RiskScores) (domain.RiskProfile, float64) {
	profile, best := domain.RiskProfileNormal, s.Normal
	if s.Suspicious > best {
		profile, best = domain.RiskProfileSuspicious, s.Suspicious
	}
	if s.Fraudulent > best {
		profile, best = domain.RiskProfileFraudulent, s.Fraudulent
	}
	return profile, best
}
