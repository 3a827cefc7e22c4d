package blend

import (
	"math"
	"testing"

	"github.com/finshield/finshield/internal/domain"
	"github.com/finshield/finshield/internal/model"
)

func uniformMembers() model.MemberOutputs {
	u := domain.UniformScores()
	return model.MemberOutputs{Forest: u, MLP: u, LSTM: u}
}

func assertNormalized(t *testing.T, s domain.RiskScores) {
	t.Helper()
	sum := s.Normal + s.Suspicious + s.Fraudulent
	if math.Abs(sum-1) > 1e-9 {
		t.Errorf("scores sum to %v, want 1", sum)
	}
}

func TestBlendBenign(t *testing.T) {
	b := NewBlender()
	benign := domain.RiskScores{Normal: 0.9, Suspicious: 0.07, Fraudulent: 0.03}

	res := b.Blend(&Input{
		Members:   model.MemberOutputs{Forest: benign, MLP: benign, LSTM: benign},
		GraphRisk: 0.1,
		Text:      domain.RiskScores{Normal: 0.8, Suspicious: 0.15, Fraudulent: 0.05},
		RuleScore: 0.05,
	})

	assertNormalized(t, res.Scores)
	if res.Prediction != domain.RiskProfileNormal {
		t.Errorf("prediction = %s, want normal", res.Prediction)
	}
	if res.RiskLevel != domain.RiskLevelLow {
		t.Errorf("risk level = %s, want LOW", res.RiskLevel)
	}
	if res.ShouldBlock {
		t.Error("benign transaction should not block")
	}
}

func TestBlendFraudulent(t *testing.T) {
	b := NewBlender()
	fraud := domain.RiskScores{Normal: 0.05, Suspicious: 0.1, Fraudulent: 0.85}

	res := b.Blend(&Input{
		Members:   model.MemberOutputs{Forest: fraud, MLP: fraud, LSTM: fraud, Anomaly: true},
		GraphRisk: 0.8,
		Text:      domain.RiskScores{Normal: 0.05, Suspicious: 0.15, Fraudulent: 0.8},
		RuleScore: 0.9,
	})

	assertNormalized(t, res.Scores)
	if res.Prediction != domain.RiskProfileFraudulent {
		t.Errorf("prediction = %s, want fraudulent", res.Prediction)
	}
	if res.RiskLevel != domain.RiskLevelHigh {
		t.Errorf("risk level = %s, want HIGH", res.RiskLevel)
	}
	if !res.ShouldBlock {
		t.Error("high-risk transaction should block")
	}
	if res.Confidence != res.Scores.Fraudulent {
		t.Errorf("confidence = %v, want argmax score %v", res.Confidence, res.Scores.Fraudulent)
	}
}

func TestAnomalyFloor(t *testing.T) {
	b := NewBlender()
	benign := domain.RiskScores{Normal: 0.9, Suspicious: 0.07, Fraudulent: 0.03}

	without := b.Blend(&Input{
		Members: model.MemberOutputs{Forest: benign, MLP: benign, LSTM: benign},
		Text:    domain.UniformScores(),
	})
	with := b.Blend(&Input{
		Members: model.MemberOutputs{Forest: benign, MLP: benign, LSTM: benign, Anomaly: true},
		Text:    domain.UniformScores(),
	})

	if with.Scores.Fraudulent <= without.Scores.Fraudulent {
		t.Errorf("anomaly flag should raise fraudulent: %v <= %v",
			with.Scores.Fraudulent, without.Scores.Fraudulent)
	}

	// Before the final combine the floored distribution carries at
	// least 0.7/1.7 fraudulent mass; the ensemble term alone must
	// therefore exceed the unfloored one by a wide margin.
	if with.Scores.Fraudulent < 0.15 {
		t.Errorf("floored fraudulent = %v, suspiciously low", with.Scores.Fraudulent)
	}
}

func TestGraphRiskFloor(t *testing.T) {
	b := NewBlender()
	benign := domain.RiskScores{Normal: 0.9, Suspicious: 0.07, Fraudulent: 0.03}

	below := b.Blend(&Input{
		Members:   model.MemberOutputs{Forest: benign, MLP: benign, LSTM: benign},
		GraphRisk: 0.7, // not strictly above the threshold
		Text:      domain.UniformScores(),
	})
	above := b.Blend(&Input{
		Members:   model.MemberOutputs{Forest: benign, MLP: benign, LSTM: benign},
		GraphRisk: 0.71,
		Text:      domain.UniformScores(),
	})

	if above.Scores.Fraudulent <= below.Scores.Fraudulent {
		t.Errorf("graph risk above threshold should raise fraudulent: %v <= %v",
			above.Scores.Fraudulent, below.Scores.Fraudulent)
	}
}

func TestFloorDoesNotLowerScore(t *testing.T) {
	b := NewBlender()
	fraud := domain.RiskScores{Normal: 0.02, Suspicious: 0.03, Fraudulent: 0.95}

	res := b.Blend(&Input{
		Members: model.MemberOutputs{Forest: fraud, MLP: fraud, LSTM: fraud, Anomaly: true},
		Text:    domain.RiskScores{Normal: 0.02, Suspicious: 0.03, Fraudulent: 0.95},
	})

	// 0.95 already exceeds the 0.7 floor; flooring must be max, not set.
	if res.Scores.Fraudulent < 0.5 {
		t.Errorf("fraudulent = %v, floor should not reduce a higher score", res.Scores.Fraudulent)
	}
}

func TestRiskLevelMedium(t *testing.T) {
	b := NewBlender()

	tests := []struct {
		name   string
		scores domain.RiskScores
		want   domain.RiskLevel
	}{
		{"elevated fraud", domain.RiskScores{Normal: 0.5, Suspicious: 0.1, Fraudulent: 0.4}, domain.RiskLevelMedium},
		{"elevated suspicious", domain.RiskScores{Normal: 0.35, Suspicious: 0.55, Fraudulent: 0.1}, domain.RiskLevelMedium},
		{"boundary fraud", domain.RiskScores{Normal: 0.55, Suspicious: 0.15, Fraudulent: 0.3}, domain.RiskLevelLow},
		{"high", domain.RiskScores{Normal: 0.1, Suspicious: 0.15, Fraudulent: 0.75}, domain.RiskLevelHigh},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := b.riskLevel(tt.scores); got != tt.want {
				t.Errorf("riskLevel(%+v) = %s, want %s", tt.scores, got, tt.want)
			}
		})
	}
}

func TestBlockThresholdStrict(t *testing.T) {
	b := NewBlender()
	// Exactly at the threshold must not block.
	at := domain.RiskScores{Normal: 0.2, Suspicious: 0.1, Fraudulent: 0.7}
	if lvl := b.riskLevel(at); lvl != domain.RiskLevelMedium {
		t.Errorf("risk level at exactly 0.7 = %s, want MEDIUM", lvl)
	}
	if at.Fraudulent > b.BlockThreshold {
		t.Error("0.7 must not exceed the strict block threshold")
	}
}

func TestNormalizeDegenerate(t *testing.T) {
	got := normalize(domain.RiskScores{})
	if got != domain.UniformScores() {
		t.Errorf("normalize of zero vector = %+v, want uniform", got)
	}
}

func TestBlendUniform(t *testing.T) {
	b := NewBlender()
	res := b.Blend(&Input{
		Members:   uniformMembers(),
		Text:      domain.UniformScores(),
		RuleScore: 0.3,
	})
	assertNormalized(t, res.Scores)
}
