package rules

// BuiltinRules returns the default fraud heuristics loaded when no
// rule set has been configured.
func BuiltinRules() []*Rule {
	return []*Rule{
		{
			ID:         "rule-high-amount",
			Name:       "High transaction amount",
			Expression: `amount > 3000.0`,
			Weight:     1.0,
			Enabled:    true,
		},
		{
			ID:         "rule-night-activity",
			Name:       "Large purchase during night hours",
			Expression: `hour < 5 && amount > 500.0`,
			Weight:     0.6,
			Enabled:    true,
		},
		{
			ID:         "rule-velocity-burst",
			Name:       "Transaction velocity burst",
			Expression: `velocity_count > 10`,
			Weight:     0.8,
			Enabled:    true,
		},
		{
			ID:         "rule-missing-device",
			Name:       "Sizeable purchase with no device fingerprint",
			Expression: `device_info == "" && amount > 100.0`,
			Weight:     0.4,
			Enabled:    true,
		},
	}
}
