package strategy

import (
	"testing"

	"trade_engine/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatPtr(v float64) *float64 { return &v }

func TestParseDefinition(t *testing.T) {
	raw := []byte(`{
		"name": "rsi_dip",
		"buy_conditions": {
			"logic": "AND",
			"conditions": [
				{"indicator": "rsi", "timeframe": "3m", "operator": "<", "value": 30}
			]
		},
		"sell_conditions": {
			"indicator": "rsi", "timeframe": "3m", "operator": ">", "value": 70
		}
	}`)
	def, err := ParseDefinition(raw)
	require.NoError(t, err)
	assert.Equal(t, "rsi_dip", def.Name)
	require.NotNil(t, def.Buy)
	require.Len(t, def.Buy.Conditions, 1)
	assert.Equal(t, "rsi", def.Buy.Conditions[0].Indicator)
}

func TestCompileDerivesRequirements(t *testing.T) {
	def := &Definition{
		Name: "multi",
		Buy: &TestDef{
			Logic: "AND",
			Conditions: []*TestDef{
				{Indicator: "rsi", Timeframe: "3m", Period: 7, Operator: "<", Value: floatPtr(30)},
				{Indicator: "macd", Timeframe: "1h", Operator: ">", ValueIndicator: "macd_signal", ValueTimeframe: "1h"},
			},
		},
		Sell: &TestDef{
			Metric: "prix_actuel - rsi_5m", Operator: "<", Value: floatPtr(0),
		},
	}
	s, err := Compile(def)
	require.NoError(t, err)

	assert.Equal(t, 7, s.Requirements[models.IndicatorKey{Kind: models.IndRSI, Timeframe: models.TF3m}].Period)
	assert.Contains(t, s.Requirements, models.IndicatorKey{Kind: models.IndMACD, Timeframe: models.TF1h})
	assert.Contains(t, s.Requirements, models.IndicatorKey{Kind: models.IndMACDSignal, Timeframe: models.TF1h})
	// qualified names inside metric expressions count as requirements too
	assert.Contains(t, s.Requirements, models.IndicatorKey{Kind: models.IndRSI, Timeframe: models.TF5m})
}

func TestCompileNamedTestReference(t *testing.T) {
	def := &Definition{
		Name: "refs",
		Tests: map[string]*TestDef{
			"oversold": {Indicator: "rsi", Timeframe: "1m", Operator: "<", Value: floatPtr(30)},
		},
		Buy: &TestDef{Logic: "OR", Conditions: []*TestDef{{Ref: "oversold"}}},
	}
	_, err := Compile(def)
	assert.NoError(t, err)

	def.Buy = &TestDef{Ref: "missing"}
	_, err = Compile(def)
	assert.ErrorContains(t, err, "unknown test reference")
}

func TestCompileRejectsCyclicReference(t *testing.T) {
	def := &Definition{
		Name: "cycle",
		Tests: map[string]*TestDef{
			"a": {Logic: "AND", Conditions: []*TestDef{{Ref: "b"}}},
			"b": {Logic: "AND", Conditions: []*TestDef{{Ref: "a"}}},
		},
		Buy: &TestDef{Ref: "a"},
	}
	_, err := Compile(def)
	assert.ErrorContains(t, err, "cyclic test reference")
}

func TestCompileValidation(t *testing.T) {
	cases := []struct {
		name string
		td   *TestDef
		want string
	}{
		{
			"unknown operator",
			&TestDef{Indicator: "rsi", Operator: "~", Value: floatPtr(1)},
			"unknown operator",
		},
		{
			"unknown indicator",
			&TestDef{Indicator: "vwap", Operator: "<", Value: floatPtr(1)},
			"unknown indicator",
		},
		{
			"unknown timeframe",
			&TestDef{Indicator: "rsi", Timeframe: "2m", Operator: "<", Value: floatPtr(1)},
			"unknown timeframe",
		},
		{
			"unknown logic",
			&TestDef{Logic: "XOR"},
			"unknown logic",
		},
		{
			"no threshold",
			&TestDef{Indicator: "rsi", Operator: "<"},
			"exactly one threshold",
		},
		{
			"two thresholds",
			&TestDef{Indicator: "rsi", Operator: "<", Value: floatPtr(1), ValueMetric: "prix_achat"},
			"exactly one threshold",
		},
		{
			"no left side",
			&TestDef{Operator: "<", Value: floatPtr(1)},
			"indicator or a metric",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Compile(&Definition{Name: "bad", Buy: tc.td})
			assert.ErrorContains(t, err, tc.want)
		})
	}
}

func TestCompileDefaultTimeframe(t *testing.T) {
	def := &Definition{
		Name: "base",
		Buy:  &TestDef{Indicator: "rsi", Operator: "<", Value: floatPtr(30)},
	}
	s, err := Compile(def)
	require.NoError(t, err)
	assert.Contains(t, s.Requirements, models.IndicatorKey{Kind: models.IndRSI, Timeframe: models.BaseTimeframe})
}
