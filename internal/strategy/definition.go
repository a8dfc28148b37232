package strategy

// Stored strategy definitions, JSON as kept by the configuration service.
// The vocabulary (prix_achat, prix_actuel, prix_max metric variables) is the
// data contract of the existing strategy corpus and is preserved as-is.

// Definition — one named strategy: a buy tree and a sell tree, plus
// optional named sub-tests shared between them via {"ref": "..."} nodes.
type Definition struct {
	Name  string              `json:"name"`
	Tests map[string]*TestDef `json:"tests,omitempty"`
	Buy   *TestDef            `json:"buy_conditions"`
	Sell  *TestDef            `json:"sell_conditions"`
}

// TestDef — raw test-tree node. Exactly one shape applies:
//
//   - combined:   {"logic": "AND"|"OR", "conditions": [...]}
//   - reference:  {"ref": "<named test>"}
//   - comparison: indicator or metric left side, an operator, and a
//     threshold that is a fixed value, a live indicator reference, a metric
//     expression or a calculation.
type TestDef struct {
	Logic      string     `json:"logic,omitempty"`
	Conditions []*TestDef `json:"conditions,omitempty"`

	Ref string `json:"ref,omitempty"`

	Indicator string `json:"indicator,omitempty"`
	Timeframe string `json:"timeframe,omitempty"`
	Period    int    `json:"period,omitempty"`
	// Metric is a left-hand expression over position variables and
	// qualified indicator names, e.g. "prix_max / prix_achat".
	Metric string `json:"metric,omitempty"`

	Operator string `json:"operator,omitempty"`

	Value          *float64  `json:"value,omitempty"`
	ValueIndicator string    `json:"value_indicator,omitempty"`
	ValueTimeframe string    `json:"value_timeframe,omitempty"`
	ValueMetric    string    `json:"value_metric,omitempty"`
	ValueCalc      *CalcDef  `json:"value_calc,omitempty"`
}

// CalcDef — named arithmetic calculation. Subs are evaluated depth-first
// and bound as variables in the parent expression.
type CalcDef struct {
	Name string     `json:"name"`
	Expr string     `json:"expr"`
	Subs []*CalcDef `json:"subs,omitempty"`
}
