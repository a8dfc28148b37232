package strategy

import (
	"fmt"
	"strings"

	"trade_engine/internal/indicator"
	"trade_engine/internal/models"

	"github.com/bytedance/sonic"
)

// Strategy — compiled, immutable form of a Definition. Test trees live in a
// flat node arena referenced by index; the arena is validated acyclic at
// compile time so evaluation always terminates.
type Strategy struct {
	Name string

	nodes []node
	buy   int // arena index, -1 when the definition has no buy tree
	sell  int

	// Requirements gates indicator computation per symbol: only listed
	// (kind, timeframe) pairs are ever computed.
	Requirements indicator.Requirements
}

type nodeKind uint8

const (
	nodeAnd nodeKind = iota
	nodeOr
	nodeCmp
)

type node struct {
	kind     nodeKind
	children []int
	cmp      *comparison
}

type comparison struct {
	// Left-hand side: either a live indicator value or a metric expression.
	left   models.IndicatorKey
	metric *Expr

	op string

	// Right-hand side, exactly one set.
	value     float64
	hasValue  bool
	ref       *models.IndicatorKey
	valueExpr *Expr
	calc      *calcNode
}

type calcNode struct {
	name string
	expr *Expr
	subs []*calcNode
}

var validOps = map[string]bool{
	"<": true, "<=": true, ">": true, ">=": true, "==": true, "!=": true,
}

var validKinds = map[models.IndicatorKind]bool{
	models.IndRSI: true, models.IndStochRSI: true,
	models.IndMACD: true, models.IndMACDSignal: true,
	models.IndBollingerUp: true, models.IndBollingerMid: true, models.IndBollingerLow: true,
}

// ParseDefinition decodes a stored strategy JSON document.
func ParseDefinition(raw []byte) (*Definition, error) {
	var def Definition
	if err := sonic.Unmarshal(raw, &def); err != nil {
		return nil, fmt.Errorf("decode strategy definition: %w", err)
	}
	return &def, nil
}

// Compile builds the arena, rejects malformed nodes and cyclic references,
// and derives the indicator requirement set.
func Compile(def *Definition) (*Strategy, error) {
	s := &Strategy{
		Name:         def.Name,
		buy:          -1,
		sell:         -1,
		Requirements: indicator.Requirements{},
	}
	c := &compiler{def: def, s: s, visiting: map[string]bool{}}

	var err error
	if def.Buy != nil {
		if s.buy, err = c.compileNode(def.Buy); err != nil {
			return nil, fmt.Errorf("strategy %q buy tree: %w", def.Name, err)
		}
	}
	if def.Sell != nil {
		if s.sell, err = c.compileNode(def.Sell); err != nil {
			return nil, fmt.Errorf("strategy %q sell tree: %w", def.Name, err)
		}
	}
	return s, nil
}

type compiler struct {
	def      *Definition
	s        *Strategy
	visiting map[string]bool // named tests on the current DFS path
}

func (c *compiler) compileNode(td *TestDef) (int, error) {
	switch {
	case td.Ref != "":
		sub, ok := c.def.Tests[td.Ref]
		if !ok {
			return -1, fmt.Errorf("unknown test reference %q", td.Ref)
		}
		if c.visiting[td.Ref] {
			return -1, fmt.Errorf("cyclic test reference %q", td.Ref)
		}
		c.visiting[td.Ref] = true
		id, err := c.compileNode(sub)
		delete(c.visiting, td.Ref)
		return id, err

	case td.Logic != "":
		var kind nodeKind
		switch strings.ToUpper(td.Logic) {
		case "AND":
			kind = nodeAnd
		case "OR":
			kind = nodeOr
		default:
			return -1, fmt.Errorf("unknown logic %q", td.Logic)
		}
		n := node{kind: kind}
		for _, child := range td.Conditions {
			id, err := c.compileNode(child)
			if err != nil {
				return -1, err
			}
			n.children = append(n.children, id)
		}
		return c.push(n), nil

	default:
		cmp, err := c.compileComparison(td)
		if err != nil {
			return -1, err
		}
		return c.push(node{kind: nodeCmp, cmp: cmp}), nil
	}
}

func (c *compiler) push(n node) int {
	c.s.nodes = append(c.s.nodes, n)
	return len(c.s.nodes) - 1
}

func (c *compiler) compileComparison(td *TestDef) (*comparison, error) {
	if !validOps[td.Operator] {
		return nil, fmt.Errorf("unknown operator %q", td.Operator)
	}
	cmp := &comparison{op: td.Operator}

	// left-hand side
	switch {
	case td.Metric != "":
		e, err := ParseExpr(td.Metric)
		if err != nil {
			return nil, fmt.Errorf("metric: %w", err)
		}
		cmp.metric = e
		c.requireExprVars(e)
	case td.Indicator != "":
		key, err := indicatorKey(td.Indicator, td.Timeframe)
		if err != nil {
			return nil, err
		}
		cmp.left = key
		c.s.Requirements.Merge(indicator.Requirements{key: {Period: td.Period}})
	default:
		return nil, fmt.Errorf("comparison needs an indicator or a metric")
	}

	// right-hand side
	set := 0
	if td.Value != nil {
		cmp.value, cmp.hasValue = *td.Value, true
		set++
	}
	if td.ValueIndicator != "" {
		key, err := indicatorKey(td.ValueIndicator, td.ValueTimeframe)
		if err != nil {
			return nil, err
		}
		cmp.ref = &key
		c.s.Requirements.Merge(indicator.Requirements{key: {}})
		set++
	}
	if td.ValueMetric != "" {
		e, err := ParseExpr(td.ValueMetric)
		if err != nil {
			return nil, fmt.Errorf("value metric: %w", err)
		}
		cmp.valueExpr = e
		c.requireExprVars(e)
		set++
	}
	if td.ValueCalc != nil {
		calc, err := c.compileCalc(td.ValueCalc)
		if err != nil {
			return nil, err
		}
		cmp.calc = calc
		set++
	}
	if set != 1 {
		return nil, fmt.Errorf("comparison needs exactly one threshold, got %d", set)
	}
	return cmp, nil
}

func (c *compiler) compileCalc(cd *CalcDef) (*calcNode, error) {
	e, err := ParseExpr(cd.Expr)
	if err != nil {
		return nil, fmt.Errorf("calculation %q: %w", cd.Name, err)
	}
	cn := &calcNode{name: strings.ToLower(cd.Name), expr: e}
	c.requireExprVars(e)
	for _, sub := range cd.Subs {
		sc, err := c.compileCalc(sub)
		if err != nil {
			return nil, err
		}
		cn.subs = append(cn.subs, sc)
	}
	return cn, nil
}

// requireExprVars registers every qualified indicator variable (rsi_3m,
// macd_signal_1h, ...) the expression references.
func (c *compiler) requireExprVars(e *Expr) {
	e.Vars(func(name string) {
		if key, ok := parseIndicatorVar(name); ok {
			c.s.Requirements.Merge(indicator.Requirements{key: {}})
		}
	})
}

func indicatorKey(kind, tf string) (models.IndicatorKey, error) {
	k := models.IndicatorKind(strings.ToLower(kind))
	if !validKinds[k] {
		return models.IndicatorKey{}, fmt.Errorf("unknown indicator %q", kind)
	}
	t := models.Timeframe(tf)
	if t == "" {
		t = models.BaseTimeframe
	}
	if t.Duration() == 0 {
		return models.IndicatorKey{}, fmt.Errorf("unknown timeframe %q", tf)
	}
	return models.IndicatorKey{Kind: k, Timeframe: t}, nil
}

// parseIndicatorVar maps "rsi_3m" style names to a structured key.
func parseIndicatorVar(name string) (models.IndicatorKey, bool) {
	i := strings.LastIndex(name, "_")
	if i < 0 {
		return models.IndicatorKey{}, false
	}
	kind := models.IndicatorKind(name[:i])
	tf := models.Timeframe(name[i+1:])
	if !validKinds[kind] || tf.Duration() == 0 {
		return models.IndicatorKey{}, false
	}
	return models.IndicatorKey{Kind: kind, Timeframe: tf}, true
}
