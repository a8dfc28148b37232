package strategy

import (
	"trade_engine/internal/models"
)

// IndicatorSource resolves the latest live value of one indicator.
type IndicatorSource func(key models.IndicatorKey) (float64, bool)

// EvalContext — read-only state a test tree is evaluated against.
// Position is nil for buy evaluation and the open position for sell
// evaluation. Evaluation is deterministic and side-effect-free.
type EvalContext struct {
	Indicators IndicatorSource
	Position   *models.Position
	Price      float64
}

// EvaluateBuy runs the buy tree. An absent tree never triggers.
func (s *Strategy) EvaluateBuy(ctx EvalContext) bool {
	if s.buy < 0 {
		return false
	}
	return s.evalNode(s.buy, ctx)
}

// EvaluateSell runs the sell tree against the supplied open position.
func (s *Strategy) EvaluateSell(ctx EvalContext) bool {
	if s.sell < 0 || ctx.Position == nil {
		return false
	}
	return s.evalNode(s.sell, ctx)
}

func (s *Strategy) evalNode(id int, ctx EvalContext) bool {
	n := &s.nodes[id]
	switch n.kind {
	case nodeAnd:
		// an empty combined test must never vacuously trigger a trade
		if len(n.children) == 0 {
			return false
		}
		for _, child := range n.children {
			if !s.evalNode(child, ctx) {
				return false
			}
		}
		return true

	case nodeOr:
		for _, child := range n.children {
			if s.evalNode(child, ctx) {
				return true
			}
		}
		return false

	default:
		return n.cmp.eval(ctx)
	}
}

// eval resolves both sides and applies the operator. Any unresolvable side
// (missing indicator, missing position variable, failed calculation) makes
// the comparison false — it never propagates to the caller.
func (c *comparison) eval(ctx EvalContext) bool {
	vars := ctx.resolver()

	var left float64
	var ok bool
	if c.metric != nil {
		left, ok = c.metric.Eval(vars)
	} else {
		left, ok = ctx.Indicators(c.left)
	}
	if !ok {
		return false
	}

	var right float64
	switch {
	case c.hasValue:
		right = c.value
	case c.ref != nil:
		right, ok = ctx.Indicators(*c.ref)
	case c.valueExpr != nil:
		right, ok = c.valueExpr.Eval(vars)
	case c.calc != nil:
		right, ok = c.calc.eval(vars)
	default:
		ok = false
	}
	if !ok {
		return false
	}

	switch c.op {
	case "<":
		return left < right
	case "<=":
		return left <= right
	case ">":
		return left > right
	case ">=":
		return left >= right
	case "==":
		return left == right
	case "!=":
		return left != right
	}
	return false
}

// eval runs sub-calculations depth-first and binds their results as
// variables in the parent expression.
func (c *calcNode) eval(vars VarResolver) (float64, bool) {
	if len(c.subs) == 0 {
		return c.expr.Eval(vars)
	}
	bound := make(map[string]float64, len(c.subs))
	for _, sub := range c.subs {
		v, ok := sub.eval(vars)
		if !ok {
			return 0, false
		}
		bound[sub.name] = v
	}
	return c.expr.Eval(func(name string) (float64, bool) {
		if v, ok := bound[name]; ok {
			return v, true
		}
		return vars(name)
	})
}

// resolver binds the metric variable vocabulary: position-derived values
// (prix_achat, prix_actuel, prix_max, quantite, montant_investi) and
// qualified indicator names (rsi_3m, macd_signal_1h, ...).
func (ctx EvalContext) resolver() VarResolver {
	return func(name string) (float64, bool) {
		switch name {
		case "prix_actuel":
			if ctx.Price > 0 {
				return ctx.Price, true
			}
			if ctx.Position != nil {
				return ctx.Position.CurrentPrice, true
			}
			return 0, false
		case "prix_achat":
			if ctx.Position == nil {
				return 0, false
			}
			return ctx.Position.EntryPrice, true
		case "prix_max":
			if ctx.Position == nil {
				return 0, false
			}
			return ctx.Position.MaxPrice, true
		case "quantite":
			if ctx.Position == nil {
				return 0, false
			}
			return ctx.Position.Quantity, true
		case "montant_investi":
			if ctx.Position == nil {
				return 0, false
			}
			return ctx.Position.Invested, true
		}
		if key, ok := parseIndicatorVar(name); ok {
			return ctx.Indicators(key)
		}
		return 0, false
	}
}
