package condition

import (
	"fmt"
	"strings"

	"github.com/sqlflow/sqlflow"
)

// Value is the dynamically-typed result of evaluating a sub-expression.
// Exactly one field is meaningful, selected by Kind.
type Value struct {
	Kind  Kind
	Str   string
	Int   int64
	Float float64
	Bool  bool
}

// Evaluate parses and evaluates a condition expression already through
// variable substitution, returning its boolean result. A non-boolean final
// value is an error (spec §4.2 "Evaluation contract").
func Evaluate(expr string) (bool, error) {
	node, err := Parse(expr)
	if err != nil {
		return false, err
	}

	v, err := eval(node)
	if err != nil {
		return false, err
	}

	if v.Kind != KindBool {
		return false, fmt.Errorf("%w: condition %q does not evaluate to a boolean", sqlflow.ErrEvaluation, expr)
	}

	return v.Bool, nil
}

func eval(n Node) (Value, error) {
	switch node := n.(type) {
	case Literal:
		return Value{Kind: node.Kind, Str: node.Str, Int: node.Int, Float: node.Float, Bool: node.Bool}, nil
	case Ident:
		// Unknown identifiers are treated as string literals of their own
		// name (spec §4.2) — repairs unquoted shell-style bare words like
		// `us-east` surviving substitution.
		return Value{Kind: KindString, Str: node.Name}, nil
	case Unary:
		return evalUnary(node)
	case Binary:
		return evalBinary(node)
	case Compare:
		return evalCompare(node)
	case BoolOp:
		return evalBoolOp(node)
	default:
		return Value{}, fmt.Errorf("%w: unsupported expression node %T", sqlflow.ErrEvaluation, n)
	}
}

func evalUnary(node Unary) (Value, error) {
	x, err := eval(node.X)
	if err != nil {
		return Value{}, err
	}

	if x.Kind != KindBool {
		return Value{}, fmt.Errorf("%w: 'not' requires a boolean operand", sqlflow.ErrEvaluation)
	}

	return Value{Kind: KindBool, Bool: !x.Bool}, nil
}

// evalBinary handles only '-'. Between two strings it repairs the hyphenated
// bare-word case (`us - east` -> `us-east`); any other operand pairing,
// numbers included, is prohibited arithmetic (spec §4.2).
func evalBinary(node Binary) (Value, error) {
	left, err := eval(node.Left)
	if err != nil {
		return Value{}, err
	}

	right, err := eval(node.Right)
	if err != nil {
		return Value{}, err
	}

	if left.Kind == KindString && right.Kind == KindString {
		return Value{Kind: KindString, Str: left.Str + "-" + right.Str}, nil
	}

	return Value{}, fmt.Errorf("%w: unsupported operand types for '-' in condition", sqlflow.ErrEvaluation)
}

func evalBoolOp(node BoolOp) (Value, error) {
	switch node.Op {
	case "and":
		result := true

		for _, operand := range node.Operands {
			v, err := eval(operand)
			if err != nil {
				return Value{}, err
			}

			if v.Kind != KindBool {
				return Value{}, fmt.Errorf("%w: 'and' requires boolean operands", sqlflow.ErrEvaluation)
			}

			result = result && v.Bool
			if !result {
				break
			}
		}

		return Value{Kind: KindBool, Bool: result}, nil
	case "or":
		result := false

		for _, operand := range node.Operands {
			v, err := eval(operand)
			if err != nil {
				return Value{}, err
			}

			if v.Kind != KindBool {
				return Value{}, fmt.Errorf("%w: 'or' requires boolean operands", sqlflow.ErrEvaluation)
			}

			result = result || v.Bool
			if result {
				break
			}
		}

		return Value{Kind: KindBool, Bool: result}, nil
	default:
		return Value{}, fmt.Errorf("%w: unsupported boolean operator %q", sqlflow.ErrEvaluation, node.Op)
	}
}

func evalCompare(node Compare) (Value, error) {
	left, err := eval(node.Left)
	if err != nil {
		return Value{}, err
	}

	right, err := eval(node.Right)
	if err != nil {
		return Value{}, err
	}

	if (node.Op == "==" || node.Op == "!=") && isBoolStringPair(left, right) {
		return evalBoolStringCompare(node.Op, left, right), nil
	}

	switch node.Op {
	case "==":
		return Value{Kind: KindBool, Bool: valuesEqual(left, right)}, nil
	case "!=":
		return Value{Kind: KindBool, Bool: !valuesEqual(left, right)}, nil
	default:
		return evalOrdered(node.Op, left, right)
	}
}

func isBoolStringPair(a, b Value) bool {
	return (a.Kind == KindBool && b.Kind == KindString) || (b.Kind == KindBool && a.Kind == KindString)
}

// evalBoolStringCompare matches a boolean against a string case-insensitively
// against "true"/"false" (spec §4.2 "String↔boolean equality").
func evalBoolStringCompare(op string, a, b Value) Value {
	var boolVal bool

	var strVal string

	if a.Kind == KindBool {
		boolVal, strVal = a.Bool, b.Str
	} else {
		boolVal, strVal = b.Bool, a.Str
	}

	normalized := strings.ToLower(strVal)
	matches := (boolVal && normalized == "true") || (!boolVal && normalized == "false")

	if op == "!=" {
		matches = !matches
	}

	return Value{Kind: KindBool, Bool: matches}
}

func valuesEqual(a, b Value) bool {
	if a.Kind != b.Kind {
		if isNumeric(a) && isNumeric(b) {
			return asFloat(a) == asFloat(b)
		}

		return false
	}

	switch a.Kind {
	case KindString:
		return a.Str == b.Str
	case KindInt:
		return a.Int == b.Int
	case KindFloat:
		return a.Float == b.Float
	case KindBool:
		return a.Bool == b.Bool
	case KindNull:
		return true
	default:
		return false
	}
}

func evalOrdered(op string, a, b Value) (Value, error) {
	if a.Kind == KindString && b.Kind == KindString {
		return Value{Kind: KindBool, Bool: compareOrdering(op, strings.Compare(a.Str, b.Str))}, nil
	}

	if isNumeric(a) && isNumeric(b) {
		fa, fb := asFloat(a), asFloat(b)

		switch {
		case fa < fb:
			return Value{Kind: KindBool, Bool: compareOrdering(op, -1)}, nil
		case fa > fb:
			return Value{Kind: KindBool, Bool: compareOrdering(op, 1)}, nil
		default:
			return Value{Kind: KindBool, Bool: compareOrdering(op, 0)}, nil
		}
	}

	return Value{}, fmt.Errorf("%w: cannot order-compare mismatched types with %q", sqlflow.ErrEvaluation, op)
}

func compareOrdering(op string, cmp int) bool {
	switch op {
	case "<":
		return cmp < 0
	case "<=":
		return cmp <= 0
	case ">":
		return cmp > 0
	case ">=":
		return cmp >= 0
	default:
		return false
	}
}

func isNumeric(v Value) bool {
	return v.Kind == KindInt || v.Kind == KindFloat
}

func asFloat(v Value) float64 {
	if v.Kind == KindInt {
		return float64(v.Int)
	}

	return v.Float
}
