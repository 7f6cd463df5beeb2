package tools

import (
	"context"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"math"
	"strconv"
	"strings"
)

// sanitizeExpression keeps digits, the four operators, parentheses, dots and
// whitespace.
func sanitizeExpression(expr string) string {
	var b strings.Builder
	for _, r := range expr {
		switch {
		case r >= '0' && r <= '9', r == '.', r == '(', r == ')', r == ' ', r == '\t':
			b.WriteRune(r)
		case strings.ContainsRune("+-*/", r):
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

func (r *Registry) calculate(_ context.Context, args map[string]string) (string, error) {
	expr := args["expression"]
	clean := sanitizeExpression(expr)
	if clean == "" {
		return "", userError("Invalid mathematical expression")
	}
	v, err := Evaluate(clean)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s = %s", strings.TrimSpace(expr), strconv.FormatFloat(v, 'f', -1, 64)), nil
}

// Evaluate computes a float arithmetic expression of + - * / and parentheses.
func Evaluate(expr string) (float64, error) {
	node, err := parser.ParseExpr(expr)
	if err != nil {
		return 0, fmt.Errorf("tools: parse expression: %w", err)
	}
	v, err := eval(node)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, userError("Could not calculate result")
	}
	return v, nil
}

func eval(n ast.Expr) (float64, error) {
	switch n := n.(type) {
	case *ast.BasicLit:
		if n.Kind != token.INT && n.Kind != token.FLOAT {
			return 0, fmt.Errorf("tools: unsupported literal %s", n.Value)
		}
		return strconv.ParseFloat(n.Value, 64)
	case *ast.ParenExpr:
		return eval(n.X)
	case *ast.UnaryExpr:
		x, err := eval(n.X)
		if err != nil {
			return 0, err
		}
		switch n.Op {
		case token.SUB:
			return -x, nil
		case token.ADD:
			return x, nil
		}
		return 0, fmt.Errorf("tools: unsupported operator %s", n.Op)
	case *ast.BinaryExpr:
		x, err := eval(n.X)
		if err != nil {
			return 0, err
		}
		y, err := eval(n.Y)
		if err != nil {
			return 0, err
		}
		switch n.Op {
		case token.ADD:
			return x + y, nil
		case token.SUB:
			return x - y, nil
		case token.MUL:
			return x * y, nil
		case token.QUO:
			return x / y, nil
		}
		return 0, fmt.Errorf("tools: unsupported operator %s", n.Op)
	}
	return 0, fmt.Errorf("tools: unsupported expression %T", n)
}
