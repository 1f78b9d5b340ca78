// Package godatautil turns OData $filter and $orderby expressions into
// sqlbuilder terms against a model table.
package godatautil

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	sb "fknsrs.biz/p/sqlbuilder"
	"github.com/gost/godata"

	"fknsrs.biz/p/ytcatalog/internal/sqlbuilderutil"
)

var (
	ErrFieldNotFound = errors.New("field not found")
	ErrUnsupported   = errors.New("unsupported expression")
)

// Fields limits the columns a client may reference. A nil Fields allows
// every column of the table.
type Fields []string

func (f Fields) allows(name string) bool {
	if f == nil {
		return true
	}

	for _, e := range f {
		if strings.EqualFold(e, name) {
			return true
		}
	}

	return false
}

func column(table *sqlbuilderutil.Table, fields Fields, name string) (*sb.BasicColumn, error) {
	if !fields.allows(name) {
		return nil, fmt.Errorf("%w: %s", ErrFieldNotFound, name)
	}

	c := table.C(name)
	if c == nil {
		return nil, fmt.Errorf("%w: %s", ErrFieldNotFound, name)
	}

	return c, nil
}

// ParseFilter parses s and builds a condition from it. An empty string gives
// a nil condition.
func ParseFilter(s string, table *sqlbuilderutil.Table, fields Fields) (sb.AsExpr, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}

	q, err := godata.ParseFilterString(s)
	if err != nil {
		return nil, fmt.Errorf("godatautil.ParseFilter: %w", err)
	}

	return MakeCondition(q, table, fields)
}

func MakeCondition(q *godata.GoDataFilterQuery, table *sqlbuilderutil.Table, fields Fields) (sb.AsExpr, error) {
	if q == nil || q.Tree == nil {
		return nil, nil
	}

	expr, err := makeCondition(q.Tree, table, fields)
	if err != nil {
		return nil, fmt.Errorf("godatautil.MakeCondition: %w", err)
	}

	return expr, nil
}

var comparisons = map[string]string{
	"eq": "=",
	"ne": "!=",
	"gt": ">",
	"ge": ">=",
	"lt": "<",
	"le": "<=",
}

func makeCondition(n *godata.ParseNode, table *sqlbuilderutil.Table, fields Fields) (sb.AsExpr, error) {
	switch n.Token.Type {
	case godata.FilterTokenLogical:
		op := strings.ToLower(n.Token.Value)

		if op == "and" || op == "or" {
			var a []sb.AsExpr
			for _, e := range n.Children {
				expr, err := makeCondition(e, table, fields)
				if err != nil {
					return nil, err
				}
				a = append(a, expr)
			}

			return sb.BooleanOperator(op, a...), nil
		}

		sqlOp, ok := comparisons[op]
		if !ok {
			return nil, fmt.Errorf("%w: logical operator %q", ErrUnsupported, n.Token.Value)
		}

		if len(n.Children) != 2 {
			return nil, fmt.Errorf("%w: %s must have exactly two operands; instead had %d", ErrUnsupported, op, len(n.Children))
		}
		if tokenType := n.Children[0].Token.Type; tokenType != godata.FilterTokenLiteral {
			return nil, fmt.Errorf("%w: %s left operand must be a field; was instead %s", ErrUnsupported, op, filterTokenName(tokenType))
		}

		c, err := column(table, fields, n.Children[0].Token.Value)
		if err != nil {
			return nil, err
		}

		v, err := value(n.Children[1].Token)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		return sb.BinaryOperator(sqlOp, c, sb.Bind(v)), nil
	case godata.FilterTokenFunc:
		switch strings.ToLower(n.Token.Value) {
		case "substringof", "contains":
			if len(n.Children) != 2 {
				return nil, fmt.Errorf("%w: substringof must have exactly two arguments; instead had %d", ErrUnsupported, len(n.Children))
			}
			str, field := n.Children[0], n.Children[1]
			if str.Token.Type == godata.FilterTokenLiteral {
				str, field = field, str
			}
			if tokenType := str.Token.Type; tokenType != godata.FilterTokenString {
				return nil, fmt.Errorf("%w: substringof needs a String argument; got %s", ErrUnsupported, filterTokenName(tokenType))
			}
			if tokenType := field.Token.Type; tokenType != godata.FilterTokenLiteral {
				return nil, fmt.Errorf("%w: substringof needs a field argument; got %s", ErrUnsupported, filterTokenName(tokenType))
			}

			c, err := column(table, fields, field.Token.Value)
			if err != nil {
				return nil, err
			}

			return sb.Ne(
				sb.Func("instr", c, sb.Bind(unquote(str.Token.Value))),
				sb.Literal("0"),
			), nil
		default:
			return nil, fmt.Errorf("%w: function %s", ErrUnsupported, n.Token.Value)
		}
	default:
		return nil, fmt.Errorf("%w: token type %s", ErrUnsupported, filterTokenName(n.Token.Type))
	}
}

func value(t *godata.Token) (interface{}, error) {
	switch t.Type {
	case godata.FilterTokenString:
		return unquote(t.Value), nil
	case godata.FilterTokenInteger:
		i, err := strconv.ParseInt(t.Value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: integer %q", ErrUnsupported, t.Value)
		}
		return i, nil
	case godata.FilterTokenFloat:
		f, err := strconv.ParseFloat(t.Value, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: float %q", ErrUnsupported, t.Value)
		}
		return f, nil
	case godata.FilterTokenBoolean:
		return strings.EqualFold(t.Value, "true"), nil
	default:
		return nil, fmt.Errorf("%w: operand type %s", ErrUnsupported, filterTokenName(t.Type))
	}
}

func filterTokenName(tokenType int) string {
	switch tokenType {
	case godata.FilterTokenOpenParen:
		return "OpenParen"
	case godata.FilterTokenCloseParen:
		return "CloseParen"
	case godata.FilterTokenWhitespace:
		return "Whitespace"
	case godata.FilterTokenNav:
		return "Nav"
	case godata.FilterTokenColon:
		return "Colon"
	case godata.FilterTokenComma:
		return "Comma"
	case godata.FilterTokenLogical:
		return "Logical"
	case godata.FilterTokenOp:
		return "Op"
	case godata.FilterTokenFunc:
		return "Func"
	case godata.FilterTokenLambda:
		return "Lambda"
	case godata.FilterTokenNull:
		return "Null"
	case godata.FilterTokenIt:
		return "It"
	case godata.FilterTokenRoot:
		return "Root"
	case godata.FilterTokenFloat:
		return "Float"
	case godata.FilterTokenInteger:
		return "Integer"
	case godata.FilterTokenString:
		return "String"
	case godata.FilterTokenDate:
		return "Date"
	case godata.FilterTokenTime:
		return "Time"
	case godata.FilterTokenDateTime:
		return "DateTime"
	case godata.FilterTokenBoolean:
		return "Boolean"
	case godata.FilterTokenLiteral:
		return "Literal"
	case godata.FilterTokenGeography:
		return "Geography"
	default:
		return strconv.Itoa(tokenType)
	}
}

// ParseOrders parses an $orderby value. An empty string gives defaultOrders.
func ParseOrders(s string, table *sqlbuilderutil.Table, fields Fields, defaultOrders ...sb.AsOrderingTerm) ([]sb.AsOrderingTerm, error) {
	if strings.TrimSpace(s) == "" {
		return defaultOrders, nil
	}

	q, err := godata.ParseOrderByString(s)
	if err != nil {
		return nil, fmt.Errorf("godatautil.ParseOrders: %w", err)
	}

	return MakeOrders(q, table, fields, defaultOrders...)
}

func MakeOrders(q *godata.GoDataOrderByQuery, table *sqlbuilderutil.Table, fields Fields, defaultOrders ...sb.AsOrderingTerm) ([]sb.AsOrderingTerm, error) {
	if q == nil || len(q.OrderByItems) == 0 {
		return defaultOrders, nil
	}

	var a []sb.AsOrderingTerm

	for _, item := range q.OrderByItems {
		c, err := column(table, fields, item.Field.Value)
		if err != nil {
			return nil, fmt.Errorf("godatautil.MakeOrders: %w", err)
		}

		if strings.EqualFold(item.Order, "desc") {
			a = append(a, sb.OrderDesc(c))
		} else {
			a = append(a, sb.OrderAsc(c))
		}
	}

	return a, nil
}

func unquote(s string) string {
	if len(s) < 2 {
		return s
	}

	return strings.ReplaceAll(s[1:len(s)-1], "''", "'")
}
