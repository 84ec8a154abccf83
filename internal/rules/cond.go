package rules

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/waveslice/retrig/internal/bank"
)

// Field names the runtime context variables a condition may compare.
type Field string

const (
	FieldConsecutivePlays Field = "consecutive_plays"
	FieldTotalPlays       Field = "total_plays"
	FieldLastBeat         Field = "last_beat"
	FieldBeat             Field = "beat"
	FieldVelocity         Field = "velocity"
	FieldSliceIndex       Field = "slice_index"
)

var validFields = map[Field]bool{
	FieldConsecutivePlays: true,
	FieldTotalPlays:       true,
	FieldLastBeat:         true,
	FieldBeat:             true,
	FieldVelocity:         true,
	FieldSliceIndex:       true,
}

// Op is a numeric comparison operator.
type Op string

const (
	OpLT Op = "<"
	OpGT Op = ">"
	OpLE Op = "<="
	OpGE Op = ">="
	OpEQ Op = "=="
)

// clause is one term of a condition: either a numeric comparison
// against a context field or a role equality test.
type clause struct {
	field Field
	op    Op
	value float64

	role   bank.Role
	isRole bool
}

// Condition is the compiled form of a rule's boolean expression:
// a conjunction of clauses, parsed once at registration and walked
// per evaluation without re-parsing.
type Condition struct {
	clauses []clause
	source  string
}

// String returns the original expression text.
func (c Condition) String() string { return c.source }

// evalContext is the snapshot a condition is evaluated against.
type evalContext struct {
	consecutivePlays int
	totalPlays       int
	lastBeat         float64
	beat             float64
	velocity         float64
	sliceIndex       int
	role             bank.Role
}

func (c Condition) eval(ctx evalContext) bool {
	for _, cl := range c.clauses {
		if !cl.eval(ctx) {
			return false
		}
	}
	return true
}

func (cl clause) eval(ctx evalContext) bool {
	if cl.isRole {
		return ctx.role == cl.role
	}

	var lhs float64
	switch cl.field {
	case FieldConsecutivePlays:
		lhs = float64(ctx.consecutivePlays)
	case FieldTotalPlays:
		lhs = float64(ctx.totalPlays)
	case FieldLastBeat:
		lhs = ctx.lastBeat
	case FieldBeat:
		lhs = ctx.beat
	case FieldVelocity:
		lhs = ctx.velocity
	case FieldSliceIndex:
		lhs = float64(ctx.sliceIndex)
	}

	switch cl.op {
	case OpLT:
		return lhs < cl.value
	case OpGT:
		return lhs > cl.value
	case OpLE:
		return lhs <= cl.value
	case OpGE:
		return lhs >= cl.value
	case OpEQ:
		return lhs == cl.value
	}
	return false
}

// ParseCondition compiles a condition expression into its typed form.
//
// Grammar: clauses joined by "&&". Each clause is either
//
//	<field> <op> <number>     e.g. consecutive_plays >= 3
//	role == <role>            e.g. role == drums
//	true                      always matches
//
// Unknown fields, operators, and role names are rejected here, at
// registration time.
func ParseCondition(expr string) (Condition, error) {
	cond := Condition{source: expr}

	trimmed := strings.TrimSpace(expr)
	if trimmed == "" || trimmed == "true" {
		return cond, nil // empty conjunction: always true
	}

	for _, part := range strings.Split(trimmed, "&&") {
		cl, err := parseClause(strings.TrimSpace(part))
		if err != nil {
			return Condition{}, err
		}
		cond.clauses = append(cond.clauses, cl)
	}
	return cond, nil
}

func parseClause(s string) (clause, error) {
	tokens := strings.Fields(s)
	if len(tokens) != 3 {
		return clause{}, &InvalidRuleError{
			Field:   "condition",
			Message: fmt.Sprintf("clause %q must be `field op value`", s),
		}
	}

	field, opTok, valTok := tokens[0], tokens[1], tokens[2]

	if field == "role" {
		if opTok != string(OpEQ) {
			return clause{}, &InvalidRuleError{
				Field:   "condition",
				Message: fmt.Sprintf("role comparison supports only ==, got %q", opTok),
			}
		}
		role := bank.ParseRole(valTok)
		if role == bank.RoleUnknown && valTok != "unknown" {
			return clause{}, &InvalidRuleError{
				Field:   "condition",
				Message: fmt.Sprintf("unknown role %q", valTok),
			}
		}
		return clause{isRole: true, role: role}, nil
	}

	if !validFields[Field(field)] {
		return clause{}, &InvalidRuleError{
			Field:   "condition",
			Message: fmt.Sprintf("unknown context field %q", field),
		}
	}

	op := Op(opTok)
	switch op {
	case OpLT, OpGT, OpLE, OpGE, OpEQ:
	default:
		return clause{}, &InvalidRuleError{
			Field:   "condition",
			Message: fmt.Sprintf("unknown operator %q", opTok),
		}
	}

	value, err := strconv.ParseFloat(valTok, 64)
	if err != nil {
		return clause{}, &InvalidRuleError{
			Field:   "condition",
			Message: fmt.Sprintf("literal %q is not a number", valTok),
		}
	}

	return clause{field: Field(field), op: op, value: value}, nil
}
