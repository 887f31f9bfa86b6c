package core

// These errors are user errors, not internal errors.

import (
	"fmt"
	"strconv"
)

// A ParseError reports a malformed statement or expression in a rule
// file: no delimiter, an unknown delimiter, an unterminated quote or
// bracket, or a bad binding qualifier.
type ParseError struct {
	File string
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	where := e.File
	if where == "" {
		where = "rules"
	}
	return where + ":" + strconv.Itoa(e.Line) + ": " + e.Msg
}

// UnresolvedName occurs when a reference does not bind to any
// extractor after climbing all enclosing scopes.
type UnresolvedName struct {
	Name string
	File string
}

func (e *UnresolvedName) Error() string {
	if e.File == "" {
		return `name "` + e.Name + `" not found`
	}
	return `name "` + e.Name + `" not found (rules from "` + e.File + `")`
}

// OperandError occurs when a coordinator or frame operand has the
// wrong kind: a stream expression where an extractor name is
// required, or the other way around.
type OperandError struct {
	Op   string
	Got  string
	Want string
}

func (e *OperandError) Error() string {
	return `operator "` + e.Op + `" wants ` + e.Want + `, got ` + e.Got
}

// ParseRequirementError occurs when a parse extractor runs against a
// token sequence that carries no dependency edges, or a lookup test
// names an absent annotation layer.
type ParseRequirementError struct {
	Name string
	Need string
}

func (e *ParseRequirementError) Error() string {
	return `extractor "` + e.Name + `" needs ` + e.Need + `, which the input does not provide`
}

// RecursionError occurs when a rule transitively references itself at
// the same token position.
type RecursionError struct {
	Name  string
	Start int
}

func (e *RecursionError) Error() string {
	return fmt.Sprintf("rule %q calls itself at token %d", e.Name, e.Start)
}

// Redefined occurs when a rule file gives the same name to two
// extractors in the same scope.
type Redefined struct {
	Name string
	As   string
}

func (e *Redefined) Error() string {
	return `"` + e.Name + `" is already defined as a ` + e.As + ` expression`
}

// ExprError reports a malformed phrase, coordinator, or frame
// expression body, with the offending expression attached.
type ExprError struct {
	Expr string
	Msg  string
}

func (e *ExprError) Error() string {
	return e.Msg + " in expression '" + e.Expr + "'"
}
