package compiler

import "github.com/wudi/ember/lexer"

// Precedence is the Pratt precedence ladder, low to high.
type Precedence int

const (
	PrecNone       Precedence = iota
	PrecAssignment            // =
	PrecOr                    // or / ||
	PrecAnd                   // and / &&
	PrecEquality              // == !=
	PrecComparison            // < > <= >=
	PrecTerm                  // + -
	PrecFactor                // * / %
	PrecUnary                 // ! - (prefix)
	PrecCall                  // . () []
	PrecPrimary
)

type (
	prefixFn func(c *Compiler, canAssign bool)
	infixFn  func(c *Compiler, canAssign bool)
)

// rule is one row of the Pratt table: a token kind's prefix parser,
// infix parser, and the precedence used when that token appears as an
// infix/postfix operator.
type rule struct {
	prefix     prefixFn
	infix      infixFn
	precedence Precedence
}

var rules map[lexer.Kind]rule

func init() {
	rules = map[lexer.Kind]rule{
		lexer.TOKEN_LPAREN:        {(*Compiler).grouping, (*Compiler).call, PrecCall},
		lexer.TOKEN_LBRACKET:      {(*Compiler).arrayLiteral, (*Compiler).subscript, PrecCall},
		lexer.TOKEN_LBRACE:        {(*Compiler).mapLiteral, nil, PrecNone},
		lexer.TOKEN_DOT:           {nil, (*Compiler).dot, PrecCall},
		lexer.TOKEN_MINUS:         {(*Compiler).unary, (*Compiler).binary, PrecTerm},
		lexer.TOKEN_PLUS:          {nil, (*Compiler).binary, PrecTerm},
		lexer.TOKEN_SLASH:         {nil, (*Compiler).binary, PrecFactor},
		lexer.TOKEN_STAR:          {nil, (*Compiler).binary, PrecFactor},
		lexer.TOKEN_PERCENT:       {nil, (*Compiler).binary, PrecFactor},
		lexer.TOKEN_BANG:          {(*Compiler).unary, nil, PrecNone},
		lexer.TOKEN_NOT:           {(*Compiler).unary, nil, PrecNone},
		lexer.TOKEN_BANG_EQUAL:    {nil, (*Compiler).binary, PrecEquality},
		lexer.TOKEN_EQUAL_EQUAL:   {nil, (*Compiler).binary, PrecEquality},
		lexer.TOKEN_GREATER:       {nil, (*Compiler).binary, PrecComparison},
		lexer.TOKEN_GREATER_EQUAL: {nil, (*Compiler).binary, PrecComparison},
		lexer.TOKEN_LESS:          {nil, (*Compiler).binary, PrecComparison},
		lexer.TOKEN_LESS_EQUAL:    {nil, (*Compiler).binary, PrecComparison},
		lexer.TOKEN_AMP_AMP:       {nil, (*Compiler).and_, PrecAnd},
		lexer.TOKEN_PIPE_PIPE:     {nil, (*Compiler).or_, PrecOr},
		lexer.TOKEN_AND:           {nil, (*Compiler).and_, PrecAnd},
		lexer.TOKEN_OR:            {nil, (*Compiler).or_, PrecOr},
		lexer.TOKEN_IDENT:         {(*Compiler).variable, nil, PrecNone},
		lexer.TOKEN_NUMBER:        {(*Compiler).number, nil, PrecNone},
		lexer.TOKEN_STRING:        {(*Compiler).stringLit, nil, PrecNone},
		lexer.TOKEN_INTERP_STRING: {(*Compiler).interpString, nil, PrecNone},
		lexer.TOKEN_TRUE:          {(*Compiler).literal, nil, PrecNone},
		lexer.TOKEN_FALSE:         {(*Compiler).literal, nil, PrecNone},
		lexer.TOKEN_NIL:           {(*Compiler).literal, nil, PrecNone},
		lexer.TOKEN_THIS:          {(*Compiler).this_, nil, PrecNone},
		lexer.TOKEN_SUPER:         {(*Compiler).super_, nil, PrecNone},
		lexer.TOKEN_NEW:           {(*Compiler).newExpr, nil, PrecNone},
		lexer.TOKEN_FN:            {(*Compiler).functionLiteral, nil, PrecNone},
		lexer.TOKEN_AWAIT:         {(*Compiler).await_, nil, PrecNone},
		lexer.TOKEN_YIELD:         {(*Compiler).yield_, nil, PrecNone},
	}
}

func getRule(k lexer.Kind) rule {
	if r, ok := rules[k]; ok {
		return r
	}
	return rule{}
}
