// Copyright (c) 2024 santosr2
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package gem

import (
	"fmt"
	"os"
	"strings"
)

// value is the small set of Ruby literal kinds the Gemfile grammar
// supports: string, symbol, boolean, and nil.
type value struct {
	str    string
	isSym  bool
	isBool bool
	boolV  bool
	isNil  bool
}

func (v value) String() string {
	switch {
	case v.isNil:
		return ""
	case v.isBool:
		if v.boolV {
			return "true"
		}
		return "false"
	default:
		return v.str
	}
}

// truthy implements Ruby's rule that everything except false and nil is
// truthy.
func (v value) truthy() bool {
	if v.isNil {
		return false
	}
	if v.isBool {
		return v.boolV
	}
	return true
}

// env is the evaluation environment: variable assignments seen earlier
// in the same Gemfile.
type env map[string]value

// exprParser is a minimal recursive-descent parser/evaluator for the
// Gemfile expression grammar: string literals, symbols (:foo), booleans,
// nil, ENV["KEY"] (with an optional " || default" fallback), ternary
// (cond ? a : b), bare identifiers resolved against env, and the "||"
// fallback operator generally.
type exprParser struct {
	s   string
	pos int
	env env
}

func newExprParser(s string, e env) *exprParser {
	return &exprParser{s: s, env: e}
}

func (p *exprParser) skipSpace() {
	for p.pos < len(p.s) && (p.s[p.pos] == ' ' || p.s[p.pos] == '\t') {
		p.pos++
	}
}

func (p *exprParser) peekRune() byte {
	if p.pos >= len(p.s) {
		return 0
	}
	return p.s[p.pos]
}

// parse evaluates a full expression: ternary ("cond ? a : b") wrapping
// an or-chain ("a || b || c").
func (p *exprParser) parse() (value, error) {
	cond, err := p.parseOr()
	if err != nil {
		return value{}, err
	}
	p.skipSpace()
	if p.peekRune() == '?' {
		p.pos++
		whenTrue, err := p.parseOr()
		if err != nil {
			return value{}, err
		}
		p.skipSpace()
		if p.peekRune() != ':' {
			return value{}, fmt.Errorf("gem: expression: expected ':' in ternary %q", p.s)
		}
		p.pos++
		whenFalse, err := p.parseOr()
		if err != nil {
			return value{}, err
		}
		if cond.truthy() {
			return whenTrue, nil
		}
		return whenFalse, nil
	}
	return cond, nil
}

func (p *exprParser) parseOr() (value, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return value{}, err
	}
	for {
		p.skipSpace()
		if strings.HasPrefix(p.s[p.pos:], "||") {
			p.pos += 2
			right, err := p.parsePrimary()
			if err != nil {
				return value{}, err
			}
			if left.truthy() {
				continue
			}
			left = right
			continue
		}
		break
	}
	return left, nil
}

func (p *exprParser) parsePrimary() (value, error) {
	p.skipSpace()
	if p.pos >= len(p.s) {
		return value{}, fmt.Errorf("gem: expression: unexpected end of %q", p.s)
	}
	switch c := p.peekRune(); {
	case c == '"' || c == '\'':
		return p.parseString(c)
	case c == ':':
		return p.parseSymbol()
	case strings.HasPrefix(p.s[p.pos:], "ENV["):
		return p.parseEnv()
	case strings.HasPrefix(p.s[p.pos:], "true"):
		p.pos += 4
		return value{isBool: true, boolV: true}, nil
	case strings.HasPrefix(p.s[p.pos:], "false"):
		p.pos += 5
		return value{isBool: true, boolV: false}, nil
	case strings.HasPrefix(p.s[p.pos:], "nil"):
		p.pos += 3
		return value{isNil: true}, nil
	default:
		return p.parseIdentifier()
	}
}

func (p *exprParser) parseString(quote byte) (value, error) {
	p.pos++ // opening quote
	start := p.pos
	for p.pos < len(p.s) && p.s[p.pos] != quote {
		if p.s[p.pos] == '\\' {
			p.pos++
		}
		p.pos++
	}
	if p.pos >= len(p.s) {
		return value{}, fmt.Errorf("gem: expression: unterminated string in %q", p.s)
	}
	out := p.s[start:p.pos]
	p.pos++ // closing quote
	return value{str: out}, nil
}

func (p *exprParser) parseSymbol() (value, error) {
	p.pos++ // ':'
	start := p.pos
	for p.pos < len(p.s) && isIdentByte(p.s[p.pos]) {
		p.pos++
	}
	return value{str: p.s[start:p.pos], isSym: true}, nil
}

func (p *exprParser) parseEnv() (value, error) {
	p.pos += len("ENV[")
	quote := p.peekRune()
	v, err := p.parseString(quote)
	if err != nil {
		return value{}, err
	}
	p.skipSpace()
	if p.peekRune() != ']' {
		return value{}, fmt.Errorf("gem: expression: expected ']' closing ENV[ in %q", p.s)
	}
	p.pos++
	if resolved, ok := os.LookupEnv(v.str); ok {
		return value{str: resolved}, nil
	}
	return value{isNil: true}, nil
}

func (p *exprParser) parseIdentifier() (value, error) {
	start := p.pos
	for p.pos < len(p.s) && isIdentByte(p.s[p.pos]) {
		p.pos++
	}
	if p.pos == start {
		return value{}, fmt.Errorf("gem: expression: unrecognized token in %q at %d", p.s, p.pos)
	}
	name := p.s[start:p.pos]
	if v, ok := p.env[name]; ok {
		return v, nil
	}
	return value{isNil: true}, nil
}

func isIdentByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// evalExpr evaluates one Gemfile expression string against env; unknown
// syntax returns an error rather than silently guessing a value.
func evalExpr(s string, e env) (value, error) {
	return newExprParser(strings.TrimSpace(s), e).parse()
}
