package script

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

type tokenKind int

const (
	tokenIdentifier tokenKind = iota
	tokenVariable
	tokenString
	tokenNumber
	tokenBool
	tokenNull
	tokenEq
	tokenNeq
	tokenLt
	tokenLte
	tokenGt
	tokenGte
	tokenPlus
	tokenMinus
	tokenStar
	tokenSlash
	tokenPercent
	tokenAnd
	tokenOr
	tokenNot
	tokenLParen
	tokenRParen
	tokenComma
)

type token struct {
	kind tokenKind
	raw  string
}

func tokenize(input string) ([]token, error) {
	var tokens []token
	i := 0

	next := func() byte {
		if i >= len(input) {
			return 0
		}
		return input[i]
	}

	consume := func() byte {
		if i >= len(input) {
			return 0
		}
		ch := input[i]
		i++
		return ch
	}

	emit := func(kind tokenKind, raw string) {
		tokens = append(tokens, token{kind: kind, raw: raw})
	}

	for i < len(input) {
		ch := next()
		if isSpace(ch) {
			i++
			continue
		}

		switch ch {
		case '(':
			consume()
			emit(tokenLParen, "(")
			continue
		case ')':
			consume()
			emit(tokenRParen, ")")
			continue
		case ',':
			consume()
			emit(tokenComma, ",")
			continue
		case '+':
			consume()
			emit(tokenPlus, "+")
			continue
		case '-':
			consume()
			emit(tokenMinus, "-")
			continue
		case '*':
			consume()
			emit(tokenStar, "*")
			continue
		case '/':
			consume()
			emit(tokenSlash, "/")
			continue
		case '%':
			consume()
			emit(tokenPercent, "%")
			continue
		case '!':
			consume()
			if next() == '=' {
				consume()
				emit(tokenNeq, "!=")
				continue
			}
			emit(tokenNot, "!")
			continue
		case '=':
			consume()
			if next() == '=' {
				consume()
			}
			emit(tokenEq, "==")
			continue
		case '<':
			consume()
			switch next() {
			case '=':
				consume()
				emit(tokenLte, "<=")
			case '>':
				consume()
				emit(tokenNeq, "<>")
			default:
				emit(tokenLt, "<")
			}
			continue
		case '>':
			consume()
			if next() == '=' {
				consume()
				emit(tokenGte, ">=")
				continue
			}
			emit(tokenGt, ">")
			continue
		case '&':
			consume()
			if next() != '&' {
				return nil, fmt.Errorf("expression/script: unexpected '&'; use '&&'")
			}
			consume()
			emit(tokenAnd, "&&")
			continue
		case '|':
			consume()
			if next() != '|' {
				return nil, fmt.Errorf("expression/script: unexpected '|'; use '||'")
			}
			consume()
			emit(tokenOr, "||")
			continue
		case '[':
			consume()
			end := strings.IndexByte(input[i:], ']')
			if end < 0 {
				return nil, errors.New("expression/script: unterminated variable reference")
			}
			name := strings.TrimSpace(input[i : i+end])
			if name == "" {
				return nil, errors.New("expression/script: empty variable reference")
			}
			i += end + 1
			emit(tokenVariable, name)
			continue
		case '"', '\'':
			quote := consume()
			var b strings.Builder
			closed := false
			for i < len(input) {
				c := consume()
				if c == '\\' && i < len(input) {
					b.WriteByte(unescape(consume()))
					continue
				}
				if c == quote {
					closed = true
					break
				}
				b.WriteByte(c)
			}
			if !closed {
				return nil, errors.New("expression/script: unterminated string literal")
			}
			emit(tokenString, b.String())
			continue
		}

		if isDigit(ch) || (ch == '.' && i+1 < len(input) && isDigit(input[i+1])) {
			start := i
			for i < len(input) && (isDigit(input[i]) || input[i] == '.') {
				i++
			}
			raw := input[start:i]
			if _, err := strconv.ParseFloat(raw, 64); err != nil {
				return nil, fmt.Errorf("expression/script: invalid number literal %q", raw)
			}
			emit(tokenNumber, raw)
			continue
		}

		if !isIdentStart(ch) {
			return nil, fmt.Errorf("expression/script: unexpected character %q", ch)
		}

		start := i
		for i < len(input) && isIdentPart(input[i]) {
			i++
		}
		raw := input[start:i]
		switch strings.ToLower(raw) {
		case "true", "false":
			emit(tokenBool, strings.ToLower(raw))
		case "null", "nil":
			emit(tokenNull, "null")
		case "and":
			emit(tokenAnd, "and")
		case "or":
			emit(tokenOr, "or")
		case "not":
			emit(tokenNot, "not")
		default:
			emit(tokenIdentifier, raw)
		}
	}

	return tokens, nil
}

func isSpace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r'
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isIdentStart(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isIdentPart(ch byte) bool {
	return isIdentStart(ch) || isDigit(ch) || ch == '.'
}

func unescape(ch byte) byte {
	switch ch {
	case 'n':
		return '\n'
	case 't':
		return '\t'
	case 'r':
		return '\r'
	default:
		return ch
	}
}
