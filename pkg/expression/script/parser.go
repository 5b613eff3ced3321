package script

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

type tokenStream struct {
	tokens []token
	pos    int
}

func parseExpression(tokens []token) (node, error) {
	stream := &tokenStream{tokens: tokens}
	n, err := parseOr(stream)
	if err != nil {
		return nil, err
	}
	if stream.pos < len(stream.tokens) {
		return nil, fmt.Errorf("expression/script: unexpected token %q", stream.tokens[stream.pos].raw)
	}
	return n, nil
}

func parseOr(stream *tokenStream) (node, error) {
	left, err := parseAnd(stream)
	if err != nil {
		return nil, err
	}
	for stream.match(tokenOr) {
		right, err := parseAnd(stream)
		if err != nil {
			return nil, err
		}
		left = orNode{left: left, right: right}
	}
	return left, nil
}

func parseAnd(stream *tokenStream) (node, error) {
	left, err := parseNot(stream)
	if err != nil {
		return nil, err
	}
	for stream.match(tokenAnd) {
		right, err := parseNot(stream)
		if err != nil {
			return nil, err
		}
		left = andNode{left: left, right: right}
	}
	return left, nil
}

func parseNot(stream *tokenStream) (node, error) {
	if stream.match(tokenNot) {
		inner, err := parseNot(stream)
		if err != nil {
			return nil, err
		}
		return notNode{inner: inner}, nil
	}
	return parseComparison(stream)
}

func parseComparison(stream *tokenStream) (node, error) {
	left, err := parseAdditive(stream)
	if err != nil {
		return nil, err
	}
	for _, kind := range []tokenKind{tokenEq, tokenNeq, tokenLt, tokenLte, tokenGt, tokenGte} {
		if stream.match(kind) {
			right, err := parseAdditive(stream)
			if err != nil {
				return nil, err
			}
			return compareNode{op: kind, left: left, right: right}, nil
		}
	}
	return left, nil
}

func parseAdditive(stream *tokenStream) (node, error) {
	left, err := parseMultiplicative(stream)
	if err != nil {
		return nil, err
	}
	for {
		var op tokenKind
		switch {
		case stream.match(tokenPlus):
			op = tokenPlus
		case stream.match(tokenMinus):
			op = tokenMinus
		default:
			return left, nil
		}
		right, err := parseMultiplicative(stream)
		if err != nil {
			return nil, err
		}
		left = arithNode{op: op, left: left, right: right}
	}
}

func parseMultiplicative(stream *tokenStream) (node, error) {
	left, err := parseUnary(stream)
	if err != nil {
		return nil, err
	}
	for {
		var op tokenKind
		switch {
		case stream.match(tokenStar):
			op = tokenStar
		case stream.match(tokenSlash):
			op = tokenSlash
		case stream.match(tokenPercent):
			op = tokenPercent
		default:
			return left, nil
		}
		right, err := parseUnary(stream)
		if err != nil {
			return nil, err
		}
		left = arithNode{op: op, left: left, right: right}
	}
}

func parseUnary(stream *tokenStream) (node, error) {
	if stream.match(tokenMinus) {
		inner, err := parseUnary(stream)
		if err != nil {
			return nil, err
		}
		return negateNode{inner: inner}, nil
	}
	if stream.match(tokenPlus) {
		return parseUnary(stream)
	}
	return parsePrimary(stream)
}

func parsePrimary(stream *tokenStream) (node, error) {
	if stream.match(tokenLParen) {
		inner, err := parseOr(stream)
		if err != nil {
			return nil, err
		}
		if !stream.match(tokenRParen) {
			return nil, errors.New("expression/script: missing closing ')'")
		}
		return inner, nil
	}

	if stream.pos >= len(stream.tokens) {
		return nil, errors.New("expression/script: unexpected end of expression")
	}

	tok := stream.tokens[stream.pos]
	stream.pos++

	switch tok.kind {
	case tokenNumber:
		value, err := strconv.ParseFloat(tok.raw, 64)
		if err != nil {
			return nil, fmt.Errorf("expression/script: invalid number literal %q", tok.raw)
		}
		return literalNode{value: value}, nil
	case tokenString:
		return literalNode{value: tok.raw}, nil
	case tokenBool:
		return literalNode{value: tok.raw == "true"}, nil
	case tokenNull:
		return literalNode{value: nil}, nil
	case tokenVariable:
		return variableNode{name: tok.raw}, nil
	case tokenIdentifier:
		if stream.match(tokenLParen) {
			return parseCall(stream, tok.raw)
		}
		return variableNode{name: tok.raw}, nil
	default:
		return nil, fmt.Errorf("expression/script: unexpected token %q", tok.raw)
	}
}

func parseCall(stream *tokenStream, name string) (node, error) {
	fn, ok := lookupFunction(name)
	if !ok {
		return nil, fmt.Errorf("expression/script: unknown function %q", name)
	}

	var args []node
	if !stream.match(tokenRParen) {
		for {
			arg, err := parseOr(stream)
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if stream.match(tokenComma) {
				continue
			}
			if stream.match(tokenRParen) {
				break
			}
			return nil, fmt.Errorf("expression/script: expected ',' or ')' in call to %s", name)
		}
	}

	if err := fn.checkArity(len(args)); err != nil {
		return nil, err
	}
	return callNode{name: strings.ToLower(name), fn: fn, args: args}, nil
}

func (s *tokenStream) match(kind tokenKind) bool {
	if s.pos >= len(s.tokens) {
		return false
	}
	if s.tokens[s.pos].kind != kind {
		return false
	}
	s.pos++
	return true
}
