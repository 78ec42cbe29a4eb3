package xref

import (
	"errors"
	"fmt"

	"github.com/idrisr/pepys/ir/raw"
	"github.com/idrisr/pepys/scanner"
)

// parseValue builds one object from the token stream. Trailers and xref
// stream dictionaries never contain stream payloads, so this stays smaller
// than the full object loader in package parser.
func parseValue(sc *scanner.Scanner) (raw.Object, error) {
	tok, err := sc.Next()
	if err != nil {
		return nil, err
	}
	return valueFromToken(sc, tok)
}

func valueFromToken(sc *scanner.Scanner, tok scanner.Token) (raw.Object, error) {
	switch tok.Type {
	case scanner.TokenName:
		return raw.Name{Val: tok.Str}, nil
	case scanner.TokenNumber:
		if tok.IsInt {
			return raw.Number{I: tok.Int, IsInt: true}, nil
		}
		return raw.Number{F: tok.Float}, nil
	case scanner.TokenBoolean:
		return raw.Boolean{V: tok.Bool}, nil
	case scanner.TokenNull:
		return raw.Null{}, nil
	case scanner.TokenString:
		return raw.String{Bytes: tok.Bytes, Hex: tok.Hex}, nil
	case scanner.TokenRef:
		return raw.Ref{R: raw.ObjectRef{Num: tok.Num, Gen: tok.Gen}}, nil
	case scanner.TokenArrayOpen:
		arr := &raw.Array{}
		for {
			t, err := sc.Next()
			if err != nil {
				return nil, err
			}
			if t.Type == scanner.TokenArrayClose {
				return arr, nil
			}
			item, err := valueFromToken(sc, t)
			if err != nil {
				return nil, err
			}
			arr.Append(item)
		}
	case scanner.TokenDictOpen:
		d := raw.NewDict()
		for {
			t, err := sc.Next()
			if err != nil {
				return nil, err
			}
			if t.Type == scanner.TokenDictClose {
				return d, nil
			}
			if t.Type != scanner.TokenName {
				return nil, errors.New("expected name key in dictionary")
			}
			val, err := parseValue(sc)
			if err != nil {
				return nil, err
			}
			d.Set(t.Str, val)
		}
	default:
		return nil, fmt.Errorf("unexpected token at offset %d", tok.Pos)
	}
}
