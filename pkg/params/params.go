package params

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"unicode"
	"unicode/utf8"
)

// JSONPrefix marks a value token that carries an embedded JSON document
const JSONPrefix = "json::"

// Kind identifies the type held by a Value
type Kind int

const (
	KindString Kind = iota
	KindBool
	KindNull
	KindJSON
)

// Value is a single typed command parameter
type Value struct {
	Kind Kind
	Str  string
	Bool bool
	JSON interface{}
}

// Interface returns the value in the untyped form used on the wire
func (v Value) Interface() interface{} {
	switch v.Kind {
	case KindBool:
		return v.Bool
	case KindNull:
		return nil
	case KindJSON:
		return v.JSON
	default:
		return v.Str
	}
}

// Params maps parameter names to typed values
type Params map[string]Value

// Map converts the parameters into a plain map for the API client
func (p Params) Map() map[string]interface{} {
	out := make(map[string]interface{}, len(p))
	for k, v := range p {
		out[k] = v.Interface()
	}
	return out
}

// ParameterError is returned when a json:: value cannot be decoded
type ParameterError struct {
	Key     string
	Message string
}

func (e *ParameterError) Error() string {
	return fmt.Sprintf("invalid json parameter %s (%s)", e.Key, e.Message)
}

// Parse turns command tokens such as `-foo bar -baz` into typed parameters.
// Tokens are consumed left to right; a value token updates the most recent key,
// and tokens seen before any key are ignored.
func Parse(tokens []string) (Params, error) {
	params := make(Params)
	key := ""

	for _, tok := range tokens {
		if k, ok := keyToken(tok); ok {
			key = k
			params[key] = Value{Kind: KindBool, Bool: true}
			continue
		}

		if key == "" {
			continue
		}

		v, err := parseValue(key, tok)
		if err != nil {
			return nil, err
		}
		params[key] = v
	}

	return params, nil
}

// keyToken reports whether tok starts a new key: a dash followed by a letter or number
func keyToken(tok string) (string, bool) {
	if !strings.HasPrefix(tok, "-") {
		return "", false
	}
	k := tok[1:]
	r, _ := utf8.DecodeRuneInString(k)
	if k == "" || !(unicode.IsLetter(r) || unicode.IsNumber(r)) {
		return "", false
	}
	return k, true
}

func parseValue(key, tok string) (Value, error) {
	switch strings.ToLower(tok) {
	case "false":
		return Value{Kind: KindBool, Bool: false}, nil
	case "true":
		return Value{Kind: KindBool, Bool: true}, nil
	case "null":
		return Value{Kind: KindNull}, nil
	}

	if strings.HasPrefix(tok, JSONPrefix) {
		decoded, err := decodeJSON(tok[len(JSONPrefix):])
		if err != nil {
			return Value{}, &ParameterError{Key: key, Message: err.Error()}
		}
		return Value{Kind: KindJSON, JSON: decoded}, nil
	}

	return Value{Kind: KindString, Str: tok}, nil
}

// decodeJSON decodes a single JSON document, keeping numbers as json.Number
// so large integers reach the API unchanged
func decodeJSON(raw string) (interface{}, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()

	var decoded interface{}
	if err := dec.Decode(&decoded); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("unexpected data after JSON value")
	}
	return decoded, nil
}
