// Package raw holds the typed object model for a parsed PDF document.
//
// Every value a document can contain is one of a closed set of shapes:
// Null, Boolean, Number, String, Name, Array, Dict, Stream, or Ref.
// Consumers switch over Kind (or type-switch over Object) and never see
// anything outside this set.
package raw

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ObjectRef uniquely identifies an indirect PDF object by
// (object number, generation number).
type ObjectRef struct {
	Num int
	Gen int
}

func (r ObjectRef) String() string { return fmt.Sprintf("%d %d R", r.Num, r.Gen) }

// Less orders refs by object number, then generation.
func (r ObjectRef) Less(other ObjectRef) bool {
	if r.Num != other.Num {
		return r.Num < other.Num
	}
	return r.Gen < other.Gen
}

var refSep = regexp.MustCompile(`[\s:_-]+`)

// ParseRef parses a textual object id. It accepts the canonical "12 0 R"
// form as well as the looser "12 0", "12-0", "12_0" and "12:0" spellings
// that show up in query strings.
func ParseRef(s string) (ObjectRef, error) {
	cleaned := strings.TrimSpace(s)
	cleaned = strings.TrimSuffix(cleaned, "R")
	cleaned = strings.TrimSuffix(cleaned, "r")
	parts := refSep.Split(strings.TrimSpace(cleaned), -1)
	if len(parts) < 2 {
		return ObjectRef{}, fmt.Errorf("object id %q must include object and generation numbers", s)
	}
	num, err := strconv.Atoi(parts[0])
	if err != nil {
		return ObjectRef{}, fmt.Errorf("object id %q: %w", s, err)
	}
	gen, err := strconv.Atoi(parts[1])
	if err != nil {
		return ObjectRef{}, fmt.Errorf("object id %q: %w", s, err)
	}
	return ObjectRef{Num: num, Gen: gen}, nil
}

// Kind discriminates the closed set of value shapes.
type Kind int

const (
	KindNull Kind = iota
	KindBoolean
	KindNumber
	KindString
	KindName
	KindArray
	KindDict
	KindStream
	KindRef
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBoolean:
		return "boolean"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindName:
		return "name"
	case KindArray:
		return "array"
	case KindDict:
		return "dict"
	case KindStream:
		return "stream"
	case KindRef:
		return "ref"
	default:
		return "unknown"
	}
}

// Object is the base interface of the value variant. Only the types in this
// package implement it.
type Object interface {
	Kind() Kind
}
