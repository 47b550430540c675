package domain

import (
	"fmt"
	"strings"
)

type FeatureKind string

const (
	KindNumber  FeatureKind = "number"
	KindInteger FeatureKind = "integer"
	KindBoolean FeatureKind = "boolean"
)

// ParseFeatureKind accepts the dtype spellings found in exported training schemas.
func ParseFeatureKind(raw string) (FeatureKind, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "float", "float64", "float32", "double", "number", "numeric":
		return KindNumber, nil
	case "int", "int64", "int32", "long", "integer":
		return KindInteger, nil
	case "bool", "boolean":
		return KindBoolean, nil
	default:
		return "", fmt.Errorf("unknown column dtype %q", raw)
	}
}

// FeatureValue is a single typed column value.
type FeatureValue struct {
	Kind   FeatureKind
	Number float64
	Flag   bool
}

func Number(v float64) FeatureValue { return FeatureValue{Kind: KindNumber, Number: v} }

func Integer(v int64) FeatureValue { return FeatureValue{Kind: KindInteger, Number: float64(v)} }

func Flag(v bool) FeatureValue { return FeatureValue{Kind: KindBoolean, Flag: v} }

// Zero returns the fill value for a column of kind k.
func Zero(k FeatureKind) FeatureValue {
	switch k {
	case KindBoolean:
		return Flag(false)
	case KindInteger:
		return Integer(0)
	default:
		return Number(0)
	}
}

// Float returns the value as float64; booleans map to 0 and 1.
func (v FeatureValue) Float() float64 {
	if v.Kind == KindBoolean {
		if v.Flag {
			return 1
		}
		return 0
	}
	return v.Number
}

// As converts v to kind k.
func (v FeatureValue) As(k FeatureKind) FeatureValue {
	switch k {
	case KindBoolean:
		return Flag(v.Float() != 0)
	case KindInteger:
		return Integer(int64(v.Float()))
	default:
		return Number(v.Float())
	}
}

// Interface returns the JSON-native form of the value.
func (v FeatureValue) Interface() any {
	switch v.Kind {
	case KindBoolean:
		return v.Flag
	case KindInteger:
		return int64(v.Number)
	default:
		return v.Number
	}
}

// FeatureMap is an unordered set of named feature values.
type FeatureMap map[string]FeatureValue

type SchemaColumn struct {
	Name string      `json:"name"`
	Kind FeatureKind `json:"kind"`
}

// TrainedSchema is the ordered column list a model was fit against.
type TrainedSchema struct {
	Columns []SchemaColumn `json:"columns"`
}

func (s TrainedSchema) Names() []string {
	out := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		out[i] = c.Name
	}
	return out
}

func (s TrainedSchema) Len() int { return len(s.Columns) }

var integerColumns = map[string]struct{}{
	"family_size":      {},
	"dependents":       {},
	"existing_loans":   {},
	"requested_tenure": {},
}

// InferColumnKind guesses a column kind when the schema artifact carries no dtype.
func InferColumnKind(name string) FeatureKind {
	if _, _, ok := SplitCategoricalColumn(name); ok {
		return KindBoolean
	}
	if _, ok := integerColumns[name]; ok {
		return KindInteger
	}
	return KindNumber
}

// FeatureVector is the aligned model input. Columns and Values share indexes.
type FeatureVector struct {
	Columns   []string       `json:"columns"`
	Values    []FeatureValue `json:"-"`
	Populated int            `json:"populated"`
}

func (v FeatureVector) Len() int { return len(v.Columns) }

// Row returns the JSON-native values in column order.
func (v FeatureVector) Row() []any {
	out := make([]any, len(v.Values))
	for i, val := range v.Values {
		out[i] = val.Interface()
	}
	return out
}

// Get returns the value for column name.
func (v FeatureVector) Get(name string) (FeatureValue, bool) {
	for i, c := range v.Columns {
		if c == name {
			return v.Values[i], true
		}
	}
	return FeatureValue{}, false
}
