// Package value converts wire-format result trees into typed client values.
// Conversion is best-effort: a value whose declared type cannot be resolved
// or whose text does not parse degrades to its raw text instead of failing,
// so displaying a foreign debug value never aborts.
package value

import (
	"strconv"

	"github.com/beevik/etree"
)

// Kind identifies the resolved runtime type of a converted value. KindNone
// marks values that kept their raw text (unknown type or failed conversion)
// and table values, whose content is a nested []ClientValue instead.
type Kind string

const (
	KindNone   Kind = ""
	KindInt    Kind = "int"
	KindLong   Kind = "long"
	KindFloat  Kind = "float"
	KindDouble Kind = "double"
	KindBool   Kind = "bool"
	KindChar   Kind = "char"
	KindString Kind = "string"
	KindObject Kind = "object"
	KindTable  Kind = "table"
)

// typeTable declares the table sentinel; a table value is the recursively
// parsed sequence of its children, never a scalar conversion.
const typeTable = "table"

// ClientValue is one member of a debug result. Immutable once constructed.
type ClientValue struct {
	Name     string // explicit name attribute, or positional $N
	TypeName string // declared wire type name, default "object"
	Kind     Kind   // resolved runtime type; KindNone on fallback, KindTable for tables
	Value    any    // converted scalar, raw string fallback, or []ClientValue
}

// Table returns the nested values of a table-typed member.
func (v ClientValue) Table() ([]ClientValue, bool) {
	vals, ok := v.Value.([]ClientValue)
	return vals, ok
}

// converters maps declared wire type names to scalar conversions. A name
// absent here is a resolution failure and falls back to raw text.
var converters = map[string]func(text string) (any, Kind, error){
	"int":     convInt,
	"integer": convInt,
	"short":   convInt,
	"byte":    convInt,
	"long": func(text string) (any, Kind, error) {
		n, err := strconv.ParseInt(text, 10, 64)
		return n, KindLong, err
	},
	"float": func(text string) (any, Kind, error) {
		f, err := strconv.ParseFloat(text, 32)
		return float32(f), KindFloat, err
	},
	"double": func(text string) (any, Kind, error) {
		f, err := strconv.ParseFloat(text, 64)
		return f, KindDouble, err
	},
	"bool":    convBool,
	"boolean": convBool,
	"char": func(text string) (any, Kind, error) {
		runes := []rune(text)
		if len(runes) != 1 {
			return nil, KindNone, strconv.ErrSyntax
		}
		return runes[0], KindChar, nil
	},
	"string": func(text string) (any, Kind, error) {
		return text, KindString, nil
	},
	"object": func(text string) (any, Kind, error) {
		return text, KindObject, nil
	},
}

func convInt(text string) (any, Kind, error) {
	n, err := strconv.Atoi(text)
	return n, KindInt, err
}

func convBool(text string) (any, Kind, error) {
	b, err := strconv.ParseBool(text)
	return b, KindBool, err
}

// ParseValue converts one value element. next is the positional counter for
// unnamed siblings: a value without an explicit name is called $<counter>,
// and the counter advances only across unnamed siblings.
func ParseValue(el *etree.Element, next *int) ClientValue {
	name := el.SelectAttrValue("n", "")
	if name == "" {
		// The server may supply a positional index of its own; otherwise
		// synthesize one.
		if idx := el.SelectAttrValue("i", ""); idx != "" {
			name = "$" + idx
		} else {
			name = "$" + strconv.Itoa(*next)
		}
		*next++
	}

	typeName := el.SelectAttrValue("t", "object")
	if typeName == typeTable {
		child := 1
		nested := make([]ClientValue, 0, len(el.ChildElements()))
		for _, sub := range el.SelectElements("v") {
			nested = append(nested, ParseValue(sub, &child))
		}
		return ClientValue{Name: name, TypeName: typeName, Kind: KindTable, Value: nested}
	}

	text := el.Text()
	convert, ok := converters[typeName]
	if !ok {
		return ClientValue{Name: name, TypeName: typeName, Value: text}
	}
	converted, kind, err := convert(text)
	if err != nil {
		// Keep the raw text; display must never abort on a bad conversion.
		return ClientValue{Name: name, TypeName: typeName, Value: text}
	}
	return ClientValue{Name: name, TypeName: typeName, Kind: kind, Value: converted}
}

// ParseReturn converts every value-tagged child of a reply root in document
// order, positional counter starting at 0.
func ParseReturn(root *etree.Element) []ClientValue {
	next := 0
	values := make([]ClientValue, 0, len(root.ChildElements()))
	for _, el := range root.SelectElements("v") {
		values = append(values, ParseValue(el, &next))
	}
	return values
}
