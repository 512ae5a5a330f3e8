package language

import (
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
)

// ParseQuery parses source without validating it.
func ParseQuery(source string) (*QueryDocument, error) {
	doc, err := parser.ParseQuery(&ast.Source{Input: source})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// LoadSchema parses SDL together with the builtin prelude and validates it.
func LoadSchema(name, source string) (*ValidatedSchema, error) {
	sch, err := gqlparser.LoadSchema(&ast.Source{Name: name, Input: source})
	if err != nil {
		return nil, err
	}
	return sch, nil
}

// LoadQuery parses source and validates it against sch.
func LoadQuery(sch *ValidatedSchema, source string) (*QueryDocument, ErrorList) {
	return gqlparser.LoadQuery(sch, source)
}
