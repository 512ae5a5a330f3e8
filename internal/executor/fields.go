package executor

import (
	language "github.com/hanpama/usergraph/internal/language"
	schema "github.com/hanpama/usergraph/internal/schema"
)

// collectedFieldMap groups fields by response name in query order.
type collectedFieldMap struct {
	fields []collectedField
	index  map[string]int
}

type collectedField struct {
	ResponseName string
	Fields       []*language.Field
}

func newCollectedFieldMap() *collectedFieldMap {
	return &collectedFieldMap{index: make(map[string]int)}
}

func (cfm *collectedFieldMap) add(responseName string, field *language.Field) {
	if idx, ok := cfm.index[responseName]; ok {
		cfm.fields[idx].Fields = append(cfm.fields[idx].Fields, field)
		return
	}
	cfm.index[responseName] = len(cfm.fields)
	cfm.fields = append(cfm.fields, collectedField{
		ResponseName: responseName,
		Fields:       []*language.Field{field},
	})
}

func (cfm *collectedFieldMap) orderedFields() []collectedField {
	return cfm.fields
}

// collectFields flattens fragments and applies @skip/@include.
func collectFields(state *executionState, objectType *schema.Type, selectionSet language.SelectionSet) *collectedFieldMap {
	grouped := newCollectedFieldMap()
	collectFieldsImpl(state, objectType, selectionSet, grouped, make(map[string]bool))
	return grouped
}

func collectFieldsImpl(state *executionState, objectType *schema.Type, selectionSet language.SelectionSet, grouped *collectedFieldMap, visitedFragments map[string]bool) {
	for _, selection := range selectionSet {
		switch sel := selection.(type) {
		case *language.Field:
			if !shouldIncludeNode(state, sel.Directives) {
				continue
			}
			responseName := sel.Alias
			if responseName == "" {
				responseName = sel.Name
			}
			grouped.add(responseName, sel)

		case *language.InlineFragment:
			if !shouldIncludeNode(state, sel.Directives) {
				continue
			}
			// Every named type is an object, so a type condition matches by name.
			if sel.TypeCondition != "" && sel.TypeCondition != objectType.Name {
				continue
			}
			collectFieldsImpl(state, objectType, sel.SelectionSet, grouped, visitedFragments)

		case *language.FragmentSpread:
			if !shouldIncludeNode(state, sel.Directives) {
				continue
			}
			if visitedFragments[sel.Name] {
				continue
			}
			visitedFragments[sel.Name] = true

			fragmentDef := state.document.Fragments.ForName(sel.Name)
			if fragmentDef == nil {
				continue
			}
			if fragmentDef.TypeCondition != "" && fragmentDef.TypeCondition != objectType.Name {
				continue
			}
			if !shouldIncludeNode(state, fragmentDef.Directives) {
				continue
			}
			collectFieldsImpl(state, objectType, fragmentDef.SelectionSet, grouped, visitedFragments)
		}
	}
}

// shouldIncludeNode evaluates @skip and @include.
func shouldIncludeNode(state *executionState, directives language.DirectiveList) bool {
	if skip := directives.ForName("skip"); skip != nil {
		if v, ok := directiveBool(state, skip); ok && v {
			return false
		}
	}
	if include := directives.ForName("include"); include != nil {
		if v, ok := directiveBool(state, include); ok && !v {
			return false
		}
	}
	return true
}

func directiveBool(state *executionState, directive *language.Directive) (bool, bool) {
	arg := directive.Arguments.ForName("if")
	if arg == nil {
		return false, false
	}
	v, err := arg.Value.Value(state.variableValues)
	if err != nil {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}
