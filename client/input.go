package client

import (
	"kwil-client/transactions"
	"sort"
	"strings"
)

// ActionInput is one set of named action arguments. Names are
// case-insensitive and get the "$" prefix when it is missing.
// Insertion order is kept, though arguments are sent in the order the
// action declares its parameters.
type ActionInput struct {
	names  []string
	values map[string]interface{}
}

// NewActionInput creates an empty input.
func NewActionInput() *ActionInput {
	return &ActionInput{values: make(map[string]interface{})}
}

func normalizeParam(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if !strings.HasPrefix(name, transactions.ParamSigil) {
		name = transactions.ParamSigil + name
	}
	return name
}

// Put sets name to value. Setting a name again keeps its position.
func (in *ActionInput) Put(name string, value interface{}) *ActionInput {
	if in.values == nil {
		in.values = make(map[string]interface{})
	}

	name = normalizeParam(name)
	if _, ok := in.values[name]; !ok {
		in.names = append(in.names, name)
	}
	in.values[name] = value
	return in
}

// PutAll sets every entry of values, in sorted name order.
func (in *ActionInput) PutAll(values map[string]interface{}) *ActionInput {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		in.Put(name, values[name])
	}
	return in
}

// Get returns the value of name.
func (in *ActionInput) Get(name string) (interface{}, bool) {
	v, ok := in.values[normalizeParam(name)]
	return v, ok
}

// Names returns the parameter names in insertion order.
func (in *ActionInput) Names() []string {
	return append([]string(nil), in.names...)
}

// Len returns the number of arguments.
func (in *ActionInput) Len() int {
	return len(in.names)
}
