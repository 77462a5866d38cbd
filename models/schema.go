package models

import (
	"kwil-client/encoding"
	"strings"
)

// Schema is a database definition as deployed to and returned by a node.
type Schema struct {
	Name       string              `json:"name"`
	Owner      []byte              `json:"owner"`
	Extensions []*Extension        `json:"extensions"`
	Tables     []*Table            `json:"tables"`
	Actions    []*Action           `json:"actions"`
	Procedures []*Procedure        `json:"procedures"`
	Types      []*CompositeType    `json:"types"`
	Foreign    []*ForeignProcedure `json:"foreign_calls"`
}

// Extension is an extension import with its initialization config.
type Extension struct {
	Name   string             `json:"name"`
	Config []*ExtensionConfig `json:"config"`
	Alias  string             `json:"alias"`
}

// ExtensionConfig is a single key/value extension parameter.
type ExtensionConfig struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Table definition.
type Table struct {
	Name        string        `json:"name"`
	Columns     []*Column     `json:"columns"`
	Indexes     []*Index      `json:"indexes"`
	ForeignKeys []*ForeignKey `json:"foreign_keys"`
}

// Column definition.
type Column struct {
	Name       string             `json:"name"`
	Type       *encoding.DataType `json:"type"`
	Attributes []*Attribute       `json:"attributes"`
}

// Attribute is a column constraint such as primary_key or not_null.
type Attribute struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Index definition.
type Index struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	Type    string   `json:"type"`
}

// ForeignKey definition.
type ForeignKey struct {
	ChildKeys   []string            `json:"child_keys"`
	ParentKeys  []string            `json:"parent_keys"`
	ParentTable string              `json:"parent_table"`
	Actions     []*ForeignKeyAction `json:"actions"`
}

// ForeignKeyAction is an ON UPDATE/ON DELETE clause.
type ForeignKeyAction struct {
	On string `json:"on"`
	Do string `json:"do"`
}

// Action is a SQL action. Parameters are untyped "$name" placeholders.
type Action struct {
	Name        string   `json:"name"`
	Annotations []string `json:"annotations"`
	Parameters  []string `json:"parameters"`
	Public      bool     `json:"public"`
	Modifiers   []string `json:"modifiers"`
	Body        string   `json:"body"`
}

// Procedure is a procedural function with typed parameters.
type Procedure struct {
	Name        string                `json:"name"`
	Parameters  []*ProcedureParameter `json:"parameters"`
	Public      bool                  `json:"public"`
	Modifiers   []string              `json:"modifiers"`
	Body        string                `json:"body"`
	Returns     *ProcedureReturn      `json:"return_types" rlp:"nil"`
	Annotations []string              `json:"annotations"`
}

// ProcedureParameter is a typed procedure parameter.
type ProcedureParameter struct {
	Name string             `json:"name"`
	Type *encoding.DataType `json:"type"`
}

// ProcedureReturn describes what a procedure returns.
type ProcedureReturn struct {
	IsTable bool                  `json:"is_table"`
	Fields  []*ProcedureParameter `json:"fields"`
}

// CompositeType is a user defined record type.
type CompositeType struct {
	Name   string                `json:"name"`
	Fields []*ProcedureParameter `json:"fields"`
}

// ForeignProcedure declares a procedure of another database.
type ForeignProcedure struct {
	Name       string               `json:"name"`
	Parameters []*encoding.DataType `json:"parameters"`
	Returns    *ProcedureReturn     `json:"return_types" rlp:"nil"`
}

// FindAction returns the action with the given name, case-insensitively.
func (s *Schema) FindAction(name string) (*Action, bool) {
	for _, a := range s.Actions {
		if strings.EqualFold(a.Name, name) {
			return a, true
		}
	}
	return nil, false
}

// FindProcedure returns the procedure with the given name, case-insensitively.
func (s *Schema) FindProcedure(name string) (*Procedure, bool) {
	for _, p := range s.Procedures {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return nil, false
}

// FindTable returns the table with the given name, case-insensitively.
func (s *Schema) FindTable(name string) (*Table, bool) {
	for _, t := range s.Tables {
		if strings.EqualFold(t.Name, name) {
			return t, true
		}
	}
	return nil, false
}
