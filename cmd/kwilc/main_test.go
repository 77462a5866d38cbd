package main

import (
	"bytes"
	"errors"
	"kwil-client/client"
	"os"
	"path/filepath"
	"testing"
)

func TestParseInput(t *testing.T) {
	in, err := parseInput([]string{"id=1", "Title=a=b", "body=null"})
	if err != nil {
		t.Fatal(err)
	}

	if names := in.Names(); len(names) != 3 || names[0] != "$id" || names[1] != "$title" || names[2] != "$body" {
		t.Fatalf("Get=%v", names)
	}
	if v, _ := in.Get("title"); v != "a=b" {
		t.Fatalf("Get=%v, want=a=b", v)
	}
	if v, ok := in.Get("body"); !ok || v != nil {
		t.Fatalf("Get=%v, want=nil", v)
	}

	for _, bad := range []string{"id", "=1"} {
		if _, err := parseInput([]string{bad}); !errors.Is(err, client.ErrInvalidInput) {
			t.Fatalf("%q: Get=%v, want=%v", bad, err, client.ErrInvalidInput)
		}
	}
}

func TestParseIdentity(t *testing.T) {
	id, err := parseIdentity("0x2C7536E3605D9C16A7A3D7B1898E529396A65C23")
	if err != nil || len(id) != 20 {
		t.Fatalf("Get=%x (%v)", id, err)
	}
	if _, err := parseIdentity("0xzz"); err == nil {
		t.Fatal("non-hex identifiers must be rejected")
	}
}

func TestReadSchema(t *testing.T) {
	dir := t.TempDir()

	file := filepath.Join(dir, "schema.json")
	schema := `{"name":"posts","tables":[{"name":"posts","columns":[{"name":"id","type":{"name":"int"}}]}]}`
	if err := os.WriteFile(file, []byte(schema), 0600); err != nil {
		t.Fatal(err)
	}

	s, err := readSchema(file)
	if err != nil {
		t.Fatal(err)
	}
	if s.Name != "posts" || len(s.Tables) != 1 || s.Tables[0].Columns[0].Type.Name != "int" {
		t.Fatalf("Get=%+v", s)
	}

	unnamed := filepath.Join(dir, "unnamed.json")
	if err := os.WriteFile(unnamed, []byte(`{"tables":[]}`), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := readSchema(unnamed); err == nil {
		t.Fatal("schemas without a name must be rejected")
	}
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := printJSON(&buf, "pong"); err != nil || buf.String() != "pong\n" {
		t.Fatalf("Get=%q (%v)", buf.String(), err)
	}

	buf.Reset()
	if err := printJSON(&buf, map[string]int{"height": 1}); err != nil || buf.String() != "{\n  \"height\": 1\n}\n" {
		t.Fatalf("Get=%q (%v)", buf.String(), err)
	}
}
