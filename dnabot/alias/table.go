package alias

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// table is an alias map that remembers the key order of its JSON file.
// Resolution walks entries first-match-wins, so stored order is part of the
// observable behavior and plain map iteration would not do.
type table struct {
	names   []string
	aliases map[string][]string
}

func newTable() *table {
	return &table{aliases: make(map[string][]string)}
}

func (t *table) get(name string) ([]string, bool) {
	v, ok := t.aliases[name]
	return v, ok
}

func (t *table) set(name string, list []string) {
	if _, ok := t.aliases[name]; !ok {
		t.names = append(t.names, name)
	}
	t.aliases[name] = list
}

func (t *table) len() int {
	return len(t.names)
}

// loadTable reads a flat {"name": ["alias", ...]} object preserving key
// order. A missing or malformed file is repaired by writing back "{}".
func loadTable(path string) (*table, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if writeErr := writeJSONFile(path, []byte("{}")); writeErr != nil {
			return nil, writeErr
		}
		return newTable(), nil
	}

	t, err := parseTable(raw)
	if err != nil {
		if writeErr := writeJSONFile(path, []byte("{}")); writeErr != nil {
			return nil, writeErr
		}
		return newTable(), nil
	}
	return t, nil
}

func parseTable(raw []byte) (*table, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("alias: expected object, got %v", tok)
	}

	t := newTable()
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key := keyTok.(string)

		var list []string
		if err := dec.Decode(&list); err != nil {
			return nil, err
		}
		t.set(key, list)
	}
	return t, nil
}

// marshal renders the table back in stored order, two-space indented like
// the files the original tooling produced.
func (t *table) marshal() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("{")
	for i, name := range t.names {
		if i > 0 {
			buf.WriteString(",")
		}
		buf.WriteString("\n  ")
		nameJSON, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		buf.Write(nameJSON)
		buf.WriteString(": ")
		listJSON, err := json.Marshal(t.aliases[name])
		if err != nil {
			return nil, err
		}
		buf.Write(listJSON)
	}
	if len(t.names) > 0 {
		buf.WriteString("\n")
	}
	buf.WriteString("}")
	return buf.Bytes(), nil
}

func (t *table) save(path string) error {
	raw, err := t.marshal()
	if err != nil {
		return err
	}
	return writeJSONFile(path, raw)
}

// stringTable is the id→name variant: a flat {"id": "name"} object, again
// order-preserving.
type stringTable struct {
	names  []string
	values map[string]string
}

func loadStringTable(path string) (*stringTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if writeErr := writeJSONFile(path, []byte("{}")); writeErr != nil {
			return nil, writeErr
		}
		return &stringTable{values: make(map[string]string)}, nil
	}

	t, err := parseStringTable(raw)
	if err != nil {
		if writeErr := writeJSONFile(path, []byte("{}")); writeErr != nil {
			return nil, writeErr
		}
		return &stringTable{values: make(map[string]string)}, nil
	}
	return t, nil
}

func parseStringTable(raw []byte) (*stringTable, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("alias: expected object, got %v", tok)
	}

	t := &stringTable{values: make(map[string]string)}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key := keyTok.(string)

		var value string
		if err := dec.Decode(&value); err != nil {
			return nil, err
		}
		if _, ok := t.values[key]; !ok {
			t.names = append(t.names, key)
		}
		t.values[key] = value
	}
	return t, nil
}

func writeJSONFile(path string, raw []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o644)
}
