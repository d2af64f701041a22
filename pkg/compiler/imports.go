package compiler

// Imports needed by the figure branch of every output sink
var baseImports = []string{
	"import matplotlib.pyplot as plt",
	"from io import BytesIO",
	"import base64",
}

const (
	pandasImport = "import pandas as pd"
	jsonImport   = "import json"
)

// importSet is an insertion-ordered set of import statements
type importSet struct {
	seen  map[string]bool
	order []string
}

func newImportSet(initial ...string) *importSet {
	s := &importSet{seen: make(map[string]bool)}
	for _, stmt := range initial {
		s.Add(stmt)
	}
	return s
}

// Add records stmt unless it is already present
func (s *importSet) Add(stmt string) {
	if stmt == "" || s.seen[stmt] {
		return
	}
	s.seen[stmt] = true
	s.order = append(s.order, stmt)
}

// List returns the statements in first-seen order
func (s *importSet) List() []string {
	return append([]string{}, s.order...)
}
