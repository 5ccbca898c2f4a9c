// Package main implements an import layering linter.
//
// It scans the non-test Go files under pkg/ and reports any import that
// crosses a layer boundary: the wire codec and view cell are leaves, the
// dispatcher never reaches a concrete backend, and backends never reach the
// dispatcher.
//
// Usage:
//
//	go run ./tools/layercheck [-root <project-root>]
package main

import (
	"flag"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const modulePath = "github.com/Mindburn-Labs/effectshell/"

// rules maps a package directory (relative to pkg/) to import path
// fragments its non-test files must not contain.
var rules = map[string][]string{
	"wire":                {modulePath, "github.com/", "golang.org/", "go.opentelemetry.io/"},
	"view":                {modulePath},
	"canonicalize":        {modulePath},
	"conduit":             {"pkg/shell", "pkg/capabilities", "pkg/wallet"},
	"conduit/conduittest": {"pkg/shell", "pkg/capabilities", "github.com/tetratelabs/"},
	"wallet":              {"pkg/shell", "pkg/conduit", "pkg/capabilities"},
	"shell":               {"pkg/capabilities", "pkg/kv", "pkg/objectstore", "pkg/keystore", "pkg/config", "pkg/observability", "pkg/wallet"},
	"kv":                  {"pkg/shell", "pkg/wire", "pkg/capabilities"},
	"objectstore":         {"pkg/shell", "pkg/wire", "pkg/capabilities"},
	"keystore":            {"pkg/shell", "pkg/wire", "pkg/capabilities"},
	"observability":       {"pkg/capabilities", "pkg/kv", "pkg/objectstore", "pkg/keystore", "pkg/config"},
}

func main() {
	root := flag.String("root", ".", "Project root directory")
	flag.Parse()
	os.Exit(run(*root, os.Stdout, os.Stderr))
}

func run(root string, stdout, stderr io.Writer) int {
	pkgDir := filepath.Join(root, "pkg")
	if _, err := os.Stat(pkgDir); os.IsNotExist(err) {
		_, _ = fmt.Fprintf(stderr, "ERROR: %s does not exist\n", pkgDir)
		return 1
	}

	violations, err := scan(root)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "ERROR: walk failed: %v\n", err)
		return 1
	}
	for _, v := range violations {
		_, _ = fmt.Fprintf(stdout, "LAYER VIOLATION: %s\n", v)
	}
	if len(violations) > 0 {
		_, _ = fmt.Fprintf(stdout, "\n❌ %d layer violation(s) found\n", len(violations))
		return 1
	}
	_, _ = fmt.Fprintln(stdout, "✅ layer check passed")
	return 0
}

// scan returns one line per forbidden import found under root/pkg.
func scan(root string) ([]string, error) {
	pkgDir := filepath.Join(root, "pkg")
	fset := token.NewFileSet()
	var violations []string

	err := filepath.Walk(pkgDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if info.Name() == "vendor" || info.Name() == "testdata" {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			return nil
		}

		rel, err := filepath.Rel(pkgDir, filepath.Dir(path))
		if err != nil {
			return err
		}
		fragments, ok := rules[filepath.ToSlash(rel)]
		if !ok {
			return nil
		}

		f, parseErr := parser.ParseFile(fset, path, nil, parser.ImportsOnly)
		if parseErr != nil {
			return fmt.Errorf("parse %s: %w", path, parseErr)
		}
		for _, v := range checkFile(fset, f, fragments) {
			relPath, _ := filepath.Rel(root, v.file)
			violations = append(violations, fmt.Sprintf("%s:%d imports %q (forbidden: %q)", relPath, v.line, v.importPath, v.fragment))
		}
		return nil
	})
	return violations, err
}

type violation struct {
	file       string
	line       int
	importPath string
	fragment   string
}

func checkFile(fset *token.FileSet, f *ast.File, fragments []string) []violation {
	var out []violation
	for _, imp := range f.Imports {
		importPath := strings.Trim(imp.Path.Value, `"`)
		for _, frag := range fragments {
			if strings.Contains(importPath, frag) {
				pos := fset.Position(imp.Pos())
				out = append(out, violation{file: pos.Filename, line: pos.Line, importPath: importPath, fragment: frag})
			}
		}
	}
	return out
}
