// Command sqllint checks that every SQL string constant starts with a
// `--sql <uuid>` audit marker and that no marker appears twice.
package main

import (
	"flag"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var (
	sqlKeywordPattern = regexp.MustCompile(`(?i)\b(select|insert|update|delete|with|create|alter)\b`)
	markerPattern     = regexp.MustCompile(`^--sql [0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)
)

type violation struct {
	file    string
	name    string
	line    int
	message string
}

func (v violation) String() string {
	return fmt.Sprintf("%s:%d %s (%s)", v.file, v.line, v.message, v.name)
}

type linter struct {
	seen       map[string]violation
	violations []violation
}

func newLinter() *linter {
	return &linter{seen: map[string]violation{}}
}

func main() {
	flag.Parse()
	targets := flag.Args()
	if len(targets) == 0 {
		targets = []string{"internal/sqlinline"}
	}

	l := newLinter()
	for _, target := range targets {
		files, err := goFiles(target)
		if err != nil {
			fmt.Fprintf(os.Stderr, "sqllint: %v\n", err)
			os.Exit(1)
		}
		for _, path := range files {
			if err := l.lintFile(path); err != nil {
				fmt.Fprintf(os.Stderr, "sqllint: %v\n", err)
				os.Exit(1)
			}
		}
	}

	if len(l.violations) == 0 {
		return
	}
	sort.Slice(l.violations, func(i, j int) bool {
		a, b := l.violations[i], l.violations[j]
		if a.file != b.file {
			return a.file < b.file
		}
		return a.line < b.line
	})
	fmt.Fprintln(os.Stderr, "sqllint: bad SQL audit markers")
	for _, v := range l.violations {
		fmt.Fprintln(os.Stderr, "  "+v.String())
	}
	os.Exit(1)
}

// goFiles expands target into the non-test Go files it names.
func goFiles(target string) ([]string, error) {
	info, err := os.Stat(target)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		if filepath.Ext(target) != ".go" {
			return nil, nil
		}
		return []string{target}, nil
	}
	var files []string
	err = filepath.WalkDir(target, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != target && (strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") || name == "vendor") {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) == ".go" && !strings.HasSuffix(path, "_test.go") {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// lintFile records queries without a valid marker and markers already seen
// in an earlier file or constant.
func (l *linter) lintFile(path string) error {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, nil, parser.ParseComments)
	if err != nil {
		return err
	}
	ast.Inspect(file, func(n ast.Node) bool {
		spec, ok := n.(*ast.ValueSpec)
		if !ok {
			return true
		}
		for _, value := range spec.Values {
			lit, ok := value.(*ast.BasicLit)
			if !ok || lit.Kind != token.STRING {
				continue
			}
			raw, err := literalValue(lit.Value)
			if err != nil || !sqlKeywordPattern.MatchString(raw) {
				continue
			}
			l.check(raw, violation{
				file: path,
				line: fset.Position(lit.Pos()).Line,
				name: identNames(spec.Names),
			})
		}
		return true
	})
	return nil
}

func (l *linter) check(query string, at violation) {
	marker := markerLine(query)
	if !markerPattern.MatchString(marker) {
		at.message = "missing or invalid --sql <uuid> marker"
		l.violations = append(l.violations, at)
		return
	}
	if first, dup := l.seen[marker]; dup {
		at.message = fmt.Sprintf("marker reused from %s:%d", first.file, first.line)
		l.violations = append(l.violations, at)
		return
	}
	l.seen[marker] = at
}

func markerLine(s string) string {
	s = strings.TrimLeft(s, "\n\r \t")
	if idx := strings.IndexAny(s, "\n\r"); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

func literalValue(v string) (string, error) {
	if strings.HasPrefix(v, "`") {
		return strings.Trim(v, "`"), nil
	}
	return strconv.Unquote(v)
}

func identNames(idents []*ast.Ident) string {
	names := make([]string, 0, len(idents))
	for _, id := range idents {
		names = append(names, id.Name)
	}
	return strings.Join(names, ",")
}
