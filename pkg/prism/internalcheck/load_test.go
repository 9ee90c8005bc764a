package internalcheck

import (
	"go/ast"
	"strings"
	"testing"

	"golang.org/x/tools/go/packages"
)

const modulePath = "github.com/prismdata/prism-go"

// checkedPatterns are the packages that handle key material.
var checkedPatterns = []string{
	modulePath + "/pkg/prism/...",
	modulePath + "/internal/store",
}

func loadChecked(t *testing.T) []*packages.Package {
	t.Helper()
	mode := packages.NeedName | packages.NeedFiles | packages.NeedSyntax | packages.NeedTypes | packages.NeedTypesInfo
	pkgs, err := packages.Load(&packages.Config{Mode: mode}, checkedPatterns...)
	if err != nil {
		t.Fatalf("load packages: %v", err)
	}
	if packages.PrintErrors(pkgs) > 0 {
		t.Fatalf("packages failed to load")
	}
	return pkgs
}

// rule reports a violation message for n, or "" when n is acceptable.
type rule func(pkg *packages.Package, n ast.Node) string

// enforce walks every checked file and fails the test with all findings.
func enforce(t *testing.T, policy string, r rule) {
	t.Helper()
	var findings []string
	for _, pkg := range loadChecked(t) {
		for _, file := range pkg.Syntax {
			ast.Inspect(file, func(n ast.Node) bool {
				if n == nil {
					return false
				}
				if msg := r(pkg, n); msg != "" {
					findings = append(findings, pkg.Fset.Position(n.Pos()).String()+": "+msg)
				}
				return true
			})
		}
	}
	if len(findings) > 0 {
		t.Fatalf("%s policy violation:\n%s", policy, strings.Join(findings, "\n"))
	}
}

// callee resolves the package path and name of a qualified call.
func callee(pkg *packages.Package, call *ast.CallExpr) (string, string, bool) {
	sel, ok := call.Fun.(*ast.SelectorExpr)
	if !ok {
		return "", "", false
	}
	obj := pkg.TypesInfo.Uses[sel.Sel]
	if obj == nil || obj.Pkg() == nil {
		return "", "", false
	}
	return obj.Pkg().Path(), obj.Name(), true
}
