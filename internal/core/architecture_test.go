package core_test

import (
	"strings"
	"testing"

	"golang.org/x/tools/go/packages"
)

var forbiddenImports = []string{
	"net",
	"os",
	"io/fs",
	"database/sql",
	"log",
	"eventboard/internal/storage",
	"eventboard/internal/store",
	"eventboard/internal/http",
	"eventboard/internal/remote",
	"eventboard/internal/amqp",
}

func TestCoreImportsNoIO(t *testing.T) {
	if testing.Short() {
		t.Skip("loads package metadata through the go tool")
	}
	pkgs, err := packages.Load(&packages.Config{Mode: packages.NeedName | packages.NeedImports}, "eventboard/internal/core")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if packages.PrintErrors(pkgs) > 0 {
		t.Fatalf("package errors")
	}
	for _, pkg := range pkgs {
		for path := range pkg.Imports {
			for _, bad := range forbiddenImports {
				if path == bad || strings.HasPrefix(path, bad+"/") {
					t.Errorf("%s imports %s", pkg.PkgPath, path)
				}
			}
		}
	}
}
