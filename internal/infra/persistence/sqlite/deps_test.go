package sqlite

import (
	"go/build"
	"strings"
	"testing"
)

// Infra stores may depend on the shared domain package only.
func TestImportsAreDomainOrExternal(t *testing.T) {
	pkg, err := build.Default.ImportDir(".", 0)
	if err != nil {
		t.Fatalf("import dir: %v", err)
	}
	for _, imp := range pkg.Imports {
		if strings.HasPrefix(imp, "agromix/") && imp != "agromix/pkg/domain" {
			t.Fatalf("unexpected dependency: %s", imp)
		}
	}
}
