package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestInfraImportForbiddenPredicate(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"agromix/internal/infra/persistence/sqlite", true},
		{"agromix/internal/core", true},
		{"agromix/internal/blob", true},
		{"agromix/pkg/domain", false},
		{"agromix/internal/mixing", false},
	}
	for _, c := range cases {
		if got := InfraImportForbidden(c.in); got != c.want {
			t.Fatalf("InfraImportForbidden(%q)=%v want %v", c.in, got, c.want)
		}
	}
}

func TestAnyOfCombinesPredicates(t *testing.T) {
	pred := AnyOf(InfraImportForbidden, IOImportForbidden)
	if !pred("os") || !pred("agromix/internal/core") || pred("math") {
		t.Fatalf("unexpected combined predicate result")
	}
}

// TestAssertNoDirectImports exercises the success path with a tiny temp package.
func TestAssertNoDirectImports(t *testing.T) {
	dir := t.TempDir()
	src := []byte("package tmp\nimport \"fmt\"\nfunc X(){fmt.Println(1)}")
	if err := os.WriteFile(filepath.Join(dir, "x.go"), src, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	AssertNoDirectImports(t, dir, IOImportForbidden, "none")
}

type recordingFatal struct{ msg string }

func (r *recordingFatal) Fatalf(format string, _ ...any) { r.msg = format }

func TestDirectViolationsReported(t *testing.T) {
	dir := t.TempDir()
	src := []byte("package tmp\nimport \"os\"\nvar _ = os.Args")
	if err := os.WriteFile(filepath.Join(dir, "x.go"), src, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	viols, err := directImportViolations(dir, IOImportForbidden)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(viols) != 1 {
		t.Fatalf("expected one violation, got %v", viols)
	}
	rec := &recordingFatal{}
	failIfDirectViolations(rec, "io", viols)
	if rec.msg == "" {
		t.Fatalf("expected fatal to be recorded")
	}
}
