package version

import (
	"strings"
	"testing"
)

func TestString_UsesLinkerValues(t *testing.T) {
	oldV, oldC, oldD := Version, Commit, Date
	t.Cleanup(func() { Version, Commit, Date = oldV, oldC, oldD })

	Version, Commit, Date = "v1.4.0", "abc1234", "2026-10-01"
	if got := String(); got != "v1.4.0 (abc1234, 2026-10-01)" {
		t.Errorf("String() = %q", got)
	}
}

func TestString_Defaults(t *testing.T) {
	if got := String(); !strings.Contains(got, Date) {
		t.Errorf("String() = %q, want date %q included", got, Date)
	}
}
