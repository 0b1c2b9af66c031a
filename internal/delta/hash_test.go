package delta

import (
	"strings"
	"testing"
)

func TestHashRows(t *testing.T) {
	rows := [][]string{{"p1", "p1/ps/A", "/a", "WM1"}, {"p2", "p2/ps/B", "", ""}}
	hash := HashRows(rows)
	if !strings.HasPrefix(hash, "sha256:") {
		t.Errorf("expected sha256: prefix, got %q", hash)
	}
	if len(hash) != len("sha256:")+64 {
		t.Errorf("unexpected digest length %d", len(hash))
	}
	// Same rows hashed twice must be identical.
	if hash2 := HashRows(rows); hash != hash2 {
		t.Errorf("hashes differ for same rows: %q vs %q", hash, hash2)
	}
}

func TestHashRows_CellBoundaries(t *testing.T) {
	a := HashRows([][]string{{"ab", "c"}})
	b := HashRows([][]string{{"a", "bc"}})
	if a == b {
		t.Errorf("moving text between cells must change the digest")
	}
	c := HashRows([][]string{{"a"}, {"b"}})
	d := HashRows([][]string{{"a", "b"}})
	if c == d {
		t.Errorf("rows and cells must not collide")
	}
}

func TestHashRows_Empty(t *testing.T) {
	if HashRows(nil) != HashRows([][]string{}) {
		t.Errorf("nil and empty tables should hash the same")
	}
}

func TestShort(t *testing.T) {
	d := HashRows(nil)
	if got := Short(d); got != d[:19] {
		t.Errorf("Short = %q", got)
	}
	if Short("sha256:ab") != "sha256:ab" {
		t.Errorf("short digests are returned unchanged")
	}
}
