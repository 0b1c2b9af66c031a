package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeCatalog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "environments.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

const twoEnvs = `
environments:
  - name: PRD1
    group: prod
    url: https://osb-prd1:7002
    username: weblogic
    credential: env:OSB_PRD1_PASSWORD
  - name: DEV1
    group: DEV
    url: http://osb-dev1:7001
    username: weblogic
    credential: file:/run/secrets/dev1
    insecure: true
`

func TestLoadCatalog_Valid(t *testing.T) {
	cat, err := LoadCatalog(writeCatalog(t, twoEnvs))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	list := cat.List()
	if len(list) != 2 {
		t.Fatalf("expected 2 environments, got %d", len(list))
	}
	if list[0].Name != "PRD1" || list[1].Name != "DEV1" {
		t.Errorf("catalog order not preserved: %q, %q", list[0].Name, list[1].Name)
	}
	if list[0].Group != "PROD" {
		t.Errorf("Group = %q, want PROD", list[0].Group)
	}
	if !list[1].Insecure {
		t.Error("expected DEV1 to be insecure")
	}
}

func TestLoadCatalog_FileNotFound(t *testing.T) {
	_, err := LoadCatalog(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Error("expected error when catalog file does not exist")
	}
}

func TestLoadCatalog_Empty(t *testing.T) {
	_, err := LoadCatalog(writeCatalog(t, "environments: []\n"))
	if err == nil {
		t.Error("expected error for empty catalog")
	}
}

func TestLoadCatalog_DuplicateName(t *testing.T) {
	_, err := LoadCatalog(writeCatalog(t, `
environments:
  - name: DEV1
    url: http://a:7001
    username: u
    credential: X
  - name: DEV1
    url: http://b:7001
    username: u
    credential: Y
`))
	if err == nil {
		t.Error("expected error for duplicate names")
	}
}

func TestLoadCatalog_Validation(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"missing name", "environments:\n  - url: http://a\n    username: u\n    credential: X\n"},
		{"bad url", "environments:\n  - name: A\n    url: a:7001\n    username: u\n    credential: X\n"},
		{"missing username", "environments:\n  - name: A\n    url: http://a\n    credential: X\n"},
		{"missing credential", "environments:\n  - name: A\n    url: http://a\n    username: u\n"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if _, err := LoadCatalog(writeCatalog(t, c.content)); err == nil {
				t.Errorf("expected validation error")
			}
		})
	}
}

func TestCatalog_Resolve(t *testing.T) {
	cat, err := LoadCatalog(writeCatalog(t, twoEnvs))
	if err != nil {
		t.Fatal(err)
	}
	p, err := cat.Resolve("DEV1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Endpoint != "http://osb-dev1:7001" {
		t.Errorf("Endpoint = %q", p.Endpoint)
	}

	_, err = cat.Resolve("QA9")
	if !errors.Is(err, ErrUnknownEnvironment) {
		t.Errorf("expected ErrUnknownEnvironment, got %v", err)
	}
}

func TestCatalog_At(t *testing.T) {
	cat, err := LoadCatalog(writeCatalog(t, twoEnvs))
	if err != nil {
		t.Fatal(err)
	}
	p, err := cat.At(1)
	if err != nil || p.Name != "DEV1" {
		t.Errorf("At(1) = %q, %v", p.Name, err)
	}
	for _, i := range []int{-1, 2} {
		if _, err := cat.At(i); !errors.Is(err, ErrUnknownEnvironment) {
			t.Errorf("At(%d): expected ErrUnknownEnvironment, got %v", i, err)
		}
	}
}

func TestCatalog_Index(t *testing.T) {
	cat, err := LoadCatalog(writeCatalog(t, twoEnvs))
	if err != nil {
		t.Fatal(err)
	}
	if i, err := cat.Index(" DEV1 "); err != nil || i != 1 {
		t.Errorf("Index(DEV1) = %d, %v", i, err)
	}
	if _, err := cat.Index("QA9"); !errors.Is(err, ErrUnknownEnvironment) {
		t.Errorf("expected ErrUnknownEnvironment, got %v", err)
	}
}

func TestCatalog_Grouped(t *testing.T) {
	cat, err := NewCatalog([]EnvironmentProfile{
		{Name: "DEV2", Group: "DEV", Endpoint: "http://d2", Username: "u", Credential: "X"},
		{Name: "PRD1", Group: "PROD", Endpoint: "http://p1", Username: "u", Credential: "X"},
		{Name: "DEV1", Group: "dev", Endpoint: "http://d1", Username: "u", Credential: "X"},
		{Name: "LAB", Endpoint: "http://l", Username: "u", Credential: "X"},
	})
	if err != nil {
		t.Fatal(err)
	}
	rows := cat.Grouped()
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d: %v", len(rows), rows)
	}
	if rows[0][0] != "PRD1" || rows[0][3] != "DEV1" {
		t.Errorf("row 0 = %v", rows[0])
	}
	if rows[1][0] != "" || rows[1][3] != "DEV2" {
		t.Errorf("row 1 = %v", rows[1])
	}
}

func TestSaveCatalog_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "environments.yaml")
	profiles := []EnvironmentProfile{
		{Name: "QA1", Group: "QA", Endpoint: "https://qa1:7002", Username: "deployer", Credential: "env:QA1_PW"},
	}
	if err := SaveCatalog(path, profiles); err != nil {
		t.Fatalf("SaveCatalog: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("mode = %v, want 0600", info.Mode().Perm())
	}
	cat, err := LoadCatalog(path)
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	if got := cat.List()[0]; got != profiles[0] {
		t.Errorf("got %+v, want %+v", got, profiles[0])
	}
}
