package main

import "testing"

func TestParseArgsRecognizesKeepCaseInsensitively(t *testing.T) {
	for _, arg := range []string{"--keep", "--Keep", "--KEEP"} {
		_, keep := parseArgs([]string{arg})
		if !keep {
			t.Fatalf("parseArgs([%q]) keep = false, want true", arg)
		}
	}
}

func TestParseArgsIgnoresUnknownFlags(t *testing.T) {
	path, keep := parseArgs([]string{"--whatever", "value", "positional"})
	if keep {
		t.Fatal("keep = true, want false")
	}
	if path != defaultConfigPath {
		t.Fatalf("path = %q, want default %q", path, defaultConfigPath)
	}
}

func TestParseArgsReadsConfigPathSpaceForm(t *testing.T) {
	path, _ := parseArgs([]string{"--config", "/etc/judge-core.yaml"})
	if path != "/etc/judge-core.yaml" {
		t.Fatalf("path = %q, want /etc/judge-core.yaml", path)
	}
}

func TestParseArgsReadsConfigPathEqualsForm(t *testing.T) {
	path, _ := parseArgs([]string{"--config=/etc/judge-core.yaml"})
	if path != "/etc/judge-core.yaml" {
		t.Fatalf("path = %q, want /etc/judge-core.yaml", path)
	}
}
