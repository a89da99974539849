package main

import (
	"strings"
	"testing"
)

func TestRootCommandHasMigrationVerbs(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"up", "down", "status"} {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Fatalf("expected %q subcommand, got %v %v", name, cmd, err)
		}
	}
}

func TestMissingDatabaseURLFails(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("CV_CONFIG_FILE", "")
	root := newRootCmd()
	root.SetArgs([]string{"status"})
	root.SetOut(new(strings.Builder))
	root.SetErr(new(strings.Builder))
	err := root.Execute()
	if err == nil || !strings.Contains(err.Error(), "database url required") {
		t.Fatalf("expected missing url error, got %v", err)
	}
}
