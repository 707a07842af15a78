package main

import (
	"bytes"
	"strings"
	"testing"
)

func runRootCommandForTest(args ...string) (string, error) {
	root := buildRootCommand()
	buf := &bytes.Buffer{}
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func TestRootHelpListsSubcommands(t *testing.T) {
	output, err := runRootCommandForTest("--help")
	if err != nil {
		t.Fatalf("execute --help: %v\nOutput:\n%s", err, output)
	}
	for _, sub := range []string{"onboard", "serve", "chat", "status", "version"} {
		if !strings.Contains(output, sub) {
			t.Errorf("help output missing subcommand %q", sub)
		}
	}
}

func TestRootWithoutSubcommandErrors(t *testing.T) {
	_, err := runRootCommandForTest()
	if err == nil {
		t.Fatal("expected error when no subcommand is given")
	}
}

func TestUnknownSubcommandErrors(t *testing.T) {
	_, err := runRootCommandForTest("bogus")
	if err == nil {
		t.Fatal("expected error for unknown subcommand")
	}
}
