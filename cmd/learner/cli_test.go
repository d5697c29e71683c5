package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCommandArgs(t *testing.T) {
	var args = NewCommandArgs([]string{"learner", "learn", "-batchsize", "1000", "-lr", "0.5", "-use_wdl", "true", "-name"})
	if args.CommandName() != "learn" {
		t.Error(args.CommandName())
	}
	if v := args.GetUint64("batchsize", 1); v != 1000 {
		t.Error("batchsize", v)
	}
	if v := args.GetFloat("lr", 1); v != 0.5 {
		t.Error("lr", v)
	}
	if v := args.GetBool("use_wdl", false); !v {
		t.Error("use_wdl", v)
	}
	// a trailing key without a value is ignored
	if v := args.GetString("name", "default"); v != "default" {
		t.Error("name", v)
	}
	if err := args.Err(); err != nil {
		t.Error(err)
	}
}

func TestCommandArgsErr(t *testing.T) {
	var args = NewCommandArgs([]string{"learner", "gensfen", "-depth", "x", "-loop", "-1"})
	if v := args.GetInt("depth", 3); v != 3 {
		t.Error("depth", v)
	}
	if v := args.GetUint64("loop", 10); v != 10 {
		t.Error("loop", v)
	}
	if args.Err() == nil {
		t.Error("expected error")
	}
}

func TestExecuteUnknown(t *testing.T) {
	var cli = NewCli([]string{"learner", "nope"})
	var called = false
	cli.AddCommand("learn", func() error {
		called = true
		return nil
	})
	if err := cli.Execute(); err == nil || called {
		t.Error(err, called)
	}
}

func TestInputFiles(t *testing.T) {
	var base = t.TempDir()
	if err := os.MkdirAll(filepath.Join(base, "data", "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"a.bin", "b.binpack"} {
		if err := os.WriteFile(filepath.Join(base, "data", name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	var args = NewCommandArgs([]string{"learner", "learn", "-basedir", base, "-targetdir", "data", "-files", "x.bin"})
	var files, err = inputFiles(args)
	if err != nil {
		t.Fatal(err)
	}
	var expected = []string{
		filepath.Join(base, "x.bin"),
		filepath.Join(base, "data", "a.bin"),
		filepath.Join(base, "data", "b.binpack"),
	}
	if len(files) != len(expected) {
		t.Fatal(files)
	}
	for i := range expected {
		if files[i] != expected[i] {
			t.Error(i, files[i], expected[i])
		}
	}

	if _, err := inputFiles(NewCommandArgs([]string{"learner", "learn"})); err == nil {
		t.Error("expected error without inputs")
	}
}
