package cli

import (
	"flag"
	"io"
	"testing"
)

func TestAddHelpVersionFlags(t *testing.T) {
	fs := flag.NewFlagSet("chime", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	flags := AddHelpVersionFlags(fs, "", "")

	if err := fs.Parse([]string{"-h"}); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !flags.Help || flags.Version {
		t.Fatalf("expected help only, got %+v", flags)
	}

	fs = flag.NewFlagSet("chime", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	flags = AddHelpVersionFlags(fs, "", "")
	if err := fs.Parse([]string{"-version"}); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !flags.Version || flags.Help {
		t.Fatalf("expected version only, got %+v", flags)
	}
}

func TestAddHelpVersionFlagsNilSet(t *testing.T) {
	flags := AddHelpVersionFlags(nil, "", "")
	if flags == nil || flags.Help || flags.Version {
		t.Fatalf("expected zero-value flags, got %+v", flags)
	}
}

func TestStringListAccumulates(t *testing.T) {
	fs := flag.NewFlagSet("chime", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var paths StringList
	fs.Var(&paths, "path", "watch path")

	if err := fs.Parse([]string{"-path", "/a, /b", "-path", "/c"}); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(paths.Values) != 3 {
		t.Fatalf("expected 3 values, got %v", paths.Values)
	}
	if paths.String() != "/a,/b,/c" {
		t.Fatalf("unexpected string form %q", paths.String())
	}
}
