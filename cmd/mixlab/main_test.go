package main

import (
	"errors"
	"testing"

	"github.com/RenatoCabral2022/mixlab-host/internal/session"
)

func TestRunArguments(t *testing.T) {
	t.Setenv("MIXLAB_HEADLESS", "true")
	t.Setenv("MIXLAB_MAX_BLOCKS", "3")

	cases := []struct {
		name    string
		args    []string
		usage   bool
		startup bool
	}{
		{name: "no argument", args: []string{"mixlab"}, usage: true},
		{name: "empty path", args: []string{"mixlab", ""}, usage: true},
		{name: "unknown stub", args: []string{"mixlab", "stub:missing"}, startup: true},
		{name: "reference stub", args: []string{"mixlab", "stub:reference"}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := run(c.args)
			switch {
			case c.usage:
				if !errors.Is(err, errUsage) {
					t.Errorf("expected usage error, got %v", err)
				}
			case c.startup:
				var se *session.StartupError
				if !errors.As(err, &se) || se.Stage != "load" {
					t.Errorf("expected load startup error, got %v", err)
				}
			default:
				if err != nil {
					t.Errorf("expected a clean run, got %v", err)
				}
			}
		})
	}
}

func TestUsageMessage(t *testing.T) {
	if errUsage.Error() != "usage: mixlab <plugin-path>" {
		t.Errorf("unexpected usage text %q", errUsage)
	}
}
