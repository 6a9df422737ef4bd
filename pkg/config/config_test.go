package config_test

import (
	"testing"

	"github.com/AmirTallap/Salam/pkg/cli"
	"github.com/AmirTallap/Salam/pkg/config"
)

func TestDefaultWarnings(t *testing.T) {
	cfg := config.NewConfig()
	cases := []struct {
		wt      config.Warning
		name    string
		enabled bool
	}{
		{config.WarnDuplicateAttribute, "duplicate-attribute", true},
		{config.WarnUnknownAttribute, "unknown-attribute", true},
		{config.WarnEmptyLayout, "empty-layout", true},
		{config.WarnRedefinedFunction, "redefined-function", true},
		{config.WarnUnusedFunction, "unused-function", false},
		{config.WarnExtra, "extra", true},
	}
	for _, c := range cases {
		if got := cfg.IsWarningEnabled(c.wt); got != c.enabled {
			t.Errorf("IsWarningEnabled(%s) = %v, want %v", c.name, got, c.enabled)
		}
		if got := cfg.WarningName(c.wt); got != c.name {
			t.Errorf("WarningName(%d) = %q, want %q", c.wt, got, c.name)
		}
		if got, ok := cfg.WarningMap[c.name]; !ok || got != c.wt {
			t.Errorf("WarningMap[%q] = %v, %v, want %v", c.name, got, ok, c.wt)
		}
	}
}

func TestSetWarning(t *testing.T) {
	cfg := config.NewConfig()
	cfg.SetWarning(config.WarnEmptyLayout, false)
	if cfg.IsWarningEnabled(config.WarnEmptyLayout) {
		t.Error("empty-layout still enabled after SetWarning(false)")
	}
	cfg.SetWarning(config.WarnEmptyLayout, true)
	if !cfg.IsWarningEnabled(config.WarnEmptyLayout) {
		t.Error("empty-layout still disabled after SetWarning(true)")
	}
}

func TestSetAllWarnings(t *testing.T) {
	cfg := config.NewConfig()
	cfg.SetAllWarnings(false)
	for wt := config.Warning(0); wt < config.WarnCount; wt++ {
		if cfg.IsWarningEnabled(wt) {
			t.Errorf("%s enabled after SetAllWarnings(false)", cfg.WarningName(wt))
		}
	}
	cfg.SetAllWarnings(true)
	for wt := config.Warning(0); wt < config.WarnCount; wt++ {
		if !cfg.IsWarningEnabled(wt) {
			t.Errorf("%s disabled after SetAllWarnings(true)", cfg.WarningName(wt))
		}
	}
}

func TestFlagGroupsRoundTrip(t *testing.T) {
	cfg := config.NewConfig()
	fs := cli.NewFlagSet("salam")
	entries := cfg.SetupFlagGroups(fs)

	if err := fs.Parse([]string{"-Wunused-function", "-Wno-empty-layout"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	cfg.ApplyFlagGroups(entries)

	if !cfg.IsWarningEnabled(config.WarnUnusedFunction) {
		t.Error("-Wunused-function did not enable the warning")
	}
	if cfg.IsWarningEnabled(config.WarnEmptyLayout) {
		t.Error("-Wno-empty-layout did not disable the warning")
	}
	if !cfg.IsWarningEnabled(config.WarnDuplicateAttribute) {
		t.Error("untouched warning lost its default")
	}
}

// -Wx -Wno-x nets out disabled, whatever the order.
func TestDisableWinsOverEnable(t *testing.T) {
	cfg := config.NewConfig()
	fs := cli.NewFlagSet("salam")
	entries := cfg.SetupFlagGroups(fs)

	if err := fs.Parse([]string{"-Wno-empty-layout", "-Wempty-layout"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	cfg.ApplyFlagGroups(entries)

	if cfg.IsWarningEnabled(config.WarnEmptyLayout) {
		t.Error("empty-layout enabled; the disable toggle should win")
	}
}
