package config

import (
	"github.com/AmirTallap/Salam/pkg/cli"
)

type Warning int

const (
	WarnDuplicateAttribute Warning = iota
	WarnUnknownAttribute
	WarnEmptyLayout
	WarnRedefinedFunction
	WarnUnusedFunction
	WarnExtra
	WarnCount
)

type Info struct {
	Name        string
	Enabled     bool
	Description string
}

// Config carries the knobs shared across one compiler invocation.
type Config struct {
	Warnings   map[Warning]Info
	WarningMap map[string]Warning

	Werror  bool // promote warnings to errors
	NoColor bool
	Verbose bool

	OutputPath  string
	TokensPath  string // when set, dump the scanned token stream here
	DumpAST     bool
	IncludeDirs []string // searched, in order, for imported files
}

func NewConfig() *Config {
	cfg := &Config{
		Warnings:   make(map[Warning]Info),
		WarningMap: make(map[string]Warning),
	}

	warnings := map[Warning]Info{
		WarnDuplicateAttribute: {"duplicate-attribute", true, "Warn when an attribute is assigned twice in the same block."},
		WarnUnknownAttribute:   {"unknown-attribute", true, "Warn on attributes with no known styling or content meaning."},
		WarnEmptyLayout:        {"empty-layout", true, "Warn when a layout or element block is empty."},
		WarnRedefinedFunction:  {"redefined-function", true, "Warn when a function name is defined more than once."},
		WarnUnusedFunction:     {"unused-function", false, "Warn about functions never referenced from a layout."},
		WarnExtra:              {"extra", true, "Enable extra miscellaneous warnings."},
	}

	cfg.Warnings = warnings
	for wt, info := range warnings {
		cfg.WarningMap[info.Name] = wt
	}
	return cfg
}

func (c *Config) SetWarning(wt Warning, enabled bool) {
	if info, ok := c.Warnings[wt]; ok {
		info.Enabled = enabled
		c.Warnings[wt] = info
	}
}

func (c *Config) IsWarningEnabled(wt Warning) bool { return c.Warnings[wt].Enabled }

func (c *Config) WarningName(wt Warning) string { return c.Warnings[wt].Name }

// SetAllWarnings flips every warning at once, as -Wall and -Wno-all do.
func (c *Config) SetAllWarnings(enabled bool) {
	for wt := Warning(0); wt < WarnCount; wt++ {
		c.SetWarning(wt, enabled)
	}
}

// SetupFlagGroups registers a -W<name>/-Wno-<name> flag pair per
// warning, returned in Warning order for ApplyFlagGroups.
func (c *Config) SetupFlagGroups(fs *cli.FlagSet) []cli.FlagGroupEntry {
	entries := make([]cli.FlagGroupEntry, WarnCount)
	for wt := Warning(0); wt < WarnCount; wt++ {
		info := c.Warnings[wt]
		enabled := info.Enabled
		disabled := false
		entries[wt] = cli.FlagGroupEntry{
			Name:     info.Name,
			Prefix:   "W",
			Usage:    info.Description,
			Enabled:  &enabled,
			Disabled: &disabled,
		}
	}
	fs.AddFlagGroup("Warnings", "Diagnostic toggles.", "warning", "Available warnings:", entries)
	return entries
}

// ApplyFlagGroups folds parsed -W flags back into the warning table.
// Disables win over enables, so -Wx -Wno-x nets out disabled.
func (c *Config) ApplyFlagGroups(entries []cli.FlagGroupEntry) {
	for i, entry := range entries {
		if entry.Enabled != nil && *entry.Enabled {
			c.SetWarning(Warning(i), true)
		}
		if entry.Disabled != nil && *entry.Disabled {
			c.SetWarning(Warning(i), false)
		}
	}
}
