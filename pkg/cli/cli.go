// Package cli is the option-parsing and help-page layer under the salam
// command. It understands long flags, single-letter shorthands, and
// grouped toggle flags of the -W<name>/-Wno-<name> kind.
package cli

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/term"
)

type Value interface {
	String() string
	Set(string) error
}

type stringValue struct{ p *string }

func (v *stringValue) Set(s string) error { *v.p = s; return nil }
func (v *stringValue) String() string     { return *v.p }

type boolValue struct{ p *bool }

func (v *boolValue) Set(s string) error {
	if s == "" {
		*v.p = true
		return nil
	}
	val, err := strconv.ParseBool(s)
	if err != nil {
		return fmt.Errorf("invalid boolean value %q: %w", s, err)
	}
	*v.p = val
	return nil
}
func (v *boolValue) String() string { return strconv.FormatBool(*v.p) }

type listValue struct{ p *[]string }

func (v *listValue) Set(s string) error { *v.p = append(*v.p, s); return nil }
func (v *listValue) String() string     { return strings.Join(*v.p, ", ") }

type Flag struct {
	Name      string
	Shorthand string
	Usage     string
	Value     Value
	DefValue  string
	ArgName   string
}

func (f *Flag) takesArg() bool {
	_, isBool := f.Value.(*boolValue)
	return !isBool
}

// FlagGroupEntry is one toggle of a prefixed flag family such as
// -W<name>/-Wno-<name>.
type FlagGroupEntry struct {
	Name     string
	Prefix   string
	Usage    string
	Enabled  *bool
	Disabled *bool
}

type FlagGroup struct {
	Name        string
	Description string
	Kind        string
	Header      string
	Flags       []FlagGroupEntry
}

type FlagSet struct {
	name       string
	flags      map[string]*Flag
	shorthands map[string]*Flag
	groups     []FlagGroup
	args       []string
}

func NewFlagSet(name string) *FlagSet {
	return &FlagSet{
		name:       name,
		flags:      make(map[string]*Flag),
		shorthands: make(map[string]*Flag),
	}
}

func (f *FlagSet) Args() []string { return f.args }

func (f *FlagSet) Lookup(name string) *Flag { return f.flags[name] }

func (f *FlagSet) String(p *string, name, shorthand, value, usage, argName string) {
	*p = value
	f.Var(&stringValue{p}, name, shorthand, usage, value, argName)
}

func (f *FlagSet) Bool(p *bool, name, shorthand string, value bool, usage string) {
	*p = value
	f.Var(&boolValue{p}, name, shorthand, usage, strconv.FormatBool(value), "")
}

func (f *FlagSet) List(p *[]string, name, shorthand, usage, argName string) {
	*p = nil
	f.Var(&listValue{p}, name, shorthand, usage, "", argName)
}

func (f *FlagSet) Var(value Value, name, shorthand, usage, defValue, argName string) {
	if name == "" {
		panic("cli: flag name cannot be empty")
	}
	if _, ok := f.flags[name]; ok {
		panic(fmt.Sprintf("cli: flag redefined: %s", name))
	}
	fl := &Flag{Name: name, Shorthand: shorthand, Usage: usage, Value: value, DefValue: defValue, ArgName: argName}
	f.flags[name] = fl
	if shorthand != "" {
		if _, ok := f.shorthands[shorthand]; ok {
			panic(fmt.Sprintf("cli: shorthand redefined: %s", shorthand))
		}
		f.shorthands[shorthand] = fl
	}
}

func (f *FlagSet) AddFlagGroup(name, description, kind, header string, entries []FlagGroupEntry) {
	for i := range entries {
		e := &entries[i]
		if e.Enabled != nil {
			f.Bool(e.Enabled, e.Prefix+e.Name, "", *e.Enabled, e.Usage)
		}
		if e.Disabled != nil {
			f.Bool(e.Disabled, e.Prefix+"no-"+e.Name, "", *e.Disabled, "Disable '"+e.Name+"'")
		}
	}
	f.groups = append(f.groups, FlagGroup{
		Name:        name,
		Description: description,
		Kind:        kind,
		Header:      header,
		Flags:       entries,
	})
}

// Group flags like -Wempty-layout arrive as single-dash arguments, so
// they are tried against the long-name table before the shorthands.
func (f *FlagSet) Parse(arguments []string) error {
	f.args = nil
	for i := 0; i < len(arguments); i++ {
		arg := arguments[i]
		if len(arg) < 2 || arg[0] != '-' {
			f.args = append(f.args, arg)
			continue
		}
		if arg == "--" {
			f.args = append(f.args, arguments[i+1:]...)
			break
		}
		if strings.HasPrefix(arg, "--") {
			if err := f.parseLong(arg[2:], arguments, &i); err != nil {
				return err
			}
			continue
		}
		name, value, hasValue := strings.Cut(arg[1:], "=")
		if fl, ok := f.flags[name]; ok {
			if err := f.setFlag(fl, "-"+name, value, hasValue, arguments, &i); err != nil {
				return err
			}
			continue
		}
		if err := f.parseShorthand(arg, arguments, &i); err != nil {
			return err
		}
	}
	return nil
}

func (f *FlagSet) parseLong(rest string, arguments []string, i *int) error {
	name, value, hasValue := strings.Cut(rest, "=")
	if name == "" {
		return fmt.Errorf("empty flag name")
	}
	fl, ok := f.flags[name]
	if !ok {
		return fmt.Errorf("unknown flag: --%s", name)
	}
	return f.setFlag(fl, "--"+name, value, hasValue, arguments, i)
}

func (f *FlagSet) parseShorthand(arg string, arguments []string, i *int) error {
	shorthand := arg[1:2]
	fl, ok := f.shorthands[shorthand]
	if !ok {
		return fmt.Errorf("unknown flag: -%s", shorthand)
	}
	if !fl.takesArg() {
		return fl.Value.Set("")
	}
	if value := arg[2:]; value != "" {
		return fl.Value.Set(strings.TrimPrefix(value, "="))
	}
	if *i+1 >= len(arguments) {
		return fmt.Errorf("flag needs an argument: -%s", shorthand)
	}
	*i++
	return fl.Value.Set(arguments[*i])
}

func (f *FlagSet) setFlag(fl *Flag, spelled, value string, hasValue bool, arguments []string, i *int) error {
	if hasValue {
		return fl.Value.Set(value)
	}
	if !fl.takesArg() {
		return fl.Value.Set("")
	}
	if *i+1 >= len(arguments) {
		return fmt.Errorf("flag needs an argument: %s", spelled)
	}
	*i++
	return fl.Value.Set(arguments[*i])
}

// App ties a FlagSet to the headers of the generated help pages.
type App struct {
	Name        string
	Version     string
	Synopsis    string
	Description string
	Authors     []string
	Repository  string
	FlagSet     *FlagSet
	Action      func(args []string) error
}

func NewApp(name string) *App {
	return &App{Name: name, FlagSet: NewFlagSet(name)}
}

// Run parses arguments and dispatches to Action.
func (a *App) Run(arguments []string) error {
	help := false
	a.FlagSet.Bool(&help, "help", "h", false, "Display this information.")

	if err := a.FlagSet.Parse(arguments); err != nil {
		fmt.Fprintln(os.Stderr, err)
		a.Usage(os.Stderr)
		return err
	}
	if help {
		a.Help(os.Stdout)
		return nil
	}
	if a.Action != nil {
		return a.Action(a.FlagSet.Args())
	}
	return nil
}

func (a *App) Usage(w io.Writer) {
	fmt.Fprintf(w, "Usage: %s %s\n", a.Name, a.Synopsis)
	fmt.Fprintf(w, "Run '%s --help' for all available options and flags.\n", a.Name)
}

func (a *App) Help(w io.Writer) {
	width := terminalWidth()
	indent := NewIndentState()
	head := color.New(color.Bold)

	fmt.Fprintf(w, "%s%s %s\n", indent.AtLevel(1), head.Sprint(a.Name), a.Version)
	if len(a.Authors) > 0 {
		fmt.Fprintf(w, "%sBy %s and contributors\n", indent.AtLevel(1), strings.Join(a.Authors, ", "))
	}
	if a.Repository != "" {
		fmt.Fprintf(w, "%sFor more details refer to %s\n", indent.AtLevel(1), a.Repository)
	}

	if a.Synopsis != "" {
		fmt.Fprintf(w, "\n%s%s\n", indent.AtLevel(1), head.Sprint("Synopsis"))
		fmt.Fprintf(w, "%s%s %s\n", indent.AtLevel(2), a.Name, a.Synopsis)
	}
	if a.Description != "" {
		fmt.Fprintf(w, "\n%s%s\n", indent.AtLevel(1), head.Sprint("Description"))
		for _, line := range wrapText(a.Description, width-len(indent.AtLevel(2))) {
			fmt.Fprintf(w, "%s%s\n", indent.AtLevel(2), line)
		}
	}

	labelWidth := a.labelWidth()

	flags := a.optionFlags()
	if len(flags) > 0 {
		fmt.Fprintf(w, "\n%s%s\n", indent.AtLevel(1), head.Sprint("Options"))
		sort.Slice(flags, func(i, j int) bool { return flags[i].Name < flags[j].Name })
		for _, fl := range flags {
			def := ""
			if fl.takesArg() && fl.DefValue != "" {
				def = fmt.Sprintf("|%s|", fl.DefValue)
			}
			writeEntry(w, indent, width, labelWidth, flagLabel(fl), fl.Usage, def)
		}
	}

	for _, group := range a.FlagSet.groups {
		fmt.Fprintf(w, "\n%s%s\n", indent.AtLevel(1), head.Sprint(group.Name))
		prefix := group.Flags[0].Prefix
		writeEntry(w, indent, width, labelWidth, fmt.Sprintf("-%s<%s>", prefix, group.Kind), "Enable a specific "+group.Kind, "")
		writeEntry(w, indent, width, labelWidth, fmt.Sprintf("-%sno-<%s>", prefix, group.Kind), "Disable a specific "+group.Kind, "")
		if group.Header != "" {
			fmt.Fprintf(w, "%s%s\n", indent.AtLevel(1), group.Header)
		}
		entries := make([]FlagGroupEntry, len(group.Flags))
		copy(entries, group.Flags)
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
		for _, e := range entries {
			state := "|-|"
			if e.Enabled != nil && *e.Enabled && (e.Disabled == nil || !*e.Disabled) {
				state = "|x|"
			}
			writeEntry(w, indent, width, labelWidth, e.Name, e.Usage, state)
		}
	}
}

func (a *App) optionFlags() []*Flag {
	var flags []*Flag
	for _, fl := range a.FlagSet.flags {
		if a.isGroupFlag(fl.Name) {
			continue
		}
		flags = append(flags, fl)
	}
	return flags
}

func (a *App) isGroupFlag(name string) bool {
	for _, group := range a.FlagSet.groups {
		for _, e := range group.Flags {
			if name == e.Prefix+e.Name || name == e.Prefix+"no-"+e.Name {
				return true
			}
		}
	}
	return false
}

func (a *App) labelWidth() int {
	width := 0
	widen := func(s string) {
		if len(s) > width {
			width = len(s)
		}
	}
	for _, fl := range a.optionFlags() {
		widen(flagLabel(fl))
	}
	for _, group := range a.FlagSet.groups {
		widen(fmt.Sprintf("-%sno-<%s>", group.Flags[0].Prefix, group.Kind))
		for _, e := range group.Flags {
			widen(e.Name)
		}
	}
	return width
}

func flagLabel(fl *Flag) string {
	var sb strings.Builder
	if fl.Shorthand != "" {
		fmt.Fprintf(&sb, "-%s", fl.Shorthand)
		if fl.takesArg() {
			fmt.Fprintf(&sb, " <%s>", fl.ArgName)
		}
		fmt.Fprintf(&sb, ", --%s", fl.Name)
		if fl.takesArg() {
			fmt.Fprintf(&sb, " <%s>", fl.ArgName)
		}
		return sb.String()
	}
	fmt.Fprintf(&sb, "--%s", fl.Name)
	if fl.takesArg() && fl.ArgName != "" {
		fmt.Fprintf(&sb, "=%s", fl.ArgName)
	}
	return sb.String()
}

// writeEntry lays out one "label usage |note|" row, wrapping the usage
// text against the terminal width.
func writeEntry(w io.Writer, indent *IndentState, termWidth, labelWidth int, label, usage, note string) {
	lead := indent.AtLevel(2)
	avail := termWidth - len(lead) - labelWidth - 1
	if note != "" {
		avail -= len(note) + 2
	}
	if avail < 10 {
		avail = 10
	}
	lines := wrapText(usage, avail)
	if len(lines) == 0 {
		lines = []string{""}
	}
	if note != "" {
		fmt.Fprintf(w, "%s%-*s %-*s  %s\n", lead, labelWidth, label, avail, lines[0], note)
	} else {
		fmt.Fprintf(w, "%s%-*s %s\n", lead, labelWidth, label, lines[0])
	}
	cont := strings.Repeat(" ", labelWidth+1)
	for _, line := range lines[1:] {
		fmt.Fprintf(w, "%s%s%s\n", lead, cont, line)
	}
}

type IndentState struct {
	levels   []uint8
	baseUnit uint8
}

func NewIndentState() *IndentState {
	return &IndentState{levels: []uint8{0}, baseUnit: 4}
}

func (is *IndentState) Push() {
	is.levels = append(is.levels, is.levels[len(is.levels)-1]+1)
}

func (is *IndentState) Pop() {
	if len(is.levels) > 1 {
		is.levels = is.levels[:len(is.levels)-1]
	}
}

func (is *IndentState) Current() string {
	return strings.Repeat(" ", int(is.baseUnit*is.levels[len(is.levels)-1]))
}

func (is *IndentState) AtLevel(level int) string {
	return strings.Repeat(" ", int(is.baseUnit)*level)
}

func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 80
	}
	if width < 20 {
		return 20
	}
	return width
}

func wrapText(text string, maxWidth int) []string {
	if maxWidth <= 0 {
		return []string{text}
	}
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	var lines []string
	var line strings.Builder
	for _, word := range words {
		if line.Len() > 0 && line.Len()+1+len(word) > maxWidth {
			lines = append(lines, line.String())
			line.Reset()
		}
		if line.Len() > 0 {
			line.WriteString(" ")
		}
		line.WriteString(word)
	}
	if line.Len() > 0 {
		lines = append(lines, line.String())
	}
	return lines
}
