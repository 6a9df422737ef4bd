package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/edwingeng/deque"

	"github.com/AmirTallap/Salam/pkg/ast"
	"github.com/AmirTallap/Salam/pkg/cli"
	"github.com/AmirTallap/Salam/pkg/codegen"
	"github.com/AmirTallap/Salam/pkg/config"
	"github.com/AmirTallap/Salam/pkg/hashmap"
	"github.com/AmirTallap/Salam/pkg/lexer"
	"github.com/AmirTallap/Salam/pkg/parser"
	"github.com/AmirTallap/Salam/pkg/token"
	"github.com/AmirTallap/Salam/pkg/util"
)

func main() {
	app := cli.NewApp("salam")
	app.Version = "0.1.0"
	app.Synopsis = "[options] <input.salam>"
	app.Description = "A compiler for the Salam layout language. Reads a layout source and produces a standalone HTML page."
	app.Authors = []string{"AmirTallap"}
	app.Repository = "<https://github.com/AmirTallap/Salam>"

	var (
		outFile    string
		tokensFile string
		includes   []string
		dumpAST    bool
		noColor    bool
		verbose    bool
		werror     bool
	)

	fs := app.FlagSet
	fs.String(&outFile, "output", "o", "index.html", "Place the generated page into <file>; '-' writes to stdout.", "file")
	fs.String(&tokensFile, "tokens", "t", "", "Also write the token dump to <file>.", "file")
	fs.Bool(&dumpAST, "dump-ast", "d", false, "Dump the syntax tree instead of generating output.")
	fs.List(&includes, "include", "I", "Add a directory to the import search path.", "path")
	fs.Bool(&noColor, "no-color", "", false, "Disable colored diagnostics.")
	fs.Bool(&verbose, "verbose", "v", false, "Report each compilation stage.")
	fs.Bool(&werror, "Werror", "", false, "Treat warnings as errors.")

	cfg := config.NewConfig()
	warningFlags := cfg.SetupFlagGroups(fs)

	app.Action = func(args []string) error {
		cfg.ApplyFlagGroups(warningFlags)
		cfg.Werror = werror
		cfg.NoColor = noColor
		cfg.Verbose = verbose
		cfg.OutputPath = outFile
		cfg.TokensPath = tokensFile
		cfg.DumpAST = dumpAST
		cfg.IncludeDirs = append(cfg.IncludeDirs, includes...)

		if len(args) != 1 {
			return fail("expected exactly one input file, got %d", len(args))
		}
		return run(cfg, args[0])
	}

	if err := app.Run(os.Args[1:]); err != nil {
		os.Exit(1)
	}
}

func fail(format string, args ...any) error {
	err := fmt.Errorf(format, args...)
	fmt.Fprintf(os.Stderr, "salam: %v\n", err)
	return err
}

func logf(cfg *config.Config, format string, args ...any) {
	if cfg.Verbose {
		fmt.Printf(format+"\n", args...)
	}
}

func run(cfg *config.Config, inputPath string) error {
	reporter := util.NewReporter(os.Stderr, cfg)

	prog := loadProgram(cfg, reporter, inputPath)
	if prog != nil {
		defer prog.Destroy()
	}
	if prog == nil || reporter.ErrorCount() > 0 {
		return errors.New("compilation failed")
	}

	if cfg.DumpAST {
		prog.Dump(os.Stdout)
		return nil
	}

	logf(cfg, "Generating HTML...")
	ctx := codegen.NewContext(cfg)
	page, err := ctx.Generate(prog)
	reporter.ReportAll(ctx.Warnings())
	if err != nil {
		reportErr(reporter, err)
		return err
	}
	if reporter.ErrorCount() > 0 {
		return errors.New("compilation failed")
	}

	if err := writeOutput(cfg.OutputPath, page); err != nil {
		return fail("%v", err)
	}
	logf(cfg, "Wrote %s (%d bytes)", cfg.OutputPath, len(page))
	return nil
}

// reportErr routes located diagnostics through the reporter and plain
// errors to stderr.
func reportErr(r *util.Reporter, err error) {
	var d util.Diagnostic
	if errors.As(err, &d) {
		r.Report(d)
		return
	}
	fmt.Fprintf(os.Stderr, "salam: %v\n", err)
}

// importJob is one queued import to resolve and merge.
type importJob struct {
	name string      // path as written in the import
	tok  token.Token // the import token, for diagnostics
	dir  string      // directory of the importing file, "" for stdin
	src  string      // diagnostic path of the importing file
}

// loadProgram compiles the root file and merges every reachable import
// breadth first, deduplicated by absolute path so cycles terminate.
func loadProgram(cfg *config.Config, r *util.Reporter, rootPath string) *ast.Node {
	prog := compileOne(cfg, r, rootPath, true)
	if prog == nil {
		return nil
	}

	visited := hashmap.New[bool](hashmap.DefaultCapacity)
	if rootPath != "-" {
		if abs, err := filepath.Abs(rootPath); err == nil {
			visited.Put(abs, true)
		}
	}

	queue := deque.NewDeque()
	enqueueImports(queue, prog, rootPath)

	funcs := prog.Data.(ast.ProgramNode).Functions
	for !queue.Empty() {
		job := queue.Front().(importJob)
		queue.PopFront()

		resolved := resolveImport(cfg, job)
		if resolved == "" {
			r.Report(util.Errorf(job.src, job.tok.Location, "cannot find import %q", job.name))
			continue
		}
		abs, err := filepath.Abs(resolved)
		if err != nil {
			abs = resolved
		}
		if visited.Has(abs) {
			continue
		}
		visited.Put(abs, true)

		logf(cfg, "Importing %s...", resolved)
		sub := compileOne(cfg, r, resolved, false)
		if sub == nil {
			continue
		}
		enqueueImports(queue, sub, resolved)
		mergeFunctions(r, funcs, sub, resolved)
	}
	return prog
}

// compileOne lexes and parses one file. A nil return means diagnostics
// were already reported.
func compileOne(cfg *config.Config, r *util.Reporter, path string, isRoot bool) *ast.Node {
	var source []byte
	var err error
	display := path
	if path == "-" {
		display = ""
		source, err = io.ReadAll(os.Stdin)
	} else {
		source, err = os.ReadFile(path)
	}
	if err != nil {
		fail("cannot read %s: %v", path, err)
		return nil
	}

	logf(cfg, "Tokenizing %s...", displayName(display))
	lex := lexer.New(display, source)
	lex.Lex()
	r.AddSource(display, source)

	if isRoot && cfg.TokensPath != "" {
		if err := lex.SaveTokens(cfg.TokensPath); err != nil {
			fail("%v", err)
			return nil
		}
		logf(cfg, "Wrote token dump to %s", cfg.TokensPath)
	}

	if errs := lex.Errors(); len(errs) > 0 {
		for _, t := range errs {
			r.ReportToken(display, t)
		}
		return nil
	}

	logf(cfg, "Parsing %s...", displayName(display))
	p := parser.NewParser(lex, cfg)
	prog, err := p.Parse()
	r.ReportAll(p.Warnings())
	if err != nil {
		reportErr(r, err)
		return nil
	}
	return prog
}

func displayName(path string) string {
	if path == "" {
		return "<stdin>"
	}
	return path
}

func enqueueImports(queue deque.Deque, prog *ast.Node, path string) {
	d := prog.Data.(ast.ProgramNode)
	dir, src := "", path
	if path == "-" {
		src = ""
	} else {
		dir = filepath.Dir(path)
	}
	for _, imp := range d.Imports {
		queue.PushBack(importJob{
			name: imp.Data.(ast.ImportNode).Path,
			tok:  imp.Tok,
			dir:  dir,
			src:  src,
		})
	}
}

// mergeFunctions moves the imported file's functions into the root
// table. Remove hands each node over without destroying it; whatever
// remains of sub goes down with it afterwards.
func mergeFunctions(r *util.Reporter, dst *hashmap.Map[*ast.Node], sub *ast.Node, path string) {
	d := sub.Data.(ast.ProgramNode)
	names := d.Functions.Keys()
	sort.Strings(names)
	for _, name := range names {
		fn, ok := d.Functions.Remove(name)
		if !ok {
			continue
		}
		if dst.Has(name) {
			r.Report(util.Warnf(config.WarnRedefinedFunction, path, fn.Tok.Location,
				"function %q redefined by import; the last definition wins", name))
		}
		dst.Put(name, fn)
	}
	if d.Layout != nil {
		r.Report(util.Warnf(config.WarnExtra, path, d.Layout.Tok.Location,
			"imported file has a layout block; it is ignored"))
	}
	sub.Destroy()
}

// Imports resolve against the importing file's directory first, then
// the -I search path.
func resolveImport(cfg *config.Config, job importJob) string {
	name := job.name
	if filepath.Ext(name) == "" {
		name += ".salam"
	}
	var dirs []string
	if job.dir != "" {
		dirs = append(dirs, job.dir)
	}
	dirs = append(dirs, cfg.IncludeDirs...)
	for _, dir := range dirs {
		full := filepath.Join(dir, name)
		if _, err := os.Stat(full); err == nil {
			return full
		}
	}
	return ""
}

func writeOutput(path, page string) error {
	if path == "-" {
		_, err := io.WriteString(os.Stdout, page)
		return err
	}
	return os.WriteFile(path, []byte(page), 0o644)
}
