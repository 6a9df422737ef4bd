// salamtest runs .salam sources through the compiler and compares the
// produced document and diagnostics against golden .json files.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/go-cmp/cmp"
)

type Execution struct {
	Stdout   string        `json:"stdout,omitempty"`
	Stderr   string        `json:"stderr,omitempty"`
	ExitCode int           `json:"exitCode"`
	Duration time.Duration `json:"duration,omitempty"`
	TimedOut bool          `json:"timed_out,omitempty"`
}

// CompileResult is everything one compiler invocation produced. HTML is
// empty when the compiler exited nonzero.
type CompileResult struct {
	Compile Execution `json:"compile"`
	HTML    string    `json:"html,omitempty"`
}

type FileTestResult struct {
	File    string         `json:"file"`
	Status  string         `json:"status"` // PASS, FAIL, SKIP, ERROR
	Message string         `json:"message,omitempty"`
	Diff    string         `json:"diff,omitempty"`
	Golden  *CompileResult `json:"golden,omitempty"`
	Actual  *CompileResult `json:"actual,omitempty"`
}

type TestSuiteResults map[string]*FileTestResult

var (
	compiler       = flag.String("compiler", "./salam", "Path to the compiler under test.")
	compilerArgs   = flag.String("compiler-args", "", "Extra arguments for the compiler (space-separated).")
	generateGolden = flag.String("generate-golden", "", "Generate a golden .json file for a given source file.")
	updateGoldens  = flag.Bool("update", false, "Regenerate the golden file of every matched source file.")
	testFiles      = flag.String("test-files", "tests/*.salam", "Glob pattern(s) for files to test (space-separated).")
	skipFiles      = flag.String("skip-files", "", "Files to skip (space-separated).")
	outputJSON     = flag.String("output", ".test_results.json", "Output file for the JSON test report.")
	timeout        = flag.Duration("timeout", 5*time.Second, "Timeout for each compiler invocation.")
	jobs           = flag.Int("j", 4, "Number of parallel test jobs.")
	verbose        = flag.Bool("v", false, "Enable verbose logging.")
	jsonDir        = flag.String("dir", "", "Directory to store/read golden JSON files (defaults to source file dir).")
	ignoreLines    = flag.String("ignore-lines", "", "Comma-separated substrings to ignore during stderr comparison.")
)

const (
	cRed    = "\x1b[91m"
	cYellow = "\x1b[93m"
	cGreen  = "\x1b[92m"
	cCyan   = "\x1b[96m"
	cBold   = "\x1b[1m"
	cNone   = "\x1b[0m"
)

// sourcePlaceholder replaces the source path in captured diagnostics so
// goldens stay portable across checkouts.
const sourcePlaceholder = "__FILE__"

func main() {
	flag.Parse()
	log.SetFlags(0)

	// Single tempDir for all compiler output files
	tempDir, err := os.MkdirTemp("", "salamtest-*")
	if err != nil {
		log.Fatalf("%s[ERROR]%s Failed to create temp directory: %v\n", cRed, cNone, err)
	}
	defer os.RemoveAll(tempDir)
	setupInterruptHandler(tempDir)

	if *generateGolden != "" {
		handleGenerateGolden(*generateGolden, tempDir)
		return
	}

	handleRunTestSuite(tempDir)
}

// setupInterruptHandler is used to clean up on CTRL+C
func setupInterruptHandler(tempDir string) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	go func() {
		<-c
		os.RemoveAll(tempDir)
		fmt.Printf("\n%s[INTERRUPT]%s Test run cancelled. Cleaning up...\n", cYellow, cNone)
		os.Exit(1)
	}()
}

func getJSONPath(sourceFile string) string {
	jsonFileName := "." + filepath.Base(sourceFile) + ".json"
	if *jsonDir != "" {
		return filepath.Join(*jsonDir, jsonFileName)
	}
	return filepath.Join(filepath.Dir(sourceFile), jsonFileName)
}

// hashFile computes the xxhash of a file's content
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum64()), nil
}

func handleGenerateGolden(sourceFile, tempDir string) {
	log.Printf("Generating golden file for %s...\n", sourceFile)

	fileHash, err := hashFile(sourceFile)
	if err != nil {
		log.Fatalf("%s[ERROR]%s Could not hash source file %s: %v\n", cRed, cNone, sourceFile, err)
	}

	result, err := compileFile(sourceFile, tempDir, fileHash)
	if err != nil {
		log.Fatalf("%s[ERROR]%s Could not generate golden file for %s: %v\n", cRed, cNone, sourceFile, err)
	}
	if result.Compile.ExitCode != 0 {
		log.Printf("%s[WARN]%s Compiler exited with %d; the golden file records a failing compile.\n", cYellow, cNone, result.Compile.ExitCode)
	}

	if err := writeGolden(sourceFile, result); err != nil {
		log.Fatalf("%s[ERROR]%s %v\n", cRed, cNone, err)
	}
	log.Printf("%s[SUCCESS]%s Golden file created at %s\n", cGreen, cNone, getJSONPath(sourceFile))
}

func writeGolden(sourceFile string, result *CompileResult) error {
	jsonData, err := marshalJSON(result)
	if err != nil {
		return fmt.Errorf("failed to marshal golden data to JSON: %w", err)
	}
	if *jsonDir != "" {
		if err := os.MkdirAll(*jsonDir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", *jsonDir, err)
		}
	}
	goldenFile := getJSONPath(sourceFile)
	if err := os.WriteFile(goldenFile, jsonData, 0644); err != nil {
		return fmt.Errorf("failed to write golden file %s: %w", goldenFile, err)
	}
	return nil
}

// marshalJSON is MarshalIndent without HTML escaping; goldens embed
// markup and should stay readable.
func marshalJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func handleRunTestSuite(tempDir string) {
	files, err := expandGlobPatterns(*testFiles)
	if err != nil {
		log.Fatalf("%s[ERROR]%s Invalid glob pattern(s): %v\n", cRed, cNone, err)
	}
	if len(files) == 0 {
		log.Println("No test files found matching the pattern(s).")
		return
	}

	skipList := make(map[string]bool)
	for _, f := range strings.Fields(*skipFiles) {
		skipList[f] = true
	}

	tasks := make(chan string, len(files))
	resultsChan := make(chan *FileTestResult, len(files))
	var wg sync.WaitGroup

	for i := 0; i < *jobs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for file := range tasks {
				fileHash, err := hashFile(file)
				if err != nil {
					resultsChan <- &FileTestResult{File: file, Status: "ERROR", Message: "Failed to hash source file"}
					continue
				}
				if *updateGoldens {
					resultsChan <- updateGoldenFile(file, tempDir, fileHash)
					continue
				}
				resultsChan <- testFile(file, tempDir, fileHash)
			}
		}()
	}

	// Feed the tasks channel, skipping files with identical content
	seenHashes := make(map[string]string)
	for _, file := range files {
		if skipList[file] || skipList[filepath.Base(file)] {
			resultsChan <- &FileTestResult{File: file, Status: "SKIP", Message: "Explicitly skipped"}
			continue
		}
		fileHash, err := hashFile(file)
		if err != nil {
			resultsChan <- &FileTestResult{File: file, Status: "ERROR", Message: fmt.Sprintf("Failed to read file for hashing: %v", err)}
			continue
		}
		if originalFile, seen := seenHashes[fileHash]; seen {
			resultsChan <- &FileTestResult{File: file, Status: "SKIP", Message: fmt.Sprintf("Content is identical to %s", originalFile)}
			continue
		}
		seenHashes[fileHash] = file
		tasks <- file
	}
	close(tasks)

	wg.Wait()
	close(resultsChan)

	var allResults []*FileTestResult
	for result := range resultsChan {
		allResults = append(allResults, result)
	}

	sort.Slice(allResults, func(i, j int) bool {
		return allResults[i].File < allResults[j].File
	})

	printSummary(allResults)
	resultsMap := writeJSONReport(allResults)

	if hasFailures(resultsMap) {
		os.Exit(1)
	}
}

func testFile(file, tempDir, fileHash string) *FileTestResult {
	goldenFile := getJSONPath(file)
	goldenData, err := os.ReadFile(goldenFile)
	if err != nil {
		return &FileTestResult{File: file, Status: "SKIP", Message: fmt.Sprintf("No golden file; run with -generate-golden %s to create one", file)}
	}
	var golden CompileResult
	if err := json.Unmarshal(goldenData, &golden); err != nil {
		return &FileTestResult{File: file, Status: "ERROR", Message: fmt.Sprintf("Could not parse golden file %s: %v", goldenFile, err)}
	}

	actual, err := compileFile(file, tempDir, fileHash)
	if err != nil {
		return &FileTestResult{File: file, Status: "ERROR", Message: err.Error(), Actual: actual}
	}

	return compareResults(file, &golden, actual)
}

func updateGoldenFile(file, tempDir, fileHash string) *FileTestResult {
	result, err := compileFile(file, tempDir, fileHash)
	if err != nil {
		return &FileTestResult{File: file, Status: "ERROR", Message: err.Error(), Actual: result}
	}
	if err := writeGolden(file, result); err != nil {
		return &FileTestResult{File: file, Status: "ERROR", Message: err.Error(), Actual: result}
	}
	message := "Golden file updated"
	if result.Compile.ExitCode != 0 {
		message += fmt.Sprintf(" (records exit code %d)", result.Compile.ExitCode)
	}
	return &FileTestResult{File: file, Status: "PASS", Message: message, Actual: result}
}

// compileFile invokes the compiler once on sourceFile, writing the
// document into tempDir. A nonzero exit is a valid result, not an
// error; errors mean the invocation itself could not be judged.
func compileFile(sourceFile, tempDir, fileHash string) (*CompileResult, error) {
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	// Use the hash for a unique, deterministic output name
	outPath := filepath.Join(tempDir, fileHash+".html")

	allArgs := []string{"--no-color", "-o", outPath}
	allArgs = append(allArgs, strings.Fields(*compilerArgs)...)
	allArgs = append(allArgs, sourceFile)

	run := executeCommand(ctx, *compiler, allArgs...)
	run.Stderr = strings.ReplaceAll(run.Stderr, sourceFile, sourcePlaceholder)
	result := &CompileResult{Compile: run}

	if run.TimedOut {
		return result, nil
	}
	if run.ExitCode != 0 {
		return result, nil
	}

	html, err := os.ReadFile(outPath)
	if err != nil {
		return result, fmt.Errorf("compiler exited 0 but produced no output file: %v", err)
	}
	result.HTML = string(html)
	return result, nil
}

// executeCommand runs a command with a timeout and captures its output
func executeCommand(ctx context.Context, command string, args ...string) Execution {
	startTime := time.Now()
	cmd := exec.CommandContext(ctx, command, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	duration := time.Since(startTime)

	execResult := Execution{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: duration,
	}

	if ctx.Err() == context.DeadlineExceeded {
		execResult.TimedOut = true
		execResult.ExitCode = -1
	} else if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			execResult.ExitCode = exitErr.ExitCode()
		} else {
			execResult.ExitCode = -2 // Should not happen often
			execResult.Stderr += "\nExecution error: " + err.Error()
		}
	} else {
		execResult.ExitCode = 0
	}

	return execResult
}

func compareResults(file string, golden, actual *CompileResult) *FileTestResult {
	var diffs strings.Builder
	var failed bool

	if golden.Compile.TimedOut != actual.Compile.TimedOut {
		failed = true
		diffs.WriteString(fmt.Sprintf("Timeout mismatch:\n  - golden: %v\n  - actual: %v\n", golden.Compile.TimedOut, actual.Compile.TimedOut))
	}
	if golden.Compile.ExitCode != actual.Compile.ExitCode {
		failed = true
		diffs.WriteString(fmt.Sprintf("Exit code mismatch:\n  - golden: %d\n  - actual: %d\n", golden.Compile.ExitCode, actual.Compile.ExitCode))
	}

	ignoredSubstrings := []string{}
	if *ignoreLines != "" {
		ignoredSubstrings = strings.Split(*ignoreLines, ",")
	}

	goldenStderr := filterOutput(golden.Compile.Stderr, ignoredSubstrings)
	actualStderr := filterOutput(actual.Compile.Stderr, ignoredSubstrings)
	if goldenStderr != actualStderr {
		failed = true
		diffs.WriteString("Diagnostics mismatch:\n" + cmp.Diff(golden.Compile.Stderr, actual.Compile.Stderr))
	}

	// print statements surface on the compiler's stdout
	goldenStdout := filterOutput(golden.Compile.Stdout, ignoredSubstrings)
	actualStdout := filterOutput(actual.Compile.Stdout, ignoredSubstrings)
	if goldenStdout != actualStdout {
		failed = true
		diffs.WriteString("Stdout mismatch:\n" + cmp.Diff(golden.Compile.Stdout, actual.Compile.Stdout))
	}

	goldenHTML := normalizeClasses(golden.HTML)
	actualHTML := normalizeClasses(actual.HTML)
	if goldenHTML != actualHTML {
		failed = true
		diffs.WriteString("Document mismatch:\n" + cmp.Diff(goldenHTML, actualHTML))
	}

	if failed {
		return &FileTestResult{
			File:    file,
			Status:  "FAIL",
			Message: "Output does not match the golden file",
			Diff:    diffs.String(),
			Golden:  golden,
			Actual:  actual,
		}
	}

	return &FileTestResult{
		File:    file,
		Status:  "PASS",
		Message: "Output matches the golden file",
		Golden:  golden,
		Actual:  actual,
	}
}

var classRe = regexp.MustCompile(`s-[0-9a-f]+`)

// normalizeClasses renames hash-derived class names to s-1, s-2, ... in
// order of first appearance. Goldens can then use the stable names and
// survive changes to the hash function.
func normalizeClasses(out string) string {
	seen := make(map[string]string)
	return classRe.ReplaceAllStringFunc(out, func(m string) string {
		if n, ok := seen[m]; ok {
			return n
		}
		n := fmt.Sprintf("s-%d", len(seen)+1)
		seen[m] = n
		return n
	})
}

// filterOutput removes lines containing any of the given substrings
func filterOutput(output string, ignoredSubstrings []string) string {
	if len(ignoredSubstrings) == 0 || output == "" {
		return output
	}
	lines := strings.Split(output, "\n")
	filteredLines := make([]string, 0, len(lines))

	for _, line := range lines {
		ignore := false
		for _, sub := range ignoredSubstrings {
			if sub != "" && strings.Contains(line, sub) {
				ignore = true
				break
			}
		}
		if !ignore {
			filteredLines = append(filteredLines, line)
		}
	}
	return strings.Join(filteredLines, "\n")
}

func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
	return fmt.Sprintf("%dms", d.Milliseconds())
}

func printSummary(results []*FileTestResult) {
	var passed, failed, skipped, errored int
	var totalCompile time.Duration
	var compiledCount int

	for _, result := range results {
		fmt.Println("----------------------------------------------------------------------")
		fmt.Printf("Testing %s%s%s...\n", cCyan, result.File, cNone)

		switch result.Status {
		case "PASS":
			passed++
			fmt.Printf("  [%sPASS%s] %s\n", cGreen, cNone, result.Message)
		case "FAIL":
			failed++
			fmt.Printf("  [%sFAIL%s] %s\n", cRed, cNone, result.Message)
			fmt.Println(formatDiff(result.Diff))
		case "SKIP":
			skipped++
			fmt.Printf("  [%sSKIP%s] %s\n", cYellow, cNone, result.Message)
		case "ERROR":
			errored++
			fmt.Printf("  [%sERROR%s] %s\n", cRed, cNone, result.Message)
		}

		if result.Actual != nil {
			compiledCount++
			totalCompile += result.Actual.Compile.Duration
			if *verbose {
				fmt.Printf("  compile: %s\n", formatDuration(result.Actual.Compile.Duration))
			}
		}
	}

	fmt.Println("----------------------------------------------------------------------")
	fmt.Printf("%sTest Summary:%s %s%d Passed%s, %s%d Failed%s, %s%d Skipped%s, %s%d Errored%s, %d Total\n",
		cBold, cNone, cGreen, passed, cNone, cRed, failed, cNone, cYellow, skipped, cNone, cRed, errored, cNone, len(results))

	if compiledCount > 0 {
		avg := totalCompile / time.Duration(compiledCount)
		fmt.Printf("Compiled %d file(s) in %s total, %s average.\n", compiledCount, formatDuration(totalCompile), formatDuration(avg))
	}
}

func formatDiff(diff string) string {
	if diff == "" {
		return ""
	}
	var builder strings.Builder
	builder.WriteString("    --- Diff ---\n")
	for _, line := range strings.Split(diff, "\n") {
		lineWithIndent := "    " + line
		trimmedLine := strings.TrimSpace(line)
		if strings.HasPrefix(trimmedLine, "-") {
			builder.WriteString(cRed)
		} else if strings.HasPrefix(trimmedLine, "+") {
			builder.WriteString(cGreen)
		}
		builder.WriteString(lineWithIndent)
		builder.WriteString(cNone)
		builder.WriteString("\n")
	}
	return builder.String()
}

func writeJSONReport(results []*FileTestResult) TestSuiteResults {
	resultsMap := make(TestSuiteResults, len(results))
	for _, r := range results {
		resultsMap[r.File] = r
	}

	jsonData, err := marshalJSON(resultsMap)
	if err != nil {
		log.Printf("%s[ERROR]%s Failed to marshal results to JSON: %v\n", cRed, cNone, err)
		return resultsMap
	}

	outputFile := *outputJSON
	if *jsonDir != "" {
		if err := os.MkdirAll(*jsonDir, 0755); err != nil {
			log.Printf("%s[ERROR]%s Failed to create dir %s: %v\n", cRed, cNone, *jsonDir, err)
		}
		outputFile = filepath.Join(*jsonDir, *outputJSON)
	}

	if err := os.WriteFile(outputFile, jsonData, 0644); err != nil {
		log.Printf("%s[ERROR]%s Failed to write JSON report to %s: %v\n", cRed, cNone, outputFile, err)
	} else {
		fmt.Printf("Full test report saved to %s\n", outputFile)
	}
	return resultsMap
}

func hasFailures(results TestSuiteResults) bool {
	for _, result := range results {
		if result.Status == "FAIL" || result.Status == "ERROR" {
			return true
		}
	}
	return false
}

func expandGlobPatterns(patterns string) ([]string, error) {
	var allFiles []string
	seen := make(map[string]bool)
	for _, pattern := range strings.Fields(patterns) {
		files, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %s: %w", pattern, err)
		}
		for _, file := range files {
			absFile, err := filepath.Abs(file)
			if err != nil {
				continue // Skip files we can't resolve
			}
			if !seen[absFile] {
				if info, err := os.Stat(absFile); err == nil && info.Mode().IsRegular() {
					allFiles = append(allFiles, absFile)
					seen[absFile] = true
				}
			}
		}
	}
	return allFiles, nil
}
