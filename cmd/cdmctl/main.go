// Command cdmctl runs the normalization pipeline on local files and
// inspects the configuration tree.
//
//	cdmctl process -text invoice.txt -extraction invoice.json [-charset shift_jis] [-out artifacts] [-xlsx out.xlsx] [-dump]
//	cdmctl check [-config dir]
//	cdmctl vendors [-config dir]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/joho/godotenv"

	"github.com/JonMunkholm/cdm/internal/cdm"
	"github.com/JonMunkholm/cdm/internal/core"
	"github.com/JonMunkholm/cdm/internal/export"
	"github.com/JonMunkholm/cdm/internal/logging"
	"github.com/JonMunkholm/cdm/internal/resolver"
	"github.com/JonMunkholm/cdm/internal/store"
)

func main() {
	_ = godotenv.Load()
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: cdmctl <process|check|vendors> [flags]")
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stderr)
		return 2
	}
	var err error
	switch args[0] {
	case "process":
		err = runProcess(args[1:], stdout, stderr)
	case "check":
		err = runCheck(args[1:], stdout, stderr)
	case "vendors":
		err = runVendors(args[1:], stdout, stderr)
	case "-h", "-help", "--help", "help":
		usage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n", args[0])
		usage(stderr)
		return 2
	}
	if err != nil {
		fmt.Fprintf(stderr, "cdmctl %s: %v\n", args[0], err)
		return 1
	}
	return 0
}

// configDirFlag registers -config with CDM_CONFIG_DIR as its default.
func configDirFlag(fs *flag.FlagSet) *string {
	def := os.Getenv("CDM_CONFIG_DIR")
	if def == "" {
		def = "config"
	}
	return fs.String("config", def, "configuration directory")
}

func runProcess(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("process", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configDir := configDirFlag(fs)
	textPath := fs.String("text", "", "document text file (required)")
	charset := fs.String("charset", "utf-8", "text encoding: utf-8, shift_jis, euc-jp, iso-2022-jp")
	extractionPath := fs.String("extraction", "", "raw extraction JSON file (required)")
	name := fs.String("name", "", "source name (default: text file name)")
	outDir := fs.String("out", "", "write run artifacts under this directory")
	xlsxPath := fs.String("xlsx", "", "write the document as an xlsx workbook")
	dump := fs.Bool("dump", false, "dump the canonical document to stderr")
	logLevel := fs.String("log-level", "warn", "log level")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *textPath == "" || *extractionPath == "" {
		return fmt.Errorf("-text and -extraction are required")
	}

	logger := logging.New(stderr, *logLevel, "text")

	text, err := readTextFile(*textPath, *charset)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(*extractionPath)
	if err != nil {
		return fmt.Errorf("read extraction: %w", err)
	}
	raw, err := cdm.ParseRawExtraction(data)
	if err != nil {
		return fmt.Errorf("parse extraction: %w", err)
	}
	if *name == "" {
		*name = filepath.Base(*textPath)
	}

	opts := []core.Option{core.WithLogger(logger)}
	if *outDir != "" {
		opts = append(opts, core.WithArtifactSink(store.NewArtifactDir(*outDir, logger)))
	}
	service := core.NewService(resolver.New(*configDir, logger), opts...)

	ctx := core.ContextWithSource(context.Background(), "cli")
	res := service.Process(ctx, core.Input{Name: *name, Text: text, Extraction: raw})

	if *dump && res.Document != nil {
		spew.Fdump(stderr, res.Document)
	}
	if *xlsxPath != "" && res.Document != nil {
		if err := writeWorkbook(*xlsxPath, res.Document, res.Report); err != nil {
			return err
		}
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(map[string]any{
		"run_id":    res.RunID,
		"success":   res.Success,
		"doc_type":  res.DocType,
		"vendor":    res.Vendor,
		"document":  res.Document,
		"report":    res.Report,
		"artifacts": res.Artifacts,
	}); err != nil {
		return err
	}
	if !res.Success {
		if res.Err != nil {
			return fmt.Errorf("%s", core.FormatUserError(res.Err))
		}
		return fmt.Errorf("%d validation error(s)", len(res.Report.Errors))
	}
	return nil
}

func readTextFile(path, charset string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("read text: %w", err)
	}
	defer f.Close()
	return core.ReadText(f, charset, core.DefaultMaxTextBytes)
}

func writeWorkbook(path string, doc *cdm.Document, report *cdm.Report) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create workbook: %w", err)
	}
	if err := export.WriteXLSX(f, doc, report); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func runCheck(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configDir := configDirFlag(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	issues := resolver.New(*configDir, logging.Discard()).SelfCheck()
	for _, e := range issues.Errors {
		fmt.Fprintf(stdout, "ERROR   %s\n", e)
	}
	for _, w := range issues.Warnings {
		fmt.Fprintf(stdout, "WARNING %s\n", w)
	}
	if !issues.OK() {
		return fmt.Errorf("%d configuration error(s) in %s", len(issues.Errors), *configDir)
	}
	fmt.Fprintf(stdout, "configuration OK: %s\n", *configDir)
	return nil
}

func runVendors(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("vendors", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configDir := configDirFlag(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	for _, vm := range resolver.New(*configDir, logging.Discard()).VendorMappings() {
		fmt.Fprintf(stdout, "%s\t%s\n", vm.Vendor, strings.Join(vm.Mappings, ","))
	}
	return nil
}
