package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/igzam/itemgest/internal/answerkey"
	"github.com/igzam/itemgest/internal/convert"
	"github.com/igzam/itemgest/internal/engine"
	"github.com/igzam/itemgest/internal/model"
	"github.com/igzam/itemgest/internal/subjects"
	"github.com/igzam/itemgest/internal/workspace"
)

var errRejected = errors.New("document rejected")

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "itemctl",
		Short:        "Offline exam document extraction",
		SilenceUsage: true,
	}
	root.AddCommand(extractCmd(), subjectsCmd(), inspectCmd())
	return root
}

func extractCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract <document>",
		Short: "Extract, classify and validate one exam document",
		Args:  cobra.ExactArgs(1),
		RunE:  runExtract,
	}
	f := cmd.Flags()
	f.StringP("answers", "k", "", "Answer key (.csv or .xlsx)")
	f.StringP("subject", "s", "", "Subject code (detected from the file name when empty)")
	f.String("subjects-file", "data/subjects.json", "Subjects registry file")
	f.String("soffice", "", "LibreOffice binary (searched when empty)")
	f.Duration("timeout", 0, "Conversion timeout (0 = default)")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	f.Bool("fail-on-reject", true, "Exit non-zero when validation fails")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	_ = cmd.MarkFlagRequired("answers")
	return cmd
}

func subjectsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "subjects",
		Short: "Subject registry tools",
	}
	validate := &cobra.Command{
		Use:   "validate [file]",
		Short: "Check a subjects file against the schema and range rules",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSubjectsValidate,
	}
	f := validate.Flags()
	f.String("subjects-file", "data/subjects.json", "Subjects registry file")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	cmd.AddCommand(validate)
	return cmd
}

func inspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <document.docx>",
		Short: "Report paragraph and group marker counts of a .docx",
		Args:  cobra.ExactArgs(1),
		RunE:  runInspect,
	}
	f := cmd.Flags()
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("ITEMGEST")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("itemgest")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/itemgest")
	v.AddConfigPath("/etc/itemgest")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func runExtract(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	src := args[0]
	batch := workspace.BaseName(src)

	registry, err := subjects.Load(v.GetString("subjects-file"))
	if err != nil {
		return err
	}
	code := v.GetString("subject")
	if code == "" {
		code = registry.Detect(batch)
	}
	spec, err := registry.Get(code)
	if err != nil {
		return err
	}

	answers, err := readAnswers(v.GetString("answers"))
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	soffice := convert.NewSoffice(v.GetString("soffice"), v.GetDuration("timeout"), slog.Default())
	content, err := convert.New(soffice, slog.Default()).ToHTML(ctx, src)
	if err != nil {
		return err
	}

	verdict, err := engine.Run(ctx, engine.Input{
		Content: content,
		Subject: spec,
		Answers: answers,
		Batch:   batch,
	})
	if err != nil {
		return err
	}
	for _, d := range verdict.Diagnostics {
		slog.Warn("diagnostic", "kind", d.Kind, "order", d.Order, "message", d.Message)
	}
	slog.Info("extracted", "batch", batch, "subject", spec.Code, "status", verdict.Status, "units", len(verdict.Units))

	if err := writeJSON(v.GetString("output"), verdict); err != nil {
		return err
	}
	if !verdict.Status && v.GetBool("fail-on-reject") {
		return errRejected
	}
	return nil
}

func runSubjectsValidate(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	path := v.GetString("subjects-file")
	if len(args) == 1 {
		path = args[0]
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read subjects: %w", err)
	}
	specs, err := subjects.Parse(data)
	if err != nil {
		return err
	}

	codes := make([]string, 0, len(specs))
	for c := range specs {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	out := cmd.OutOrStdout()
	for _, c := range codes {
		warnings, _ := subjects.ValidateRanges(specs[c])
		fmt.Fprintf(out, "%s: %d questions, %d topics\n", c, specs[c].TotalQuestions, len(specs[c].TOS))
		for _, w := range warnings {
			fmt.Fprintf(out, "  warning: %s\n", w)
		}
	}
	fmt.Fprintf(out, "%d subjects valid\n", len(codes))
	return nil
}

func runInspect(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	report, err := convert.InspectDOCX(args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "paragraphs: %d\n#startgroup: %d\n#endgroup: %d\n", report.Paragraphs, report.StartMarkers, report.EndMarkers)
	if !report.Balanced() {
		return fmt.Errorf("unbalanced group markers in %s", args[0])
	}
	return nil
}

func readAnswers(path string) (model.AnswerMap, error) {
	p, err := answerkey.ForFile(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open answer key: %w", err)
	}
	defer f.Close()
	return p.Parse(f)
}

func writeJSON(outPath string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	_, _ = fmt.Fprintln(w)
	return nil
}
