// Package classify implements the end-to-end classification run: compile
// the configured templates, rules and views, stream every data source
// through the engine, and write the classified output.
package classify

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tallyhq/tally/cmd/root"
	"github.com/tallyhq/tally/internal/captures"
	"github.com/tallyhq/tally/internal/config"
	"github.com/tallyhq/tally/internal/engine"
	"github.com/tallyhq/tally/internal/export"
	"github.com/tallyhq/tally/internal/expr"
	"github.com/tallyhq/tally/internal/fileutils"
	"github.com/tallyhq/tally/internal/format"
	"github.com/tallyhq/tally/internal/logging"
	"github.com/tallyhq/tally/internal/models"
	"github.com/tallyhq/tally/internal/rules"
	"github.com/tallyhq/tally/internal/views"
)

// Cmd is the classify command.
var Cmd = &cobra.Command{
	Use:   "classify",
	Short: "Classify all configured data sources and write the result CSV.",
	Long: `classify compiles the format templates, merchant rules and views from
settings.yaml, streams every configured data source through the
classification pipeline, and writes the classified transactions to the
output CSV. Compile-time errors abort the run; per-row faults are counted
and reported without stopping the batch.`,
	RunE: run,
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.InitializeConfig(root.ConfigPath)
	if err != nil {
		return err
	}
	log := cfg.NewLogger()

	compiled, err := compileArtifacts(cfg, log)
	if err != nil {
		// Compile-time errors are the only fatal ones: the run aborts
		// before any row is processed.
		return err
	}

	eng := engine.New(compiled.ruleSet, rules.Mode(cfg.Rules.Mode), compiled.viewSet, log)
	runner := engine.NewRunner(eng, cfg.Workers, log)
	result := runner.Run(cmd.Context(), compiled.sources)

	if err := export.WriteCSV(cfg.Output.File, result.Rows, log); err != nil {
		return err
	}

	if result.Summary.Total() > 0 {
		log.Warn("Run completed with faults", logging.F("summary", result.Summary.String()))
	}
	fmt.Printf("Classified %d transactions from %d sources (%d faults)\n",
		len(result.Rows), len(compiled.sources), result.Summary.Total())
	return nil
}

// compiledArtifacts holds everything built once at the start of a run.
type compiledArtifacts struct {
	sources []engine.Source
	ruleSet *rules.Set
	viewSet *views.Set
}

// compileArtifacts compiles the capture patterns, the per-source templates,
// and the rule and view files. Any error here is fatal for the run.
func compileArtifacts(cfg *config.Config, log logging.Logger) (*compiledArtifacts, error) {
	var customCaptures map[string]format.CustomPattern
	if cfg.CapturesFile != "" {
		var err error
		customCaptures, err = captures.Load(cfg.CapturesFile)
		if err != nil {
			return nil, err
		}
	}

	fmtOpts := format.Options{DateLayout: cfg.DateLayout, Captures: customCaptures}

	// Templates compile first; expressions resolve field references against
	// the union of every template's captures plus the base fields.
	fieldTable := models.BaseFieldTable()
	var sources []engine.Source
	for _, src := range cfg.Sources {
		tmpl, err := format.Compile(src.Format, fmtOpts)
		if err != nil {
			return nil, fmt.Errorf("data source %q: %w", src.Name, err)
		}

		merged, err := fieldTable.Merge(tmpl.Fields())
		if err != nil {
			return nil, fmt.Errorf("data source %q: %w", src.Name, err)
		}
		fieldTable = merged

		paths, err := fileutils.ResolveSourcePath(src.File)
		if err != nil {
			return nil, fmt.Errorf("data source %q: %w", src.Name, err)
		}
		for _, path := range paths {
			name := src.Name
			if len(paths) > 1 {
				name = fmt.Sprintf("%s:%s", src.Name, filepath.Base(path))
			}
			sources = append(sources, engine.Source{
				Name:       name,
				Path:       path,
				Template:   tmpl,
				SkipHeader: src.HasHeader,
			})
		}
	}

	exprOpts := expr.Options{
		Fields:     fieldTable,
		DateLayout: format.TranslateLayout(cfg.DateLayout),
	}

	ruleSet := &rules.Set{}
	if cfg.RulesFile != "" {
		var err error
		ruleSet, err = rules.Load(cfg.RulesFile, exprOpts)
		if err != nil {
			return nil, err
		}
	}
	log.Info("Compiled rules", logging.F("count", len(ruleSet.Rules)))

	viewSet := &views.Set{}
	if cfg.ViewsFile != "" {
		var err error
		viewSet, err = views.Load(cfg.ViewsFile, exprOpts)
		if err != nil {
			return nil, err
		}
		log.Info("Compiled views", logging.F("count", len(viewSet.Views)))
	}

	return &compiledArtifacts{sources: sources, ruleSet: ruleSet, viewSet: viewSet}, nil
}
