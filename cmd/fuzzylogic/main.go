/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: main.go
Description: Command-line interface for the fuzzy logic engine. Evaluates, checks,
converts and reports on model files, and runs the HTTP API with its model store.
*/

package main

import (
	"fmt"
	"os"

	"github.com/kleascm/fuzzylogic/cmd/fuzzylogic/commands"
	"github.com/kleascm/fuzzylogic/pkg/core"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tebeka/atexit"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "fuzzylogic",
		Short: "Fuzzy logic inference engine",
		Long: `fuzzylogic evaluates rule based fuzzy models. Models are described by linguistic
variables, their membership sets and if-then rules, stored as INI, YAML or JSON files,
and evaluated from the command line or over an HTTP API.`,
		Version:       core.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Add persistent flags
	rootCmd.PersistentFlags().String("config", "", "Configuration file path")
	rootCmd.PersistentFlags().String("env-file", ".env", "Environment file loaded before the configuration")
	rootCmd.PersistentFlags().String("log-level", "info", "Logging level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "custom", "Log format (text, json, custom)")
	rootCmd.PersistentFlags().String("log-dir", "", "Log output directory")
	rootCmd.PersistentFlags().String("defuzzifier", "bisector", "Defuzzification method (bisector, centroid, mom)")
	rootCmd.PersistentFlags().String("and-method", "min", "Rule AND operator (min, product)")
	rootCmd.PersistentFlags().Int("resolution", 100, "Points sampled per output curve")
	rootCmd.PersistentFlags().Int("workers", 0, "Batch workers (0 = one per CPU)")
	rootCmd.PersistentFlags().Bool("record", false, "Record evaluations to SQLite")
	rootCmd.PersistentFlags().String("record-db", "", "Recorder database (empty picks a new file in --record-dir)")
	rootCmd.PersistentFlags().String("record-dir", "./data", "Directory for recorder databases")
	rootCmd.PersistentFlags().String("store", "./data/store", "Model store directory")

	// Bind flags to viper
	viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	viper.BindPFlag("env_file", rootCmd.PersistentFlags().Lookup("env-file"))
	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
	viper.BindPFlag("log.output_dir", rootCmd.PersistentFlags().Lookup("log-dir"))
	viper.BindPFlag("engine.defuzzifier", rootCmd.PersistentFlags().Lookup("defuzzifier"))
	viper.BindPFlag("engine.and_method", rootCmd.PersistentFlags().Lookup("and-method"))
	viper.BindPFlag("engine.resolution", rootCmd.PersistentFlags().Lookup("resolution"))
	viper.BindPFlag("engine.workers", rootCmd.PersistentFlags().Lookup("workers"))
	viper.BindPFlag("recorder.enabled", rootCmd.PersistentFlags().Lookup("record"))
	viper.BindPFlag("recorder.path", rootCmd.PersistentFlags().Lookup("record-db"))
	viper.BindPFlag("recorder.dir", rootCmd.PersistentFlags().Lookup("record-dir"))
	viper.BindPFlag("store.path", rootCmd.PersistentFlags().Lookup("store"))

	// Add eval command
	evalCmd := &cobra.Command{
		Use:   "eval <model>",
		Short: "Evaluate a model once",
		Long: `Load a model file, set its inputs and print every output. Outputs no rule fired
for fall back to the middle of their range and are flagged.`,
		Args: cobra.ExactArgs(1),
		RunE: commands.RunEval,
	}
	evalCmd.Flags().StringSliceP("input", "i", []string{}, "Input values (name=value, repeatable or comma separated)")
	evalCmd.Flags().Bool("json", false, "Print the full result as JSON")
	evalCmd.Flags().Bool("curves", false, "Include sampled output curves and set degrees in JSON output")
	rootCmd.AddCommand(evalCmd)

	// Add batch command
	batchCmd := &cobra.Command{
		Use:   "batch <model> <inputs>",
		Short: "Evaluate many input vectors in parallel",
		Long: `Evaluate every row of a CSV file (header row names the inputs) or every object
of a JSON array. Results are written as CSV, or JSON when the output ends in .json.`,
		Args: cobra.ExactArgs(2),
		RunE: commands.RunBatch,
	}
	batchCmd.Flags().StringP("output", "o", "-", "Output file (- for stdout)")
	batchCmd.Flags().String("stats-dir", "", "Write batch statistics as JSON under this directory")
	batchCmd.Flags().String("profile-dir", "", "Write CPU and heap profiles of the run to this directory")
	rootCmd.AddCommand(batchCmd)

	// Add check command for rule coverage
	checkCmd := &cobra.Command{
		Use:   "check <model>",
		Short: "Sweep the input space and report coverage gaps",
		Long: `Evaluate the model on an evenly spaced grid over every input range and report
outputs left without a firing rule and rules that never fire.`,
		Args: cobra.ExactArgs(1),
		RunE: commands.RunCheck,
	}
	checkCmd.Flags().Int("steps", 11, "Grid points per input")
	checkCmd.Flags().Int("max-vectors", 100000, "Refuse sweeps larger than this")
	checkCmd.Flags().Bool("strict", false, "Exit with an error when gaps are found")
	checkCmd.Flags().String("stats-dir", "", "Write the sweep report as JSON under this directory")
	checkCmd.Flags().String("profile-dir", "", "Write CPU and heap profiles of the sweep to this directory")
	rootCmd.AddCommand(checkCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "validate <model>...",
		Short: "Validate model files",
		Args:  cobra.MinimumNArgs(1),
		RunE:  commands.RunValidate,
	})

	convertCmd := &cobra.Command{
		Use:   "convert <in> <out>",
		Short: "Convert a model file between INI, YAML and JSON",
		Args:  cobra.ExactArgs(2),
		RunE:  commands.RunConvert,
	}
	convertCmd.Flags().Bool("comments", false, "Add a format guide and descriptions to INI output")
	rootCmd.AddCommand(convertCmd)

	newCmd := &cobra.Command{
		Use:   "new <file>",
		Short: "Write a starter model",
		Args:  cobra.ExactArgs(1),
		RunE:  commands.RunNew,
	}
	newCmd.Flags().Bool("force", false, "Overwrite an existing file")
	rootCmd.AddCommand(newCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "functions",
		Short: "List membership functions",
		Run: func(cmd *cobra.Command, args []string) {
			commands.ListFunctions(cmd, args)
		},
	})

	// Add report command for HTML reports
	reportCmd := &cobra.Command{
		Use:   "report <model>",
		Short: "Generate an HTML report of a model",
		Long: `Generate a self-contained HTML report with the membership curves of every
variable and the rule base. With --input the evaluation is drawn over the curves.`,
		Args: cobra.ExactArgs(1),
		RunE: commands.RunReport,
	}
	reportCmd.Flags().StringSliceP("input", "i", []string{}, "Input values to evaluate and plot")
	reportCmd.Flags().String("output-dir", "./reports", "Output directory for reports")
	reportCmd.Flags().String("title", "Fuzzy Model Report", "Report title")
	reportCmd.Flags().Bool("pdf", false, "Also export a PDF through headless Chrome")
	reportCmd.Flags().Bool("open", false, "Open the report in the browser")
	viper.BindPFlag("report.output_dir", reportCmd.Flags().Lookup("output-dir"))
	viper.BindPFlag("report.title", reportCmd.Flags().Lookup("title"))
	viper.BindPFlag("report.auto_open", reportCmd.Flags().Lookup("open"))
	rootCmd.AddCommand(reportCmd)

	// Add serve command for the HTTP API
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Serve model management and evaluation over HTTP. Models are kept in the store and
reloaded on start; models in --models-dir are loaded too and, with --watch, reloaded
whenever their files change.`,
		Args: cobra.NoArgs,
		RunE: commands.RunServe,
	}
	serveCmd.Flags().String("addr", ":8080", "Listen address")
	serveCmd.Flags().Float64("rate-limit", 0, "Requests per second (0 disables)")
	serveCmd.Flags().Int("burst", 20, "Rate limit burst")
	serveCmd.Flags().String("models-dir", "", "Directory of model files to load")
	serveCmd.Flags().Bool("watch", false, "Reload model files when they change")
	serveCmd.Flags().Bool("in-memory", false, "Keep the model store in memory")
	viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
	viper.BindPFlag("server.rate_limit", serveCmd.Flags().Lookup("rate-limit"))
	viper.BindPFlag("server.burst", serveCmd.Flags().Lookup("burst"))
	viper.BindPFlag("server.models_dir", serveCmd.Flags().Lookup("models-dir"))
	viper.BindPFlag("server.watch", serveCmd.Flags().Lookup("watch"))
	viper.BindPFlag("store.in_memory", serveCmd.Flags().Lookup("in-memory"))
	rootCmd.AddCommand(serveCmd)

	// Add store command group
	storeCmd := &cobra.Command{
		Use:   "store",
		Short: "Manage the model store",
	}
	storeCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List stored models",
		Args:  cobra.NoArgs,
		RunE:  commands.RunStoreList,
	})
	storeCmd.AddCommand(&cobra.Command{
		Use:   "put <model>...",
		Short: "Store model files",
		Args:  cobra.MinimumNArgs(1),
		RunE:  commands.RunStorePut,
	})
	storeGetCmd := &cobra.Command{
		Use:   "get <name>",
		Short: "Print or export a stored model",
		Args:  cobra.ExactArgs(1),
		RunE:  commands.RunStoreGet,
	}
	storeGetCmd.Flags().String("out", "", "Write to this file instead of stdout")
	storeCmd.AddCommand(storeGetCmd)
	storeCmd.AddCommand(&cobra.Command{
		Use:   "delete <name>...",
		Short: "Delete stored models",
		Args:  cobra.MinimumNArgs(1),
		RunE:  commands.RunStoreDelete,
	})
	rootCmd.AddCommand(storeCmd)

	historyCmd := &cobra.Command{
		Use:   "history [model]",
		Short: "Show recorded evaluations",
		Args:  cobra.MaximumNArgs(1),
		RunE:  commands.RunHistory,
	}
	historyCmd.Flags().String("db", "", "Recorder database (defaults to recorder.path)")
	historyCmd.Flags().Int("limit", 20, "Evaluations to show")
	historyCmd.Flags().Bool("json", false, "Print JSON")
	rootCmd.AddCommand(historyCmd)

	logsCmd := &cobra.Command{
		Use:   "logs",
		Short: "Summarise log files",
		Args:  cobra.NoArgs,
		RunE:  commands.RunLogs,
	}
	logsCmd.Flags().Bool("cleanup", false, "Delete log files beyond log.max_files")
	rootCmd.AddCommand(logsCmd)

	// Execute root command
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "❌ Error: %v\n", err)
		atexit.Exit(1)
	}
	atexit.Exit(0)
}
