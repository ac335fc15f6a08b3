package main

import (
	"fmt"
	"io"
	"os"

	"github.com/cuemby/cibcore/pkg/cib"
	"github.com/cuemby/cibcore/pkg/config"
	"github.com/cuemby/cibcore/pkg/log"
	"github.com/cuemby/cibcore/pkg/manager"
	"github.com/cuemby/cibcore/pkg/metrics"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// cfg is loaded by the root command before any subcommand runs
var cfg *config.Config

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "cibctl",
	Short: "cibctl - cluster configuration schema and rule tooling",
	Long: `cibctl inspects the schema catalog, validates and upgrades cluster
configuration documents, and resolves attributes the way the cluster does.`,
	Version:           Version,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	// Set version template
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"cibctl version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Configuration file (YAML)")
	flags.String("schema-dir", "", "Primary schema directory (overrides config)")
	flags.String("remote-schema-dir", "", "Remote schema directory (overrides config)")
	flags.String("data-dir", "", "Revision store directory (overrides config)")
	flags.String("log-level", "", "Log level: debug, info, warn, error")
	flags.Bool("log-json", false, "Log in JSON format")

	// Add subcommands
	rootCmd.AddCommand(schemasCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(upgradeCmd)
	rootCmd.AddCommand(attributeCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(serveCmd)
}

func loadConfig(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("config")
	loaded, err := config.Load(path)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("schema-dir") {
		loaded.SchemaDir, _ = flags.GetString("schema-dir")
	}
	if flags.Changed("remote-schema-dir") {
		loaded.RemoteSchemaDir, _ = flags.GetString("remote-schema-dir")
	}
	if flags.Changed("data-dir") {
		loaded.DataDir, _ = flags.GetString("data-dir")
	}
	if flags.Changed("log-level") {
		loaded.Log.Level, _ = flags.GetString("log-level")
	}
	if flags.Changed("log-json") {
		loaded.Log.JSON, _ = flags.GetBool("log-json")
	}
	if err := loaded.Validate(); err != nil {
		return err
	}

	log.Init(loaded.LoggerConfig())
	metrics.DefaultHealth().SetVersion(Version)
	cfg = loaded
	return nil
}

// newManager builds a manager from the loaded configuration. The revision
// store is only opened when withStore is set.
func newManager(withStore bool) (*manager.Manager, error) {
	mcfg := &manager.Config{
		SchemaDir:       cfg.SchemaDir,
		RemoteSchemaDir: cfg.RemoteSchemaDir,
		InactiveChanges: cfg.Resolver.InactiveChanges,
	}
	if withStore {
		mcfg.DataDir = cfg.DataDir
	}
	mgr, err := manager.NewManager(mcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create manager: %w", err)
	}
	return mgr, nil
}

// readDocument reads a document from path, or from stdin when path is "-"
func readDocument(path string) (*cib.Document, error) {
	if path != "-" {
		return cib.ReadFile(path)
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return nil, fmt.Errorf("failed to read stdin: %w", err)
	}
	return cib.Parse(data)
}

// printStructured writes v as JSON or YAML
func printStructured(w io.Writer, format string, v any) error {
	switch format {
	case "json":
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}
