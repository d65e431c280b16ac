// Command hnfdump inspects and debugs neuron archives.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/scigolib/hnf"
)

var version = "0.1.0-dev"

// config is read from the environment, after loading a .env file from the
// working directory when one exists.
type config struct {
	workers     int
	logLevel    slog.Level
	logFormat   string
	compression hnf.Compression
}

func loadConfig() (config, error) {
	_ = godotenv.Load()

	cfg := config{
		workers:     hnf.DefaultWorkers(),
		logLevel:    slog.LevelWarn,
		logFormat:   "text",
		compression: hnf.DefaultCompression,
	}
	if v := os.Getenv("HNF_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return cfg, fmt.Errorf("HNF_WORKERS: invalid worker count %q", v)
		}
		cfg.workers = n
	}
	if v := os.Getenv("HNF_LOG_LEVEL"); v != "" {
		if err := cfg.logLevel.UnmarshalText([]byte(v)); err != nil {
			return cfg, fmt.Errorf("HNF_LOG_LEVEL: %w", err)
		}
	}
	if v := os.Getenv("HNF_LOG_FORMAT"); v != "" {
		switch strings.ToLower(v) {
		case "text", "json":
			cfg.logFormat = strings.ToLower(v)
		default:
			return cfg, fmt.Errorf("HNF_LOG_FORMAT: want text or json, got %q", v)
		}
	}
	if v := os.Getenv("HNF_COMPRESSION"); v != "" {
		c, err := hnf.ParseCompression(v)
		if err != nil {
			return cfg, fmt.Errorf("HNF_COMPRESSION: %w", err)
		}
		cfg.compression = c
	}
	return cfg, nil
}

func (c config) logger() *hnf.Logger {
	if c.logFormat == "json" {
		return hnf.NewJSONLogger(c.logLevel)
	}
	return hnf.NewTextLogger(c.logLevel)
}

func newRootCmd(cfg config) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "hnfdump",
		Short:   "Inspect and debug neuron archives",
		Version: version,
		Long: `hnfdump lists, decodes and dumps neuron archives.

Configuration is read from the environment or a .env file:
  HNF_WORKERS      parallel read workers
  HNF_LOG_LEVEL    debug, info, warn or error
  HNF_LOG_FORMAT   text or json
  HNF_COMPRESSION  none, lz4, deflate or deflate:<level> for repack`,
		SilenceUsage: true,
	}

	inspectCmd := &cobra.Command{
		Use:   "inspect <archive>",
		Short: "Show the format and the blocks of every neuron",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			asJSON, _ := cmd.Flags().GetBool("json")
			return runInspect(cmd.OutOrStdout(), args[0], asJSON, cfg)
		},
	}
	inspectCmd.Flags().Bool("json", false, "Print the inventory as JSON")

	lsCmd := &cobra.Command{
		Use:   "ls <archive>",
		Short: "List neuron ids",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLs(cmd.OutOrStdout(), args[0], cfg)
		},
	}

	readCmd := &cobra.Command{
		Use:   "read <archive>",
		Short: "Decode neurons and print a summary of each",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRead(cmd, args[0], cfg)
		},
	}
	readCmd.Flags().String("repr", hnf.DefaultReadPolicy, "Read policy, e.g. mesh->skeleton,dotprops")
	readCmd.Flags().StringSlice("subset", nil, "Neuron ids to read (default: all)")
	readCmd.Flags().String("on-error", "stop", "Per-neuron failure handling: stop|warn|ignore")
	readCmd.Flags().Bool("raw", false, "Decode raw data even when a serialized blob exists")
	readCmd.Flags().Bool("loose", false, "Attach every stored column and attribute")
	readCmd.Flags().Bool("parallel", false, "Force the parallel reader")

	repackCmd := &cobra.Command{
		Use:   "repack <src> <dst>",
		Short: "Rewrite every neuron and annotation into a new archive",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRepack(cmd, args[0], args[1], cfg)
		},
	}
	repackCmd.Flags().Bool("no-serialized", false, "Do not store serialized blobs")
	repackCmd.Flags().Bool("no-raw", false, "Do not store raw columns")

	hexdumpCmd := &cobra.Command{
		Use:   "hexdump <file>",
		Short: "Dump raw bytes of a file for debugging the container",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			offset, _ := cmd.Flags().GetInt64("offset")
			length, _ := cmd.Flags().GetInt("length")
			return runHexdump(cmd.OutOrStdout(), cmd.ErrOrStderr(), args[0], offset, length)
		},
	}
	hexdumpCmd.Flags().Int64("offset", 0, "Offset in file to start dumping from")
	hexdumpCmd.Flags().Int("length", 128, "Number of bytes to dump")

	treeCmd := &cobra.Command{
		Use:   "tree <file> [group]",
		Short: "Print the container layout below a group",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			group := "/"
			if len(args) == 2 {
				group = args[1]
			}
			depth, _ := cmd.Flags().GetInt("depth")
			return runTree(cmd.OutOrStdout(), args[0], group, depth)
		},
	}
	treeCmd.Flags().Int("depth", 0, "Maximum group depth to descend (0: unlimited)")

	rootCmd.AddCommand(inspectCmd, lsCmd, readCmd, repackCmd, hexdumpCmd, treeCmd)
	return rootCmd
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "hnfdump:", err)
		os.Exit(2)
	}
	if err := newRootCmd(cfg).Execute(); err != nil {
		os.Exit(1)
	}
}
