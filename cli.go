package organizer

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/oklog/ulid/v2"
	"github.com/spf13/cobra"
)

// RunCmdOptions contains options for customizing RunCmd behavior
type RunCmdOptions struct {
	// MCPTransport allows providing a custom transport for MCP server (used for testing)
	MCPTransport *mcp.InMemoryTransport
	// Stdout writer for normal output (defaults to os.Stdout)
	Stdout io.Writer
	// Stderr writer for logs, progress and errors (defaults to os.Stderr)
	Stderr io.Writer
}

// commandContext holds the global flags and the lazily built runtime shared
// by every subcommand.
type commandContext struct {
	stdout io.Writer
	stderr io.Writer

	configFile string
	jsonOutput bool
	verbose    bool
	dryRun     bool
	journal    string
	logLevel   string

	config    *Config
	runID     string
	logger    *slog.Logger
	journalDB *Journal
}

func RunCmd(args []string, options *RunCmdOptions) error {
	cmdCtx := &commandContext{stdout: os.Stdout, stderr: os.Stderr}
	var transport *mcp.InMemoryTransport
	if options != nil {
		if options.Stdout != nil {
			cmdCtx.stdout = options.Stdout
		}
		if options.Stderr != nil {
			cmdCtx.stderr = options.Stderr
		}
		transport = options.MCPTransport
	}

	root := newRootCommand(cmdCtx, transport)
	if len(args) > 1 {
		root.SetArgs(args[1:])
	} else {
		root.SetArgs([]string{})
	}
	defer cmdCtx.close()
	return root.Execute()
}

func newRootCommand(cmdCtx *commandContext, transport *mcp.InMemoryTransport) *cobra.Command {
	var mcpOption bool

	root := &cobra.Command{
		Use:           "file-organizer",
		Short:         "Sort the files of a directory tree into category folders",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if mcpOption {
				return RunMCPServer(cmdCtx.configFile, transport)
			}
			return cmd.Help()
		},
	}
	root.SetOut(cmdCtx.stdout)
	root.SetErr(cmdCtx.stderr)

	flags := root.PersistentFlags()
	flags.StringVar(&cmdCtx.configFile, "config", "", "Path to configuration file (YAML, or TOML by .toml extension)")
	flags.BoolVar(&cmdCtx.jsonOutput, "json", false, "Output as JSON")
	flags.BoolVarP(&cmdCtx.verbose, "verbose", "v", false, "Verbose output")
	flags.BoolVar(&cmdCtx.dryRun, "dry-run", false, "Show what would be changed without making changes")
	flags.StringVar(&cmdCtx.journal, "journal", "", "Path to the audit journal database (overrides journal_path)")
	flags.StringVar(&cmdCtx.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides log_level)")
	root.Flags().BoolVar(&mcpOption, "mcp", false, "Run as MCP server")

	root.AddCommand(
		newScanCommand(cmdCtx),
		newPreviewCommand(cmdCtx),
		newOrganizeCommand(cmdCtx),
		newPruneCommand(cmdCtx),
		newClassifyCommand(cmdCtx),
		newCategoriesCommand(cmdCtx),
		newDuplicatesCommand(cmdCtx),
		newHistoryCommand(cmdCtx),
	)
	return root
}

// setup loads configuration and builds the run's logger. The console handler
// writes to stderr; when a journal is configured, audit events are also
// persisted there. Dry runs are never journaled.
func (c *commandContext) setup() error {
	if c.config != nil {
		return nil
	}

	config, err := LoadConfig(c.configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if c.logLevel != "" {
		config.LogLevel = c.logLevel
	}
	if c.journal != "" {
		config.JournalPath = c.journal
	}

	console, err := NewLogger(LogOptions{Level: config.LogLevel, Format: config.LogFormat, Writer: c.stderr})
	if err != nil {
		return err
	}

	logger := console
	if config.JournalPath != "" && !c.dryRun {
		journal, err := OpenJournal(config.JournalPath)
		if err != nil {
			return err
		}
		c.journalDB = journal
		logger = TeeLogger(console, journal.Handler(console.Handler()))
	}

	c.runID = newRunID()
	c.config = config
	c.logger = logger.With(slog.String("run_id", c.runID))
	return nil
}

func (c *commandContext) close() {
	if c.journalDB != nil {
		_ = c.journalDB.Close()
		c.journalDB = nil
	}
}

func (c *commandContext) organizer() (*DefaultOrganizer, error) {
	if err := c.setup(); err != nil {
		return nil, err
	}
	return NewDefaultOrganizer(c.config, c.logger)
}

func newRunID() string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

func absRoot(arg string) (string, error) {
	root, err := filepath.Abs(arg)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", arg, err)
	}
	return root, nil
}

func rootArg(args []string) (string, error) {
	if len(args) == 0 {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get current directory: %w", err)
		}
		return cwd, nil
	}
	return absRoot(args[0])
}

type progressUpdate struct {
	done, total int
}

// await waits for a background task while drawing its progress. Updates
// arrive on a channel so the bar is only touched from this goroutine.
func await[T any](ctx context.Context, c *commandContext, description string, start func(ProgressFunc) (*Task[T], error)) (T, error) {
	draw, finish := newProgress(c.stderr, description, !c.jsonOutput)
	defer finish()

	updates := make(chan progressUpdate, 64)
	report := func(done, total int) {
		select {
		case updates <- progressUpdate{done: done, total: total}:
		default:
		}
	}

	task, err := start(report)
	if err != nil {
		var zero T
		return zero, err
	}

	for {
		select {
		case u := <-updates:
			draw.report(u.done, u.total)
		case <-task.Done():
			return task.Wait(ctx)
		case <-ctx.Done():
			return task.Wait(ctx)
		}
	}
}

func newScanCommand(c *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "scan [ROOT]",
		Short: "List every regular file below ROOT",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := rootArg(args)
			if err != nil {
				return err
			}
			org, err := c.organizer()
			if err != nil {
				return err
			}

			progress, finish := newProgress(c.stderr, "Scanning", !c.jsonOutput)
			result, err := org.Scan(cmd.Context(), root, progress)
			finish()
			if err != nil {
				return err
			}

			if c.jsonOutput {
				return writeJSON(c.stdout, result)
			}
			renderScan(c.stdout, result, c.verbose)
			return nil
		},
	}
}

func newPreviewCommand(c *commandContext) *cobra.Command {
	var dest string
	cmd := &cobra.Command{
		Use:   "preview [ROOT]",
		Short: "Show where each file would be moved, without moving anything",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := rootArg(args)
			if err != nil {
				return err
			}
			destRoot, err := destArg(dest)
			if err != nil {
				return err
			}
			org, err := c.organizer()
			if err != nil {
				return err
			}

			scan, err := org.Scan(cmd.Context(), root, nil)
			if err != nil {
				return err
			}
			plan, err := org.BuildPlan(cmd.Context(), scan, destRoot, nil)
			if err != nil {
				return err
			}

			if c.jsonOutput {
				return writeJSON(c.stdout, plan)
			}
			renderPlan(c.stdout, plan)
			return nil
		},
	}
	cmd.Flags().StringVar(&dest, "dest", "", "Destination root (defaults to ROOT)")
	return cmd
}

func destArg(dest string) (string, error) {
	if dest == "" {
		return "", nil
	}
	return absRoot(dest)
}

type organizeOutput struct {
	Plan      *Plan            `json:"plan"`
	Execution *ExecutionResult `json:"execution,omitempty"`
	Prune     *PruneResult     `json:"prune,omitempty"`
	DryRun    bool             `json:"dry_run"`
}

func newOrganizeCommand(c *commandContext) *cobra.Command {
	var (
		dest  string
		prune bool
	)
	cmd := &cobra.Command{
		Use:   "organize [ROOT]",
		Short: "Scan, plan and move files into category folders",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := rootArg(args)
			if err != nil {
				return err
			}
			destRoot, err := destArg(dest)
			if err != nil {
				return err
			}
			org, err := c.organizer()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			session := NewSession(org, org.Validator(), NewTaskRunner())
			if err := session.SelectRoot(root, destRoot); err != nil {
				return err
			}

			if _, err := await(ctx, c, "Scanning", func(p ProgressFunc) (*Task[*ScanResult], error) {
				return session.Scan(ctx, p)
			}); err != nil {
				return err
			}

			plan, err := session.Preview(ctx)
			if err != nil {
				return err
			}
			out := organizeOutput{Plan: plan, DryRun: c.dryRun}

			if !c.dryRun {
				out.Execution, err = await(ctx, c, "Moving", func(p ProgressFunc) (*Task[*ExecutionResult], error) {
					return session.Execute(ctx, p)
				})
				if err != nil {
					return err
				}

				if prune {
					out.Prune, err = await(ctx, c, "Pruning", func(p ProgressFunc) (*Task[*PruneResult], error) {
						return session.Prune(ctx, c.config.PruneKeepRoot, p)
					})
					if err != nil {
						return err
					}
				}
			}

			if c.jsonOutput {
				return writeJSON(c.stdout, out)
			}
			if out.Execution == nil || c.verbose {
				renderPlan(c.stdout, plan)
			}
			if out.Execution != nil {
				renderExecution(c.stdout, out.Execution, c.verbose)
			}
			if out.Prune != nil {
				renderPrune(c.stdout, out.Prune, c.verbose)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dest, "dest", "", "Destination root (defaults to ROOT)")
	cmd.Flags().BoolVar(&prune, "prune", false, "Remove directories left empty after moving")
	return cmd
}

func newPruneCommand(c *commandContext) *cobra.Command {
	var removeRoot bool
	cmd := &cobra.Command{
		Use:   "prune [ROOT]",
		Short: "Remove empty directories below ROOT",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := rootArg(args)
			if err != nil {
				return err
			}
			if err := c.setup(); err != nil {
				return err
			}

			var fsys FileSystem = OSFileSystem{}
			if c.dryRun {
				fsys = dryRunFileSystem{FileSystem: fsys}
			}
			org, err := NewDefaultOrganizerWithFileSystem(c.config, fsys, c.logger)
			if err != nil {
				return err
			}

			keepRoot := c.config.PruneKeepRoot && !removeRoot
			progress, finish := newProgress(c.stderr, "Pruning", !c.jsonOutput)
			result, err := org.PruneEmptyDirectories(cmd.Context(), root, keepRoot, progress)
			finish()
			if err != nil {
				return err
			}

			if c.jsonOutput {
				return writeJSON(c.stdout, result)
			}
			renderPrune(c.stdout, result, c.verbose || c.dryRun)
			return nil
		},
	}
	cmd.Flags().BoolVar(&removeRoot, "remove-root", false, "Also remove ROOT itself if it ends up empty")
	return cmd
}

// dryRunFileSystem reports removals as successful without performing them,
// so a prune pass lists exactly what it would remove.
type dryRunFileSystem struct {
	FileSystem
}

func (dryRunFileSystem) Remove(string) error {
	return nil
}

type classification struct {
	Name     string `json:"name"`
	Category string `json:"category"`
}

func newClassifyCommand(c *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "classify NAME...",
		Short: "Show the category each file name maps to",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			org, err := c.organizer()
			if err != nil {
				return err
			}

			results := make([]classification, 0, len(args))
			for _, name := range args {
				results = append(results, classification{Name: name, Category: org.Classify(name)})
			}

			if c.jsonOutput {
				return writeJSON(c.stdout, results)
			}
			rows := make([][]string, 0, len(results))
			for _, r := range results {
				rows = append(rows, []string{r.Name, r.Category})
			}
			_, _ = fmt.Fprintln(c.stdout, renderTable([]string{"Name", "Category"}, rows, nil))
			return nil
		},
	}
}

func newCategoriesCommand(c *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List the category table in match order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			org, err := c.organizer()
			if err != nil {
				return err
			}
			if c.jsonOutput {
				return writeJSON(c.stdout, org.Categories())
			}
			renderCategories(c.stdout, org.Categories())
			return nil
		},
	}
}

func newDuplicatesCommand(c *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "duplicates [ROOT]",
		Short: "Report files with identical contents (nothing is changed)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := rootArg(args)
			if err != nil {
				return err
			}
			org, err := c.organizer()
			if err != nil {
				return err
			}

			scan, err := org.Scan(cmd.Context(), root, nil)
			if err != nil {
				return err
			}
			progress, finish := newProgress(c.stderr, "Hashing", !c.jsonOutput)
			groups, err := org.FindDuplicates(cmd.Context(), scan, progress)
			finish()
			if err != nil {
				return err
			}

			if c.jsonOutput {
				return writeJSON(c.stdout, groups)
			}
			renderDuplicates(c.stdout, root, groups)
			return nil
		},
	}
}

func newHistoryCommand(c *commandContext) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent audit events from the journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.setup(); err != nil {
				return err
			}
			journal := c.journalDB
			if journal == nil {
				if c.config.JournalPath == "" {
					return errors.New("no journal configured: set journal_path or pass --journal")
				}
				var err error
				if journal, err = OpenJournal(c.config.JournalPath); err != nil {
					return err
				}
				defer journal.Close()
			}

			entries, err := journal.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if c.jsonOutput {
				return writeJSON(c.stdout, entries)
			}
			renderHistory(c.stdout, entries)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of events to show (0 for all)")
	return cmd
}
