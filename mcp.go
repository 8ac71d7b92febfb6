package organizer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Parameter structures for MCP tools
type ScanDirectoryParams struct {
	Root       string `json:"root"`
	MaxResults *int   `json:"max_results,omitempty"`
}

type PreviewOrganizationParams struct {
	Root            string `json:"root"`
	DestinationRoot string `json:"destination_root,omitempty"`
	MaxResults      *int   `json:"max_results,omitempty"`
}

type OrganizeDirectoryParams struct {
	Root            string `json:"root"`
	DestinationRoot string `json:"destination_root,omitempty"`
	Prune           bool   `json:"prune"`
	DryRun          bool   `json:"dry_run"`
}

type PruneEmptyDirectoriesParams struct {
	Root       string `json:"root"`
	RemoveRoot bool   `json:"remove_root"`
}

type ClassifyFilesParams struct {
	Names []string `json:"names"`
}

type ListCategoriesParams struct{}

type FindDuplicatesParams struct {
	Root string `json:"root"`
}

type OrganizeDirectoryResult struct {
	Plan      *Plan            `json:"plan"`
	Execution *ExecutionResult `json:"execution,omitempty"`
	Prune     *PruneResult     `json:"prune,omitempty"`
	DryRun    bool             `json:"dry_run"`
}

func checkMaxResults(n *int) error {
	if n != nil && *n < 0 {
		return fmt.Errorf("max_results must not be negative, got %d", *n)
	}
	return nil
}

// Tool handler functions
func ScanDirectoryTool(ctx context.Context, req *mcp.CallToolRequest, args ScanDirectoryParams, org Organizer) (*mcp.CallToolResult, any, error) {
	if err := checkMaxResults(args.MaxResults); err != nil {
		return nil, nil, err
	}

	result, err := org.Scan(ctx, args.Root, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to scan directory: %w", err)
	}

	if args.MaxResults != nil && len(result.Files) > *args.MaxResults {
		result.Files = result.Files[:*args.MaxResults]
	}

	return nil, result, nil
}

func PreviewOrganizationTool(ctx context.Context, req *mcp.CallToolRequest, args PreviewOrganizationParams, org Organizer) (*mcp.CallToolResult, any, error) {
	if err := checkMaxResults(args.MaxResults); err != nil {
		return nil, nil, err
	}

	scan, err := org.Scan(ctx, args.Root, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to scan directory: %w", err)
	}

	plan, err := org.BuildPlan(ctx, scan, args.DestinationRoot, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build plan: %w", err)
	}

	if args.MaxResults != nil && len(plan.Operations) > *args.MaxResults {
		plan.Operations = plan.Operations[:*args.MaxResults]
	}

	return nil, plan, nil
}

func OrganizeDirectoryTool(ctx context.Context, req *mcp.CallToolRequest, args OrganizeDirectoryParams, org Organizer, keepRoot bool) (*mcp.CallToolResult, any, error) {
	scan, err := org.Scan(ctx, args.Root, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to scan directory: %w", err)
	}

	plan, err := org.BuildPlan(ctx, scan, args.DestinationRoot, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build plan: %w", err)
	}

	result := &OrganizeDirectoryResult{Plan: plan, DryRun: args.DryRun}
	if args.DryRun {
		return nil, result, nil
	}

	if result.Execution, err = org.Execute(ctx, plan, nil); err != nil {
		return nil, nil, fmt.Errorf("failed to execute plan: %w", err)
	}

	if args.Prune {
		if result.Prune, err = org.PruneEmptyDirectories(ctx, scan.Root, keepRoot, nil); err != nil {
			return nil, nil, fmt.Errorf("failed to prune: %w", err)
		}
	}

	return nil, result, nil
}

func PruneEmptyDirectoriesTool(ctx context.Context, req *mcp.CallToolRequest, args PruneEmptyDirectoriesParams, org Organizer, keepRoot bool) (*mcp.CallToolResult, any, error) {
	result, err := org.PruneEmptyDirectories(ctx, args.Root, keepRoot && !args.RemoveRoot, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to prune: %w", err)
	}
	return nil, result, nil
}

func ClassifyFilesTool(ctx context.Context, req *mcp.CallToolRequest, args ClassifyFilesParams, org Organizer) (*mcp.CallToolResult, any, error) {
	result := make(map[string]string, len(args.Names))
	for _, name := range args.Names {
		result[name] = org.Classify(name)
	}
	return nil, result, nil
}

func ListCategoriesTool(ctx context.Context, req *mcp.CallToolRequest, args ListCategoriesParams, org Organizer) (*mcp.CallToolResult, any, error) {
	return nil, org.Categories(), nil
}

func FindDuplicatesTool(ctx context.Context, req *mcp.CallToolRequest, args FindDuplicatesParams, org Organizer) (*mcp.CallToolResult, any, error) {
	scan, err := org.Scan(ctx, args.Root, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to scan directory: %w", err)
	}

	groups, err := org.FindDuplicates(ctx, scan, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find duplicates: %w", err)
	}
	return nil, groups, nil
}

// RunMCPServer starts the MCP server implementation using the official Go SDK
// If transport is nil, it will use stdio transport
func RunMCPServer(configPath string, transport *mcp.InMemoryTransport) error {
	config, err := LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// stdout carries the protocol, so logs always go to stderr.
	logger, err := NewLogger(LogOptions{Level: config.LogLevel, Format: config.LogFormat, Writer: os.Stderr})
	if err != nil {
		return err
	}
	if config.JournalPath != "" {
		journal, err := OpenJournal(config.JournalPath)
		if err != nil {
			return err
		}
		defer journal.Close()
		logger = TeeLogger(logger, journal.Handler(logger.Handler()))
	}
	logger = logger.With(slog.String("run_id", newRunID()))

	org, err := NewDefaultOrganizer(config, logger)
	if err != nil {
		return fmt.Errorf("failed to create organizer: %w", err)
	}
	keepRoot := config.PruneKeepRoot

	// Create MCP server
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "file-organizer",
		Version: "1.0.0",
	}, nil)

	// Register all MCP tools
	mcp.AddTool(server, &mcp.Tool{
		Name:        "scan_directory",
		Description: "List every regular file below a root directory with its size",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args ScanDirectoryParams) (*mcp.CallToolResult, any, error) {
		return ScanDirectoryTool(ctx, req, args, org)
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "preview_organization",
		Description: "Show the planned category destination of every file without moving anything",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args PreviewOrganizationParams) (*mcp.CallToolResult, any, error) {
		return PreviewOrganizationTool(ctx, req, args, org)
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "organize_directory",
		Description: "Move files into category folders, optionally pruning emptied directories",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args OrganizeDirectoryParams) (*mcp.CallToolResult, any, error) {
		return OrganizeDirectoryTool(ctx, req, args, org, keepRoot)
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "prune_empty_directories",
		Description: "Remove empty directories below a root, bottom-up",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args PruneEmptyDirectoriesParams) (*mcp.CallToolResult, any, error) {
		return PruneEmptyDirectoriesTool(ctx, req, args, org, keepRoot)
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "classify_files",
		Description: "Map file names to their categories",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args ClassifyFilesParams) (*mcp.CallToolResult, any, error) {
		return ClassifyFilesTool(ctx, req, args, org)
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_categories",
		Description: "List the category table in match order",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args ListCategoriesParams) (*mcp.CallToolResult, any, error) {
		return ListCategoriesTool(ctx, req, args, org)
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "find_duplicates",
		Description: "Report groups of files with identical contents; nothing is changed",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args FindDuplicatesParams) (*mcp.CallToolResult, any, error) {
		return FindDuplicatesTool(ctx, req, args, org)
	})

	// Set up context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	if transport != nil {
		return server.Run(ctx, transport)
	}
	return server.Run(ctx, &mcp.StdioTransport{})
}
