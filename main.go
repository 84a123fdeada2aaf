package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gamma-omg/rag-ledger/readers"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
)

const (
	defaultSourceName  = "manual_input.txt"
	defaultVerifyQuery = "What actions are prohibited by Google Terms of Service?"
	verifyResults      = 3
)

var (
	cfgPath string
	reset   bool
)

var rootCmd = &cobra.Command{
	Use:           "ragledger",
	Short:         "Split documents into blocks and keep them in a vector index",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var ingestCmd = &cobra.Command{
	Use:   "ingest [file...]",
	Short: "Split files into blocks and upsert them",
	Long: `Splits every file into blocks separated by two or more blank lines, upserts
the blocks under content-derived ids and appends them to the manifest.`,
	RunE: runIngest,
}

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Similarity search over the indexed blocks",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

var getCmd = &cobra.Command{
	Use:   "get [id]",
	Short: "Show a block by id",
	Args:  cobra.ExactArgs(1),
	RunE:  runGet,
}

var verifyCmd = &cobra.Command{
	Use:   "verify [query]",
	Short: "Print the top matches for a sample query",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runVerify,
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Ingest the document root and keep ingesting changed files",
	Args:  cobra.NoArgs,
	RunE:  runWatch,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve search, lookup and ingestion as MCP tools",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Interactive console for lookup, ingestion and search",
	Args:  cobra.NoArgs,
	RunE:  runAdmin,
}

var (
	ingestName  string
	ingestStdin bool
	searchK     int
	serveStdio  bool
	serveWatch  bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "cfg/config.yaml", "Configuration file")
	rootCmd.PersistentFlags().BoolVar(&reset, "reset", false, "Reinitialize the index from scratch")

	ingestCmd.Flags().StringVar(&ingestName, "name", "", "File name recorded in the block metadata")
	ingestCmd.Flags().BoolVar(&ingestStdin, "stdin", false, "Read the document from standard input")
	searchCmd.Flags().IntVarP(&searchK, "k", "k", 0, "Number of results (defaults to the configured value)")
	serveCmd.Flags().BoolVar(&serveStdio, "stdio", false, "Serve over stdio instead of SSE")
	serveCmd.Flags().BoolVar(&serveWatch, "watch", false, "Ingest and watch the document root while serving")

	rootCmd.AddCommand(ingestCmd, searchCmd, getCmd, verifyCmd, watchCmd, serveCmd, adminCmd)
}

func main() {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, errStyle.Render("Error: "+err.Error()))
		os.Exit(1)
	}
}

func checkIngestArgs(args []string, stdin bool, name string) error {
	if stdin && len(args) > 0 {
		return errors.New("--stdin cannot be combined with file arguments")
	}
	if !stdin && len(args) == 0 {
		return errors.New("no input: pass files or --stdin")
	}
	if name != "" && len(args) > 1 {
		return errors.New("--name can only be used with a single input")
	}

	return nil
}

func runIngest(cmd *cobra.Command, args []string) error {
	err := checkIngestArgs(args, ingestStdin, ingestName)
	if err != nil {
		return err
	}

	a, err := newApp(cfgPath, reset)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()

	if ingestStdin {
		buf, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}

		name := ingestName
		if name == "" {
			name = defaultSourceName
		}

		records, err := a.ledger.IngestText(ctx, readers.Decode(buf), name)
		if err != nil {
			return err
		}
		renderAdded(cmd.OutOrStdout(), records)
	}

	reader := &readers.UniversalFileReader{}
	for _, path := range args {
		if !reader.CanRead(path) {
			return fmt.Errorf("unsupported file type: %s", path)
		}

		text, err := reader.ReadText(path)
		if err != nil {
			return err
		}

		name := ingestName
		if name == "" {
			name = filepath.Base(path)
		}

		records, err := a.ledger.IngestText(ctx, text, name)
		if err != nil {
			return err
		}
		renderAdded(cmd.OutOrStdout(), records)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Manifest: %s\n", a.cfg.Manifest)
	return nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	a, err := newApp(cfgPath, reset)
	if err != nil {
		return err
	}
	defer a.Close()

	k := searchK
	if k == 0 {
		k = a.cfg.Results
	}

	res, err := a.ledger.Search(cmd.Context(), strings.Join(args, " "), k)
	if err != nil {
		return err
	}

	renderResults(cmd.OutOrStdout(), res)
	return nil
}

func runGet(cmd *cobra.Command, args []string) error {
	a, err := newApp(cfgPath, reset)
	if err != nil {
		return err
	}
	defer a.Close()

	r, ok, err := a.ledger.Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(cmd.OutOrStdout(), errStyle.Render("No block with id "+args[0]))
		return nil
	}

	renderRecord(cmd.OutOrStdout(), r)
	return nil
}

func runVerify(cmd *cobra.Command, args []string) error {
	a, err := newApp(cfgPath, reset)
	if err != nil {
		return err
	}
	defer a.Close()

	q := defaultVerifyQuery
	if len(args) > 0 {
		q = args[0]
	}

	res, err := a.ledger.Search(cmd.Context(), q, verifyResults)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Top-%d matches for query:\n%s\n", verifyResults, titleStyle.Render(q))
	renderResults(cmd.OutOrStdout(), res)
	return nil
}

func newRegistry(a *app) *DocRegistry {
	reg := &DocRegistry{
		log:              a.log,
		root:             a.cfg.DocRoot,
		mergeEventsDelay: time.Duration(a.cfg.MergeEventsMs) * time.Millisecond,
		ingester:         a.ledger,
	}
	reg.RegisterReader(&readers.UniversalFileReader{})

	return reg
}

func runWatch(cmd *cobra.Command, args []string) error {
	a, err := newApp(cfgPath, reset)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := newRegistry(a)
	err = reg.Sync(ctx)
	if err != nil {
		return err
	}

	err = reg.Watch(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Watching %s, press Ctrl+C to stop.\n", a.cfg.DocRoot)
	<-ctx.Done()
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp(cfgPath, reset)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if serveWatch {
		reg := newRegistry(a)
		go func() {
			err := reg.Sync(ctx)
			if err != nil {
				a.log.Error("failed to sync document root", "root", a.cfg.DocRoot, "error", err)
				return
			}

			err = reg.Watch(ctx)
			if err != nil {
				a.log.Error("failed to watch document root", "root", a.cfg.DocRoot, "error", err)
			}
		}()
	}

	srv := NewRagServer(a.ledger, a.cfg.Results)
	if serveStdio {
		return server.ServeStdio(srv)
	}

	sse := server.NewSSEServer(srv, server.WithBaseURL(fmt.Sprintf("http://%s", a.cfg.ServerAddr)))
	a.log.Info("serving MCP over SSE", "addr", a.cfg.ServerAddr)
	return sse.Start(a.cfg.ServerAddr)
}

func runAdmin(cmd *cobra.Command, args []string) error {
	a, err := newApp(cfgPath, reset)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	console := newAdminConsole(a.ledger, &readers.UniversalFileReader{}, a.cfg.Results, cmd.InOrStdin(), cmd.OutOrStdout())
	return console.Run(ctx)
}
