package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strconv"
	"time"

	"gog-receipts/lib/browser"
	"gog-receipts/lib/gog/auth"
	"gog-receipts/lib/gog/orders"
	"gog-receipts/lib/gog/receipts"
	"gog-receipts/lib/telemetry"
	"gog-receipts/lib/util/configutil"
	"gog-receipts/lib/util/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	receiptsDir  *string
	noBackground *bool
	viewport     *string
	timeoutMs    *int
	headful      *bool
	verbose      *bool
)

func init() {
	receiptsDir = rootCmd.Flags().StringP("receipts-dir", "d", "receipts", "Output directory for PDFs.")
	noBackground = rootCmd.Flags().Bool("no-background", false, "Do not print CSS backgrounds.")
	viewport = rootCmd.Flags().StringP("viewport", "v", "1280x800", "Viewport size as WIDTHxHEIGHT.")
	timeoutMs = rootCmd.Flags().IntP("timeout", "t", 60000, "Navigation timeout in milliseconds.")
	headful = rootCmd.Flags().Bool("headful", false, "Run the browser with a UI.")
	verbose = rootCmd.PersistentFlags().Bool("verbose", false, "Enable debug logging.")
}

// optional defaults read from gog-receipts.json5, flags win over these
type Config struct {
	ReceiptsDir  string `json:"receipts_dir"`
	Viewport     string `json:"viewport"`
	TimeoutMs    int    `json:"timeout_ms"`
	Headful      bool   `json:"headful"`
	NoBackground bool   `json:"no_background"`
}

var rootCmd = &cobra.Command{
	Use:   "gog-receipts",
	Short: "Downloads and stores your GOG purchase receipts as PDFs.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		telemetry.InitSlog(*verbose)
		_, err := telemetry.SetupFromEnv(cmd.Context(), "gog-receipts")
		if err != nil {
			slog.Warn("failed to set up telemetry", "err", err)
		}
	},
	Run: func(cmd *cobra.Command, args []string) {
		applyConfigDefaults(cmd)

		width, height, err := parseViewport(*viewport)
		if err != nil {
			serviceutil.Fatal("invalid viewport", err)
		}

		token := acquireToken(cmd.Context(), "")

		client := orders.NewClient(orders.ClientOptions{
			AccessToken: token.AccessToken,
		})
		history, err := client.FetchAll(cmd.Context())
		if err != nil {
			serviceutil.Fatal("failed to fetch order history", err)
		}

		saved, err := receipts.Harvest(cmd.Context(), history, receipts.Options{
			OutputDir:       *receiptsDir,
			PrintBackground: !*noBackground,
			Browser: browser.Options{
				Headless:       !*headful,
				ViewportWidth:  width,
				ViewportHeight: height,
				Timeout:        time.Duration(*timeoutMs) * time.Millisecond,
				AccessToken:    token.AccessToken,
			},
			OnProgress: logProgress,
		})
		if err != nil {
			serviceutil.Fatal("harvest failed", err)
		}

		printSummary(saved)
	},
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func acquireToken(ctx context.Context, provided string) auth.Token {
	root, err := auth.DefaultRoot()
	if err != nil {
		serviceutil.Fatal("failed to resolve config directory", err)
	}
	flow := auth.NewFlow(auth.NewStore(root))
	token, err := flow.Acquire(ctx, provided)
	if err != nil {
		serviceutil.Fatal("failed to authenticate with gog", err)
	}
	return token
}

func applyConfigDefaults(cmd *cobra.Command) {
	config, err := configutil.ReadConfig[Config]("gog-receipts.json5")
	if os.IsNotExist(err) {
		return
	}
	if err != nil {
		serviceutil.Fatal("failed to read gog-receipts.json5", err)
	}

	flags := cmd.Flags()
	if !flags.Changed("receipts-dir") && config.ReceiptsDir != "" {
		*receiptsDir = config.ReceiptsDir
	}
	if !flags.Changed("viewport") && config.Viewport != "" {
		*viewport = config.Viewport
	}
	if !flags.Changed("timeout") && config.TimeoutMs > 0 {
		*timeoutMs = config.TimeoutMs
	}
	if !flags.Changed("headful") && config.Headful {
		*headful = true
	}
	if !flags.Changed("no-background") && config.NoBackground {
		*noBackground = true
	}
}

var viewportRegex = regexp.MustCompile(`^(\d+)x(\d+)$`)

func parseViewport(s string) (int, int, error) {
	groups := viewportRegex.FindStringSubmatch(s)
	if len(groups) != 3 {
		return 0, 0, fmt.Errorf("%q is not of the form WIDTHxHEIGHT", s)
	}
	width, err := strconv.Atoi(groups[1])
	if err != nil {
		return 0, 0, err
	}
	height, err := strconv.Atoi(groups[2])
	if err != nil {
		return 0, 0, err
	}
	return width, height, nil
}

func logProgress(ev receipts.Event) {
	switch e := ev.(type) {
	case receipts.FoundEvent:
		slog.Info("found orders", "count", e.Count)
	case receipts.NavigatingEvent:
		slog.Debug("navigating", "url", e.Url)
	case receipts.ProcessingEvent:
		slog.Info("processing receipt", "index", e.Index+1, "total", e.Total, "url", e.Url)
	case receipts.SavedEvent:
		slog.Info("receipt saved", "path", e.Path)
	case receipts.DoneEvent:
		slog.Info("harvest complete", "saved", e.Saved)
	}
}

func printSummary(saved []string) {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"#", "Receipt"})
	for i, path := range saved {
		t.AppendRow(table.Row{i + 1, path})
	}
	t.Render()
}
