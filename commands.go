package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var catalogPath string

var rootCmd = &cobra.Command{
	Use:   "portfolio",
	Short: "Personal portfolio site",
	Long: `portfolio serves the portfolio site: the home page, project details,
the contact form and the analytics admin pages. Run without a subcommand it
behaves like "portfolio serve".`,
	SilenceUsage: true,
	RunE:         runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web server",
	RunE:  runServe,
}

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "Inspect the project catalog",
}

var projectsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every project in catalog order",
	RunE: func(cmd *cobra.Command, _ []string) error {
		catalog, err := OpenCatalog(catalogPath)
		if err != nil {
			return err
		}
		printProjectList(cmd.OutOrStdout(), catalog.All())
		return nil
	},
}

var projectsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog, err := OpenCatalog(catalogPath)
		if err != nil {
			return err
		}
		res := NewProjectResolver(catalog, nil).Resolve(args[0])
		if !res.Found {
			return fmt.Errorf("project %q not found", args[0])
		}
		printProject(cmd.OutOrStdout(), res.Project)
		return nil
	},
}

var catalogCheckCmd = &cobra.Command{
	Use:   "check [file]",
	Short: "Validate a catalog file (defaults to the built-in catalog)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := catalogPath
		if len(args) == 1 {
			path = args[0]
		}
		catalog, err := OpenCatalog(path)
		if err != nil {
			return err
		}
		color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "ok: %d projects\n", catalog.Len())
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&catalogPath, "catalog", os.Getenv("CATALOG_PATH"), "catalog YAML file (default: built-in)")

	catalogCmd := &cobra.Command{Use: "catalog", Short: "Catalog maintenance"}
	catalogCmd.AddCommand(catalogCheckCmd)

	projectsCmd.AddCommand(projectsListCmd, projectsShowCmd)
	rootCmd.AddCommand(serveCmd, projectsCmd, catalogCmd)
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func printProjectList(w io.Writer, projects []Project) {
	id := color.New(color.FgCyan, color.Bold)
	for _, p := range projects {
		id.Fprintf(w, "%-20s", p.ID)
		fmt.Fprintf(w, " %s", p.Title)
		if p.Award != "" {
			color.New(color.FgYellow).Fprintf(w, " [%s]", p.Award)
		}
		fmt.Fprintln(w)
	}
}

func printProject(w io.Writer, p Project) {
	color.New(color.Bold).Fprintln(w, p.Title)
	fmt.Fprintln(w, p.Summary())
	if len(p.Badges) > 0 {
		fmt.Fprintf(w, "\nTechnologies: %s\n", strings.Join(p.Badges, ", "))
	}
	for _, f := range p.Features {
		fmt.Fprintf(w, "  - %s\n", f)
	}
	if p.DemoURL != "" {
		fmt.Fprintf(w, "Demo: %s\n", p.DemoURL)
	}
	if p.GitHubURL != "" {
		fmt.Fprintf(w, "Code: %s\n", p.GitHubURL)
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}
	if catalogPath != "" {
		cfg.CatalogPath = catalogPath
	}

	logger := NewLogger(cfg.LogLevel)
	gin.SetMode(cfg.GinMode)

	catalog, err := OpenCatalog(cfg.CatalogPath)
	if err != nil {
		return err
	}
	logger.Info("catalog loaded", "projects", catalog.Len())

	transport, err := NewTransport(cfg, logger)
	if err != nil {
		return err
	}

	metrics := NewMetrics()
	var (
		store    *Store
		reporter Reporter = NopReporter{}
	)
	if cfg.DatabasePath != "" {
		store, err = OpenStore(cfg.DatabasePath)
		if err != nil {
			return err
		}
		defer store.Close()

		sqlReporter := NewSQLiteReporter(store, logger, metrics, defaultEventQueue)
		defer sqlReporter.Close()
		reporter = sqlReporter
	} else {
		logger.Warn("DATABASE_PATH is empty, analytics are not recorded")
	}

	srv, err := NewServer(cfg, ServerDeps{
		Catalog:   catalog,
		Transport: transport,
		Reporter:  reporter,
		Store:     store,
		Metrics:   metrics,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", "addr", httpServer.Addr, "transport", cfg.ContactTransport)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return srv.Sessions().Run(gctx, 5*time.Minute)
	})
	if store != nil {
		g.Go(func() error {
			return runRetention(gctx, store, cfg.AnalyticsRetention, logger)
		})
	}

	err = g.Wait()
	logger.Info("server stopped")
	return err
}
