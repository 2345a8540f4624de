// Package main provides the Review Radar CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/reviewradar/review-radar/internal/client"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	var serverURL string

	rootCmd := &cobra.Command{
		Use:          "review-radar",
		Short:        "Review Radar - product review analysis from the command line",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", "http://localhost:8080", "server base URL")

	rootCmd.AddCommand(analyzeCmd(&serverURL))
	rootCmd.AddCommand(statusCmd(&serverURL))
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("review-radar %s\n", version)
			fmt.Printf("  commit: %s\n", commit)
			fmt.Printf("  built:  %s\n", date)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newClient(serverURL string) *client.Client {
	cfg := client.DefaultConfig()
	cfg.BaseURL = serverURL
	return client.New(cfg)
}

func analyzeCmd(serverURL *string) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <product>",
		Short: "Analyze real-world reviews for a product",
		Long: `Analyze streams review analysis progress for a product and prints
the final report.

Examples:
  review-radar analyze "갤럭시 버즈"
  review-radar analyze "Sony WH-1000XM5" --server http://radar.internal:8080`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			product := strings.Join(args, " ")

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			c := newClient(*serverURL)

			var final client.ProgressEvent
			err := c.Analyze(ctx, product, func(ev client.ProgressEvent) {
				if ev.Answer != "" || ev.Error {
					final = ev
					return
				}
				fmt.Printf("[%3d%%] %s\n", ev.Percent, ev.Message)
			})
			if err != nil {
				if final.Error {
					return fmt.Errorf("%s", final.Message)
				}
				return err
			}

			fmt.Printf("[100%%] %s\n\n", final.Message)
			fmt.Println(final.Answer)

			if len(final.Pros) > 0 || len(final.Cons) > 0 || final.Rating > 0 {
				fmt.Println()
				for _, p := range final.Pros {
					fmt.Printf("  + %s\n", p)
				}
				for _, c := range final.Cons {
					fmt.Printf("  - %s\n", c)
				}
				if final.Rating > 0 {
					fmt.Printf("  rating: %.1f/10\n", final.Rating)
				}
			}
			return nil
		},
	}
}

func statusCmd(serverURL *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show server status and cache occupancy",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient(*serverURL)

			status, err := c.Status(context.Background())
			if err != nil {
				return err
			}

			fmt.Printf("status:  %s (version %s)\n", status.Status, status.Version)
			fmt.Printf("cache:   %s, %d/%d entries\n",
				status.Cache.Backend, status.Cache.Size, status.Cache.Capacity)
			if len(status.Providers) > 0 {
				fmt.Printf("genai:   %s\n", strings.Join(status.Providers, " -> "))
			}
			for name, state := range status.Dependencies {
				fmt.Printf("dep:     %s: %s\n", name, state)
			}
			return nil
		},
	}
}
