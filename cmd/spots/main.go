package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/1F47E/trip-spots/pkg/config"
	"github.com/1F47E/trip-spots/pkg/logger"
)

var (
	configFile string
	verbose    bool

	// Set by the root pre-run hook before any subcommand runs
	spotsApp *app
)

var rootCmd = &cobra.Command{
	Use:   "spots",
	Short: "Find restaurants, cafes and other places from OpenStreetMap",
	Long: `Query OpenStreetMap points of interest around a point, inside a bounding box
or inside a map viewport. Results are normalized, spread evenly over the area
and cached in memory under quantized spatial keys.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Config file (default config.yaml, then config.yaml.example)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	rootCmd.AddCommand(nearCmd, boundsCmd, viewCmd, boundaryCmd, addressCmd, panCmd, benchCmd)
}

func setup(cmd *cobra.Command, args []string) error {
	logger.SetDebug(verbose)
	// .env is optional
	if err := godotenv.Load(); err == nil {
		logger.Debug(".env loaded")
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	spotsApp = newApp(cfg)
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
