package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/idrisr/pepys/server"
	"github.com/idrisr/pepys/store"
)

var rootCmd = &cobra.Command{
	Use:   "pepys",
	Short: "PDF document-structure graph explorer",
	Long: "pepys parses PDF documents into a typed object store, derives the\n" +
		"reference graph, and serves bounded traversal, search and stream\n" +
		"previews over HTTP.",
	SilenceUsage: true,
}

var serveFlags struct {
	addr        string
	maxUploadMB int
	logLevel    string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		// Optional .env; flags and real env still win.
		_ = godotenv.Load()

		log := newLogger(serveFlags.logLevel)
		st := store.New(store.Config{Logger: log})
		srv := server.New(server.Config{
			Addr:           envOr("PEPYS_ADDR", serveFlags.addr),
			MaxUploadBytes: int64(envIntOr("PEPYS_MAX_MB", serveFlags.maxUploadMB)) << 20,
			Logger:         log,
		}, st)
		return srv.Run()
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveFlags.addr, "addr", ":8001", "listen address")
	serveCmd.Flags().IntVar(&serveFlags.maxUploadMB, "max-upload-mb", 100, "upload size cap in MiB")
	serveCmd.Flags().StringVar(&serveFlags.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.AddCommand(serveCmd)
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ignoring %s=%q: not an integer\n", key, v)
		return fallback
	}
	return n
}
