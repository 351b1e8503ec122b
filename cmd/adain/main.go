// Package main provides the adain CLI: train a style-transfer decoder and
// stylize images with it.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

const version = "v0.1.0-dev"

func usage(w io.Writer) {
	_, _ = fmt.Fprintf(w, "adain %s - arbitrary style transfer with adaptive instance normalization\n\n", version)
	_, _ = fmt.Fprintln(w, "Usage:")
	_, _ = fmt.Fprintln(w, "  adain train   [flags]   train a decoder")
	_, _ = fmt.Fprintln(w, "  adain stylize [flags]   render a content image in a style")
	_, _ = fmt.Fprintln(w, "  adain version           show version")
	_, _ = fmt.Fprintln(w, "\nRun 'adain <command> -h' for command flags.")
}

func main() {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}

	var err error
	switch cmd, args := os.Args[1], os.Args[2:]; cmd {
	case "train":
		err = runTrain(args)
	case "stylize":
		err = runStylize(args)
	case "version":
		fmt.Printf("adain %s\n", version)
	case "help", "-h", "--help":
		usage(os.Stdout)
	default:
		_, _ = fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		usage(os.Stderr)
		os.Exit(2)
	}
	if err != nil {
		slog.Error(os.Args[1]+" failed", "err", err)
		os.Exit(1)
	}
}

// newLogger builds the process logger. format is "text" or "json".
func newLogger(format string, verbose bool) (*slog.Logger, error) {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if verbose {
		opts.Level = slog.LevelDebug
	}
	var h slog.Handler
	switch strings.ToLower(format) {
	case "text", "":
		h = slog.NewTextHandler(os.Stderr, opts)
	case "json":
		h = slog.NewJSONHandler(os.Stderr, opts)
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
	logger := slog.New(h)
	slog.SetDefault(logger)
	return logger, nil
}
