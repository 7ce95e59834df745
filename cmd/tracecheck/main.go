package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"docvault/internal/service/forensic"
	"docvault/internal/watermark/blindmark"

	"github.com/spf13/pflag"
)

// tracecheck inspects a suspect file and prints the identity trail
// recovered from its watermark, if any.
func main() {
	var (
		filePath = pflag.StringP("file", "f", "", "path to the file to inspect")
		verbose  = pflag.BoolP("verbose", "v", false, "enable debug logging")
	)
	pflag.Parse()

	if *filePath == "" && pflag.NArg() > 0 {
		*filePath = pflag.Arg(0)
	}
	if *filePath == "" {
		fmt.Fprintln(os.Stderr, "usage: tracecheck [-f] <file>")
		os.Exit(2)
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	data, err := os.ReadFile(*filePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read file: %v\n", err)
		os.Exit(1)
	}

	verifier := forensic.NewVerifier(blindmark.New(), logger)
	result, err := verifier.Verify(context.Background(), data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "verify: %v\n", err)
		os.Exit(1)
	}

	printResult(os.Stdout, result)
	if !result.Found {
		os.Exit(3)
	}
}

func printResult(w io.Writer, r *forensic.Result) {
	fmt.Fprintf(w, "kind:  %s\n", r.Kind)
	if !r.Found {
		fmt.Fprintln(w, "no watermark detected")
		return
	}
	fmt.Fprintf(w, "trace: %s\n", r.TraceToken)
	if r.UserID != "" {
		fmt.Fprintf(w, "user:  %s\n", r.UserID)
	}
	if r.Identity != "" {
		fmt.Fprintf(w, "who:   %s\n", r.Identity)
	}
	if !r.Timestamp.IsZero() {
		fmt.Fprintf(w, "when:  %s\n", r.Timestamp.Format("2006-01-02 15:04:05"))
	}
}
