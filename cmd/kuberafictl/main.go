package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"kuberafi/internal/cli"
)

func main() {
	var (
		apiBase = flag.String("api-base", "", "Service base URL (env: KRF_API_BASE)")
		token   = flag.String("token", "", "Bearer token (env: KRF_TOKEN)")
		outFmt  = flag.String("output", "json", "Output format: json|text")
	)
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		cli.Usage(os.Stderr)
		os.Exit(2)
	}

	base := strings.TrimSpace(*apiBase)
	if base == "" {
		base = strings.TrimSpace(os.Getenv("KRF_API_BASE"))
	}
	if base == "" {
		base = "http://localhost:8080"
	}

	// Token resolution order: flag, then env.
	tok := strings.TrimSpace(*token)
	if tok == "" {
		tok = strings.TrimSpace(os.Getenv("KRF_TOKEN"))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := cli.Context{
		Client: &cli.Client{BaseURL: strings.TrimRight(base, "/"), Token: tok},
		Output: cli.Format(strings.TrimSpace(*outFmt)),
		Out:    os.Stdout,
		Err:    os.Stderr,
	}
	if err := cli.Dispatch(ctx, c, args); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}
