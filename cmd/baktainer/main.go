package main

import (
	"context"
	"fmt"
	"os"

	"github.com/baktainer/baktainer/internal/app"
	"github.com/baktainer/baktainer/internal/cli"
)

func main() {
	a, err := app.New(context.Background())
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to start:", err)
		os.Exit(1)
	}
	defer a.Close()

	cli.Execute(a)
}
