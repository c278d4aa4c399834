// Command components resolves serverless templates and runs their
// components locally or through the components engine.
package main

import (
	"context"
	"os"

	"github.com/roach88/components/internal/cli"
)

func main() {
	os.Exit(cli.Execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}
