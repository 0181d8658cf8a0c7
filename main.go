package main

import (
	"context"
	"os"

	"github.com/7blacky7/lorapatch/cmd"
)

func main() {
	if err := cmd.NewCLI().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
