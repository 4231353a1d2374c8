package main

import (
	"os"

	"github.com/iamnilay3/Shimmer/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
