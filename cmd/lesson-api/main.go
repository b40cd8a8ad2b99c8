package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// @title Lesson Scheduler API
// @version 1.0.0
// @description Lesson scheduling core: conflict-free booking, role-scoped reads and the lesson audit trail
// @BasePath /api/v1
// @schemes http

var rootCmd = &cobra.Command{
	Use:           "lesson-api",
	Short:         "Lesson scheduling service",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
