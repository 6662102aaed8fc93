package main

import (
	"fmt"
	"os"

	"github.com/apexcrm/leadflow/internal/cli"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{Use: "leadflow"}

func main() {
	rootCmd.PersistentFlags().String("db", "", "Database connection string")
	cli.SetupCLI(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
