package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var noColor bool

var rootCmd = &cobra.Command{
	Use:   "habitd",
	Short: "habitd — conversational diary and habit tracker",
	Long: `habitd is a conversational data-collection assistant. A chat relay
posts user messages to its HTTP endpoint; habitd drives the per-user
conversation flow, extracts structured records from free-form diary text,
and appends them to the user's connected spreadsheet.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the habitd version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("habitd version %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		printError("%v", err)
		os.Exit(1)
	}
}
