package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "grading",
	Short: "Card grading submissions service",
	Long:  "A card grading service for submissions, pay now and pay later flows, Stripe webhooks, and payment reconciliation.",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
