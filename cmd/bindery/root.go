package main

import (
	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "bindery",
	Short: "OCR correction and cross-page merge pipeline for scanned books",
	Long: `Bindery turns raw per-page OCR text into a structured book.

Each page is corrected and structured into typed content sections by an
external completion endpoint under a bounded worker pool, then paragraphs
split across page boundaries are reassembled and the result is grouped
into chapters with word counts.

Capture, cropping, the OCR engine itself, and EPUB/M4B rendering are
external tools; bindery consumes their output and produces book.json.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.bindery/config.yaml)",
	)

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(extractCmd)
}
