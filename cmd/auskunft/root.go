package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// cfgFile is the config file path shared by all subcommands. Empty
// means config discovery (./auskunft.yaml, then /etc/auskunft/).
var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "auskunft",
	Short: "Auskunft - retrieval-augmented question answering service",
	Long: `Auskunft answers questions grounded in your own documents.

Documents are chunked, embedded, and stored; questions retrieve the
most relevant chunks and feed them to a language model as context.
Two generation backends are supported:

  - ollama   local inference, no credentials needed (default)
  - watsonx  IBM watsonx.ai cloud inference

The active backend is chosen by configuration and never switches at
runtime.`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default: discovery)")
}
