package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// buildRootCmd constructs the Cobra command tree wired to the daemon client.
func buildRootCmd() *cobra.Command {
	cl := &client{}

	root := &cobra.Command{
		Use:           "llamactl",
		Short:         "Operator CLI for the llamactld controller",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cl.baseURL, "addr", envOr("LLAMACTLD_URL", "http://127.0.0.1:8080"),
		"Base URL of the llamactld API (defaults LLAMACTLD_URL)")

	var gpuFlag string
	var linesFlag int

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show managed instances",
		RunE:  func(cmd *cobra.Command, args []string) error { return cl.status(cmd.OutOrStdout()) },
	}

	gpusCmd := &cobra.Command{
		Use:   "gpus",
		Short: "Probe GPU occupancy",
		RunE:  func(cmd *cobra.Command, args []string) error { return cl.gpus(cmd.OutOrStdout()) },
	}

	modelsCmd := &cobra.Command{
		Use:   "models",
		Short: "List known models",
		RunE:  func(cmd *cobra.Command, args []string) error { return cl.models(cmd.OutOrStdout()) },
	}

	loadCmd := &cobra.Command{
		Use:     "load <model>",
		Short:   "Load a model onto a GPU assignment",
		Example: "  llamactl load tinyllama-q4 --gpu 0\n  llamactl load mixtral-q5 --gpu 0,1",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cl.load(cmd.OutOrStdout(), args[0], gpuFlag)
		},
	}
	loadCmd.Flags().StringVar(&gpuFlag, "gpu", "0", "GPU assignment: 0, 1, 0,1 or cpu")

	unloadCmd := &cobra.Command{
		Use:   "unload",
		Short: "Unload the instance on a GPU assignment",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cl.unload(cmd.OutOrStdout(), gpuFlag)
		},
	}
	unloadCmd.Flags().StringVar(&gpuFlag, "gpu", "0", "GPU assignment: 0, 1, 0,1 or cpu")

	switchCmd := &cobra.Command{
		Use:   "switch <model>",
		Short: "Replace the model on a GPU assignment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cl.switchModel(cmd.OutOrStdout(), args[0], gpuFlag)
		},
	}
	switchCmd.Flags().StringVar(&gpuFlag, "gpu", "0", "GPU assignment: 0, 1, 0,1 or cpu")

	logsCmd := &cobra.Command{
		Use:   "logs",
		Short: "Tail llama-server output for an assignment",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cl.logs(cmd.OutOrStdout(), gpuFlag, linesFlag)
		},
	}
	logsCmd.Flags().StringVar(&gpuFlag, "gpu", "0", "GPU assignment: 0, 1, 0,1 or cpu")
	logsCmd.Flags().IntVar(&linesFlag, "lines", 50, "Number of output lines to fetch")

	root.AddCommand(statusCmd, gpusCmd, modelsCmd, loadCmd, unloadCmd, switchCmd, logsCmd)
	return root
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
