// Package main is the entry point for the hexhaven server and its tools
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "hexhaven",
	Short: "Hexhaven co-op game server",
	Long: `Hexhaven hosts cooperative hex-grid scenarios. Rooms are created over HTTP,
players connect over a websocket and operators inspect rooms over gRPC.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serverCmd)
	rootCmd.AddCommand(clientCmd)
	rootCmd.AddCommand(simulateCmd)
}
