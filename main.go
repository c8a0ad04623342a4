// mazesync serves a shared, seeded maze that many players race through.
//
// Usage:
//
//	mazesync serve                                   - Start the HTTP API
//	mazesync generate --width 15 --height 15 --seed x - Print a maze
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "mazesync",
	Short: "Multiplayer seeded maze server",
	Long: `mazesync generates perfect mazes from a seed and keeps every player
on the same maze through a shared store.

Available commands:
  serve     - Start the HTTP API
  generate  - Print a maze for a seed`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(generateCmd)
}
