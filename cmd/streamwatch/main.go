// Command streamwatch runs real-time z-score anomaly detection over a
// scalar measurement stream.
package main

import (
	"log"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "streamwatch",
	Short: "Real-time anomaly detection for scalar measurement streams",
}

func main() {
	rootCmd.AddCommand(watchCmd, serveCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
