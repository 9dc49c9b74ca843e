package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (injected at build time via ldflags).
var (
	AppVersion = "development"
	BuildTime  = "unknown"
	GitCommit  = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("founderchat %s\n", AppVersion)
		fmt.Printf("Build Time: %s\n", BuildTime)
		fmt.Printf("Git Commit: %s\n", GitCommit)
		fmt.Println()

		printKeyStatus("GROQ_API_KEY")
		printKeyStatus("OPENAI_API_KEY")
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

// printKeyStatus reports whether a secret is configured without leaking it.
func printKeyStatus(name string) {
	key := os.Getenv(name)
	if key == "" {
		fmt.Printf("  %s: not set\n", name)
		return
	}
	if len(key) < 8 {
		fmt.Printf("  %s: configured\n", name)
		return
	}
	fmt.Printf("  %s: %s...%s (configured)\n", name, key[:4], key[len(key)-4:])
}
