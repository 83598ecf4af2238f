package cli

import (
	"github.com/lazypower/backscroll/internal/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "backscroll",
	Short: "Rolling screen history with search",
	Long:  "Backscroll keeps a rolling, deduplicated history of screen captures and makes the text on them searchable. Single Go binary.",
}

var configPath string

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default ~/.backscroll/config.yaml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(statsCmd)
}

// loadConfig resolves the --config flag (or the default location) into a
// Config. Shared by every command that touches storage.
func loadConfig() (config.Config, error) {
	path := configPath
	if path == "" {
		var err error
		path, err = config.DefaultConfigPath()
		if err != nil {
			return config.Default(), err
		}
	}
	return config.Load(path)
}
