package cli

import (
	"fmt"
	"path/filepath"

	"github.com/lazypower/backscroll/internal/framestore"
	"github.com/lazypower/backscroll/internal/textcache"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show storage and index statistics",
	RunE:  runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	dir, err := cfg.ResolveStorageDir()
	if err != nil {
		return err
	}

	store, err := framestore.Open(dir)
	if err != nil {
		return fmt.Errorf("open frame store: %w", err)
	}

	texts, err := textcache.Open(filepath.Join(dir, textDBName))
	if err != nil {
		return fmt.Errorf("open text cache: %w", err)
	}
	defer texts.Close()

	records := store.Records()
	indexed, err := texts.IndexedCount()
	if err != nil {
		return fmt.Errorf("count indexed: %w", err)
	}

	fmt.Printf("storage:  %s\n", dir)
	fmt.Printf("frames:   %d\n", len(records))
	fmt.Printf("indexed:  %d\n", indexed)
	fmt.Printf("on disk:  %s\n", humanBytes(store.TotalStorageSize()))
	if len(records) > 0 {
		oldest := records[0].Timestamp
		newest := records[len(records)-1].Timestamp
		fmt.Printf("span:     %s to %s\n",
			oldest.Format("2006-01-02 15:04:05"),
			newest.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}
