package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/lazypower/backscroll/internal/textcache"
	"github.com/spf13/cobra"
)

var searchLimit int

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search captured screen text",
	Long:  "Full-text search over recognized screen text. Reads the text cache directly; safe to run while the server is up (WAL allows concurrent readers).",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "Maximum number of results")
}

// openTextCache opens the text cache under the configured storage root.
func openTextCache() (*textcache.Cache, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	dir, err := cfg.ResolveStorageDir()
	if err != nil {
		return nil, err
	}
	return textcache.Open(filepath.Join(dir, textDBName))
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")

	texts, err := openTextCache()
	if err != nil {
		return fmt.Errorf("open text cache: %w", err)
	}
	defer texts.Close()

	ids, err := texts.SearchFrameIDs(query, searchLimit)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}

	if len(ids) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	for i, id := range ids {
		text, _, err := texts.GetText(id)
		if err != nil {
			return fmt.Errorf("load text: %w", err)
		}
		fmt.Printf("%d. %s\n", i+1, id)
		fmt.Printf("   %s\n\n", excerpt(text, query, 160))
	}
	return nil
}

// excerpt returns a window of text centered on the first query token match,
// falling back to the head of the text.
func excerpt(text, query string, width int) string {
	flat := strings.Join(strings.Fields(text), " ")
	if len(flat) <= width {
		return flat
	}

	lower := strings.ToLower(flat)
	at := -1
	for _, tok := range strings.Fields(strings.ToLower(query)) {
		if i := strings.Index(lower, tok); i >= 0 {
			at = i
			break
		}
	}
	if at < 0 {
		return flat[:width] + "..."
	}

	start := at - width/3
	if start < 0 {
		start = 0
	}
	end := start + width
	if end > len(flat) {
		end = len(flat)
		start = end - width
	}

	out := flat[start:end]
	if start > 0 {
		out = "..." + out
	}
	if end < len(flat) {
		out += "..."
	}
	return out
}
