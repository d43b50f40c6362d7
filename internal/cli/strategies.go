// internal/cli/strategies.go
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/DONALDBZR/Crawly/internal/engine"
	"github.com/DONALDBZR/Crawly/internal/engine/htmlpage"
	"github.com/DONALDBZR/Crawly/internal/engine/productapi"
	"github.com/DONALDBZR/Crawly/internal/engine/rendered"
	"github.com/DONALDBZR/Crawly/internal/ui"
)

// strategySummaries gives each built-in strategy a one-line description for
// the listing. Strategies registered without one still show up, just bare.
var strategySummaries = map[string]string{
	htmlpage.Identifier:   "Server-rendered HTML over plain HTTP",
	productapi.Identifier: "Product JSON endpoints",
	rendered.Identifier:   "JavaScript-heavy pages through headless Chrome",
}

// strategiesCmd lists the registered scraping strategies.
var strategiesCmd = &cobra.Command{
	Use:   "strategies",
	Short: "List the available scraping strategies",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(os.Stdout, "\n%s\n", ui.Bold("Strategies"))
		for _, name := range engine.Names() {
			marker := " "
			if name == htmlpage.Identifier {
				marker = ui.Success("*")
			}
			if summary, ok := strategySummaries[name]; ok {
				fmt.Fprintf(os.Stdout, " %s %-14s %s\n", marker, name, ui.Info(summary))
			} else {
				fmt.Fprintf(os.Stdout, " %s %s\n", marker, name)
			}
		}
		fmt.Fprintf(os.Stdout, "\n%s\n\n", ui.Info("* used when --strategy is not given"))
	},
}

func init() {
	rootCmd.AddCommand(strategiesCmd)
}
