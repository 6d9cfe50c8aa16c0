// Package extract implements the extract command for pulling tender
// announcements out of a page.
package extract

import (
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/jiazeyu1987/hospitalscan/cmd/common"
	"github.com/jiazeyu1987/hospitalscan/internal/extract"
)

// titlePreviewLength caps the title column width in table output.
const titlePreviewLength = 60

// Cmd represents the extract command. The argument is a local HTML file or
// a URL; files are read directly, URLs are fetched with the page fetcher.
var Cmd = &cobra.Command{
	Use:   "extract <file-or-url>",
	Short: "Extract tender announcements from a page",
	Long: `Extract parses a tender listing page and prints the announcements it
finds. Three strategies run in order: list items, table rows, and freeform
content blocks.

Examples:
  # Extract from a live procurement page
  hospitalscan extract https://www.example-hospital.cn/zbgg/

  # Extract from a saved page
  hospitalscan extract ./testdata/listing.html

  # Locate tender columns instead of announcements
  hospitalscan extract --sections https://www.example-hospital.cn
`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

// Command returns the extract command for use in the root command.
func Command() *cobra.Command {
	Cmd.Flags().Bool("sections", false, "locate tender columns instead of extracting announcements")
	return Cmd
}

func runExtract(cmd *cobra.Command, args []string) error {
	deps, err := common.Build(common.OptionsFromCommand(cmd))
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}

	source := args[0]
	html, sourceURL, err := loadPage(cmd, deps, source)
	if err != nil {
		return err
	}

	sections, err := cmd.Flags().GetBool("sections")
	if err != nil {
		return fmt.Errorf("failed to read sections flag: %w", err)
	}

	if sections {
		renderSections(deps.Extractor.FindSections(html, sourceURL))
		return nil
	}

	renderCandidates(deps.Extractor.Candidates(html, sourceURL))
	return nil
}

// loadPage reads a local file when the argument names one, and fetches the
// URL otherwise. Files report a file:// source URL so extracted records
// still carry provenance.
func loadPage(cmd *cobra.Command, deps *common.Deps, source string) (html, sourceURL string, err error) {
	if _, statErr := os.Stat(source); statErr == nil {
		body, readErr := os.ReadFile(source)
		if readErr != nil {
			return "", "", fmt.Errorf("failed to read page file: %w", readErr)
		}
		return string(body), "file://" + source, nil
	}

	body, fetchErr := deps.Fetcher.Fetch(cmd.Context(), source)
	if fetchErr != nil {
		return "", "", fmt.Errorf("failed to fetch page: %w", fetchErr)
	}
	return body, source, nil
}

func renderCandidates(candidates []extract.Candidate) {
	if len(candidates) == 0 {
		fmt.Fprintln(os.Stdout, "No tender announcements found")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "Title", "Type", "Category", "Published", "Deadline", "Budget", "Method"})

	for i, c := range candidates {
		t.AppendRow(table.Row{
			i + 1,
			truncateString(c.Title, titlePreviewLength),
			c.Type,
			c.Category,
			orDash(c.PublishDate),
			orDash(c.DeadlineDate),
			formatBudget(c),
			c.Method,
		})
	}

	t.AppendFooter(table.Row{"Total", len(candidates)})
	t.Render()
}

func renderSections(sections []extract.Section) {
	if len(sections) == 0 {
		fmt.Fprintln(os.Stdout, "No tender columns found")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "Title", "Kind", "Origin", "URL"})

	for i, s := range sections {
		t.AppendRow(table.Row{i + 1, s.Title, s.Kind, s.Origin, s.URL})
	}

	t.AppendFooter(table.Row{"Total", len(sections)})
	t.Render()
}

func formatBudget(c extract.Candidate) string {
	if !c.HasBudget() {
		return "-"
	}
	return fmt.Sprintf("%.2f %s", c.BudgetAmount, c.BudgetCurrency)
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func truncateString(s string, length int) string {
	runes := []rune(s)
	if len(runes) <= length {
		return s
	}
	return string(runes[:length]) + "..."
}
