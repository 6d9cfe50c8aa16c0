// Package verify implements the verify command for scoring candidate
// hospital websites.
package verify

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/jiazeyu1987/hospitalscan/cmd/common"
)

// latencyDisplayUnit rounds latency for table display.
const latencyDisplayUnit = time.Millisecond

// Cmd represents the verify command. Each URL is fetched, probed, and
// scored; a score at or above the validity threshold marks the site as an
// authentic hospital website.
var Cmd = &cobra.Command{
	Use:   "verify <url> [url...]",
	Short: "Verify and score candidate hospital websites",
	Long: `Verify fetches each candidate URL, probes TLS and robots.txt, scans the
page for hospital vocabulary and structural indicators, and prints the
composite score.

Examples:
  # Score a single site
  hospitalscan verify https://www.example-hospital.cn

  # Score several sites in one run
  hospitalscan verify https://a.example.cn https://b.example.cn
`,
	Args: cobra.MinimumNArgs(1),
	RunE: runVerify,
}

// Command returns the verify command for use in the root command.
func Command() *cobra.Command {
	return Cmd
}

func runVerify(cmd *cobra.Command, args []string) error {
	deps, err := common.Build(common.OptionsFromCommand(cmd))
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"URL", "Status", "Latency", "TLS", "Robots", "Content", "Score", "Valid", "Notes"})

	valid := 0
	for _, raw := range args {
		result := deps.Verifier.Verify(cmd.Context(), raw)
		if result.IsValid {
			valid++
		}

		notes := strings.Join(result.Indicators, ", ")
		if len(result.Errors) > 0 {
			notes = strings.Join(result.Errors, "; ")
		}

		t.AppendRow(table.Row{
			result.URL,
			result.HTTPStatus,
			result.Latency.Round(latencyDisplayUnit),
			yesNo(result.TLSValid),
			yesNo(result.RobotsAllowed),
			result.ContentScore,
			result.Score,
			yesNo(result.IsValid),
			notes,
		})
	}

	t.AppendFooter(table.Row{"Total", len(args), "", "", "", "", "", valid, ""})
	t.Render()

	return nil
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
