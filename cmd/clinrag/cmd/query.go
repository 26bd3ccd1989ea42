package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/clinrag/clinrag/internal/answer"
	"github.com/clinrag/clinrag/internal/search"
)

// newQueryCmd creates the one-shot query command.
func newQueryCmd() *cobra.Command {
	var topK int
	var jsonOutput bool
	var generate bool

	cmd := &cobra.Command{
		Use:   "query <question>",
		Short: "Answer a clinical question from the command line",
		Long: `Run one question through the retrieval pipeline and print the ranked
results. With --answer, also synthesize a cited natural-language answer.

Output is human-readable on a terminal and JSON when piped; --json forces
JSON either way.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.Join(args, " ")

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger, cleanup, err := setupLogging(cfg, false)
			if err != nil {
				return err
			}
			defer cleanup()

			a, err := newApp(cmd.Context(), cfg, logger, false)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.engine.Query(cmd.Context(), question, topK)
			if err != nil {
				return err
			}

			out := map[string]any{"query": question, "result": result}
			var generated *answer.Answer
			if generate {
				generated = a.generator.Generate(cmd.Context(), question, result.Records)
				out["answer"] = generated
			}

			if jsonOutput || !isatty.IsTerminal(os.Stdout.Fd()) {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}

			printResult(cmd, question, result)
			if generated != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "\n%s\n", generated.Text)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "Number of results (default from config)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Force JSON output")
	cmd.Flags().BoolVar(&generate, "answer", false, "Generate a cited answer from the results")

	return cmd
}

func printResult(cmd *cobra.Command, question string, result *search.Result) {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Question: %s\n", question)
	fmt.Fprintf(w, "Strategy: %s  Intent: %s  Confidence: %.2f\n",
		result.Decision.Strategy, result.Decision.Intent, result.Decision.Confidence)
	if result.TemplateUsed != "" {
		fmt.Fprintf(w, "Template: %s\n", result.TemplateUsed)
	}
	fmt.Fprintf(w, "Paths: vector=%d graph=%d  Total: %dms\n\n",
		result.VectorCount, result.GraphCount, result.Timings.TotalMS)

	if len(result.Records) == 0 {
		fmt.Fprintln(w, "No results.")
		return
	}

	for i, rec := range result.Records {
		fmt.Fprintf(w, "%2d. [%.4f] %s (%s)\n", i+1, rec.Score, rec.ID, rec.Source)
		if rec.Text != "" {
			fmt.Fprintf(w, "    %s\n", rec.Text)
		}
		var meta []string
		if rec.Strength != "" {
			meta = append(meta, "strength="+rec.Strength)
		}
		if rec.Direction != "" {
			meta = append(meta, "direction="+rec.Direction)
		}
		if rec.EvidenceQuality != "" {
			meta = append(meta, "evidence="+rec.EvidenceQuality)
		}
		if rec.Topic != "" {
			meta = append(meta, "topic="+rec.Topic)
		}
		if len(meta) > 0 {
			fmt.Fprintf(w, "    %s\n", strings.Join(meta, "  "))
		}
	}
}
