package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/soulcore/mediator/internal/axioms"
	"github.com/soulcore/mediator/internal/distance"
	"github.com/soulcore/mediator/internal/fixedpoint"
	"github.com/soulcore/mediator/internal/loss"
)

func newAxiomsCmd() *cobra.Command {
	axiomsCmd := &cobra.Command{
		Use:   "axioms",
		Short: "Axiom discovery over a corpus of recorded text",
	}
	axiomsCmd.AddCommand(newAxiomsDiscoverCmd())
	return axiomsCmd
}

func newAxiomsDiscoverCmd() *cobra.Command {
	var minOccurrences int
	var maxCandidates int

	cmd := &cobra.Command{
		Use:   "discover FILE",
		Short: "Mine, cluster, and fixed-point-validate axiom candidates from a text corpus (one record per line)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			texts, err := readLines(args[0])
			if err != nil {
				return err
			}

			computer := loss.NewComputer(nil, &distance.Canonical{}, nil)
			detector := fixedpoint.New(computer, nil)

			report, err := axioms.DiscoverFromText(context.Background(), detector, texts, minOccurrences, maxCandidates)
			if err != nil {
				return err
			}

			fmt.Printf("records processed: %d, patterns mined: %d, duration: %s\n\n",
				report.RecordsProcessed, report.PatternCount, report.Duration)

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"phrase", "occurrences", "initial loss", "stability", "confidence"})
			for _, c := range report.Candidates {
				table.Append([]string{
					c.Phrase,
					strconv.Itoa(c.Occurrences),
					fmt.Sprintf("%.3f", c.InitialLoss),
					fmt.Sprintf("%.3f", c.Stability),
					fmt.Sprintf("%.3f", c.Confidence),
				})
			}
			table.Render()
			return nil
		},
	}
	cmd.Flags().IntVar(&minOccurrences, "min-occurrences", axioms.DefaultMinOccurrences, "minimum occurrences for a candidate phrase")
	cmd.Flags().IntVar(&maxCandidates, "max-candidates", axioms.DefaultMaxCandidates, "maximum candidates to report")
	return cmd
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening corpus file: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading corpus file: %w", err)
	}
	return lines, nil
}
