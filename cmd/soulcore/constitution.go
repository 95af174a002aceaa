package main

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/soulcore/mediator/internal/constitution"
	"github.com/soulcore/mediator/internal/distance"
	"github.com/soulcore/mediator/internal/fixedpoint"
	"github.com/soulcore/mediator/internal/loss"
)

func newConstitutionCmd() *cobra.Command {
	constCmd := &cobra.Command{
		Use:   "constitution",
		Short: "Manage the live axiom registry and contradiction ledger",
	}
	constCmd.AddCommand(newConstitutionShowCmd())
	constCmd.AddCommand(newConstitutionAddCmd())
	return constCmd
}

func newConstitutionFromFile(path string) (*constitution.Constitution, error) {
	computer := loss.NewComputer(nil, &distance.Canonical{}, nil)
	detector := fixedpoint.New(computer, nil)
	c := constitution.New(computer, detector)

	if path == "" {
		return c, nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, fmt.Errorf("opening axiom seed file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		if _, err := c.Add(context.Background(), line, true); err != nil {
			return nil, fmt.Errorf("seeding axiom %q: %w", line, err)
		}
	}
	return c, scanner.Err()
}

func newConstitutionShowCmd() *cobra.Command {
	var seedFile string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the active axiom set and any detected contradictions",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newConstitutionFromFile(seedFile)
			if err != nil {
				return err
			}

			fmt.Println("Active axioms:")
			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"id", "content", "initial loss", "status"})
			for _, a := range c.ActiveAxioms() {
				table.Append([]string{a.ID, a.Content, fmt.Sprintf("%.3f", a.InitialLoss), string(a.Status)})
			}
			table.Render()

			contradictions := c.Contradictions()
			if len(contradictions) > 0 {
				fmt.Println("\nContradictions:")
				ctable := tablewriter.NewWriter(os.Stdout)
				ctable.SetHeader([]string{"a", "b", "strength", "severity", "resolved"})
				for _, ct := range contradictions {
					ctable.Append([]string{
						ct.AxiomA, ct.AxiomB,
						fmt.Sprintf("%.3f", ct.Strength),
						string(ct.Severity),
						fmt.Sprintf("%t", ct.Resolved),
					})
				}
				ctable.Render()
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&seedFile, "seed", "", "file of axiom statements (one per line) to seed the registry before showing it")
	return cmd
}

func newConstitutionAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add CONTENT",
		Short: "Validate and add a single axiom against an empty registry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newConstitutionFromFile("")
			if err != nil {
				return err
			}
			res, err := c.Add(context.Background(), args[0], false)
			if err != nil {
				return err
			}
			if !res.Added {
				fmt.Printf("rejected: %s\n", res.Reason)
				return nil
			}
			fmt.Printf("added axiom %s (initial loss %.3f)\n", res.Axiom.ID, res.Axiom.InitialLoss)
			return nil
		},
	}
	return cmd
}
