// Command soulcore is the terminal front end for the Soul Mediation
// Core: a thin cobra consumer that drives the core packages directly and
// renders their output, in the style of the teacher's cmd/echo.go. No
// terminal-formatting or rendering logic lives in internal/ — spec.md §1
// places that outside the core, so it is wired only here.
package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/soulcore/mediator/internal/audit"
	"github.com/soulcore/mediator/internal/soul"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "soulcore",
		Short: "Soul Mediation Core command-line front end",
	}

	rootCmd.AddCommand(
		newDialogueCmd(),
		newInterceptCmd(),
		newServeCmd(),
		newAxiomsCmd(),
		newConstitutionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newEngine() (*soul.Engine, *audit.Log) {
	auditLog := audit.New(1000, nil)
	return soul.NewEngine(nil, auditLog), auditLog
}

func newDialogueCmd() *cobra.Command {
	var modeFlag string
	var budgetFlag string

	cmd := &cobra.Command{
		Use:   "dialogue MESSAGE",
		Short: "Send a message through the dialogue mediator",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, _ := newEngine()

			var modePtr *soul.Mode
			if modeFlag != "" {
				m := soul.Mode(modeFlag)
				modePtr = &m
			}
			budget := soul.BudgetDialogue
			if budgetFlag != "" {
				budget = soul.Budget(budgetFlag)
			}

			out := engine.Dialogue(context.Background(), args[0], modePtr, budget, nil)
			fmt.Printf("[%s] %s\n", out.Mode, out.Response)
			if out.CoordinatesBlock != "" {
				fmt.Println()
				fmt.Println(out.CoordinatesBlock)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&modeFlag, "mode", "", "mode override: reflect|advise|challenge|explore")
	cmd.Flags().StringVar(&budgetFlag, "budget", "", "budget tier: dormant|whisper|dialogue|deep")
	return cmd
}

func newInterceptCmd() *cobra.Command {
	var deep bool
	var reason string
	var severity string

	cmd := &cobra.Command{
		Use:   "intercept PROMPT",
		Short: "Evaluate a proposed operation against governing principles",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, _ := newEngine()
			tok := soul.Token{ID: "cli", Prompt: args[0], Reason: reason, Severity: severity}

			var res soul.InterceptResult
			if deep {
				res = engine.InterceptDeep(context.Background(), tok)
			} else {
				res = engine.Intercept(tok)
			}

			fmt.Printf("recommendation: %s\n", res.Recommendation)
			fmt.Printf("confidence:     %.2f\n", res.Confidence)
			fmt.Printf("principles:     %v\n", res.Principles)
			if res.Reasoning != "" {
				fmt.Printf("reasoning:      %s\n", res.Reasoning)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&deep, "deep", false, "use the generator-backed intercept_deep path")
	cmd.Flags().StringVar(&reason, "reason", "", "stated reason for the operation")
	cmd.Flags().StringVar(&severity, "severity", "", "severity label for the operation")
	return cmd
}

func newServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP/WebSocket front door (soulserver)",
		Long:  "Launches soulserver as a subprocess; run `soulserver` directly for long-lived deployments.",
		RunE: func(cmd *cobra.Command, args []string) error {
			binary, err := exec.LookPath("soulserver")
			if err != nil {
				return fmt.Errorf("soulserver not found on PATH: build and install cmd/soulserver first: %w", err)
			}
			sub := exec.Command(binary, "--host", host, "--port", fmt.Sprint(port))
			sub.Stdout = os.Stdout
			sub.Stderr = os.Stderr
			sub.Stdin = os.Stdin
			return sub.Run()
		},
	}
	cmd.Flags().StringVar(&host, "host", "0.0.0.0", "HTTP server host")
	cmd.Flags().IntVar(&port, "port", 8080, "HTTP server port")
	return cmd
}
