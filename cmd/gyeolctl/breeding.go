package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"gyeol/pkg/gyeol"
)

func newCompatCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compat",
		Short: "Manage pair compatibility scores",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "set AGENT_A AGENT_B SCORE",
		Short: "Record the compatibility of an unordered pair (0..100)",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			score, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("invalid score %q: %w", args[2], err)
			}
			return a.withClient(cmd.Context(), func(c *gyeol.Client) error {
				req := gyeol.CompatibilityRequest{AgentAID: args[0], AgentBID: args[1], Score: score}
				if err := c.SetCompatibility(cmd.Context(), req); err != nil {
					return err
				}
				return a.render(req, func(w io.Writer) {
					fmt.Fprintf(w, "compatibility %s+%s=%d\n", req.AgentAID, req.AgentBID, req.Score)
				})
			})
		},
	})
	return cmd
}

func newEligibilityCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "eligibility AGENT_A AGENT_B",
		Short: "Preview whether a pair may breed now",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withClient(cmd.Context(), func(c *gyeol.Client) error {
				verdict, err := c.Eligibility(cmd.Context(), gyeol.EligibilityRequest{AgentAID: args[0], AgentBID: args[1]})
				if err != nil {
					return err
				}
				return a.render(verdict, func(w io.Writer) {
					fmt.Fprintf(w, "eligible=%t reason=%q\n", verdict.Eligible, verdict.Reason)
					writeRejection(w, verdict.Rejection)
				})
			})
		},
	}
}

func newBreedCmd(a *app) *cobra.Command {
	var owner string
	cmd := &cobra.Command{
		Use:   "breed AGENT_A AGENT_B",
		Short: "Attempt to breed two agents",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withClient(cmd.Context(), func(c *gyeol.Client) error {
				resp, err := c.Breed(cmd.Context(), gyeol.BreedRequest{AgentAID: args[0], AgentBID: args[1], OwnerID: owner})
				if err != nil {
					return err
				}
				return a.render(resp, func(w io.Writer) {
					fmt.Fprintln(w, resp.Message)
					writeRejection(w, resp.Rejection)
					if resp.Child != nil {
						fmt.Fprintf(w, "  dominant=%s\n", resp.DominantParent)
						writeAgent(w, *resp.Child)
					}
				})
			})
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "owner of the child; defaults to the first parent's owner")
	return cmd
}

func newAttemptsCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "attempts AGENT_ID",
		Short: "List breeding attempts naming an agent, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withClient(cmd.Context(), func(c *gyeol.Client) error {
				attempts, err := c.Attempts(cmd.Context(), args[0], limit)
				if err != nil {
					return err
				}
				if attempts == nil {
					attempts = []gyeol.BreedingAttempt{}
				}
				return a.render(attempts, func(w io.Writer) {
					for _, attempt := range attempts {
						writeAttempt(w, attempt)
					}
				})
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "max attempts to show; 0 for all")
	return cmd
}
