package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"gyeol/pkg/gyeol"
)

func newProgressCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "progress AGENT_ID",
		Short: "Show progress toward the next generation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withClient(cmd.Context(), func(c *gyeol.Client) error {
				status, err := c.Progress(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return a.render(status, func(w io.Writer) { writeStatus(w, status) })
			})
		},
	}
}

func newEvolveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "evolve AGENT_ID",
		Short: "Advance an agent one generation when every condition is met",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withClient(cmd.Context(), func(c *gyeol.Client) error {
				resp, err := c.Evolve(cmd.Context(), gyeol.EvolveRequest{AgentID: args[0]})
				if err != nil {
					return err
				}
				return a.render(resp, func(w io.Writer) {
					fmt.Fprintln(w, resp.Message)
					writeRejection(w, resp.Rejection)
					if !resp.Evolved {
						writeStatus(w, resp.Status)
					}
				})
			})
		},
	}
}
