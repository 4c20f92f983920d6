package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"gyeol/pkg/gyeol"
)

func newAgentCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Create and inspect agents",
	}
	cmd.AddCommand(
		newAgentCreateCmd(a),
		newAgentShowCmd(a),
		newAgentListCmd(a),
		newAgentCountersCmd(a),
	)
	return cmd
}

func newAgentCreateCmd(a *app) *cobra.Command {
	var name, owner string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a generation 1 agent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withClient(cmd.Context(), func(c *gyeol.Client) error {
				agent, err := c.CreateAgent(cmd.Context(), gyeol.CreateAgentRequest{Name: name, OwnerID: owner})
				if err != nil {
					return err
				}
				return a.render(agent, func(w io.Writer) { writeAgent(w, agent) })
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "agent name")
	cmd.Flags().StringVar(&owner, "owner", "", "owner id")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newAgentShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show AGENT_ID",
		Short: "Show one agent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withClient(cmd.Context(), func(c *gyeol.Client) error {
				agent, err := c.GetAgent(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return a.render(agent, func(w io.Writer) { writeAgent(w, agent) })
			})
		},
	}
}

func newAgentListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List agents in creation order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withClient(cmd.Context(), func(c *gyeol.Client) error {
				agents, err := c.ListAgents(cmd.Context())
				if err != nil {
					return err
				}
				if agents == nil {
					agents = []gyeol.Agent{}
				}
				return a.render(agents, func(w io.Writer) {
					for _, agent := range agents {
						fmt.Fprintf(w, "%s\t%s\tgen=%d\n", agent.ID, agent.Name, agent.Generation)
					}
				})
			})
		},
	}
}

// newAgentCountersCmd updates only the counters whose flags are set; the
// others keep their stored values.
func newAgentCountersCmd(a *app) *cobra.Command {
	var next gyeol.ProgressionCounters
	cmd := &cobra.Command{
		Use:   "counters AGENT_ID",
		Short: "Record progression counters for an agent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withClient(cmd.Context(), func(c *gyeol.Client) error {
				current, err := c.GetAgent(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				counters := current.Counters
				flags := cmd.Flags()
				if flags.Changed("conversations") {
					counters.Conversations = next.Conversations
				}
				if flags.Changed("unique-topics") {
					counters.UniqueTopics = next.UniqueTopics
				}
				if flags.Changed("memories") {
					counters.Memories = next.Memories
				}
				if flags.Changed("intimacy") {
					counters.Intimacy = next.Intimacy
				}
				if flags.Changed("consecutive-days") {
					counters.ConsecutiveDays = next.ConsecutiveDays
				}

				agent, err := c.RecordCounters(cmd.Context(), gyeol.CountersRequest{AgentID: args[0], Counters: counters})
				if err != nil {
					return err
				}
				return a.render(agent, func(w io.Writer) { writeAgent(w, agent) })
			})
		},
	}
	cmd.Flags().IntVar(&next.Conversations, "conversations", 0, "total conversations")
	cmd.Flags().IntVar(&next.UniqueTopics, "unique-topics", 0, "distinct topics discussed")
	cmd.Flags().IntVar(&next.Memories, "memories", 0, "stored memories")
	cmd.Flags().IntVar(&next.Intimacy, "intimacy", 0, "intimacy level 0..100")
	cmd.Flags().IntVar(&next.ConsecutiveDays, "consecutive-days", 0, "current daily streak")
	return cmd
}
