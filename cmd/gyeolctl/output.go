package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"gyeol/pkg/gyeol"
)

// render writes v in the selected format. text is used for the text format.
func (a *app) render(v any, text func(io.Writer)) error {
	switch a.output {
	case outputJSON:
		enc := json.NewEncoder(a.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case outputYAML:
		// route through JSON so field names follow the json tags
		raw, err := json.Marshal(v)
		if err != nil {
			return err
		}
		var generic any
		if err := json.Unmarshal(raw, &generic); err != nil {
			return err
		}
		enc := yaml.NewEncoder(a.stdout)
		enc.SetIndent(2)
		if err := enc.Encode(generic); err != nil {
			return err
		}
		return enc.Close()
	default:
		text(a.stdout)
		return nil
	}
}

func writeAgent(w io.Writer, agent gyeol.Agent) {
	t := agent.Traits
	fmt.Fprintf(w, "id=%s name=%s generation=%d mood=%s progress=%d%%\n",
		agent.ID, agent.Name, agent.Generation, agent.Mood, agent.EvolutionProgress)
	fmt.Fprintf(w, "  traits warmth=%d logic=%d creativity=%d energy=%d humor=%d\n",
		t.Warmth, t.Logic, t.Creativity, t.Energy, t.Humor)
	c := agent.Counters
	fmt.Fprintf(w, "  counters conversations=%d unique_topics=%d memories=%d intimacy=%d consecutive_days=%d\n",
		c.Conversations, c.UniqueTopics, c.Memories, c.Intimacy, c.ConsecutiveDays)
	fmt.Fprintf(w, "  visual form=%s colors=%s/%s glow=%.2f particles=%d\n",
		agent.Visual.Form, agent.Visual.ColorPrimary, agent.Visual.ColorSecondary,
		agent.Visual.GlowIntensity, agent.Visual.ParticleCount)
}

func writeStatus(w io.Writer, status gyeol.ProgressStatus) {
	if status.Terminal {
		fmt.Fprintf(w, "generation=%d terminal\n", status.CurrentGeneration)
		return
	}
	fmt.Fprintf(w, "generation=%d target=%d met=%d/%d overall=%d%%\n",
		status.CurrentGeneration, status.TargetGeneration, status.MetCount, len(status.Conditions), status.OverallPercent)
	for _, cond := range status.Conditions {
		mark := " "
		if cond.Met {
			mark = "x"
		}
		fmt.Fprintf(w, "  [%s] %s %d/%d\n", mark, cond.Label, cond.Current, cond.Required)
	}
}

func writeRejection(w io.Writer, r *gyeol.Rejection) {
	if r == nil {
		return
	}
	line := fmt.Sprintf("  rejection=%s", r.Code)
	if r.RemainingHours > 0 {
		line += fmt.Sprintf(" remaining_hours=%d", r.RemainingHours)
	}
	fmt.Fprintln(w, line)
}

func writeAttempt(w io.Writer, attempt gyeol.BreedingAttempt) {
	parts := []string{
		attempt.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		"id=" + attempt.ID,
		"parents=" + attempt.ParentAID + "+" + attempt.ParentBID,
		fmt.Sprintf("success=%t", attempt.Success),
		fmt.Sprintf("roll=%d", attempt.RolledValue),
	}
	if attempt.ChildID != nil {
		parts = append(parts, "child="+*attempt.ChildID)
	}
	if attempt.MutatedTrait != nil {
		parts = append(parts, "mutation="+*attempt.MutatedTrait)
	}
	fmt.Fprintln(w, strings.Join(parts, " "))
}
