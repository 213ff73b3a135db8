package ai

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// heuristicRefiner produces a deterministic suggestion from the frequency
// map alone. It keeps the refinement endpoint usable in development and
// tests where no OpenAI API key is configured.
type heuristicRefiner struct{}

func (heuristicRefiner) RefineSplit(_ context.Context, req RefinementRequest) (Refinement, error) {
	least, most := frequencyExtremes(req.FrequencyMap)

	var changes []Change
	var notes strings.Builder
	notes.WriteString("## Suggested adjustments\n\n")

	if least != "" && req.FrequencyMap[least] <= 1 {
		changes = append(changes, Change{
			Action: "add_muscle",
			Target: least,
			Detail: fmt.Sprintf("%s is trained %d time(s) per cycle, consider a second session", least, req.FrequencyMap[least]),
		})
		fmt.Fprintf(&notes, "- Add a second **%s** session to balance weekly frequency.\n", least)
	}
	if most != "" && most != least && req.FrequencyMap[most] >= 3 {
		changes = append(changes, Change{
			Action: "adjust_volume",
			Target: most,
			Detail: fmt.Sprintf("%s appears in %d sessions, watch recovery", most, req.FrequencyMap[most]),
		})
		fmt.Fprintf(&notes, "- **%s** shows up in %d sessions, keep per-session volume moderate.\n", most, req.FrequencyMap[most])
	}
	if len(changes) == 0 {
		notes.WriteString("- The split looks balanced, no structural changes suggested.\n")
	}
	fmt.Fprintf(&notes, "\nInstruction noted: %s\n", req.Instruction)

	return Refinement{
		Summary:       fmt.Sprintf("Reviewed %d-day %s split", req.CycleDays, req.SplitType),
		NotesMarkdown: notes.String(),
		Changes:       changes,
	}, nil
}

// frequencyExtremes returns the least and most trained muscles, breaking
// ties alphabetically so the output is stable.
func frequencyExtremes(frequency map[string]int) (least, most string) {
	muscles := make([]string, 0, len(frequency))
	for muscle := range frequency {
		muscles = append(muscles, muscle)
	}
	sort.Strings(muscles)

	for _, muscle := range muscles {
		if least == "" || frequency[muscle] < frequency[least] {
			least = muscle
		}
		if most == "" || frequency[muscle] > frequency[most] {
			most = muscle
		}
	}
	return least, most
}
