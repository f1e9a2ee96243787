package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/felixgeelhaar/mcp-go"
)

// RegisterPrompts registers prompts for common scheduling workflows.
func RegisterPrompts(srv *mcp.Server, deps ToolDependencies) error {
	if srv == nil {
		return fmt.Errorf("server is required")
	}

	srv.Prompt("find_meeting_time").
		Description("Find a time that works for several people. Pass participants as comma-separated user IDs.").
		Handler(func(ctx context.Context, args map[string]string) (*mcp.PromptResult, error) {
			return &mcp.PromptResult{
				Description: "Find a meeting time",
				Messages: []mcp.PromptMessage{
					{
						Role: string(mcp.RoleUser),
						Content: mcp.TextContent{
							Type: "text",
							Text: findMeetingTimeText(args["participants"], args["duration_minutes"]),
						},
					},
				},
			}, nil
		})

	srv.Prompt("conflict_review").
		Description("Walk through overlapping events found during sync.").
		Handler(func(ctx context.Context, args map[string]string) (*mcp.PromptResult, error) {
			return &mcp.PromptResult{
				Description: "Conflict review",
				Messages: []mcp.PromptMessage{
					{
						Role: string(mcp.RoleUser),
						Content: mcp.TextContent{
							Type: "text",
							Text: `Help me clean up my calendar overlaps. Please:

1. Run calendar.sync so the local store is current
2. Read the rendezvous://conflicts resource
3. For each conflict, tell me which two events overlap and suggest which one to move

Nothing is changed on my providers automatically. Once I have dealt with a
conflict, mark it with conflicts.resolve.`,
						},
					},
				},
			}, nil
		})

	return nil
}

func findMeetingTimeText(participants, duration string) string {
	var b strings.Builder
	b.WriteString("Find a meeting time")
	if participants != "" {
		fmt.Fprintf(&b, " for %s", participants)
	}
	if duration != "" {
		fmt.Fprintf(&b, " lasting %s minutes", duration)
	}
	b.WriteString(`. Please:

1. Run calendar.sync so my events are current
2. Call availability.mutual with the participants' user IDs for the next 7 days
3. Propose the three earliest slots that are long enough

If no slot fits, widen the range with the days argument before giving up.`)
	return b.String()
}
