package conductor

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"

	"github.com/kiosk404/conductor/internal/conductor/service/agents/domain/entity"
	"github.com/kiosk404/conductor/pkg/utils/json"
)

var (
	arrow  = color.CyanString("==>")
	okMark = color.GreenString("✓")
	bad    = color.RedString("✗")
)

// progressPrinter reports agent switches and tool calls while a run is in
// progress.
func progressPrinter(out io.Writer) entity.EventSink {
	return func(ev *entity.RunEvent) {
		switch ev.Type {
		case entity.EventAgentActive:
			fmt.Fprintf(out, "%s %s is working\n", arrow, color.New(color.Bold).Sprint(ev.Agent))
		case entity.EventToolCallEnd:
			mark := okMark
			if ev.ToolResult != nil && ev.ToolResult.Error != "" {
				mark = bad
			}
			fmt.Fprintf(out, "    %s %s\n", mark, ev.ToolCall.Name)
		case entity.EventOutputRejected:
			fmt.Fprintf(out, "    %s answer rejected: %s\n", color.YellowString("!"), ev.Error)
		}
	}
}

func printResult(out io.Writer, res *entity.RunResult) {
	fmt.Fprintln(out)
	if res.Succeeded() {
		fmt.Fprintf(out, "%s %s by %s\n", okMark, color.GreenString(string(res.Status)), res.LastAgent)
	} else {
		fmt.Fprintf(out, "%s %s", bad, color.RedString(string(res.Status)))
		if res.Error != nil {
			fmt.Fprintf(out, " [%s] %s", res.Error.Kind, res.Error.Message)
		}
		fmt.Fprintln(out)
	}

	table := uitable.New()
	table.MaxColWidth = 80
	table.Wrap = true
	if res.RunID != "" {
		table.AddRow("RUN", res.RunID)
	}
	table.AddRow("TURNS", res.Turns)
	table.AddRow("HAND-OFFS", res.HandoffCount)
	table.AddRow("TOOL CALLS", res.ToolCallCount)
	if res.Usage != nil {
		table.AddRow("TOKENS", fmt.Sprintf("%d (in %d, out %d)", res.Usage.TotalTokens, res.Usage.PromptTokens, res.Usage.CompletionTokens))
	}
	if t := res.Trace; t != nil {
		table.AddRow("TRACE", fmt.Sprintf("%s %s", t.Name, t.TraceID))
		table.AddRow("DURATION", t.Duration.Round(time.Millisecond))
		if len(t.Handoffs) > 0 {
			path := []string{t.Handoffs[0].From}
			for _, h := range t.Handoffs {
				path = append(path, h.To)
			}
			table.AddRow("PATH", strings.Join(path, " -> "))
		}
	}
	fmt.Fprintln(out, table)

	switch {
	case res.FinalOutput != nil:
		data, err := json.MarshalIndent(res.FinalOutput, "", "  ")
		if err != nil {
			fmt.Fprintln(out, res.RawOutput)
			return
		}
		fmt.Fprintf(out, "\n%s\n", data)
	case res.RawOutput != "":
		fmt.Fprintf(out, "\n%s\n", res.RawOutput)
	}
}

// printJSON writes the whole result, history included.
func printJSON(out io.Writer, res *entity.RunResult) error {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}
