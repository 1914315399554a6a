package cmd

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"taskgraph/internal/graph"
	"taskgraph/internal/settings"
	"taskgraph/internal/taskstorage"
)

// parseID parses a task id argument.
func parseID(arg string) (int, error) {
	id, err := strconv.Atoi(arg)
	if err != nil || id < 0 {
		return 0, fmt.Errorf("invalid task id %q: must be a non-negative integer", arg)
	}
	return id, nil
}

// parseIDs parses every argument as a task id.
func parseIDs(args []string) ([]int, error) {
	ids := make([]int, 0, len(args))
	for _, arg := range args {
		id, err := parseID(arg)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// parsePair parses two distinct task ids.
func parsePair(a, b string) (int, int, error) {
	first, err := parseID(a)
	if err != nil {
		return 0, 0, err
	}
	second, err := parseID(b)
	if err != nil {
		return 0, 0, err
	}
	return first, second, nil
}

// writeJSON encodes v to the app's output.
func writeJSON(app *App, v any) error {
	return json.NewEncoder(app.Out).Encode(v)
}

// writeTasksJSON encodes tasks as a JSON array, never null.
func writeTasksJSON(app *App, tasks []*taskstorage.Task) error {
	if tasks == nil {
		tasks = []*taskstorage.Task{}
	}
	return writeJSON(app, tasks)
}

// joinInts formats ids as "1, 2, 3".
func joinInts(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ", ")
}

// fullView shows every decoration; used by commands that don't consult
// the display settings.
var fullView = settings.Settings{ShowTags: true, ShowParents: true, ShowBlocked: true, ShowFinished: true}

// statusMark renders a task's state as a checkbox.
func statusMark(state graph.State) string {
	switch state {
	case graph.StateFinished:
		return "[x]"
	case graph.StateDeleted:
		return "[-]"
	}
	return "[ ]"
}

// formatTask renders one task as a list line, decorated per view.
func formatTask(app *App, t *taskstorage.Task, state graph.State, view settings.Settings) string {
	var b strings.Builder
	pin := " "
	if t.Pinned {
		pin = "*"
	}
	fmt.Fprintf(&b, "%s%4d %s %s", pin, t.ID, statusMark(state), t.Description)

	if view.ShowTags && len(t.Tags) > 0 {
		b.WriteString("  #" + strings.Join(t.Tags, " #"))
	}
	if view.ShowParents && t.Parent != nil {
		fmt.Fprintf(&b, "  (subtask of %d)", *t.Parent)
	}

	line := b.String()
	switch {
	case state == graph.StateBlocked && view.ShowBlocked:
		line += "  " + app.WarnColor("[blocked]")
	case state == graph.StateFinished || state == graph.StateDeleted:
		line = app.MutedColor(line)
	}
	return line
}

// printTasks writes one line per task, classifying against the engine's
// current records.
func printTasks(app *App, tasks []*taskstorage.Task, view settings.Settings) {
	states := graph.Classify(app.Engine.Snapshot())
	for _, t := range tasks {
		fmt.Fprintln(app.Out, formatTask(app, t, states[t.ID], view))
	}
}

// plural returns "task" or "tasks" for n.
func plural(n int) string {
	if n == 1 {
		return "task"
	}
	return "tasks"
}
