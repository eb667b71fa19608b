package planner

import (
	"strconv"
	"strings"
)

// detectCycles runs a DFS over the dependency graph (edges: step id -> ids
// it depends on) using an explicit path stack; any back edge into the
// current path yields a cycle. Ported from the original planner's
// _detect_cycles, iterated in a caller-supplied deterministic node order.
func detectCycles(order []string, dependsOn map[string][]string) [][]string {
	var cycles [][]string

	visited := map[string]bool{}

	var path []string
	inPath := map[string]bool{}

	var dfs func(node string)

	dfs = func(node string) {
		if inPath[node] {
			start := indexOfString(path, node)
			cycle := append(append([]string{}, path[start:]...), node)
			cycles = append(cycles, cycle)

			return
		}

		if visited[node] {
			return
		}

		visited[node] = true
		path = append(path, node)
		inPath[node] = true

		for _, dep := range dependsOn[node] {
			dfs(dep)
		}

		path = path[:len(path)-1]
		inPath[node] = false
	}

	for _, node := range order {
		if !visited[node] {
			dfs(node)
		}
	}

	return cycles
}

func indexOfString(s []string, v string) int {
	for i, x := range s {
		if x == v {
			return i
		}
	}

	return -1
}

// formatCycles renders cycles in the human-readable form from spec §4.3's
// E2E-3 scenario, ported from the original planner's _format_cycle_error.
func formatCycles(cycles [][]string) string {
	lines := make([]string, 0, len(cycles))

	for i, cycle := range cycles {
		parts := make([]string, 0, len(cycle))

		for _, id := range cycle {
			parts = append(parts, readableStepID(id))
		}

		lines = append(lines, "Cycle "+strconv.Itoa(i+1)+": "+strings.Join(parts, " → "))
	}

	return strings.Join(lines, "\n")
}

func readableStepID(id string) string {
	switch {
	case strings.HasPrefix(id, "transform_"):
		return "CREATE TABLE " + id[len("transform_"):]
	case strings.HasPrefix(id, "load_"):
		return "LOAD " + id[len("load_"):]
	case strings.HasPrefix(id, "source_"):
		return "SOURCE " + id[len("source_"):]
	case strings.HasPrefix(id, "export_"):
		parts := strings.SplitN(id, "_", 3)
		if len(parts) > 2 {
			return "EXPORT " + parts[2] + " to " + parts[1]
		}

		return id
	default:
		return id
	}
}
