package tree

import (
	"fmt"
	"io"
)

const (
	branchConnector     = "├── "
	lastBranchConnector = "└── "
	branchIndent        = "│   "
	lastBranchIndent    = "    "
	selectedMarker      = "[x] "
	unselectedMarker    = "[ ] "
	collapsedSuffix     = "/ …"
	directorySuffix     = "/"
)

// RenderOptions controls how a tree is printed.
type RenderOptions struct {
	// Selected maps file paths to their 1-based merge position.
	Selected map[string]int
	// Expanded lists expanded directories; consulted only when HonorExpansion is set.
	Expanded       map[string]struct{}
	HonorExpansion bool
}

// Render writes nodes as an indented ASCII tree.
func Render(writer io.Writer, nodes []*Node, options RenderOptions) error {
	return renderLevel(writer, nodes, "", options)
}

func renderLevel(writer io.Writer, nodes []*Node, prefix string, options RenderOptions) error {
	for nodeIndex, node := range nodes {
		connector := branchConnector
		childPrefix := prefix + branchIndent
		if nodeIndex == len(nodes)-1 {
			connector = lastBranchConnector
			childPrefix = prefix + lastBranchIndent
		}

		if node.IsDirectory() {
			_, expanded := options.Expanded[node.RelativePath]
			if options.HonorExpansion && !expanded {
				if _, writeError := fmt.Fprintf(writer, "%s%s%s%s\n", prefix, connector, node.Name, collapsedSuffix); writeError != nil {
					return writeError
				}
				continue
			}
			if _, writeError := fmt.Fprintf(writer, "%s%s%s%s\n", prefix, connector, node.Name, directorySuffix); writeError != nil {
				return writeError
			}
			if renderError := renderLevel(writer, node.Children, childPrefix, options); renderError != nil {
				return renderError
			}
			continue
		}

		marker := unselectedMarker
		position, selected := options.Selected[node.RelativePath]
		if selected {
			marker = selectedMarker
		}
		line := fmt.Sprintf("%s%s%s%s", prefix, connector, marker, node.Name)
		if selected {
			line = fmt.Sprintf("%s (#%d)", line, position)
		}
		if _, writeError := fmt.Fprintln(writer, line); writeError != nil {
			return writeError
		}
	}
	return nil
}
