// Package tree scans a project directory into a pruned tree of selectable text files.
package tree

const (
	// NodeTypeDirectory marks a directory node.
	NodeTypeDirectory = "directory"
	// NodeTypeFile marks a file node.
	NodeTypeFile = "file"
)

// Node is a directory or file in the scanned project tree.
// Directory nodes always contain at least one file somewhere below them.
type Node struct {
	Name         string  `json:"name"`
	RelativePath string  `json:"path"`
	Type         string  `json:"type"`
	Children     []*Node `json:"children,omitempty"`
}

// IsDirectory reports whether the node is a directory.
func (node *Node) IsDirectory() bool {
	return node != nil && node.Type == NodeTypeDirectory
}

// CollectFiles returns the relative paths of every file below nodes in display order.
func CollectFiles(nodes []*Node) []string {
	var filePaths []string
	walkNodes(nodes, func(node *Node) {
		if !node.IsDirectory() {
			filePaths = append(filePaths, node.RelativePath)
		}
	})
	return filePaths
}

// DirectoryPaths returns the relative paths of every directory below nodes in display order.
func DirectoryPaths(nodes []*Node) []string {
	var directoryPaths []string
	walkNodes(nodes, func(node *Node) {
		if node.IsDirectory() {
			directoryPaths = append(directoryPaths, node.RelativePath)
		}
	})
	return directoryPaths
}

func walkNodes(nodes []*Node, visit func(*Node)) {
	for _, node := range nodes {
		if node == nil {
			continue
		}
		visit(node)
		if node.IsDirectory() {
			walkNodes(node.Children, visit)
		}
	}
}
