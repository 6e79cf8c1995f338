// Package output renders trees and selection status as raw text, JSON or XML.
package output

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/temirov/allcode/internal/tree"
)

const (
	// FormatRaw selects the plain text rendering.
	FormatRaw = "raw"
	// FormatJSON selects indented JSON.
	FormatJSON = "json"
	// FormatXML selects indented XML with a header.
	FormatXML = "xml"

	indentPrefix = ""
	indentSpacer = "  "
	xmlHeader    = xml.Header

	invalidFormatMessage = "invalid format value '%s'"
)

// ParseFormat normalizes a --format value.
func ParseFormat(value string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case "", FormatRaw:
		return FormatRaw, nil
	case FormatJSON, FormatXML:
		return normalized, nil
	default:
		return "", fmt.Errorf(invalidFormatMessage, value)
	}
}

// TreeNode is the structured form of a tree node.
type TreeNode struct {
	XMLName  xml.Name    `json:"-" xml:"node"`
	Path     string      `json:"path" xml:"path,attr"`
	Name     string      `json:"name" xml:"name,attr"`
	Type     string      `json:"type" xml:"type,attr"`
	Position int         `json:"position,omitempty" xml:"position,attr,omitempty"`
	Children []*TreeNode `json:"children,omitempty" xml:"node,omitempty"`
}

// Status is the structured form of a project's selection state.
type Status struct {
	XMLName             xml.Name `json:"-" xml:"status"`
	Project             string   `json:"project" xml:"project"`
	SelectedFiles       []string `json:"selectedFiles" xml:"selectedFiles>file"`
	ExpandedDirectories []string `json:"expandedDirectories" xml:"expandedDirectories>directory"`
	TotalTokens         int      `json:"totalTokens" xml:"totalTokens"`
	Model               string   `json:"model" xml:"model"`
	IntroText           string   `json:"introText,omitempty" xml:"introText,omitempty"`
	OutroText           string   `json:"outroText,omitempty" xml:"outroText,omitempty"`
}

// BuildTree converts scanned nodes, attaching 1-based merge positions from selected.
func BuildTree(nodes []*tree.Node, selected map[string]int) []*TreeNode {
	converted := make([]*TreeNode, 0, len(nodes))
	for _, node := range nodes {
		outputNode := &TreeNode{
			Path:     node.RelativePath,
			Name:     node.Name,
			Type:     node.Type,
			Position: selected[node.RelativePath],
		}
		if node.IsDirectory() {
			outputNode.Children = BuildTree(node.Children, selected)
		}
		converted = append(converted, outputNode)
	}
	return converted
}

// RenderTree writes nodes in the requested format.
func RenderTree(writer io.Writer, format string, nodes []*tree.Node, options tree.RenderOptions) error {
	switch format {
	case FormatJSON:
		return writeJSON(writer, BuildTree(nodes, options.Selected))
	case FormatXML:
		wrapper := struct {
			XMLName xml.Name    `xml:"tree"`
			Nodes   []*TreeNode `xml:"node"`
		}{Nodes: BuildTree(nodes, options.Selected)}
		return writeXML(writer, wrapper)
	default:
		return tree.Render(writer, nodes, options)
	}
}

// RenderStatus writes status as JSON or XML. Raw status is written by the caller.
func RenderStatus(writer io.Writer, format string, status Status) error {
	if status.SelectedFiles == nil {
		status.SelectedFiles = []string{}
	}
	if status.ExpandedDirectories == nil {
		status.ExpandedDirectories = []string{}
	}
	switch format {
	case FormatJSON:
		return writeJSON(writer, status)
	case FormatXML:
		return writeXML(writer, status)
	default:
		return fmt.Errorf(invalidFormatMessage, format)
	}
}

func writeJSON(writer io.Writer, value any) error {
	encoded, jsonEncodeError := json.MarshalIndent(value, indentPrefix, indentSpacer)
	if jsonEncodeError != nil {
		return jsonEncodeError
	}
	_, writeError := fmt.Fprintln(writer, string(encoded))
	return writeError
}

func writeXML(writer io.Writer, value any) error {
	encoded, xmlMarshalError := xml.MarshalIndent(value, indentPrefix, indentSpacer)
	if xmlMarshalError != nil {
		return xmlMarshalError
	}
	_, writeError := fmt.Fprintln(writer, xmlHeader+string(encoded))
	return writeError
}
