package tree

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/allcode/internal/ignore"
	"github.com/temirov/allcode/internal/utils"
)

const (
	extensionSeparator = "."
	pathSeparator      = "/"

	errorAbsolutePathFormat = "getting absolute path for %s: %w"
	errorStatRootFormat     = "stat %s: %w"
	errorRootNotDirectory   = "%s is not a directory"

	logMessageUnreadableDirectory = "skipping unreadable directory"
)

// excludedEntryNames are never part of a scanned tree regardless of ignore rules.
var excludedEntryNames = map[string]struct{}{
	utils.MarkerFileName:   {},
	utils.ManifestFileName: {},
}

// Scanner builds pruned trees for a project directory.
type Scanner struct {
	AllowedExtensions []string
	IgnorePatterns    []string
	Logger            *zap.Logger
}

// BuildTree scans rootDirectory and returns its direct children.
// Only files whose extension is allowed are kept, ignored entries are skipped,
// and directories without any kept file below them are omitted.
func BuildTree(rootDirectory string, allowedExtensions []string, ignorePatterns []string) ([]*Node, error) {
	scanner := Scanner{AllowedExtensions: allowedExtensions, IgnorePatterns: ignorePatterns}
	return scanner.Build(rootDirectory)
}

// Build scans rootDirectory using the scanner's configuration.
func (scanner Scanner) Build(rootDirectory string) ([]*Node, error) {
	absoluteRootPath, absolutePathError := filepath.Abs(rootDirectory)
	if absolutePathError != nil {
		return nil, fmt.Errorf(errorAbsolutePathFormat, rootDirectory, absolutePathError)
	}
	rootInformation, statError := os.Stat(absoluteRootPath)
	if statError != nil {
		return nil, fmt.Errorf(errorStatRootFormat, absoluteRootPath, statError)
	}
	if !rootInformation.IsDir() {
		return nil, fmt.Errorf(errorRootNotDirectory, absoluteRootPath)
	}

	return scanner.newWalker(absoluteRootPath).buildNodes(absoluteRootPath, ""), nil
}

// Admits reports whether the tree of rootDirectory would list relativePath as
// a file: no path segment is excluded, ignored or a symbolic link to a
// directory, and the extension is allowed. relativePath uses forward slashes.
func (scanner Scanner) Admits(rootDirectory string, relativePath string) bool {
	absoluteRootPath, absolutePathError := filepath.Abs(rootDirectory)
	if absolutePathError != nil || relativePath == "" {
		return false
	}
	walker := scanner.newWalker(absoluteRootPath)
	segments := strings.Split(relativePath, pathSeparator)
	currentPath := absoluteRootPath
	for index, segment := range segments {
		if _, excluded := excludedEntryNames[segment]; excluded {
			return false
		}
		currentPath = filepath.Join(currentPath, segment)
		isDirectory := index < len(segments)-1
		if walker.matcher.Match(currentPath, isDirectory) {
			return false
		}
		if isDirectory && !isPlainDirectory(currentPath) {
			return false
		}
	}
	return walker.isAllowed(segments[len(segments)-1])
}

func (scanner Scanner) newWalker(absoluteRootPath string) treeWalker {
	return treeWalker{
		rootPath:          absoluteRootPath,
		allowedExtensions: extensionSet(scanner.AllowedExtensions),
		matcher:           ignore.NewMatcher(absoluteRootPath, scanner.IgnorePatterns),
		logger:            utils.LoggerOrNop(scanner.Logger),
	}
}

type treeWalker struct {
	rootPath          string
	allowedExtensions map[string]struct{}
	matcher           *ignore.Matcher
	logger            *zap.Logger
}

// buildNodes returns the kept children of directoryPath. Subdirectories are
// resolved before their node is created, so an empty branch is never built.
func (walker treeWalker) buildNodes(directoryPath string, relativeDirectory string) []*Node {
	directoryEntries, readDirectoryError := os.ReadDir(directoryPath)
	if readDirectoryError != nil {
		walker.logger.Debug(logMessageUnreadableDirectory, zap.String("path", directoryPath), zap.Error(readDirectoryError))
		return nil
	}

	var directoryNodes []*Node
	var fileNodes []*Node
	for _, directoryEntry := range directoryEntries {
		entryName := directoryEntry.Name()
		if _, excluded := excludedEntryNames[entryName]; excluded {
			continue
		}
		childPath := filepath.Join(directoryPath, entryName)
		childRelativePath := path.Join(relativeDirectory, entryName)
		isDirectory := directoryEntry.IsDir()
		if walker.matcher.Match(childPath, isDirectory) {
			continue
		}

		if isDirectory {
			childNodes := walker.buildNodes(childPath, childRelativePath)
			if len(childNodes) == 0 {
				continue
			}
			directoryNodes = append(directoryNodes, &Node{
				Name:         entryName,
				RelativePath: childRelativePath,
				Type:         NodeTypeDirectory,
				Children:     childNodes,
			})
			continue
		}

		// Symbolic links count only when they resolve to a regular file;
		// linked directories are not followed.
		if !directoryEntry.Type().IsRegular() && !isRegularTarget(childPath) {
			continue
		}
		if !walker.isAllowed(entryName) {
			continue
		}
		fileNodes = append(fileNodes, &Node{
			Name:         entryName,
			RelativePath: childRelativePath,
			Type:         NodeTypeFile,
		})
	}

	sortByName(directoryNodes)
	sortByName(fileNodes)
	return append(directoryNodes, fileNodes...)
}

func (walker treeWalker) isAllowed(fileName string) bool {
	_, allowed := walker.allowedExtensions[strings.ToLower(filepath.Ext(fileName))]
	return allowed
}

func isRegularTarget(childPath string) bool {
	targetInformation, statError := os.Stat(childPath)
	return statError == nil && targetInformation.Mode().IsRegular()
}

func isPlainDirectory(directoryPath string) bool {
	directoryInformation, statError := os.Lstat(directoryPath)
	return statError == nil && directoryInformation.IsDir()
}

func sortByName(nodes []*Node) {
	sort.SliceStable(nodes, func(left, right int) bool {
		leftName := strings.ToLower(nodes[left].Name)
		rightName := strings.ToLower(nodes[right].Name)
		if leftName != rightName {
			return leftName < rightName
		}
		return nodes[left].Name < nodes[right].Name
	})
}

// NormalizeExtensions lower-cases extensions, adds a missing leading dot,
// and removes blanks and duplicates.
func NormalizeExtensions(extensions []string) []string {
	normalized := make([]string, 0, len(extensions))
	for _, extension := range extensions {
		trimmedExtension := strings.ToLower(strings.TrimSpace(extension))
		if trimmedExtension == "" || trimmedExtension == extensionSeparator {
			continue
		}
		if !strings.HasPrefix(trimmedExtension, extensionSeparator) {
			trimmedExtension = extensionSeparator + trimmedExtension
		}
		normalized = append(normalized, trimmedExtension)
	}
	return utils.DeduplicatePatterns(normalized)
}

func extensionSet(extensions []string) map[string]struct{} {
	allowed := make(map[string]struct{}, len(extensions))
	for _, extension := range NormalizeExtensions(extensions) {
		allowed[extension] = struct{}{}
	}
	return allowed
}
