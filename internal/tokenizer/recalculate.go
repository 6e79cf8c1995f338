package tokenizer

import (
	"errors"
	"path/filepath"

	"github.com/zeebo/xxh3"
	"go.uber.org/zap"

	"github.com/temirov/allcode/internal/manifest"
	"github.com/temirov/allcode/internal/merge"
	"github.com/temirov/allcode/internal/utils"
)

// UnknownTokenCount is returned when a count cannot be produced.
const UnknownTokenCount = manifest.UnknownTokens

const logMessageRecountFailed = "token recount failed"

// Recalculator recomputes token counts for ordered selections. Per-file
// counts are cached by a hash of the rendered block, so repeated recounts only
// tokenize files whose content changed. A Recalculator is not safe for
// concurrent use.
type Recalculator struct {
	counter Counter
	logger  *zap.Logger
	cache   map[uint64]int
}

// NewRecalculator constructs a Recalculator around counter.
func NewRecalculator(counter Counter, logger *zap.Logger) *Recalculator {
	return &Recalculator{
		counter: counter,
		logger:  utils.LoggerOrNop(logger),
		cache:   make(map[uint64]int),
	}
}

// Counter returns the underlying counter.
func (recalculator *Recalculator) Counter() Counter {
	return recalculator.counter
}

// Recalculate returns the token count of the merge blocks for orderedPaths.
// Paths that Render would skip contribute nothing; a read or count failure
// yields UnknownTokenCount.
func (recalculator *Recalculator) Recalculate(projectRoot string, orderedPaths []string) int {
	if recalculator == nil || recalculator.counter == nil {
		return UnknownTokenCount
	}
	absoluteRoot, rootError := filepath.Abs(projectRoot)
	if rootError != nil {
		recalculator.logger.Debug(logMessageRecountFailed, zap.String("root", projectRoot), zap.Error(rootError))
		return UnknownTokenCount
	}

	nextCache := make(map[uint64]int, len(orderedPaths))
	totalTokens := 0
	for _, relativePath := range orderedPaths {
		block, loadError := merge.LoadBlock(absoluteRoot, relativePath)
		if errors.Is(loadError, merge.ErrNotRegularFile) || errors.Is(loadError, merge.ErrBinaryFile) {
			continue
		}
		if loadError != nil {
			recalculator.logger.Debug(logMessageRecountFailed, zap.String("path", relativePath), zap.Error(loadError))
			return UnknownTokenCount
		}
		renderedBlock := merge.FormatBlock(block.RelativePath, block.Content)
		blockKey := xxh3.HashString(renderedBlock)
		blockTokens, cached := recalculator.cache[blockKey]
		if !cached {
			counted, countError := CountBytes(recalculator.counter, []byte(renderedBlock))
			if countError != nil || counted.Tokens < 0 {
				recalculator.logger.Debug(logMessageRecountFailed, zap.String("path", relativePath), zap.Error(countError))
				return UnknownTokenCount
			}
			if !counted.Counted {
				continue
			}
			blockTokens = counted.Tokens
		}
		nextCache[blockKey] = blockTokens
		totalTokens += blockTokens
	}
	recalculator.cache = nextCache
	return totalTokens
}

// Recalculate counts orderedPaths with a one-off Recalculator.
func Recalculate(counter Counter, projectRoot string, orderedPaths []string) int {
	return NewRecalculator(counter, nil).Recalculate(projectRoot, orderedPaths)
}
