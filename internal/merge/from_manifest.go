package merge

import (
	"errors"
	"fmt"

	"github.com/temirov/allcode/internal/manifest"
)

// ErrManifestUnavailable reports that the manifest required for a merge could not be read.
var ErrManifestUnavailable = errors.New("manifest unavailable")

// RenderFromManifest merges the selection recorded in the store's manifest.
// Unlike Store.Load, a missing, empty or corrupt manifest is an error wrapping
// ErrManifestUnavailable; an empty selection returns ErrNothingToMerge.
func RenderFromManifest(store *manifest.Store, mode Mode) (Result, error) {
	recorded, loadError := store.LoadStrict()
	if loadError != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrManifestUnavailable, loadError)
	}
	if len(recorded.SelectedFiles) == 0 {
		return Result{Empty: true}, ErrNothingToMerge
	}
	return Render(store.ProjectDirectory(), recorded.SelectedFiles, Options{
		Mode:      mode,
		IntroText: recorded.IntroText,
		OutroText: recorded.OutroText,
	})
}
