package curriculum

import (
	"os"
	"path/filepath"
	"sort"
	"time"

	"stepwise/internal/logging"
)

// slowDiscovery is the scan time above which discovery logs a warning.
const slowDiscovery = 250 * time.Millisecond

// Discover scans dir for artifacts and returns them ordered by step.
// Discovery never fails: a missing or unreadable directory yields an empty
// slice. Names that do not follow the convention are skipped silently.
// Artifacts with equal steps keep directory read order (lexical by name).
func Discover(dir string) []Artifact {
	timer := logging.StartTimer(logging.CategoryDiscovery, "Artifact discovery")
	defer timer.StopWithThreshold(slowDiscovery)

	artifacts := []Artifact{}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			logging.DiscoveryDebug("Tests directory %s does not exist", dir)
		} else {
			logging.DiscoveryWarn("Cannot read tests directory %s: %v", dir, err)
		}
		return artifacts
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		absDir = dir
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		a, ok := ParseIdentifier(entry.Name())
		if !ok {
			continue
		}
		a.Path = filepath.Join(absDir, entry.Name())
		artifacts = append(artifacts, a)
	}

	sort.SliceStable(artifacts, func(i, j int) bool {
		return artifacts[i].Step.Less(artifacts[j].Step)
	})

	logging.DiscoveryDebug("Discovered %d artifacts in %s", len(artifacts), dir)
	return artifacts
}
