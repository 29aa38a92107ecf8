package harness

import (
	"sort"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// RunWithGolden executes a scenario and compares the final output tree
// against golden files under testdata/golden/<scenario-name>/, one golden
// file per artifact (path separators become underscores).
//
// Regenerate with:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) *Result {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		t.Fatalf("scenario %s: %v", scenario.Name, err)
	}
	for _, failure := range result.Failures {
		t.Errorf("scenario %s: %s", scenario.Name, failure)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden/"+scenario.Name),
		goldie.WithNameSuffix(".golden"),
	)
	for _, rel := range sortedArtifactPaths(result.Artifacts) {
		g.Assert(t, goldenName(rel), result.Artifacts[rel])
	}
	return result
}

func sortedArtifactPaths(artifacts map[string][]byte) []string {
	paths := make([]string, 0, len(artifacts))
	for p := range artifacts {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// goldenName flattens an artifact path into a single golden file name.
func goldenName(rel string) string {
	out := make([]byte, len(rel))
	for i := 0; i < len(rel); i++ {
		if rel[i] == '/' {
			out[i] = '_'
		} else {
			out[i] = rel[i]
		}
	}
	return string(out)
}
