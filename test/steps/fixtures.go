package steps

import (
	"fmt"
	"os"
	"path/filepath"
)

// SeedFixture reads a binary fixture from test/fixtures and stages it in
// the fake object store under the key the worker's /process body names
// (uploadID + "/source.mp4"), exercising the same download path
// pipeline.Orchestrator.downloadSource uses against a real bucket.
func (s *StepContext) SeedFixture(fixtureName, uploadID string) error {
	data, err := os.ReadFile(filepath.Join("fixtures", fixtureName))
	if err != nil {
		return fmt.Errorf("reading fixture %q (see fixtures/README.md to generate it): %w", fixtureName, err)
	}
	s.ObjectStore.Seed(uploadID+"/source.mp4", data)
	return nil
}
