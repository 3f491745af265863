package memory

import (
	"context"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/cucumber/godog"
	"github.com/google/uuid"
	"github.com/twohreichel/pisovereign/internal/core"
	"github.com/twohreichel/pisovereign/internal/providers/embedding"
	"github.com/twohreichel/pisovereign/internal/providers/encryption"
	"github.com/twohreichel/pisovereign/internal/storage/inmem"
)

// TestFeatures runs the Gherkin scenarios under features/.
func TestFeatures(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping acceptance tests in short mode")
	}

	suite := godog.TestSuite{
		ScenarioInitializer: initializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			TestingT: t,
			Tags:     "~@wip",
		},
	}

	if suite.Run() != 0 {
		t.Fatal("acceptance tests failed")
	}
}

type scenario struct {
	ctx      context.Context
	user     uuid.UUID
	store    *inmem.Store
	service  *Service
	recalled []core.SimilarMemory
	deleted  int
}

func initializeScenario(sc *godog.ScenarioContext) {
	s := &scenario{ctx: context.Background()}

	sc.Step(`^an encrypted memory service$`, s.encryptedMemoryService)
	sc.Step(`^the user stores the (fact|preference) "([^"]*)" with importance ([\d.]+)$`, s.userStores)
	sc.Step(`^the user asks "([^"]*)"$`, s.userAsks)
	sc.Step(`^cleanup runs$`, s.cleanupRuns)

	sc.Step(`^(\d+) memor(?:y is|ies are) recalled$`, s.recalledCount)
	sc.Step(`^the first recalled memory reads "([^"]*)"$`, s.firstRecalledReads)
	sc.Step(`^the prompt context contains "([^"]*)"$`, s.promptContains)
	sc.Step(`^the prompt context is empty$`, s.promptEmpty)
	sc.Step(`^the stored content is not readable without the key$`, s.storedContentSealed)
	sc.Step(`^the user has (\d+) memor(?:y|ies)$`, s.userHasMemories)
	sc.Step(`^the only memory has importance ([\d.]+)$`, s.onlyMemoryImportance)
	sc.Step(`^the only memory contains "([^"]*)"$`, s.onlyMemoryContains)
	sc.Step(`^(\d+) memor(?:y is|ies are) deleted$`, s.deletedCount)
	sc.Step(`^the statistics show (\d+) memories$`, s.statsTotal)
	sc.Step(`^the statistics show (\d+) memories with embeddings$`, s.statsWithEmbeddings)
	sc.Step(`^the statistics show an average importance of ([\d.]+)$`, s.statsAverage)
}

func (s *scenario) encryptedMemoryService() error {
	key, err := encryption.GenerateKey()
	if err != nil {
		return err
	}
	enc, err := encryption.NewChaCha(key)
	if err != nil {
		return err
	}

	s.user = uuid.New()
	s.store = inmem.NewStore()
	s.service = NewService(s.store, embedding.NewLocal(embedding.DefaultLocalDimensions), enc, DefaultServiceConfig())
	return nil
}

func (s *scenario) userStores(kind, content string, importance float64) error {
	var err error
	switch kind {
	case "fact":
		_, err = s.service.StoreFact(s.ctx, s.user, content, float32(importance))
	case "preference":
		_, err = s.service.StorePreference(s.ctx, s.user, content, float32(importance))
	}
	return err
}

func (s *scenario) userAsks(question string) error {
	var err error
	s.recalled, err = s.service.RetrieveContext(s.ctx, s.user, question)
	return err
}

func (s *scenario) cleanupRuns() error {
	var err error
	s.deleted, err = s.service.CleanupLowImportance(s.ctx)
	return err
}

func (s *scenario) recalledCount(n int) error {
	if len(s.recalled) != n {
		return fmt.Errorf("expected %d recalled memories, got %d", n, len(s.recalled))
	}
	return nil
}

func (s *scenario) firstRecalledReads(content string) error {
	if len(s.recalled) == 0 {
		return fmt.Errorf("nothing recalled")
	}
	if got := s.recalled[0].Memory.Content; got != content {
		return fmt.Errorf("expected %q, got %q", content, got)
	}
	return nil
}

func (s *scenario) promptContains(fragment string) error {
	if prompt := FormatContextForPrompt(s.recalled); !strings.Contains(prompt, fragment) {
		return fmt.Errorf("prompt %q does not contain %q", prompt, fragment)
	}
	return nil
}

func (s *scenario) promptEmpty() error {
	if prompt := FormatContextForPrompt(s.recalled); prompt != "" {
		return fmt.Errorf("expected empty prompt, got %q", prompt)
	}
	return nil
}

func (s *scenario) storedContentSealed() error {
	raw, err := s.store.List(s.ctx, core.NewMemoryQuery().ForUser(s.user))
	if err != nil {
		return err
	}
	for _, m := range raw {
		if strings.Contains(m.Content, " ") || strings.Contains(m.Summary, " ") {
			return fmt.Errorf("memory %s is stored in plaintext", m.ID)
		}
	}
	return nil
}

func (s *scenario) userMemories() ([]core.Memory, error) {
	return s.service.List(s.ctx, core.NewMemoryQuery().ForUser(s.user))
}

func (s *scenario) userHasMemories(n int) error {
	all, err := s.userMemories()
	if err != nil {
		return err
	}
	if len(all) != n {
		return fmt.Errorf("expected %d memories, got %d", n, len(all))
	}
	return nil
}

func (s *scenario) onlyMemory() (core.Memory, error) {
	all, err := s.userMemories()
	if err != nil {
		return core.Memory{}, err
	}
	if len(all) != 1 {
		return core.Memory{}, fmt.Errorf("expected exactly one memory, got %d", len(all))
	}
	return all[0], nil
}

func (s *scenario) onlyMemoryImportance(want float64) error {
	m, err := s.onlyMemory()
	if err != nil {
		return err
	}
	if math.Abs(float64(m.Importance)-want) > 1e-4 {
		return fmt.Errorf("expected importance %.2f, got %.2f", want, m.Importance)
	}
	return nil
}

func (s *scenario) onlyMemoryContains(fragment string) error {
	m, err := s.onlyMemory()
	if err != nil {
		return err
	}
	if !strings.Contains(m.Content, fragment) {
		return fmt.Errorf("content %q does not contain %q", m.Content, fragment)
	}
	return nil
}

func (s *scenario) deletedCount(n int) error {
	if s.deleted != n {
		return fmt.Errorf("expected %d deleted, got %d", n, s.deleted)
	}
	return nil
}

func (s *scenario) stats() (core.MemoryStats, error) {
	return s.service.Stats(s.ctx, s.user)
}

func (s *scenario) statsTotal(n int) error {
	stats, err := s.stats()
	if err != nil {
		return err
	}
	if stats.TotalCount != n {
		return fmt.Errorf("expected total %d, got %d", n, stats.TotalCount)
	}
	return nil
}

func (s *scenario) statsWithEmbeddings(n int) error {
	stats, err := s.stats()
	if err != nil {
		return err
	}
	if stats.WithEmbeddings != n {
		return fmt.Errorf("expected %d with embeddings, got %d", n, stats.WithEmbeddings)
	}
	return nil
}

func (s *scenario) statsAverage(want float64) error {
	stats, err := s.stats()
	if err != nil {
		return err
	}
	if math.Abs(float64(stats.AvgImportance)-want) > 1e-4 {
		return fmt.Errorf("expected average %.2f, got %.4f", want, stats.AvgImportance)
	}
	return nil
}
