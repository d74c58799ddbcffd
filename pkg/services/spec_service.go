package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/prepstack-ai/prepstack-engine/pkg/models"
	"github.com/prepstack-ai/prepstack-engine/pkg/repositories"
)

// SpecService loads design specs for the coaching flow. Specs are read-only
// at request time, so reads go through an optional Redis cache; seeding from
// YAML files happens once at startup.
type SpecService interface {
	GetSpec(ctx context.Context, problemID uuid.UUID) (*models.DesignSpec, error)
	GetProblem(ctx context.Context, problemID uuid.UUID) (*models.Problem, error)
	// SeedFromDir upserts every *.yaml spec file in dir, returning how many
	// were loaded. A missing or empty dir is not an error.
	SeedFromDir(ctx context.Context, dir string) (int, error)
}

type specService struct {
	repo     repositories.SpecRepository
	cache    *redis.Client // nil disables caching
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewSpecService creates a new SpecService. cache may be nil.
func NewSpecService(repo repositories.SpecRepository, cache *redis.Client, cacheTTL time.Duration, logger *zap.Logger) SpecService {
	return &specService{
		repo:     repo,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   logger.Named("spec-service"),
	}
}

var _ SpecService = (*specService)(nil)

// specSeedFile is the on-disk YAML shape for one seeded problem.
type specSeedFile struct {
	Slug                      string            `yaml:"slug"`
	Title                     string            `yaml:"title"`
	Difficulty                string            `yaml:"difficulty"`
	Summary                   string            `yaml:"summary"`
	FunctionalRequirements    []string          `yaml:"functional_requirements"`
	NonfunctionalRequirements []string          `yaml:"nonfunctional_requirements"`
	ScaleEstimates            map[string]string `yaml:"scale_estimates"`
	StarterCanvas             struct {
		Nodes []struct {
			ID       string  `yaml:"id"`
			Type     string  `yaml:"type"`
			Label    string  `yaml:"label"`
			Note     string  `yaml:"note"`
			X        float64 `yaml:"x"`
			Y        float64 `yaml:"y"`
		} `yaml:"nodes"`
		Edges []struct {
			ID     string `yaml:"id"`
			Source string `yaml:"source"`
			Target string `yaml:"target"`
			Label  string `yaml:"label"`
		} `yaml:"edges"`
	} `yaml:"starter_canvas"`
	Rubric struct {
		MustHave       []string `yaml:"must_have"`
		ExpectedTopics []string `yaml:"expected_topics"`
	} `yaml:"rubric"`
}

func (s *specService) GetSpec(ctx context.Context, problemID uuid.UUID) (*models.DesignSpec, error) {
	cacheKey := specCacheKey(problemID)

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, cacheKey).Bytes()
		if err == nil {
			var spec models.DesignSpec
			if err := json.Unmarshal(cached, &spec); err == nil {
				return &spec, nil
			}
			// Corrupt entry; fall through to the database.
			s.logger.Warn("Dropping unreadable cached spec", zap.String("key", cacheKey))
			s.cache.Del(ctx, cacheKey)
		} else if err != redis.Nil {
			s.logger.Warn("Spec cache read failed", zap.Error(err))
		}
	}

	spec, err := s.repo.GetByProblemID(ctx, problemID)
	if err != nil {
		return nil, err
	}
	if spec == nil {
		return nil, nil
	}

	if s.cache != nil {
		if data, err := json.Marshal(spec); err == nil {
			if err := s.cache.Set(ctx, cacheKey, data, s.cacheTTL).Err(); err != nil {
				s.logger.Warn("Spec cache write failed", zap.Error(err))
			}
		}
	}

	return spec, nil
}

func (s *specService) GetProblem(ctx context.Context, problemID uuid.UUID) (*models.Problem, error) {
	return s.repo.GetProblem(ctx, problemID)
}

func (s *specService) SeedFromDir(ctx context.Context, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		s.logger.Info("Spec seed directory not found, skipping", zap.String("dir", dir))
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read seed directory: %w", err)
	}

	seeded := 0
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || (!strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml")) {
			continue
		}

		path := filepath.Join(dir, name)
		if err := s.seedFile(ctx, path); err != nil {
			return seeded, fmt.Errorf("failed to seed %s: %w", name, err)
		}
		seeded++
	}

	s.logger.Info("Seeded design specs", zap.Int("count", seeded), zap.String("dir", dir))
	return seeded, nil
}

func (s *specService) seedFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read seed file: %w", err)
	}

	var seed specSeedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("failed to parse seed file: %w", err)
	}
	if seed.Slug == "" || seed.Title == "" {
		return fmt.Errorf("seed file must set slug and title")
	}

	problem := &models.Problem{
		Slug:       seed.Slug,
		Title:      seed.Title,
		Difficulty: models.ParseDifficulty(seed.Difficulty),
	}
	spec := seedToSpec(&seed)

	problemID, err := s.repo.Upsert(ctx, problem, spec)
	if err != nil {
		return err
	}

	// Re-seeding changes rubrics, so any cached copy is stale.
	if s.cache != nil {
		s.cache.Del(ctx, specCacheKey(problemID))
	}

	return nil
}

func seedToSpec(seed *specSeedFile) *models.DesignSpec {
	spec := &models.DesignSpec{
		Summary:                   seed.Summary,
		FunctionalRequirements:    seed.FunctionalRequirements,
		NonfunctionalRequirements: seed.NonfunctionalRequirements,
		ScaleEstimates:            seed.ScaleEstimates,
		Rubric: models.Rubric{
			MustHave:       seed.Rubric.MustHave,
			ExpectedTopics: seed.Rubric.ExpectedTopics,
		},
	}

	for _, n := range seed.StarterCanvas.Nodes {
		spec.StarterCanvas.Nodes = append(spec.StarterCanvas.Nodes, models.BoardNode{
			ID:       n.ID,
			Type:     n.Type,
			Data:     models.NodeData{Label: n.Label, Note: n.Note},
			Position: models.Position{X: n.X, Y: n.Y},
		})
	}
	for _, e := range seed.StarterCanvas.Edges {
		spec.StarterCanvas.Edges = append(spec.StarterCanvas.Edges, models.BoardEdge{
			ID:     e.ID,
			Source: e.Source,
			Target: e.Target,
			Label:  e.Label,
		})
	}

	return spec
}

func specCacheKey(problemID uuid.UUID) string {
	return "prepstack:spec:" + problemID.String()
}
