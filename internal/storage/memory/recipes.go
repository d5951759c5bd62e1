package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fdg312/nutri-plans/internal/storage"
	"github.com/google/uuid"
)

type recipesStorage struct {
	mu      sync.RWMutex
	recipes map[string]storage.Recipe // key: recipe_id
	seq     map[string]int64
	next    int64
}

func newRecipesStorage() *recipesStorage {
	return &recipesStorage{
		recipes: make(map[string]storage.Recipe),
		seq:     make(map[string]int64),
	}
}

func (s *recipesStorage) GetRecipe(ctx context.Context, id string) (storage.Recipe, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.recipes[id]
	if !ok {
		return storage.Recipe{}, storage.ErrNotFound
	}
	return cloneRecipe(r), nil
}

func (s *recipesStorage) SearchRecipes(ctx context.Context, q storage.RecipeQuery) ([]storage.Recipe, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	search := strings.ToLower(strings.TrimSpace(q.Search))
	var matched []storage.Recipe
	for _, r := range s.recipes {
		if q.ActiveOnly && !r.IsActive {
			continue
		}
		if q.Difficulty != "" && r.Difficulty != q.Difficulty {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(r.Name), search) &&
			!strings.Contains(strings.ToLower(r.Description), search) {
			continue
		}
		if len(q.Tags) > 0 && !overlaps(r.Tags, q.Tags) {
			continue
		}
		if len(q.ExcludeTags) > 0 && overlaps(r.Tags, q.ExcludeTags) {
			continue
		}
		matched = append(matched, r)
	}

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return s.seq[matched[i].ID] > s.seq[matched[j].ID]
	})

	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}

	result := make([]storage.Recipe, len(matched))
	for i, r := range matched {
		result[i] = cloneRecipe(r)
	}
	return result, nil
}

func (s *recipesStorage) SaveRecipe(ctx context.Context, r storage.Recipe) (storage.Recipe, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if existing, ok := s.recipes[r.ID]; ok {
		r.CreatedAt = existing.CreatedAt
	} else {
		if r.CreatedAt.IsZero() {
			r.CreatedAt = now
		}
		s.next++
		s.seq[r.ID] = s.next
	}
	r.UpdatedAt = now
	r.Tags = copyStrings(r.Tags)
	r.Allergens = copyStrings(r.Allergens)

	s.recipes[r.ID] = r
	return cloneRecipe(r), nil
}

func (s *recipesStorage) MissingRecipeIDs(ctx context.Context, ids []string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var missing []string
	for _, id := range ids {
		if _, ok := s.recipes[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

func (s *recipesStorage) DeleteRecipe(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.recipes, id)
	delete(s.seq, id)
	return nil
}

func overlaps(have, want []string) bool {
	for _, w := range want {
		for _, h := range have {
			if strings.EqualFold(h, w) {
				return true
			}
		}
	}
	return false
}

func cloneRecipe(r storage.Recipe) storage.Recipe {
	r.Tags = copyStrings(r.Tags)
	r.Allergens = copyStrings(r.Allergens)
	return r
}
