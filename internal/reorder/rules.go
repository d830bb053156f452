package reorder

import (
	"fmt"
	"strings"
	"sync"

	"github.com/andresuchdata/autoreorder/internal/domain"
)

// RuleSet holds one rule per material. Iteration follows first registration
// order; re-registering a material replaces its rule in place.
type RuleSet struct {
	mu    sync.RWMutex
	order []string
	rules map[string]domain.ReorderRule
}

func NewRuleSet() *RuleSet {
	return &RuleSet{rules: make(map[string]domain.ReorderRule)}
}

// Register validates every rule before applying any of them. Within one call
// a later duplicate wins.
func (s *RuleSet) Register(in ...domain.ReorderRule) error {
	rules := make([]domain.ReorderRule, len(in))
	copy(rules, in)
	for i := range rules {
		rules[i].MaterialID = strings.TrimSpace(rules[i].MaterialID)
		if err := Validate(rules[i]); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rules {
		if _, ok := s.rules[r.MaterialID]; !ok {
			s.order = append(s.order, r.MaterialID)
		}
		s.rules[r.MaterialID] = r
	}
	return nil
}

func (s *RuleSet) Get(materialID string) (domain.ReorderRule, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rules[materialID]
	return r, ok
}

// ForMaterial returns the rule for a material as a slice ready for Decide.
func (s *RuleSet) ForMaterial(materialID string) []domain.ReorderRule {
	if r, ok := s.Get(materialID); ok {
		return []domain.ReorderRule{r}
	}
	return nil
}

func (s *RuleSet) List() []domain.ReorderRule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ReorderRule, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.rules[id])
	}
	return out
}

func (s *RuleSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Validate checks a rule's required fields and thresholds.
func Validate(r domain.ReorderRule) error {
	switch {
	case strings.TrimSpace(r.MaterialID) == "":
		return fmt.Errorf("%w: material_id is required", domain.ErrInvalidRule)
	case r.MinStock < 0:
		return fmt.Errorf("%w: %s: min_stock must not be negative", domain.ErrInvalidRule, r.MaterialID)
	case r.ReorderPoint < 0:
		return fmt.Errorf("%w: %s: reorder_point must not be negative", domain.ErrInvalidRule, r.MaterialID)
	case r.OrderQuantity <= 0:
		return fmt.Errorf("%w: %s: order_quantity must be positive", domain.ErrInvalidRule, r.MaterialID)
	case r.LeadTimeDays < 0:
		return fmt.Errorf("%w: %s: lead_time_days must not be negative", domain.ErrInvalidRule, r.MaterialID)
	}
	return nil
}
