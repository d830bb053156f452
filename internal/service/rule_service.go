package service

import (
	"github.com/andresuchdata/autoreorder/internal/domain"
	"github.com/andresuchdata/autoreorder/internal/reorder"
	"github.com/rs/zerolog/log"
)

type RuleService struct {
	rules *reorder.RuleSet
}

func NewRuleService(rules *reorder.RuleSet) *RuleService {
	return &RuleService{rules: rules}
}

func (s *RuleService) List() []domain.ReorderRule {
	return s.rules.List()
}

// Register applies the batch atomically: one invalid rule rejects all of
// them.
func (s *RuleService) Register(rules []domain.ReorderRule) ([]domain.ReorderRule, error) {
	if err := s.rules.Register(rules...); err != nil {
		return nil, err
	}
	log.Info().Int("registered", len(rules)).Int("total", s.rules.Len()).Msg("reorder rules updated")
	return s.rules.List(), nil
}
