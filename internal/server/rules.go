package server

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/rulegate/rulegate/pkg/ruledef"
)

// LoadRulesFromDir walks a directory recursively, loads every .yml/.yaml
// rule document and builds one validator per document name. Returns
// (loaded_rules, skipped_files, error).
func (s *Server) LoadRulesFromDir(ctx context.Context, dir string) (int, int, error) {
	byName, skipped, err := ruledef.LoadDir(dir)
	if err != nil {
		return 0, skipped, err
	}
	loaded := 0
	for name, rules := range byName {
		if _, err := s.registry.Build(rules, s.buildOptions(name)); err != nil {
			return loaded, skipped, fmt.Errorf("build validator %s: %w", name, err)
		}
		loaded += len(rules)
		s.log.Info("validator loaded from disk",
			zap.String("name", name),
			zap.Int("rules", len(rules)))
	}
	return loaded, skipped, nil
}

// RestoreFromStore rebuilds validators from the latest stored publication
// of every name. A revision that no longer builds (for example after a
// guard was unregistered) is logged and skipped rather than failing
// startup.
func (s *Server) RestoreFromStore(ctx context.Context) (int, error) {
	if s.store == nil {
		return 0, nil
	}
	sources, err := s.store.LatestPublications(ctx)
	if err != nil {
		return 0, err
	}
	restored := 0
	for name, source := range sources {
		docs, err := ruledef.Load(source)
		if err != nil {
			s.log.Warn("stored publication does not parse",
				zap.String("name", name), zap.Error(err))
			continue
		}
		for _, doc := range docs {
			if doc.Name != name {
				continue
			}
			if _, err := s.registry.Build(doc.Rules, s.buildOptions(name)); err != nil {
				s.log.Warn("stored publication does not build",
					zap.String("name", name), zap.Error(err))
				continue
			}
			restored++
		}
	}
	return restored, nil
}
