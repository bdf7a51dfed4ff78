package redact

import (
	"context"
	"fmt"

	"metaredact/internal/config"
)

// NewClassifier builds the backend selected by cfg.Redact.Backend. The
// returned close function releases backend resources and is never nil.
func NewClassifier(ctx context.Context, cfg *config.Config) (Classifier, func() error, error) {
	noop := func() error { return nil }
	marker := cfg.Redact.Marker

	switch cfg.Redact.Backend {
	case config.BackendRules:
		return NewRuleClassifier(marker), noop, nil
	case config.BackendChat:
		return NewChatClassifier(cfg.Chat, marker), noop, nil
	case config.BackendVertex:
		vc, err := NewVertexClassifier(ctx, cfg.Vertex, marker)
		if err != nil {
			return nil, noop, err
		}
		return vc, vc.Close, nil
	default:
		return nil, noop, fmt.Errorf("unknown redact backend %q", cfg.Redact.Backend)
	}
}
