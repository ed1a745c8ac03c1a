package store

import "context"

// Store defines the persistence layer contract.
// All implementations must be safe for concurrent use.
type Store interface {
	// Themes
	SaveTheme(ctx context.Context, theme *Theme) error
	GetTheme(ctx context.Context, name string) (*Theme, error)
	ListThemes(ctx context.Context) ([]*Theme, error)
	DeleteTheme(ctx context.Context, name string) error
	SetDefaultTheme(ctx context.Context, name string) error

	// Annotations
	SaveAnnotation(ctx context.Context, a *Annotation) error
	GetAnnotation(ctx context.Context, automationID, nodeID string) (*Annotation, error)
	ListAnnotations(ctx context.Context, automationID string) ([]*Annotation, error)
	DeleteAnnotation(ctx context.Context, automationID, nodeID string) error

	// Render log (append-only)
	AppendRender(ctx context.Context, rec *RenderRecord) error
	ListRenders(ctx context.Context, filter RenderFilter) ([]*RenderRecord, error)

	// Maintenance
	Migrate(ctx context.Context) error
	Vacuum(ctx context.Context) error

	// Lifecycle
	Close() error
}
