package sources

import (
	"context"

	"hids-dashboard-go/internal/models"
)

// Adapter is the uniform read surface every alert source implements.
type Adapter interface {
	Source() models.Source
	Summary(ctx context.Context) (any, error)
	RecentAlerts(ctx context.Context, limit int) ([]models.Alert, error)
	Alerts(ctx context.Context, page, limit int, filter string) (models.AlertPage, error)
	AlertByID(ctx context.Context, id string) Lookup
}

// Lookup is the result of a by-id query. Exactly one of the three states
// holds: found (Alert set), not found (both nil) or failed (Err set).
type Lookup struct {
	Alert *models.Alert
	Err   error
}

func Found(a models.Alert) Lookup { return Lookup{Alert: &a} }

func NotFound() Lookup { return Lookup{} }

func Failed(err error) Lookup { return Lookup{Err: err} }

func (l Lookup) IsFound() bool { return l.Alert != nil }

func (l Lookup) IsFailed() bool { return l.Err != nil }

// String names the state for logs and metrics.
func (l Lookup) String() string {
	switch {
	case l.IsFound():
		return "found"
	case l.IsFailed():
		return "failed"
	default:
		return "not_found"
	}
}

// offset returns the zero-based start index of a 1-based page.
func offset(page, limit int) int {
	if page < 1 {
		page = 1
	}
	return (page - 1) * limit
}
