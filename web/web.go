package web

import (
	"embed"
	"encoding/json"
	"html/template"
	"io/fs"

	"github.com/cockroachdb/errors"
)

//go:embed templates static
var content embed.FS

// Page names accepted by the handlers' renderer.
const (
	PageDashboard         = "dashboard"
	PageAlerts            = "alerts"
	PageAlertDetail       = "alert-detail"
	PageError             = "error"
	PageKeystrokeOverview = "keystroke-overview"
	PageKeystrokeModels   = "keystroke-models"
	PageKeystrokeSchedule = "keystroke-schedule"
	PageTrainingStatus    = "training-status"
	PageSettings          = "settings"
	PageLogin             = "login"
	PageLogin2FA          = "login-2fa"
)

var pageNames = []string{
	PageDashboard,
	PageAlerts,
	PageAlertDetail,
	PageError,
	PageKeystrokeOverview,
	PageKeystrokeModels,
	PageKeystrokeSchedule,
	PageTrainingStatus,
	PageSettings,
	PageLogin,
	PageLogin2FA,
}

var funcs = template.FuncMap{
	"json": func(v any) string {
		if raw, ok := v.(json.RawMessage); ok {
			var decoded any
			if json.Unmarshal(raw, &decoded) == nil {
				v = decoded
			}
		}
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return ""
		}
		return string(b)
	},
	"levelClass": func(level int) string {
		switch {
		case level >= 12:
			return "level-high"
		case level >= 7:
			return "level-medium"
		default:
			return "level-low"
		}
	},
	// active treats a schedule without an isActive flag as active.
	"active": func(b *bool) bool { return b == nil || *b },
	"add":    func(a, b int) int { return a + b },
	"sub":    func(a, b int) int { return a - b },
}

// Pages parses every page together with the shared layout. Each page is
// executed through the "layout" template.
func Pages() (map[string]*template.Template, error) {
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		t, err := template.New(name).Funcs(funcs).ParseFS(content,
			"templates/layout.html",
			"templates/"+name+".html",
		)
		if err != nil {
			return nil, errors.Wrapf(err, "parse template %s", name)
		}
		pages[name] = t
	}
	return pages, nil
}

// Static returns the stylesheet and script assets served under /static/.
func Static() (fs.FS, error) {
	return fs.Sub(content, "static")
}
