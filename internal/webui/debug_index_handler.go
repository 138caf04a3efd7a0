package webui

import (
	"embed"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/davecgh/go-spew/spew"
	"mouzamap.org/internal/appconf"
)

//go:embed debug_index.html
var templateFS embed.FS

var debugTemplate = template.Must(template.ParseFS(templateFS, "debug_index.html"))

var dumpConfig = spew.ConfigState{
	Indent:                  "  ",
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	SortKeys:                true,
}

type debugData struct {
	Title     string
	DataTypes []string
	Pre       string
}

var debugDataTypes = []string{"districts", "mouzas", "assignments", "stats", "selection", "config"}

func writeDebugData(w http.ResponseWriter, title string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	err := debugTemplate.Execute(w, debugData{
		Title:     title,
		DataTypes: debugDataTypes,
		Pre:       dumpConfig.Sdump(data),
	})
	if err != nil {
		slog.Error("failed to execute debug template", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// debugIndexHandler dumps in-memory state for operators. It does not exist
// in production.
func (webUI *WebUI) debugIndexHandler(w http.ResponseWriter, r *http.Request) {
	if webUI.Application == nil || webUI.Config.Env == appconf.Production {
		http.NotFound(w, r)
		return
	}

	idx := webUI.Index()

	var data any
	var title string

	switch r.URL.Query().Get("dataType") {
	case "districts":
		data = idx.Parents()
		title = "Districts"
	case "mouzas":
		data = idx.ChildFeatures()
		title = "Mouza Features"
	case "assignments":
		assignments := make(map[string][]string, len(idx.Parents()))
		for _, name := range idx.Parents() {
			assignments[name] = idx.ChildrenOf(name)
		}
		data = assignments
		title = "Mouzas by District"
	case "stats":
		data = idx.Stats()
		title = "Region Index Stats"
	case "selection":
		data = webUI.Selection.Snapshot()
		title = "Current Selection"
	case "config":
		data = redactedConfig(webUI.Config)
		title = "Configuration"
	default:
		data = map[string]string{
			"error": "Please use one of the following: districts, mouzas, assignments, stats, selection, config.",
		}
		title = "Choose a data type"
	}

	writeDebugData(w, title, data)
}

// redactedConfig hides keys before the config is dumped.
func redactedConfig(cfg appconf.Config) appconf.Config {
	keys := make([]string, len(cfg.ApiKeys))
	for i := range keys {
		keys[i] = "[redacted]"
	}
	cfg.ApiKeys = keys
	if cfg.AdminKey != "" {
		cfg.AdminKey = "[redacted]"
	}
	return cfg
}
