package webui

import (
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

var allowedExtensions = map[string]bool{
	".html": true, ".css": true, ".js": true,
	".png": true, ".jpg": true, ".jpeg": true, ".svg": true,
	".ico": true,
}

// staticHandler serves a single file from the configured web directory.
// The site root maps to index.html.
func (webUI *WebUI) staticHandler(w http.ResponseWriter, r *http.Request) {
	fileName := filepath.Base(r.URL.Path)
	if r.URL.Path == "/" {
		fileName = "index.html"
	}

	ext := strings.ToLower(filepath.Ext(fileName))
	if !allowedExtensions[ext] {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}

	// Ensure no path traversal attempts
	if strings.Contains(fileName, "..") || strings.ContainsAny(fileName, `/\`) {
		http.Error(w, "Invalid file name", http.StatusBadRequest)
		return
	}

	webDir := "web"
	if webUI.Application != nil && webUI.Config.WebDir != "" {
		webDir = webUI.Config.WebDir
	}

	rootDir, err := filepath.Abs(webDir)
	if err != nil {
		http.Error(w, "Internal configuration error", http.StatusInternalServerError)
		return
	}
	absPath := filepath.Join(rootDir, fileName)

	// Verify the resolved path is still within the web directory
	rel, err := filepath.Rel(rootDir, absPath)
	if err != nil || strings.HasPrefix(rel, "..") {
		slog.Warn("potential path traversal attempt blocked", "path", absPath)
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}

	stat, err := os.Stat(absPath)
	if err != nil || stat.IsDir() {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}

	http.ServeFile(w, r, absPath)
}
