// Package swagger serves the OpenAPI description of the sensor API, in YAML
// and JSON, and a ReDoc page that renders it.
package swagger

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"gopkg.in/yaml.v3"
)

// OpenAPI is the source document.
//
//go:embed openapi.yaml
var OpenAPI []byte

// redocScript is loaded by the docs page; the API itself works offline.
const redocScript = "https://cdn.redoc.ly/redoc/v2.1.5/bundles/redoc.standalone.js"

var openAPIJSON = sync.OnceValues(func() ([]byte, error) {
	var doc any
	if err := yaml.Unmarshal(OpenAPI, &doc); err != nil {
		return nil, fmt.Errorf("parse openapi.yaml: %w", err)
	}
	return json.Marshal(stringKeys(doc))
})

// stringKeys rewrites YAML mappings with non-string keys, such as bare
// status codes, into JSON-encodable maps.
func stringKeys(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, e := range t {
			t[k] = stringKeys(e)
		}
		return t
	case map[any]any:
		m := make(map[string]any, len(t))
		for k, e := range t {
			m[fmt.Sprint(k)] = stringKeys(e)
		}
		return m
	case []any:
		for i, e := range t {
			t[i] = stringKeys(e)
		}
		return t
	default:
		return v
	}
}

func serve(contentType string, body func() ([]byte, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		b, err := body()
		if err != nil {
			http.Error(w, "api description unavailable", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", contentType)
		_, _ = w.Write(b)
	}
}

func static(b []byte) func() ([]byte, error) {
	return func() ([]byte, error) { return b, nil }
}

// Register mounts GET /api-docs, /openapi.yaml and /openapi.json on r.
func Register(r *mux.Router) {
	if r == nil {
		panic("swagger: nil router")
	}
	r.HandleFunc("/api-docs", serve("text/html; charset=utf-8", static([]byte(indexHTML)))).Methods(http.MethodGet)
	r.HandleFunc("/openapi.yaml", serve("application/yaml; charset=utf-8", static(OpenAPI))).Methods(http.MethodGet)
	r.HandleFunc("/openapi.json", serve("application/json", openAPIJSON)).Methods(http.MethodGet)
}

const indexHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8">
    <title>Sensor API Docs</title>
    <style>body{margin:0;padding:0}</style>
  </head>
  <body>
    <redoc id="redoc-container"></redoc>
    <script src="` + redocScript + `"></script>
    <script>Redoc.init('/openapi.yaml', { suppressWarnings: true }, document.getElementById('redoc-container'));</script>
  </body>
</html>`
