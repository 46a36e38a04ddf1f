package swagger

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	. "github.com/smartystreets/goconvey/convey"
	"gopkg.in/yaml.v3"
)

var documentedPaths = []string{"/measure", "/readings", "/readings/{period}", "/readings/range", "/stats", "/graph/{file}"}

type apiDoc struct {
	OpenAPI string         `yaml:"openapi" json:"openapi"`
	Paths   map[string]any `yaml:"paths" json:"paths"`
}

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, http.NoBody))
	return rec
}

func TestRegister(t *testing.T) {
	r := mux.NewRouter()
	Register(r)

	Convey("The YAML document lists every endpoint", t, func() {
		rec := get(r, "/openapi.yaml")
		So(rec.Code, ShouldEqual, http.StatusOK)
		So(rec.Header().Get("Content-Type"), ShouldEqual, "application/yaml; charset=utf-8")

		var doc apiDoc
		So(yaml.Unmarshal(rec.Body.Bytes(), &doc), ShouldBeNil)
		So(doc.OpenAPI, ShouldStartWith, "3.")
		for _, p := range documentedPaths {
			So(doc.Paths, ShouldContainKey, p)
		}
	})

	Convey("The JSON rendering carries the same paths", t, func() {
		rec := get(r, "/openapi.json")
		So(rec.Code, ShouldEqual, http.StatusOK)
		So(rec.Header().Get("Content-Type"), ShouldEqual, "application/json")

		var doc apiDoc
		So(json.Unmarshal(rec.Body.Bytes(), &doc), ShouldBeNil)
		So(doc.OpenAPI, ShouldStartWith, "3.")
		So(len(doc.Paths), ShouldBeGreaterThanOrEqualTo, len(documentedPaths))
	})

	Convey("The docs page loads ReDoc", t, func() {
		rec := get(r, "/api-docs")
		So(rec.Code, ShouldEqual, http.StatusOK)
		So(rec.Header().Get("Content-Type"), ShouldEqual, "text/html; charset=utf-8")
		So(rec.Body.String(), ShouldContainSubstring, "redoc-container")
	})
}

func TestStringKeys(t *testing.T) {
	Convey("Non-string mapping keys become strings", t, func() {
		in := map[string]any{"responses": map[any]any{200: "ok", "default": []any{map[any]any{true: 1}}}}
		out, err := json.Marshal(stringKeys(in))
		So(err, ShouldBeNil)
		So(string(out), ShouldEqual, `{"responses":{"200":"ok","default":[{"true":1}]}}`)
	})
}
