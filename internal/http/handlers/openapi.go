package handlers

import (
	_ "embed"
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger"
)

//go:embed openapi.json
var openAPISpec []byte

func (a *App) OpenAPIJSON(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(openAPISpec)
}

// OpenAPIDocs serves Swagger UI for the document at /v1/openapi.json.
func (a *App) OpenAPIDocs() http.HandlerFunc {
	return httpSwagger.Handler(httpSwagger.URL("/v1/openapi.json"))
}
