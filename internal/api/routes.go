// Package api is the route table of the vault HTTP API: the ServerInterface
// implemented by the handlers, parameter binding and chi wiring.
// Paths and parameters mirror openapi/openapi.yaml.
package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
)

// ListFilesParams defines parameters for ListFiles.
type ListFilesParams struct {
	// Filename is a case-insensitive substring filter over the caller's files.
	Filename *string `form:"filename,omitempty" json:"filename,omitempty"`
	// Cid switches the endpoint to a direct lookup that needs no session.
	Cid *string `form:"cid,omitempty" json:"cid,omitempty"`
}

// ServerInterface represents all server handlers.
type ServerInterface interface {
	// Liveness probe
	// (GET /health/live)
	HealthLive(w http.ResponseWriter, r *http.Request)
	// Readiness probe
	// (GET /health/ready)
	HealthReady(w http.ResponseWriter, r *http.Request)
	// Prometheus metrics
	// (GET /metrics)
	GetMetrics(w http.ResponseWriter, r *http.Request)
	// OpenAPI document
	// (GET /openapi.json)
	GetOpenAPI(w http.ResponseWriter, r *http.Request)
	// Create an account
	// (POST /register)
	Register(w http.ResponseWriter, r *http.Request)
	// Start a session
	// (POST /login)
	Login(w http.ResponseWriter, r *http.Request)
	// End the session
	// (POST /logout)
	Logout(w http.ResponseWriter, r *http.Request)
	// Upload and pin a file
	// (POST /upload)
	UploadFile(w http.ResponseWriter, r *http.Request)
	// List own files or look one up by CID
	// (GET /files)
	ListFiles(w http.ResponseWriter, r *http.Request, params ListFilesParams)
	// Look up a file by CID
	// (GET /files/{cid})
	GetFile(w http.ResponseWriter, r *http.Request, cid string)
	// Delete own file
	// (DELETE /files/{cid})
	DeleteFile(w http.ResponseWriter, r *http.Request, cid string)
}

// MiddlewareFunc wraps a single operation handler.
type MiddlewareFunc func(http.Handler) http.Handler

// ServerInterfaceWrapper converts HTTP requests to ServerInterface calls.
type ServerInterfaceWrapper struct {
	Handler            ServerInterface
	HandlerMiddlewares []MiddlewareFunc
	ErrorHandlerFunc   func(w http.ResponseWriter, r *http.Request, err error)
}

func (siw *ServerInterfaceWrapper) serve(w http.ResponseWriter, r *http.Request, h http.HandlerFunc) {
	var handler http.Handler = h
	for _, middleware := range siw.HandlerMiddlewares {
		handler = middleware(handler)
	}
	handler.ServeHTTP(w, r)
}

// HealthLive operation middleware
func (siw *ServerInterfaceWrapper) HealthLive(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, siw.Handler.HealthLive)
}

// HealthReady operation middleware
func (siw *ServerInterfaceWrapper) HealthReady(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, siw.Handler.HealthReady)
}

// GetMetrics operation middleware
func (siw *ServerInterfaceWrapper) GetMetrics(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, siw.Handler.GetMetrics)
}

// GetOpenAPI operation middleware
func (siw *ServerInterfaceWrapper) GetOpenAPI(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, siw.Handler.GetOpenAPI)
}

// Register operation middleware
func (siw *ServerInterfaceWrapper) Register(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, siw.Handler.Register)
}

// Login operation middleware
func (siw *ServerInterfaceWrapper) Login(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, siw.Handler.Login)
}

// Logout operation middleware
func (siw *ServerInterfaceWrapper) Logout(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, siw.Handler.Logout)
}

// UploadFile operation middleware
func (siw *ServerInterfaceWrapper) UploadFile(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, siw.Handler.UploadFile)
}

// ListFiles operation middleware
func (siw *ServerInterfaceWrapper) ListFiles(w http.ResponseWriter, r *http.Request) {
	var params ListFilesParams

	if err := runtime.BindQueryParameter("form", true, false, "filename", r.URL.Query(), &params.Filename); err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "filename", Err: err})
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "cid", r.URL.Query(), &params.Cid); err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "cid", Err: err})
		return
	}

	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.ListFiles(w, r, params)
	})
}

// GetFile operation middleware
func (siw *ServerInterfaceWrapper) GetFile(w http.ResponseWriter, r *http.Request) {
	cid, ok := siw.bindCID(w, r)
	if !ok {
		return
	}
	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.GetFile(w, r, cid)
	})
}

// DeleteFile operation middleware
func (siw *ServerInterfaceWrapper) DeleteFile(w http.ResponseWriter, r *http.Request) {
	cid, ok := siw.bindCID(w, r)
	if !ok {
		return
	}
	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.DeleteFile(w, r, cid)
	})
}

func (siw *ServerInterfaceWrapper) bindCID(w http.ResponseWriter, r *http.Request) (string, bool) {
	var cid string
	err := runtime.BindStyledParameterWithOptions("simple", "cid", chi.URLParam(r, "cid"), &cid,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "cid", Err: err})
		return "", false
	}
	return cid, true
}

// InvalidParamFormatError is passed to ErrorHandlerFunc when a parameter
// cannot be bound.
type InvalidParamFormatError struct {
	ParamName string
	Err       error
}

func (e *InvalidParamFormatError) Error() string {
	return fmt.Sprintf("Invalid format for parameter %s: %s", e.ParamName, e.Err.Error())
}

func (e *InvalidParamFormatError) Unwrap() error {
	return e.Err
}

// ChiServerOptions configures HandlerWithOptions.
type ChiServerOptions struct {
	BaseURL          string
	BaseRouter       chi.Router
	Middlewares      []MiddlewareFunc
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
}

// HandlerWithOptions creates http.Handler with additional options.
func HandlerWithOptions(si ServerInterface, options ChiServerOptions) http.Handler {
	r := options.BaseRouter
	if r == nil {
		r = chi.NewRouter()
	}
	if options.ErrorHandlerFunc == nil {
		options.ErrorHandlerFunc = func(w http.ResponseWriter, r *http.Request, err error) {
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
	}

	wrapper := ServerInterfaceWrapper{
		Handler:            si,
		HandlerMiddlewares: options.Middlewares,
		ErrorHandlerFunc:   options.ErrorHandlerFunc,
	}

	base := options.BaseURL
	r.Group(func(r chi.Router) {
		r.Get(base+"/health/live", wrapper.HealthLive)
		r.Get(base+"/health/ready", wrapper.HealthReady)
		r.Get(base+"/metrics", wrapper.GetMetrics)
		r.Get(base+"/openapi.json", wrapper.GetOpenAPI)
		r.Post(base+"/register", wrapper.Register)
		r.Post(base+"/login", wrapper.Login)
		r.Post(base+"/logout", wrapper.Logout)
		r.Post(base+"/upload", wrapper.UploadFile)
		r.Get(base+"/files", wrapper.ListFiles)
		r.Get(base+"/files/{cid}", wrapper.GetFile)
		r.Delete(base+"/files/{cid}", wrapper.DeleteFile)
	})

	return r
}
