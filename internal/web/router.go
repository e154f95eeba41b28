package web

import (
	"net/http"
	"sort"
)

type Route struct {
	Method  string
	Path    string
	Handler http.HandlerFunc
}

// Router dispatches several methods on one ServeMux pattern. Patterns may use
// {name} wildcards, read back with PathID or r.PathValue.
type Router struct {
	mux      *http.ServeMux
	prefix   string
	routes   *[]Route
	patterns map[string]map[string]http.HandlerFunc
}

func NewRouter() *Router {
	return &Router{
		mux:      http.NewServeMux(),
		routes:   &[]Route{},
		patterns: make(map[string]map[string]http.HandlerFunc),
	}
}

// Group returns a router sharing the same mux whose paths are prefixed.
func (rt *Router) Group(prefix string) *Router {
	g := *rt
	g.prefix = rt.prefix + prefix
	return &g
}

func (rt *Router) Handle(method, path string, handler http.HandlerFunc) {
	path = rt.prefix + path
	*rt.routes = append(*rt.routes, Route{Method: method, Path: path, Handler: handler})

	if method == "*" {
		rt.mux.HandleFunc(path, handler)
		return
	}

	methods, exists := rt.patterns[path]
	if !exists {
		methods = make(map[string]http.HandlerFunc)
		rt.patterns[path] = methods
		rt.mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			if h, ok := methods[r.Method]; ok {
				h(w, r)
				return
			}
			Fail(w, r, "SYSTEM_METHOD_NOT_ALLOWED", "method not allowed", http.StatusMethodNotAllowed)
		})
	}
	methods[method] = handler
}

func (rt *Router) GET(path string, handler http.HandlerFunc) {
	rt.Handle(http.MethodGet, path, handler)
}
func (rt *Router) POST(path string, handler http.HandlerFunc) {
	rt.Handle(http.MethodPost, path, handler)
}
func (rt *Router) PUT(path string, handler http.HandlerFunc) {
	rt.Handle(http.MethodPut, path, handler)
}
func (rt *Router) DELETE(path string, handler http.HandlerFunc) {
	rt.Handle(http.MethodDelete, path, handler)
}

// Routes lists every registration sorted by path then method.
func (rt *Router) Routes() []Route {
	out := append([]Route(nil), *rt.routes...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		return out[i].Method < out[j].Method
	})
	return out
}

func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rt.mux.ServeHTTP(w, r)
}
