package opshttp

import (
	"net/http"
	"net/http/pprof"
)

// RegisterPprof wires the standard pprof handlers onto the admin mux.
// The admin listener is never exposed publicly; requireNonPublicNetwork
// enforces that at request time as well.
func RegisterPprof(mux *http.ServeMux) {
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
}
