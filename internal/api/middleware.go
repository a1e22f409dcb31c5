package api

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/kuitang/notes-api/internal/errs"
	"github.com/kuitang/notes-api/internal/obs"
)

const corsAllowMethods = "GET,HEAD,PUT,PATCH,POST,DELETE"

// CORSMiddleware allows any origin. Preflight requests are answered with 204
// and never reach next.
func CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.Header().Set("Access-Control-Allow-Methods", corsAllowMethods)
			if reqHeaders := r.Header.Get("Access-Control-Request-Headers"); reqHeaders != "" {
				w.Header().Set("Access-Control-Allow-Headers", reqHeaders)
				w.Header().Add("Vary", "Access-Control-Request-Headers")
			}
			w.Header().Set("Content-Length", "0")
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// RecoverMiddleware turns a panic in next into a logged 500 error envelope.
// If next already started the response, the connection is left as is.
func RecoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := obs.NewResponseRecorder(w)
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			obs.From(r.Context()).Error("panic_recovered",
				"method", r.Method,
				"path", r.URL.Path,
				"panic", fmt.Sprint(rec),
				"stack", string(debug.Stack()),
			)
			if recorder.WroteHeader() {
				return
			}
			writeError(w, r, errs.Wrap(errs.Internal, "", fmt.Errorf("panic: %v", rec)))
		}()
		next.ServeHTTP(recorder, r)
	})
}
