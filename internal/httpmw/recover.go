package httpmw

import (
	"net/http"
	"runtime/debug"

	"github.com/harborgoods/storefront-web/internal/log"
	"github.com/harborgoods/storefront-web/internal/xerrors"
)

// Recover converts handler panics into 500 responses instead of killing
// the connection. http.ErrAbortHandler passes through untouched so the
// server's own abort mechanism keeps working. onPanic, when non-nil, is
// called after logging; used to bump the panic counter.
func Recover(logger log.Logger, onPanic func()) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				var err error
				if e, ok := rec.(error); ok {
					err = xerrors.Wrap(e, "panic")
				} else {
					err = xerrors.Newf("panic: %v", rec)
				}

				logger.With(
					"http.request.method", r.Method,
					"url.path", r.URL.Path,
					"stack", string(debug.Stack()),
				).Error(r.Context(), err, "httpserver panic recovered")

				if onPanic != nil {
					onPanic()
				}

				// best effort: if the handler already started writing,
				// this is a no-op on the status line
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
