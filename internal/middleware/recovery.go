package middleware

import (
	"errors"
	"log"
	"net/http"
	"runtime/debug"

	"jsonbench-api/internal/model"
	"jsonbench-api/pkg/apierror"
)

// Recovery is a middleware that recovers from panics. A projection failure
// is reported as a defect; the process keeps serving other requests.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				var perr *model.ProjectionError
				if err, ok := rec.(error); ok && errors.As(err, &perr) {
					log.Printf("[Recovery] DEFECT request_id=%s %s %s: %v\n%s",
						GetRequestID(r.Context()), r.Method, r.URL.Path, perr, debug.Stack())
				} else {
					log.Printf("PANIC: %v\n%s", rec, debug.Stack())
				}

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				w.Write(apierror.InternalError("internal server error").ToJSON())
			}
		}()

		next.ServeHTTP(w, r)
	})
}
