package middleware

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/ledgerline/backoffice/pkg/contextkeys"
	"github.com/ledgerline/backoffice/pkg/httputil"
)

// OperationContextMiddleware resolves the {operation_id} path variable and
// attaches it to the request context. Routes without the variable pass
// through unchanged. Whether the operation exists is checked downstream,
// after the access guard, so a caller without a grant sees the same
// denial for unknown and forbidden operations.
func OperationContextMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			vars := mux.Vars(r)
			opIDStr, ok := vars["operation_id"]
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			operationID, err := strconv.ParseInt(opIDStr, 10, 64)
			if err != nil {
				httputil.WriteBadRequest(w, "invalid operation ID")
				return
			}

			ctx := contextkeys.WithOperationID(r.Context(), operationID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OperationIDFromRequest returns the operation ID resolved for this request
func OperationIDFromRequest(r *http.Request) (int64, bool) {
	return contextkeys.GetOperationID(r.Context())
}
