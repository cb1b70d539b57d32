package validators

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/mgallardo/edustack-backend/pkg/enums"
	pkgerrors "github.com/mgallardo/edustack-backend/pkg/errors"
	"github.com/mgallardo/edustack-backend/pkg/types"
)

// ParseScopeQuery reads the scope_type and scope_id query parameters into a
// validated scope.
func ParseScopeQuery(r *http.Request) (types.Scope, error) {
	return BuildScope(r.URL.Query().Get("scope_type"), r.URL.Query().Get("scope_id"))
}

// BuildScope validates the raw scope halves and assembles a scope value.
func BuildScope(rawType, rawID string) (types.Scope, error) {
	scopeType, err := enums.ParseScopeType(strings.TrimSpace(rawType))
	if err != nil {
		return types.Scope{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid scope_type")
	}
	scopeID, err := uuid.Parse(strings.TrimSpace(rawID))
	if err != nil {
		return types.Scope{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid scope_id").WithDetails(map[string]any{"field": "scope_id"})
	}
	return types.Scope{Type: scopeType, ID: scopeID}, nil
}
