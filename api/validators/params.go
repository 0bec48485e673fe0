package validators

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	pkgerrors "github.com/angelmondragon/sellerhub-backend/pkg/errors"
)

// maxIDLength matches the varchar(64) identifier columns.
const maxIDLength = 64

// PathID returns a required identifier from the chi route parameters.
func PathID(r *http.Request, name string) (string, error) {
	value := strings.TrimSpace(chi.URLParam(r, name))
	if value == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "path parameter required").WithDetails(map[string]any{"field": name})
	}
	if !validEntityID(value) {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "path parameter invalid").WithDetails(map[string]any{"field": name, "max": maxIDLength})
	}
	return value, nil
}

func validEntityID(value string) bool {
	value = strings.TrimSpace(value)
	return value != "" && len(value) <= maxIDLength && !strings.ContainsAny(value, " \t\r\n")
}
