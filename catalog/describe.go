package catalog

import (
	"errors"

	"github.com/go-authgate/catalog-admin/api"
)

// Describe turns an error from the client into a message for the operator.
func Describe(err error) string {
	var transportErr *api.TransportError

	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidInput):
		return err.Error()
	case errors.Is(err, api.ErrSessionExpired):
		return "Session expired, please log in again."
	case errors.As(err, &transportErr):
		return "Backend unreachable: " + transportErr.Err.Error()
	case errors.Is(err, api.ErrUnauthorized):
		return "Not logged in or session rejected, please log in."
	case errors.Is(err, api.ErrForbidden):
		return "Access denied (admin role required)."
	case errors.Is(err, api.ErrBadRequest):
		return "Invalid data (name/price)."
	case errors.Is(err, api.ErrNotFound):
		return "Product not found."
	default:
		return "Request failed: " + err.Error()
	}
}
