package handler

import (
	"context"

	"github.com/greenyield/greenyield/internal/api/middleware"
)

// GetGrowerID returns the authenticated grower id from the context.
func GetGrowerID(ctx context.Context) string {
	return middleware.GetGrowerID(ctx)
}
