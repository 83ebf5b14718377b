package validators

import (
	"math"
	"net/http"
	"strconv"
	"strings"

	pkgerrors "github.com/angelmondragon/archivemint-backend/pkg/errors"
)

// ParseQueryFloat reads a non-negative finite number; an absent parameter yields zero.
func ParseQueryFloat(r *http.Request, key string) (float64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	switch {
	case err != nil, math.IsNaN(value), math.IsInf(value, 0):
		return 0, pkgerrors.New(pkgerrors.CodeValidation, key+" must be a finite number").WithDetails(map[string]any{"field": key})
	case value < 0:
		return 0, pkgerrors.New(pkgerrors.CodeValidation, key+" must not be negative").WithDetails(map[string]any{"field": key})
	}
	return value, nil
}
