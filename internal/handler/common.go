package handler // handler defines http handlers

import (
	"errors"  // errors provides the sentinel used in getUserID
	"strconv" // strconv converts strings to numeric types

	"github.com/labstack/echo/v4" // echo defines request context types
)

// getUserID extracts the user_id from echo.Context and converts it to uint64.
// The JWT middleware stores the token's subject claim under "user_id"; the
// exact Go type depends on how the claim was encoded, so all plausible
// shapes are accepted here.
func getUserID(c echo.Context) (uint64, error) {
	v := c.Get("user_id")
	switch t := v.(type) {
	case uint64:
		return t, nil
	case int:
		return uint64(t), nil
	case int64:
		return uint64(t), nil
	case float64:
		return uint64(t), nil
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, errors.New("invalid user_id in context")
}

// pageParams parses ?page= and ?per_page= with the listing defaults:
// page starts at 1, per_page defaults to 10 and is capped at 20.
func pageParams(c echo.Context) (page, perPage int) {
	page = 1
	perPage = 10
	if raw := c.QueryParam("page"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 1 {
			page = n
		}
	}
	if raw := c.QueryParam("per_page"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 1 {
			perPage = n
		}
	}
	if perPage > 20 {
		perPage = 20
	}
	return page, perPage
}

// totalPages computes pagination metadata for a count and page size.
func totalPages(totalItems, perPage int) int {
	if totalItems == 0 {
		return 0
	}
	return (totalItems + perPage - 1) / perPage
}
