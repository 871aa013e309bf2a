package handler

import (
	"context"
	"database/sql"
	"net/http"
	"strconv"

	"github.com/jmoiron/sqlx"
)

const (
	defaultPageLimit = 10
	maxPageLimit     = 100
	// keeps (page-1)*limit far from overflowing into a negative OFFSET
	maxPage = 100_000
)

// TxBeginner starts the database transactions handlers use when more than
// one table changes together.
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// EventPublisher puts a JSON message on the event stream.
type EventPublisher interface {
	PublishJSON(topic, key string, v any) error
}

type queryStringValues struct {
	Page   int
	Limit  int
	Offset int
	Status string
	Role   string
}

func retrieveUrlQueryValues(r *http.Request) *queryStringValues {
	var queryValues = &queryStringValues{}

	// Parse pagination params
	limitStr := r.URL.Query().Get("limit")
	pageStr := r.URL.Query().Get("page")

	// Default pagination values
	page := 1
	limit := defaultPageLimit

	if limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 {
			limit = min(parsedLimit, maxPageLimit)
		}
	}
	queryValues.Limit = limit

	if pageStr != "" {
		if parsedPage, err := strconv.Atoi(pageStr); err == nil && parsedPage >= 1 {
			page = min(parsedPage, maxPage)
		}
	}
	queryValues.Page = page
	queryValues.Offset = (page - 1) * limit

	queryValues.Status = r.URL.Query().Get("status")
	queryValues.Role = r.URL.Query().Get("role")

	return queryValues
}

func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}
