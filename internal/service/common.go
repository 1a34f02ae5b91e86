package service

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/hanzong05/aimddlwr/internal/apperr"
	"github.com/hanzong05/aimddlwr/internal/repository"
)

func now() time.Time { return time.Now().UTC() }

// validID reports whether id can name a stored row. Malformed ids are treated as
// missing rather than being sent to the database.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// lookupErr maps a repository lookup failure onto a client-facing error.
func lookupErr(err error, notFound, upstream string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound(notFound)
	}
	return apperr.Upstream(upstream, err)
}

const defaultPageLimit = 20

// Pagination is the page window echoed back with list responses.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// NewPagination clamps a 1-based page and a limit in [1, maxLimit].
func NewPagination(page, limit, maxLimit int) Pagination {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return Pagination{Page: page, Limit: limit}
}

func (p Pagination) window() repository.Page {
	return repository.Page{Limit: p.Limit, Offset: (p.Page - 1) * p.Limit}
}

func (p *Pagination) setTotal(total int) {
	p.Total = total
	p.TotalPages = (total + p.Limit - 1) / p.Limit
}
