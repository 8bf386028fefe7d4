package handlers

import (
	"example.com/backstage/services/fleet/domain"
	"example.com/backstage/services/fleet/repository"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// ListOptions are the equality filters, paging and sort of a list request
type ListOptions struct {
	Filters map[string]string
	Limit   int
	Offset  int
	SortBy  string
	Desc    bool
}

// listSpec declares which columns a list operation may filter and sort on
type listSpec struct {
	filters     []string
	sorts       []string
	defaultSort string
	defaultDesc bool
}

func (s listSpec) query(opts ListOptions) (repository.Query, error) {
	q := repository.Query{
		Where:   make(map[string]interface{}, len(opts.Filters)),
		OrderBy: s.defaultSort,
		Desc:    s.defaultDesc,
		Limit:   opts.Limit,
		Offset:  opts.Offset,
	}

	for column, value := range opts.Filters {
		if !contains(s.filters, column) {
			return repository.Query{}, domain.Validation("cannot filter on %s", column)
		}
		q.Where[column] = value
	}

	if opts.SortBy != "" {
		if !contains(s.sorts, opts.SortBy) {
			return repository.Query{}, domain.Validation("cannot sort on %s", opts.SortBy)
		}
		q.OrderBy = opts.SortBy
		q.Desc = opts.Desc
	}

	if q.Limit <= 0 {
		q.Limit = defaultListLimit
	}
	if q.Limit > maxListLimit {
		q.Limit = maxListLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	return q, nil
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
