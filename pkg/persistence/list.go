package persistence

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dukex/stepflow/pkg/models"
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// NormalizeListOptions applies defaults and checks the sort parameters against
// an allowlist, since backends interpolate them into queries.
func NormalizeListOptions(opts ListWorkflowsOptions) (ListWorkflowsOptions, error) {
	if opts.Limit <= 0 || opts.Limit > MaxListLimit {
		opts.Limit = DefaultListLimit
	}

	if opts.Offset < 0 {
		opts.Offset = 0
	}

	if opts.SortBy == "" {
		opts.SortBy = "created_at"
	}

	opts.SortOrder = strings.ToLower(opts.SortOrder)
	if opts.SortOrder == "" {
		opts.SortOrder = "desc"
	}

	switch opts.SortBy {
	case "created_at", "updated_at", "name":
	default:
		return opts, fmt.Errorf("%w: %s", ErrInvalidSortField, opts.SortBy)
	}

	if opts.SortOrder != "asc" && opts.SortOrder != "desc" {
		return opts, fmt.Errorf("%w: %s", ErrInvalidSortOrder, opts.SortOrder)
	}

	return opts, nil
}

// ApplyListOptions filters, sorts and pages documents in memory. It is used by
// backends that cannot query document fields natively.
func ApplyListOptions(docs []*models.Document, opts ListWorkflowsOptions) (*WorkflowListResult, error) {
	opts, err := NormalizeListOptions(opts)
	if err != nil {
		return nil, err
	}

	filtered := make([]*models.Document, 0, len(docs))

	for _, doc := range docs {
		if opts.Status != nil && doc.Status != *opts.Status {
			continue
		}

		if opts.CreatedBy != "" && doc.CreatedBy != opts.CreatedBy {
			continue
		}

		if opts.Name != "" && doc.Name != opts.Name {
			continue
		}

		filtered = append(filtered, doc)
	}

	sortDocuments(filtered, opts.SortBy, opts.SortOrder)

	totalCount := int64(len(filtered))

	if opts.Offset >= len(filtered) {
		return &WorkflowListResult{
			Workflows:   make([]*models.Document, 0),
			TotalCount:  totalCount,
			HasNextPage: false,
		}, nil
	}

	endIdx := min(opts.Offset+opts.Limit, len(filtered))

	return &WorkflowListResult{
		Workflows:   filtered[opts.Offset:endIdx],
		TotalCount:  totalCount,
		HasNextPage: endIdx < len(filtered),
	}, nil
}

func sortDocuments(docs []*models.Document, sortBy, sortOrder string) {
	sort.SliceStable(docs, func(i, j int) bool {
		a, b := docs[i], docs[j]

		if sortOrder == "desc" {
			a, b = b, a
		}

		switch sortBy {
		case "updated_at":
			return a.UpdatedAt.Before(b.UpdatedAt)
		case "name":
			return a.Name < b.Name
		default:
			return a.CreatedAt.Before(b.CreatedAt)
		}
	})
}
