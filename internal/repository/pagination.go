package repository

import "projector-maintenance-api/internal/model"

// PaginationParams holds pagination parameters for repository queries
type PaginationParams struct {
	Offset int
	Limit  int
}

// PaginatedVisits holds a page of visits plus the total count
type PaginatedVisits struct {
	Items      []model.ServiceVisit
	TotalCount int
}
