package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

// Service exposes customer reads to the HTTP layer.
type Service interface {
	List(ctx context.Context) ([]Customer, error)
	GetByID(ctx context.Context, id snowflake.ID) (Customer, error)
}
