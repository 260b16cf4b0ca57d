package postgres

import (
	"database/sql"
)

type Storage struct {
	*UserRepository
	*RefreshTokenRepository
}

func NewStorage(db *sql.DB) *Storage {
	return &Storage{
		UserRepository:         NewUserRepository(db),
		RefreshTokenRepository: NewRefreshTokenRepository(db),
	}
}
