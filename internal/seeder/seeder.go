package seeders

import (
	"time"

	"github.com/trustbond/api/internal/repository"
)

const defaultTimeout = 5 * time.Second

type Seeder struct {
	DB    repository.Database
	Admin AdminAccount
}

func New(DB repository.Database, admin AdminAccount) *Seeder {
	return &Seeder{
		DB:    DB,
		Admin: admin,
	}
}

func (seeder *Seeder) Run() error {
	return seeder.seedAdmin()
}
