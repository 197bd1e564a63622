package report

import (
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// NewReportRepository creates a repository for persisted run records.
func NewReportRepository(db *bun.DB) repository.Repository[*Record] {
	return repository.MustNewRepository(db, repository.ModelHandlers[*Record]{
		NewRecord: func() *Record { return &Record{} },
		GetID: func(record *Record) uuid.UUID {
			return record.ID
		},
		SetID: func(record *Record, id uuid.UUID) {
			record.ID = id
		},
		GetIdentifier: func() string {
			return "run_id"
		},
		GetIdentifierValue: func(record *Record) string {
			return record.RunID
		},
	})
}
