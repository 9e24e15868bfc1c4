package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMigrateURL(t *testing.T) {
	tests := []struct {
		dsn  string
		want string
	}{
		{dsn: "postgres://u:p@db:5432/tix?sslmode=disable", want: "pgx5://u:p@db:5432/tix?sslmode=disable"},
		{dsn: "postgresql://u:p@db/tix", want: "pgx5://u:p@db/tix"},
		{dsn: "pgx5://u:p@db/tix", want: "pgx5://u:p@db/tix"},
	}

	for _, tt := range tests {
		t.Run(tt.dsn, func(t *testing.T) {
			assert.Equal(t, tt.want, migrateURL(tt.dsn))
		})
	}
}
