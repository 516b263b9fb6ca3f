package repomanager

import (
	"context"
	"database/sql"

	"github.com/avasilyev-dev/authkeeper/internal/dbx"
	"github.com/avasilyev-dev/authkeeper/internal/server/repositories/otps"
	"github.com/avasilyev-dev/authkeeper/internal/server/repositories/refreshtokens"
	"github.com/avasilyev-dev/authkeeper/internal/server/repositories/users"
)

// RepositoryManager vends repository implementations bound to a DBTX, so
// services can run several repositories inside one transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
	Otps(db dbx.DBTX) otps.Repository
}
