package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/aiwallpaper/internal/dbx"
	"github.com/dmitrijs2005/aiwallpaper/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/aiwallpaper/internal/server/repositories/users"
	"github.com/dmitrijs2005/aiwallpaper/internal/server/repositories/wallpapers"
)

// RepositoryManager vends repositories bound to a *sql.DB or a *sql.Tx so
// services can run several of them inside one transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
	Wallpapers(db dbx.DBTX) wallpapers.Repository
}
