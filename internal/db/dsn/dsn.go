// Package dsn builds data source names per database engine.
package dsn

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/prompt-manager/prompt-manager/internal/config"
)

// Create builds the Data Source Name from the configuration.
func Create(cfg *config.Config) string {
	db := cfg.DB

	switch db.GormEngine {
	case config.EnginePostgres:
		out := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s",
			db.Host,
			db.Port,
			db.User,
			db.Password,
			db.Name,
		)
		if db.Extras != "" {
			out += " " + db.Extras
		}

		return out
	case config.EngineMySQL:
		out := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s",
			db.User,
			db.Password,
			db.Host,
			db.Port,
			db.Name,
		)
		if db.Extras != "" {
			out += "?" + db.Extras
		}

		return out
	default:
		// glebarez/sqlite takes a file path with optional pragmas.
		pragmas := url.Values{}
		pragmas.Add("_pragma", "foreign_keys(1)")
		pragmas.Add("_pragma", "busy_timeout(5000)")

		if db.Extras != "" {
			return db.Path + "?" + strings.TrimPrefix(db.Extras, "?")
		}

		return db.Path + "?" + pragmas.Encode()
	}
}
