package domain

// Engine identifies a supported database engine. Engine values are the
// exact strings accepted in the baktainer.db.engine label.
type Engine string

const (
	EngineMySQL      Engine = "mysql"
	EngineMariaDB    Engine = "mariadb"
	EnginePostgres   Engine = "postgres"
	EnginePostgreSQL Engine = "postgresql"
	EngineSQLite     Engine = "sqlite"
	EngineMongoDB    Engine = "mongodb"
)

// SupportedEngines lists the engines LabelSchema accepts in the
// baktainer.db.engine label (the Strategy factory may register more).
var SupportedEngines = map[Engine]bool{
	EngineMySQL:      true,
	EngineMariaDB:    true,
	EnginePostgres:   true,
	EnginePostgreSQL: true,
	EngineSQLite:     true,
}
