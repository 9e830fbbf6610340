package store

import (
	"fmt"
	"strings"

	_ "github.com/denisenkom/go-mssqldb"
	"github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
)

// Dialect SQL 方言差异
type Dialect struct {
	Name       string // mysql/sqlserver/sqlite3
	DriverName string

	// outputInserted 为 true 时用 OUTPUT INSERTED.id 取自增 ID（SQL Server 驱动不支持 LastInsertId）
	outputInserted bool
	// namedParams 为 true 时占位符写作 @p1, @p2 ...
	namedParams bool

	ddl []string
}

var (
	// MySQLDialect MySQL
	MySQLDialect = Dialect{
		Name:       "mysql",
		DriverName: "mysql",
		ddl: []string{
			`CREATE TABLE IF NOT EXISTS services (
				id BIGINT AUTO_INCREMENT PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				description TEXT,
				version VARCHAR(50),
				base_url VARCHAR(500),
				is_active BOOLEAN NOT NULL DEFAULT TRUE,
				created_at DATETIME NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS endpoints (
				id BIGINT AUTO_INCREMENT PRIMARY KEY,
				service_id BIGINT NOT NULL,
				path VARCHAR(500) NOT NULL,
				method VARCHAR(10) NOT NULL,
				summary TEXT,
				request_schema LONGTEXT,
				response_schema LONGTEXT,
				parameters LONGTEXT,
				FOREIGN KEY (service_id) REFERENCES services(id) ON DELETE CASCADE
			)`,
			`CREATE TABLE IF NOT EXISTS relationships (
				id BIGINT AUTO_INCREMENT PRIMARY KEY,
				source_endpoint_id BIGINT NOT NULL,
				target_endpoint_id BIGINT NOT NULL,
				relationship_type VARCHAR(50) NOT NULL,
				similarity_score DOUBLE NOT NULL,
				common_fields LONGTEXT,
				relationship_metadata LONGTEXT,
				created_at DATETIME NOT NULL,
				FOREIGN KEY (source_endpoint_id) REFERENCES endpoints(id) ON DELETE CASCADE,
				FOREIGN KEY (target_endpoint_id) REFERENCES endpoints(id) ON DELETE CASCADE
			)`,
		},
	}

	// SQLServerDialect SQL Server
	SQLServerDialect = Dialect{
		Name:           "sqlserver",
		DriverName:     "sqlserver",
		outputInserted: true,
		namedParams:    true,
		ddl: []string{
			`IF OBJECT_ID('services', 'U') IS NULL CREATE TABLE services (
				id BIGINT IDENTITY(1,1) PRIMARY KEY,
				name NVARCHAR(255) NOT NULL,
				description NVARCHAR(MAX),
				version NVARCHAR(50),
				base_url NVARCHAR(500),
				is_active BIT NOT NULL DEFAULT 1,
				created_at DATETIME2 NOT NULL
			)`,
			`IF OBJECT_ID('endpoints', 'U') IS NULL CREATE TABLE endpoints (
				id BIGINT IDENTITY(1,1) PRIMARY KEY,
				service_id BIGINT NOT NULL REFERENCES services(id) ON DELETE CASCADE,
				path NVARCHAR(500) NOT NULL,
				method NVARCHAR(10) NOT NULL,
				summary NVARCHAR(MAX),
				request_schema NVARCHAR(MAX),
				response_schema NVARCHAR(MAX),
				parameters NVARCHAR(MAX)
			)`,
			// SQL Server 不允许两条级联路径指向同一表，关系表不设外键
			`IF OBJECT_ID('relationships', 'U') IS NULL CREATE TABLE relationships (
				id BIGINT IDENTITY(1,1) PRIMARY KEY,
				source_endpoint_id BIGINT NOT NULL,
				target_endpoint_id BIGINT NOT NULL,
				relationship_type NVARCHAR(50) NOT NULL,
				similarity_score FLOAT NOT NULL,
				common_fields NVARCHAR(MAX),
				relationship_metadata NVARCHAR(MAX),
				created_at DATETIME2 NOT NULL
			)`,
		},
	}

	// SQLiteDialect SQLite
	SQLiteDialect = Dialect{
		Name:       "sqlite3",
		DriverName: "sqlite3",
		ddl: []string{
			`CREATE TABLE IF NOT EXISTS services (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				name TEXT NOT NULL,
				description TEXT,
				version TEXT,
				base_url TEXT,
				is_active BOOLEAN NOT NULL DEFAULT 1,
				created_at DATETIME NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS endpoints (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				service_id INTEGER NOT NULL REFERENCES services(id) ON DELETE CASCADE,
				path TEXT NOT NULL,
				method TEXT NOT NULL,
				summary TEXT,
				request_schema TEXT,
				response_schema TEXT,
				parameters TEXT
			)`,
			`CREATE TABLE IF NOT EXISTS relationships (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				source_endpoint_id INTEGER NOT NULL REFERENCES endpoints(id) ON DELETE CASCADE,
				target_endpoint_id INTEGER NOT NULL REFERENCES endpoints(id) ON DELETE CASCADE,
				relationship_type TEXT NOT NULL,
				similarity_score REAL NOT NULL,
				common_fields TEXT,
				relationship_metadata TEXT,
				created_at DATETIME NOT NULL
			)`,
		},
	}
)

// DialectFor 按名称查找方言
func DialectFor(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case "mysql":
		return MySQLDialect, nil
	case "sqlserver", "mssql":
		return SQLServerDialect, nil
	case "sqlite", "sqlite3":
		return SQLiteDialect, nil
	default:
		return Dialect{}, fmt.Errorf("不支持的数据库类型: %s", name)
	}
}

// rebind 把 ? 占位符改写为方言形式
func (d Dialect) rebind(query string) string {
	if !d.namedParams {
		return query
	}
	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteString(fmt.Sprintf("@p%d", n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// normalizeDSN MySQL 需要 parseTime 才能把 DATETIME 扫描为 time.Time
func (d Dialect) normalizeDSN(dsn string) (string, error) {
	if d.Name != MySQLDialect.Name {
		return dsn, nil
	}
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("解析 MySQL 连接字符串失败: %w", err)
	}
	cfg.ParseTime = true
	return cfg.FormatDSN(), nil
}
