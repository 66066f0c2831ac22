package app

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/pulsemetrics/engage-engine/migrations"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var dbClient *sqlx.DB

// DB returns the global PostgreSQL client
func DB() *sqlx.DB {
	return dbClient
}

func initPostgres() {
	hostname := viper.GetString("POSTGRESQL_HOSTNAME")
	port := viper.GetString("POSTGRESQL_PORT")
	dbname := viper.GetString("POSTGRESQL_DBNAME")
	user := viper.GetString("POSTGRESQL_USERNAME")
	password := viper.GetString("POSTGRESQL_PASSWORD")

	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		hostname, port, user, password, dbname)

	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		zap.L().Fatal("main.DbConnection:", zap.Error(err))
	}
	if err = db.Ping(); err != nil {
		zap.L().Fatal("main.DbConnection.Ping:", zap.Error(err))
	}
	db.SetMaxOpenConns(viper.GetInt("POSTGRESQL_CONN_POOL_MAX_OPEN"))
	db.SetMaxIdleConns(viper.GetInt("POSTGRESQL_CONN_POOL_MAX_IDLE"))
	db.SetConnMaxLifetime(viper.GetDuration("POSTGRESQL_CONN_MAX_LIFETIME"))
	dbClient = db

	zap.L().Info("Postgres connection initialized",
		zap.String("host", hostname),
		zap.String("port", port),
		zap.String("dbname", dbname),
		zap.String("user", user),
	)

	// Migrate the database
	if viper.GetBool("POSTGRESQL_MIGRATION_ON_STARTUP") {
		zap.L().Info("Migrating database")
		if err := migrations.Migrate(db.DB); err != nil {
			zap.L().Fatal("Error migrating database", zap.Error(err))
		}
	} else {
		zap.L().Info("Skipping database migration")
	}
}
