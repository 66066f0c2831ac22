package interaction

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const table = "interactions_v1"

// PostgresRepository is a repository containing the inbound interactions based
// on a PSQL database and implementing the repository interface
type PostgresRepository struct {
	conn *sqlx.DB
}

// NewPostgresRepository returns a new instance of PostgresRepository
func NewPostgresRepository(dbClient *sqlx.DB) Repository {
	r := PostgresRepository{
		conn: dbClient,
	}
	var ifm Repository = &r
	return ifm
}

// newStatement creates a new statement builder with Dollar format
func (r *PostgresRepository) newStatement() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(sq.Dollar).RunWith(r.conn.DB)
}

// Create creates a new interaction in the repository
func (r *PostgresRepository) Create(interaction Interaction) (string, error) {
	if interaction.ID == "" {
		interaction.ID = uuid.New().String()
	}
	if interaction.CreatedAt.IsZero() {
		interaction.CreatedAt = time.Now().Truncate(1 * time.Millisecond).UTC()
	}

	metadataData, err := json.Marshal(interaction.Metadata)
	if err != nil {
		return "", errors.New("couldn't marshal the interaction metadata: " + err.Error())
	}

	_, err = r.newStatement().
		Insert(table).
		Columns("id", "scope", "platform", "type", "text", "author_id", "author_name", "channel_id", "metadata", "action_status", "action_detail", "created_at").
		Values(interaction.ID, interaction.Scope, interaction.Platform, interaction.Type, interaction.Text,
			interaction.AuthorID, interaction.AuthorName, interaction.ChannelID, string(metadataData),
			interaction.ActionStatus, interaction.ActionDetail, interaction.CreatedAt).
		Exec()
	if err != nil {
		return "", errors.New("couldn't query the database: " + err.Error())
	}
	return interaction.ID, nil
}

// Get search and returns an interaction from the repository by its id
func (r *PostgresRepository) Get(id string) (Interaction, bool, error) {
	rows, err := r.selectStatement().
		Where(sq.Eq{"id": id}).
		Query()
	if err != nil {
		return Interaction{}, false, errors.New("couldn't retrieve the interaction with id: " + id + " : " + err.Error())
	}
	defer rows.Close()

	if rows.Next() {
		interaction, err := scanInteraction(rows)
		if err != nil {
			return Interaction{}, false, err
		}
		return interaction, true, nil
	}
	return Interaction{}, false, nil
}

// GetAll returns interactions of a scope, optionally filtered on processed state
func (r *PostgresRepository) GetAll(scope string, processed *bool, limit int) ([]Interaction, error) {
	statement := r.selectStatement()
	if scope != "" {
		statement = statement.Where(sq.Eq{"scope": scope})
	}
	if processed != nil {
		if *processed {
			statement = statement.Where("processed_by_rule_id IS NOT NULL")
		} else {
			statement = statement.Where("processed_by_rule_id IS NULL")
		}
	}
	if limit > 0 {
		statement = statement.Limit(uint64(limit))
	}

	rows, err := statement.OrderBy("created_at").Query()
	if err != nil {
		return nil, errors.New("couldn't query the database: " + err.Error())
	}
	defer rows.Close()

	interactions := make([]Interaction, 0)
	for rows.Next() {
		interaction, err := scanInteraction(rows)
		if err != nil {
			return nil, err
		}
		interactions = append(interactions, interaction)
	}
	return interactions, nil
}

// GetAllUnprocessed returns the oldest unprocessed interactions of a scope,
// the batch consumed by one scheduling pass
func (r *PostgresRepository) GetAllUnprocessed(scope string, limit int) ([]Interaction, error) {
	unprocessed := false
	return r.GetAll(scope, &unprocessed, limit)
}

// TryCommit atomically commits the interaction to the given rule. It returns
// false without error when a concurrent writer already committed the
// interaction (the conditional update is the database-level compare-and-set).
func (r *PostgresRepository) TryCommit(id string, ruleID int64, ts time.Time) (bool, error) {
	result, err := r.newStatement().
		Update(table).
		Set("processed_by_rule_id", ruleID).
		Set("processed_at", ts).
		Set("action_status", ActionStatusPending).
		Where(sq.Eq{"id": id}).
		Where("processed_by_rule_id IS NULL").
		Exec()
	if err != nil {
		return false, errors.New("couldn't query the database: " + err.Error())
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, errors.New("couldn't get the number of affected rows: " + err.Error())
	}
	return affected == 1, nil
}

// UpdateActionStatus stores the action executor outcome for an interaction
func (r *PostgresRepository) UpdateActionStatus(id string, status string, detail string) error {
	result, err := r.newStatement().
		Update(table).
		Set("action_status", status).
		Set("action_detail", detail).
		Where(sq.Eq{"id": id}).
		Exec()
	if err != nil {
		return errors.New("couldn't query the database: " + err.Error())
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return errors.New("couldn't get the number of affected rows: " + err.Error())
	}
	if affected != 1 {
		return errors.New("no row updated (or multiple row updated) instead of 1 row")
	}
	return nil
}

func (r *PostgresRepository) selectStatement() sq.SelectBuilder {
	return r.newStatement().
		Select("id", "scope", "platform", "type", "text", "author_id", "author_name", "channel_id",
			"metadata", "action_status", "action_detail", "processed_by_rule_id", "processed_at", "created_at").
		From(table)
}

func scanInteraction(rows *sql.Rows) (Interaction, error) {
	var interaction Interaction
	var metadataData string
	var processedByRuleID sql.NullInt64
	var processedAt sql.NullTime

	err := rows.Scan(&interaction.ID, &interaction.Scope, &interaction.Platform, &interaction.Type,
		&interaction.Text, &interaction.AuthorID, &interaction.AuthorName, &interaction.ChannelID,
		&metadataData, &interaction.ActionStatus, &interaction.ActionDetail,
		&processedByRuleID, &processedAt, &interaction.CreatedAt)
	if err != nil {
		return Interaction{}, errors.New("couldn't scan the retrieved data: " + err.Error())
	}

	if metadataData != "" {
		if err = json.Unmarshal([]byte(metadataData), &interaction.Metadata); err != nil {
			return Interaction{}, errors.New("couldn't unmarshal the interaction metadata: " + err.Error())
		}
	}
	if processedByRuleID.Valid {
		interaction.ProcessedByRuleID = &processedByRuleID.Int64
	}
	if processedAt.Valid {
		ts := processedAt.Time
		interaction.ProcessedAt = &ts
	}
	return interaction, nil
}
