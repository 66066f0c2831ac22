package rule

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
)

const table = "rules_v1"

// PostgresRepository is a repository containing the automation rules based on
// a PSQL database and implementing the repository interface
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

// Create creates a new rule in the repository
func (r *PostgresRepository) Create(rule Rule) (int64, error) {
	timestamp := time.Now().Truncate(1 * time.Millisecond).UTC()

	platformsData, err := json.Marshal(rule.Platforms)
	if err != nil {
		return -1, errors.New("couldn't marshal the rule platforms: " + err.Error())
	}
	typesData, err := json.Marshal(rule.InteractionTypes)
	if err != nil {
		return -1, errors.New("couldn't marshal the rule interaction types: " + err.Error())
	}
	conditionsData, err := json.Marshal(rule.Conditions)
	if err != nil {
		return -1, errors.New("couldn't marshal the rule conditions: " + err.Error())
	}
	actionData, err := json.Marshal(rule.Action)
	if err != nil {
		return -1, errors.New("couldn't marshal the rule action: " + err.Error())
	}

	var id int64
	statement := r.newStatement().
		Insert(table).
		Columns("name", "scope", "priority", "enabled", "platforms", "interaction_types", "conditions", "action", "last_modified").
		Values(rule.Name, rule.Scope, rule.Priority, rule.Enabled, string(platformsData), string(typesData), string(conditionsData), string(actionData), timestamp).
		Suffix("RETURNING \"id\"")

	err = statement.QueryRow().Scan(&id)
	if err != nil {
		return -1, errors.New("couldn't query the database: " + err.Error())
	}
	return id, nil
}

// Get search and returns a rule from the repository by its id
func (r *PostgresRepository) Get(id int64) (Rule, bool, error) {
	rows, err := r.newStatement().
		Select("id", "name", "scope", "priority", "enabled", "platforms", "interaction_types", "conditions", "action").
		From(table).
		Where(sq.Eq{"id": id}).
		Query()
	if err != nil {
		return Rule{}, false, errors.New("couldn't retrieve the rule with id: " + fmt.Sprint(id) + " : " + err.Error())
	}
	defer rows.Close()

	if rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return Rule{}, false, err
		}
		return rule, true, nil
	}
	return Rule{}, false, nil
}

// GetByName search and returns a rule from the repository by its name
func (r *PostgresRepository) GetByName(name string) (Rule, bool, error) {
	rows, err := r.newStatement().
		Select("id", "name", "scope", "priority", "enabled", "platforms", "interaction_types", "conditions", "action").
		From(table).
		Where(sq.Eq{"name": name}).
		Query()
	if err != nil {
		return Rule{}, false, errors.New("couldn't retrieve the rule with name: " + name + " : " + err.Error())
	}
	defer rows.Close()

	if rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return Rule{}, false, err
		}
		return rule, true, nil
	}
	return Rule{}, false, nil
}

// Update updates a rule in the repository
func (r *PostgresRepository) Update(rule Rule) error {
	timestamp := time.Now().Truncate(1 * time.Millisecond).UTC()

	platformsData, err := json.Marshal(rule.Platforms)
	if err != nil {
		return errors.New("couldn't marshal the rule platforms: " + err.Error())
	}
	typesData, err := json.Marshal(rule.InteractionTypes)
	if err != nil {
		return errors.New("couldn't marshal the rule interaction types: " + err.Error())
	}
	conditionsData, err := json.Marshal(rule.Conditions)
	if err != nil {
		return errors.New("couldn't marshal the rule conditions: " + err.Error())
	}
	actionData, err := json.Marshal(rule.Action)
	if err != nil {
		return errors.New("couldn't marshal the rule action: " + err.Error())
	}

	result, err := r.newStatement().
		Update(table).
		Set("name", rule.Name).
		Set("scope", rule.Scope).
		Set("priority", rule.Priority).
		Set("enabled", rule.Enabled).
		Set("platforms", string(platformsData)).
		Set("interaction_types", string(typesData)).
		Set("conditions", string(conditionsData)).
		Set("action", string(actionData)).
		Set("last_modified", timestamp).
		Where(sq.Eq{"id": rule.ID}).
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

// Delete deletes a rule from the repository by its id
func (r *PostgresRepository) Delete(id int64) error {
	result, err := r.newStatement().
		Delete(table).
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
		return errors.New("no row deleted (or multiple row deleted) instead of 1 row")
	}
	return nil
}

// GetAll returns all rules of a scope from the repository (all scopes when empty)
func (r *PostgresRepository) GetAll(scope string) (map[int64]Rule, error) {
	return r.getAll(scope, false)
}

// GetAllEnabled returns the enabled rules of a scope, the read-only snapshot
// consumed by one scheduling pass
func (r *PostgresRepository) GetAllEnabled(scope string) (map[int64]Rule, error) {
	return r.getAll(scope, true)
}

func (r *PostgresRepository) getAll(scope string, enabledOnly bool) (map[int64]Rule, error) {
	statement := r.newStatement().
		Select("id", "name", "scope", "priority", "enabled", "platforms", "interaction_types", "conditions", "action").
		From(table)
	if scope != "" {
		statement = statement.Where(sq.Eq{"scope": scope})
	}
	if enabledOnly {
		statement = statement.Where(sq.Eq{"enabled": true})
	}

	rows, err := statement.Query()
	if err != nil {
		return nil, errors.New("couldn't query the database: " + err.Error())
	}
	defer rows.Close()

	rules := make(map[int64]Rule)
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules[rule.ID] = rule
	}
	return rules, nil
}

func scanRule(rows *sql.Rows) (Rule, error) {
	var rule Rule
	var platformsData, typesData, conditionsData, actionData string

	err := rows.Scan(&rule.ID, &rule.Name, &rule.Scope, &rule.Priority, &rule.Enabled, &platformsData, &typesData, &conditionsData, &actionData)
	if err != nil {
		return Rule{}, errors.New("couldn't scan the retrieved data: " + err.Error())
	}

	if err = json.Unmarshal([]byte(platformsData), &rule.Platforms); err != nil {
		return Rule{}, errors.New("couldn't unmarshal the rule platforms: " + err.Error())
	}
	if err = json.Unmarshal([]byte(typesData), &rule.InteractionTypes); err != nil {
		return Rule{}, errors.New("couldn't unmarshal the rule interaction types: " + err.Error())
	}
	if err = json.Unmarshal([]byte(conditionsData), &rule.Conditions); err != nil {
		return Rule{}, errors.New("couldn't unmarshal the rule conditions: " + err.Error())
	}
	if err = json.Unmarshal([]byte(actionData), &rule.Action); err != nil {
		return Rule{}, errors.New("couldn't unmarshal the rule action: " + err.Error())
	}
	return rule, nil
}
