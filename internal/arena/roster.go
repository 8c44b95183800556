package arena

import (
	"context"
	"database/sql"
)

// PostgresRoster 报名表在 Postgres 里，锦标赛服务负责写，这里只读
type PostgresRoster struct {
	db *sql.DB
}

func NewPostgresRoster(db *sql.DB) *PostgresRoster {
	return &PostgresRoster{db: db}
}

func (r *PostgresRoster) Entries(ctx context.Context, tournamentID string) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id, user_name, rating, in_game FROM tournament_players WHERE tournament_id = $1`,
		tournamentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.UserID, &e.UserName, &e.Rating, &e.InGame); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
