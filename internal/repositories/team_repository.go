package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"chat-broker/internal/models"
)

var ErrTeamNotFound = errors.New("team not found")

// TeamRepository is the membership source consumed by team-channel routing.
// The broker never owns membership; it only asks "same team as".
type TeamRepository interface {
	CreateTeam(ctx context.Context, name string) (models.Team, error)
	AssignMember(ctx context.Context, teamID int, participantID string) error
	RemoveMember(ctx context.Context, participantID string) error
	TeamOf(ctx context.Context, participantID string) (models.Team, error)
	SameTeam(ctx context.Context, a, b string) (bool, error)
}

// TeamRepo is a sqlx-backed repository.
type TeamRepo struct {
	db *sqlx.DB
}

// NewTeamRepo constructs TeamRepo.
func NewTeamRepo(db *sqlx.DB) *TeamRepo {
	return &TeamRepo{db: db}
}

// CreateTeam inserts a team and returns the stored row.
func (r *TeamRepo) CreateTeam(ctx context.Context, name string) (models.Team, error) {
	var team models.Team
	err := r.db.QueryRowxContext(ctx, `INSERT INTO teams (name) VALUES ($1) RETURNING id, name, created_at`, name).
		Scan(&team.ID, &team.Name, &team.CreatedAt)
	return team, err
}

// AssignMember puts a participant on a team, replacing any prior assignment.
func (r *TeamRepo) AssignMember(ctx context.Context, teamID int, participantID string) error {
	res, err := r.db.ExecContext(ctx, `INSERT INTO team_members (team_id, participant_id)
        SELECT id, $2 FROM teams WHERE id=$1
        ON CONFLICT (participant_id) DO UPDATE SET team_id = EXCLUDED.team_id`, teamID, participantID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrTeamNotFound
	}
	return nil
}

// RemoveMember drops a participant's team assignment. Unknown participants
// are a no-op.
func (r *TeamRepo) RemoveMember(ctx context.Context, participantID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM team_members WHERE participant_id=$1`, participantID)
	return err
}

// TeamOf returns the participant's team.
func (r *TeamRepo) TeamOf(ctx context.Context, participantID string) (models.Team, error) {
	var team models.Team
	err := r.db.GetContext(ctx, &team, `SELECT t.id, t.name, t.created_at
        FROM teams t JOIN team_members m ON m.team_id = t.id
        WHERE m.participant_id=$1`, participantID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Team{}, ErrTeamNotFound
	}
	return team, err
}

// SameTeam reports whether both participants currently share a team. Asking
// about the same id twice reports whether that participant has any team at
// all, which is how the router probes resolvability.
func (r *TeamRepo) SameTeam(ctx context.Context, a, b string) (bool, error) {
	var same bool
	err := r.db.GetContext(ctx, &same, `SELECT EXISTS (
        SELECT 1 FROM team_members m1 JOIN team_members m2 ON m1.team_id = m2.team_id
        WHERE m1.participant_id=$1 AND m2.participant_id=$2)`, a, b)
	return same, err
}
