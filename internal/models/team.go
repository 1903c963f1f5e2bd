package models

import "time"

// Team groups participants for team-channel routing.
type Team struct {
	ID        int       `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// TeamMember assigns one participant to a team. A participant belongs to at
// most one team at a time.
type TeamMember struct {
	TeamID        int    `db:"team_id" json:"team_id"`
	ParticipantID string `db:"participant_id" json:"participant_id"`
}

// Position is a participant's world location, used for proximity routing.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}
