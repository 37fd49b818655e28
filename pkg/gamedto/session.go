// Package gamedto holds the JSON shapes the admin API returns.
package gamedto

import "time"

type Move struct {
	Round  int    `json:"round"`
	Slot   string `json:"slot"`
	Player string `json:"player,omitempty"`
	Points int    `json:"points"`
}

type Session struct {
	ID        string            `json:"id"`
	Realm     string            `json:"realm"`
	Kind      string            `json:"kind"`
	Mode      string            `json:"mode"`
	Primary   string            `json:"primary"`
	Secondary string            `json:"secondary,omitempty"`
	Names     map[string]string `json:"names,omitempty"`
	Turn      string            `json:"turn"`
	Round     int               `json:"round"`
	Scores    map[string]int    `json:"scores"`
	Moves     []Move            `json:"moves"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

type Challenge struct {
	ID         string    `json:"id"`
	Realm      string    `json:"realm"`
	Kind       string    `json:"kind"`
	Challenger string    `json:"challenger"`
	Challenged string    `json:"challenged"`
	ExpiresAt  time.Time `json:"expires_at"`
}
