package models

import "time"

// Member is a registered club member. Number is assigned by the store on commit.
type Member struct {
	Number    int       `json:"member_number"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Birthday  time.Time `json:"birthday"`
}
