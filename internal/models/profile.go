package models

import (
	"strings"
	"time"
)

// Address is the four-level location hierarchy plus street-level detail.
// Only country, state, city and neighborhood take part in scoring.
type Address struct {
	Country       string `json:"country"`
	State         string `json:"state,omitempty"`
	City          string `json:"city,omitempty"`
	Neighborhood  string `json:"neighborhood,omitempty"`
	StreetAddress string `json:"streetAddress,omitempty"`
	PostalCode    string `json:"postalCode,omitempty"`
}

// QueryProfile describes the person being searched for.
type QueryProfile struct {
	ID         int64     `json:"id"`
	OwnerID    int64     `json:"ownerId"`
	FirstName  string    `json:"firstName"`
	MiddleName string    `json:"middleName,omitempty"`
	LastName   string    `json:"lastName"`
	Address    *Address  `json:"address,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// HasName reports whether both first and last name are present.
func (q *QueryProfile) HasName() bool {
	return strings.TrimSpace(q.FirstName) != "" && strings.TrimSpace(q.LastName) != ""
}

// CandidateRecord is a person record that may be matched against a query.
type CandidateRecord struct {
	ID          int64     `json:"id"`
	AccountID   int64     `json:"accountId"`
	FirstName   string    `json:"firstName"`
	MiddleName  string    `json:"middleName,omitempty"`
	LastName    string    `json:"lastName"`
	PhoneNumber string    `json:"phoneNumber,omitempty"`
	Address     *Address  `json:"address,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}
