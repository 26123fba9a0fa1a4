package domain

import (
	"strings"
	"time"
)

type User struct {
	ID                 string    `json:"id" dynamodbav:"ID"`
	Username           string    `json:"username" dynamodbav:"Username"`
	Email              string    `json:"email" dynamodbav:"Email"`
	FirstName          string    `json:"first_name" dynamodbav:"FirstName"`
	LastName           string    `json:"last_name" dynamodbav:"LastName"`
	Superuser          bool      `json:"superuser" dynamodbav:"Superuser"`
	CanCreateCompanies bool      `json:"can_create_companies" dynamodbav:"CanCreateCompanies"`
	CreatedAt          time.Time `json:"created_at" dynamodbav:"CreatedAt"`
	UpdatedAt          time.Time `json:"updated_at" dynamodbav:"UpdatedAt"`
}

func (u User) Validate() error {
	if strings.TrimSpace(u.ID) == "" || strings.TrimSpace(u.Username) == "" {
		return ErrInvalidInput
	}
	return nil
}

type Group struct {
	ID        string    `json:"id" dynamodbav:"ID"`
	Name      string    `json:"name" dynamodbav:"Name"`
	CreatedAt time.Time `json:"created_at" dynamodbav:"CreatedAt"`
}

type Company struct {
	ID                 string    `json:"id" dynamodbav:"ID"`
	Name               string    `json:"name" dynamodbav:"Name"`
	Description        string    `json:"description" dynamodbav:"Description"`
	AdminsGroupID      string    `json:"admins_group_id" dynamodbav:"AdminsGroupID"`
	AccountantsGroupID string    `json:"accountants_group_id" dynamodbav:"AccountantsGroupID"`
	CreatedAt          time.Time `json:"created_at" dynamodbav:"CreatedAt"`
	UpdatedAt          time.Time `json:"updated_at" dynamodbav:"UpdatedAt"`
}

func (c Company) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrInvalidInput
	}
	return nil
}

// GroupFor returns the company group bound to role.
func (c Company) GroupFor(role Role) string {
	switch role {
	case RoleAdmins:
		return c.AdminsGroupID
	case RoleAccountants:
		return c.AccountantsGroupID
	}
	return ""
}

// VatReport holds the tax totals of a company over a cashflow date range.
type VatReport struct {
	CompanyID string    `json:"company"`
	After     time.Time `json:"after"`
	Before    time.Time `json:"before"`
	VatIn     float64   `json:"vatIn"`
	VatOut    float64   `json:"vatOut"`
}
