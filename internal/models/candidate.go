package models

import (
	"strconv"
	"time"
)

// Account is one set of portal credentials. Label is shown in notifications.
type Account struct {
	Email    string `yaml:"email" json:"email"`
	Password string `yaml:"-" json:"-"`
	Label    string `yaml:"label" json:"label"`
}

// Enabled reports whether the account has credentials to log in with
func (a Account) Enabled() bool {
	return a.Email != ""
}

// Candidate is one applicant row scraped from a vacancy page.
// Optional fields stay nil when the page has no matching element.
type Candidate struct {
	ID               string  `json:"id"`
	Account          string  `json:"account"`
	VacancyName      string  `json:"vacancy_name"`
	Name             *string `json:"name"`
	Phone            *string `json:"phone"`
	Age              *string `json:"age"`
	Rank             *string `json:"rank"`
	CombatExperience *string `json:"combat_experience"`
	AWOL             *string `json:"awol"`
	MilitaryTraining *string `json:"military_training"`
	CreatedAt        *string `json:"created_at"`
	Source           *string `json:"source"`
}

// Destination is a Telegram chat addressed either by numeric id or by @channel username.
type Destination struct {
	ChatID  int64
	Channel string
}

func (d Destination) String() string {
	if d.Channel != "" {
		return d.Channel
	}
	return strconv.FormatInt(d.ChatID, 10)
}

// Report summarizes a single pipeline run.
type Report struct {
	Skipped   bool      `json:"skipped"`
	Accounts  int       `json:"accounts"`
	Vacancies int       `json:"vacancies"`
	New       int       `json:"new"`
	Sent      int       `json:"sent"`
	Failed    int       `json:"failed"`
	Started   time.Time `json:"started"`
	Finished  time.Time `json:"finished"`
}
