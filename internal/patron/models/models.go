// Package models defines patron accounts. A patron row is created on first
// authenticated request and soft-deleted on deactivation; loans and
// notifications reference it by ID and survive it.
package models

import (
	"time"

	id "libripal/pkg/domain"
)

// DefaultReminderDays is when due-date reminders go out when the patron has
// not chosen otherwise: three days before due and one day before due.
var DefaultReminderDays = []int{3, 1}

// MaxReminderLeadDays caps how far ahead of the due date a reminder can be
// scheduled. The whole borrow period is 15 days, so two weeks covers it.
const MaxReminderLeadDays = 14

// Preferences controls which reminder channels a patron receives.
type Preferences struct {
	EmailReminders    bool  `json:"email_reminders"`
	TelegramReminders bool  `json:"telegram_reminders"`
	ReminderDays      []int `json:"reminder_days"`
}

// DefaultPreferences are applied at account creation: email on, telegram off
// until a chat is linked.
func DefaultPreferences() Preferences {
	return Preferences{
		EmailReminders: true,
		ReminderDays:   append([]int{}, DefaultReminderDays...),
	}
}

// Patron is a library account. TelegramChatID is zero until the patron links
// their Telegram account through the bot.
type Patron struct {
	ID             id.PatronID `json:"id"`
	Email          string      `json:"email"`
	FirstName      string      `json:"first_name"`
	LastName       string      `json:"last_name"`
	TelegramChatID int64       `json:"telegram_chat_id,omitempty"`
	Preferences    Preferences `json:"preferences"`
	Active         bool        `json:"active"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// FullName joins the name parts for display.
func (p *Patron) FullName() string {
	if p.LastName == "" {
		return p.FirstName
	}
	return p.FirstName + " " + p.LastName
}
