package customers

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Channel names where a customer can reach the pharmacy.
const (
	ChannelTelegram = "telegram"
	ChannelWhatsApp = "whatsapp"
	ChannelAPI      = "api"
)

// Customer is the identity record for a pharmacy customer.
type Customer struct {
	ID                string          `json:"customer_id"`
	Name              string          `json:"name"`
	Email             string          `json:"email,omitempty"`
	Phone             string          `json:"phone,omitempty"`
	TelegramID        string          `json:"telegram_id,omitempty"`
	WhatsAppNumber    string          `json:"whatsapp_number,omitempty"`
	DateOfBirth       *time.Time      `json:"date_of_birth,omitempty"`
	Gender            string          `json:"gender,omitempty"`
	Address           string          `json:"address,omitempty"`
	RegistrationDate  time.Time       `json:"registration_date"`
	LoyaltyPoints     int             `json:"loyalty_points"`
	TotalPurchases    decimal.Decimal `json:"total_purchases"`
	PrescriptionCount int             `json:"prescription_count"`
	MedicalConditions string          `json:"medical_conditions,omitempty"`
	Allergies         string          `json:"allergies,omitempty"`
	PreferredChannel  string          `json:"preferred_channel"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// Age returns whole years since DateOfBirth, subtracting one when this
// year's birthday has not happened yet. ok is false when DateOfBirth is unknown.
func (c *Customer) Age(now time.Time) (age int, ok bool) {
	if c == nil || c.DateOfBirth == nil || c.DateOfBirth.IsZero() {
		return 0, false
	}
	dob := *c.DateOfBirth
	age = now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		age--
	}
	return age, true
}

// DaysSinceRegistration counts calendar days between the registration date and now.
func (c *Customer) DaysSinceRegistration(now time.Time) int {
	if c == nil || c.RegistrationDate.IsZero() {
		return 0
	}
	reg := dateOnly(c.RegistrationDate)
	today := dateOnly(now.In(c.RegistrationDate.Location()))
	return int(today.Sub(reg).Hours() / 24)
}

// HasCondition does a case-insensitive substring match on MedicalConditions.
func (c *Customer) HasCondition(condition string) bool {
	if c == nil || strings.TrimSpace(condition) == "" {
		return false
	}
	return strings.Contains(strings.ToLower(c.MedicalConditions), strings.ToLower(condition))
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Identity is what a channel adapter knows about the person messaging it.
type Identity struct {
	Channel     string
	ExternalID  string
	DisplayName string
	Phone       string
}

// ProfileUpdate carries the mutable profile fields. Nil fields are left unchanged.
type ProfileUpdate struct {
	Name              *string
	Email             *string
	Phone             *string
	DateOfBirth       *time.Time
	Gender            *string
	Address           *string
	MedicalConditions *string
	Allergies         *string
}

// Summary is the profile view attached to every reply context.
type Summary struct {
	CustomerID        string `json:"customer_id"`
	Name              string `json:"name"`
	Age               *int   `json:"age,omitempty"`
	LoyaltyPoints     int    `json:"loyalty_points"`
	TotalPurchases    string `json:"total_purchases"`
	PrescriptionCount int    `json:"prescription_count"`
	MedicalConditions string `json:"medical_conditions,omitempty"`
	Allergies         string `json:"allergies,omitempty"`
	MemberSinceDays   int    `json:"member_since_days"`
}

// Summarize builds the profile summary for c.
func Summarize(c *Customer, now time.Time) Summary {
	if c == nil {
		return Summary{}
	}
	s := Summary{
		CustomerID:        c.ID,
		Name:              c.Name,
		LoyaltyPoints:     c.LoyaltyPoints,
		TotalPurchases:    c.TotalPurchases.StringFixed(2),
		PrescriptionCount: c.PrescriptionCount,
		MedicalConditions: c.MedicalConditions,
		Allergies:         c.Allergies,
		MemberSinceDays:   c.DaysSinceRegistration(now),
	}
	if age, ok := c.Age(now); ok {
		s.Age = &age
	}
	return s
}
