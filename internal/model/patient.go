package model

import (
	"time"

	"github.com/google/uuid"
)

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// Patient is the single appointment record: contact, profile, and scheduling fields in one row.
type Patient struct {
	Base
	Username        string     `db:"username" json:"username"`
	Phone           string     `db:"phone" json:"phone"`
	Email           string     `db:"email" json:"email"`
	Address         *string    `db:"address" json:"address,omitempty"`
	DOB             *time.Time `db:"dob" json:"dob,omitempty"`
	Gender          *Gender    `db:"gender" json:"gender,omitempty"`
	Doctor          *string    `db:"doctor" json:"doctor,omitempty"`
	Reason          *string    `db:"reason" json:"reason,omitempty"`
	Comment         *string    `db:"comment" json:"comment,omitempty"`
	AppointmentDate *time.Time `db:"appointment_date" json:"appointment_date,omitempty"`
	BookedOn        *time.Time `db:"booked_on" json:"booked_on,omitempty"`
	Status          Status     `db:"status" json:"status,omitempty"`
}

// ProfileComplete reports whether registration has been done.
func (p *Patient) ProfileComplete() bool {
	return p.DOB != nil
}

type IntakeRequest struct {
	Username string `json:"username" validate:"required,min=2"`
	Phone    string `json:"phone" validate:"required,phone"`
	Email    string `json:"email" validate:"required,email"`
}

type RegistrationRequest struct {
	Address string `json:"address" validate:"required,min=12,max=160"`
	DOB     Date   `json:"dob" validate:"-"`
	Gender  Gender `json:"gender" validate:"required,oneof=male female"`
}

type BookingRequest struct {
	Doctor          string    `json:"doctor" validate:"required,doctor"`
	Reason          string    `json:"reason" validate:"required,min=5,max=200"`
	Comment         string    `json:"comment" validate:"required,min=5,max=200"`
	AppointmentDate time.Time `json:"appointment_date" validate:"required"`
}

// Route names the next page of the patient flow.
type Route string

const (
	RouteRegistration Route = "registration"
	RouteBooking      Route = "booking"
	RouteSuccess      Route = "success"
)

type FlowResult struct {
	Route   Route    `json:"route"`
	Phone   string   `json:"phone"`
	Patient *Patient `json:"patient"`
}

// ProfileSummary is what the registration page greets the patient with.
type ProfileSummary struct {
	Username        string `json:"username"`
	Phone           string `json:"phone"`
	ProfileComplete bool   `json:"profile_complete"`
}

// AppointmentDetails is shown on the booking success page.
type AppointmentDetails struct {
	Doctor          *string    `db:"doctor" json:"doctor"`
	AppointmentDate *time.Time `db:"appointment_date" json:"appointment_date"`
	Status          Status     `db:"status" json:"status"`
}

// AppointmentSummary is one row of the admin listing.
type AppointmentSummary struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	Username        string     `db:"username" json:"username"`
	Doctor          *string    `db:"doctor" json:"doctor"`
	AppointmentDate *time.Time `db:"appointment_date" json:"appointment_date"`
	BookedOn        *time.Time `db:"booked_on" json:"booked_on"`
	Status          Status     `db:"status" json:"status"`
	Version         int64      `db:"version" json:"version"`
}

type StatusCounts struct {
	Pending   int `json:"pending"`
	Confirmed int `json:"confirmed"`
	Adjusted  int `json:"adjusted"`
	Total     int `json:"total"`
}
