package email

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"time"

	"github.com/ziplinepark/canopy/internal/domain"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Service composes booking emails and hands them to a Sender.
type Service struct {
	sender       Sender
	fromAddress  string
	fromName     string
	adminAddress string
	templates    *template.Template
}

// NewService creates a new email service with the embedded templates.
func NewService(sender Sender, fromAddress, fromName, adminAddress string) (*Service, error) {
	tmpl, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse email templates: %w", err)
	}

	return &Service{
		sender:       sender,
		fromAddress:  fromAddress,
		fromName:     fromName,
		adminAddress: adminAddress,
		templates:    tmpl,
	}, nil
}

// bookingEmailData is the template payload for both booking emails.
type bookingEmailData struct {
	BookingRef        string
	CustomerName      string
	CustomerEmail     string
	CustomerPhone     string
	PackageName       string
	ActivityDate      string
	TimeSlot          string
	GuestCount        int32
	TotalAmount       int64
	DiscountAmount    int64
	HasTransfer       bool
	IsPrivateTransfer bool
	HotelName         string
	RoomNumber        string
	NonPlayers        int32
	PrivatePassengers int32
	Addons            []domain.AddonLine
	Status            string
}

// SendBookingConfirmation sends the confirmation email to the customer.
func (s *Service) SendBookingConfirmation(ctx context.Context, d *domain.BookingDetail) error {
	data := newBookingEmailData(d)

	htmlBody, err := s.render("booking_confirmation.html", data)
	if err != nil {
		return fmt.Errorf("failed to render booking confirmation: %w", err)
	}

	msg := &Email{
		To:       []string{d.Customer.Email},
		From:     fmt.Sprintf("%s <%s>", s.fromName, s.fromAddress),
		Subject:  fmt.Sprintf("Booking confirmed - %s", d.Booking.Ref),
		HTMLBody: htmlBody,
		TextBody: fmt.Sprintf(
			"Hi %s,\n\nYour booking %s for %s on %s at %s is confirmed.\nGuests: %d\nTotal: %d THB\n\nSee you in the treetops!",
			d.Customer.FirstName, d.Booking.Ref, d.Booking.PackageName,
			data.ActivityDate, data.TimeSlot, d.Booking.GuestCount, d.Booking.TotalAmount,
		),
	}

	if _, err := s.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("failed to send booking confirmation: %w", err)
	}
	return nil
}

// SendAdminNotification sends the new-booking notification to staff.
// A no-op when no admin address is configured.
func (s *Service) SendAdminNotification(ctx context.Context, d *domain.BookingDetail) error {
	if s.adminAddress == "" {
		return nil
	}

	data := newBookingEmailData(d)

	htmlBody, err := s.render("admin_notification.html", data)
	if err != nil {
		return fmt.Errorf("failed to render admin notification: %w", err)
	}

	msg := &Email{
		To:       []string{s.adminAddress},
		From:     fmt.Sprintf("%s <%s>", s.fromName, s.fromAddress),
		Subject:  fmt.Sprintf("New booking %s - %s, %d guests", d.Booking.Ref, d.Booking.PackageName, d.Booking.GuestCount),
		HTMLBody: htmlBody,
		TextBody: fmt.Sprintf(
			"New booking %s\nCustomer: %s %s (%s)\nPackage: %s\nDate: %s %s\nGuests: %d\nTotal: %d THB",
			d.Booking.Ref, d.Customer.FirstName, d.Customer.LastName, d.Customer.Email,
			d.Booking.PackageName, data.ActivityDate, data.TimeSlot,
			d.Booking.GuestCount, d.Booking.TotalAmount,
		),
	}

	if _, err := s.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("failed to send admin notification: %w", err)
	}
	return nil
}

func (s *Service) render(name string, data bookingEmailData) (string, error) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func newBookingEmailData(d *domain.BookingDetail) bookingEmailData {
	return bookingEmailData{
		BookingRef:        d.Booking.Ref,
		CustomerName:      d.Customer.FirstName + " " + d.Customer.LastName,
		CustomerEmail:     d.Customer.Email,
		CustomerPhone:     d.Customer.Phone,
		PackageName:       d.Booking.PackageName,
		ActivityDate:      formatActivityDate(d.Booking.ActivityDate),
		TimeSlot:          formatTimeSlot(d.Booking.TimeSlot),
		GuestCount:        d.Booking.GuestCount,
		TotalAmount:       d.Booking.TotalAmount,
		DiscountAmount:    d.Booking.Discount,
		HasTransfer:       d.Transport.Mode != domain.TransportNone,
		IsPrivateTransfer: d.Transport.Mode == domain.TransportPrivate,
		HotelName:         d.Transport.HotelName,
		RoomNumber:        d.Transport.RoomNumber,
		NonPlayers:        d.Transport.NonPlayers,
		PrivatePassengers: d.Transport.PrivatePassengers,
		Addons:            d.Addons,
		Status:            string(d.Booking.Status),
	}
}

func formatActivityDate(t time.Time) string {
	return t.Format("Monday, January 2, 2006")
}

// formatTimeSlot turns "08:00" into "8:00 AM".
func formatTimeSlot(slot string) string {
	t, err := time.Parse("15:04", slot)
	if err != nil {
		return slot
	}
	return t.Format("3:04 PM")
}
