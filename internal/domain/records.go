package domain

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Record is a business record owned by exactly one company.
type Record interface {
	RecordID() string
	CompanyRef() string
	Entity() EntityType
	References() References
	Validate() error
}

// References lists the company-scoped objects a record points at. Every reference
// must be visible to the acting user and belong to the record's company.
type References struct {
	BookingTypeID string
	MediaIDs      []string
}

// Dated is implemented by ledger records that carry invoice and cashflow dates.
type Dated interface {
	InvoicedOn() time.Time
	CashflowOn() *time.Time
}

type Sale struct {
	ID            string     `json:"id" dynamodbav:"ID"`
	CompanyID     string     `json:"company" dynamodbav:"CompanyID"`
	BookingTypeID string     `json:"booking_type,omitempty" dynamodbav:"BookingTypeID,omitempty"`
	InvoiceDate   time.Time  `json:"inv_date" dynamodbav:"InvoiceDate"`
	Customer      string     `json:"customer" dynamodbav:"Customer"`
	Project       string     `json:"project" dynamodbav:"Project"`
	VAT           float64    `json:"vat" dynamodbav:"VAT"`
	Net           float64    `json:"net" dynamodbav:"Net"`
	Notes         string     `json:"notes,omitempty" dynamodbav:"Notes,omitempty"`
	CashflowDate  *time.Time `json:"cashflow_date,omitempty" dynamodbav:"CashflowDate,omitempty"`
	InvoiceIDs    []string   `json:"invoice" dynamodbav:"InvoiceIDs,stringset,omitempty"`
	CreatedAt     time.Time  `json:"created_at" dynamodbav:"CreatedAt"`
	UpdatedAt     time.Time  `json:"updated_at" dynamodbav:"UpdatedAt"`
}

func (s Sale) RecordID() string       { return s.ID }
func (s Sale) CompanyRef() string     { return s.CompanyID }
func (s Sale) CreatedOn() time.Time   { return s.CreatedAt }
func (s Sale) Entity() EntityType     { return EntitySale }
func (s Sale) InvoicedOn() time.Time  { return s.InvoiceDate }
func (s Sale) CashflowOn() *time.Time { return s.CashflowDate }
func (s Sale) Gross() float64         { return s.Net * (1 + s.VAT) }
func (s Sale) Tax() float64           { return s.VAT * s.Net }

func (s Sale) References() References {
	return References{BookingTypeID: s.BookingTypeID, MediaIDs: s.InvoiceIDs}
}

// InvoiceNumber is derived from the invoice year and the record id.
func (s Sale) InvoiceNumber() string {
	return fmt.Sprintf("%d%s", s.InvoiceDate.Year(), shortID(s.ID))
}

func (s Sale) Validate() error {
	if s.CompanyID == "" || s.InvoiceDate.IsZero() || s.VAT < 0 {
		return ErrInvalidInput
	}
	return nil
}

func (s Sale) WithIdentity(id string, createdAt, updatedAt time.Time) Sale {
	s.ID, s.CreatedAt, s.UpdatedAt = id, createdAt, updatedAt
	return s
}

func (s Sale) Detach(refID string) (Sale, bool) {
	var changed bool
	s.BookingTypeID, s.InvoiceIDs, changed = detach(s.BookingTypeID, s.InvoiceIDs, refID)
	return s, changed
}

type Purchase struct {
	ID            string     `json:"id" dynamodbav:"ID"`
	CompanyID     string     `json:"company" dynamodbav:"CompanyID"`
	BookingTypeID string     `json:"booking_type,omitempty" dynamodbav:"BookingTypeID,omitempty"`
	InvoiceNumber string     `json:"inv_no" dynamodbav:"InvoiceNumber"`
	InvoiceDate   time.Time  `json:"inv_date" dynamodbav:"InvoiceDate"`
	Biller        string     `json:"biller" dynamodbav:"Biller"`
	VAT           float64    `json:"vat" dynamodbav:"VAT"`
	Net           float64    `json:"net" dynamodbav:"Net"`
	Notes         string     `json:"notes,omitempty" dynamodbav:"Notes,omitempty"`
	CashflowDate  *time.Time `json:"cashflow_date,omitempty" dynamodbav:"CashflowDate,omitempty"`
	InvoiceIDs    []string   `json:"invoice" dynamodbav:"InvoiceIDs,stringset,omitempty"`
	CreatedAt     time.Time  `json:"created_at" dynamodbav:"CreatedAt"`
	UpdatedAt     time.Time  `json:"updated_at" dynamodbav:"UpdatedAt"`
}

func (p Purchase) RecordID() string       { return p.ID }
func (p Purchase) CompanyRef() string     { return p.CompanyID }
func (p Purchase) CreatedOn() time.Time   { return p.CreatedAt }
func (p Purchase) Entity() EntityType     { return EntityPurchase }
func (p Purchase) InvoicedOn() time.Time  { return p.InvoiceDate }
func (p Purchase) CashflowOn() *time.Time { return p.CashflowDate }
func (p Purchase) Gross() float64         { return p.Net * (1 + p.VAT) }
func (p Purchase) Tax() float64           { return p.VAT * p.Net }

func (p Purchase) References() References {
	return References{BookingTypeID: p.BookingTypeID, MediaIDs: p.InvoiceIDs}
}

func (p Purchase) Validate() error {
	if p.CompanyID == "" || p.InvoiceDate.IsZero() || strings.TrimSpace(p.InvoiceNumber) == "" || p.VAT < 0 {
		return ErrInvalidInput
	}
	return nil
}

func (p Purchase) WithIdentity(id string, createdAt, updatedAt time.Time) Purchase {
	p.ID, p.CreatedAt, p.UpdatedAt = id, createdAt, updatedAt
	return p
}

func (p Purchase) Detach(refID string) (Purchase, bool) {
	var changed bool
	p.BookingTypeID, p.InvoiceIDs, changed = detach(p.BookingTypeID, p.InvoiceIDs, refID)
	return p, changed
}

type Direction string

const (
	DirectionIncome  Direction = "income"
	DirectionExpense Direction = "expense"
)

type Booking struct {
	ID            string     `json:"id" dynamodbav:"ID"`
	CompanyID     string     `json:"company" dynamodbav:"CompanyID"`
	BookingTypeID string     `json:"booking_type,omitempty" dynamodbav:"BookingTypeID,omitempty"`
	Direction     Direction  `json:"direction" dynamodbav:"Direction"`
	Date          time.Time  `json:"date" dynamodbav:"Date"`
	Counterparty  string     `json:"counterparty" dynamodbav:"Counterparty"`
	Description   string     `json:"description,omitempty" dynamodbav:"Description,omitempty"`
	VAT           float64    `json:"vat" dynamodbav:"VAT"`
	Net           float64    `json:"net" dynamodbav:"Net"`
	CashflowDate  *time.Time `json:"cashflow_date,omitempty" dynamodbav:"CashflowDate,omitempty"`
	InvoiceIDs    []string   `json:"invoice" dynamodbav:"InvoiceIDs,stringset,omitempty"`
	CreatedAt     time.Time  `json:"created_at" dynamodbav:"CreatedAt"`
	UpdatedAt     time.Time  `json:"updated_at" dynamodbav:"UpdatedAt"`
}

func (b Booking) RecordID() string       { return b.ID }
func (b Booking) CompanyRef() string     { return b.CompanyID }
func (b Booking) CreatedOn() time.Time   { return b.CreatedAt }
func (b Booking) Entity() EntityType     { return EntityBooking }
func (b Booking) InvoicedOn() time.Time  { return b.Date }
func (b Booking) CashflowOn() *time.Time { return b.CashflowDate }
func (b Booking) Gross() float64         { return b.Net * (1 + b.VAT) }

func (b Booking) References() References {
	return References{BookingTypeID: b.BookingTypeID, MediaIDs: b.InvoiceIDs}
}

func (b Booking) Validate() error {
	if b.CompanyID == "" || b.Date.IsZero() || b.VAT < 0 {
		return ErrInvalidInput
	}
	if b.Direction != DirectionIncome && b.Direction != DirectionExpense {
		return ErrInvalidInput
	}
	return nil
}

func (b Booking) WithIdentity(id string, createdAt, updatedAt time.Time) Booking {
	b.ID, b.CreatedAt, b.UpdatedAt = id, createdAt, updatedAt
	return b
}

func (b Booking) Detach(refID string) (Booking, bool) {
	var changed bool
	b.BookingTypeID, b.InvoiceIDs, changed = detach(b.BookingTypeID, b.InvoiceIDs, refID)
	return b, changed
}

type BookingType struct {
	ID          string    `json:"id" dynamodbav:"ID"`
	CompanyID   string    `json:"company" dynamodbav:"CompanyID"`
	Name        string    `json:"name" dynamodbav:"Name"`
	Description string    `json:"description,omitempty" dynamodbav:"Description,omitempty"`
	CreatedAt   time.Time `json:"created_at" dynamodbav:"CreatedAt"`
	UpdatedAt   time.Time `json:"updated_at" dynamodbav:"UpdatedAt"`
}

func (t BookingType) RecordID() string       { return t.ID }
func (t BookingType) CompanyRef() string     { return t.CompanyID }
func (t BookingType) CreatedOn() time.Time   { return t.CreatedAt }
func (t BookingType) Entity() EntityType     { return EntityBookingType }
func (t BookingType) References() References { return References{} }

func (t BookingType) Validate() error {
	if t.CompanyID == "" || strings.TrimSpace(t.Name) == "" {
		return ErrInvalidInput
	}
	return nil
}

func (t BookingType) WithIdentity(id string, createdAt, updatedAt time.Time) BookingType {
	t.ID, t.CreatedAt, t.UpdatedAt = id, createdAt, updatedAt
	return t
}

func (t BookingType) Detach(string) (BookingType, bool) { return t, false }

// Media is the metadata of an uploaded invoice; the content lives in the blob store
// under BlobKey.
type Media struct {
	ID               string    `json:"id" dynamodbav:"ID"`
	CompanyID        string    `json:"company" dynamodbav:"CompanyID"`
	OriginalFileName string    `json:"original_file_name" dynamodbav:"OriginalFileName"`
	ContentType      string    `json:"content_type" dynamodbav:"ContentType"`
	Size             int64     `json:"size" dynamodbav:"Size"`
	CreatedAt        time.Time `json:"created_at" dynamodbav:"CreatedAt"`
	UpdatedAt        time.Time `json:"updated_at" dynamodbav:"UpdatedAt"`
}

func (m Media) RecordID() string       { return m.ID }
func (m Media) CompanyRef() string     { return m.CompanyID }
func (m Media) CreatedOn() time.Time   { return m.CreatedAt }
func (m Media) Entity() EntityType     { return EntityMedia }
func (m Media) References() References { return References{} }
func (m Media) BlobKey() string        { return MediaBlobKey(m.ID) }

func MediaBlobKey(id string) string { return "media/" + id }

func (m Media) Validate() error {
	if m.CompanyID == "" || strings.TrimSpace(m.OriginalFileName) == "" || m.Size < 0 {
		return ErrInvalidInput
	}
	return nil
}

func (m Media) WithIdentity(id string, createdAt, updatedAt time.Time) Media {
	m.ID, m.CreatedAt, m.UpdatedAt = id, createdAt, updatedAt
	return m
}

func (m Media) Detach(string) (Media, bool) { return m, false }

// RecordFilter narrows record listings. Zero values do not filter; date bounds are
// inclusive and only match Dated records.
type RecordFilter struct {
	CompanyID    string
	IDs          []string
	CashflowFrom *time.Time
	CashflowTo   *time.Time
	InvoiceFrom  *time.Time
	InvoiceTo    *time.Time
}

func (f RecordFilter) HasDateBounds() bool {
	return f.CashflowFrom != nil || f.CashflowTo != nil || f.InvoiceFrom != nil || f.InvoiceTo != nil
}

func (f RecordFilter) Match(r Record) bool {
	if f.CompanyID != "" && r.CompanyRef() != f.CompanyID {
		return false
	}
	if len(f.IDs) > 0 && !slices.Contains(f.IDs, r.RecordID()) {
		return false
	}
	if !f.HasDateBounds() {
		return true
	}
	dated, ok := r.(Dated)
	if !ok {
		return false
	}
	if !within(dated.InvoicedOn(), f.InvoiceFrom, f.InvoiceTo) {
		return false
	}
	if f.CashflowFrom != nil || f.CashflowTo != nil {
		cashflow := dated.CashflowOn()
		if cashflow == nil || !within(*cashflow, f.CashflowFrom, f.CashflowTo) {
			return false
		}
	}
	return true
}

func within(t time.Time, from, to *time.Time) bool {
	if from != nil && t.Before(*from) {
		return false
	}
	if to != nil && t.After(*to) {
		return false
	}
	return true
}

func detach(bookingTypeID string, mediaIDs []string, refID string) (string, []string, bool) {
	changed := false
	if bookingTypeID == refID {
		bookingTypeID = ""
		changed = true
	}
	if i := slices.Index(mediaIDs, refID); i >= 0 {
		mediaIDs = slices.Delete(slices.Clone(mediaIDs), i, i+1)
		changed = true
	}
	return bookingTypeID, mediaIDs, changed
}

func shortID(id string) string {
	id = strings.ReplaceAll(id, "-", "")
	if len(id) > 8 {
		id = id[:8]
	}
	return strings.ToUpper(id)
}
