package http

import (
	stdhttp "net/http"
	"time"

	"github.com/labstack/echo/v4"

	"accountx/internal/application"
	"accountx/internal/domain"
)

type recordRequest[T any] interface {
	toRecord() (T, error)
}

// RecordsHandler serves the CRUD routes of one company-owned record kind.
type RecordsHandler[T application.Record[T]] struct {
	service *application.RecordService[T]
	decode  func(echo.Context) (T, error)
	// dated kinds accept the cashflow and invoice date filters
	dated bool
}

func newRecordsHandler[T application.Record[T], R recordRequest[T]](service *application.RecordService[T], dated bool) *RecordsHandler[T] {
	return &RecordsHandler[T]{
		service: service,
		dated:   dated,
		decode: func(c echo.Context) (T, error) {
			var req R
			if err := bind(c, &req); err != nil {
				var zero T
				return zero, err
			}
			return req.toRecord()
		},
	}
}

func NewSalesHandler(service *application.RecordService[domain.Sale]) *RecordsHandler[domain.Sale] {
	return newRecordsHandler[domain.Sale, saleRequest](service, true)
}

func NewPurchasesHandler(service *application.RecordService[domain.Purchase]) *RecordsHandler[domain.Purchase] {
	return newRecordsHandler[domain.Purchase, purchaseRequest](service, true)
}

func NewBookingsHandler(service *application.RecordService[domain.Booking]) *RecordsHandler[domain.Booking] {
	return newRecordsHandler[domain.Booking, bookingRequest](service, true)
}

func NewBookingTypesHandler(service *application.RecordService[domain.BookingType]) *RecordsHandler[domain.BookingType] {
	return newRecordsHandler[domain.BookingType, bookingTypeRequest](service, false)
}

func (h *RecordsHandler[T]) Create(c echo.Context) error {
	actorID, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}
	rec, err := h.decode(c)
	if err != nil {
		return handleError(c, err)
	}
	created, err := h.service.Create(c.Request().Context(), actorID, rec)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(stdhttp.StatusCreated, created)
}

func (h *RecordsHandler[T]) List(c echo.Context) error {
	actorID, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}
	filter, err := h.filter(c)
	if err != nil {
		return handleError(c, err)
	}
	records, err := h.service.List(c.Request().Context(), actorID, filter)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(stdhttp.StatusOK, records)
}

func (h *RecordsHandler[T]) Get(c echo.Context) error {
	actorID, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}
	rec, err := h.service.Get(c.Request().Context(), actorID, c.Param("id"))
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(stdhttp.StatusOK, rec)
}

func (h *RecordsHandler[T]) Update(c echo.Context) error {
	actorID, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}
	rec, err := h.decode(c)
	if err != nil {
		return handleError(c, err)
	}
	updated, err := h.service.Update(c.Request().Context(), actorID, c.Param("id"), rec)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(stdhttp.StatusOK, updated)
}

func (h *RecordsHandler[T]) Delete(c echo.Context) error {
	actorID, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}
	if _, err := h.service.Delete(c.Request().Context(), actorID, c.Param("id")); err != nil {
		return handleError(c, err)
	}
	return c.NoContent(stdhttp.StatusNoContent)
}

func (h *RecordsHandler[T]) filter(c echo.Context) (domain.RecordFilter, error) {
	filter := domain.RecordFilter{CompanyID: c.QueryParam("company")}
	if !h.dated {
		return filter, nil
	}
	bounds := []struct {
		param string
		dst   **time.Time
	}{
		{"cashflowdate_after", &filter.CashflowFrom},
		{"cashflowdate_before", &filter.CashflowTo},
		{"invdate_after", &filter.InvoiceFrom},
		{"invdate_before", &filter.InvoiceTo},
	}
	for _, b := range bounds {
		t, err := parseOptionalDate(c.QueryParam(b.param))
		if err != nil {
			return domain.RecordFilter{}, err
		}
		*b.dst = t
	}
	return filter, nil
}

type saleRequest struct {
	Company      string   `json:"company" validate:"required"`
	BookingType  string   `json:"booking_type"`
	InvoiceDate  string   `json:"inv_date" validate:"required,datetime=2006-01-02"`
	Customer     string   `json:"customer" validate:"max=255"`
	Project      string   `json:"project" validate:"max=255"`
	VAT          float64  `json:"vat" validate:"gte=0"`
	Net          float64  `json:"net"`
	Notes        string   `json:"notes"`
	CashflowDate string   `json:"cashflow_date" validate:"omitempty,datetime=2006-01-02"`
	Invoice      []string `json:"invoice" validate:"dive,required"`
}

func (r saleRequest) toRecord() (domain.Sale, error) {
	invDate, err := parseDate(r.InvoiceDate)
	if err != nil {
		return domain.Sale{}, err
	}
	cashflow, err := parseOptionalDate(r.CashflowDate)
	if err != nil {
		return domain.Sale{}, err
	}
	return domain.Sale{
		CompanyID:     r.Company,
		BookingTypeID: r.BookingType,
		InvoiceDate:   invDate,
		Customer:      r.Customer,
		Project:       r.Project,
		VAT:           r.VAT,
		Net:           r.Net,
		Notes:         r.Notes,
		CashflowDate:  cashflow,
		InvoiceIDs:    r.Invoice,
	}, nil
}

type purchaseRequest struct {
	Company       string   `json:"company" validate:"required"`
	BookingType   string   `json:"booking_type"`
	InvoiceNumber string   `json:"inv_no" validate:"required,max=255"`
	InvoiceDate   string   `json:"inv_date" validate:"required,datetime=2006-01-02"`
	Biller        string   `json:"biller" validate:"max=255"`
	VAT           float64  `json:"vat" validate:"gte=0"`
	Net           float64  `json:"net"`
	Notes         string   `json:"notes"`
	CashflowDate  string   `json:"cashflow_date" validate:"omitempty,datetime=2006-01-02"`
	Invoice       []string `json:"invoice" validate:"dive,required"`
}

func (r purchaseRequest) toRecord() (domain.Purchase, error) {
	invDate, err := parseDate(r.InvoiceDate)
	if err != nil {
		return domain.Purchase{}, err
	}
	cashflow, err := parseOptionalDate(r.CashflowDate)
	if err != nil {
		return domain.Purchase{}, err
	}
	return domain.Purchase{
		CompanyID:     r.Company,
		BookingTypeID: r.BookingType,
		InvoiceNumber: r.InvoiceNumber,
		InvoiceDate:   invDate,
		Biller:        r.Biller,
		VAT:           r.VAT,
		Net:           r.Net,
		Notes:         r.Notes,
		CashflowDate:  cashflow,
		InvoiceIDs:    r.Invoice,
	}, nil
}

type bookingRequest struct {
	Company      string   `json:"company" validate:"required"`
	BookingType  string   `json:"booking_type"`
	Direction    string   `json:"direction" validate:"required,oneof=income expense"`
	Date         string   `json:"date" validate:"required,datetime=2006-01-02"`
	Counterparty string   `json:"counterparty" validate:"max=255"`
	Description  string   `json:"description"`
	VAT          float64  `json:"vat" validate:"gte=0"`
	Net          float64  `json:"net"`
	CashflowDate string   `json:"cashflow_date" validate:"omitempty,datetime=2006-01-02"`
	Invoice      []string `json:"invoice" validate:"dive,required"`
}

func (r bookingRequest) toRecord() (domain.Booking, error) {
	date, err := parseDate(r.Date)
	if err != nil {
		return domain.Booking{}, err
	}
	cashflow, err := parseOptionalDate(r.CashflowDate)
	if err != nil {
		return domain.Booking{}, err
	}
	return domain.Booking{
		CompanyID:     r.Company,
		BookingTypeID: r.BookingType,
		Direction:     domain.Direction(r.Direction),
		Date:          date,
		Counterparty:  r.Counterparty,
		Description:   r.Description,
		VAT:           r.VAT,
		Net:           r.Net,
		CashflowDate:  cashflow,
		InvoiceIDs:    r.Invoice,
	}, nil
}

type bookingTypeRequest struct {
	Company     string `json:"company" validate:"required"`
	Name        string `json:"name" validate:"required,max=255"`
	Description string `json:"description"`
}

func (r bookingTypeRequest) toRecord() (domain.BookingType, error) {
	return domain.BookingType{CompanyID: r.Company, Name: r.Name, Description: r.Description}, nil
}
