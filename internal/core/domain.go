package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	MaxSourceLength = 255
	MaxNotesLength  = 1000

	// DefaultCategoryColor is assigned to user-created categories when no
	// color is supplied.
	DefaultCategoryColor = "#3B82F6"
)

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidCategory = errors.New("invalid category")
	ErrNotFound        = errors.New("transaction not found")
	ErrCategoryExists  = errors.New("a category with this name already exists")
)

// ValidationError reports a malformed or out-of-range field by name so
// callers can surface field-level messages.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// IsValidationError reports whether err is (or wraps) a field validation
// failure.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Category is an income category. Categories are created once and never
// mutated or deleted. A default category (OwnerID nil) is visible to every
// actor; a custom one only to its owner.
type Category struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	IsDefault bool      `json:"isDefault"`
	OwnerID   *string   `json:"ownerId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// VisibleTo reports whether the category may be used by the given actor.
func (c Category) VisibleTo(actorID string) bool {
	if c.IsDefault {
		return true
	}
	return c.OwnerID != nil && *c.OwnerID == actorID
}

// Transaction is a single income entry. Rows are never physically removed:
// DeletedAt marks a soft-deleted entry, which is terminal and excluded
// from every read path.
type Transaction struct {
	ID              string     `json:"id"`
	OwnerID         string     `json:"ownerId"`
	CategoryID      string     `json:"categoryId"`
	Amount          Money      `json:"amount"`
	Source          string     `json:"source"`
	TransactionDate time.Time  `json:"transactionDate"`
	Notes           string     `json:"notes,omitempty"`
	DeletedAt       *time.Time `json:"-"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`

	// Category is the joined category row, populated on reads.
	Category *Category `json:"category,omitempty"`
}

func (t Transaction) Validate() error {
	if err := t.Amount.Validate(); err != nil {
		return &ValidationError{Field: "amount", Message: "must be a positive amount up to 999999999.99"}
	}
	if strings.TrimSpace(t.Source) == "" {
		return &ValidationError{Field: "source", Message: "is required"}
	}
	if len(t.Source) > MaxSourceLength {
		return &ValidationError{Field: "source", Message: fmt.Sprintf("cannot exceed %d characters", MaxSourceLength)}
	}
	if strings.TrimSpace(t.CategoryID) == "" {
		return &ValidationError{Field: "categoryId", Message: "is required"}
	}
	if t.TransactionDate.IsZero() {
		return &ValidationError{Field: "transactionDate", Message: "is required"}
	}
	if t.TransactionDate.After(time.Now()) {
		return &ValidationError{Field: "transactionDate", Message: "cannot be in the future"}
	}
	if len(t.Notes) > MaxNotesLength {
		return &ValidationError{Field: "notes", Message: fmt.Sprintf("cannot exceed %d characters", MaxNotesLength)}
	}
	return nil
}

// TransactionPatch is a partial update. Every field carries presence
// information: a nil pointer means "leave untouched", a non-nil pointer
// means "set to this value", so notes explicitly set to "" is distinct
// from notes omitted.
type TransactionPatch struct {
	Amount          *Money
	Source          *string
	CategoryID      *string
	TransactionDate *time.Time
	Notes           *string
}

// IsZero reports whether the patch sets no fields at all.
func (p TransactionPatch) IsZero() bool {
	return p.Amount == nil && p.Source == nil && p.CategoryID == nil &&
		p.TransactionDate == nil && p.Notes == nil
}

// Validate checks only the fields the patch actually sets.
func (p TransactionPatch) Validate() error {
	if p.Amount != nil {
		if err := p.Amount.Validate(); err != nil {
			return &ValidationError{Field: "amount", Message: "must be a positive amount up to 999999999.99"}
		}
	}
	if p.Source != nil {
		if strings.TrimSpace(*p.Source) == "" {
			return &ValidationError{Field: "source", Message: "cannot be empty"}
		}
		if len(*p.Source) > MaxSourceLength {
			return &ValidationError{Field: "source", Message: fmt.Sprintf("cannot exceed %d characters", MaxSourceLength)}
		}
	}
	if p.CategoryID != nil && strings.TrimSpace(*p.CategoryID) == "" {
		return &ValidationError{Field: "categoryId", Message: "cannot be empty"}
	}
	if p.TransactionDate != nil {
		if p.TransactionDate.IsZero() {
			return &ValidationError{Field: "transactionDate", Message: "is required"}
		}
		if p.TransactionDate.After(time.Now()) {
			return &ValidationError{Field: "transactionDate", Message: "cannot be in the future"}
		}
	}
	if p.Notes != nil && len(*p.Notes) > MaxNotesLength {
		return &ValidationError{Field: "notes", Message: fmt.Sprintf("cannot exceed %d characters", MaxNotesLength)}
	}
	return nil
}

// Apply returns a copy of t with the set fields of the patch applied.
func (p TransactionPatch) Apply(t Transaction) Transaction {
	if p.Amount != nil {
		t.Amount = *p.Amount
	}
	if p.Source != nil {
		t.Source = *p.Source
	}
	if p.CategoryID != nil {
		t.CategoryID = *p.CategoryID
	}
	if p.TransactionDate != nil {
		t.TransactionDate = *p.TransactionDate
	}
	if p.Notes != nil {
		t.Notes = *p.Notes
	}
	return t
}

// TransactionFilters narrows a list query. Zero values mean "no filter"
// for the optional fields; Page and Limit below 1 are clamped to 1. The
// default page size for an absent limit belongs to the API boundary, not
// here, so a supplied limit of 0 clamps instead of silently growing.
type TransactionFilters struct {
	StartDate  *time.Time
	EndDate    *time.Time
	CategoryID string
	Search     string
	Page       int
	Limit      int
}

// Normalize clamps pagination to sane values and returns the result.
func (f TransactionFilters) Normalize() TransactionFilters {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = 1
	}
	return f
}

// Pagination describes one page of a list result.
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"totalPages"`
}

// NewPagination computes TotalPages as ceil(total/limit).
func NewPagination(page, limit int, total int64) Pagination {
	return Pagination{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: (total + int64(limit) - 1) / int64(limit),
	}
}
