package subscription

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core"
)

// Request types
const TypeProAccess = "PRO_ACCESS"

// Request statuses
const (
	StatusPending  = "PENDING"
	StatusApproved = "APPROVED"
	StatusRejected = "REJECTED"
)

// Review actions
const (
	ActionApprove = "approve"
	ActionReject  = "reject"
)

// Proof upload constraints
const (
	MaxProofSize = 2 << 20 // 2 MiB
)

var proofExtensions = map[string]string{
	"image/jpeg": "jpg",
	"image/jpg":  "jpg",
	"image/png":  "png",
}

// Request is a student asking to be upgraded to Pro after paying manually.
type Request struct {
	ID            string     `json:"id"`
	UserID        string     `json:"user_id"`
	Type          string     `json:"type"`
	Status        string     `json:"status"`
	Message       string     `json:"message"`
	FullName      string     `json:"full_name"`
	Phone         string     `json:"phone"`
	PaymentNumber string     `json:"payment_number"`
	ProofImageURL string     `json:"proof_image_url"`
	AdminNote     string     `json:"admin_note"`
	ReviewedAt    *time.Time `json:"reviewed_at"` // UTC
	ReviewedBy    string     `json:"reviewed_by"`
	CreatedAt     time.Time  `json:"created_at"` // UTC
	UpdatedAt     time.Time  `json:"updated_at"` // UTC

	User *Requester `json:"user,omitempty"`
}

func (r Request) IsPending() bool {
	return r.Status == StatusPending
}

// Requester is the public part of the user who sent a Request.
type Requester struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Phone string `json:"phone"`
	IsPro bool   `json:"is_pro"`
}

type NewRequest struct {
	Message       string `json:"message" validate:"max=2000"`
	FullName      string `json:"full_name" validate:"required,notblank,max=200"`
	Phone         string `json:"phone" validate:"required,notblank,max=32"`
	PaymentNumber string `json:"payment_number" validate:"required,notblank,max=64"`
	ProofImageURL string `json:"proof_image_url" validate:"required,notblank"`
}

func (nr *NewRequest) Validate(validate *validator.Validate) error {
	nr.Message = core.CleanString(nr.Message)
	nr.FullName = core.CleanString(nr.FullName)
	nr.Phone = core.CleanString(nr.Phone)
	nr.PaymentNumber = core.CleanString(nr.PaymentNumber)
	nr.ProofImageURL = core.CleanString(nr.ProofImageURL)
	return validate.Struct(nr)
}

type Review struct {
	Action    string `json:"action" validate:"required,oneof=approve reject"`
	AdminNote string `json:"admin_note" validate:"max=2000"`
}

func (rv *Review) Validate(validate *validator.Validate) error {
	rv.Action = core.CleanString(rv.Action, true /* lower */)
	rv.AdminNote = core.CleanString(rv.AdminNote)
	return validate.Struct(rv)
}

func (rv Review) status() string {
	if rv.Action == ActionApprove {
		return StatusApproved
	}
	return StatusRejected
}

// PaymentInfo tells students how to pay for Pro.
type PaymentInfo struct {
	PaymentNumber string          `json:"payment_number"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Instructions  string          `json:"instructions"`
	SupportPhone  string          `json:"support_phone"`
	WhatsAppLink  string          `json:"whatsapp_link"`
}

// Proof is an uploaded payment screenshot.
type Proof struct {
	ContentType string
	Size        int64
}
