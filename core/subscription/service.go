package subscription

import (
	"context"
	"fmt"
	"io"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core"
	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core/user"
)

var (
	// errors
	ErrNotFound        = errors.New("Request not found")
	ErrAlreadyPro      = core.NewValidationError(errors.New("Already Pro"))
	ErrRequestPending  = core.NewValidationError(errors.New("Request already pending"))
	ErrAlreadyReviewed = core.NewValidationError(errors.New("Request already reviewed"))
	ErrInvalidAction   = core.NewFieldValidationError("action", "action must be one of approve, reject")
	ErrProofRequired   = core.NewValidationError(errors.New("No file provided"))
	ErrProofType       = core.NewValidationError(errors.New("Invalid file type. Use JPEG or PNG."))
	ErrProofTooLarge   = core.NewValidationError(errors.New("File too large. Max 2MB."))
)

type (
	// QueryFilter applies AND operation on its non-empty fields.
	QueryFilter struct {
		UserID string
		Status string
	}

	Repository interface {
		CreateRequest(ctx context.Context, req Request, exec ...core.DBExecutor) (Request, error)
		// GetRequest returns ErrNotFound when the request does not exist.
		GetRequest(ctx context.Context, id string, exec ...core.DBExecutor) (Request, error)
		// QueryRequests returns the matching requests with their Requester, newest first.
		QueryRequests(ctx context.Context, filter QueryFilter, exec ...core.DBExecutor) ([]Request, error)
		// ReviewRequest moves a PENDING request to `status` in a single conditional update.
		// It returns ErrAlreadyReviewed when the request is no longer pending.
		ReviewRequest(ctx context.Context, req Request, exec ...core.DBExecutor) (Request, error)
	}

	Service interface {
		Submit(ctx context.Context, usr user.User, nr NewRequest) (Request, error)
		ListMine(ctx context.Context, usr user.User) ([]Request, error)
		ListPending(ctx context.Context) ([]Request, error)
		ListAll(ctx context.Context) ([]Request, error)
		Review(ctx context.Context, admin user.User, id string, rv Review) (Request, error)
		UploadProof(ctx context.Context, usr user.User, r io.Reader, proof Proof) (string, error)
		PaymentInfo() PaymentInfo
	}

	service struct {
		conf    *core.Config
		tx      core.Transactor
		repo    Repository
		userSvc user.Service
		mailSvc core.EmailService
		storage core.FileStorage
	}

	reviewMailData struct {
		FullName  string
		Approved  bool
		AdminNote string
	}
)

var _ Service = (*service)(nil)

func NewService(
	conf *core.Config,
	tx core.Transactor,
	repo Repository,
	userSvc user.Service,
	mailSvc core.EmailService,
	storage core.FileStorage,
) Service {
	return &service{
		conf:    conf,
		tx:      tx,
		repo:    repo,
		userSvc: userSvc,
		mailSvc: mailSvc,
		storage: storage,
	}
}

func (svc *service) Submit(ctx context.Context, usr user.User, nr NewRequest) (Request, error) {
	if usr.IsPro {
		return Request{}, ErrAlreadyPro
	}

	var req Request
	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		pending, err := svc.repo.QueryRequests(ctx, QueryFilter{UserID: usr.ID, Status: StatusPending}, exec)
		if err != nil {
			return errors.Wrap(err, "querying pending requests")
		}
		if len(pending) > 0 {
			return ErrRequestPending
		}

		now := core.NowFunc()
		req, err = svc.repo.CreateRequest(ctx, Request{
			UserID:        usr.ID,
			Type:          TypeProAccess,
			Status:        StatusPending,
			Message:       nr.Message,
			FullName:      nr.FullName,
			Phone:         nr.Phone,
			PaymentNumber: nr.PaymentNumber,
			ProofImageURL: nr.ProofImageURL,
			CreatedAt:     now,
			UpdatedAt:     now,
		}, exec)
		return errors.Wrap(err, "creating request")
	})
	return req, err
}

func (svc *service) ListMine(ctx context.Context, usr user.User) ([]Request, error) {
	return svc.repo.QueryRequests(ctx, QueryFilter{UserID: usr.ID})
}

func (svc *service) ListPending(ctx context.Context) ([]Request, error) {
	return svc.repo.QueryRequests(ctx, QueryFilter{Status: StatusPending})
}

func (svc *service) ListAll(ctx context.Context) ([]Request, error) {
	return svc.repo.QueryRequests(ctx, QueryFilter{})
}

// Review approves or rejects a pending request. Approving also upgrades the requester to Pro.
func (svc *service) Review(ctx context.Context, admin user.User, id string, rv Review) (Request, error) {
	if rv.Action != ActionApprove && rv.Action != ActionReject {
		return Request{}, ErrInvalidAction
	}
	req, err := svc.repo.GetRequest(ctx, id)
	if err != nil {
		return Request{}, err
	}
	if !req.IsPending() {
		return Request{}, ErrAlreadyReviewed
	}

	now := core.NowFunc()
	req.Status = rv.status()
	req.AdminNote = rv.AdminNote
	req.ReviewedAt = &now
	req.ReviewedBy = admin.ID
	req.UpdatedAt = now

	err = svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if req, err = svc.repo.ReviewRequest(ctx, req, exec); err != nil {
			return err
		}
		if req.Status == StatusApproved {
			return errors.Wrap(svc.userSvc.SetPro(ctx, req.UserID, true, exec), "upgrading user")
		}
		return nil
	})
	if err != nil {
		return Request{}, err
	}

	svc.notifyReviewed(ctx, req)
	return req, nil
}

func (svc *service) notifyReviewed(ctx context.Context, req Request) {
	usr, err := svc.userSvc.GetByID(ctx, req.UserID)
	if err != nil {
		return
	}
	subject := "Your " + svc.conf.AppName + " Pro request was rejected"
	if req.Status == StatusApproved {
		subject = "Welcome to " + svc.conf.AppName + " Pro"
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: req.FullName, Address: usr.Email}},
		Subject:      subject,
		TemplateName: core.TmplRequestReviewed,
		TemplateData: reviewMailData{
			FullName:  req.FullName,
			Approved:  req.Status == StatusApproved,
			AdminNote: req.AdminNote,
		},
	})
}

// UploadProof stores a payment screenshot and returns its URL.
func (svc *service) UploadProof(ctx context.Context, usr user.User, r io.Reader, proof Proof) (string, error) {
	if r == nil || proof.Size == 0 {
		return "", ErrProofRequired
	}
	ext, ok := proofExtensions[strings.ToLower(proof.ContentType)]
	if !ok {
		return "", ErrProofType
	}
	if proof.Size > MaxProofSize {
		return "", ErrProofTooLarge
	}

	key := fmt.Sprintf("proofs/%s.%s", uuid.New().String(), ext)
	url, err := svc.storage.Save(ctx, key, io.LimitReader(r, MaxProofSize), proof.Size, proof.ContentType)
	if err != nil {
		return "", errors.Wrapf(err, "storing proof of user %s", usr.ID)
	}
	return url, nil
}

func (svc *service) PaymentInfo() PaymentInfo {
	pro := svc.conf.Pro
	return PaymentInfo{
		PaymentNumber: pro.PaymentNumber,
		Amount:        pro.Amount,
		Currency:      pro.Currency,
		Instructions:  pro.Instructions,
		SupportPhone:  pro.SupportPhone,
		WhatsAppLink:  pro.WhatsAppLink,
	}
}
