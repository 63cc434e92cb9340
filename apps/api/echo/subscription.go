package echoapi

import (
	"mime/multipart"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core/subscription"
)

// proofFields are the multipart fields accepted for a payment proof, by preference.
var proofFields = []string{"file", "proof"}

type requestApi struct {
	svc      subscription.Service
	auth     *authenticator
	validate *validator.Validate
}

func registerRequestAPI(g *echo.Group, jwt echo.MiddlewareFunc, auth *authenticator, opts Options) {
	api := requestApi{
		svc:      opts.RequestSvc,
		auth:     auth,
		validate: opts.Validate,
	}

	g.GET("/payment-info", api.paymentInfo)
	g.GET("/requests", api.listMine, jwt)
	g.POST("/requests", api.submit, jwt)
	g.POST("/uploads/proof", api.uploadProof, jwt)
}

func (api *requestApi) paymentInfo(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, api.svc.PaymentInfo())
}

func (api *requestApi) listMine(ctx echo.Context) error {
	usr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	reqs, err := api.svc.ListMine(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "listing requests")
	}
	return ctx.JSON(http.StatusOK, nonNilRequests(reqs))
}

func (api *requestApi) submit(ctx echo.Context) error {
	usr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data subscription.NewRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	req, err := api.svc.Submit(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "submitting request")
	}
	return ctx.JSON(http.StatusCreated, req)
}

func (api *requestApi) uploadProof(ctx echo.Context) error {
	usr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	fh, err := proofFile(ctx)
	if err != nil {
		return err
	}
	file, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening proof")
	}
	defer file.Close()

	url, err := api.svc.UploadProof(ctx.Request().Context(), usr, file, subscription.Proof{
		ContentType: fh.Header.Get(echo.HeaderContentType),
		Size:        fh.Size,
	})
	if err != nil {
		return errors.Wrap(err, "uploading proof")
	}
	return ctx.JSON(http.StatusOK, UploadResponse{URL: url})
}

func proofFile(ctx echo.Context) (*multipart.FileHeader, error) {
	form, err := ctx.MultipartForm()
	if err != nil {
		return nil, errInvalidForm
	}
	for _, field := range proofFields {
		if files := form.File[field]; len(files) > 0 {
			return files[0], nil
		}
	}
	return nil, subscription.ErrProofRequired
}

func nonNilRequests(reqs []subscription.Request) []subscription.Request {
	if reqs == nil {
		return []subscription.Request{}
	}
	return reqs
}

type UploadResponse struct {
	URL string `json:"url"`
}
