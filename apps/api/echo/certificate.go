package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core/certificate"
)

const (
	headerCertificateID = "X-Certificate-Id"
	mimeApplicationPDF  = "application/pdf"
)

type certificateApi struct {
	svc      certificate.Service
	auth     *authenticator
	validate *validator.Validate
}

func registerCertificateAPI(g *echo.Group, jwt echo.MiddlewareFunc, auth *authenticator, opts Options) {
	api := certificateApi{
		svc:      opts.CertificateSvc,
		auth:     auth,
		validate: opts.Validate,
	}

	g.GET("/verify/:id", api.verify)
	g.POST("/certificates", api.issue, jwt)
	g.GET("/certificates", api.listMine, jwt)
	g.GET("/certificates/:id/download", api.download, jwt)
}

func (api *certificateApi) issue(ctx echo.Context) error {
	usr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data certificate.Issue
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to certificate.Issue")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	cert, pdf, err := api.svc.Issue(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "issuing certificate")
	}
	ctx.Response().Header().Set(headerCertificateID, cert.CertificateID)
	return sendPDF(ctx, cert, pdf, "no-store")
}

func (api *certificateApi) download(ctx echo.Context) error {
	usr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	cert, pdf, err := api.svc.Download(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "downloading certificate")
	}
	return sendPDF(ctx, cert, pdf, "private, no-cache")
}

func sendPDF(ctx echo.Context, cert certificate.Certificate, pdf []byte, cacheControl string) error {
	header := ctx.Response().Header()
	header.Set(echo.HeaderContentDisposition, `attachment; filename="`+cert.Filename()+`"`)
	header.Set("Cache-Control", cacheControl)
	return ctx.Blob(http.StatusOK, mimeApplicationPDF, pdf)
}

func (api *certificateApi) listMine(ctx echo.Context) error {
	usr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	certs, err := api.svc.ListMine(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "listing certificates")
	}
	return ctx.JSON(http.StatusOK, nonNilCertificates(certs))
}

func (api *certificateApi) verify(ctx echo.Context) error {
	v, err := api.svc.Verify(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == certificate.ErrNotFound {
			return ctx.JSON(http.StatusNotFound, echo.Map{"valid": false, "error": certificate.ErrNotFound.Error()})
		}
		return errors.Wrap(err, "verifying certificate")
	}
	return ctx.JSON(http.StatusOK, v)
}

func nonNilCertificates(certs []certificate.Certificate) []certificate.Certificate {
	if certs == nil {
		return []certificate.Certificate{}
	}
	return certs
}
