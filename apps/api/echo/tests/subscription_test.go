package tests

import (
	"bytes"
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/kulmistechsolutions/kulmis-acadmy-LMS/apps/api/echo"
	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core/subscription"
	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core/user"
	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/tests"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n proof")

func newProRequest() subscription.NewRequest {
	return subscription.NewRequest{
		Message:       "Paid this morning",
		FullName:      "Amina Hassan",
		Phone:         "+252 61 000 0000",
		PaymentNumber: "061 123 4567",
		ProofImageURL: "/uploads/proofs/receipt.png",
	}
}

func createRequest(t *testing.T, usr user.User, status string, createdAt time.Time) subscription.Request {
	nr := newProRequest()
	req, err := requestRepo.CreateRequest(context.Background(), subscription.Request{
		UserID:        usr.ID,
		Type:          subscription.TypeProAccess,
		Status:        status,
		FullName:      nr.FullName,
		Phone:         nr.Phone,
		PaymentNumber: nr.PaymentNumber,
		ProofImageURL: nr.ProofImageURL,
		CreatedAt:     createdAt.UTC(),
		UpdatedAt:     createdAt.UTC(),
	})
	require.NoError(t, err)
	return req
}

func Test_requestApi_paymentInfo(t *testing.T) {
	app := setup(t)
	runTests(t, app, []httpTest{
		{
			name: "public", path: "/v1/payment-info", wantCode: http.StatusOK,
			wantData: marchallObj(t, subscription.PaymentInfo{
				PaymentNumber: conf.Pro.PaymentNumber,
				Amount:        conf.Pro.Amount,
				Currency:      conf.Pro.Currency,
				Instructions:  conf.Pro.Instructions,
				SupportPhone:  conf.Pro.SupportPhone,
				WhatsAppLink:  conf.Pro.WhatsAppLink,
			}),
		},
	})
}

func Test_requestApi_submit(t *testing.T) {
	app := setup(t)
	student := testutil.CreateUser(t, usrRepo, "hero@test.so", strongPwd, "", false)
	pro := testutil.CreateUser(t, usrRepo, "pro@test.so", strongPwd, "", true)
	token := getToken(t, student)

	reqMsg := "this field is required"
	runTests(t, app, []httpTest{
		{name: "Auth required", method: http.MethodPost, path: "/v1/requests", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "required fields", method: http.MethodPost, path: "/v1/requests", token: token, wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"full_name": reqMsg, "phone": reqMsg, "payment_number": reqMsg, "proof_image_url": reqMsg,
			}),
		},
		{
			name: "already pro", method: http.MethodPost, path: "/v1/requests", token: getToken(t, pro),
			body: marchallObj(t, newProRequest()), wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "Already Pro"}),
		},
		{name: "none yet", path: "/v1/requests", token: token, wantCode: http.StatusOK, wantData: marchallList(t)},
	})

	req, rec := newAuthRequest(http.MethodPost, "/v1/requests", token, marchallObj(t, newProRequest()))
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created subscription.Request
	unmarshal(t, rec, &created)
	assert.Equal(t, student.ID, created.UserID)
	assert.Equal(t, subscription.StatusPending, created.Status)
	assert.Equal(t, subscription.TypeProAccess, created.Type)
	assert.Equal(t, "Amina Hassan", created.FullName)

	runTests(t, app, []httpTest{
		{
			name: "one pending at a time", method: http.MethodPost, path: "/v1/requests", token: token,
			body: marchallObj(t, newProRequest()), wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "Request already pending"}),
		},
	})

	t.Run("mine", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/requests", token)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var mine []subscription.Request
		unmarshal(t, rec, &mine)
		require.Len(t, mine, 1)
		assert.Equal(t, created.ID, mine[0].ID)
		require.NotNil(t, mine[0].User)
		assert.Equal(t, student.Email, mine[0].User.Email)
	})
}

func Test_requestApi_uploadProof(t *testing.T) {
	app := setup(t)
	student := testutil.CreateUser(t, usrRepo, "hero@test.so", strongPwd, "", false)
	token := getToken(t, student)

	tests := []struct {
		name        string
		field       string
		contentType string
		content     []byte
		wantCode    int
		wantErr     string
	}{
		{name: "no file", wantCode: http.StatusBadRequest, wantErr: "No file provided"},
		{name: "empty file", field: "file", contentType: "image/png", wantCode: http.StatusBadRequest, wantErr: "No file provided"},
		{
			name: "wrong type", field: "file", contentType: "application/pdf", content: []byte("%PDF"),
			wantCode: http.StatusBadRequest, wantErr: "Invalid file type. Use JPEG or PNG.",
		},
		{
			name: "too large", field: "file", contentType: "image/jpeg", content: bytes.Repeat([]byte("a"), subscription.MaxProofSize+1),
			wantCode: http.StatusBadRequest, wantErr: "File too large. Max 2MB.",
		},
		{name: "stored", field: "file", contentType: "image/png", content: pngHeader, wantCode: http.StatusOK},
		{name: "legacy field", field: "proof", contentType: "image/jpeg", content: pngHeader, wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newUploadRequest(t, "/v1/uploads/proof", token, tt.field, "receipt", tt.contentType, tt.content)
			app.ServeHTTP(rec, req)
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())

			if tt.wantErr != "" {
				var herr httpErr
				unmarshal(t, rec, &herr)
				assert.Equal(t, tt.wantErr, herr.Error)
				return
			}

			var resp UploadResponse
			unmarshal(t, rec, &resp)
			require.True(t, strings.HasPrefix(resp.URL, "/uploads/proofs/"), resp.URL)

			// uploads are served back
			req, rec = newRequest(http.MethodGet, resp.URL)
			app.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.content, rec.Body.Bytes())
		})
	}

	t.Run("Auth required", func(t *testing.T) {
		req, rec := newUploadRequest(t, "/v1/uploads/proof", "", "file", "receipt", "image/png", pngHeader)
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
