package tests

import (
	"context"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/kulmistechsolutions/kulmis-acadmy-LMS/apps/api/echo"
	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core/analytics"
	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core/certificate"
	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core/course"
	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core/progress"
	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core/subscription"
	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/core/user"
	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/services/email"
	"github.com/kulmistechsolutions/kulmis-acadmy-LMS/tests"
)

func summaryIDs(summaries []user.Summary) []string {
	ids := make([]string, 0, len(summaries))
	for _, s := range summaries {
		ids = append(ids, s.ID)
	}
	return ids
}

func Test_adminApi_access(t *testing.T) {
	app := setup(t)
	student := testutil.CreateUser(t, usrRepo, "hero@test.so", strongPwd, "", true)

	// a token claiming admin rights does not help a student
	forged := student
	forged.Role = user.RoleAdmin

	paths := []string{
		"/v1/admin/users", "/v1/admin/requests", "/v1/admin/certificates",
		"/v1/admin/analytics/overview", "/v1/admin/analytics/visitors",
	}
	var tests []httpTest
	for _, p := range paths {
		tests = append(tests,
			httpTest{name: p + ": Auth required", path: p, wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
			httpTest{name: p + ": Admin required", path: p, token: getToken(t, student), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
			httpTest{name: p + ": forged role", path: p, token: getToken(t, forged), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
		)
	}
	runTests(t, app, tests)
}

func Test_adminApi_users(t *testing.T) {
	app := setup(t)

	now := time.Now().UTC()
	admin := testutil.CreateUser(t, usrRepo, "boss@kulmis.test", strongPwd, user.RoleAdmin, false, now.Add(-72*time.Hour))
	amina := testutil.CreateUser(t, usrRepo, "amina@test.so", strongPwd, "", true, now.Add(-48*time.Hour))
	omar := testutil.CreateUser(t, usrRepo, "omar@test.so", strongPwd, "", false, now.Add(-24*time.Hour))
	createRequest(t, omar, subscription.StatusRejected, now.Add(-2*time.Hour))
	createRequest(t, omar, subscription.StatusPending, now.Add(-time.Hour))

	token := getToken(t, admin)
	query := func(t *testing.T, params url.Values) []user.Summary {
		req, rec := newAuthRequest(http.MethodGet, "/v1/admin/users?"+params.Encode(), token)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var res []user.Summary
		unmarshal(t, rec, &res)
		return res
	}

	t.Run("newest first with request counts", func(t *testing.T) {
		res := query(t, nil)
		assert.Equal(t, []string{omar.ID, amina.ID, admin.ID}, summaryIDs(res))
		assert.Equal(t, 2, res[0].RequestCount)
		assert.Equal(t, 0, res[1].RequestCount)
	})

	tests := []struct {
		name   string
		params url.Values
		want   []string
	}{
		{name: "search", params: url.Values{"search": {"AMI"}}, want: []string{amina.ID}},
		{name: "search (unknown)", params: url.Values{"search": {"lol"}}, want: []string{}},
		{name: "role", params: url.Values{"role": {"Admin"}}, want: []string{admin.ID}},
		{name: "is_pro", params: url.Values{"is_pro": {"true"}}, want: []string{amina.ID}},
		{name: "not pro", params: url.Values{"is_pro": {"false"}}, want: []string{omar.ID, admin.ID}},
		{
			name:   "created range",
			params: url.Values{"created_from": {now.Add(-60 * time.Hour).Format(time.RFC3339)}, "created_to": {now.Add(-30 * time.Hour).Format(time.RFC3339)}},
			want:   []string{amina.ID},
		},
		{name: "order by email", params: url.Values{"ordering": {"email"}}, want: []string{amina.ID, admin.ID, omar.ID}},
		{name: "order by created_at", params: url.Values{"ordering": {"created_at"}}, want: []string{admin.ID, amina.ID, omar.ID}},
		{name: "unknown ordering is ignored", params: url.Values{"ordering": {"password"}}, want: []string{omar.ID, amina.ID, admin.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, summaryIDs(query(t, tt.params)))
		})
	}

	t.Run("order by -request_count", func(t *testing.T) {
		res := query(t, url.Values{"ordering": {"-request_count"}})
		require.Len(t, res, 3)
		assert.Equal(t, omar.ID, res[0].ID)
	})

	runTests(t, app, []httpTest{
		{
			name: "invalid is_pro", path: "/v1/admin/users?is_pro=maybe", token: token, wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"is_pro": "must be true or false"}),
		},
		{
			name: "invalid created_from", path: "/v1/admin/users?created_from=yesterday", token: token, wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"created_from": "must be an RFC 3339 date-time"}),
		},
	})
}

func Test_adminApi_resetPassword(t *testing.T) {
	app := setup(t)
	admin := testutil.CreateUser(t, usrRepo, "boss@kulmis.test", strongPwd, user.RoleAdmin, false)
	student := testutil.CreateUser(t, usrRepo, "hero@test.so", strongPwd, "", false)
	noPwd := testutil.CreateUser(t, usrRepo, "nopwd@test.so", "", "", false)
	token := getToken(t, admin)
	path := "/v1/admin/reset-password"

	runTests(t, app, []httpTest{
		{
			name: "required fields", method: http.MethodPost, path: path, token: token, wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"user_id": "this field is required"}),
		},
		{
			name: "unknown user", method: http.MethodPost, path: path, token: token,
			body:     marchallObj(t, AdminResetRequest{UserID: "ghost"}),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: user.ErrNotFound.Error()}),
		},
		{
			name: "no password to reset", method: http.MethodPost, path: path, token: token,
			body:     marchallObj(t, AdminResetRequest{UserID: noPwd.ID}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "User has no password set"}),
		},
	})

	t.Run("invalid action", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, path, token, marchallObj(t, AdminResetRequest{UserID: student.ID, Action: "delete"}))
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), `"action"`)
	})

	t.Run("send_email", func(t *testing.T) {
		emailsvc.ResetSentMessages()
		req, rec := newAuthRequest(http.MethodPost, path, token, marchallObj(t, AdminResetRequest{UserID: student.ID}))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.JSONEq(t, `{"message":"Password reset link has been sent to the user's email."}`, rec.Body.String())

		sent := emailsvc.Sent()
		require.Len(t, sent, 1)
		assert.Contains(t, sent[0].TextContent, "/reset-password?token=")

		usr, err := usrRepo.GetUser(context.Background(), user.GetFilter{ID: student.ID})
		require.NoError(t, err)
		assert.True(t, usr.CheckPassword(strongPwd), "send_email keeps the password")
	})

	t.Run("force_temp", func(t *testing.T) {
		emailsvc.ResetSentMessages()
		req, rec := newAuthRequest(http.MethodPost, path, token,
			marchallObj(t, AdminResetRequest{UserID: student.ID, Action: user.ResetActionForceTemp}))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.JSONEq(t, `{"message":"Temporary password has been set and emailed to the user."}`, rec.Body.String())

		require.Len(t, emailsvc.Sent(), 1)
		usr, err := usrRepo.GetUser(context.Background(), user.GetFilter{ID: student.ID})
		require.NoError(t, err)
		assert.False(t, usr.CheckPassword(strongPwd), "force_temp replaces the password")
	})
}

func Test_adminApi_reviewRequests(t *testing.T) {
	app := setup(t)
	emailsvc.ResetSentMessages()

	now := time.Now().UTC()
	admin := testutil.CreateUser(t, usrRepo, "boss@kulmis.test", strongPwd, user.RoleAdmin, false)
	amina := testutil.CreateUser(t, usrRepo, "amina@test.so", strongPwd, "", false)
	omar := testutil.CreateUser(t, usrRepo, "omar@test.so", strongPwd, "", false)
	old := createRequest(t, omar, subscription.StatusRejected, now.Add(-2*time.Hour))
	pending := createRequest(t, amina, subscription.StatusPending, now.Add(-time.Hour))
	token := getToken(t, admin)

	list := func(t *testing.T, path string) []subscription.Request {
		req, rec := newAuthRequest(http.MethodGet, path, token)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var reqs []subscription.Request
		unmarshal(t, rec, &reqs)
		return reqs
	}

	pendings := list(t, "/v1/admin/requests")
	require.Len(t, pendings, 1)
	assert.Equal(t, pending.ID, pendings[0].ID)
	require.NotNil(t, pendings[0].User)
	assert.Equal(t, amina.Email, pendings[0].User.Email)

	all := list(t, "/v1/admin/requests?status=all")
	require.Len(t, all, 2)
	assert.Equal(t, pending.ID, all[0].ID, "newest first")
	assert.Equal(t, old.ID, all[1].ID)

	path := "/v1/admin/requests/" + pending.ID
	runTests(t, app, []httpTest{
		{
			name: "required action", method: http.MethodPatch, path: path, token: token, wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"action": "this field is required"}),
		},
		{
			name: "unknown request", method: http.MethodPatch, path: "/v1/admin/requests/ghost", token: token,
			body:     marchallObj(t, subscription.Review{Action: subscription.ActionApprove}),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: subscription.ErrNotFound.Error()}),
		},
		{
			name: "already reviewed", method: http.MethodPatch, path: "/v1/admin/requests/" + old.ID, token: token,
			body:     marchallObj(t, subscription.Review{Action: subscription.ActionApprove}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "Request already reviewed"}),
		},
	})

	req, rec := newAuthRequest(http.MethodPatch, path, token,
		marchallObj(t, subscription.Review{Action: "Approve", AdminNote: " Welcome! "}))
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var reviewed subscription.Request
	unmarshal(t, rec, &reviewed)
	assert.Equal(t, subscription.StatusApproved, reviewed.Status)
	assert.Equal(t, "Welcome!", reviewed.AdminNote)
	assert.Equal(t, admin.ID, reviewed.ReviewedBy)
	assert.NotNil(t, reviewed.ReviewedAt)

	usr, err := usrRepo.GetUser(context.Background(), user.GetFilter{ID: amina.ID})
	require.NoError(t, err)
	assert.True(t, usr.IsPro, "approval upgrades the requester")

	sent := emailsvc.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, amina.Email, sent[0].To[0].Address)

	assert.Empty(t, list(t, "/v1/admin/requests"))
}

func Test_adminApi_courses(t *testing.T) {
	app := setup(t)
	admin := testutil.CreateUser(t, usrRepo, "boss@kulmis.test", strongPwd, user.RoleAdmin, false)
	token := getToken(t, admin)

	nc := course.NewCourse{
		Slug:       "Go-Basics",
		Title:      " Go Basics ",
		AccessType: "PRO",
		Lessons: []course.NewLesson{
			{Title: "Intro", VideoURL: "https://www.youtube.com/watch?v=1"},
			{Title: "Types", VideoURL: "https://www.youtube.com/watch?v=2"},
		},
	}
	req, rec := newAuthRequest(http.MethodPost, "/v1/admin/courses", token, marchallObj(t, nc))
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created CourseView
	unmarshal(t, rec, &created)
	assert.Equal(t, "go-basics", created.Slug)
	assert.Equal(t, "Go Basics", created.Title)
	assert.Equal(t, course.AccessPro, created.AccessType)
	assert.Equal(t, course.HostYouTube, created.Host)
	require.Len(t, created.Lessons, 2)
	assert.Equal(t, 2, created.Lessons[1].Order)

	runTests(t, app, []httpTest{
		{
			name: "slug taken", method: http.MethodPost, path: "/v1/admin/courses", token: token, body: marchallObj(t, nc),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"slug": "a course with this slug already exists"}),
		},
		{
			name: "invalid slug", method: http.MethodPost, path: "/v1/admin/courses", token: token,
			body:     marchallObj(t, course.NewCourse{Slug: "go basics!", Title: "Go"}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"slug": "only lowercase letters, digits and hyphens are allowed"}),
		},
		{
			name: "blank title", method: http.MethodPost, path: "/v1/admin/courses", token: token,
			body:     marchallObj(t, course.NewCourse{Slug: "go", Title: "   "}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"title": "this field is required"}),
		},
		{
			name: "update unknown", method: http.MethodPut, path: "/v1/admin/courses/ghost", token: token, body: marchallObj(t, nc),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: course.ErrNotFound.Error()}),
		},
	})

	nc.Title = "Go Basics, 2nd edition"
	nc.AccessType = course.AccessFree
	req, rec = newAuthRequest(http.MethodPut, "/v1/admin/courses/"+created.ID, token, marchallObj(t, nc))
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var updated CourseView
	unmarshal(t, rec, &updated)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "Go Basics, 2nd edition", updated.Title)
	assert.Equal(t, course.AccessFree, updated.AccessType)
	assert.True(t, created.CreatedAt.Equal(updated.CreatedAt))

	runTests(t, app, []httpTest{
		{name: "public catalog sees the update", path: "/v1/courses/go-basics", wantCode: http.StatusOK, wantData: marchallObj(t, updated)},
	})

	req, rec = newAuthRequest(http.MethodDelete, "/v1/admin/courses/"+created.ID, token)
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	runTests(t, app, []httpTest{
		{
			name: "deleted", path: "/v1/courses/go-basics", wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: course.ErrNotFound.Error()}),
		},
		{
			name: "delete unknown", method: http.MethodDelete, path: "/v1/admin/courses/" + created.ID, token: token,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: course.ErrNotFound.Error()}),
		},
	})
}

func Test_adminApi_certificates(t *testing.T) {
	app := setup(t)
	admin := testutil.CreateUser(t, usrRepo, "boss@kulmis.test", strongPwd, user.RoleAdmin, false)
	token := getToken(t, admin)

	now := time.Now().UTC()
	goCert, err := certRepo.CreateCertificate(context.Background(), certificate.Certificate{
		CertificateID: "c-go", UserID: "u1", CourseID: "go", FullName: "Amina", CompletionDate: now, CreatedAt: now.Add(-time.Hour),
	})
	require.NoError(t, err)
	pyCert, err := certRepo.CreateCertificate(context.Background(), certificate.Certificate{
		CertificateID: "c-py", UserID: "u1", CourseID: "py", FullName: "Amina", CompletionDate: now, CreatedAt: now,
	})
	require.NoError(t, err)

	runTests(t, app, []httpTest{
		{name: "all", path: "/v1/admin/certificates", token: token, wantCode: http.StatusOK, wantData: marchallList(t, pyCert, goCert)},
		{name: "by course", path: "/v1/admin/certificates?course_id=go", token: token, wantCode: http.StatusOK, wantData: marchallList(t, goCert)},
		{name: "none", path: "/v1/admin/certificates?course_id=rust", token: token, wantCode: http.StatusOK, wantData: marchallList(t)},
	})
}

func Test_adminApi_analytics(t *testing.T) {
	app := setup(t)
	ctx := context.Background()

	now := time.Now().UTC()
	admin := testutil.CreateUser(t, usrRepo, "boss@kulmis.test", strongPwd, user.RoleAdmin, false, now.Add(-40*24*time.Hour))
	amina := testutil.CreateUser(t, usrRepo, "amina@test.so", strongPwd, "", true)
	omar := testutil.CreateUser(t, usrRepo, "omar@test.so", strongPwd, "", false)
	token := getToken(t, admin)

	c := testutil.CreateCourse(t, courseRepo, "go-basics", course.AccessFree, testutil.Lessons(2)...)
	for _, p := range []progress.Progress{
		{UserID: amina.ID, CourseID: c.ID, LessonIndex: 0, Completed: true, LastPositionSeconds: 3600},
		{UserID: amina.ID, CourseID: c.ID, LessonIndex: 1, Completed: true, LastPositionSeconds: 1800},
		{UserID: omar.ID, CourseID: c.ID, LessonIndex: 0, LastPositionSeconds: 1800},
	} {
		p.CreatedAt, p.UpdatedAt = now, now
		_, err := progressRepo.CreateProgress(ctx, p)
		require.NoError(t, err)
	}
	createRequest(t, amina, subscription.StatusApproved, now.Add(-time.Hour))
	createRequest(t, omar, subscription.StatusPending, now)
	_, err := certRepo.CreateCertificate(ctx, certificate.Certificate{
		CertificateID: "c-1", UserID: amina.ID, CourseID: c.ID, CourseTitle: c.Title, FullName: "Amina",
		CompletionDate: now, CreatedAt: now,
	})
	require.NoError(t, err)

	get := func(t *testing.T, path string, v interface{}) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/admin/analytics"+path, token)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		unmarshal(t, rec, v)
	}

	t.Run("overview", func(t *testing.T) {
		var ov analytics.Overview
		get(t, "/overview", &ov)
		assert.Equal(t, 3, ov.TotalStudents)
		assert.Equal(t, 2, ov.NewToday)
		assert.Equal(t, 1, ov.ProCount)
		assert.Equal(t, 2, ov.FreeCount)
		assert.Equal(t, 1, ov.CourseCount)
		assert.True(t, decimal.NewFromInt(29).Equal(ov.Revenue), "revenue = %s", ov.Revenue)
		assert.Equal(t, "USD", ov.Currency)
		assert.Len(t, ov.StudentGrowth, 30)
		assert.Equal(t, 2, ov.StudentGrowth[29].Count)
		assert.Equal(t, []analytics.CourseHours{{Course: c.Title, Hours: 2}}, ov.CourseWatchHours)
		assert.Equal(t, []analytics.Slice{{Name: "Free", Value: 2}, {Name: "Pro", Value: 1}}, ov.SubscriptionDistribution)
	})

	t.Run("courses", func(t *testing.T) {
		var stats []analytics.CourseStats
		get(t, "/courses", &stats)
		require.Len(t, stats, 1)
		assert.Equal(t, c.ID, stats[0].CourseID)
		assert.Equal(t, 2, stats[0].StudentsEnrolled)
		assert.Equal(t, 1, stats[0].CertificatesIssued)
		assert.Equal(t, 2.0, stats[0].TotalWatchHours)
		assert.Equal(t, 50, stats[0].CompletionRate)
	})

	t.Run("course detail", func(t *testing.T) {
		var detail analytics.CourseDetail
		get(t, "/courses/go-basics", &detail)
		assert.Equal(t, c.ID, detail.CourseID)
		assert.Equal(t, 2, detail.UniqueStudents)
		require.Len(t, detail.Lessons, 2)
		assert.Equal(t, "L1", detail.Lessons[0].Lesson)
		require.Len(t, detail.Certificates, 1)
		assert.Equal(t, "c-1", detail.Certificates[0].CertificateID)
	})

	t.Run("subscriptions", func(t *testing.T) {
		var subs analytics.Subscriptions
		get(t, "/subscriptions", &subs)
		assert.Equal(t, analytics.Subscriptions{
			RequestCounts: analytics.RequestCounts{Pending: 1, Approved: 1, Total: 2},
			ProCount:      1,
		}, subs)
	})

	runTests(t, app, []httpTest{
		{
			name: "unknown course", path: "/v1/admin/analytics/courses/ghost", token: token,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: course.ErrNotFound.Error()}),
		},
		{name: "no visitors", path: "/v1/admin/analytics/visitors", token: token, wantCode: http.StatusOK, wantData: marchallObj(t, analytics.Visitors{})},
	})
}
