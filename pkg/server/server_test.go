package server

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/encoding/json"
	"github.com/serenitylibrary/serenity/pkg/config"
	"github.com/serenitylibrary/serenity/pkg/jobs"
	"github.com/serenitylibrary/serenity/pkg/mailer"
	"github.com/serenitylibrary/serenity/pkg/models"
	"github.com/serenitylibrary/serenity/pkg/otp"
	"github.com/serenitylibrary/serenity/pkg/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

type testServer struct {
	e    *echo.Echo
	db   *bun.DB
	svcs *Services
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db := testutils.NewTestDB(t)
	clock := clockwork.NewFakeClockAt(testutils.Epoch)
	cfg := config.NewForTest()

	svcs, err := NewServices(cfg, db, clock)
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
	})

	e, err := newEcho(cfg, db, clock, svcs, otp.NewStore(client, cfg.OTPTTL), &mailer.Recorder{})
	require.NoError(t, err)

	return &testServer{e, db, svcs}
}

func (s *testServer) do(t *testing.T, method, path, body string, user *models.User) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if user != nil {
		token, err := s.svcs.Auth.GenerateToken(user)
		require.NoError(t, err)
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	s.e.ServeHTTP(rr, req)
	return rr
}

func TestHealthAndNotFound(t *testing.T) {
	s := newTestServer(t)

	rr := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = s.do(t, http.MethodGet, "/nowhere", "", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = s.do(t, http.MethodGet, "/books", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

// A sold-out book goes to the head of the queue when it comes back, and the
// reader at the head borrows it without the copy touching the shelf.
func TestLastCopyQueueFlow(t *testing.T) {
	s := newTestServer(t)

	admin := testutils.CreateAdmin(t, s.db, "Librarian")
	first := testutils.CreateUser(t, s.db, "Ada")
	second := testutils.CreateUser(t, s.db, "Bob")

	rr := s.do(t, http.MethodPost, "/books", `{"title":"Dune","author":"Frank Herbert","total_copies":1}`, admin)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	book := &models.Book{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), book))
	bookBody := `{"book_id":` + strconv.Itoa(book.ID) + `}`

	rr = s.do(t, http.MethodPost, "/books", `{"title":"Dune","author":"Frank Herbert","total_copies":1}`, first)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = s.do(t, http.MethodPost, "/borrows", bookBody, first)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = s.do(t, http.MethodPost, "/borrows", bookBody, second)
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = s.do(t, http.MethodPost, "/reservations", bookBody, second)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Body.String(), `"queue_position":1`)

	rr = s.do(t, http.MethodPost, "/borrows/return", bookBody, first)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = s.do(t, http.MethodGet, "/reservations/status/approved/user/"+strconv.Itoa(second.ID), "", second)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Body.String(), `"total":1`)
	assert.Equal(t, 0, testutils.ReloadBook(t, s.db, book.ID).AvailableCopies)

	rr = s.do(t, http.MethodPost, "/borrows/borrow-reserved", bookBody, second)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	assert.Equal(t, 0, testutils.ReloadBook(t, s.db, book.ID).AvailableCopies)
	assert.Equal(t, 0, testutils.ReloadUser(t, s.db, first.ID).BookCount)
	assert.Equal(t, 1, testutils.ReloadUser(t, s.db, second.ID).BookCount)

	notifyType := models.JobTypeNotify
	queued, err := s.svcs.Jobs.ListJobs(t.Context(), jobs.ListJobsOptions{Type: &notifyType})
	require.NoError(t, err)
	types := []string{}
	for _, job := range queued {
		types = append(types, job.DataParsed.(*models.Notification).Type)
	}
	assert.Equal(t, []string{
		models.NotificationBorrowCreated,
		models.NotificationReservationApproved,
		models.NotificationBorrowCreated,
	}, types)
}

func TestFinesAccrueAndPay(t *testing.T) {
	s := newTestServer(t)

	admin := testutils.CreateAdmin(t, s.db, "Librarian")
	reader := testutils.CreateUser(t, s.db, "Ada")
	book := testutils.CreateBook(t, s.db, "Emma", 1)

	rr := s.do(t, http.MethodPost, "/borrows", `{"book_id":`+strconv.Itoa(book.ID)+`,"borrow_date":"2026-02-16"}`, reader)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = s.do(t, http.MethodPost, "/fines/accrue", "", reader)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = s.do(t, http.MethodPost, "/fines/accrue", "", admin)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Body.String(), `"created":1`)

	path := "/fines/total-unpaid/" + strconv.Itoa(reader.ID)
	rr = s.do(t, http.MethodGet, path, "", reader)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"total":"20"}`, rr.Body.String())

	rr = s.do(t, http.MethodPost, "/fines/pay-total/"+strconv.Itoa(reader.ID), "", reader)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.JSONEq(t, `{"settled":1}`, rr.Body.String())

	rr = s.do(t, http.MethodGet, path, "", reader)
	assert.JSONEq(t, `{"total":"0"}`, rr.Body.String())
}

func TestNewServices_RejectsBadRate(t *testing.T) {
	cfg := config.NewForTest()
	cfg.FineRatePerDay = "five"
	_, err := NewServices(cfg, testutils.NewTestDB(t), clockwork.NewFakeClockAt(time.Time{}))
	assert.Error(t, err)
}
