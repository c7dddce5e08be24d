package reviews

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/serenitylibrary/serenity/pkg/auth"
	"github.com/serenitylibrary/serenity/pkg/binder"
	"github.com/serenitylibrary/serenity/pkg/errcodes"
	"github.com/serenitylibrary/serenity/pkg/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReviewOwnership(t *testing.T) {
	t.Parallel()
	db := testutils.NewTestDB(t)
	clock := clockwork.NewFakeClockAt(testutils.Epoch)

	e := echo.New()
	b, err := binder.New()
	require.NoError(t, err)
	e.Binder = b
	e.HTTPErrorHandler = errcodes.NewHandler().Handle

	authService := auth.NewService(db, clock, "test-secret", time.Hour)
	m := auth.NewMiddleware(authService)
	RegisterRoutesWithGroup(e.Group("/reviews", m.Authenticate), db, clock)

	book := testutils.CreateBook(t, db, "Dune", 1)
	author := testutils.CreateUser(t, db, "Ada")
	other := testutils.CreateUser(t, db, "Bob")

	do := func(method, path, body string, userToken string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		if body != "" {
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		}
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+userToken)
		rr := httptest.NewRecorder()
		e.ServeHTTP(rr, req)
		return rr
	}
	token := func(id int) string {
		user, err := authService.GetUserByID(t.Context(), id)
		require.NoError(t, err)
		tok, err := authService.GenerateToken(user)
		require.NoError(t, err)
		return tok
	}
	authorToken := token(author.ID)
	otherToken := token(other.ID)

	rr := do(http.MethodPost, "/reviews", `{"book_id":`+strconv.Itoa(book.ID)+`,"rating":6}`, authorToken)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = do(http.MethodPost, "/reviews", `{"book_id":`+strconv.Itoa(book.ID)+`,"rating":4,"description":"Sandy."}`, authorToken)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	reviews, err := NewService(db, clock).ListReviews(t.Context(), ListReviewsOptions{})
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	path := "/reviews/" + strconv.Itoa(reviews[0].ID)

	rr = do(http.MethodPut, path, `{"rating":1}`, otherToken)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = do(http.MethodPut, path, `{"rating":5}`, authorToken)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Body.String(), `"rating":5`)

	rr = do(http.MethodDelete, path, "", otherToken)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = do(http.MethodDelete, path, "", authorToken)
	assert.Equal(t, http.StatusNoContent, rr.Code)
}
