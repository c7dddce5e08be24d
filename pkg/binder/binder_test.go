package binder

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/serenitylibrary/serenity/pkg/errcodes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type borrowParams struct {
	Title      string `json:"title" mod:"trim" validate:"required,max=9"`
	BorrowDate string `json:"borrow_date" validate:"date"`
	Internal   string `json:"-"`
}

type listParams struct {
	Limit  int     `query:"limit" json:"limit" default:"25" validate:"min=1,max=100"`
	Status *string `query:"status" json:"status,omitempty" validate:"omitempty,oneof=pending approved"`
}

type contactParams struct {
	Phone string `json:"phone" validate:"phone"`
}

func request(method, target, payload, mime string) echo.Context {
	var req *http.Request
	if payload == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(payload))
	}
	if mime != "" {
		req.Header.Set(echo.HeaderContentType, mime)
	}
	return echo.New().NewContext(req, httptest.NewRecorder())
}

func TestBind_JSON(t *testing.T) {
	t.Parallel()
	b, err := New()
	require.NoError(t, err)

	t.Run("trims then validates", func(t *testing.T) {
		p := borrowParams{}
		err := b.Bind(&p, request(http.MethodPost, "/", `{"title":"  Emma  ","borrow_date":"2026-03-02"}`, echo.MIMEApplicationJSON))
		require.NoError(t, err)
		assert.Equal(t, "Emma", p.Title)
	})

	t.Run("unknown field", func(t *testing.T) {
		p := borrowParams{}
		err := b.Bind(&p, request(http.MethodPost, "/", `{"title":"Emma","isbn":"1"}`, echo.MIMEApplicationJSON))
		assert.ErrorIs(t, err, errcodes.UnknownParameter("isbn"))
	})

	t.Run("type mismatch", func(t *testing.T) {
		p := borrowParams{}
		err := b.Bind(&p, request(http.MethodPost, "/", `{"title":12}`, echo.MIMEApplicationJSON))
		require.Error(t, err)
		assert.Contains(t, err.Error(), `"title" should be of type string`)
	})

	t.Run("malformed", func(t *testing.T) {
		p := borrowParams{}
		err := b.Bind(&p, request(http.MethodPost, "/", `{"title":`, echo.MIMEApplicationJSON))
		assert.ErrorIs(t, err, errcodes.MalformedPayload())
	})

	t.Run("bad date", func(t *testing.T) {
		p := borrowParams{}
		err := b.Bind(&p, request(http.MethodPost, "/", `{"title":"Emma","borrow_date":"02/03/2026"}`, echo.MIMEApplicationJSON))
		require.Error(t, err)
		assert.Contains(t, err.Error(), `"borrow_date" should be in the format of YYYY-MM-DD`)
	})

	t.Run("too long after trim", func(t *testing.T) {
		p := borrowParams{}
		err := b.Bind(&p, request(http.MethodPost, "/", `{"title":"Middlemarch"}`, echo.MIMEApplicationJSON))
		require.Error(t, err)
		assert.Contains(t, err.Error(), `"title" length must be less than or equal to 9 characters`)
	})

	t.Run("unsupported media type", func(t *testing.T) {
		p := borrowParams{}
		err := b.Bind(&p, request(http.MethodPost, "/", `<title/>`, echo.MIMEApplicationXML))
		assert.ErrorIs(t, err, errcodes.UnsupportedMediaType())
	})

	t.Run("empty post body", func(t *testing.T) {
		p := borrowParams{}
		err := b.Bind(&p, request(http.MethodPost, "/", "", ""))
		assert.ErrorIs(t, err, errcodes.EmptyRequestBody())
	})
}

func TestBind_Query(t *testing.T) {
	t.Parallel()
	b, err := New()
	require.NoError(t, err)

	p := listParams{}
	require.NoError(t, b.Bind(&p, request(http.MethodGet, "/", "", "")))
	assert.Equal(t, 25, p.Limit)
	assert.Nil(t, p.Status)

	p = listParams{}
	require.NoError(t, b.Bind(&p, request(http.MethodGet, "/?limit=5&status=approved", "", "")))
	assert.Equal(t, 5, p.Limit)
	require.NotNil(t, p.Status)
	assert.Equal(t, "approved", *p.Status)

	p = listParams{}
	err = b.Bind(&p, request(http.MethodGet, "/?limit=many", "", ""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"limit" should be of type int`)

	p = listParams{}
	err = b.Bind(&p, request(http.MethodGet, "/?sort=title", "", ""))
	assert.ErrorIs(t, err, errcodes.UnknownParameter("sort"))

	p = listParams{}
	err = b.Bind(&p, request(http.MethodGet, "/?status=lost", "", ""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"status" must be one of the following: "pending", "approved"`)
}

func TestBind_Phone(t *testing.T) {
	t.Parallel()
	b, err := New()
	require.NoError(t, err)

	for payload, ok := range map[string]bool{
		`{"phone":"0123456789"}`:  true,
		`{"phone":""}`:            true,
		`{"phone":"01234567890"}`: false,
		`{"phone":"12ab"}`:        false,
	} {
		p := contactParams{}
		err := b.Bind(&p, request(http.MethodPost, "/", payload, echo.MIMEApplicationJSON))
		if ok {
			assert.NoError(t, err, payload)
		} else {
			assert.Error(t, err, payload)
		}
	}
}
