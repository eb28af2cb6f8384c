package handler

import (
	"database/sql"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/Morphin20th/online-cinema/internal/payment"
)

// errNoRows is what a QueryRow scan surfaces when a row is absent.
func errNoRows() error { return sql.ErrNoRows }

// newMockDB returns a sqlmock-backed handle with regexp query matching
// so expectations can name a distinctive fragment of each statement.
func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

// newTestContext builds an echo.Context for one request with the JWT
// middleware's user_id already injected.
func newTestContext(method, target, body string, userID uint64) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("user_id", userID)
	return c, rec
}

// fakeGateway is a scriptable payment.Gateway for handler tests.
type fakeGateway struct {
	checkoutURL string
	checkoutErr error
	event       *payment.Event
	eventErr    error
	refund      *payment.Refund
	refundErr   error

	refundedIDs []string
}

func (f *fakeGateway) CreateCheckoutSession(order payment.CheckoutOrder, expiresAfter time.Duration) (string, error) {
	if f.checkoutErr != nil {
		return "", f.checkoutErr
	}
	if len(order.Items) == 0 {
		return "", payment.ErrEmptyOrder
	}
	return f.checkoutURL, nil
}

func (f *fakeGateway) ParseWebhookEvent(payload []byte, sigHeader string) (*payment.Event, error) {
	if f.eventErr != nil {
		return nil, f.eventErr
	}
	return f.event, nil
}

func (f *fakeGateway) CreateRefund(externalPaymentID string) (*payment.Refund, error) {
	if f.refundErr != nil {
		return nil, f.refundErr
	}
	f.refundedIDs = append(f.refundedIDs, externalPaymentID)
	if f.refund != nil {
		return f.refund, nil
	}
	return &payment.Refund{ID: "re_test", Status: "succeeded"}, nil
}

var _ payment.Gateway = (*fakeGateway)(nil)

// requireJSONStatus asserts the recorded status and that the body
// contains the given fragment.
func requireJSONStatus(t *testing.T, rec *httptest.ResponseRecorder, status int, fragment string) {
	t.Helper()
	require.Equal(t, status, rec.Code)
	require.Contains(t, rec.Body.String(), fragment)
}
