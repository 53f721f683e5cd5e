package responses

import (
	"net/http"

	"github.com/getsentry/sentry-go"
	sentryecho "github.com/getsentry/sentry-go/echo"
	"github.com/labstack/echo/v4"
)

// ErrorResponse is the FALCON protocol failure envelope. The codes are part
// of the wire contract and must stay stable.
type ErrorResponse struct {
	Status         string `json:"status"`
	Code           string `json:"code"`
	Message        string `json:"message"`
	HttpStatusCode int    `json:"-"`
}

var UnauthorizedError = ErrorResponse{
	Status:         "FAIL",
	Code:           "00",
	Message:        "unauthorised",
	HttpStatusCode: 401,
}

var AccountInvalidError = ErrorResponse{
	Status:         "FAIL",
	Code:           "01",
	Message:        "account invalid",
	HttpStatusCode: 400,
}

var CurrencyRequiredError = ErrorResponse{
	Status:         "FAIL",
	Code:           "02",
	Message:        "currency is required",
	HttpStatusCode: 400,
}

var CurrencyUnsupportedError = ErrorResponse{
	Status:         "FAIL",
	Code:           "02",
	Message:        "currency not supported",
	HttpStatusCode: 400,
}

var AmountInvalidError = ErrorResponse{
	Status:         "FAIL",
	Code:           "03",
	Message:        "Amount invalid",
	HttpStatusCode: 400,
}

var QuoteUnavailableError = ErrorResponse{
	Status:         "FAIL",
	Code:           "03",
	Message:        "Amount cannot be processed at this time",
	HttpStatusCode: 400,
}

var RefundAddressInvalidError = ErrorResponse{
	Status:         "FAIL",
	Code:           "04",
	Message:        "refund address invalid",
	HttpStatusCode: 400,
}

var PayerInvalidError = ErrorResponse{
	Status:         "FAIL",
	Code:           "05",
	Message:        "payer invalid",
	HttpStatusCode: 400,
}

var OrderNotFoundError = ErrorResponse{
	Status:         "FAIL",
	Code:           "07",
	Message:        "order not found",
	HttpStatusCode: 404,
}

var TooManyRequestsError = ErrorResponse{
	Status:         "FAIL",
	Code:           "08",
	Message:        "too many requests",
	HttpStatusCode: 429,
}

var GeneralServerError = ErrorResponse{
	Status:         "FAIL",
	Code:           "06",
	Message:        "Something went wrong. Please try again later",
	HttpStatusCode: 500,
}

// isErrAllowedForSentry filters client-side failures out of the exception
// stream: a rejected request is not an incident.
func isErrAllowedForSentry(err error) bool {
	if he, ok := err.(*echo.HTTPError); ok {
		return he.Code >= http.StatusInternalServerError
	}
	return true
}

func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	c.Logger().Error(err)
	if hub := sentryecho.GetHubFromContext(c); hub != nil && isErrAllowedForSentry(err) {
		hub.WithScope(func(scope *sentry.Scope) {
			scope.SetExtra("RequestID", c.Response().Header().Get(echo.HeaderXRequestID))
			hub.CaptureException(err)
		})
	}
	if he, ok := err.(*echo.HTTPError); ok {
		// failed basic auth must answer the protocol envelope
		if he.Code == http.StatusUnauthorized {
			c.JSON(UnauthorizedError.HttpStatusCode, &UnauthorizedError)
			return
		}
		c.JSON(he.Code, he.Message)
		return
	}
	c.JSON(http.StatusInternalServerError, GeneralServerError)
}
