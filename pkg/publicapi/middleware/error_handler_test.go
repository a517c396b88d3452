//go:build unit || !integration

package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/suite"

	"github.com/bacalhau-project/contractnet/pkg/cnerrors"
	"github.com/bacalhau-project/contractnet/pkg/publicapi/apimodels"
)

type CustomHTTPErrorHandlerTestSuite struct {
	suite.Suite
	echo *echo.Echo
}

func (suite *CustomHTTPErrorHandlerTestSuite) SetupTest() {
	suite.echo = echo.New()
	suite.echo.HTTPErrorHandler = CustomHTTPErrorHandler
}

func (suite *CustomHTTPErrorHandlerTestSuite) TestCNError() {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := suite.echo.NewContext(req, rec)

	err := cnerrors.New("bus unreachable").
		WithCode(cnerrors.TransportError).
		WithComponent("NATSBus").
		WithHint("start a bus")
	CustomHTTPErrorHandler(err, c)

	suite.Equal(http.StatusServiceUnavailable, rec.Result().StatusCode)

	var apiError apimodels.APIError
	suite.Require().NoError(json.NewDecoder(rec.Body).Decode(&apiError))

	suite.Equal("bus unreachable", apiError.Message)
	suite.Equal(string(cnerrors.TransportError), apiError.Code)
	suite.Equal("NATSBus", apiError.Component)
	suite.Equal("start a bus", apiError.Hint)
}

func (suite *CustomHTTPErrorHandlerTestSuite) TestWrappedConfigurationError() {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := suite.echo.NewContext(req, rec)

	err := cnerrors.Wrap(errors.New("port out of range"), "invalid config").WithCode(cnerrors.ConfigurationError)
	CustomHTTPErrorHandler(err, c)

	suite.Equal(http.StatusBadRequest, rec.Result().StatusCode)
}

func (suite *CustomHTTPErrorHandlerTestSuite) TestEchoHTTPError() {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := suite.echo.NewContext(req, rec)

	err := echo.NewHTTPError(http.StatusUnauthorized, "unauthorized access")

	CustomHTTPErrorHandler(err, c)

	suite.Equal(http.StatusUnauthorized, rec.Result().StatusCode)

	var apiError apimodels.APIError
	suite.Require().NoError(json.NewDecoder(rec.Body).Decode(&apiError))

	suite.Equal("unauthorized access", apiError.Message)
	suite.Equal(string(cnerrors.InternalError), apiError.Code)
	suite.Equal("APIServer", apiError.Component)
}

func (suite *CustomHTTPErrorHandlerTestSuite) TestDefaultError() {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := suite.echo.NewContext(req, rec)

	err := errors.New("unknown error")

	CustomHTTPErrorHandler(err, c)

	suite.Equal(http.StatusInternalServerError, rec.Result().StatusCode)

	var apiError apimodels.APIError
	suite.Require().NoError(json.NewDecoder(rec.Body).Decode(&apiError))

	suite.Equal("Internal server error", apiError.Message)
	suite.Equal(string(cnerrors.InternalError), apiError.Code)
	suite.Equal("Unknown", apiError.Component)
}

func (suite *CustomHTTPErrorHandlerTestSuite) TestHeadRequest() {
	req := httptest.NewRequest(http.MethodHead, "/", nil)
	rec := httptest.NewRecorder()
	c := suite.echo.NewContext(req, rec)

	CustomHTTPErrorHandler(errors.New("test error"), c)

	suite.Equal(http.StatusInternalServerError, rec.Result().StatusCode)
	suite.Empty(rec.Body.String())
}

func (suite *CustomHTTPErrorHandlerTestSuite) TestRequestIDPropagation() {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(echo.HeaderXRequestID, "test-request-id")
	rec := httptest.NewRecorder()
	c := suite.echo.NewContext(req, rec)

	CustomHTTPErrorHandler(errors.New("test error"), c)

	var apiError apimodels.APIError
	suite.Require().NoError(json.NewDecoder(rec.Body).Decode(&apiError))
	suite.Equal("test-request-id", apiError.RequestID)
}

func TestCustomHTTPErrorHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(CustomHTTPErrorHandlerTestSuite))
}
