package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"
)

type ErrorTestSuite struct {
	suite.Suite
}

func TestErrorSuite(t *testing.T) {
	suite.Run(t, new(ErrorTestSuite))
}

func (suite *ErrorTestSuite) TestNewError() {
	err := New(ErrCodeInvalidParameter, "invalid parameter")
	suite.NotNil(err)
	suite.Equal(ErrCodeInvalidParameter, err.Code)
	suite.Equal("invalid parameter", err.Message)
	suite.Nil(err.Cause)
}

func (suite *ErrorTestSuite) TestNewfError() {
	err := Newf(ErrCodeInvalidParameter, "invalid parameter: %s", "test")
	suite.NotNil(err)
	suite.Equal(ErrCodeInvalidParameter, err.Code)
	suite.Equal("invalid parameter: test", err.Message)
	suite.Nil(err.Cause)
}

func (suite *ErrorTestSuite) TestWrapError() {
	cause := errors.New("underlying error")
	err := Wrap(ErrCodeTransportRequestFailed, "request failed", cause)
	suite.NotNil(err)
	suite.Equal(ErrCodeTransportRequestFailed, err.Code)
	suite.Equal("request failed", err.Message)
	suite.Equal(cause, err.Cause)
}

func (suite *ErrorTestSuite) TestWrapfError() {
	cause := errors.New("underlying error")
	err := Wrapf(ErrCodeAccountFetchFailed, cause, "failed to fetch account: %s", "123ABC")
	suite.NotNil(err)
	suite.Equal(ErrCodeAccountFetchFailed, err.Code)
	suite.Equal("failed to fetch account: 123ABC", err.Message)
	suite.Equal(cause, err.Cause)
}

func (suite *ErrorTestSuite) TestErrorString() {
	err := New(ErrCodeInvalidParameter, "invalid parameter")
	suite.Equal("[100] invalid parameter", err.Error())
}

func (suite *ErrorTestSuite) TestErrorStringWithCause() {
	cause := errors.New("underlying error")
	err := Wrap(ErrCodeTransportRequestFailed, "request failed", cause)
	suite.Equal("[200] request failed: underlying error", err.Error())
}

func (suite *ErrorTestSuite) TestUnwrap() {
	cause := errors.New("underlying error")
	err := Wrap(ErrCodeTransportRequestFailed, "request failed", cause)
	suite.Equal(cause, err.Unwrap())
}

func (suite *ErrorTestSuite) TestUnwrapNil() {
	err := New(ErrCodeInvalidParameter, "invalid parameter")
	suite.Nil(err.Unwrap())
}

func (suite *ErrorTestSuite) TestGetCode() {
	err := New(ErrCodeInvalidParameter, "invalid parameter")
	suite.Equal(ErrCodeInvalidParameter, GetCode(err))
}

func (suite *ErrorTestSuite) TestGetCodeFromWrapped() {
	cause := New(ErrCodeStreamConnectFailed, "dial failed")
	err := Wrap(ErrCodeStreamAuthFailed, "login rejected", cause)
	// GetCode should return the outermost error's code
	suite.Equal(ErrCodeStreamAuthFailed, GetCode(err))
}

func (suite *ErrorTestSuite) TestGetCodeFromPlainError() {
	err := errors.New("standard error")
	suite.Equal(ErrCodeUnknown, GetCode(err))
}

func (suite *ErrorTestSuite) TestHasCode() {
	err := New(ErrCodeInvalidParameter, "invalid parameter")
	suite.True(HasCode(err, ErrCodeInvalidParameter))
	suite.False(HasCode(err, ErrCodeTransportRequestFailed))
}

func (suite *ErrorTestSuite) TestIsError() {
	cause := errors.New("underlying error")
	err := Wrap(ErrCodeTransportRequestFailed, "request failed", cause)
	suite.True(Is(err, cause))
}

func (suite *ErrorTestSuite) TestAsError() {
	err := New(ErrCodeInvalidParameter, "invalid parameter")
	var codedErr *Error
	suite.True(As(err, &codedErr))
	suite.Equal(ErrCodeInvalidParameter, codedErr.Code)
}

func (suite *ErrorTestSuite) TestErrorCodeValues() {
	// Verify some key error codes have expected values
	suite.Equal(ErrorCode(1), ErrCodeUnknown)
	suite.Equal(ErrorCode(100), ErrCodeInvalidParameter)
	suite.Equal(ErrorCode(200), ErrCodeTransportRequestFailed)
	suite.Equal(ErrorCode(300), ErrCodeStreamConnectFailed)
	suite.Equal(ErrorCode(301), ErrCodeStreamAuthFailed)
	suite.Equal(ErrorCode(400), ErrCodeAccountNotFound)
	suite.Equal(ErrorCode(500), ErrCodeSnapshotWriteFailed)
	suite.Equal(ErrorCode(600), ErrCodeCallbackFailed)
}

func (suite *ErrorTestSuite) TestAuthDistinguishableFromConnect() {
	authErr := New(ErrCodeStreamAuthFailed, "login rejected by streamer")
	connErr := New(ErrCodeStreamConnectFailed, "failed to dial streamer")
	suite.True(HasCode(authErr, ErrCodeStreamAuthFailed))
	suite.False(HasCode(authErr, ErrCodeStreamConnectFailed))
	suite.True(HasCode(connErr, ErrCodeStreamConnectFailed))
}
