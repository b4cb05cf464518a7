package errors_test

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spindleci/spindle/errors"
)

func TestErrorFormatting(t *testing.T) {
	err := errors.New(errors.CodeInvalidConfig, "stage graph has a cycle")
	assert.Equal(t, "INVALID_CONFIGURATION: stage graph has a cycle", err.Error())

	wrapped := errors.Wrap(errors.CodeBuildFailed, stderrors.New("daemon exited"), "image build")
	assert.Equal(t, "BUILD_FAILED: image build: daemon exited", wrapped.Error())
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, errors.Wrap(errors.CodeUnknown, nil, "no-op"))
	assert.Nil(t, errors.Wrapf(errors.CodeUnknown, nil, "no-op %d", 1))
}

func TestCodeExtraction(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := errors.Wrap(errors.CodeUnavailable, cause, "registry ping")

	assert.Equal(t, errors.CodeUnavailable, errors.Code(err))
	assert.Equal(t, errors.CodeUnknown, errors.Code(cause))
	assert.Equal(t, errors.CodeUnknown, errors.Code(nil))
}

func TestHasCodeWalksChain(t *testing.T) {
	inner := errors.New(errors.CodeUnauthorized, "bad token")
	outer := errors.Wrap(errors.CodePublishFailed, inner, "push latest")

	assert.True(t, errors.HasCode(outer, errors.CodePublishFailed))
	assert.True(t, errors.HasCode(outer, errors.CodeUnauthorized))
	assert.False(t, errors.HasCode(outer, errors.CodeTimeout))
}

func TestUnwrapPreservesSentinels(t *testing.T) {
	sentinel := stderrors.New("secret not found")
	err := errors.Wrapf(errors.CodeNotFound, sentinel, "resolving %q", "REGISTRY_TOKEN")

	require.True(t, stderrors.Is(err, sentinel))

	var structured *errors.Error
	require.True(t, stderrors.As(err, &structured))
	assert.Equal(t, errors.CodeNotFound, structured.Code)
}
