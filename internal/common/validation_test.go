package common

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestValidator_CollectsAllErrors(t *testing.T) {
	v := NewValidator().
		Field("name", "  ", Required).
		Field("url", "ftp://example.com", Required, HTTPURL).
		Field("contact_email", "nobody", Email).
		Field("short_description", "abcdef", MaxLen(3))

	require.True(t, v.HasErrors())
	assert.Len(t, v.Errors(), 4)
	assert.True(t, IsValidationError(v.Error()))

	assert.Equal(t, codes.InvalidArgument, status.Code(ToGRPCError(v.Error())))
	assert.Contains(t, v.ErrorMessage(), "contact_email")
}

func TestValidator_Passes(t *testing.T) {
	v := NewValidator().
		Field("name", "Acme", Required, MinLen(2)).
		Field("url", "https://acme.example", HTTPURL).
		Field("contact_email", "founder@acme.example", Email)

	assert.False(t, v.HasErrors())
	assert.NoError(t, v.Error())
}

func TestToGRPCError(t *testing.T) {
	assert.Nil(t, ToGRPCError(nil))
	assert.Equal(t, codes.NotFound, status.Code(ToGRPCError(WrapError(ErrNotFound, "job"))))
	assert.Equal(t, codes.InvalidArgument, status.Code(ToGRPCError(NewAppError("BAD", "x", ErrInvalidInput))))
	assert.Equal(t, codes.FailedPrecondition, status.Code(ToGRPCError(ErrJobNotStartable)))
	assert.Equal(t, codes.Internal, status.Code(ToGRPCError(errors.New("connection reset"))))

	already := InvalidArgumentError("bad id")
	assert.Equal(t, already, ToGRPCError(already))
}
