package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap(nil, "context"))

	base := stderrors.New("boom")
	wrapped := Wrap(base, "list zones")
	assert.EqualError(t, wrapped, "list zones: boom")
	assert.True(t, stderrors.Is(wrapped, base))
}

func TestKindSurvivesWrapping(t *testing.T) {
	err := Wrap(New(KindNotFound, "locate", stderrors.New("no match")), "remediate")

	assert.Equal(t, KindNotFound, KindOf(err))
	assert.True(t, IsKind(err, KindNotFound))
	assert.False(t, IsKind(err, KindRemoteCall))
	assert.Equal(t, KindUnknown, KindOf(stderrors.New("plain")))
	assert.False(t, IsKind(nil, KindUnknown))
}

func TestWithInstance(t *testing.T) {
	t.Run("Classified", func(t *testing.T) {
		orig := Newf(KindUnsupportedState, "decide", "status %s", "PROVISIONING")
		err := WithInstance(orig, "web-1")

		assert.Equal(t, KindUnsupportedState, KindOf(err))
		assert.Equal(t, "web-1", InstanceOf(err))
		assert.Empty(t, orig.Instance, "original error must not be mutated")
		assert.Contains(t, err.Error(), "instance web-1")
	})

	t.Run("UnclassifiedBecomesRemoteCall", func(t *testing.T) {
		err := WithInstance(fmt.Errorf("socket closed"), "web-1")
		assert.Equal(t, KindRemoteCall, KindOf(err))
		assert.Equal(t, "web-1", InstanceOf(err))
	})

	t.Run("Nil", func(t *testing.T) {
		assert.Nil(t, WithInstance(nil, "web-1"))
	})
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "authorization", KindAuthorization.String())
	assert.Equal(t, "signal_validation", KindSignalValidation.String())
	assert.Equal(t, "unknown", Kind(99).String())
}
