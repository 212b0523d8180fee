package errors_test

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/autom8ter/docmap/errors"
	"github.com/stretchr/testify/assert"
)

func TestErrors(t *testing.T) {
	t.Run("wrap nil error", func(t *testing.T) {
		var err error
		err = errors.Wrap(err, errors.NotFound, "")
		assert.Nil(t, err)
	})
	t.Run("wrap error", func(t *testing.T) {
		var err = fmt.Errorf("not found")
		err = errors.Wrap(err, errors.NotFound, "")
		assert.Equal(t, errors.NotFound, errors.Extract(err).Code)
	})
	t.Run("new error", func(t *testing.T) {
		err := errors.New(errors.NotFound, "not found")
		assert.Equal(t, errors.NotFound, errors.Extract(err).Code)
	})
	t.Run("new error then wrap", func(t *testing.T) {
		err := errors.New(0, "not found")
		err = errors.Wrap(err, errors.NotFound, "")
		assert.Equal(t, errors.NotFound, errors.Extract(err).Code)
	})
	t.Run("wrap does not mutate the wrapped error", func(t *testing.T) {
		base := errors.New(errors.Validation, "bad option")
		wrapped := errors.Wrap(base, errors.Internal, "while applying %s", "limit")
		assert.Equal(t, errors.Validation, errors.Extract(base).Code)
		assert.Len(t, errors.Extract(base).Messages, 1)
		assert.Equal(t, []string{"bad option", "while applying limit"}, errors.Extract(wrapped).Messages)
	})
	t.Run("unwrap sentinel", func(t *testing.T) {
		sentinel := stderrors.New("sentinel")
		err := errors.Wrap(sentinel, errors.Validation, "context")
		assert.True(t, stderrors.Is(err, sentinel))
	})
	t.Run("error json string", func(t *testing.T) {
		err := errors.New(0, "not found")
		err = errors.Wrap(err, errors.NotFound, "")
		e := errors.Extract(err)
		assert.JSONEq(t, `{ "code":404, "messages": ["not found"]}`, e.Error())
	})
}
