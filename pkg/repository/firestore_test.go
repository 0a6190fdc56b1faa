package repository

import (
	"errors"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"

	"github.com/karte-health/karte/pkg/model"
)

func TestPersistenceErr(t *testing.T) {
	cause := errors.New("rpc error: unavailable")
	err := persistenceErr(cause, "failed to put turn",
		goerr.V("session_id", model.SessionID("chat_1")), goerr.V("seq", 3))

	gt.Error(t, err)
	gt.True(t, errors.Is(err, model.ErrPersistence))
	gt.S(t, err.Error()).Contains("failed to put turn")

	goErr := goerr.Unwrap(err)
	gt.V(t, goErr).NotNil()
	values := goErr.Values()
	gt.Value(t, values["session_id"]).Equal(model.SessionID("chat_1"))
	gt.Value(t, values["cause"]).Equal(cause.Error())
}
