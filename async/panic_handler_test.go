package async

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	recovered []any
}

func (h *recordingHandler) HandlePanic(r interface{}) {
	h.recovered = append(h.recovered, r)
}

func TestHandlePanic(t *testing.T) {
	handler := &recordingHandler{}

	require.NotPanics(t, func() {
		defer HandlePanic(handler)
		panic("recovered")
	})

	require.NotPanics(t, func() {
		defer HandlePanic(handler)
	})

	require.Equal(t, []any{"recovered"}, handler.recovered)
}

func TestHandlePanic_Continues(t *testing.T) {
	require.PanicsWithValue(t, "noop", func() {
		defer HandlePanic(NoopPanicHandler{})
		panic("noop")
	})

	require.PanicsWithValue(t, "nil", func() {
		defer HandlePanic(nil)
		panic("nil")
	})

	require.NotPanics(t, func() {
		defer HandlePanic(&NoopPanicHandler{})
	})
}
