package async

type PanicHandler interface {
	HandlePanic(r interface{})
}

// NoopPanicHandler lets the panic continue.
type NoopPanicHandler struct{}

func (n NoopPanicHandler) HandlePanic(r interface{}) {
	panic(r)
}

// HandlePanic must be deferred. It recovers from a panic and passes it to the handler;
// without a handler the panic continues.
func HandlePanic(panicHandler PanicHandler) {
	if panicHandler == nil {
		return
	}

	if r := recover(); r != nil {
		panicHandler.HandlePanic(r)
	}
}
