package grove

import "context"

// ServiceOption configures a Service instance.
type ServiceOption func(*Service)

// OperationLogger records domain-level events emitted by Service operations.
type OperationLogger interface {
	LogOperation(ctx context.Context, entry OperationLog)
}

// OperationLog describes a state-changing assignment operation.
type OperationLog struct {
	Operation  string
	LotID      LotID
	TreeID     TreeID
	OperatorID OperatorID
	Status     string
	Error      error
}

// WithOperationLogger wires a logger that receives callbacks for every operation.
func WithOperationLogger(logger OperationLogger) ServiceOption {
	return func(service *Service) {
		service.logger = logger
	}
}

// WithNotificationSink wires the best-effort post-commit notification sink.
func WithNotificationSink(sink NotificationSink) ServiceOption {
	return func(service *Service) {
		service.sink = sink
	}
}
