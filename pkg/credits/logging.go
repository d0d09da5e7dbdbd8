package credits

import "context"

// ServiceOption configures a Service instance.
type ServiceOption func(*Service)

// OperationLogger records domain-level events emitted by Service operations.
type OperationLogger interface {
	LogOperation(ctx context.Context, entry OperationLog)
}

// OperationLog describes a state-changing credits operation.
type OperationLog struct {
	Operation       string
	TransactionType TransactionType
	UserID          UserID
	PostKind        PostKind
	PostID          int64
	PremiumType     PremiumType
	Amount          int64
	Reference       *Reference
	Status          string
	Error           error
}

// WithOperationLogger wires a logger that receives callbacks for every operation.
func WithOperationLogger(logger OperationLogger) ServiceOption {
	return func(service *Service) {
		service.logger = logger
	}
}
