package observability

// Metric name prefix
const (
	MetricPrefix = "creditledger"
)

// Label keys
const (
	LabelMethod          = "method"
	LabelPath            = "path"
	LabelStatusCode      = "status_code"
	LabelTransactionType = "transaction_type"
	LabelEventType       = "event_type"
	LabelOperation       = "operation"
)
