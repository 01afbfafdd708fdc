package telemetry

import (
	"fmt"

	"go.opentelemetry.io/otel/attribute"
)

// keyvalsToAttributes converts an alternating key/value slice (as used by
// Span.AddEvent and Logger.*) into OpenTelemetry attributes. Non-string
// values are rendered with fmt.Sprint; this mirrors how structured loggers
// in the pack (zerolog, zap) flatten keyvals for unknown types.
func keyvalsToAttributes(keyvals []any) []attribute.KeyValue {
	if len(keyvals) == 0 {
		return nil
	}
	attrs := make([]attribute.KeyValue, 0, len(keyvals)/2+1)
	for i := 0; i+1 < len(keyvals); i += 2 {
		key, ok := keyvals[i].(string)
		if !ok {
			key = fmt.Sprint(keyvals[i])
		}
		attrs = append(attrs, attribute.String(key, fmt.Sprint(keyvals[i+1])))
	}
	return attrs
}
