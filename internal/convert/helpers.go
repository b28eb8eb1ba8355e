package convert

import (
	"k8s.io/apimachinery/pkg/api/resource"
	"k8s.io/utils/ptr"
)

// ParseQuantity converts a K8s resource.Quantity to float64.
// For CPU quantities (e.g. "500m"), returns cores as float64.
// For memory/storage quantities, returns bytes as float64.
func ParseQuantity(q resource.Quantity) float64 {
	// AsApproximateFloat64 handles both milli-values and large values correctly.
	return q.AsApproximateFloat64()
}

// ParseCPUCores parses a CPU quantity string ("500m", "2") to cores.
// Returns nil on an empty or unparsable value.
func ParseCPUCores(s string) *float64 {
	if s == "" {
		return nil
	}
	q, err := resource.ParseQuantity(s)
	if err != nil {
		return nil
	}
	return ptr.To(ParseQuantity(q))
}

// ParseMemoryBytes parses a memory quantity string ("2Gi", "512M") to bytes.
// Returns nil on an empty or unparsable value.
func ParseMemoryBytes(s string) *int64 {
	if s == "" {
		return nil
	}
	q, err := resource.ParseQuantity(s)
	if err != nil {
		return nil
	}
	return ptr.To(q.Value())
}
