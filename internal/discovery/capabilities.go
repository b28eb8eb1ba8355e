package discovery

import (
	stderrors "errors"
	"fmt"
	"slices"
	"strings"

	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/discovery"

	obserrors "github.com/kubeadapt/kueue-observer/internal/errors"
)

// Well-known groups and resources used for capability detection.
const (
	VisibilityGroup = "visibility.kueue.x-k8s.io"

	resourceLocalQueues         = "localqueues"
	resourceWorkloads           = "workloads"
	resourceClusterQueues       = "clusterqueues"
	subresourcePendingWorkloads = "pendingworkloads"
)

// VisibilityVersions lists the visibility API versions the observer can
// read, most preferred first.
var VisibilityVersions = []string{"v1beta2", "v1beta1", "v1alpha1"}

// Capabilities describes what the observed API serves. Results are computed
// once at startup.
type Capabilities struct {
	QueueGroupVersion string
	// LocalQueues is set when the queue group version serves localqueues.
	LocalQueues bool
	// VisibilityGroupVersion is the pending workloads API to read, or "" if
	// no supported version is served.
	VisibilityGroupVersion string
}

// Detect probes the discovery API for the queue group and the preferred
// visibility version. A missing visibility API is reported in the result,
// not as an error; errors are only returned when discovery itself fails.
func Detect(discoveryClient discovery.DiscoveryInterface, queueGroupVersion string) (*Capabilities, error) {
	gv, err := schema.ParseGroupVersion(queueGroupVersion)
	if err != nil {
		return nil, fmt.Errorf("discovery: queue group version %q: %w", queueGroupVersion, err)
	}

	caps := &Capabilities{QueueGroupVersion: queueGroupVersion}

	caps.LocalQueues, err = hasResource(discoveryClient, gv.Group, gv.Version, resourceLocalQueues)
	if err != nil {
		return nil, discoveryError(fmt.Errorf("discovery: check %s in %s: %w", resourceLocalQueues, queueGroupVersion, err))
	}

	version, err := DetectVisibilityVersion(discoveryClient)
	if err != nil {
		var oe *obserrors.ObserverError
		if !stderrors.As(err, &oe) || oe.Code != obserrors.ErrVisibilityUnavailable {
			return nil, err
		}
		return caps, nil
	}
	caps.VisibilityGroupVersion = version
	return caps, nil
}

// DetectVisibilityVersion returns the first served visibility group version
// in VisibilityVersions order that exposes clusterqueues/pendingworkloads,
// e.g. "visibility.kueue.x-k8s.io/v1beta1".
func DetectVisibilityVersion(discoveryClient discovery.DiscoveryInterface) (string, error) {
	groups, err := discoveryClient.ServerGroups()
	if err != nil {
		return "", discoveryError(fmt.Errorf("discovery: failed to list server groups: %w", err))
	}

	var served []string
	for _, g := range groups.Groups {
		if g.Name != VisibilityGroup {
			continue
		}
		for _, v := range g.Versions {
			served = append(served, v.Version)
		}
	}

	pending := resourceClusterQueues + "/" + subresourcePendingWorkloads
	for _, v := range VisibilityVersions {
		if !slices.Contains(served, v) {
			continue
		}
		ok, err := hasResource(discoveryClient, VisibilityGroup, v, pending)
		if err != nil {
			return "", discoveryError(fmt.Errorf("discovery: check %s in %s/%s: %w", pending, VisibilityGroup, v, err))
		}
		if ok {
			return VisibilityGroup + "/" + v, nil
		}
	}

	return "", &obserrors.ObserverError{
		Code:      obserrors.ErrVisibilityUnavailable,
		Message:   fmt.Sprintf("no supported %s version served (want one of %s)", VisibilityGroup, strings.Join(VisibilityVersions, ", ")),
		Component: "discovery",
	}
}

// HasAPIGroup checks whether a specific API group is registered with the cluster.
func HasAPIGroup(discoveryClient discovery.DiscoveryInterface, group string) (bool, error) {
	groups, err := discoveryClient.ServerGroups()
	if err != nil {
		return false, fmt.Errorf("discovery: failed to list server groups: %w", err)
	}

	for _, g := range groups.Groups {
		if g.Name == group {
			return true, nil
		}
	}
	return false, nil
}

func discoveryError(err error) error {
	return &obserrors.ObserverError{
		Code:      obserrors.ErrDiscoveryFailed,
		Message:   err.Error(),
		Component: "discovery",
		Err:       err,
	}
}
