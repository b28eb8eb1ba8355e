package discovery

import (
	"context"
	"fmt"
	"strings"

	authorizationv1 "k8s.io/api/authorization/v1"
	"k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/discovery"
	"k8s.io/client-go/kubernetes"
)

// AccessRule is one permission the observer needs.
type AccessRule struct {
	Group       string
	Resource    string
	Subresource string
	Verb        string
}

func (r AccessRule) String() string {
	res := r.Resource
	if r.Subresource != "" {
		res += "/" + r.Subresource
	}
	return fmt.Sprintf("%s %s.%s", r.Verb, res, r.Group)
}

// RequiredAccess returns the permissions the observer needs on the given
// queue and visibility group versions. Owner objects are not listed because
// their kinds are only known at runtime.
func RequiredAccess(queueGroupVersion, visibilityGroupVersion string) []AccessRule {
	queueGroup := groupOf(queueGroupVersion)
	rules := []AccessRule{
		{Group: queueGroup, Resource: resourceLocalQueues, Verb: "list"},
		{Group: queueGroup, Resource: resourceWorkloads, Verb: "get"},
	}
	if visibilityGroupVersion != "" {
		rules = append(rules, AccessRule{
			Group:       groupOf(visibilityGroupVersion),
			Resource:    resourceClusterQueues,
			Subresource: subresourcePendingWorkloads,
			Verb:        "get",
		})
	}
	return rules
}

// CheckAccess runs a SelfSubjectAccessReview per rule and returns the rules
// that are denied.
func CheckAccess(ctx context.Context, client kubernetes.Interface, rules []AccessRule) ([]AccessRule, error) {
	var denied []AccessRule
	for _, r := range rules {
		allowed, err := checkAccess(ctx, client, r)
		if err != nil {
			return nil, err
		}
		if !allowed {
			denied = append(denied, r)
		}
	}
	return denied, nil
}

// CheckResource performs a 3-phase conditional check for a Kubernetes resource:
//
//  1. API group exists, via ServerGroups discovery
//  2. Resource exists, via ServerResourcesForGroupVersion
//  3. RBAC allows verb, via SelfSubjectAccessReview
//
// If any phase fails or the resource is unavailable, it returns false with no error.
// Errors are only returned for unexpected failures (e.g., network issues).
func CheckResource(ctx context.Context, client kubernetes.Interface, discoveryClient discovery.DiscoveryInterface, group, version, resource, verb string) (bool, error) {
	// Phase 1: Check if API group exists.
	groupExists, err := HasAPIGroup(discoveryClient, group)
	if err != nil {
		return false, fmt.Errorf("discovery: phase 1 check API group %q: %w", group, err)
	}
	if !groupExists {
		return false, nil
	}

	// Phase 2: Check if specific resource exists in the group.
	resourceExists, err := hasResource(discoveryClient, group, version, resource)
	if err != nil {
		return false, fmt.Errorf("discovery: phase 2 check resource %q in %s/%s: %w", resource, group, version, err)
	}
	if !resourceExists {
		return false, nil
	}

	// Phase 3: Verify RBAC allows the verb.
	canAccess, err := checkAccess(ctx, client, AccessRule{Group: group, Resource: resource, Verb: verb})
	if err != nil {
		return false, fmt.Errorf("discovery: phase 3 RBAC check for %q: %w", resource, err)
	}

	return canAccess, nil
}

// hasResource checks if a specific resource exists in a group/version.
// Subresources are named "resource/subresource".
func hasResource(discoveryClient discovery.DiscoveryInterface, group, version, resource string) (bool, error) {
	groupVersion := version
	if group != "" {
		groupVersion = group + "/" + version
	}

	resources, err := discoveryClient.ServerResourcesForGroupVersion(groupVersion)
	if err != nil {
		// If the group/version is not found, treat as resource missing, not an error.
		if errors.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}

	for _, r := range resources.APIResources {
		if r.Name == resource {
			return true, nil
		}
	}
	return false, nil
}

// checkAccess creates a SelfSubjectAccessReview for a single rule.
func checkAccess(ctx context.Context, client kubernetes.Interface, r AccessRule) (bool, error) {
	review := &authorizationv1.SelfSubjectAccessReview{
		Spec: authorizationv1.SelfSubjectAccessReviewSpec{
			ResourceAttributes: &authorizationv1.ResourceAttributes{
				Verb:        r.Verb,
				Group:       r.Group,
				Resource:    r.Resource,
				Subresource: r.Subresource,
			},
		},
	}

	result, err := client.AuthorizationV1().SelfSubjectAccessReviews().Create(ctx, review, metav1.CreateOptions{})
	if err != nil {
		return false, fmt.Errorf("SelfSubjectAccessReview for %s: %w", r, err)
	}

	return result.Status.Allowed, nil
}

// groupOf returns the group of "group/version", or "" for the core group.
func groupOf(groupVersion string) string {
	group, _, found := strings.Cut(groupVersion, "/")
	if !found {
		return ""
	}
	return group
}
