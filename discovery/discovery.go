package discovery

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// Registry is the service-discovery contract shared by every service in
// the platform. consul.Registry is the production implementation;
// inmem.Registry backs tests and local dev without a running Consul.
type Registry interface {
	Register(ctx context.Context, instanceID, serviceName, hostPort string) error
	Deregister(ctx context.Context, instanceID, serviceName string) error
	Discover(ctx context.Context, serviceName string) ([]string, error)
	HealthCheck(instanceID, serviceName string) error
}

// GenerateInstanceID builds a unique registration ID for one running
// process of serviceName.
func GenerateInstanceID(serviceName string) string {
	return fmt.Sprintf("%s-%d", serviceName, rand.New(rand.NewSource(time.Now().UnixNano())).Int())
}
