package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/tessellate-ai/recall/internal/index"
)

// QdrantContainer represents a Qdrant container for testing
type QdrantContainer struct {
	Container testcontainers.Container
	Host      string
	Port      string
}

// NewQdrantContainer creates and starts a Qdrant container
func NewQdrantContainer(ctx context.Context, t *testing.T) *QdrantContainer {
	req := testcontainers.ContainerRequest{
		Image:        "qdrant/qdrant:v1.12.5",
		ExposedPorts: []string{"6333/tcp"},
		WaitingFor: wait.ForAll(
			wait.ForLog("Qdrant HTTP listening"),
			wait.ForListeningPort("6333/tcp"),
		).WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("failed to create qdrant container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "6333")
	if err != nil {
		t.Fatalf("failed to get container port: %v", err)
	}

	return &QdrantContainer{
		Container: container,
		Host:      host,
		Port:      port.Port(),
	}
}

// Endpoint returns the Qdrant HTTP endpoint URL
func (qc *QdrantContainer) Endpoint() string {
	return fmt.Sprintf("http://%s:%s", qc.Host, qc.Port)
}

// Terminate stops and removes the container
func (qc *QdrantContainer) Terminate(ctx context.Context) error {
	return testcontainers.TerminateContainer(qc.Container)
}

// NewTestIndex creates an index client connected to the test container and
// waits until the service answers health probes
func NewTestIndex(ctx context.Context, t *testing.T, qc *QdrantContainer, collection string) *index.Client {
	client := index.New(index.Config{
		URL:        qc.Endpoint(),
		Collection: collection,
		Timeout:    30 * time.Second,
	})

	var err error
	for i := 0; i < 5; i++ {
		if err = client.Health(ctx); err == nil {
			return client
		}
		time.Sleep(time.Duration(i+1) * 500 * time.Millisecond)
	}
	client.Close()
	t.Fatalf("qdrant container never became healthy: %v", err)
	return nil
}
