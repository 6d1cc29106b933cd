//go:build integration

// Package db provides integration tests for the SurrealDB result backend.
package db

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var testDB *Client
var testContainer testcontainers.Container

// TestMain sets up and tears down the SurrealDB container for all tests.
func TestMain(m *testing.M) {
	// Ryuk can fail in some CI environments
	os.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")

	ctx := context.Background()

	var err error
	testContainer, err = testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "surrealdb/surrealdb:v3.0.0-beta.1",
			ExposedPorts: []string{"8000/tcp"},
			Cmd:          []string{"start", "--log", "info", "--user", "root", "--pass", "root"},
			WaitingFor:   wait.ForLog("Started web server").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		log.Fatalf("Failed to start SurrealDB container: %v", err)
	}

	host, err := testContainer.Host(ctx)
	if err != nil {
		log.Fatalf("Failed to get container host: %v", err)
	}
	// testcontainers may report "null" as host in some environments
	if host == "" || host == "null" {
		host = "localhost"
	}
	mappedPort, err := testContainer.MappedPort(ctx, "8000")
	if err != nil {
		log.Fatalf("Failed to get mapped port: %v", err)
	}

	testDB, err = NewClient(ctx, Config{
		URL:       fmt.Sprintf("ws://%s:%s/rpc", host, mappedPort.Port()),
		Namespace: "test",
		Database:  "test",
		Username:  "root",
		Password:  "root",
		AuthLevel: "root",
	}, nil)
	if err != nil {
		log.Fatalf("Failed to connect to test database: %v", err)
	}

	if err := testDB.InitSchema(ctx); err != nil {
		log.Fatalf("Failed to initialize schema: %v", err)
	}

	code := m.Run()

	_ = testDB.Close(ctx)
	_ = testContainer.Terminate(ctx)

	os.Exit(code)
}

func TestPutAndGetResult(t *testing.T) {
	ctx := context.Background()
	t.Cleanup(func() { _ = testDB.WipeResults(ctx) })

	payload := []byte(`{"Ohio":31.5,"Utah":24.25}`)
	if err := testDB.PutResult(ctx, 1, payload); err != nil {
		t.Fatalf("PutResult failed: %v", err)
	}

	got, found, err := testDB.GetResult(ctx, 1)
	if err != nil {
		t.Fatalf("GetResult failed: %v", err)
	}
	if !found {
		t.Fatal("expected result to be found")
	}
	if string(got) != string(payload) {
		t.Errorf("GetResult = %s, want %s", got, payload)
	}
}

func TestGetMissingResult(t *testing.T) {
	_, found, err := testDB.GetResult(context.Background(), 999)
	if err != nil {
		t.Fatalf("GetResult failed: %v", err)
	}
	if found {
		t.Error("expected missing result")
	}
}

func TestEmptyPayloadIsAbsent(t *testing.T) {
	ctx := context.Background()
	t.Cleanup(func() { _ = testDB.WipeResults(ctx) })

	if err := testDB.PutResult(ctx, 5, nil); err != nil {
		t.Fatalf("PutResult failed: %v", err)
	}
	_, found, err := testDB.GetResult(ctx, 5)
	if err != nil {
		t.Fatalf("GetResult failed: %v", err)
	}
	if found {
		t.Error("empty payload should read as absent")
	}
}

func TestMaxResultIDAndWipe(t *testing.T) {
	ctx := context.Background()

	maxID, err := testDB.MaxResultID(ctx)
	if err != nil {
		t.Fatalf("MaxResultID failed: %v", err)
	}
	if maxID != 0 {
		t.Errorf("MaxResultID on empty table = %d, want 0", maxID)
	}

	for _, id := range []int64{3, 11, 7} {
		if err := testDB.PutResult(ctx, id, []byte(`{"global_mean":1}`)); err != nil {
			t.Fatalf("PutResult(%d) failed: %v", id, err)
		}
	}

	maxID, err = testDB.MaxResultID(ctx)
	if err != nil {
		t.Fatalf("MaxResultID failed: %v", err)
	}
	if maxID != 11 {
		t.Errorf("MaxResultID = %d, want 11", maxID)
	}

	if err := testDB.WipeResults(ctx); err != nil {
		t.Fatalf("WipeResults failed: %v", err)
	}
	if _, found, _ := testDB.GetResult(ctx, 11); found {
		t.Error("result should be gone after wipe")
	}
}

func TestReserveJobIDAndWipe(t *testing.T) {
	ctx := context.Background()
	t.Cleanup(func() { _ = testDB.WipeResults(ctx) })

	last, err := testDB.LastReservedJobID(ctx)
	if err != nil {
		t.Fatalf("LastReservedJobID failed: %v", err)
	}
	if last != 0 {
		t.Errorf("LastReservedJobID before any reservation = %d, want 0", last)
	}

	for _, id := range []int64{1, 2, 3} {
		if err := testDB.ReserveJobID(ctx, id); err != nil {
			t.Fatalf("ReserveJobID(%d) failed: %v", id, err)
		}
	}
	last, err = testDB.LastReservedJobID(ctx)
	if err != nil {
		t.Fatalf("LastReservedJobID failed: %v", err)
	}
	if last != 3 {
		t.Errorf("LastReservedJobID = %d, want 3", last)
	}

	if err := testDB.WipeResults(ctx); err != nil {
		t.Fatalf("WipeResults failed: %v", err)
	}
	last, err = testDB.LastReservedJobID(ctx)
	if err != nil {
		t.Fatalf("LastReservedJobID after wipe failed: %v", err)
	}
	if last != 0 {
		t.Errorf("LastReservedJobID after wipe = %d, want 0", last)
	}
}
