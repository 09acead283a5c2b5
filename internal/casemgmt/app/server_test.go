package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/mdproctor/casemgmt/internal/casemgmt/domain/casefile"
	"github.com/mdproctor/casemgmt/internal/casemgmt/domain/caseinstance"
)

const testDeploymentYAML = `deployment: org.acme:hr:1.0
cases:
  - id: hr.hiring
    name: Hiring
    prefix: HR
    primary_process: hr.hiring.process
    roles:
      - name: owner
        cardinality: 1
    stages:
      - id: screening
        name: Screening
`

func TestServer_StartAndFetchCaseRoundTrip(t *testing.T) {
	dir := t.TempDir()
	defsDir := filepath.Join(dir, "definitions")
	if err := os.MkdirAll(defsDir, 0o755); err != nil {
		t.Fatalf("mkdir definitions: %v", err)
	}
	if err := os.WriteFile(filepath.Join(defsDir, "hr.yaml"), []byte(testDeploymentYAML), 0o644); err != nil {
		t.Fatalf("write deployment file: %v", err)
	}
	t.Setenv("CASEMGMT_DB_PATH", filepath.Join(dir, "casemgmt.db"))
	t.Setenv("CASEMGMT_DEFINITIONS_DIR", defsDir)

	srv, err := NewWithAddr("127.0.0.1:0")
	if err != nil {
		t.Fatalf("new server: %v", err)
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()

	serveDone := make(chan error, 1)
	go func() {
		serveDone <- srv.Serve(runCtx)
	}()
	t.Cleanup(func() {
		runCancel()
		select {
		case serveErr := <-serveDone:
			if serveErr != nil {
				t.Fatalf("serve: %v", serveErr)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("timeout waiting for server shutdown")
		}
	})

	conn, err := grpc.NewClient(srv.Addr(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("dial server: %v", err)
	}
	t.Cleanup(func() {
		if closeErr := conn.Close(); closeErr != nil {
			t.Fatalf("close gRPC connection: %v", closeErr)
		}
	})

	healthClient := grpc_health_v1.NewHealthClient(conn)
	healthResp, err := healthClient.Check(context.Background(), &grpc_health_v1.HealthCheckRequest{})
	if err != nil {
		t.Fatalf("health check: %v", err)
	}
	if got := healthResp.GetStatus(); got != grpc_health_v1.HealthCheckResponse_SERVING {
		t.Fatalf("health status = %v, want SERVING", got)
	}

	svc := srv.Service()
	file := casefile.New()
	file.Set("candidate", casefile.String("ada"))
	caseID, err := svc.StartCase(context.Background(), "org.acme:hr:1.0", "hr.hiring", file)
	if err != nil {
		t.Fatalf("start case: %v", err)
	}
	if caseID != "HR-0000000001" {
		t.Fatalf("case id = %q, want HR-0000000001", caseID)
	}

	snapshot, err := svc.GetCase(context.Background(), caseID, caseinstance.FetchOptions{WithFile: true})
	if err != nil {
		t.Fatalf("get case: %v", err)
	}
	if snapshot.State != caseinstance.StateActive {
		t.Fatalf("state = %v, want %v", snapshot.State, caseinstance.StateActive)
	}
	got, ok := snapshot.File.Get("candidate")
	if !ok || got.StringValue() != "ada" {
		t.Fatalf("candidate = %+v (ok=%v), want ada", got, ok)
	}
}

func TestServer_MissingDefinitionsDirStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CASEMGMT_DB_PATH", filepath.Join(dir, "casemgmt.db"))
	t.Setenv("CASEMGMT_DEFINITIONS_DIR", filepath.Join(dir, "missing"))

	srv, err := NewWithAddr("127.0.0.1:0")
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	defer srv.Close()

	_, err = srv.Service().StartCase(context.Background(), "org.acme:hr:1.0", "hr.hiring", nil)
	if err == nil {
		t.Fatal("expected unknown definition error")
	}
}
