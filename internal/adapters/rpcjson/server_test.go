package rpcjson

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/himanshu07rautela/CVD-Gradient/internal/adapters/backend/demo"
	"github.com/himanshu07rautela/CVD-Gradient/internal/adapters/db/sqlite"
	"github.com/himanshu07rautela/CVD-Gradient/internal/application"
	"github.com/himanshu07rautela/CVD-Gradient/internal/domain"
	"github.com/himanshu07rautela/CVD-Gradient/internal/session"
	"github.com/sirupsen/logrus"
)

type rpcReply struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
	ID     any             `json:"id"`
}

func startTestServer(t *testing.T) (*Server, *application.PortalService, *session.Registry) {
	t.Helper()
	dir := t.TempDir()
	db, err := sqlite.Open(filepath.Join(dir, "portal_test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := sqlite.RunMigrations(context.Background(), db); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	backend, err := demo.New()
	if err != nil {
		t.Fatalf("demo backend: %v", err)
	}
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	svc := application.NewPortalService(backend, sqlite.NewActivityRepository(db), log)
	sessions := session.NewRegistry(time.Hour)
	srv, err := Start(filepath.Join(dir, "rpc.sock"), svc, sessions, log)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() { _ = srv.Close() })
	return srv, svc, sessions
}

func call(t *testing.T, srv *Server, line string) rpcReply {
	t.Helper()
	conn, err := net.DialTimeout("unix", srv.path, time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer func() { _ = conn.Close() }()
	if _, err := conn.Write([]byte(line + "\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	var reply rpcReply
	if err := json.NewDecoder(bufio.NewReader(conn)).Decode(&reply); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return reply
}

func TestSocketIsPrivate(t *testing.T) {
	srv, _, _ := startTestServer(t)
	info, err := os.Stat(srv.path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("socket mode = %o, want 600", perm)
	}
}

func TestSessionsCountAndHealth(t *testing.T) {
	srv, _, sessions := startTestServer(t)
	if _, _, err := sessions.Create(); err != nil {
		t.Fatalf("create session: %v", err)
	}

	reply := call(t, srv, `{"jsonrpc":"2.0","method":"sessions.count","id":7}`)
	if reply.Error != nil {
		t.Fatalf("unexpected error: %+v", reply.Error)
	}
	var count map[string]int
	if err := json.Unmarshal(reply.Result, &count); err != nil || count["count"] != 1 {
		t.Fatalf("count result = %s", reply.Result)
	}

	reply = call(t, srv, `{"jsonrpc":"2.0","method":"health","id":1}`)
	var health map[string]any
	if err := json.Unmarshal(reply.Result, &health); err != nil || health["status"] != "ok" {
		t.Fatalf("health result = %s", reply.Result)
	}
}

func TestAuditListReturnsNewestFirst(t *testing.T) {
	srv, svc, _ := startTestServer(t)
	ctx := context.Background()
	svc.WriteAudit(ctx, "u-1", "auth.login", "patient@demo.com", "patient")
	svc.WriteAudit(ctx, "u-1", "auth.logout", "patient@demo.com", "")

	reply := call(t, srv, `{"jsonrpc":"2.0","method":"audit.list","params":{"limit":1},"id":2}`)
	var logs []domain.AuditRecord
	if err := json.Unmarshal(reply.Result, &logs); err != nil {
		t.Fatalf("decode logs: %v", err)
	}
	if len(logs) != 1 || logs[0].Action != "auth.logout" {
		t.Fatalf("unexpected logs: %+v", logs)
	}
}

func TestSubmissionsListRejectsNegativeLimit(t *testing.T) {
	srv, _, _ := startTestServer(t)
	reply := call(t, srv, `{"jsonrpc":"2.0","method":"submissions.list","params":{"limit":-1},"id":3}`)
	if reply.Error == nil || reply.Error.Code != 40000 {
		t.Fatalf("expected app error, got %+v", reply)
	}
	reply = call(t, srv, `{"jsonrpc":"2.0","method":"submissions.list","id":4}`)
	if reply.Error != nil {
		t.Fatalf("unexpected error: %+v", reply.Error)
	}
}

func TestProtocolErrors(t *testing.T) {
	srv, _, _ := startTestServer(t)
	cases := []struct {
		line string
		code int
	}{
		{`{"jsonrpc":"1.0","method":"health","id":1}`, -32600},
		{`{"jsonrpc":"2.0","method":"nope","id":1}`, -32601},
		{`{"jsonrpc":"2.0","method":"audit.list","params":"bad","id":1}`, -32602},
		{`{not json`, -32700},
	}
	for _, tc := range cases {
		reply := call(t, srv, tc.line)
		if reply.Error == nil || reply.Error.Code != tc.code {
			t.Fatalf("%s: got %+v, want code %d", tc.line, reply.Error, tc.code)
		}
	}
}
