package main

import (
	"context"
	"fmt"
)

func doHealth(ctx context.Context, cfg cliConfig, out any) error {
	if cfg.Transport == "uds" {
		return newRPCClient(cfg.Socket).call(ctx, "health", nil, out)
	}
	return newAPIClient(cfg.Server).get(ctx, "/healthz", out)
}

func doSessionsCount(ctx context.Context, cfg cliConfig, out any) error {
	if err := requireUDS(cfg, "sessions count"); err != nil {
		return err
	}
	return newRPCClient(cfg.Socket).call(ctx, "sessions.count", nil, out)
}

func doSessionsSweep(ctx context.Context, cfg cliConfig, out any) error {
	if err := requireUDS(cfg, "sessions sweep"); err != nil {
		return err
	}
	return newRPCClient(cfg.Socket).call(ctx, "sessions.sweep", nil, out)
}

func doAuditList(ctx context.Context, cfg cliConfig, limit int, out any) error {
	if err := requireUDS(cfg, "audit list"); err != nil {
		return err
	}
	return newRPCClient(cfg.Socket).call(ctx, "audit.list", map[string]any{"limit": limit}, out)
}

func doSubmissionsList(ctx context.Context, cfg cliConfig, actor string, limit int, out any) error {
	if err := requireUDS(cfg, "submissions list"); err != nil {
		return err
	}
	return newRPCClient(cfg.Socket).call(ctx, "submissions.list", map[string]any{"actor": actor, "limit": limit}, out)
}

// Operator data is only served on the local socket.
func requireUDS(cfg cliConfig, command string) error {
	if cfg.Transport != "uds" {
		return fmt.Errorf("%s is only available over the uds transport", command)
	}
	return nil
}
