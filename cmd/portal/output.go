package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/himanshu07rautela/CVD-Gradient/internal/domain"
)

func printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}

func printKV(rows [][2]string) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, row := range rows {
		_, _ = fmt.Fprintf(w, "%s\t%s\n", row[0], row[1])
	}
	_ = w.Flush()
}

func printTable(headers []string, rows [][]string) {
	if len(rows) == 0 {
		fmt.Println("no results")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, strings.Join(headers, "\t"))
	for _, row := range rows {
		_, _ = fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	_ = w.Flush()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func formatMaybeTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return formatTime(*t)
}

func formatMaybeScore(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(domain.RoundPercent(*v), 'f', 1, 64) + "%"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func printAuditRecords(items []domain.AuditRecord) {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			strconv.FormatUint(uint64(item.ID), 10),
			formatTime(item.CreatedAt),
			orDash(item.ActorIdentity),
			item.Action,
			orDash(item.Target),
			orDash(item.Metadata),
		})
	}
	printTable([]string{"ID", "AT", "ACTOR", "ACTION", "TARGET", "METADATA"}, rows)
}

func printSubmissions(items []domain.Submission) {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			item.ID,
			item.ActorIdentity,
			strconv.FormatUint(item.Sequence, 10),
			string(item.Status),
			formatMaybeScore(item.RiskScore),
			formatTime(item.CreatedAt),
			formatMaybeTime(item.ResolvedAt),
			orDash(item.Error),
		})
	}
	printTable([]string{"ID", "ACTOR", "SEQ", "STATUS", "RISK", "CREATED_AT", "RESOLVED_AT", "ERROR"}, rows)
}

func printHealth(v map[string]any) {
	rows := make([][2]string, 0, len(v))
	for _, key := range []string{"status", "sessions", "uptime"} {
		if value, ok := v[key]; ok {
			rows = append(rows, [2]string{key, fmt.Sprint(value)})
		}
	}
	printKV(rows)
}
