// Package shaper turns raw records from the remote service into the ordered,
// scaled and tiered rows the dashboards display.
package shaper

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/himanshu07rautela/CVD-Gradient/internal/domain"
	"github.com/samber/lo"
)

// Accepted timestamp layouts. Layouts without a zone are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func ParseTimestamp(raw string) (time.Time, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return time.Time{}, fmt.Errorf("%w: empty timestamp", domain.ErrMalformedRecord)
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: unparsable timestamp %q", domain.ErrMalformedRecord, raw)
}

// ShapeRiskRecord validates one raw record. A missing score is not an error;
// the record comes back unscored.
func ShapeRiskRecord(raw domain.RawRiskRecord) (domain.RiskRecord, error) {
	ts, err := ParseTimestamp(raw.Timestamp)
	if err != nil {
		return domain.RiskRecord{}, err
	}
	out := domain.RiskRecord{Timestamp: ts, TestName: raw.TestName, PrescribedBy: raw.PrescribedBy}
	if raw.RiskScore == nil {
		return out, nil
	}
	score := *raw.RiskScore
	if math.IsNaN(score) || score < 0 || score > 1 {
		return domain.RiskRecord{}, fmt.Errorf("%w: risk score %v outside [0,1]", domain.ErrMalformedRecord, score)
	}
	out.Score = score
	out.Scored = true
	return out, nil
}

// ShapeBatch shapes every record it can and reports the rest. The returned
// records keep input order.
func ShapeBatch(raws []domain.RawRiskRecord) ([]domain.RiskRecord, []error) {
	records := make([]domain.RiskRecord, 0, len(raws))
	var errs []error
	for i, raw := range raws {
		rec, err := ShapeRiskRecord(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("record %d: %w", i, err))
			continue
		}
		records = append(records, rec)
	}
	return records, errs
}

// ShapeTrendSeries orders oldest first. Equal timestamps keep input order.
func ShapeTrendSeries(records []domain.RiskRecord) []domain.RiskRecord {
	out := append([]domain.RiskRecord(nil), records...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

// ShapeTableSeries orders newest first. Equal timestamps keep input order.
func ShapeTableSeries(records []domain.RiskRecord) []domain.RiskRecord {
	out := append([]domain.RiskRecord(nil), records...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out
}

// Average is the mean percentage of the scored records, or false when none
// are scored.
func Average(records []domain.RiskRecord) (float64, bool) {
	scored := lo.Filter(records, func(r domain.RiskRecord, _ int) bool { return r.Scored })
	if len(scored) == 0 {
		return 0, false
	}
	sum := lo.SumBy(scored, func(r domain.RiskRecord) float64 { return r.Score })
	return domain.RoundPercent(sum / float64(len(scored))), true
}

// LatestScored is the newest record that carries a score.
func LatestScored(records []domain.RiskRecord) (domain.RiskRecord, bool) {
	return lo.Find(ShapeTableSeries(records), func(r domain.RiskRecord) bool { return r.Scored })
}

// ShapePatient builds one patient's summary. Malformed tests are skipped and
// counted.
func ShapePatient(raw domain.RawPatient) (domain.PatientSummary, []error) {
	records, errs := ShapeBatch(raw.Tests)
	summary := domain.PatientSummary{
		ID:      raw.ID,
		Name:    strings.TrimSpace(raw.Name),
		Age:     raw.Age,
		Trend:   ShapeTrendSeries(records),
		Table:   ShapeTableSeries(records),
		Skipped: len(errs),
	}
	if summary.Name == "" {
		summary.Name = "Unknown"
	}
	summary.Scored = lo.CountBy(records, func(r domain.RiskRecord) bool { return r.Scored })
	if avg, ok := Average(records); ok {
		summary.AverageRisk = avg
	}
	if latest, ok := LatestScored(records); ok {
		summary.Status = latest.Tier()
	}
	return summary, errs
}

// ShapeDoctorSummary shapes every patient block and tallies the dashboard
// statistics. Patients without any scored test count toward the total only.
func ShapeDoctorSummary(raws []domain.RawPatient) ([]domain.PatientSummary, domain.DoctorStats, []error) {
	var errs []error
	summaries := lo.Map(raws, func(raw domain.RawPatient, _ int) domain.PatientSummary {
		summary, patientErrs := ShapePatient(raw)
		for _, err := range patientErrs {
			errs = append(errs, fmt.Errorf("patient %s: %w", raw.ID, err))
		}
		return summary
	})

	stats := domain.DoctorStats{TotalPatients: len(summaries)}
	counts := lo.CountValuesBy(summaries, func(s domain.PatientSummary) domain.RiskTier { return s.Status })
	stats.HighRisk = counts[domain.TierHigh]
	stats.MediumRisk = counts[domain.TierMedium]
	stats.LowRisk = counts[domain.TierLow]

	scored := lo.Filter(summaries, func(s domain.PatientSummary, _ int) bool { return s.Scored > 0 })
	if len(scored) > 0 {
		sum := lo.SumBy(scored, func(s domain.PatientSummary) float64 { return s.AverageRisk })
		stats.AverageRisk = math.Round(sum/float64(len(scored))*10) / 10
	}
	return summaries, stats, errs
}

// AlignSeries lays the patients' trends on a shared calendar: one row per day
// any patient has a scored test, oldest first. When a patient has several
// scored tests on one day the latest wins.
func AlignSeries(summaries []domain.PatientSummary) []domain.ChartRow {
	day := func(t time.Time) time.Time {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}

	days := lo.Uniq(lo.FlatMap(summaries, func(s domain.PatientSummary, _ int) []time.Time {
		return lo.FilterMap(s.Trend, func(r domain.RiskRecord, _ int) (time.Time, bool) {
			return day(r.Timestamp), r.Scored
		})
	}))
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	index := make(map[time.Time]int, len(days))
	rows := make([]domain.ChartRow, len(days))
	for i, d := range days {
		index[d] = i
		rows[i] = domain.ChartRow{Date: d, Values: make([]*float64, len(summaries))}
	}
	for p, s := range summaries {
		for _, r := range s.Trend {
			if !r.Scored {
				continue
			}
			v := r.Percent()
			rows[index[day(r.Timestamp)]].Values[p] = &v
		}
	}
	return rows
}

func FormatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("Jan 2, 2006")
}

func FormatPercent(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64) + "%"
}

// FormatRecordPercent renders a record's percentage, or a dash when unscored.
func FormatRecordPercent(r domain.RiskRecord) string {
	if !r.Scored {
		return "-"
	}
	return FormatPercent(r.Percent())
}
