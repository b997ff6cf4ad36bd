package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/itmoou/attendbot/pkg/repository/memory"
	"github.com/itmoou/attendbot/pkg/service/metrics"
	"github.com/itmoou/attendbot/pkg/usecase"
	"github.com/m-mizutani/gt"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestJobs(t *testing.T) {
	uc := usecase.New(memory.New())
	jobs := uc.Jobs()

	names := map[string]bool{}
	for _, job := range jobs {
		gt.Bool(t, names[job.Name]).False()
		names[job.Name] = true
		gt.NoError(t, job.Spec.Validate())
		gt.Value(t, job.Run).NotNil()
	}
	gt.Value(t, len(jobs)).Equal(12)

	for _, name := range []string{
		usecase.JobCheckInFirst, usecase.JobCheckInFinal, usecase.JobCheckOutFirst,
		usecase.JobCheckOutFinal, usecase.JobDailySummary, usecase.JobFlexTokenRotate,
		usecase.JobVacationAnnouncement, usecase.JobDailyCalendarNotify,
	} {
		gt.Bool(t, names[name]).True()
	}
}

func TestJobHook(t *testing.T) {
	reg := prometheus.NewRegistry()
	alerter := &mockAlerter{done: make(chan struct{}, 1)}
	uc := usecase.New(memory.New(),
		usecase.WithMetrics(metrics.NewCollector(reg)),
		usecase.WithAlerter(alerter),
	)
	hook := uc.JobHook()
	ctx := context.Background()

	hook(ctx, usecase.JobDailyReport, nil, time.Second)
	hook(ctx, usecase.JobDailyReport, errors.New("vendor down"), time.Second)

	select {
	case <-alerter.done:
	case <-time.After(5 * time.Second):
		t.Fatal("alert was not sent")
	}

	alerter.mu.Lock()
	gt.Value(t, alerter.titles).Equal([]string{"attendbot job daily_report failed"})
	alerter.mu.Unlock()

	count, err := testutil.GatherAndCount(reg, "attendbot_job_runs_total")
	gt.NoError(t, err).Required()
	gt.Value(t, count).Equal(2)
}
