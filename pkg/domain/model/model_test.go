package model_test

import (
	"testing"

	"github.com/itmoou/attendbot/pkg/domain/model"
	"github.com/itmoou/attendbot/pkg/domain/types"
	"github.com/m-mizutani/gt"
)

func TestNotifyState_Copy(t *testing.T) {
	s := model.NewNotifyState("2024-05-10", "E1")
	s.Flags[types.NotifyKindCheckInFirst] = true

	c := s.Copy()
	c.Flags[types.NotifyKindCheckOutFirst] = true

	gt.Bool(t, s.Sent(types.NotifyKindCheckOutFirst)).False()
	gt.Bool(t, c.Sent(types.NotifyKindCheckInFirst)).True()

	var nilState *model.NotifyState
	gt.Bool(t, nilState.Sent(types.NotifyKindCheckInFirst)).False()
}

func TestAttendanceStatus_Missing(t *testing.T) {
	tests := []struct {
		name       string
		status     model.AttendanceStatus
		missingIn  bool
		missingOut bool
	}{
		{name: "nothing", status: model.AttendanceStatus{}, missingIn: true},
		{name: "checked in", status: model.AttendanceStatus{HasCheckIn: true}, missingOut: true},
		{name: "complete", status: model.AttendanceStatus{HasCheckIn: true, HasCheckOut: true}},
		{name: "vacation", status: model.AttendanceStatus{OnVacation: true}},
		{name: "vacation after check in", status: model.AttendanceStatus{OnVacation: true, HasCheckIn: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gt.Value(t, tt.status.MissingCheckIn()).Equal(tt.missingIn)
			gt.Value(t, tt.status.MissingCheckOut()).Equal(tt.missingOut)
		})
	}
}

func TestTimeOff_Covers(t *testing.T) {
	off := model.TimeOff{SubjectID: "E1", StartDate: "2024-05-09", EndDate: "2024-05-10", Type: "연차"}
	gt.Bool(t, off.Covers("2024-05-09")).True()
	gt.Bool(t, off.Covers("2024-05-10")).True()
	gt.Bool(t, off.Covers("2024-05-11")).False()
}

func TestVacationApproval_Period(t *testing.T) {
	v := &model.VacationApproval{StartDate: "2026-10-19", EndDate: "2026-10-21"}
	gt.Value(t, v.Period()).Equal("2026-10-19 ~ 2026-10-21")
}
