package model

import "github.com/itmoou/attendbot/pkg/domain/types"

// VacationApproval is the payload posted by the approval workflow once a
// vacation request is approved.
type VacationApproval struct {
	EmployeeNumber types.SubjectID `json:"employeeNumber"`
	EmployeeName   string          `json:"employeeName"`
	EmployeeEmail  string          `json:"employeeEmail,omitempty"`
	VacationType   string          `json:"vacationType,omitempty"`
	StartDate      types.Date      `json:"startDate"`
	EndDate        types.Date      `json:"endDate"`
	Reason         string          `json:"reason,omitempty"`
}

// Period renders the approved range as "start ~ end".
func (v *VacationApproval) Period() string {
	return string(v.StartDate) + " ~ " + string(v.EndDate)
}

// VacationApprovalResult reports which side effects of an approval succeeded.
type VacationApprovalResult struct {
	EmployeeName      string `json:"employeeName"`
	VacationType      string `json:"vacationType"`
	Period            string `json:"period"`
	PersonalCalendar  bool   `json:"personalCalendar"`
	TeamCalendar      bool   `json:"teamCalendar"`
	TeamsNotification bool   `json:"teamsNotification"`
}
