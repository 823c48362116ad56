// Package authz decides which roles may perform which workflow operations.
package authz

import "github.com/noah-isme/civic-portal-api/internal/models"

// Capability names one permitted operation.
type Capability string

const (
	ReadAllContent Capability = "content:read-all"
	EditOwnContent Capability = "content:edit-own"
	DeleteContent  Capability = "content:delete"

	SubmitProject  Capability = "project:submit"
	ApproveProject Capability = "project:approve"
	EditAnyProject Capability = "project:edit-any"
	SubmitScheme   Capability = "scheme:submit"
	ApproveScheme  Capability = "scheme:approve"
	SubmitEvent    Capability = "event:submit"
	ApproveEvent   Capability = "event:approve"

	SubmitSchedule  Capability = "schedule:submit"
	ApproveSchedule Capability = "schedule:approve"

	WriteRating Capability = "rating:write"

	CreateComplaint   Capability = "complaint:create"
	ReadOwnComplaints Capability = "complaint:read-own"
	ReadAllComplaints Capability = "complaint:read-all"
	UpdateComplaint   Capability = "complaint:update"

	RecordAttendance Capability = "attendance:record"
	VerifyAttendance Capability = "attendance:verify"
	ReadAttendance   Capability = "attendance:read"

	ManageUsers    Capability = "user:manage"
	ReadAudit      Capability = "audit:read"
	GenerateReport Capability = "report:generate"
)

// Table maps roles to the capabilities they hold.
type Table map[models.UserRole]map[Capability]struct{}

// DefaultTable is the portal's role model.
func DefaultTable() Table {
	return NewTable(map[models.UserRole][]Capability{
		models.RoleAdmin: {
			ReadAllContent, DeleteContent,
			ApproveProject, EditAnyProject, ApproveScheme, ApproveEvent,
			SubmitSchedule, ApproveSchedule,
			WriteRating,
			ReadAllComplaints, UpdateComplaint,
			RecordAttendance, VerifyAttendance, ReadAttendance,
			ManageUsers, ReadAudit, GenerateReport,
		},
		models.RoleMLA: {
			ReadAllContent,
			ApproveSchedule,
			WriteRating,
			ReadAttendance,
			GenerateReport,
		},
		models.RolePA: {
			ReadAllContent, EditOwnContent,
			SubmitProject, SubmitScheme, SubmitEvent, SubmitSchedule,
			WriteRating,
			ReadAllComplaints, UpdateComplaint,
			RecordAttendance, VerifyAttendance, ReadAttendance,
		},
		models.RolePublic: {
			WriteRating,
			CreateComplaint, ReadOwnComplaints,
		},
	})
}

// NewTable builds a lookup table from role capability lists.
func NewTable(grants map[models.UserRole][]Capability) Table {
	table := make(Table, len(grants))
	for role, caps := range grants {
		set := make(map[Capability]struct{}, len(caps))
		for _, c := range caps {
			set[c] = struct{}{}
		}
		table[role] = set
	}
	return table
}

// Has reports whether role holds capability.
func (t Table) Has(role models.UserRole, capability Capability) bool {
	set, ok := t[role]
	if !ok {
		return false
	}
	_, ok = set[capability]
	return ok
}

// Capabilities returns the capabilities held by role.
func (t Table) Capabilities(role models.UserRole) []Capability {
	set := t[role]
	out := make([]Capability, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}
