// Package workflow holds the pure rules of the submission and verification workflows.
package workflow

import (
	"fmt"

	"github.com/noah-isme/civic-portal-api/internal/authz"
	"github.com/noah-isme/civic-portal-api/internal/models"
	appErrors "github.com/noah-isme/civic-portal-api/pkg/errors"
)

type edge struct {
	kind models.ContentKind
	from string
	to   string
}

// transitions lists every legal status change and the capability it requires.
var transitions = map[edge]authz.Capability{
	{models.ContentProject, string(models.ApprovalPending), string(models.ApprovalApproved)}: authz.ApproveProject,
	{models.ContentProject, string(models.ApprovalPending), string(models.ApprovalRejected)}: authz.ApproveProject,
	{models.ContentScheme, string(models.ApprovalPending), string(models.ApprovalApproved)}:  authz.ApproveScheme,
	{models.ContentScheme, string(models.ApprovalPending), string(models.ApprovalRejected)}:  authz.ApproveScheme,
	{models.ContentEvent, string(models.ApprovalPending), string(models.ApprovalApproved)}:   authz.ApproveEvent,
	{models.ContentEvent, string(models.ApprovalPending), string(models.ApprovalRejected)}:   authz.ApproveEvent,

	{models.ContentSchedule, string(models.SchedulePending), string(models.ScheduleApproved)}:  authz.ApproveSchedule,
	{models.ContentSchedule, string(models.SchedulePending), string(models.ScheduleCancelled)}: authz.ApproveSchedule,
}

var reviewCapabilities = map[models.ContentKind]authz.Capability{
	models.ContentProject:  authz.ApproveProject,
	models.ContentScheme:   authz.ApproveScheme,
	models.ContentEvent:    authz.ApproveEvent,
	models.ContentSchedule: authz.ApproveSchedule,
}

var submitCapabilities = map[models.ContentKind]authz.Capability{
	models.ContentProject:  authz.SubmitProject,
	models.ContentScheme:   authz.SubmitScheme,
	models.ContentEvent:    authz.SubmitEvent,
	models.ContentSchedule: authz.SubmitSchedule,
}

// Machine applies the content state machine on top of an authorization guard.
type Machine struct {
	guard *authz.Guard
}

// NewMachine constructs a Machine.
func NewMachine(guard *authz.Guard) *Machine {
	if guard == nil {
		guard = authz.NewGuard(nil)
	}
	return &Machine{guard: guard}
}

// Guard exposes the underlying guard.
func (m *Machine) Guard() *authz.Guard {
	return m.guard
}

// AuthorizeSubmit checks that principal may create items of kind.
func (m *Machine) AuthorizeSubmit(kind models.ContentKind, principal *models.Principal) error {
	capability, ok := submitCapabilities[kind]
	if !ok {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown content kind %q", kind))
	}
	return m.guard.Authorize(principal, capability)
}

// AuthorizeReview checks that principal may approve or reject items of kind.
func (m *Machine) AuthorizeReview(kind models.ContentKind, principal *models.Principal) error {
	capability, ok := reviewCapabilities[kind]
	if !ok {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown content kind %q", kind))
	}
	return m.guard.Authorize(principal, capability)
}

// Transition validates moving an item of kind from one status to another for principal.
func (m *Machine) Transition(kind models.ContentKind, from, to string, principal *models.Principal) error {
	capability, ok := transitions[edge{kind: kind, from: from, to: to}]
	if !ok {
		return appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("%s cannot move from %s to %s", kind, from, to))
	}
	return m.guard.Authorize(principal, capability)
}

// AuthorizeEdit decides whether principal may edit an item of kind authored by authorID.
// Admins may edit projects in any status. Otherwise only the author may edit, and only while pending.
func (m *Machine) AuthorizeEdit(kind models.ContentKind, principal *models.Principal, authorID string, pending bool) (anyStatus bool, err error) {
	if kind == models.ContentProject && m.guard.Can(principal, authz.EditAnyProject) {
		return true, nil
	}
	ownerCap := authz.EditOwnContent
	if kind == models.ContentSchedule {
		ownerCap = authz.SubmitSchedule
	}
	if err := m.guard.Authorize(principal, ownerCap); err != nil {
		return false, err
	}
	if principal.ID != authorID {
		return false, appErrors.Clone(appErrors.ErrForbidden, "only the author may edit this item")
	}
	if !pending {
		return false, appErrors.ErrNotEditable
	}
	return false, nil
}

// Terminal reports whether status has no outgoing transitions for kind.
func Terminal(kind models.ContentKind, status string) bool {
	for e := range transitions {
		if e.kind == kind && e.from == status {
			return false
		}
	}
	return true
}
