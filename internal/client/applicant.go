package client

import (
	"epiwatch/role-portal/internal/domain"
)

// Panel is the single renderable case the applicant screen shows. The four
// lifecycle states map 1:1 to panels, plus the verified early-exit for
// users whose role is already privileged.
type Panel string

const (
	// PanelVerified is shown to already-privileged users regardless of any
	// residual request record: the role is authoritative for display.
	PanelVerified Panel = "verified"
	// PanelApply offers the first application form.
	PanelApply Panel = "apply"
	// PanelPending shows the under-review notice; no action is offered.
	PanelPending Panel = "pending"
	// PanelApproved shows the verified confirmation from the request record.
	PanelApproved Panel = "approved"
	// PanelRejected shows the reviewer comment and the resubmission form.
	PanelRejected Panel = "rejected"
)

// DerivePanel maps the caller's current role and request state to the panel
// to render. It is a pure function of controller state; the view keeps no
// state machine of its own.
func DerivePanel(currentRole domain.Role, status *Status) Panel {
	// Superadmins are exempt from the verified short-circuit and see the
	// lifecycle like any general public user would.
	if currentRole.IsPrivileged() && currentRole != domain.RoleSuperadmin {
		return PanelVerified
	}

	if status == nil {
		return PanelApply
	}
	switch status.State {
	case StatePending:
		return PanelPending
	case StateApproved:
		return PanelApproved
	case StateRejected:
		return PanelRejected
	default:
		return PanelApply
	}
}

// AllowedAction reports whether the panel offers a submit or resubmit
// action, and which.
func (p Panel) AllowedAction() (action string, ok bool) {
	switch p {
	case PanelApply:
		return "submit", true
	case PanelRejected:
		return "resubmit", true
	default:
		return "", false
	}
}
