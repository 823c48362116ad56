package workflow

import "github.com/noah-isme/civic-portal-api/internal/models"

// ApplyComplaintUpdate merges a staff write into c. Status may be set to any value.
// A PA write always assigns the complaint to that PA; an Admin write leaves the assignee alone.
func ApplyComplaintUpdate(c *models.Complaint, req models.UpdateComplaintRequest, actor *models.Principal) {
	if req.Status != nil {
		c.Status = *req.Status
	}
	if req.Priority != nil {
		c.Priority = *req.Priority
	}
	if req.AdminResponse != nil {
		c.AdminResponse = req.AdminResponse
	}
	if req.PAResponse != nil {
		c.PAResponse = req.PAResponse
	}
	if actor != nil && actor.Role == models.RolePA {
		id := actor.ID
		c.AssignedTo = &id
	}
}

// CanReadComplaint reports whether principal may see c. Citizens only see their own.
func CanReadComplaint(c *models.Complaint, principal *models.Principal, readAll bool) bool {
	if readAll {
		return true
	}
	return principal != nil && c.UserID == principal.ID
}
