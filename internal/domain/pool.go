package domain

// Coordinates is a geographic point.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// DaySchedule is one day's working hours in "HH:MM" 24-hour format.
type DaySchedule struct {
	Day   string `json:"day"`
	Start string `json:"start_time"`
	End   string `json:"end_time"`
}

// Shift is a member's shift template.
type Shift struct {
	Name     string        `json:"name"`
	Schedule []DaySchedule `json:"schedule"`
}

// Member is one enrolled rider's record as the specialists see it.
type Member struct {
	ID          string      `json:"member_id" validate:"required"`
	Name        string      `json:"name"`
	Email       string      `json:"email"`
	HomeAddress string      `json:"home_address"`
	HomeCoords  Coordinates `json:"home_coords"`
	Shift       Shift       `json:"shift"`
}

// Pool is one shared-ride group: the audited entity-group a case spans.
type Pool struct {
	ID             string      `json:"pool_id" validate:"required"`
	WorkSite       string      `json:"work_site"`
	WorkSiteCoords Coordinates `json:"work_site_coords"`
	Capacity       int         `json:"capacity"`
	Members        []Member    `json:"members"`
}

// MemberIDs returns the ids of the pool's members in roster order.
func (p *Pool) MemberIDs() []string {
	ids := make([]string, len(p.Members))
	for i, m := range p.Members {
		ids[i] = m.ID
	}
	return ids
}

// MemberEmails returns the email addresses of the pool's members,
// skipping records without one.
func (p *Pool) MemberEmails() []string {
	emails := make([]string, 0, len(p.Members))
	for _, m := range p.Members {
		if m.Email != "" {
			emails = append(emails, m.Email)
		}
	}
	return emails
}

// FindMember returns the member with the given id, or nil.
func (p *Pool) FindMember(id string) *Member {
	for i := range p.Members {
		if p.Members[i].ID == id {
			return &p.Members[i]
		}
	}
	return nil
}
