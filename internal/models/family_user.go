package models

// FamilyUser is a static roster entry. Roster entries are loaded at start-up
// and never change while the process runs.
type FamilyUser struct {
	ID             string   `json:"id" yaml:"id"`
	Name           string   `json:"name" yaml:"name"`
	Avatar         string   `json:"avatar,omitempty" yaml:"avatar"`
	Priority       int      `json:"priority" yaml:"priority"`
	CanManageLists []string `json:"can_manage_lists,omitempty" yaml:"can_manage_lists"`
	Telegram       string   `json:"-" yaml:"telegram"`
}

// DisplayName returns the best display name for the member
func (u *FamilyUser) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.ID
}

// CanManage reports whether the member may edit the list owned by ownerID
func (u *FamilyUser) CanManage(ownerID string) bool {
	if u.ID == ownerID {
		return true
	}
	for _, id := range u.CanManageLists {
		if id == ownerID {
			return true
		}
	}
	return false
}
