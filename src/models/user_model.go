package models

type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleAlumni  Role = "alumni"
)

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	return r == RoleStudent || r == RoleTeacher || r == RoleAlumni
}

// User is a profile document. The three relationship sets are denormalized
// onto each user and kept in step by the graph adapter.
type User struct {
	Id          string   `json:"id" bson:"_id"`
	Name        string   `json:"name" bson:"name"`
	Role        Role     `json:"role" bson:"role"`
	Skills      []string `json:"skills,omitempty" bson:"skills,omitempty"`
	Expertise   []string `json:"expertise,omitempty" bson:"expertise,omitempty"`
	Program     string   `json:"program,omitempty" bson:"program,omitempty"`
	Batch       string   `json:"batch,omitempty" bson:"batch,omitempty"`
	Company     string   `json:"company,omitempty" bson:"company,omitempty"`
	Industry    string   `json:"industry,omitempty" bson:"industry,omitempty"`
	Department  string   `json:"department,omitempty" bson:"department,omitempty"`
	Institution string   `json:"institution,omitempty" bson:"institution,omitempty"`

	Connections     []string `json:"connections" bson:"connections"`
	PendingIncoming []string `json:"pendingIncoming" bson:"pendingIncoming"`
	PendingOutgoing []string `json:"pendingOutgoing" bson:"pendingOutgoing"`
}

// UserDto is the public view of a user returned by the API
type UserDto struct {
	Id          string `json:"id"`
	Name        string `json:"name"`
	Role        Role   `json:"role"`
	Company     string `json:"company,omitempty"`
	Program     string `json:"program,omitempty"`
	Department  string `json:"department,omitempty"`
	Institution string `json:"institution,omitempty"`
}

// Dto strips the relationship sets from a user
func (u *User) Dto() UserDto {
	return UserDto{
		Id:          u.Id,
		Name:        u.Name,
		Role:        u.Role,
		Company:     u.Company,
		Program:     u.Program,
		Department:  u.Department,
		Institution: u.Institution,
	}
}

func (u *User) IsConnectedTo(id string) bool { return contains(u.Connections, id) }
func (u *User) HasOutgoing(id string) bool   { return contains(u.PendingOutgoing, id) }
func (u *User) HasIncoming(id string) bool   { return contains(u.PendingIncoming, id) }

func contains(set []string, id string) bool {
	for _, v := range set {
		if v == id {
			return true
		}
	}
	return false
}
