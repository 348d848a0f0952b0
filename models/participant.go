package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// Role is the part a participant plays in a proceeding
type Role string

// Roles known to the simulator
const (
	RoleClient          Role = "client"
	RoleOpposingParty   Role = "opposing_party"
	RoleClientCounsel   Role = "client_counsel"
	RoleOpposingCounsel Role = "opposing_counsel"
	RoleJudge           Role = "judge"
)

// Roles lists every role in speaking-precedence order
var Roles = []Role{RoleClient, RoleOpposingParty, RoleClientCounsel, RoleOpposingCounsel, RoleJudge}

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

// Participant holds the structure for the participants collection in mongo
type Participant struct {
	ID         primitive.ObjectID `json:"_id" bson:"_id"`
	CaseID     string             `json:"caseID" bson:"caseID"`
	Role       Role               `json:"role" bson:"role"`
	Name       string             `json:"name" bson:"name"`
	Background map[string]string  `json:"background" bson:"background"` // e.g. specialization, jurisdiction
	CreatedAt  primitive.DateTime `json:"createdAt" bson:"createdAt"`
}
