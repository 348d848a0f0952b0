package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// Case holds the structure for the cases collection in mongo
type Case struct {
	ID          primitive.ObjectID `json:"_id" bson:"_id"`
	Title       string             `json:"title" bson:"title"`
	Type        string             `json:"type" bson:"type"` // "family", "civil", "criminal"
	Description string             `json:"description" bson:"description"`
	CreatedAt   primitive.DateTime `json:"createdAt" bson:"createdAt"`
	UpdatedAt   primitive.DateTime `json:"updatedAt" bson:"updatedAt"`
}
