package models

// Profile defines the structure for student profiles. Profiles are owned by
// the signup/profile flows; the matching engine only reads them.
type Profile struct {
	ID               string   `dynamodbav:"id" json:"id"`
	Name             string   `dynamodbav:"name,omitempty" json:"name,omitempty"`
	Email            string   `dynamodbav:"email,omitempty" json:"email,omitempty"`
	Faculty          string   `dynamodbav:"faculty" json:"faculty"`
	Program          string   `dynamodbav:"program" json:"program"`
	KnowledgeTags    []string `dynamodbav:"knowledgeTags,omitempty" json:"knowledgeTags,omitempty"`
	CuriosityTags    []string `dynamodbav:"curiosityTags,omitempty" json:"curiosityTags,omitempty"`
	ProfileCompleted bool     `dynamodbav:"profileCompleted" json:"profileCompleted"`
}

// ProfilesTable is the DynamoDB table name for student profiles
const ProfilesTable = "Profiles"
