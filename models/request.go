package models

// Request is a student's submitted curiosity text seeking a match. Status is
// mutated only by the lifecycle and rematch services and must stay derivable
// from the request's matches.
type Request struct {
	ID          string `dynamodbav:"id" json:"id"`
	RequesterID string `dynamodbav:"requesterId" json:"requesterId"`
	Text        string `dynamodbav:"requestText" json:"requestText"`
	Status      string `dynamodbav:"status" json:"status"`
	CreatedAt   string `dynamodbav:"createdAt" json:"createdAt"`
}

// RequestsTable is the DynamoDB table name for match requests
const RequestsTable = "Requests"

// RequestStatusIndex is the GSI for querying requests by status
// (partition: status, sort: createdAt)
const RequestStatusIndex = "status-createdAt-index"
