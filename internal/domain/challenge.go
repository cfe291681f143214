package domain

import "time"

// Challenge is one outstanding OTP bound to a (tenant, email) pair.
// PK: tenant, SK: email. At most one live challenge per pair; issuing a
// new code replaces any prior unconsumed one. ExpiresAt is a Unix
// timestamp used as DynamoDB TTL.
type Challenge struct {
	ChallengeID string `json:"id" dynamodbav:"challenge_id"`
	Tenant      string `json:"tenant" dynamodbav:"tenant"`
	Email       string `json:"email" dynamodbav:"email"`
	Code        string `json:"-" dynamodbav:"code"`
	CreatedAt   int64  `json:"created_at" dynamodbav:"created_at"`
	ExpiresAt   int64  `json:"expires_at" dynamodbav:"expires_at"` // TTL (Unix seconds)
}

// Expired reports whether the challenge has passed its expiry at the given instant.
func (c *Challenge) Expired(now time.Time) bool {
	return now.Unix() > c.ExpiresAt
}
