package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/thinlam/otp-server/internal/domain"
	"github.com/thinlam/otp-server/internal/otp"
	"github.com/thinlam/otp-server/internal/pkg/id"
)

// ChallengeStore is the durable OTP store backed by DynamoDB.
// PK: tenant, SK: email. One item per pair, so issuing replaces any prior
// challenge, and expires_at doubles as the table's TTL attribute.
// Single-use consumption relies on a conditional delete: of two concurrent
// correct-code verifications only one delete's condition holds.
type ChallengeStore struct {
	client    *dynamodb.Client
	tableName string
	now       func() time.Time
}

func NewChallengeStore(client *dynamodb.Client, tableName string) *ChallengeStore {
	return &ChallengeStore{client: client, tableName: tableName, now: time.Now}
}

func (s *ChallengeStore) Issue(ctx context.Context, tenant, email, code string, ttl time.Duration) error {
	email = otp.NormalizeEmail(email)
	if email == "" {
		return domain.ErrBadRequest
	}
	now := s.now()
	c := &domain.Challenge{
		ChallengeID: id.New(),
		Tenant:      otp.NormalizeEmail(tenant),
		Email:       email,
		Code:        code,
		CreatedAt:   now.Unix(),
		ExpiresAt:   now.Add(ttl).Unix(),
	}
	item, err := attributevalue.MarshalMap(c)
	if err != nil {
		return fmt.Errorf("marshal challenge: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	return err
}

func (s *ChallengeStore) Verify(ctx context.Context, tenant, email, code string) (otp.Outcome, error) {
	c, err := s.get(ctx, tenant, email)
	if err != nil {
		return 0, err
	}
	if c == nil {
		return otp.OutcomeNotFound, nil
	}
	if c.Expired(s.now()) {
		// Lazy eviction; conditioned on the challenge id so a concurrent
		// reissue is never deleted by mistake.
		if err := s.deleteIf(ctx, c); err != nil {
			return 0, err
		}
		return otp.OutcomeExpired, nil
	}
	if c.Code != code {
		return otp.OutcomeMismatch, nil
	}

	// Consume: the conditional delete is the single-use gate. If another
	// verification won the race (or a reissue replaced the item), the
	// condition fails and this caller observes not-found.
	consumed, err := s.consume(ctx, c)
	if err != nil {
		return 0, err
	}
	if !consumed {
		return otp.OutcomeNotFound, nil
	}
	return otp.OutcomeOK, nil
}

func (s *ChallengeStore) Age(ctx context.Context, tenant, email string) (time.Duration, bool, error) {
	c, err := s.get(ctx, tenant, email)
	if err != nil {
		return 0, false, err
	}
	if c == nil {
		return 0, false, nil
	}
	now := s.now()
	if c.Expired(now) {
		if err := s.deleteIf(ctx, c); err != nil {
			return 0, false, err
		}
		return 0, false, nil
	}
	return now.Sub(time.Unix(c.CreatedAt, 0)), true, nil
}

func (s *ChallengeStore) Revoke(ctx context.Context, tenant, email string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key:       s.key(tenant, email),
	})
	return err
}

func (s *ChallengeStore) key(tenant, email string) map[string]types.AttributeValue {
	return compositeKey("tenant", otp.NormalizeEmail(tenant), "email", otp.NormalizeEmail(email))
}

func (s *ChallengeStore) get(ctx context.Context, tenant, email string) (*domain.Challenge, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            s.key(tenant, email),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, nil
	}
	var c domain.Challenge
	if err := attributevalue.UnmarshalMap(out.Item, &c); err != nil {
		return nil, fmt.Errorf("unmarshal challenge: %w", err)
	}
	return &c, nil
}

// consume deletes the challenge only if the stored code still matches the
// one this verification validated. Reports whether this caller performed
// the delete.
func (s *ChallengeStore) consume(ctx context.Context, c *domain.Challenge) (bool, error) {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(s.tableName),
		Key:                 s.key(c.Tenant, c.Email),
		ConditionExpression: aws.String("challenge_id = :id AND #code = :c"),
		ExpressionAttributeNames: map[string]string{
			"#code": "code",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":id": &types.AttributeValueMemberS{Value: c.ChallengeID},
			":c":  &types.AttributeValueMemberS{Value: c.Code},
		},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// deleteIf removes the exact challenge instance, tolerating a lost race.
func (s *ChallengeStore) deleteIf(ctx context.Context, c *domain.Challenge) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(s.tableName),
		Key:                 s.key(c.Tenant, c.Email),
		ConditionExpression: aws.String("challenge_id = :id"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":id": &types.AttributeValueMemberS{Value: c.ChallengeID},
		},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return nil
		}
		return err
	}
	return nil
}
