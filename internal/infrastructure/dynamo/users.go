package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/thinlam/otp-server/internal/directory"
	"github.com/thinlam/otp-server/internal/otp"
	"golang.org/x/crypto/bcrypt"
)

// UserDirectory is a DynamoDB-backed identity directory for one tenant,
// used in local and development deployments in place of the hosted
// identity provider. Each tenant gets its own users table; lookups go
// through the `email-index` GSI and passwords are stored as bcrypt hashes.
type UserDirectory struct {
	client    *dynamodb.Client
	tableName string
	tenantKey string
}

type userRecord struct {
	UserID       string `dynamodbav:"user_id"`
	Email        string `dynamodbav:"email"`
	PasswordHash string `dynamodbav:"password_hash"`
}

func NewUserDirectory(client *dynamodb.Client, tableName, tenantKey string) *UserDirectory {
	return &UserDirectory{client: client, tableName: tableName, tenantKey: tenantKey}
}

func (d *UserDirectory) TenantKey() string { return d.tenantKey }

func (d *UserDirectory) FindByEmail(ctx context.Context, email string) (*directory.Account, error) {
	out, err := d.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(d.tableName),
		IndexName:              aws.String("email-index"),
		KeyConditionExpression: aws.String("email = :email"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":email": &types.AttributeValueMemberS{Value: otp.NormalizeEmail(email)},
		},
		Limit: aws.Int32(1),
	})
	if err != nil {
		return nil, fmt.Errorf("query email-index: %w", err)
	}
	if len(out.Items) == 0 {
		return nil, directory.ErrUserNotFound
	}
	var u userRecord
	if err := attributevalue.UnmarshalMap(out.Items[0], &u); err != nil {
		return nil, fmt.Errorf("unmarshal user: %w", err)
	}
	return &directory.Account{ID: u.UserID, Email: u.Email}, nil
}

func (d *UserDirectory) SetPassword(ctx context.Context, accountID, newPassword string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	ue, err := buildUpdateExpr(map[string]interface{}{
		"password_hash": string(hash),
		"updated_at":    time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	_, err = d.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(d.tableName),
		Key:                       strKey("user_id", accountID),
		UpdateExpression:          aws.String(ue.Expr),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
		ConditionExpression:       aws.String("attribute_exists(user_id)"),
	})
	return err
}
