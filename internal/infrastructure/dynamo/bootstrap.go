package dynamo

import (
	"context"
	"errors"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/thinlam/otp-server/internal/config"
)

// Bootstrap creates the DynamoDB tables this deployment needs if they
// don't already exist. Safe to call on every startup.
func Bootstrap(ctx context.Context, client *dynamodb.Client, cfg *config.Config) {
	if cfg.OTPStore == config.StoreDynamo {
		createTable(ctx, client, &dynamodb.CreateTableInput{
			TableName:   aws.String(cfg.ChallengeTable),
			BillingMode: types.BillingModePayPerRequest,
			AttributeDefinitions: []types.AttributeDefinition{
				{AttributeName: aws.String("tenant"), AttributeType: types.ScalarAttributeTypeS},
				{AttributeName: aws.String("email"), AttributeType: types.ScalarAttributeTypeS},
			},
			KeySchema: []types.KeySchemaElement{
				{AttributeName: aws.String("tenant"), KeyType: types.KeyTypeHash},
				{AttributeName: aws.String("email"), KeyType: types.KeyTypeRange},
			},
		})
		enableTTL(ctx, client, cfg.ChallengeTable, "expires_at")
	}

	if cfg.DirectoryBackend == config.DirectoryDynamo {
		for _, t := range cfg.Tenants {
			createTable(ctx, client, &dynamodb.CreateTableInput{
				TableName:   aws.String(t.DirectoryTable),
				BillingMode: types.BillingModePayPerRequest,
				AttributeDefinitions: []types.AttributeDefinition{
					{AttributeName: aws.String("user_id"), AttributeType: types.ScalarAttributeTypeS},
					{AttributeName: aws.String("email"), AttributeType: types.ScalarAttributeTypeS},
				},
				KeySchema: []types.KeySchemaElement{
					{AttributeName: aws.String("user_id"), KeyType: types.KeyTypeHash},
				},
				GlobalSecondaryIndexes: []types.GlobalSecondaryIndex{
					gsi("email-index", "email"),
				},
			})
		}
	}
}

func createTable(ctx context.Context, client *dynamodb.Client, input *dynamodb.CreateTableInput) {
	_, err := client.CreateTable(ctx, input)
	if err != nil {
		var exists *types.ResourceInUseException
		if errors.As(err, &exists) {
			return
		}
		slog.Warn("failed to create table", "table", aws.ToString(input.TableName), "err", err)
		return
	}
	slog.Info("created table", "table", aws.ToString(input.TableName))
}

// enableTTL turns on DynamoDB's native TTL for lazy server-side eviction.
// Best effort: correctness never depends on it, expiry is checked at
// verification time.
func enableTTL(ctx context.Context, client *dynamodb.Client, table, attr string) {
	_, err := client.UpdateTimeToLive(ctx, &dynamodb.UpdateTimeToLiveInput{
		TableName: aws.String(table),
		TimeToLiveSpecification: &types.TimeToLiveSpecification{
			AttributeName: aws.String(attr),
			Enabled:       aws.Bool(true),
		},
	})
	if err != nil {
		slog.Warn("failed to enable ttl", "table", table, "err", err)
	}
}

func gsi(name, hashKey string) types.GlobalSecondaryIndex {
	return types.GlobalSecondaryIndex{
		IndexName: aws.String(name),
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(hashKey), KeyType: types.KeyTypeHash},
		},
		Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
	}
}
