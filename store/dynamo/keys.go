package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	iam "github.com/chimerakang/amp-iam"
)

// APIKeyIndex is the secondary index over the "apiKey" attribute.
const APIKeyIndex = "ApiKeyIndex"

// KeyRegistry implements iam.KeyRegistry.
type KeyRegistry struct {
	api    API
	table  string
	logger *zap.Logger
}

// compile-time check
var _ iam.KeyRegistry = (*KeyRegistry)(nil)

// NewKeyRegistry reads API key records from table.
func NewKeyRegistry(api API, table string, opts ...Option) *KeyRegistry {
	o := buildOptions(opts)
	return &KeyRegistry{api: api, table: table, logger: o.logger}
}

// Lookup queries the key index for lookupValue.
func (r *KeyRegistry) Lookup(ctx context.Context, lookupValue string) (*iam.APIKeyRecord, error) {
	out, err := r.api.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.table),
		IndexName:              aws.String(APIKeyIndex),
		KeyConditionExpression: aws.String("apiKey = :apiKeyVal"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":apiKeyVal": &types.AttributeValueMemberS{Value: lookupValue},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("iam/dynamo: query api key: %w", err)
	}
	if len(out.Items) == 0 {
		return nil, nil
	}
	if len(out.Items) > 1 {
		r.logger.Warn("api key index returned more than one record", zap.Int("count", len(out.Items)))
	}

	var rec keyRecord
	if err := attributevalue.UnmarshalMap(out.Items[0], &rec); err != nil {
		return nil, fmt.Errorf("iam/dynamo: decode api key record: %w", err)
	}
	return rec.toRecord(), nil
}

// Touch sets lastAccessed on the record.
func (r *KeyRegistry) Touch(ctx context.Context, apiOwnerID string, at time.Time) error {
	_, err := r.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(r.table),
		Key: map[string]types.AttributeValue{
			"api_owner_id": &types.AttributeValueMemberS{Value: apiOwnerID},
		},
		UpdateExpression: aws.String("SET lastAccessed = :now"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now": &types.AttributeValueMemberS{Value: at.Format(time.RFC3339Nano)},
		},
	})
	if err != nil {
		return fmt.Errorf("iam/dynamo: touch %q: %w", apiOwnerID, err)
	}
	return nil
}
