package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	iam "github.com/chimerakang/amp-iam"
)

// UsageStore implements iam.UsageStore over the cost-calculation table.
type UsageStore struct {
	api    API
	table  string
	logger *zap.Logger
}

// compile-time check
var _ iam.UsageStore = (*UsageStore)(nil)

// NewUsageStore reads accumulated spend from table.
func NewUsageStore(api API, table string, opts ...Option) *UsageStore {
	o := buildOptions(opts)
	return &UsageStore{api: api, table: table, logger: o.logger}
}

// Usage returns the first cost row for principal, or nil when there is none.
func (s *UsageStore) Usage(ctx context.Context, principal string) (*iam.Usage, error) {
	out, err := s.api.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		KeyConditionExpression: aws.String("#id = :id"),
		ExpressionAttributeNames: map[string]string{
			"#id": "id",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":id": &types.AttributeValueMemberS{Value: principal},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("iam/dynamo: query usage for %q: %w", principal, err)
	}
	if len(out.Items) == 0 {
		s.logger.Debug("no usage record", zap.String("principal", principal))
		return nil, nil
	}
	return usageFromItem(out.Items[0]), nil
}
