package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	iam "github.com/chimerakang/amp-iam"
)

// AccountStore implements iam.AccountStore.
type AccountStore struct {
	api    API
	table  string
	logger *zap.Logger
}

// compile-time check
var _ iam.AccountStore = (*AccountStore)(nil)

// NewAccountStore reads user accounts from table.
func NewAccountStore(api API, table string, opts ...Option) *AccountStore {
	o := buildOptions(opts)
	return &AccountStore{api: api, table: table, logger: o.logger}
}

// Accounts returns the account sub-records stored for username.
func (s *AccountStore) Accounts(ctx context.Context, username string) ([]iam.Account, bool, error) {
	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			"user": &types.AttributeValueMemberS{Value: username},
		},
	})
	if err != nil {
		return nil, false, fmt.Errorf("iam/dynamo: get accounts for %q: %w", username, err)
	}
	if out.Item == nil {
		s.logger.Debug("no account record", zap.String("user", username))
		return nil, false, nil
	}

	var rec accountsRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, true, fmt.Errorf("iam/dynamo: decode accounts for %q: %w", username, err)
	}

	accounts := make([]iam.Account, 0, len(rec.Accounts))
	for _, a := range rec.Accounts {
		accounts = append(accounts, iam.Account{
			ID:        a.ID,
			IsDefault: a.IsDefault,
			RateLimit: a.RateLimit.toRateLimit(),
		})
	}
	return accounts, true, nil
}
