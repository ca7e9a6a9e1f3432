package dynamo_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	iam "github.com/chimerakang/amp-iam"
	"github.com/chimerakang/amp-iam/store/dynamo"
)

// fakeAPI answers from canned items and records the last request of each kind.
type fakeAPI struct {
	getItem   map[string]types.AttributeValue
	items     []map[string]types.AttributeValue
	err       error
	lastGet   *dynamodb.GetItemInput
	lastQuery *dynamodb.QueryInput
	lastPut   *dynamodb.UpdateItemInput
}

func (f *fakeAPI) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.lastGet = in
	if f.err != nil {
		return nil, f.err
	}
	return &dynamodb.GetItemOutput{Item: f.getItem}, nil
}

func (f *fakeAPI) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.lastQuery = in
	if f.err != nil {
		return nil, f.err
	}
	return &dynamodb.QueryOutput{Items: f.items, Count: int32(len(f.items))}, nil
}

func (f *fakeAPI) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.lastPut = in
	if f.err != nil {
		return nil, f.err
	}
	return &dynamodb.UpdateItemOutput{}, nil
}

func s(v string) types.AttributeValue { return &types.AttributeValueMemberS{Value: v} }
func n(v string) types.AttributeValue { return &types.AttributeValueMemberN{Value: v} }
func b(v bool) types.AttributeValue   { return &types.AttributeValueMemberBOOL{Value: v} }
func null() types.AttributeValue      { return &types.AttributeValueMemberNULL{Value: true} }
func l(v ...types.AttributeValue) types.AttributeValue {
	return &types.AttributeValueMemberL{Value: v}
}
func m(v map[string]types.AttributeValue) types.AttributeValue {
	return &types.AttributeValueMemberM{Value: v}
}

func TestAccountStore_Accounts(t *testing.T) {
	api := &fakeAPI{getItem: map[string]types.AttributeValue{
		"user": s("alice"),
		"accounts": l(
			m(map[string]types.AttributeValue{"id": s("acct-1"), "isDefault": b(false)}),
			m(map[string]types.AttributeValue{
				"id":        s("acct-2"),
				"isDefault": b(true),
				"rateLimit": m(map[string]types.AttributeValue{"period": s("Daily"), "rate": n("12.5")}),
			}),
		),
	}}
	store := dynamo.NewAccountStore(api, "accounts", dynamo.WithLogger(zaptest.NewLogger(t)))

	accts, found, err := store.Accounts(context.Background(), "alice")
	require.NoError(t, err)
	assert.True(t, found)
	require.Len(t, accts, 2)
	assert.Equal(t, "acct-1", accts[0].ID)
	assert.Nil(t, accts[0].RateLimit)
	assert.True(t, accts[1].IsDefault)
	require.NotNil(t, accts[1].RateLimit)
	assert.Equal(t, iam.PeriodDaily, accts[1].RateLimit.Period)
	assert.Equal(t, 12.5, *accts[1].RateLimit.Rate)

	assert.Equal(t, "accounts", aws.ToString(api.lastGet.TableName))
	assert.Equal(t, s("alice"), api.lastGet.Key["user"])
}

func TestAccountStore_NotFound(t *testing.T) {
	store := dynamo.NewAccountStore(&fakeAPI{}, "accounts")

	accts, found, err := store.Accounts(context.Background(), "ghost")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, accts)
}

func TestAccountStore_Error(t *testing.T) {
	store := dynamo.NewAccountStore(&fakeAPI{err: errors.New("throttled")}, "accounts")

	_, _, err := store.Accounts(context.Background(), "alice")
	assert.ErrorContains(t, err, "throttled")
}

func TestKeyRegistry_Lookup(t *testing.T) {
	api := &fakeAPI{items: []map[string]types.AttributeValue{{
		"api_owner_id":   s("alice/delegateKey/7"),
		"apiKey":         s("digest"),
		"active":         b(true),
		"expirationDate": s("2027-01-01"),
		"accessTypes":    l(s("chat"), s("file_upload")),
		"account":        m(map[string]types.AttributeValue{"id": s("acct-9")}),
		"rateLimit":      m(map[string]types.AttributeValue{"period": s("Hourly"), "rate": n("5")}),
		"owner":          s("alice"),
		"delegate":       s("dave"),
		"systemId":       n("42"),
		"purpose":        s("nightly sync"),
	}}}
	reg := dynamo.NewKeyRegistry(api, "keys")

	rec, err := reg.Lookup(context.Background(), "digest")
	require.NoError(t, err)
	require.NotNil(t, rec)

	assert.Equal(t, "alice/delegateKey/7", rec.APIOwnerID)
	assert.True(t, rec.Active)
	assert.Equal(t, "2027-01-01", rec.ExpirationDate)
	assert.Equal(t, []iam.AccessType{iam.AccessChat, iam.AccessFileUpload}, rec.AccessTypes)
	assert.Equal(t, "acct-9", rec.AccountID)
	assert.Equal(t, iam.PeriodHourly, rec.RateLimit.Period)
	assert.Equal(t, 5.0, *rec.RateLimit.Rate)
	assert.Equal(t, "alice", rec.Owner)
	assert.Equal(t, "dave", rec.Delegate)
	assert.Empty(t, rec.SystemID, "non-string identity fields are dropped")
	assert.Equal(t, "nightly sync", rec.Purpose)

	assert.Equal(t, dynamo.APIKeyIndex, aws.ToString(api.lastQuery.IndexName))
	assert.Equal(t, s("digest"), api.lastQuery.ExpressionAttributeValues[":apiKeyVal"])
}

func TestKeyRegistry_LookupMissing(t *testing.T) {
	reg := dynamo.NewKeyRegistry(&fakeAPI{}, "keys")

	rec, err := reg.Lookup(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestKeyRegistry_NullOptionalFields(t *testing.T) {
	api := &fakeAPI{items: []map[string]types.AttributeValue{{
		"api_owner_id":   s("svc/systemKey/1"),
		"active":         b(false),
		"expirationDate": null(),
		"accessTypes":    l(),
		"account":        m(map[string]types.AttributeValue{"id": s("acct")}),
		"systemId":       s("svc"),
		"purpose":        null(),
	}}}
	reg := dynamo.NewKeyRegistry(api, "keys")

	rec, err := reg.Lookup(context.Background(), "k")
	require.NoError(t, err)
	assert.False(t, rec.Active)
	assert.Empty(t, rec.ExpirationDate)
	assert.Empty(t, rec.Purpose)
	assert.Equal(t, iam.RateLimit{}, rec.RateLimit)
	assert.Equal(t, "svc", rec.SystemID)
}

func TestKeyRegistry_Touch(t *testing.T) {
	api := &fakeAPI{}
	reg := dynamo.NewKeyRegistry(api, "keys")
	at := time.Date(2026, 5, 10, 15, 30, 0, 0, time.UTC)

	require.NoError(t, reg.Touch(context.Background(), "alice/ownerKey/1", at))
	assert.Equal(t, s("alice/ownerKey/1"), api.lastPut.Key["api_owner_id"])
	assert.Equal(t, "SET lastAccessed = :now", aws.ToString(api.lastPut.UpdateExpression))
	assert.Equal(t, s("2026-05-10T15:30:00Z"), api.lastPut.ExpressionAttributeValues[":now"])

	api.err = errors.New("denied")
	assert.Error(t, reg.Touch(context.Background(), "alice/ownerKey/1", at))
}

func TestUsageStore_Usage(t *testing.T) {
	hours := make([]types.AttributeValue, 24)
	for i := range hours {
		hours[i] = n("0")
	}
	hours[3] = n("4.25")

	api := &fakeAPI{items: []map[string]types.AttributeValue{{
		"id":          s("alice"),
		"hourlyCost":  l(hours...),
		"dailyCost":   n("10"),
		"monthlyCost": null(),
	}}}
	store := dynamo.NewUsageStore(api, "costs")

	u, err := store.Usage(context.Background(), "alice")
	require.NoError(t, err)
	require.NotNil(t, u)
	require.Len(t, u.HourlyCost, 24)
	assert.Equal(t, 4.25, u.HourlyCost[3])
	require.NotNil(t, u.DailyCost)
	assert.Equal(t, 10.0, *u.DailyCost)
	assert.Nil(t, u.MonthlyCost)

	assert.Equal(t, "costs", aws.ToString(api.lastQuery.TableName))
	assert.Equal(t, s("alice"), api.lastQuery.ExpressionAttributeValues[":id"])
}

func TestUsageStore_MalformedHourly(t *testing.T) {
	tests := map[string]types.AttributeValue{
		"scalar":         n("3"),
		"string members": l(s("a"), s("b")),
	}
	for name, av := range tests {
		t.Run(name, func(t *testing.T) {
			api := &fakeAPI{items: []map[string]types.AttributeValue{{"id": s("alice"), "hourlyCost": av}}}
			u, err := dynamo.NewUsageStore(api, "costs").Usage(context.Background(), "alice")
			require.NoError(t, err)
			assert.NotNil(t, u.HourlyCost)
			assert.Empty(t, u.HourlyCost)
		})
	}
}

func TestUsageStore_Missing(t *testing.T) {
	u, err := dynamo.NewUsageStore(&fakeAPI{}, "costs").Usage(context.Background(), "alice")
	require.NoError(t, err)
	assert.Nil(t, u)

	u, err = dynamo.NewUsageStore(&fakeAPI{items: []map[string]types.AttributeValue{{"id": s("alice")}}}, "costs").
		Usage(context.Background(), "alice")
	require.NoError(t, err)
	assert.Nil(t, u.HourlyCost)
	assert.Nil(t, u.DailyCost)
}

func TestUsageStore_Error(t *testing.T) {
	_, err := dynamo.NewUsageStore(&fakeAPI{err: errors.New("timeout")}, "costs").Usage(context.Background(), "alice")
	assert.ErrorContains(t, err, "timeout")
}
