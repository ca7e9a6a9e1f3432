package dynamo

import (
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	iam "github.com/chimerakang/amp-iam"
)

type rateLimitItem struct {
	Period string   `dynamodbav:"period"`
	Rate   *float64 `dynamodbav:"rate"`
}

func (r *rateLimitItem) toRateLimit() *iam.RateLimit {
	if r == nil || r.Period == "" {
		return nil
	}
	return &iam.RateLimit{Period: iam.Period(r.Period), Rate: r.Rate}
}

type accountItem struct {
	ID        string         `dynamodbav:"id"`
	IsDefault bool           `dynamodbav:"isDefault"`
	RateLimit *rateLimitItem `dynamodbav:"rateLimit"`
}

type accountsRecord struct {
	User     string        `dynamodbav:"user"`
	Accounts []accountItem `dynamodbav:"accounts"`
}

type keyRecord struct {
	APIOwnerID     string   `dynamodbav:"api_owner_id"`
	Active         bool     `dynamodbav:"active"`
	ExpirationDate *string  `dynamodbav:"expirationDate"`
	AccessTypes    []string `dynamodbav:"accessTypes"`
	Account        struct {
		ID string `dynamodbav:"id"`
	} `dynamodbav:"account"`
	RateLimit *rateLimitItem `dynamodbav:"rateLimit"`
	// Identity fields are untyped in the table; only strings are usable.
	Owner    interface{} `dynamodbav:"owner"`
	Delegate interface{} `dynamodbav:"delegate"`
	SystemID interface{} `dynamodbav:"systemId"`
	Purpose  *string     `dynamodbav:"purpose"`
}

func (k *keyRecord) toRecord() *iam.APIKeyRecord {
	rec := &iam.APIKeyRecord{
		APIOwnerID: k.APIOwnerID,
		Active:     k.Active,
		AccountID:  k.Account.ID,
		Owner:      stringOrEmpty(k.Owner),
		Delegate:   stringOrEmpty(k.Delegate),
		SystemID:   stringOrEmpty(k.SystemID),
	}
	if k.ExpirationDate != nil {
		rec.ExpirationDate = *k.ExpirationDate
	}
	if k.Purpose != nil {
		rec.Purpose = *k.Purpose
	}
	for _, t := range k.AccessTypes {
		rec.AccessTypes = append(rec.AccessTypes, iam.AccessType(t))
	}
	if rl := k.RateLimit.toRateLimit(); rl != nil {
		rec.RateLimit = *rl
	}
	return rec
}

func stringOrEmpty(v interface{}) string {
	s, _ := v.(string)
	return s
}

// usageFromItem converts a cost-calculation row. A missing or NULL column is
// absent; an hourly column that is not a list of numbers is malformed.
func usageFromItem(item map[string]types.AttributeValue) *iam.Usage {
	return &iam.Usage{
		HourlyCost:  hourlyCost(item["hourlyCost"]),
		DailyCost:   number(item["dailyCost"]),
		MonthlyCost: number(item["monthlyCost"]),
	}
}

func hourlyCost(av types.AttributeValue) []float64 {
	switch v := av.(type) {
	case nil, *types.AttributeValueMemberNULL:
		return nil
	case *types.AttributeValueMemberL:
		out := make([]float64, 0, len(v.Value))
		for _, el := range v.Value {
			f := number(el)
			if f == nil {
				return []float64{}
			}
			out = append(out, *f)
		}
		return out
	}
	return []float64{}
}

func number(av types.AttributeValue) *float64 {
	n, ok := av.(*types.AttributeValueMemberN)
	if !ok {
		return nil
	}
	var f float64
	if err := attributevalue.Unmarshal(n, &f); err != nil {
		return nil
	}
	return &f
}
